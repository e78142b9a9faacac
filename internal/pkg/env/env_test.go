package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withEnv(t *testing.T, values map[string]string) {
	t.Helper()
	prev := Env
	Env = values
	t.Cleanup(func() { Env = prev })
}

func TestGetEnvPrefersLoadedFile(t *testing.T) {
	withEnv(t, map[string]string{"AMPARO_TEST_KEY": "from-file"})
	t.Setenv("AMPARO_TEST_KEY", "from-os")

	assert.Equal(t, "from-file", GetEnv("AMPARO_TEST_KEY", "def"))
}

func TestGetEnvFallsBackToOS(t *testing.T) {
	withEnv(t, map[string]string{})
	t.Setenv("AMPARO_TEST_KEY", "from-os")

	assert.Equal(t, "from-os", GetEnv("AMPARO_TEST_KEY", "def"))
	assert.Equal(t, "def", GetEnv("AMPARO_MISSING_KEY", "def"))
}

func TestTypedGetters(t *testing.T) {
	withEnv(t, map[string]string{
		"INT_OK":    "42",
		"INT_BAD":   "x",
		"DUR_SECS":  "90",
		"DUR_GO":    "2m",
		"DUR_BAD":   "soon",
		"BOOL_TRUE": "true",
	})

	assert.Equal(t, 42, GetEnvInt("INT_OK", 1))
	assert.Equal(t, 1, GetEnvInt("INT_BAD", 1))
	assert.Equal(t, 90*time.Second, GetEnvDuration("DUR_SECS", time.Second))
	assert.Equal(t, 2*time.Minute, GetEnvDuration("DUR_GO", time.Second))
	assert.Equal(t, time.Second, GetEnvDuration("DUR_BAD", time.Second))
	assert.True(t, GetEnvBool("BOOL_TRUE", false))
	assert.False(t, GetEnvBool("BOOL_MISSING", false))
}

func TestPublicBaseURL(t *testing.T) {
	withEnv(t, map[string]string{"PUBLIC_DOMAIN": "https://amparo.example/", "APP_PORT": "8080"})
	assert.Equal(t, "https://amparo.example", PublicBaseURL())

	withEnv(t, map[string]string{"APP_PORT": "8080"})
	t.Setenv("PUBLIC_DOMAIN", "")
	assert.Equal(t, "http://localhost:8080", PublicBaseURL())
}
