package mail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct{ to, subject, body string }

func (r *recorder) Send(to, subject, body string) error {
	r.to, r.subject, r.body = to, subject, body
	return nil
}

func TestDependentInvitationEscapes(t *testing.T) {
	m, err := DependentInvitation("Ana <b>", "Maria", "https://amparo.example/redefinir-senha?token=abc")
	require.NoError(t, err)
	assert.Contains(t, m.Body, "Ana &lt;b&gt;")
	assert.Contains(t, m.Body, "token=abc")

	r := &recorder{}
	require.NoError(t, Deliver(r, "ana@example.com", m))
	assert.Equal(t, "ana@example.com", r.to)
	assert.Equal(t, m.Subject, r.subject)
}

func TestRecoveryLink(t *testing.T) {
	m, err := PasswordRecovery("https://amparo.example/redefinir-senha?token=abc")
	require.NoError(t, err)
	assert.Contains(t, m.Body, `href="https://amparo.example/redefinir-senha?token=abc"`)
}
