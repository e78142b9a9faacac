package session

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKeyApp(t *testing.T) *fiber.App {
	t.Helper()
	UseStore(session.New(session.Config{KeyLookup: "cookie:amparo_session"}))
	t.Cleanup(func() { UseStore(nil) })

	app := fiber.New()
	app.Get("/key", func(c *fiber.Ctx) error {
		key, ok, err := ExistingAuthKey(c)
		if err != nil {
			return err
		}
		if !ok {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.SendString(key)
	})
	app.Post("/bind", func(c *fiber.Ctx) error {
		key := NewAuthKey()
		previous, err := BindAuthKey(c, key)
		if err != nil {
			return err
		}
		return c.SendString(key + "|" + previous)
	})
	app.Post("/clear", func(c *fiber.Ctx) error {
		return Clear(c)
	})
	return app
}

func send(t *testing.T, app *fiber.App, method, path string, cookie *http.Cookie) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == "amparo_session" {
			return c
		}
	}
	return nil
}

func TestAnonymousBrowserGetsNoKey(t *testing.T) {
	app := newKeyApp(t)

	resp, _ := send(t, app, http.MethodGet, "/key", nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Nil(t, sessionCookie(resp))
}

func TestBindAuthKeyRotatesSession(t *testing.T) {
	app := newKeyApp(t)

	resp, body := send(t, app, http.MethodPost, "/bind", nil)
	first := sessionCookie(resp)
	require.NotNil(t, first)
	firstKey := body[:len(body)-1]
	require.NotEmpty(t, firstKey)

	resp, body = send(t, app, http.MethodGet, "/key", first)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, firstKey, body)

	resp, body = send(t, app, http.MethodPost, "/bind", first)
	second := sessionCookie(resp)
	require.NotNil(t, second)
	assert.NotEqual(t, first.Value, second.Value)
	assert.NotContains(t, body, firstKey+"|")
	assert.Contains(t, body, "|"+firstKey)

	resp, _ = send(t, app, http.MethodGet, "/key", first)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode, "old session id must not resolve")
}

func TestClearDropsKey(t *testing.T) {
	app := newKeyApp(t)

	resp, _ := send(t, app, http.MethodPost, "/bind", nil)
	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)

	send(t, app, http.MethodPost, "/clear", cookie)
	resp, _ = send(t, app, http.MethodGet, "/key", cookie)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestSessionHelpersWithoutStore(t *testing.T) {
	UseStore(nil)
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		_, _, err := ExistingAuthKey(c)
		assert.Error(t, err)
		_, err = BindAuthKey(c, NewAuthKey())
		assert.Error(t, err)
		assert.Error(t, Clear(c))
		return nil
	})
	_, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
}
