package oauth

import (
	"time"

	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/ManuelReschke/Amparo/internal/pkg/env"
	appsession "github.com/ManuelReschke/Amparo/internal/pkg/session"
)

// Setup registers Google sign-in and the Goth session store. Without
// GOOGLE_KEY the provider is skipped and Enabled reports false.
func Setup() {
	if !Enabled() {
		return
	}
	base := env.PublicBaseURL()

	goth.UseProviders(
		google.New(
			env.GetEnv("GOOGLE_KEY", ""),
			env.GetEnv("GOOGLE_SECRET", ""),
			base+"/auth/google/callback",
			"email", "profile",
		),
	)

	// OAuth state lives next to the app sessions, in database 2
	gothfiber.SessionStore = session.New(session.Config{
		Storage:        appsession.RedisStorage(2),
		KeyLookup:      "cookie:" + gothic.SessionName,
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
		CookieSecure:   !env.IsDev(),
		Expiration:     72 * time.Hour,
	})
}

// Enabled reports whether Google sign-in is configured.
func Enabled() bool {
	return env.GetEnv("GOOGLE_KEY", "") != "" && env.GetEnv("GOOGLE_SECRET", "") != ""
}
