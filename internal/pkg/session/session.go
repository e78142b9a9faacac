package session

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/storage/redis"
	"github.com/google/uuid"

	"github.com/ManuelReschke/Amparo/internal/pkg/cache"
	"github.com/ManuelReschke/Amparo/internal/pkg/env"
)

// KeyAuth holds the per-browser key that scopes identity sessions and auth state.
const KeyAuth = "auth_key"

var sessionStore *session.Store

// RedisStorage returns Fiber storage on the cache server, using the given
// logical database. The cache itself uses DB 0.
func RedisStorage(database int) *redis.Storage {
	cacheClient := cache.GetClient()
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	if cacheClient != nil {
		addr := cacheClient.Options().Addr
		if h, p, err := net.SplitHostPort(addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := cacheClient.Options().Password; p != "" {
			password = p
		}
	}

	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: database,
		Reset:    false,
	})
}

func NewSessionStore() *session.Store {
	// Sessions use database 1
	storage := RedisStorage(1)

	sessionStore = session.New(session.Config{
		Storage:        storage,
		CookieHTTPOnly: true,
		CookieSecure:   !env.IsDev(),
		CookieSameSite: "Lax",
		Expiration:     env.GetEnvDuration("AUTH_SESSION_TTL", 7*24*time.Hour),
		KeyLookup:      "cookie:amparo_session",
	})

	return sessionStore
}

// UseStore replaces the store, e.g. with a memory-backed one in tests.
func UseStore(store *session.Store) {
	sessionStore = store
}

func GetSessionStore() *session.Store {
	return sessionStore
}

// ExistingAuthKey returns the browser's auth key without creating one.
// Anonymous browsers have none until they sign in.
func ExistingAuthKey(c *fiber.Ctx) (string, bool, error) {
	if sessionStore == nil {
		return "", false, fmt.Errorf("session store not initialized")
	}
	sess, err := sessionStore.Get(c)
	if err != nil {
		return "", false, fmt.Errorf("failed to get session: %w", err)
	}
	key, ok := sess.Get(KeyAuth).(string)
	return key, ok && key != "", nil
}

// NewAuthKey returns a key for a sign-in attempt. It is only stored in the
// browser session by BindAuthKey once the sign-in succeeded.
func NewAuthKey() string {
	return uuid.NewString()
}

// BindAuthKey rotates the session id and stores key in the session. The key
// held before, if any, is returned so the caller can release its state.
func BindAuthKey(c *fiber.Ctx, key string) (previous string, err error) {
	if sessionStore == nil {
		return "", fmt.Errorf("session store not initialized")
	}
	sess, err := sessionStore.Get(c)
	if err != nil {
		return "", fmt.Errorf("failed to get session: %w", err)
	}
	previous, _ = sess.Get(KeyAuth).(string)
	if err := sess.Regenerate(); err != nil {
		return "", fmt.Errorf("failed to regenerate session: %w", err)
	}
	sess.Set(KeyAuth, key)
	if err := sess.Save(); err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}
	return previous, nil
}

// Clear destroys the browser session, auth key included.
func Clear(c *fiber.Ctx) error {
	if sessionStore == nil {
		return fmt.Errorf("session store not initialized")
	}
	sess, err := sessionStore.Get(c)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	return sess.Destroy()
}

// SetSessionValue stores a key-value pair in the user's individual session
func SetSessionValue(c *fiber.Ctx, key string, value string) error {
	if sessionStore == nil {
		return fmt.Errorf("session store not initialized")
	}

	sess, err := sessionStore.Get(c)
	if err != nil {
		return fmt.Errorf("failed to get session: %v", err)
	}

	sess.Set(key, value)
	return sess.Save()
}

// GetSessionValue retrieves a value by key from the user's individual session
func GetSessionValue(c *fiber.Ctx, key string) string {
	if sessionStore == nil {
		return ""
	}

	sess, err := sessionStore.Get(c)
	if err != nil {
		return ""
	}

	value := sess.Get(key)
	if value == nil {
		return ""
	}

	if strValue, ok := value.(string); ok {
		return strValue
	}

	return ""
}
