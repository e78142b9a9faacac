package identity

import (
	"sync"
	"time"
)

// Event names the kind of auth-state change delivered to listeners.
type Event string

const (
	EventInitialSession   Event = "INITIAL_SESSION"
	EventSignedIn         Event = "SIGNED_IN"
	EventSignedOut        Event = "SIGNED_OUT"
	EventTokenRefreshed   Event = "TOKEN_REFRESHED"
	EventUserUpdated      Event = "USER_UPDATED"
	EventPasswordRecovery Event = "PASSWORD_RECOVERY"
)

// Session is an authenticated identity bound to one browser session key.
// Values are replaced wholesale, never mutated.
type Session struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	RawToken  string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HasUser is nil-safe.
func (s *Session) HasUser() bool {
	return s != nil && s.UserID != ""
}

// Listener receives auth-state changes. session is nil after a sign-out.
type Listener func(event Event, session *Session)

// Subscription is returned by OnAuthStateChange.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Unsubscribe stops delivery. Calling it more than once is a no-op.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}
