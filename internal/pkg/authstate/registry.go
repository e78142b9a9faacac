package authstate

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/robfig/cron/v3"
)

// Registry owns one started Container per browser session key.
type Registry struct {
	deps      Deps
	clientFor func(key string) IdentityClient
	idleTTL   time.Duration

	mu         sync.Mutex
	containers map[string]*Container
	closed     bool
	cron       *cron.Cron
	now        func() time.Time
}

// NewRegistry creates a registry. Containers idle for longer than idleTTL are
// stopped by Sweep.
func NewRegistry(deps Deps, clientFor func(key string) IdentityClient, idleTTL time.Duration) *Registry {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	return &Registry{
		deps:       deps,
		clientFor:  clientFor,
		idleTTL:    idleTTL,
		containers: make(map[string]*Container),
		now:        time.Now,
	}
}

// Get returns the container for key, creating and starting it on first use.
// After Close it returns a stopped container that reports no session.
func (r *Registry) Get(key string) *Container {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		c := NewContainer(r.clientFor(key), r.deps)
		c.Stop()
		return c
	}
	c, ok := r.containers[key]
	if !ok {
		c = NewContainer(r.clientFor(key), r.deps)
		r.containers[key] = c
	}
	r.mu.Unlock()

	if !ok {
		c.Start()
	}
	c.Touch()
	return c
}

// Lookup returns the container for key without creating one.
func (r *Registry) Lookup(key string) (*Container, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.containers[key]
	return c, ok
}

func (r *Registry) Remove(key string) {
	r.mu.Lock()
	c, ok := r.containers[key]
	delete(r.containers, key)
	r.mu.Unlock()
	if ok {
		c.Stop()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.containers)
}

// Sweep stops containers not accessed within the idle TTL and returns how many.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	var idle []*Container
	for key, c := range r.containers {
		if c.LastAccess().Before(cutoff) {
			idle = append(idle, c)
			delete(r.containers, key)
		}
	}
	r.mu.Unlock()

	for _, c := range idle {
		c.Stop()
	}
	if len(idle) > 0 {
		log.Infof("[AuthState] stopped %d idle containers", len(idle))
	}
	return len(idle)
}

// StartJanitor sweeps idle containers every minute.
func (r *Registry) StartJanitor() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc("@every 1m", func() { r.Sweep() }); err != nil {
		return err
	}
	c.Start()
	r.cron = c
	return nil
}

// Close stops the janitor and every container.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	janitor := r.cron
	r.cron = nil
	all := make([]*Container, 0, len(r.containers))
	for key, c := range r.containers {
		all = append(all, c)
		delete(r.containers, key)
	}
	r.mu.Unlock()

	if janitor != nil {
		<-janitor.Stop().Done()
	}
	for _, c := range all {
		c.Stop()
	}
}

func (r *Registry) forUser(userID string) []*Container {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Container
	for _, c := range r.containers {
		if s := c.Snapshot(); s.User != nil && s.User.ID == userID {
			out = append(out, c)
		}
	}
	return out
}

// CheckSubscriptionForUser re-checks the subscription in every container
// signed in as userID before returning, for instance after a payment-provider
// webhook. Failures keep the previous status and are only logged.
func (r *Registry) CheckSubscriptionForUser(ctx context.Context, userID string) int {
	containers := r.forUser(userID)
	for _, c := range containers {
		_, _ = c.checkSubscription(ctx)
	}
	return len(containers)
}

// RefreshProfileForUser re-reads the profile in every container signed in as
// userID, for instance after a titular linked or unlinked them.
func (r *Registry) RefreshProfileForUser(ctx context.Context, userID string) int {
	containers := r.forUser(userID)
	for _, c := range containers {
		c.RefreshProfile(ctx)
	}
	return len(containers)
}

// RefreshAdminRoleForUser re-reads the administrative role in every container
// signed in as userID, after a grant or revoke.
func (r *Registry) RefreshAdminRoleForUser(ctx context.Context, userID string) int {
	containers := r.forUser(userID)
	for _, c := range containers {
		c.RefreshAdminRole(ctx)
	}
	return len(containers)
}
