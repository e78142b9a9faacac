package authstate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/Amparo/app/models"
	"github.com/ManuelReschke/Amparo/app/repository"
	"github.com/ManuelReschke/Amparo/internal/pkg/billing"
	"github.com/ManuelReschke/Amparo/internal/pkg/entitlements"
	"github.com/ManuelReschke/Amparo/internal/pkg/identity"
)

type state struct {
	session        *identity.Session
	profile        *models.Profile
	plan           *models.Plan
	adminRole      models.AdminRole
	subscription   billing.SubscriptionStatus
	isLoading      bool
	roleLoading    bool
	profileLoading bool
	checksInFlight int
}

func (s *state) userID() string {
	if !s.session.HasUser() {
		return ""
	}
	return s.session.UserID
}

type task struct {
	name string
	run  func(ctx context.Context)
}

// Container holds the auth state of one browser session: who is signed in,
// their profile and plan, their administrative role and their subscription.
// It follows identity events for its session key and keeps the subscription
// in sync while someone is signed in.
type Container struct {
	client IdentityClient
	deps   Deps

	mu      sync.Mutex
	st      state
	userGen uint64 // bumped whenever the signed-in user changes
	events  uint64 // identity events received
	changed chan struct{}
	sub     *identity.Subscription
	started bool
	stopped bool

	tickerStop chan struct{}

	qmu     sync.Mutex
	tasks   []task
	wake    chan struct{}
	stopCh  chan struct{}
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	touched atomic.Int64
}

func NewContainer(client IdentityClient, deps Deps) *Container {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Container{
		client:  client,
		deps:    deps.withDefaults(),
		st:      state{isLoading: true},
		changed: make(chan struct{}),
		wake:    make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	c.Touch()
	return c
}

// Start subscribes to identity events and then resolves any existing session.
// Calling it more than once is a no-op.
func (c *Container) Start() {
	c.mu.Lock()
	if c.started || c.stopped {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.runTasks()

	sub := c.client.OnAuthStateChange(c.onChange)
	c.mu.Lock()
	c.sub = sub
	seen := c.events
	c.mu.Unlock()

	c.enqueue("initial-session", func(ctx context.Context) {
		c.loadInitialSession(ctx, seen)
	})
}

func (c *Container) loadInitialSession(ctx context.Context, seen uint64) {
	session, err := c.client.GetSession(ctx)
	if err != nil {
		log.Warnf("[AuthState] could not read existing session: %v", err)
		session = nil
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	var next followUp
	// An event that arrived meanwhile carries newer state than this read.
	if c.events == seen {
		next = c.applyLocked(session)
	}
	c.st.isLoading = false
	if userID := c.st.userID(); userID != "" {
		c.st.roleLoading = true
		next.userID = userID
		next.gen = c.userGen
		next.fetchRole = true
	}
	c.notifyLocked()
	c.mu.Unlock()

	c.run(next)
}

// onChange runs on the identity provider's goroutine. It only records the new
// session and hands follow-up work to the task queue.
func (c *Container) onChange(event identity.Event, session *identity.Session) {
	log.Debugf("[AuthState] %s", event)

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.events++
	next := c.applyLocked(session)
	c.notifyLocked()
	c.mu.Unlock()

	c.run(next)
}

// followUp is the work a session change schedules once the lock is released.
type followUp struct {
	userID       string
	gen          uint64
	fetchProfile bool
	fetchRole    bool
	checkSub     bool
}

// applyLocked replaces the session. Leaving or switching users drops the
// previous user's profile, plan, role and subscription in the same update.
// Any new session, even for the same user, re-checks the subscription.
func (c *Container) applyLocked(session *identity.Session) followUp {
	prevUser := c.st.userID()
	newSession := !sameSession(c.st.session, session)
	c.st.session = session
	newUser := c.st.userID()
	userChanged := prevUser != newUser
	if userChanged {
		c.userGen++
		c.st.profile = nil
		c.st.plan = nil
		c.st.adminRole = models.AdminRoleNone
		c.st.subscription = billing.SubscriptionStatus{}
	}

	next := followUp{userID: newUser, gen: c.userGen}
	if newUser == "" {
		c.st.profileLoading = false
		c.st.roleLoading = false
		c.stopTickerLocked()
		return next
	}

	c.st.profileLoading = true
	next.fetchProfile = true
	next.checkSub = userChanged || newSession
	if userChanged {
		c.st.roleLoading = true
		// While the initial load is pending it schedules the role fetch itself.
		next.fetchRole = !c.st.isLoading
		c.startTickerLocked()
	}
	return next
}

// sameSession reports whether b is the session already held as a. Sessions
// without a token only compare equal to themselves.
func sameSession(a, b *identity.Session) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.UserID == b.UserID && a.RawToken != "" && a.RawToken == b.RawToken
}

func (c *Container) run(next followUp) {
	if next.userID == "" {
		return
	}
	userID, gen := next.userID, next.gen
	if next.fetchProfile {
		c.enqueue("profile", func(ctx context.Context) {
			c.fetchProfile(ctx, userID, gen)
		})
	}
	if next.fetchRole {
		c.enqueueRoleFetch(userID, gen)
	}
	if next.checkSub {
		c.spawn(func(ctx context.Context) {
			_, _ = c.checkSubscription(ctx)
		})
	}
}

func (c *Container) enqueueRoleFetch(userID string, gen uint64) {
	c.enqueue("admin-role", func(ctx context.Context) {
		c.fetchAdminRole(ctx, userID, gen)
	})
}

// fetchProfile keeps the last known profile when the lookup fails.
func (c *Container) fetchProfile(ctx context.Context, userID string, gen uint64) {
	ctx, cancel := context.WithTimeout(ctx, c.deps.FetchTimeout)
	defer cancel()

	profile, err := c.deps.Profiles.GetByID(ctx, userID)
	if err != nil {
		log.Warnf("[AuthState] error fetching profile for %s: %v", userID, err)
		c.finishProfile(gen)
		return
	}

	var plan *models.Plan
	if profile.PlanID != nil && *profile.PlanID != "" {
		p, err := c.deps.Plans.GetByID(ctx, *profile.PlanID)
		switch {
		case err == nil:
			plan = p
		case errors.Is(err, repository.ErrNotFound):
		default:
			log.Warnf("[AuthState] error fetching plan %s: %v", *profile.PlanID, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userGen != gen {
		return
	}
	c.st.profile = profile
	c.st.plan = plan
	c.st.profileLoading = false
	c.notifyLocked()
}

func (c *Container) finishProfile(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userGen != gen {
		return
	}
	c.st.profileLoading = false
	c.notifyLocked()
}

func (c *Container) fetchAdminRole(ctx context.Context, userID string, gen uint64) {
	ctx, cancel := context.WithTimeout(ctx, c.deps.FetchTimeout)
	defer cancel()

	role := models.AdminRoleNone
	records, err := c.deps.Roles.ListByUser(ctx, userID)
	if err != nil {
		log.Warnf("[AuthState] error fetching admin role for %s: %v", userID, err)
	} else {
		roles := make([]models.AdminRole, 0, len(records))
		for _, r := range records {
			roles = append(roles, r.Role)
		}
		role = entitlements.HighestAdminRole(roles)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userGen != gen {
		return
	}
	c.st.adminRole = role
	c.st.roleLoading = false
	c.notifyLocked()
}

// RefreshProfile re-reads profile and plan for the signed-in user before returning.
func (c *Container) RefreshProfile(ctx context.Context) {
	c.mu.Lock()
	userID := c.st.userID()
	gen := c.userGen
	c.mu.Unlock()
	if userID == "" {
		return
	}
	c.fetchProfile(ctx, userID, gen)
}

// RefreshAdminRole re-reads the administrative role for the signed-in user
// before returning. The previous role stays visible while the lookup runs.
func (c *Container) RefreshAdminRole(ctx context.Context) {
	c.mu.Lock()
	userID := c.st.userID()
	gen := c.userGen
	c.mu.Unlock()
	if userID == "" {
		return
	}
	c.fetchAdminRole(ctx, userID, gen)
}

// CheckSubscription asks the payment provider now. On failure the previous
// status is kept and returned with the error.
func (c *Container) CheckSubscription(ctx context.Context) (billing.SubscriptionStatus, error) {
	return c.checkSubscription(ctx)
}

func (c *Container) checkSubscription(ctx context.Context) (billing.SubscriptionStatus, error) {
	c.mu.Lock()
	session := c.st.session
	gen := c.userGen
	if !session.HasUser() {
		status := c.st.subscription
		c.mu.Unlock()
		return status, identity.ErrNoSession
	}
	c.st.checksInFlight++
	c.notifyLocked()
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.deps.FetchTimeout)
	defer cancel()
	resp, err := c.deps.Subscriptions.CheckSubscription(ctx, session)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.st.checksInFlight--
	defer c.notifyLocked()
	if err != nil {
		log.Warnf("[AuthState] error checking subscription for %s: %v", session.UserID, err)
		return c.st.subscription, err
	}
	if c.userGen != gen {
		return c.st.subscription, nil
	}
	c.st.subscription = billing.StatusFromResponse(*resp)
	return c.st.subscription, nil
}

// SignOut ends the session with the provider and clears local state even when
// the provider call fails.
func (c *Container) SignOut(ctx context.Context) error {
	err := c.client.SignOut(ctx)

	c.mu.Lock()
	if !c.stopped {
		c.applyLocked(nil)
		c.notifyLocked()
	}
	c.mu.Unlock()
	return err
}

func (c *Container) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Container) snapshotLocked() Snapshot {
	snap := Snapshot{
		Session:               c.st.session,
		Profile:               c.st.profile,
		Plan:                  c.st.plan,
		AdminRole:             c.st.adminRole,
		Flags:                 entitlements.Classify(c.st.profile, c.st.adminRole),
		Subscription:          c.st.subscription,
		IsLoading:             c.st.isLoading,
		IsSubscriptionLoading: c.st.checksInFlight > 0,
		RoleLoading:           c.st.roleLoading,
		ProfileLoading:        c.st.profileLoading,
	}
	if c.st.session.HasUser() {
		snap.User = &User{ID: c.st.session.UserID, Email: c.st.session.Email}
	}
	return snap
}

// Await blocks until pred holds for the current state or ctx is done. The last
// observed snapshot is returned either way.
func (c *Container) Await(ctx context.Context, pred func(Snapshot) bool) (Snapshot, bool) {
	for {
		c.mu.Lock()
		snap := c.snapshotLocked()
		ch := c.changed
		c.mu.Unlock()

		if pred(snap) {
			return snap, true
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return snap, false
		}
	}
}

func (c *Container) notifyLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}

func (c *Container) Touch() {
	c.touched.Store(time.Now().UnixNano())
}

func (c *Container) LastAccess() time.Time {
	return time.Unix(0, c.touched.Load())
}

// Stop unsubscribes, cancels the subscription ticker and waits for background
// work to finish. Safe to call more than once.
func (c *Container) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.st.isLoading = false
	c.stopTickerLocked()
	c.notifyLocked()
	sub := c.sub
	c.mu.Unlock()

	sub.Unsubscribe()
	close(c.stopCh)
	c.cancel()
	c.wg.Wait()
}

func (c *Container) startTickerLocked() {
	if c.tickerStop != nil || c.stopped {
		return
	}
	stop := make(chan struct{})
	c.tickerStop = stop
	ticker := time.NewTicker(c.deps.CheckInterval)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-c.stopCh:
				return
			case <-ticker.C:
				_, _ = c.checkSubscription(c.ctx)
			}
		}
	}()
}

func (c *Container) stopTickerLocked() {
	if c.tickerStop == nil {
		return
	}
	close(c.tickerStop)
	c.tickerStop = nil
}

func (c *Container) tickerRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickerStop != nil
}

// spawn runs fn in the background unless the container is stopping.
func (c *Container) spawn(fn func(ctx context.Context)) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		fn(c.ctx)
	}()
}

func (c *Container) enqueue(name string, run func(ctx context.Context)) {
	c.qmu.Lock()
	c.tasks = append(c.tasks, task{name: name, run: run})
	c.qmu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Container) next() (task, bool) {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	if len(c.tasks) == 0 {
		return task{}, false
	}
	t := c.tasks[0]
	c.tasks[0] = task{}
	c.tasks = c.tasks[1:]
	return t, true
}

// runTasks executes queued work one task at a time.
func (c *Container) runTasks() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stopCh:
			return
		case <-c.wake:
		}
		for {
			t, ok := c.next()
			if !ok {
				break
			}
			select {
			case <-c.stopCh:
				return
			default:
			}
			log.Debugf("[AuthState] running %s", t.name)
			t.run(c.ctx)
		}
	}
}
