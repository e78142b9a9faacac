package authstate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/Amparo/app/models"
	"github.com/ManuelReschke/Amparo/internal/pkg/billing"
	"github.com/ManuelReschke/Amparo/internal/pkg/identity"
)

type harness struct {
	client   *fakeClient
	profiles *fakeProfiles
	roles    fakeRoles
	checker  *fakeChecker
	deps     Deps
}

func newHarness(session *identity.Session) *harness {
	h := &harness{
		client:   newFakeClient(session),
		profiles: &fakeProfiles{profiles: map[string]*models.Profile{}},
		roles:    fakeRoles{roles: map[string][]models.AdminRole{}},
		checker:  &fakeChecker{},
	}
	h.deps = Deps{
		Profiles: h.profiles,
		Plans: fakePlans{
			"plan-familiar": {ID: "plan-familiar", Slug: "familiar", Name: "Familiar", MaxDependents: 4},
		},
		Roles:         h.roles,
		Subscriptions: h.checker,
		CheckInterval: time.Hour,
		FetchTimeout:  time.Second,
	}
	return h
}

func (h *harness) start(t *testing.T) *Container {
	t.Helper()
	c := NewContainer(h.client, h.deps)
	c.Start()
	t.Cleanup(c.Stop)
	return c
}

func session(userID string) *identity.Session {
	return &identity.Session{UserID: userID, Email: userID + "@example.com", ExpiresAt: time.Now().Add(time.Hour)}
}

func tokenSession(userID, token string) *identity.Session {
	s := session(userID)
	s.RawToken = token
	return s
}

func await(t *testing.T, c *Container, pred func(Snapshot) bool) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, ok := c.Await(ctx, pred)
	require.True(t, ok, "state never reached: %+v", snap)
	return snap
}

func fullySettled(s Snapshot) bool {
	return Settled(s) && !s.IsSubscriptionLoading && (!s.HasUser() || s.Subscription.Known)
}

func TestContainerStartsLoading(t *testing.T) {
	h := newHarness(nil)
	c := NewContainer(h.client, h.deps)
	defer c.Stop()

	snap := c.Snapshot()
	assert.True(t, snap.IsLoading)
	assert.False(t, snap.HasUser())
}

func TestContainerWithoutSession(t *testing.T) {
	h := newHarness(nil)
	c := h.start(t)

	snap := await(t, c, Settled)
	assert.Nil(t, snap.User)
	assert.Nil(t, snap.Profile)
	assert.Nil(t, snap.Plan)
	assert.Equal(t, models.AdminRoleNone, snap.AdminRole)
	assert.Equal(t, billing.StateUnknown, snap.Subscription.State())
	assert.False(t, snap.Flags.IsTitular)
	assert.False(t, c.tickerRunning())
	assert.Equal(t, 0, h.checker.count())
}

func TestContainerSessionReadErrorCountsAsSignedOut(t *testing.T) {
	h := newHarness(nil)
	h.client.sessionErr = errBackend
	c := h.start(t)

	snap := await(t, c, Settled)
	assert.False(t, snap.HasUser())
}

func TestContainerTitularWithPlan(t *testing.T) {
	h := newHarness(session("u1"))
	h.profiles.set(&models.Profile{ID: "u1", FullName: "Maria", Role: models.RoleTitular, PlanID: strPtr("plan-familiar")})
	c := h.start(t)

	snap := await(t, c, fullySettled)
	require.NotNil(t, snap.User)
	assert.Equal(t, "u1", snap.User.ID)
	assert.Equal(t, "u1@example.com", snap.User.Email)
	require.NotNil(t, snap.Plan)
	assert.Equal(t, 4, snap.Plan.MaxDependents)
	assert.True(t, snap.Flags.IsTitular)
	assert.False(t, snap.Flags.IsDependente)
	assert.Equal(t, models.AdminRoleNone, snap.AdminRole)
	assert.False(t, snap.Flags.IsBackOfficeAdmin)
	assert.False(t, snap.Flags.IsAdminOrEditor)
	assert.Equal(t, billing.StateInactive, snap.Subscription.State())
	assert.True(t, c.tickerRunning())
}

func TestContainerProfileWithoutPlan(t *testing.T) {
	h := newHarness(session("u1"))
	h.profiles.set(&models.Profile{ID: "u1", FullName: "Maria", Role: models.RoleTitular, PlanID: strPtr("gone")})
	c := h.start(t)

	snap := await(t, c, Settled)
	require.NotNil(t, snap.Profile)
	assert.Nil(t, snap.Plan)
}

func TestContainerDependentFlags(t *testing.T) {
	h := newHarness(session("d1"))
	h.profiles.set(&models.Profile{ID: "d1", FullName: "Filho", Role: models.RoleDependente, TitularID: strPtr("u1")})
	c := h.start(t)

	snap := await(t, c, Settled)
	assert.True(t, snap.Flags.IsDependente)
	assert.False(t, snap.Flags.IsTitular)
}

func TestContainerAdminRoles(t *testing.T) {
	h := newHarness(session("a1"))
	h.roles.roles["a1"] = []models.AdminRole{models.AdminRoleEditor, models.AdminRoleAdmin}
	h.profiles.set(&models.Profile{ID: "a1", FullName: "Ana", Role: models.RoleTitular})
	c := h.start(t)

	snap := await(t, c, Settled)
	assert.Equal(t, models.AdminRoleAdmin, snap.AdminRole)
	assert.True(t, snap.Flags.IsBackOfficeAdmin)
	assert.True(t, snap.Flags.IsAdminOrEditor)
	assert.False(t, snap.Flags.IsEditor)
}

func TestContainerAdminRoleErrorMeansNone(t *testing.T) {
	h := newHarness(session("a1"))
	h.roles.err = errBackend
	h.deps.Roles = h.roles
	c := h.start(t)

	snap := await(t, c, Settled)
	assert.Equal(t, models.AdminRoleNone, snap.AdminRole)
	assert.False(t, snap.RoleLoading)
}

func TestContainerSubscriptionMapping(t *testing.T) {
	end := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	h := newHarness(session("u1"))
	h.checker.set(&billing.StatusResponse{
		Subscribed:      true,
		ProductID:       strPtr(billing.ProductIDOf("familiar")),
		PriceID:         strPtr(billing.PriceIDOf("familiar")),
		SubscriptionEnd: &end,
	}, nil)
	c := h.start(t)

	snap := await(t, c, fullySettled)
	assert.True(t, snap.Subscription.Subscribed)
	require.NotNil(t, snap.Subscription.PlanSlug)
	assert.Equal(t, "familiar", *snap.Subscription.PlanSlug)
	assert.Equal(t, end, *snap.Subscription.SubscriptionEnd)

	h.checker.set(nil, errBackend)
	status, err := c.CheckSubscription(context.Background())
	assert.ErrorIs(t, err, errBackend)
	assert.True(t, status.Subscribed)
	assert.Equal(t, "familiar", *c.Snapshot().Subscription.PlanSlug)
	assert.False(t, c.Snapshot().IsSubscriptionLoading)
}

func TestContainerSubscriptionUnknownProduct(t *testing.T) {
	h := newHarness(session("u1"))
	h.checker.set(&billing.StatusResponse{Subscribed: true, ProductID: strPtr("prod_unknown")}, nil)
	c := h.start(t)

	snap := await(t, c, fullySettled)
	assert.True(t, snap.Subscription.Subscribed)
	assert.Nil(t, snap.Subscription.PlanSlug)
}

func TestContainerCheckSubscriptionIsIdempotent(t *testing.T) {
	h := newHarness(session("u1"))
	h.checker.set(&billing.StatusResponse{Subscribed: true, ProductID: strPtr(billing.ProductIDOf("gold"))}, nil)
	c := h.start(t)
	await(t, c, fullySettled)

	first, err := c.CheckSubscription(context.Background())
	require.NoError(t, err)
	second, err := c.CheckSubscription(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestContainerCheckSubscriptionWithoutSession(t *testing.T) {
	h := newHarness(nil)
	c := h.start(t)
	await(t, c, Settled)

	_, err := c.CheckSubscription(context.Background())
	assert.ErrorIs(t, err, identity.ErrNoSession)
	assert.Equal(t, 0, h.checker.count())
}

func TestContainerSignInAndOut(t *testing.T) {
	h := newHarness(nil)
	h.profiles.set(&models.Profile{ID: "u1", FullName: "Maria", Role: models.RoleTitular})
	c := h.start(t)
	await(t, c, Settled)

	h.client.emit(identity.EventSignedIn, session("u1"))
	snap := await(t, c, func(s Snapshot) bool { return fullySettled(s) && s.Profile != nil })
	assert.Equal(t, "u1", snap.User.ID)
	assert.True(t, c.tickerRunning())

	require.NoError(t, c.SignOut(context.Background()))
	snap = c.Snapshot()
	assert.Nil(t, snap.User)
	assert.Nil(t, snap.Profile)
	assert.Nil(t, snap.Plan)
	assert.Equal(t, models.AdminRoleNone, snap.AdminRole)
	assert.False(t, snap.Subscription.Known)
	assert.False(t, c.tickerRunning())
	assert.Equal(t, 1, h.client.signOuts)
}

func TestContainerUserSwitchDropsPreviousState(t *testing.T) {
	h := newHarness(session("u1"))
	h.profiles.set(&models.Profile{ID: "u1", FullName: "Maria", Role: models.RoleTitular, PlanID: strPtr("plan-familiar")})
	h.profiles.set(&models.Profile{ID: "u2", FullName: "João", Role: models.RoleTitular})
	c := h.start(t)
	await(t, c, func(s Snapshot) bool { return Settled(s) && s.Plan != nil })

	h.client.emit(identity.EventSignedIn, session("u2"))
	snap := await(t, c, func(s Snapshot) bool { return Settled(s) && s.Profile != nil && s.Profile.ID == "u2" })
	assert.Nil(t, snap.Plan)
	assert.Equal(t, "u2", snap.User.ID)
}

func TestContainerNewSessionForSameUserRechecksSubscription(t *testing.T) {
	h := newHarness(tokenSession("u1", "first"))
	h.roles.roles["u1"] = []models.AdminRole{models.AdminRoleEditor}
	h.profiles.set(&models.Profile{ID: "u1", FullName: "Maria", Role: models.RoleTitular})
	c := h.start(t)
	await(t, c, fullySettled)
	checks := h.checker.count()

	h.client.emit(identity.EventSignedIn, tokenSession("u1", "second"))
	require.Eventually(t, func() bool { return h.checker.count() == checks+1 }, 2*time.Second, 5*time.Millisecond)
	snap := await(t, c, fullySettled)
	assert.Equal(t, models.AdminRoleEditor, snap.AdminRole)
	assert.NotNil(t, snap.Profile)
	assert.Equal(t, "second", snap.Session.RawToken)

	h.client.emit(identity.EventTokenRefreshed, tokenSession("u1", "third"))
	require.Eventually(t, func() bool { return h.checker.count() == checks+2 }, 2*time.Second, 5*time.Millisecond)
	await(t, c, fullySettled)
}

func TestContainerSameSessionAgainSkipsSubscriptionCheck(t *testing.T) {
	h := newHarness(tokenSession("u1", "only"))
	h.profiles.set(&models.Profile{ID: "u1", FullName: "Maria", Role: models.RoleTitular})
	c := h.start(t)
	await(t, c, fullySettled)
	checks := h.checker.count()

	h.client.emit(identity.EventUserUpdated, tokenSession("u1", "only"))
	await(t, c, fullySettled)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, checks, h.checker.count())
}

func TestContainerRefreshProfileKeepsStaleOnError(t *testing.T) {
	h := newHarness(session("u1"))
	h.profiles.set(&models.Profile{ID: "u1", FullName: "Maria", Role: models.RoleTitular})
	c := h.start(t)
	await(t, c, func(s Snapshot) bool { return Settled(s) && s.Profile != nil })

	h.profiles.fail(errBackend)
	c.RefreshProfile(context.Background())

	snap := c.Snapshot()
	require.NotNil(t, snap.Profile)
	assert.Equal(t, "Maria", snap.Profile.FullName)
	assert.False(t, snap.ProfileLoading)
}

func TestContainerRefreshProfilePicksUpChanges(t *testing.T) {
	h := newHarness(session("u1"))
	h.profiles.set(&models.Profile{ID: "u1", FullName: "Maria", Role: models.RoleTitular})
	c := h.start(t)
	await(t, c, func(s Snapshot) bool { return Settled(s) && s.Profile != nil })

	h.profiles.set(&models.Profile{ID: "u1", FullName: "Maria", Role: models.RoleTitular, PlanID: strPtr("plan-familiar")})
	c.RefreshProfile(context.Background())

	require.NotNil(t, c.Snapshot().Plan)
	assert.Equal(t, "familiar", c.Snapshot().Plan.Slug)
}

func TestContainerPeriodicSubscriptionCheck(t *testing.T) {
	h := newHarness(session("u1"))
	h.deps.CheckInterval = 10 * time.Millisecond
	c := h.start(t)
	await(t, c, fullySettled)

	require.Eventually(t, func() bool { return h.checker.count() >= 3 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, c.SignOut(context.Background()))
	assert.False(t, c.tickerRunning())
	settled := h.checker.count()
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, h.checker.count(), settled+1)
}

func TestContainerStopUnsubscribes(t *testing.T) {
	h := newHarness(session("u1"))
	c := h.start(t)
	await(t, c, Settled)
	require.Equal(t, 1, h.client.listeners())

	c.Stop()
	c.Stop()
	assert.Equal(t, 0, h.client.listeners())
	assert.False(t, c.tickerRunning())

	// Events after Stop are not delivered and must not panic.
	h.client.emit(identity.EventSignedOut, nil)
	assert.True(t, c.Snapshot().HasUser())
}

func TestContainerAwaitTimesOut(t *testing.T) {
	h := newHarness(nil)
	c := h.start(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ok := c.Await(ctx, func(Snapshot) bool { return false })
	assert.False(t, ok)
}
