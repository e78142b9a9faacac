package authstate

import (
	"context"
	"errors"
	"sync"

	"github.com/ManuelReschke/Amparo/app/models"
	"github.com/ManuelReschke/Amparo/app/repository"
	"github.com/ManuelReschke/Amparo/internal/pkg/billing"
	"github.com/ManuelReschke/Amparo/internal/pkg/identity"
)

const testKey = "browser-1"

type fakeClient struct {
	hub *identity.Hub
	key string

	mu         sync.Mutex
	session    *identity.Session
	sessionErr error
	signOuts   int
}

func newFakeClient(session *identity.Session) *fakeClient {
	return &fakeClient{hub: identity.NewHub(), key: testKey, session: session}
}

func (f *fakeClient) OnAuthStateChange(fn identity.Listener) *identity.Subscription {
	return f.hub.Subscribe(f.key, fn)
}

func (f *fakeClient) GetSession(ctx context.Context) (*identity.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session, f.sessionErr
}

func (f *fakeClient) SignOut(ctx context.Context) error {
	f.mu.Lock()
	f.session = nil
	f.signOuts++
	f.mu.Unlock()
	f.hub.Publish(f.key, identity.EventSignedOut, nil)
	return nil
}

func (f *fakeClient) emit(event identity.Event, session *identity.Session) {
	f.mu.Lock()
	f.session = session
	f.mu.Unlock()
	f.hub.Publish(f.key, event, session)
}

func (f *fakeClient) listeners() int {
	return f.hub.ListenerCount(f.key)
}

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]*models.Profile
	err      error
	calls    int
}

func (f *fakeProfiles) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProfiles) set(p *models.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[p.ID] = p
}

func (f *fakeProfiles) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fakePlans map[string]*models.Plan

func (f fakePlans) GetByID(ctx context.Context, id string) (*models.Plan, error) {
	p, ok := f[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

type fakeRoles struct {
	roles map[string][]models.AdminRole
	err   error
}

func (f fakeRoles) ListByUser(ctx context.Context, userID string) ([]models.UserRole, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.UserRole
	for _, r := range f.roles[userID] {
		out = append(out, models.UserRole{UserID: userID, Role: r})
	}
	return out, nil
}

type fakeChecker struct {
	mu    sync.Mutex
	resp  *billing.StatusResponse
	err   error
	calls int
}

func (f *fakeChecker) CheckSubscription(ctx context.Context, session *identity.Session) (*billing.StatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.resp == nil {
		return &billing.StatusResponse{}, nil
	}
	r := *f.resp
	return &r, nil
}

func (f *fakeChecker) set(resp *billing.StatusResponse, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resp, f.err = resp, err
}

func (f *fakeChecker) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var errBackend = errors.New("backend unavailable")

func strPtr(s string) *string { return &s }
