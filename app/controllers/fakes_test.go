package controllers

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ManuelReschke/Amparo/app/models"
	"github.com/ManuelReschke/Amparo/app/repository"
	"github.com/ManuelReschke/Amparo/internal/pkg/billing"
	"github.com/ManuelReschke/Amparo/internal/pkg/storage"
)

type memAccounts struct {
	mu   sync.Mutex
	byID map[string]models.Account
}

func (m *memAccounts) Create(_ context.Context, a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	m.byID[a.ID] = *a
	return nil
}

func (m *memAccounts) GetByID(_ context.Context, id string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.Email == models.NormalizeEmail(email) {
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memAccounts) GetByRecoveryToken(_ context.Context, token string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if token != "" && a.RecoveryToken == token {
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memAccounts) Update(ctx context.Context, a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[a.ID] = *a
	return nil
}

func (m *memAccounts) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memAccounts) List(context.Context, int, int) ([]models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Account
	for _, a := range m.byID {
		out = append(out, a)
	}
	return out, nil
}

type memProfiles struct {
	mu        sync.Mutex
	byID      map[string]models.Profile
	seq       int
	createErr error
}

func (m *memProfiles) Create(_ context.Context, p *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	m.seq++
	p.CreatedAt = p.CreatedAt.AddDate(0, 0, m.seq)
	m.byID[p.ID] = *p
	return nil
}

func (m *memProfiles) GetByID(_ context.Context, id string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (m *memProfiles) Update(_ context.Context, id string, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "full_name":
			p.FullName = v.(string)
		case "role":
			p.Role = v.(models.AppRole)
		case "cpf":
			p.CPF = v.(*string)
		case "phone":
			p.Phone = v.(*string)
		case "avatar_url":
			p.AvatarURL = v.(*string)
		case "titular_id":
			p.TitularID = v.(*string)
		case "plan_id":
			p.PlanID = v.(*string)
		default:
			return fmt.Errorf("unknown column %s", k)
		}
	}
	m.byID[id] = p
	return nil
}

func (m *memProfiles) dependents(titularID string) []models.Profile {
	var out []models.Profile
	for _, p := range m.byID {
		if p.TitularID != nil && *p.TitularID == titularID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memProfiles) ListDependents(_ context.Context, titularID string) ([]models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dependents(titularID), nil
}

func (m *memProfiles) CountDependents(_ context.Context, titularID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.dependents(titularID))), nil
}

func (m *memProfiles) ListByIDs(_ context.Context, ids []string) ([]models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Profile
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memProfiles) List(context.Context, int, int) ([]models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Profile
	for _, p := range m.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (m *memProfiles) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.byID)), nil
}

type memPlans map[string]models.Plan

func (m memPlans) GetByID(_ context.Context, id string) (*models.Plan, error) {
	p, ok := m[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (m memPlans) GetBySlug(_ context.Context, slug string) (*models.Plan, error) {
	for _, p := range m {
		if p.Slug == slug {
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m memPlans) ListActive(context.Context) ([]models.Plan, error) {
	var out []models.Plan
	for _, p := range m {
		if p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out, nil
}

type memRoles struct {
	mu    sync.Mutex
	roles map[string]map[models.AdminRole]bool
}

func (m *memRoles) ListByUser(_ context.Context, userID string) ([]models.UserRole, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.UserRole
	for r := range m.roles[userID] {
		out = append(out, models.UserRole{UserID: userID, Role: r})
	}
	return out, nil
}

func (m *memRoles) ListAll(ctx context.Context) ([]models.UserRole, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.UserRole
	for userID, set := range m.roles {
		for r := range set {
			out = append(out, models.UserRole{UserID: userID, Role: r})
		}
	}
	return out, nil
}

func (m *memRoles) Grant(_ context.Context, userID string, role models.AdminRole) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.roles[userID] == nil {
		m.roles[userID] = map[models.AdminRole]bool{}
	}
	m.roles[userID][role] = true
	return nil
}

func (m *memRoles) Revoke(_ context.Context, userID string, role models.AdminRole) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.roles[userID], role)
	return nil
}

type memPayments struct {
	byUser map[string][]models.Payment
}

func (m *memPayments) Create(_ context.Context, p *models.Payment) error {
	m.byUser[p.UserID] = append(m.byUser[p.UserID], *p)
	return nil
}

func (m *memPayments) ListByUser(_ context.Context, userID string) ([]models.Payment, error) {
	return m.byUser[userID], nil
}

type memObituaries struct {
	mu   sync.Mutex
	byID map[string]models.Obituary
}

func (m *memObituaries) Create(_ context.Context, o *models.Obituary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	m.byID[o.ID] = *o
	return nil
}

func (m *memObituaries) GetByID(_ context.Context, id string) (*models.Obituary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &o, nil
}

func (m *memObituaries) GetPublishedBySlug(_ context.Context, slug string) (*models.Obituary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.byID {
		if o.Slug == slug && o.Status == models.ObituaryPublished {
			return &o, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memObituaries) ListPublished(_ context.Context, offset, limit int) ([]models.Obituary, error) {
	all, _ := m.ListAll(context.Background())
	var out []models.Obituary
	for _, o := range all {
		if o.Status == models.ObituaryPublished {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memObituaries) ListAll(context.Context) ([]models.Obituary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Obituary
	for _, o := range m.byID {
		out = append(out, o)
	}
	return out, nil
}

func (m *memObituaries) Update(_ context.Context, o *models.Obituary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[o.ID] = *o
	return nil
}

func (m *memObituaries) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memObituaries) SlugExistsExceptID(_ context.Context, slug, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.byID {
		if o.Slug == slug && o.ID != id {
			return true, nil
		}
	}
	return false, nil
}

func (m *memObituaries) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.byID)), nil
}

type memPartners struct {
	mu   sync.Mutex
	byID map[string]models.Partner
}

func (m *memPartners) Create(_ context.Context, p *models.Partner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	m.byID[p.ID] = *p
	return nil
}

func (m *memPartners) GetByID(_ context.Context, id string) (*models.Partner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (m *memPartners) ListActive(_ context.Context, f repository.PartnerFilter) ([]models.Partner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Partner
	for _, p := range m.byID {
		if !p.IsActive || (f.Category != "" && p.Category != f.Category) {
			continue
		}
		if f.State != "" && (p.State == nil || *p.State != f.State) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memPartners) ListAll(context.Context) ([]models.Partner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Partner
	for _, p := range m.byID {
		out = append(out, p)
	}
	return out, nil
}

func (m *memPartners) Update(_ context.Context, p *models.Partner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[p.ID] = *p
	return nil
}

func (m *memPartners) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	return nil
}

func (m *memPartners) SlugExistsExceptID(_ context.Context, slug, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byID {
		if p.Slug == slug && p.ID != id {
			return true, nil
		}
	}
	return false, nil
}

func (m *memPartners) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.byID)), nil
}

type fakeBilling struct {
	configured bool
	emails     map[string]string
	checkouts  []string
	lookupErr  error
}

func (f *fakeBilling) Configured() bool      { return f.configured }
func (f *fakeBilling) WebhookSecret() string { return "whsec_test" }

func (f *fakeBilling) CreateCheckoutSession(_ context.Context, email, slug, successURL, _ string) (string, error) {
	f.checkouts = append(f.checkouts, email+":"+slug)
	return "https://checkout.example/" + slug + "?return=" + successURL, nil
}

func (f *fakeBilling) CreatePortalSession(_ context.Context, email, _ string) (string, error) {
	if _, ok := f.emails[email]; !ok {
		return "", billing.ErrNoCustomer
	}
	return "https://portal.example/" + email, nil
}

func (f *fakeBilling) CustomerEmail(_ context.Context, customerID string) (string, error) {
	if f.lookupErr != nil {
		return "", f.lookupErr
	}
	for email, id := range f.emails {
		if id == customerID {
			return email, nil
		}
	}
	return "", billing.ErrNoCustomer
}

type fakeWebhooks struct {
	mu        sync.Mutex
	seen      map[string]uint
	processed map[uint]error
	failed    map[uint]error
}

func (f *fakeWebhooks) RecordWebhookEvent(_ context.Context, in billing.WebhookEventInput) (bool, *models.BillingWebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := in.ProviderEventID
	if key == "" {
		key = "hash:" + in.PayloadJSON
	}
	if id, ok := f.seen[key]; ok {
		stored := &models.BillingWebhookEvent{ID: id}
		if _, done := f.processed[id]; done {
			now := time.Now()
			stored.ProcessedAt = &now
		}
		return false, stored, nil
	}
	id := uint(len(f.seen) + 1)
	f.seen[key] = id
	return true, &models.BillingWebhookEvent{ID: id, ProviderEventID: key}, nil
}

func (f *fakeWebhooks) MarkWebhookProcessed(_ context.Context, id uint, err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed[id] = err
	return nil
}

func (f *fakeWebhooks) MarkWebhookFailed(_ context.Context, id uint, err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id] = err
	return nil
}

type fakeImages struct {
	mu      sync.Mutex
	saved   []string
	removed []string
}

func (f *fakeImages) Save(_ context.Context, kind storage.Kind, filename string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if _, err := storage.ValidateImageBySniff(filename, data); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	url := fmt.Sprintf("/uploads/%s/%d%s", kind, len(f.saved)+1, strings.ToLower(filename[strings.LastIndex(filename, "."):]))
	f.saved = append(f.saved, url)
	return url, nil
}

func (f *fakeImages) Remove(_ context.Context, url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, url)
}

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (f *fakeMailer) Send(to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{to, subject, body})
	return nil
}

func (f *fakeMailer) last() sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentMail{}
	}
	return f.sent[len(f.sent)-1]
}
