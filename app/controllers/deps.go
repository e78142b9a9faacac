package controllers

import (
	"context"
	"io"

	"github.com/ManuelReschke/Amparo/app/models"
	"github.com/ManuelReschke/Amparo/app/repository"
	"github.com/ManuelReschke/Amparo/internal/pkg/authstate"
	"github.com/ManuelReschke/Amparo/internal/pkg/billing"
	"github.com/ManuelReschke/Amparo/internal/pkg/hcaptcha"
	"github.com/ManuelReschke/Amparo/internal/pkg/identity"
	"github.com/ManuelReschke/Amparo/internal/pkg/mail"
	"github.com/ManuelReschke/Amparo/internal/pkg/storage"
)

// BillingProvider is the payment provider as used by the HTTP layer.
type BillingProvider interface {
	Configured() bool
	WebhookSecret() string
	CreateCheckoutSession(ctx context.Context, email, slug, successURL, cancelURL string) (string, error)
	CreatePortalSession(ctx context.Context, email, returnURL string) (string, error)
	CustomerEmail(ctx context.Context, customerID string) (string, error)
}

// ImageStore keeps uploaded pictures and returns their public URL.
type ImageStore interface {
	Save(ctx context.Context, kind storage.Kind, filename string, r io.Reader) (string, error)
	Remove(ctx context.Context, url string)
}

// WebhookRecorder stores provider events once.
type WebhookRecorder interface {
	RecordWebhookEvent(ctx context.Context, in billing.WebhookEventInput) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error
	MarkWebhookFailed(ctx context.Context, webhookEventID uint, processingErr error) error
}

// Deps wires the controllers to the services they use.
type Deps struct {
	Repos    *repository.Repositories
	Identity *identity.Service
	Registry *authstate.Registry
	Billing  BillingProvider
	Webhooks WebhookRecorder
	Images   ImageStore
	Mailer   mail.Sender
	Captcha  *hcaptcha.Verifier
	// BaseURL prefixes links sent by email and provider return URLs.
	BaseURL string
}
