package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Amparo/app/models"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

// Service records provider webhooks idempotently.
type Service struct {
	repo Repository
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// RecordWebhookEvent persists webhook payloads idempotently. The first return
// value is false when the event had already been recorded.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.BillingWebhookEvent, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.BillingWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(ctx, event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(ctx, webhookEventID, errMsg)
}

// MarkWebhookFailed stores a retryable error and leaves the event unprocessed.
func (s *Service) MarkWebhookFailed(ctx context.Context, webhookEventID uint, processingErr error) error {
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	if processingErr == nil {
		return errors.New("processing error is required")
	}
	return s.repo.MarkWebhookFailed(ctx, webhookEventID, processingErr.Error())
}

// ParseStripeEvent verifies the Stripe-Signature header and decodes the event.
func ParseStripeEvent(payload []byte, signatureHeader, secret string) (stripe.Event, error) {
	if strings.TrimSpace(secret) == "" || strings.TrimSpace(signatureHeader) == "" {
		return stripe.Event{}, ErrInvalidSignature
	}
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return event, nil
}

// IsSubscriptionEvent reports whether the event changes a customer's subscription.
func IsSubscriptionEvent(eventType string) bool {
	return strings.HasPrefix(eventType, "customer.subscription.") || eventType == "checkout.session.completed"
}

// EventCustomerID extracts the Stripe customer id from subscription and
// checkout events.
func EventCustomerID(event stripe.Event) (string, error) {
	if event.Data == nil {
		return "", errors.New("event without data")
	}
	var obj struct {
		Customer json.RawMessage `json:"customer"`
	}
	if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
		return "", err
	}
	var id string
	if err := json.Unmarshal(obj.Customer, &id); err == nil && id != "" {
		return id, nil
	}
	var expanded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(obj.Customer, &expanded); err == nil && expanded.ID != "" {
		return expanded.ID, nil
	}
	return "", errors.New("event without customer")
}
