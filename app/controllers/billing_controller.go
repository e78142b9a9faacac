package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/Amparo/app/models"
	"github.com/ManuelReschke/Amparo/internal/pkg/billing"
)

// BillingController receives payment-provider webhooks.
type BillingController struct {
	deps *Deps
}

func NewBillingController(deps *Deps) *BillingController {
	return &BillingController{deps: deps}
}

// StripeWebhook records the event once and, for subscription changes, makes
// every live session of the customer re-check its subscription. Lookup
// failures answer 500 and leave the event open, so Stripe's retry is handled.
func (bc *BillingController) StripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	secret := ""
	if bc.deps.Billing != nil {
		secret = bc.deps.Billing.WebhookSecret()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	event, parseErr := billing.ParseStripeEvent(rawBody, c.Get("Stripe-Signature"), secret)
	signatureValid := parseErr == nil

	created, stored, err := bc.deps.Webhooks.RecordWebhookEvent(ctx, billing.WebhookEventInput{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: event.ID,
		EventType:       string(event.Type),
		PayloadJSON:     string(rawBody),
		SignatureValid:  signatureValid,
	})
	if err != nil {
		log.Errorf("[Billing] persist webhook: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	if !created && stored.Processed() {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}
	if !signatureValid {
		_ = bc.deps.Webhooks.MarkWebhookProcessed(ctx, stored.ID, parseErr)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}
	if !billing.IsSubscriptionEvent(string(event.Type)) {
		_ = bc.deps.Webhooks.MarkWebhookProcessed(ctx, stored.ID, nil)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}

	customerID, err := billing.EventCustomerID(event)
	if err != nil {
		_ = bc.deps.Webhooks.MarkWebhookProcessed(ctx, stored.ID, err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}
	email, err := bc.deps.Billing.CustomerEmail(ctx, customerID)
	if err != nil {
		bc.markFailed(ctx, stored.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "customer_lookup_failed"})
	}

	account, err := bc.deps.Repos.Account.GetByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if isNotFound(err) {
			_ = bc.deps.Webhooks.MarkWebhookProcessed(ctx, stored.ID, errors.New("no local account for stripe customer"))
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
		}
		bc.markFailed(ctx, stored.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "account_lookup_failed"})
	}

	nudged := 0
	if bc.deps.Registry != nil {
		nudged = bc.deps.Registry.CheckSubscriptionForUser(ctx, account.ID)
	}
	log.Infof("[Billing] %s for %s, %d live session(s) re-checked", event.Type, account.ID, nudged)

	_ = bc.deps.Webhooks.MarkWebhookProcessed(ctx, stored.ID, nil)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

func (bc *BillingController) markFailed(ctx context.Context, id uint, err error) {
	log.Warnf("[Billing] webhook %d left open for retry: %v", id, err)
	if merr := bc.deps.Webhooks.MarkWebhookFailed(ctx, id, err); merr != nil {
		log.Errorf("[Billing] mark webhook %d failed: %v", id, merr)
	}
}
