package billing

import (
	"encoding/json"
	"time"
)

// StatusResponse is the subscription-status check result, scoped to one customer.
type StatusResponse struct {
	Subscribed      bool       `json:"subscribed"`
	ProductID       *string    `json:"product_id"`
	PriceID         *string    `json:"price_id"`
	SubscriptionEnd *time.Time `json:"subscription_end"`
}

// SubscriptionStatus is the locally held view of the customer's subscription.
// Known is false until the first successful check, so "not yet checked" and
// "confirmed not subscribed" can be told apart.
type SubscriptionStatus struct {
	Known           bool
	Subscribed      bool
	ProductID       *string
	PriceID         *string
	PlanSlug        *string
	SubscriptionEnd *time.Time
}

const (
	StateUnknown  = "unknown"
	StateActive   = "active"
	StateInactive = "inactive"
)

func (s SubscriptionStatus) State() string {
	switch {
	case !s.Known:
		return StateUnknown
	case s.Subscribed:
		return StateActive
	default:
		return StateInactive
	}
}

func (s SubscriptionStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Status          string     `json:"status"`
		Subscribed      bool       `json:"subscribed"`
		ProductID       *string    `json:"product_id"`
		PriceID         *string    `json:"price_id"`
		PlanSlug        *string    `json:"plan_slug"`
		SubscriptionEnd *time.Time `json:"subscription_end"`
	}{s.State(), s.Subscribed, s.ProductID, s.PriceID, s.PlanSlug, s.SubscriptionEnd})
}

// StatusFromResponse maps a check result, resolving the product to a plan slug.
// Unrecognized products leave PlanSlug nil even when subscribed.
func StatusFromResponse(r StatusResponse) SubscriptionStatus {
	st := SubscriptionStatus{
		Known:           true,
		Subscribed:      r.Subscribed,
		ProductID:       r.ProductID,
		PriceID:         r.PriceID,
		SubscriptionEnd: r.SubscriptionEnd,
	}
	if r.ProductID != nil {
		if slug := ResolveSlugFromProductID(*r.ProductID); slug != "" {
			st.PlanSlug = &slug
		}
	}
	return st
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}
