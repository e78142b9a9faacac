package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/subscription"

	"github.com/ManuelReschke/Amparo/internal/pkg/env"
	"github.com/ManuelReschke/Amparo/internal/pkg/identity"
)

var (
	ErrNotConfigured = errors.New("stripe is not configured")
	ErrNoCustomer    = errors.New("no stripe customer for this email")
	ErrUnknownPlan   = errors.New("unknown plan")
)

// stripeAPI is the slice of the Stripe API the client needs.
type stripeAPI interface {
	FindCustomerID(ctx context.Context, email string) (string, error)
	GetCustomerEmail(ctx context.Context, customerID string) (string, error)
	Subscriptions(ctx context.Context, customerID string) ([]*stripe.Subscription, error)
	NewCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	NewPortalSession(ctx context.Context, params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
}

// CustomerCache remembers email → Stripe customer id lookups.
type CustomerCache interface {
	Get(ctx context.Context, email string) (string, bool)
	Set(ctx context.Context, email, customerID string)
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

func StripeConfigFromEnv() StripeConfig {
	return StripeConfig{
		SecretKey:     strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		WebhookSecret: strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", "")),
	}
}

// StripeClient answers subscription-status checks and opens hosted checkout
// and customer-portal sessions.
type StripeClient struct {
	api   stripeAPI
	cache CustomerCache
	cfg   StripeConfig
}

// NewStripeClient sets the global Stripe key. cache may be nil.
func NewStripeClient(cfg StripeConfig, cache CustomerCache) *StripeClient {
	if cfg.SecretKey != "" {
		stripe.Key = cfg.SecretKey
	}
	return &StripeClient{api: sdkAPI{}, cache: cache, cfg: cfg}
}

func (c *StripeClient) Configured() bool {
	return c.cfg.SecretKey != ""
}

func (c *StripeClient) WebhookSecret() string {
	return c.cfg.WebhookSecret
}

func (c *StripeClient) customerID(ctx context.Context, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if c.cache != nil {
		if id, ok := c.cache.Get(ctx, email); ok {
			return id, nil
		}
	}
	id, err := c.api.FindCustomerID(ctx, email)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", ErrNoCustomer
	}
	if c.cache != nil {
		c.cache.Set(ctx, email, id)
	}
	return id, nil
}

// CheckSubscription reports the best entitling subscription (active, trialing
// or past_due) of the session's customer.
// A customer unknown to Stripe is reported as not subscribed.
func (c *StripeClient) CheckSubscription(ctx context.Context, session *identity.Session) (*StatusResponse, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if !session.HasUser() || session.Email == "" {
		return nil, identity.ErrNoSession
	}

	customerID, err := c.customerID(ctx, session.Email)
	if errors.Is(err, ErrNoCustomer) {
		return &StatusResponse{Subscribed: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find customer: %w", err)
	}

	subs, err := c.api.Subscriptions(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return bestSubscription(subs), nil
}

func bestSubscription(subs []*stripe.Subscription) *StatusResponse {
	out := &StatusResponse{}
	bestRank := -1
	for _, sub := range subs {
		if sub == nil || !isEntitlingStatus(string(sub.Status)) || sub.Items == nil || len(sub.Items.Data) == 0 {
			continue
		}
		item := sub.Items.Data[0]
		if item.Price == nil {
			continue
		}
		productID := ""
		if item.Price.Product != nil {
			productID = item.Price.Product.ID
		}
		rank := PlanRank(productID)
		if rank <= bestRank {
			continue
		}
		bestRank = rank

		priceID := item.Price.ID
		out.Subscribed = true
		out.ProductID = &productID
		out.PriceID = &priceID
		out.SubscriptionEnd = nil
		if item.CurrentPeriodEnd > 0 {
			end := time.Unix(item.CurrentPeriodEnd, 0).UTC()
			out.SubscriptionEnd = &end
		}
	}
	return out
}

// CreateCheckoutSession opens a subscription checkout for slug and returns its URL.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, email, slug, successURL, cancelURL string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	priceID := PriceIDOf(slug)
	if priceID == "" {
		return "", ErrUnknownPlan
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}
	customerID, err := c.customerID(ctx, email)
	switch {
	case err == nil:
		params.Customer = stripe.String(customerID)
	case errors.Is(err, ErrNoCustomer):
		params.CustomerEmail = stripe.String(email)
	default:
		return "", fmt.Errorf("find customer: %w", err)
	}

	sess, err := c.api.NewCheckoutSession(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}
	return sess.URL, nil
}

// CreatePortalSession opens the hosted customer portal. ErrNoCustomer when the
// email never went through checkout.
func (c *StripeClient) CreatePortalSession(ctx context.Context, email, returnURL string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	customerID, err := c.customerID(ctx, email)
	if err != nil {
		return "", err
	}
	sess, err := c.api.NewPortalSession(ctx, &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create portal session: %w", err)
	}
	return sess.URL, nil
}

// CustomerEmail resolves a Stripe customer id to its email.
func (c *StripeClient) CustomerEmail(ctx context.Context, customerID string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	return c.api.GetCustomerEmail(ctx, customerID)
}

// sdkAPI calls the Stripe SDK's package-level resources.
type sdkAPI struct{}

func (sdkAPI) FindCustomerID(ctx context.Context, email string) (string, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Limit = stripe.Int64(1)
	params.Context = ctx

	iter := customer.List(params)
	if iter.Next() {
		return iter.Customer().ID, nil
	}
	return "", iter.Err()
}

func (sdkAPI) GetCustomerEmail(ctx context.Context, customerID string) (string, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	cust, err := customer.Get(customerID, params)
	if err != nil {
		return "", fmt.Errorf("failed to get customer: %w", err)
	}
	return cust.Email, nil
}

func (sdkAPI) Subscriptions(ctx context.Context, customerID string) ([]*stripe.Subscription, error) {
	// "all" includes trialing and past_due; bestSubscription filters.
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Context = ctx

	var subs []*stripe.Subscription
	iter := subscription.List(params)
	for iter.Next() {
		subs = append(subs, iter.Subscription())
	}
	return subs, iter.Err()
}

func (sdkAPI) NewCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	params.Context = ctx
	return checkoutsession.New(params)
}

func (sdkAPI) NewPortalSession(ctx context.Context, params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
	params.Context = ctx
	return portalsession.New(params)
}

const customerCachePrefix = "billing:stripe:customer:"

// RedisCustomerCache caches positive customer lookups only, so a customer
// created by a later checkout is found on the next check.
type RedisCustomerCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCustomerCache(client *redis.Client, ttl time.Duration) *RedisCustomerCache {
	return &RedisCustomerCache{client: client, ttl: ttl}
}

func (c *RedisCustomerCache) Get(ctx context.Context, email string) (string, bool) {
	id, err := c.client.Get(ctx, customerCachePrefix+email).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warnf("[Billing] customer cache read failed: %v", err)
		}
		return "", false
	}
	return id, id != ""
}

func (c *RedisCustomerCache) Set(ctx context.Context, email, customerID string) {
	if err := c.client.Set(ctx, customerCachePrefix+email, customerID, c.ttl).Err(); err != nil {
		log.Warnf("[Billing] customer cache write failed: %v", err)
	}
}
