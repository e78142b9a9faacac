package billing

import (
	"strings"

	"github.com/ManuelReschke/Amparo/internal/pkg/env"
)

// PlanPrice links an internal plan slug to its Stripe product and price.
type PlanPrice struct {
	Slug      string
	ProductID string
	PriceID   string
	Rank      int
}

var planTable = []PlanPrice{
	{Slug: "individual", ProductID: "prod_TyP66AyJG9ksDT", PriceID: "price_1T0SIVEM9T1iOXHkOrjHpvoh", Rank: 1},
	{Slug: "familiar", ProductID: "prod_TyP7Xv4oJdibIv", PriceID: "price_1T0SIqEM9T1iOXHkHppxyFIu", Rank: 2},
	{Slug: "gold", ProductID: "prod_TyP7QGMOHn6oSy", PriceID: "price_1T0SJ5EM9T1iOXHkw2KkkpZ4", Rank: 3},
	{Slug: "platinum", ProductID: "prod_TyP8lup92j0tqu", PriceID: "price_1T0SKJEM9T1iOXHkMQmNYg5e", Rank: 4},
}

// ConfigurePlansFromEnv applies STRIPE_PRODUCT_<SLUG> and STRIPE_PRICE_<SLUG>
// overrides. Call once at startup, before serving requests.
func ConfigurePlansFromEnv() {
	for i := range planTable {
		key := strings.ToUpper(planTable[i].Slug)
		planTable[i].ProductID = env.GetEnv("STRIPE_PRODUCT_"+key, planTable[i].ProductID)
		planTable[i].PriceID = env.GetEnv("STRIPE_PRICE_"+key, planTable[i].PriceID)
	}
}

// Plans returns a copy of the plan table.
func Plans() []PlanPrice {
	out := make([]PlanPrice, len(planTable))
	copy(out, planTable)
	return out
}

func lookupSlug(slug string) (PlanPrice, bool) {
	s := strings.ToLower(strings.TrimSpace(slug))
	for _, p := range planTable {
		if p.Slug == s {
			return p, true
		}
	}
	return PlanPrice{}, false
}

// ResolveSlugFromProductID returns "" for unknown product ids.
func ResolveSlugFromProductID(productID string) string {
	id := strings.TrimSpace(productID)
	if id == "" {
		return ""
	}
	for _, p := range planTable {
		if p.ProductID == id {
			return p.Slug
		}
	}
	return ""
}

func ProductIDOf(slug string) string {
	p, _ := lookupSlug(slug)
	return p.ProductID
}

func PriceIDOf(slug string) string {
	p, _ := lookupSlug(slug)
	return p.PriceID
}

// PlanRank orders plans by coverage; unknown products rank 0.
func PlanRank(productID string) int {
	slug := ResolveSlugFromProductID(productID)
	p, _ := lookupSlug(slug)
	return p.Rank
}

func isEntitlingStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active", "trialing", "past_due":
		return true
	default:
		return false
	}
}
