package billing

import "testing"

func TestSlugProductRoundTrip(t *testing.T) {
	for _, p := range Plans() {
		if got := ResolveSlugFromProductID(ProductIDOf(p.Slug)); got != p.Slug {
			t.Fatalf("ResolveSlugFromProductID(ProductIDOf(%q)) = %q", p.Slug, got)
		}
		if PriceIDOf(p.Slug) == "" {
			t.Fatalf("expected price id for %q", p.Slug)
		}
	}
}

func TestResolveSlugUnknownProduct(t *testing.T) {
	for _, id := range []string{"", "prod_unknown", "  "} {
		if got := ResolveSlugFromProductID(id); got != "" {
			t.Fatalf("ResolveSlugFromProductID(%q) = %q, want empty", id, got)
		}
	}
	if ProductIDOf("diamond") != "" {
		t.Fatalf("expected no product for unknown slug")
	}
}

func TestFamiliarProduct(t *testing.T) {
	if got := ResolveSlugFromProductID("prod_TyP7Xv4oJdibIv"); got != "familiar" {
		t.Fatalf("got %q, want familiar", got)
	}
}

func TestPlanRank(t *testing.T) {
	if PlanRank(ProductIDOf("individual")) >= PlanRank(ProductIDOf("familiar")) {
		t.Fatalf("expected familiar to outrank individual")
	}
	if PlanRank(ProductIDOf("gold")) >= PlanRank(ProductIDOf("platinum")) {
		t.Fatalf("expected platinum to outrank gold")
	}
	if PlanRank("prod_unknown") != 0 {
		t.Fatalf("expected unknown product to rank 0")
	}
}

func TestIsEntitlingStatus(t *testing.T) {
	for _, status := range []string{"active", "trialing", "past_due"} {
		if !isEntitlingStatus(status) {
			t.Fatalf("expected status %q to be entitling", status)
		}
	}
	for _, status := range []string{"canceled", "incomplete", "unpaid", "paused"} {
		if isEntitlingStatus(status) {
			t.Fatalf("expected status %q to be non-entitling", status)
		}
	}
}

func TestConfigurePlansFromEnv(t *testing.T) {
	saved := Plans()
	t.Cleanup(func() { copy(planTable, saved) })

	t.Setenv("STRIPE_PRODUCT_GOLD", "prod_override")
	ConfigurePlansFromEnv()

	if got := ResolveSlugFromProductID("prod_override"); got != "gold" {
		t.Fatalf("got %q, want gold", got)
	}
}
