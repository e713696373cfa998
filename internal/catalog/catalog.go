// Package catalog holds the static credit-package and subscription-plan
// tables. The catalog is immutable configuration data: constructed once,
// read-only, no locking needed.
package catalog

import "sort"

// Package is a one-time credit top-up offered through in-app purchase.
type Package struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Credits    int    `json:"credits"`
	PriceCents int64  `json:"price_cents"`
	Currency   string `json:"currency"`
}

// Plan is a recurring subscription granting credits each period.
type Plan struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	CreditsPerMonth int    `json:"credits_per_month"`
	PriceCents      int64  `json:"price_cents"`
	Currency        string `json:"currency"`
}

var packages = map[string]Package{
	"credits_10": {ID: "credits_10", Name: "Starter Pack", Credits: 10, PriceCents: 199, Currency: "USD"},
	"credits_25": {ID: "credits_25", Name: "Popular Pack", Credits: 25, PriceCents: 399, Currency: "USD"},
	"credits_60": {ID: "credits_60", Name: "Value Pack", Credits: 60, PriceCents: 799, Currency: "USD"},
	"credits_150": {ID: "credits_150", Name: "Mega Pack", Credits: 150, PriceCents: 1599, Currency: "USD"},
}

var plans = map[string]Plan{
	"sub_monthly": {ID: "sub_monthly", Name: "Creator Monthly", CreditsPerMonth: 100, PriceCents: 999, Currency: "USD"},
	"sub_yearly":  {ID: "sub_yearly", Name: "Creator Yearly", CreditsPerMonth: 120, PriceCents: 7999, Currency: "USD"},
}

// PackageByID resolves a store product id to its credit package.
func PackageByID(id string) (Package, bool) {
	p, ok := packages[id]
	return p, ok
}

// PlanByID resolves a subscription product id.
func PlanByID(id string) (Plan, bool) {
	p, ok := plans[id]
	return p, ok
}

// Packages lists all packages, cheapest first.
func Packages() []Package {
	out := make([]Package, 0, len(packages))
	for _, p := range packages {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PriceCents < out[j].PriceCents })
	return out
}

// Plans lists all subscription plans, cheapest first.
func Plans() []Plan {
	out := make([]Plan, 0, len(plans))
	for _, p := range plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PriceCents < out[j].PriceCents })
	return out
}
