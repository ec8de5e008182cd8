package pricing

import (
	"context"
	"errors"
	"strings"
	"time"

	"realty/internal/domain/property"
	"realty/internal/domain/shared/daterange"
	"realty/internal/domain/shared/money"
)

var (
	ErrRuleNotFound      = errors.New("pricing: rate rule not found")
	ErrRuleRange         = errors.New("pricing: rate rule end must not precede start")
	ErrRuleRate          = errors.New("pricing: rate rule rate must be positive")
	ErrRuleMinNights     = errors.New("pricing: rate rule minimum nights cannot be negative")
	ErrRuleCurrency      = errors.New("pricing: rate rule currency differs from property currency")
	ErrRulePropertyUnset = errors.New("pricing: rate rule property required")
)

type RuleID string

// RateRule overrides the nightly rate on the inclusive span [Start, End].
type RateRule struct {
	ID         RuleID
	PropertyID property.ID
	Start      time.Time
	End        time.Time
	Rate       money.Money
	MinNights  int
	Priority   int
	Notes      string
	CreatedAt  time.Time
}

type RuleRepository interface {
	ListByProperty(ctx context.Context, id property.ID) ([]RateRule, error)
	Save(ctx context.Context, rule RateRule) error
	Delete(ctx context.Context, propertyID property.ID, id RuleID) error
}

func (r RateRule) Validate() error {
	if strings.TrimSpace(string(r.PropertyID)) == "" {
		return ErrRulePropertyUnset
	}
	if r.Start.IsZero() || r.End.IsZero() || daterange.Day(r.End).Before(daterange.Day(r.Start)) {
		return ErrRuleRange
	}
	if r.Rate.Amount <= 0 {
		return ErrRuleRate
	}
	if r.MinNights < 0 {
		return ErrRuleMinNights
	}
	return nil
}

// ValidateFor also checks the rule against the property it belongs to.
func (r RateRule) ValidateFor(p *property.Property) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.PropertyID != p.ID {
		return ErrRulePropertyUnset
	}
	if r.Rate.Currency != p.Currency {
		return ErrRuleCurrency
	}
	return nil
}

// Covers reports whether day falls inside the rule, both ends inclusive.
func (r RateRule) Covers(day time.Time) bool {
	day = daterange.Day(day)
	return !day.Before(daterange.Day(r.Start)) && !day.After(daterange.Day(r.End))
}

// outranks decides the winner between two rules covering the same day:
// higher priority, then most recently created, then the greater id.
func (r RateRule) outranks(other RateRule) bool {
	if r.Priority != other.Priority {
		return r.Priority > other.Priority
	}
	if !r.CreatedAt.Equal(other.CreatedAt) {
		return r.CreatedAt.After(other.CreatedAt)
	}
	return r.ID > other.ID
}

// NightlyPrice is the resolved price of a single night.
type NightlyPrice struct {
	Date   time.Time
	Amount money.Money
	Source Source
	RuleID RuleID
	// MinNights carries the winning rule's constraint, 0 when none.
	MinNights int
}

type Source string

const (
	SourceRule    Source = "rule"
	SourceWeekend Source = "weekend"
	SourceBase    Source = "base"
)

// Resolver picks a nightly price for each date of a stay.
type Resolver struct {
	Base    money.Money
	Weekend *money.Money
	Rules   []RateRule
}

func NewResolver(p *property.Property, rules []RateRule) Resolver {
	return Resolver{Base: p.Pricing.BaseRate, Weekend: p.Pricing.WeekendRate, Rules: rules}
}

// Resolve returns the price of the night starting on day.
func (r Resolver) Resolve(day time.Time) NightlyPrice {
	day = daterange.Day(day)
	var (
		winner RateRule
		found  bool
	)
	for _, rule := range r.Rules {
		if !rule.Covers(day) {
			continue
		}
		if !found || rule.outranks(winner) {
			winner = rule
			found = true
		}
	}
	if found {
		return NightlyPrice{Date: day, Amount: winner.Rate, Source: SourceRule, RuleID: winner.ID, MinNights: winner.MinNights}
	}
	if r.Weekend != nil && isWeekendNight(day) {
		return NightlyPrice{Date: day, Amount: *r.Weekend, Source: SourceWeekend}
	}
	return NightlyPrice{Date: day, Amount: r.Base, Source: SourceBase}
}

// ResolveRange prices every night in [checkin, checkout).
func (r Resolver) ResolveRange(dr daterange.DateRange) []NightlyPrice {
	days := dr.Days()
	out := make([]NightlyPrice, 0, len(days))
	for _, d := range days {
		out = append(out, r.Resolve(d))
	}
	return out
}

func isWeekendNight(day time.Time) bool {
	switch day.UTC().Weekday() {
	case time.Friday, time.Saturday:
		return true
	}
	return false
}
