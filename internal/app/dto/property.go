package dto

import (
	"encoding/json"
	"time"

	"realty/internal/domain/pricing"
	"realty/internal/domain/property"
	"realty/internal/domain/shared/daterange"
)

type Property struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Slug          string       `json:"slug"`
	Currency      string       `json:"currency"`
	BaseRate      json.Number  `json:"base_rate"`
	WeekendRate   *json.Number `json:"weekend_rate,omitempty"`
	CleaningFee   json.Number  `json:"cleaning_fee"`
	TaxRate       json.Number  `json:"tax_rate"`
	DamageDeposit json.Number  `json:"damage_deposit"`
	MaxGuests     int          `json:"max_guests"`
	MaxStayNights int          `json:"max_stay_nights"`
	FeedURLs      []string     `json:"feed_urls"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

func MapProperty(p *property.Property) Property {
	out := Property{
		ID:            string(p.ID),
		Name:          p.Name,
		Slug:          p.Slug,
		Currency:      p.Currency,
		BaseRate:      Amount(p.Pricing.BaseRate),
		CleaningFee:   Amount(p.Pricing.CleaningFee),
		TaxRate:       json.Number(p.Pricing.TaxRate.String()),
		DamageDeposit: Amount(p.DamageDeposit),
		MaxGuests:     p.MaxGuests,
		MaxStayNights: p.StayLimit(),
		FeedURLs:      append([]string{}, p.FeedURLs...),
		UpdatedAt:     p.UpdatedAt,
	}
	if p.Pricing.WeekendRate != nil {
		w := Amount(*p.Pricing.WeekendRate)
		out.WeekendRate = &w
	}
	return out
}

type RateRule struct {
	ID        string      `json:"id"`
	Start     string      `json:"start"`
	End       string      `json:"end"`
	Rate      json.Number `json:"rate"`
	MinNights int         `json:"min_nights"`
	Priority  int         `json:"priority"`
	Notes     string      `json:"notes,omitempty"`
}

func MapRateRule(r pricing.RateRule) RateRule {
	return RateRule{
		ID:        string(r.ID),
		Start:     daterange.FormatDay(r.Start),
		End:       daterange.FormatDay(r.End),
		Rate:      Amount(r.Rate),
		MinNights: r.MinNights,
		Priority:  r.Priority,
		Notes:     r.Notes,
	}
}
