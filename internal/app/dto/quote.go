package dto

import (
	"encoding/json"

	"realty/internal/domain/pricing"
	"realty/internal/domain/shared/daterange"
)

type QuoteNight struct {
	Date    string      `json:"date"`
	Nightly json.Number `json:"nightly"`
	Source  string      `json:"source"`
	RuleID  string      `json:"rule_id,omitempty"`
}

type QuoteSummary struct {
	Nights       int         `json:"nights"`
	BaseSubtotal json.Number `json:"base_subtotal"`
	CleaningFee  json.Number `json:"cleaning_fee"`
	TaxRate      json.Number `json:"tax_rate"`
	TaxAmount    json.Number `json:"tax_amount"`
	Total        json.Number `json:"total"`
}

type Quote struct {
	OK         bool         `json:"ok"`
	PropertyID string       `json:"property_id"`
	CheckIn    string       `json:"checkin"`
	CheckOut   string       `json:"checkout"`
	Currency   string       `json:"currency"`
	Available  bool         `json:"available"`
	Nights     []QuoteNight `json:"nights"`
	Summary    QuoteSummary `json:"summary"`
}

func MapQuote(q pricing.Quote, available bool) Quote {
	nights := make([]QuoteNight, 0, len(q.Nights))
	for _, n := range q.Nights {
		nights = append(nights, QuoteNight{
			Date:    daterange.FormatDay(n.Date),
			Nightly: Amount(n.Amount),
			Source:  string(n.Source),
			RuleID:  string(n.RuleID),
		})
	}
	return Quote{
		OK:         true,
		PropertyID: string(q.PropertyID),
		CheckIn:    daterange.FormatDay(q.Range.CheckIn),
		CheckOut:   daterange.FormatDay(q.Range.CheckOut),
		Currency:   q.Currency(),
		Available:  available,
		Nights:     nights,
		Summary: QuoteSummary{
			Nights:       q.NightCount(),
			BaseSubtotal: Amount(q.BaseSubtotal),
			CleaningFee:  Amount(q.CleaningFee),
			TaxRate:      json.Number(q.TaxRate.String()),
			TaxAmount:    Amount(q.TaxAmount),
			Total:        Amount(q.Total),
		},
	}
}
