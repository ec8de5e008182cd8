package pricing

import (
	"errors"
	"fmt"

	"realty/internal/domain/property"
	"realty/internal/domain/shared/daterange"
	"realty/internal/domain/shared/money"
)

var (
	ErrMinimumStay = errors.New("pricing: stay is shorter than the minimum nights required")
	ErrStayTooLong = errors.New("pricing: stay is longer than the property allows")
)

// Quote is the itemized, never cached, price of a prospective stay.
type Quote struct {
	PropertyID   property.ID
	Range        daterange.DateRange
	Nights       []NightlyPrice
	BaseSubtotal money.Money
	CleaningFee  money.Money
	TaxRate      money.Rate
	TaxAmount    money.Money
	Total        money.Money
}

func (q Quote) Currency() string {
	return q.Total.Currency
}

func (q Quote) NightCount() int {
	return len(q.Nights)
}

// Calculate prices a stay: nightly subtotal, flat cleaning fee and tax on both.
func Calculate(p *property.Property, rules []RateRule, dr daterange.DateRange) (Quote, error) {
	if p == nil {
		return Quote{}, property.ErrNotFound
	}
	if err := dr.Validate(); err != nil {
		return Quote{}, err
	}
	if n, limit := dr.Nights(), p.StayLimit(); n > limit {
		return Quote{}, fmt.Errorf("%w: %d nights requested, at most %d", ErrStayTooLong, n, limit)
	}
	nights := NewResolver(p, rules).ResolveRange(dr)
	subtotal := money.Zero(p.Currency)
	for _, night := range nights {
		if night.MinNights > len(nights) {
			return Quote{}, fmt.Errorf("%w: %d nights required from %s", ErrMinimumStay, night.MinNights, daterange.FormatDay(night.Date))
		}
		var err error
		subtotal, err = subtotal.Add(night.Amount)
		if err != nil {
			return Quote{}, err
		}
	}
	cleaning := p.Pricing.CleaningFee
	taxable, err := subtotal.Add(cleaning)
	if err != nil {
		return Quote{}, err
	}
	tax := taxable.ApplyRate(p.Pricing.TaxRate)
	total, err := taxable.Add(tax)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		PropertyID:   p.ID,
		Range:        dr,
		Nights:       nights,
		BaseSubtotal: subtotal,
		CleaningFee:  cleaning,
		TaxRate:      p.Pricing.TaxRate,
		TaxAmount:    tax,
		Total:        total,
	}, nil
}
