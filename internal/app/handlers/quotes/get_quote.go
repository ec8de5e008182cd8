package quotes

import (
	"context"
	"strings"

	"realty/internal/app/dto"
	"realty/internal/app/queries"
	"realty/internal/app/uow"
	"realty/internal/domain/availability"
	"realty/internal/domain/pricing"
	"realty/internal/domain/property"
	"realty/internal/domain/shared/daterange"
)

const getQuoteKey = "quotes.get"

// GetQuoteQuery prices a stay; dates are YYYY-MM-DD with checkout exclusive.
type GetQuoteQuery struct {
	PropertyID string `validate:"required"`
	CheckIn    string `validate:"required"`
	CheckOut   string `validate:"required"`
}

func (GetQuoteQuery) Key() string { return getQuoteKey }

type GetQuoteHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetQuoteHandler) Handle(ctx context.Context, q GetQuoteQuery) (dto.Quote, error) {
	dr, err := daterange.Parse(q.CheckIn, q.CheckOut)
	if err != nil {
		return dto.Quote{}, err
	}
	scope, err := uow.Enter(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return dto.Quote{}, err
	}
	defer scope.Close()

	priced, err := Price(scope.Ctx, scope.Unit, property.ID(strings.TrimSpace(q.PropertyID)), dr)
	if err != nil {
		return dto.Quote{}, err
	}
	return dto.MapQuote(priced.Quote, priced.Available()), nil
}

// Priced is a quote together with what it was computed from.
type Priced struct {
	Property *property.Property
	Quote    pricing.Quote
	Blocked  availability.Blocked
}

func (p Priced) Available() bool {
	return !p.Blocked.Overlaps(p.Quote.Range)
}

// Price recomputes the quote and the blocked view for a stay from storage.
func Price(ctx context.Context, unit uow.UnitOfWork, id property.ID, dr daterange.DateRange) (Priced, error) {
	p, err := unit.Properties().ByID(ctx, id)
	if err != nil {
		return Priced{}, err
	}
	rules, err := unit.Rates().ListByProperty(ctx, p.ID)
	if err != nil {
		return Priced{}, err
	}
	quote, err := pricing.Calculate(p, rules, dr)
	if err != nil {
		return Priced{}, err
	}
	blocked, err := LoadBlocked(ctx, unit, p.ID)
	if err != nil {
		return Priced{}, err
	}
	return Priced{Property: p, Quote: quote, Blocked: blocked}, nil
}

func LoadBlocked(ctx context.Context, unit uow.UnitOfWork, id property.ID) (availability.Blocked, error) {
	paid, err := unit.Reservations().ListPaidByProperty(ctx, id)
	if err != nil {
		return availability.Blocked{}, err
	}
	blocks, err := unit.Blocks().ListByProperty(ctx, id)
	if err != nil {
		return availability.Blocked{}, err
	}
	return availability.Merge(paid, blocks), nil
}

var _ queries.Handler[GetQuoteQuery, dto.Quote] = (*GetQuoteHandler)(nil)
