package properties

import (
	"context"

	"realty/internal/app/dto"
	"realty/internal/app/queries"
	"realty/internal/app/uow"
	"realty/internal/domain/property"
)

const (
	getPropertyKey   = "properties.get"
	listRateRulesKey = "properties.rate_rules"
)

type GetPropertyQuery struct {
	PropertyID string `validate:"required"`
}

func (GetPropertyQuery) Key() string { return getPropertyKey }

type ListRateRulesQuery struct {
	PropertyID string `validate:"required"`
}

func (ListRateRulesQuery) Key() string { return listRateRulesKey }

type Queries struct {
	UoWFactory uow.UoWFactory
}

func (h *Queries) GetProperty(ctx context.Context, q GetPropertyQuery) (dto.Property, error) {
	scope, err := uow.Enter(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return dto.Property{}, err
	}
	defer scope.Close()
	p, err := scope.Unit.Properties().ByID(scope.Ctx, property.ID(q.PropertyID))
	if err != nil {
		return dto.Property{}, err
	}
	return dto.MapProperty(p), nil
}

func (h *Queries) ListRateRules(ctx context.Context, q ListRateRulesQuery) ([]dto.RateRule, error) {
	scope, err := uow.Enter(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer scope.Close()
	p, err := scope.Unit.Properties().ByID(scope.Ctx, property.ID(q.PropertyID))
	if err != nil {
		return nil, err
	}
	rules, err := scope.Unit.Rates().ListByProperty(scope.Ctx, p.ID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.RateRule, 0, len(rules))
	for _, r := range rules {
		out = append(out, dto.MapRateRule(r))
	}
	return out, nil
}

func (h *Queries) Register(bus *queries.InMemoryBus) {
	queries.Register[GetPropertyQuery, dto.Property](bus, queries.HandlerFunc[GetPropertyQuery, dto.Property](h.GetProperty))
	queries.Register[ListRateRulesQuery, []dto.RateRule](bus, queries.HandlerFunc[ListRateRulesQuery, []dto.RateRule](h.ListRateRules))
}
