package availability

import (
	"context"

	"realty/internal/app/dto"
	"realty/internal/app/handlers/quotes"
	"realty/internal/app/queries"
	"realty/internal/app/uow"
	"realty/internal/domain/property"
)

const getBlockedDatesKey = "availability.blocked_dates"

type GetBlockedDatesQuery struct {
	PropertyID string `validate:"required"`
}

func (GetBlockedDatesQuery) Key() string { return getBlockedDatesKey }

type GetBlockedDatesHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetBlockedDatesHandler) Handle(ctx context.Context, q GetBlockedDatesQuery) (dto.BlockedDates, error) {
	scope, err := uow.Enter(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return dto.BlockedDates{}, err
	}
	defer scope.Close()

	p, err := scope.Unit.Properties().ByID(scope.Ctx, property.ID(q.PropertyID))
	if err != nil {
		return dto.BlockedDates{}, err
	}
	blocked, err := quotes.LoadBlocked(scope.Ctx, scope.Unit, p.ID)
	if err != nil {
		return dto.BlockedDates{}, err
	}
	return dto.MapBlocked(string(p.ID), blocked), nil
}

var _ queries.Handler[GetBlockedDatesQuery, dto.BlockedDates] = (*GetBlockedDatesHandler)(nil)
