package memory

import (
	"context"
	"errors"

	"realty/internal/app/uow"
	"realty/internal/domain/availability"
	"realty/internal/domain/pricing"
	"realty/internal/domain/property"
	"realty/internal/domain/reservation"
)

var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// Factory hands out units over shared in-memory repositories. Writes apply immediately;
// Commit and Rollback only mark the boundary.
type Factory struct {
	PropertiesRepo   property.Repository
	RatesRepo        pricing.RuleRepository
	ReservationsRepo reservation.Repository
	BlocksRepo       availability.Repository
}

// NewStore builds a factory over fresh repositories.
func NewStore() Factory {
	return Factory{
		PropertiesRepo:   NewPropertyRepository(),
		RatesRepo:        NewRateRuleRepository(),
		ReservationsRepo: NewReservationRepository(),
		BlocksRepo:       NewBlockRepository(),
	}
}

func (f Factory) Begin(context.Context, uow.TxOptions) (uow.UnitOfWork, error) {
	if f.PropertiesRepo == nil || f.RatesRepo == nil || f.ReservationsRepo == nil || f.BlocksRepo == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{f: f}, nil
}

type Unit struct {
	f Factory
}

func (u *Unit) Properties() property.Repository      { return u.f.PropertiesRepo }
func (u *Unit) Rates() pricing.RuleRepository        { return u.f.RatesRepo }
func (u *Unit) Reservations() reservation.Repository { return u.f.ReservationsRepo }
func (u *Unit) Blocks() availability.Repository      { return u.f.BlocksRepo }
func (u *Unit) Commit(context.Context) error         { return nil }
func (u *Unit) Rollback(context.Context) error       { return nil }
