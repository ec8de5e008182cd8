package uow

import (
	"context"

	"realty/internal/domain/availability"
	"realty/internal/domain/pricing"
	"realty/internal/domain/property"
	"realty/internal/domain/reservation"
)

// UnitOfWork exposes the repositories that take part in one transaction.
type UnitOfWork interface {
	Properties() property.Repository
	Rates() pricing.RuleRepository
	Reservations() reservation.Repository
	Blocks() availability.Repository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

type TxOptions struct {
	ReadOnly bool
}
