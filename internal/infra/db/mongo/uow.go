package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"realty/internal/app/uow"
	"realty/internal/domain/availability"
	"realty/internal/domain/pricing"
	"realty/internal/domain/property"
	"realty/internal/domain/reservation"
)

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Factory opens a session transaction per unit. Repositories take part by receiving
// the session context produced by InjectContext.
type Factory struct {
	DB *mongo.Database

	PropertiesRepo   property.Repository
	RatesRepo        pricing.RuleRepository
	ReservationsRepo reservation.Repository
	BlocksRepo       availability.Repository
}

func NewFactory(db *mongo.Database) Factory {
	return Factory{
		DB:               db,
		PropertiesRepo:   NewPropertyRepository(db),
		RatesRepo:        NewRateRuleRepository(db),
		ReservationsRepo: NewReservationRepository(db),
		BlocksRepo:       NewBlockRepository(db),
	}
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().SetReadConcern(readconcern.Snapshot()).SetWriteConcern(writeconcern.Majority())
	if opts.ReadOnly {
		txnOpts = options.Transaction().SetReadConcern(readconcern.Majority())
	}
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{session: session, f: f}, nil
}

type Unit struct {
	session mongo.Session
	f       Factory
}

func (u *Unit) Properties() property.Repository      { return u.f.PropertiesRepo }
func (u *Unit) Rates() pricing.RuleRepository        { return u.f.RatesRepo }
func (u *Unit) Reservations() reservation.Repository { return u.f.ReservationsRepo }
func (u *Unit) Blocks() availability.Repository      { return u.f.BlocksRepo }

func (u *Unit) Commit(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.CommitTransaction(ctx)
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext binds the session to ctx for downstream repository calls.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}
