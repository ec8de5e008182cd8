package payments

import (
	"context"
	"errors"
	"time"

	"realty/internal/app/commands"
	"realty/internal/app/dto"
	"realty/internal/app/middleware"
	"realty/internal/app/policies"
	"realty/internal/app/uow"
	"realty/internal/domain/reservation"
)

const retryFulfillmentKey = "payments.retry_fulfillment"

// RetryFulfillmentCommand reconciles one session with the provider on operator request.
type RetryFulfillmentCommand struct {
	SessionID string `validate:"required"`
}

func (RetryFulfillmentCommand) Key() string { return retryFulfillmentKey }

func (RetryFulfillmentCommand) ManagesOwnTransaction() bool { return true }

type RetryFulfillmentHandler struct {
	Gateway    policies.PaymentGateway
	UoWFactory uow.UoWFactory
	Now        func() time.Time
	Fulfiller
}

func (h *RetryFulfillmentHandler) Handle(ctx context.Context, cmd RetryFulfillmentCommand) (*dto.Fulfillment, error) {
	if h.Gateway == nil {
		return nil, policies.ErrProviderUnavailable
	}
	session, err := h.Gateway.RetrieveCheckoutSession(ctx, cmd.SessionID)
	if err != nil {
		return nil, err
	}
	current, err := h.fillContact(ctx, session)
	if err != nil {
		return nil, err
	}
	if session.Paid {
		return h.Fulfill(ctx, session)
	}
	if current == nil {
		return nil, reservation.ErrNotFound
	}
	return &dto.Fulfillment{SessionID: session.ID, ReservationID: string(current.ID), Status: string(current.Status)}, nil
}

// fillContact completes guest details the provider collected; a missing row is not an error.
func (h *RetryFulfillmentHandler) fillContact(ctx context.Context, session policies.CheckoutSession) (*reservation.Reservation, error) {
	scope, err := uow.Enter(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer scope.Close()
	r, err := scope.Unit.Reservations().BySessionID(scope.Ctx, session.ID)
	if errors.Is(err, reservation.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	at := time.Now().UTC()
	if h.Now != nil {
		at = h.Now().UTC()
	}
	contact := reservation.Guest{Name: session.Customer.Name, Email: session.Customer.Email, Phone: session.Customer.Phone}
	if !r.FillContact(contact, at) {
		return r, nil
	}
	if err := scope.Unit.Reservations().Save(scope.Ctx, r); err != nil {
		return nil, err
	}
	return r, scope.Commit()
}

var _ commands.Handler[RetryFulfillmentCommand, *dto.Fulfillment] = (*RetryFulfillmentHandler)(nil)
var _ middleware.SelfManaged = RetryFulfillmentCommand{}
