package payments

import (
	"context"
	"fmt"

	"realty/internal/app/commands"
	"realty/internal/app/dto"
	"realty/internal/app/handlers/reservations"
	"realty/internal/app/middleware"
	"realty/internal/app/policies"
)

const handleWebhookKey = "payments.webhook"

// HandleWebhookCommand carries one raw provider delivery.
type HandleWebhookCommand struct {
	Payload   []byte `validate:"required"`
	Signature string `validate:"required"`
}

func (HandleWebhookCommand) Key() string { return handleWebhookKey }

func (HandleWebhookCommand) ManagesOwnTransaction() bool { return true }

type HandleWebhookHandler struct {
	Verifier policies.PaymentEventVerifier
	Inbox    policies.Inbox
	Fulfiller
}

// Handle answers without error once the outcome is durable. Persistence failures are
// returned so the provider redelivers; the reservation status makes redelivery harmless.
func (h *HandleWebhookHandler) Handle(ctx context.Context, cmd HandleWebhookCommand) (*dto.Fulfillment, error) {
	if h.Verifier == nil {
		return nil, policies.ErrInvalidSignature
	}
	ev, err := h.Verifier.Verify(cmd.Payload, cmd.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", policies.ErrInvalidSignature, err)
	}
	if h.Inbox != nil && ev.ID != "" {
		seen, err := h.Inbox.Processed(ctx, ev.ID)
		if err != nil {
			return nil, err
		}
		if seen {
			return &dto.Fulfillment{SessionID: ev.Session.ID, Duplicate: true}, nil
		}
	}

	var out *dto.Fulfillment
	switch {
	case ev.Type == policies.EventCheckoutCompleted && ev.Session.Paid:
		out, err = h.Fulfill(ctx, ev.Session)
	case ev.Type == policies.EventCheckoutExpired:
		var expired bool
		expired, err = commands.Dispatch[reservations.ExpireSessionCommand, bool](ctx, h.Commands, reservations.ExpireSessionCommand{SessionID: ev.Session.ID})
		out = &dto.Fulfillment{SessionID: ev.Session.ID, Status: "expired", Transitioned: expired}
	default:
		// Unpaid completions (delayed methods) and unrelated events.
		out = &dto.Fulfillment{SessionID: ev.Session.ID, Ignored: true}
	}
	if err != nil {
		return nil, err
	}
	if h.Inbox != nil && ev.ID != "" {
		if err := h.Inbox.MarkProcessed(ctx, ev.ID); err != nil {
			h.log().Warn("webhook event not recorded in inbox", "event_id", ev.ID, "error", err)
		}
	}
	return out, nil
}

var _ commands.Handler[HandleWebhookCommand, *dto.Fulfillment] = (*HandleWebhookHandler)(nil)
var _ middleware.SelfManaged = HandleWebhookCommand{}
