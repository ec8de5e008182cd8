package stripe

import (
	"encoding/json"
	"fmt"
	"strings"

	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"realty/internal/app/policies"
)

// Verifier checks the Stripe-Signature header and decodes checkout events.
type Verifier struct {
	Secret string
}

func NewVerifier(secret string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrNotConfigured
	}
	return &Verifier{Secret: secret}, nil
}

func (v *Verifier) Verify(payload []byte, signature string) (policies.PaymentEvent, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, v.Secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return policies.PaymentEvent{}, fmt.Errorf("%w: %v", policies.ErrInvalidSignature, err)
	}
	out := policies.PaymentEvent{ID: ev.ID, Type: policies.EventIgnored}
	switch ev.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		out.Type = policies.EventCheckoutCompleted
	case "checkout.session.expired":
		out.Type = policies.EventCheckoutExpired
	default:
		return out, nil
	}
	var s stripe.CheckoutSession
	if ev.Data == nil {
		return policies.PaymentEvent{}, fmt.Errorf("%w: event %s has no data", policies.ErrInvalidSignature, ev.ID)
	}
	if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
		return policies.PaymentEvent{}, fmt.Errorf("%w: decode session: %v", policies.ErrInvalidSignature, err)
	}
	out.Session = toSession(&s)
	return out, nil
}

var _ policies.PaymentEventVerifier = (*Verifier)(nil)
