package stripe

import (
	"context"
	"fmt"

	"realty/internal/app/policies"
)

// Disabled stands in for the gateway and verifier when no keys are configured, so a
// local environment can still quote and browse availability.
type Disabled struct{}

func (Disabled) CreateCheckoutSession(context.Context, policies.CheckoutSessionRequest) (policies.CheckoutSession, error) {
	return policies.CheckoutSession{}, fmt.Errorf("%w: %v", policies.ErrProviderUnavailable, ErrNotConfigured)
}

func (Disabled) RetrieveCheckoutSession(context.Context, string) (policies.CheckoutSession, error) {
	return policies.CheckoutSession{}, fmt.Errorf("%w: %v", policies.ErrProviderUnavailable, ErrNotConfigured)
}

func (Disabled) Verify([]byte, string) (policies.PaymentEvent, error) {
	return policies.PaymentEvent{}, fmt.Errorf("%w: webhook secret missing", policies.ErrInvalidSignature)
}

var (
	_ policies.PaymentGateway       = Disabled{}
	_ policies.PaymentEventVerifier = Disabled{}
)
