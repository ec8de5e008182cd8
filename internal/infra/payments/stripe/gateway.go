package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"

	"realty/internal/app/policies"
)

var ErrNotConfigured = errors.New("stripe: credentials missing")

// Gateway creates hosted checkout sessions.
type Gateway struct {
	client session.Client
}

// NewGateway talks to the live API; backend may be nil.
func NewGateway(secretKey string, backend stripe.Backend) (*Gateway, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, ErrNotConfigured
	}
	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}
	return &Gateway{client: session.Client{B: backend, Key: secretKey}}, nil
}

func (g *Gateway) CreateCheckoutSession(ctx context.Context, req policies.CheckoutSessionRequest) (policies.CheckoutSession, error) {
	currency := strings.ToLower(req.Currency)
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		PhoneNumberCollection: &stripe.CheckoutSessionPhoneNumberCollectionParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	if req.ClientRef != "" {
		params.ClientReferenceID = stripe.String(req.ClientRef)
	}
	if !req.ExpiresAt.IsZero() {
		params.ExpiresAt = stripe.Int64(req.ExpiresAt.Unix())
	}
	for _, item := range req.LineItems {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(item.Amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
			},
			Quantity: stripe.Int64(1),
		})
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	s, err := g.client.New(params)
	if err != nil {
		return policies.CheckoutSession{}, mapError(err)
	}
	return toSession(s), nil
}

func (g *Gateway) RetrieveCheckoutSession(ctx context.Context, id string) (policies.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := g.client.Get(id, params)
	if err != nil {
		return policies.CheckoutSession{}, mapError(err)
	}
	return toSession(s), nil
}

func toSession(s *stripe.CheckoutSession) policies.CheckoutSession {
	out := policies.CheckoutSession{
		ID:          s.ID,
		URL:         s.URL,
		Paid:        s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Expired:     s.Status == stripe.CheckoutSessionStatusExpired,
		AmountTotal: s.AmountTotal,
		Currency:    strings.ToUpper(string(s.Currency)),
		Metadata:    s.Metadata,
	}
	if s.CustomerDetails != nil {
		out.Customer = policies.Contact{
			Name:  s.CustomerDetails.Name,
			Email: s.CustomerDetails.Email,
			Phone: s.CustomerDetails.Phone,
		}
	}
	if out.Customer.Email == "" {
		out.Customer.Email = s.CustomerEmail
	}
	return out
}

// mapError sorts provider failures into retryable, duplicate and terminal ones.
func mapError(err error) error {
	var serr *stripe.Error
	if !errors.As(err, &serr) {
		return fmt.Errorf("%w: %v", policies.ErrProviderUnavailable, err)
	}
	switch {
	case serr.Type == stripe.ErrorTypeIdempotency:
		return fmt.Errorf("%w: %s", policies.ErrDuplicateSession, serr.Msg)
	case serr.HTTPStatusCode == http.StatusNotFound || serr.Code == stripe.ErrorCodeResourceMissing:
		return fmt.Errorf("%w: %s", policies.ErrSessionNotFound, serr.Msg)
	case serr.HTTPStatusCode == http.StatusTooManyRequests || serr.HTTPStatusCode >= 500:
		return fmt.Errorf("%w: %s", policies.ErrProviderUnavailable, serr.Msg)
	}
	return fmt.Errorf("stripe: %s", serr.Msg)
}

var _ policies.PaymentGateway = (*Gateway)(nil)
