package stripe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"realty/internal/app/policies"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *Gateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	g, err := NewGateway("sk_test_123", backend)
	require.NoError(t, err)
	return g
}

func TestCreateCheckoutSessionSendsLineItemsAndMetadata(t *testing.T) {
	var form url.Values
	var idemKey string
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))
		idemKey = r.Header.Get("Idempotency-Key")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.com/c/cs_test_1","payment_status":"unpaid","status":"open","amount_total":134200,"currency":"usd","metadata":{"property_id":"villa"}}`)
	})

	got, err := g.CreateCheckoutSession(context.Background(), policies.CheckoutSessionRequest{
		Currency:       "USD",
		LineItems:      []policies.LineItem{{Name: "Lodging", Amount: 110000}, {Name: "Cleaning fee", Amount: 12000}},
		SuccessURL:     "https://realty.example.com/success",
		CancelURL:      "https://realty.example.com/cancel",
		CustomerEmail:  "guest@example.com",
		ExpiresAt:      time.Unix(1_900_000_000, 0),
		IdempotencyKey: "key-1",
		Metadata:       map[string]string{policies.MetaPropertyID: "villa"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", got.ID)
	assert.Equal(t, "USD", got.Currency)
	assert.False(t, got.Paid)
	assert.Equal(t, "key-1", idemKey)
	assert.Equal(t, "payment", form.Get("mode"))
	assert.Equal(t, "usd", form.Get("line_items[0][price_data][currency]"))
	assert.Equal(t, "110000", form.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "Cleaning fee", form.Get("line_items[1][price_data][product_data][name]"))
	assert.Equal(t, "villa", form.Get("metadata[property_id]"))
	assert.Equal(t, "1900000000", form.Get("expires_at"))
}

func TestCreateCheckoutSessionMapsErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"idempotency", http.StatusBadRequest, `{"error":{"type":"idempotency_error","message":"Keys for idempotent requests can only be used with the same parameters"}}`, policies.ErrDuplicateSession},
		{"server", http.StatusInternalServerError, `{"error":{"type":"api_error","message":"boom"}}`, policies.ErrProviderUnavailable},
		{"rate limit", http.StatusTooManyRequests, `{"error":{"type":"invalid_request_error","code":"rate_limit","message":"slow down"}}`, policies.ErrProviderUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})
			_, err := g.CreateCheckoutSession(context.Background(), policies.CheckoutSessionRequest{Currency: "USD"})
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRetrieveCheckoutSessionReadsCustomerDetails(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions/cs_paid", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cs_paid","object":"checkout.session","payment_status":"paid","status":"complete","amount_total":5000,"currency":"usd","customer_details":{"name":"Ana Guest","email":"ana@example.com","phone":"+15550100"}}`)
	})
	got, err := g.RetrieveCheckoutSession(context.Background(), "cs_paid")
	require.NoError(t, err)
	assert.True(t, got.Paid)
	assert.Equal(t, policies.Contact{Name: "Ana Guest", Email: "ana@example.com", Phone: "+15550100"}, got.Customer)
}

func signed(t *testing.T, secret, payload string) (string, []byte) {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return sp.Header, sp.Payload
}

func TestVerifierDecodesCheckoutEvents(t *testing.T) {
	v, err := NewVerifier("whsec_test")
	require.NoError(t, err)

	header, body := signed(t, "whsec_test", `{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1","object":"checkout.session","payment_status":"paid","status":"complete","metadata":{"property_id":"villa"}}}}`)
	ev, err := v.Verify(body, header)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, policies.EventCheckoutCompleted, ev.Type)
	assert.Equal(t, "cs_1", ev.Session.ID)
	assert.True(t, ev.Session.Paid)
	assert.Equal(t, "villa", ev.Session.Metadata[policies.MetaPropertyID])

	header, body = signed(t, "whsec_test", `{"id":"evt_2","object":"event","type":"checkout.session.expired","data":{"object":{"id":"cs_2","object":"checkout.session","payment_status":"unpaid","status":"expired"}}}`)
	ev, err = v.Verify(body, header)
	require.NoError(t, err)
	assert.Equal(t, policies.EventCheckoutExpired, ev.Type)
	assert.True(t, ev.Session.Expired)

	header, body = signed(t, "whsec_test", `{"id":"evt_3","object":"event","type":"invoice.paid","data":{"object":{"id":"in_1","object":"invoice"}}}`)
	ev, err = v.Verify(body, header)
	require.NoError(t, err)
	assert.Equal(t, policies.EventIgnored, ev.Type)
}

func TestVerifierRejectsBadSignature(t *testing.T) {
	v, err := NewVerifier("whsec_test")
	require.NoError(t, err)
	header, body := signed(t, "whsec_other", `{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1"}}}`)
	_, err = v.Verify(body, header)
	require.ErrorIs(t, err, policies.ErrInvalidSignature)

	_, err = v.Verify(body, "")
	require.ErrorIs(t, err, policies.ErrInvalidSignature)
}

func TestDisabledReportsUnavailable(t *testing.T) {
	var d Disabled
	_, err := d.CreateCheckoutSession(context.Background(), policies.CheckoutSessionRequest{})
	require.ErrorIs(t, err, policies.ErrProviderUnavailable)

	_, err = d.Verify([]byte("{}"), "t=1,v1=abc")
	require.ErrorIs(t, err, policies.ErrInvalidSignature)
}
