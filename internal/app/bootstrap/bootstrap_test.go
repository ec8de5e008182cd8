package bootstrap_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realty/internal/app/bootstrap"
	"realty/internal/app/commands"
	"realty/internal/app/dto"
	"realty/internal/app/handlers/availability"
	"realty/internal/app/handlers/calendarsync"
	"realty/internal/app/handlers/checkout"
	"realty/internal/app/handlers/payments"
	"realty/internal/app/handlers/properties"
	"realty/internal/app/handlers/quotes"
	"realty/internal/app/handlers/reservations"
	"realty/internal/app/policies"
	"realty/internal/app/queries"
	domainavailability "realty/internal/domain/availability"
	"realty/internal/domain/reservation"
	"realty/internal/domain/shared/daterange"
	"realty/internal/domain/shared/money"
	"realty/internal/infra/ical"
	"realty/internal/infra/storage/memory"
	"realty/internal/infra/validation"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeGateway struct {
	mu       sync.Mutex
	byKey    map[string]string
	sessions map[string]policies.CheckoutSession
	requests []policies.CheckoutSessionRequest
	fail     error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{byKey: map[string]string{}, sessions: map[string]policies.CheckoutSession{}}
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, req policies.CheckoutSessionRequest) (policies.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail != nil {
		return policies.CheckoutSession{}, g.fail
	}
	if _, ok := g.byKey[req.IdempotencyKey]; ok {
		return policies.CheckoutSession{}, policies.ErrDuplicateSession
	}
	g.requests = append(g.requests, req)
	var total int64
	for _, item := range req.LineItems {
		total += item.Amount
	}
	id := fmt.Sprintf("cs_test_%d", len(g.requests))
	s := policies.CheckoutSession{
		ID:          id,
		URL:         "https://pay.example/" + id,
		AmountTotal: total,
		Currency:    req.Currency,
		Metadata:    req.Metadata,
	}
	g.byKey[req.IdempotencyKey] = id
	g.sessions[id] = s
	return s, nil
}

func (g *fakeGateway) RetrieveCheckoutSession(_ context.Context, id string) (policies.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[id]
	if !ok {
		return policies.CheckoutSession{}, policies.ErrSessionNotFound
	}
	return s, nil
}

func (g *fakeGateway) markPaid(id string) policies.CheckoutSession {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.sessions[id]
	s.Paid = true
	s.Customer = policies.Contact{Name: "Ada Lovelace", Email: "ada@example.com"}
	g.sessions[id] = s
	return s
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

// fakeVerifier accepts payloads it was told about, signed with "valid".
type fakeVerifier struct {
	mu     sync.Mutex
	events map[string]policies.PaymentEvent
}

func (v *fakeVerifier) deliver(ev policies.PaymentEvent) []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.events == nil {
		v.events = map[string]policies.PaymentEvent{}
	}
	payload := fmt.Sprintf(`{"id":%q,"n":%d}`, ev.ID, len(v.events))
	v.events[payload] = ev
	return []byte(payload)
}

func (v *fakeVerifier) Verify(payload []byte, signature string) (policies.PaymentEvent, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	ev, ok := v.events[string(payload)]
	if !ok || signature != "valid" {
		return policies.PaymentEvent{}, errors.New("signature mismatch")
	}
	return ev, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []policies.Email
}

func (n *fakeNotifier) Send(_ context.Context, email policies.Email) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, email)
	return nil
}

func (n *fakeNotifier) templates() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, e := range n.sent {
		out = append(out, e.Template)
	}
	return out
}

type fakeFetcher struct {
	mu    sync.Mutex
	feeds map[string][]byte
}

func (f *fakeFetcher) set(url string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.feeds == nil {
		f.feeds = map[string][]byte{}
	}
	f.feeds[url] = body
}

func (f *fakeFetcher) remove(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.feeds, url)
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.feeds[url]
	if !ok {
		return nil, errors.New("feed unreachable")
	}
	return body, nil
}

type fakePublisher struct {
	keys   []string
	bodies [][]byte
}

func (p *fakePublisher) Publish(_ context.Context, key string, body []byte) (string, error) {
	p.keys = append(p.keys, key)
	p.bodies = append(p.bodies, body)
	return "https://cdn.example/" + key, nil
}

type harness struct {
	app       *bootstrap.App
	deps      bootstrap.Deps
	settings  bootstrap.Settings
	store     memory.Factory
	outbox    *memory.Outbox
	clock     *clock
	gateway   *fakeGateway
	verifier  *fakeVerifier
	notifier  *fakeNotifier
	fetcher   *fakeFetcher
	publisher *fakePublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:     memory.NewStore(),
		outbox:    memory.NewOutbox(),
		clock:     &clock{t: time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC)},
		gateway:   newFakeGateway(),
		verifier:  &fakeVerifier{},
		notifier:  &fakeNotifier{},
		fetcher:   &fakeFetcher{},
		publisher: &fakePublisher{},
	}
	h.deps = bootstrap.Deps{
		UoWFactory:  h.store,
		Outbox:      h.outbox,
		Idempotency: memory.NewIdempotencyStore(time.Hour),
		Validator:   validation.New(),
		Gateway:     h.gateway,
		Verifier:    h.verifier,
		Inbox:       memory.NewInbox(),
		Notifier:    h.notifier,
		Fetcher:     h.fetcher,
		Codec:       ical.Codec{ProductID: "-//realty//test//EN"},
		Locker:      memory.NewLocker(),
		Publisher:   h.publisher,
		Now:         h.clock.Now,
	}
	h.settings = bootstrap.Settings{
		SuccessURL:          "https://stay.example/thanks",
		CancelURL:           "https://stay.example/cancel",
		CheckoutSessionTTL:  time.Hour,
		PendingTTL:          24 * time.Hour,
		EnforceAvailability: true,
		CalendarDomain:      "stay.example",
	}
	app, err := bootstrap.Build(h.deps, h.settings)
	require.NoError(t, err)
	h.app = app
	return h
}

func (h *harness) saveProperty(t *testing.T, cmd properties.SavePropertyCommand) dto.Property {
	t.Helper()
	out, err := commands.Dispatch[properties.SavePropertyCommand, *dto.Property](context.Background(), h.app.Commands, cmd)
	require.NoError(t, err)
	return *out
}

func (h *harness) quote(t *testing.T, id, in, out string) dto.Quote {
	t.Helper()
	q, err := queries.Ask[quotes.GetQuoteQuery, dto.Quote](context.Background(), h.app.Queries, quotes.GetQuoteQuery{PropertyID: id, CheckIn: in, CheckOut: out})
	require.NoError(t, err)
	return q
}

func (h *harness) checkout(ctx context.Context, cmd checkout.CreateCheckoutCommand) (*dto.CheckoutResult, error) {
	return commands.Dispatch[checkout.CreateCheckoutCommand, *dto.CheckoutResult](ctx, h.app.Commands, cmd)
}

func (h *harness) webhook(ctx context.Context, payload []byte) (*dto.Fulfillment, error) {
	return commands.Dispatch[payments.HandleWebhookCommand, *dto.Fulfillment](ctx, h.app.Commands, payments.HandleWebhookCommand{
		Payload:   payload,
		Signature: "valid",
	})
}

func cabin() properties.SavePropertyCommand {
	return properties.SavePropertyCommand{
		ID:            "cabin",
		Name:          "Lakeside Cabin",
		BaseRateCents: 10000,
		MaxGuests:     4,
	}
}

func booking(key string) checkout.CreateCheckoutCommand {
	return checkout.CreateCheckoutCommand{
		PropertyID:      "cabin",
		CheckIn:         "2025-12-24",
		CheckOut:        "2025-12-26",
		Guests:          2,
		GuestName:       "Ada Lovelace",
		GuestEmail:      "ada@example.com",
		IdempotencyKeyV: key,
	}
}

func TestBuildRequiresCoreDependencies(t *testing.T) {
	_, err := bootstrap.Build(bootstrap.Deps{}, bootstrap.Settings{})
	require.ErrorIs(t, err, bootstrap.ErrMissingDependency)
}

func TestQuoteUsesBaseRateAndHolidayRule(t *testing.T) {
	h := newHarness(t)
	h.saveProperty(t, cabin())

	q := h.quote(t, "cabin", "2025-12-24", "2025-12-26")
	assert.Equal(t, 2, q.Summary.Nights)
	assert.Equal(t, "200.00", q.Summary.BaseSubtotal.String())
	assert.True(t, q.Available)

	_, err := commands.Dispatch[properties.AddRateRuleCommand, *dto.RateRule](context.Background(), h.app.Commands, properties.AddRateRuleCommand{
		PropertyID: "cabin",
		Start:      "2025-12-24",
		End:        "2025-12-31",
		RateCents:  30000,
		Priority:   1,
	})
	require.NoError(t, err)

	q = h.quote(t, "cabin", "2025-12-24", "2025-12-26")
	assert.Equal(t, "600.00", q.Summary.BaseSubtotal.String())
	for _, n := range q.Nights {
		assert.Equal(t, "rule", n.Source)
	}
}

func TestQuoteAddsCleaningFeeAndTax(t *testing.T) {
	h := newHarness(t)
	cmd := cabin()
	cmd.BaseRateCents = 30000
	cmd.CleaningFeeCents = 5000
	cmd.TaxRate = 0.10
	h.saveProperty(t, cmd)

	q := h.quote(t, "cabin", "2025-12-24", "2025-12-26")
	assert.Equal(t, "600.00", q.Summary.BaseSubtotal.String())
	assert.Equal(t, "65.00", q.Summary.TaxAmount.String())
	assert.Equal(t, "715.00", q.Summary.Total.String())
}

func TestQueryValidationRejectsMissingFields(t *testing.T) {
	h := newHarness(t)
	_, err := queries.Ask[quotes.GetQuoteQuery, dto.Quote](context.Background(), h.app.Queries, quotes.GetQuoteQuery{PropertyID: "cabin"})
	require.ErrorIs(t, err, validation.ErrInvalid)
}

func TestCreatePendingTwiceKeepsOneRowWithLatestGuest(t *testing.T) {
	h := newHarness(t)
	h.saveProperty(t, cabin())
	ctx := context.Background()
	dr, err := daterange.Parse("2026-03-01", "2026-03-04")
	require.NoError(t, err)

	cmd := reservations.CreatePendingCommand{
		PropertyID: "cabin",
		Range:      dr,
		Guests:     2,
		Guest:      reservation.Guest{Name: "Ada Lovelace", Email: "ada@example.com", Phone: "+44 20 0000 0001"},
		Total:      money.Must(30000, "USD"),
		SessionID:  "cs_same",
	}
	first, err := commands.Dispatch[reservations.CreatePendingCommand, *dto.Reservation](ctx, h.app.Commands, cmd)
	require.NoError(t, err)

	cmd.Guest = reservation.Guest{Name: "Grace Hopper", Email: "grace@example.com", Phone: "+1 555 0100"}
	cmd.Guests = 3
	second, err := commands.Dispatch[reservations.CreatePendingCommand, *dto.Reservation](ctx, h.app.Commands, cmd)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	rows, err := h.store.ReservationsRepo.ListStalePending(ctx, h.clock.Now().Add(time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	stored := rows[0]
	assert.Equal(t, "cs_same", stored.SessionID)
	assert.Equal(t, reservation.StatusPending, stored.Status)
	assert.Equal(t, 3, stored.Guests)
	assert.Equal(t, "Grace Hopper", stored.Guest.Name)
	assert.Equal(t, "grace@example.com", stored.Guest.Email)
	assert.Equal(t, "+1 555 0100", stored.Guest.Phone)
}

func TestWebhookRedeliveryFulfilsOnce(t *testing.T) {
	h := newHarness(t)
	h.saveProperty(t, cabin())
	ctx := context.Background()

	res, err := h.checkout(ctx, booking("key-1"))
	require.NoError(t, err)
	require.NotEmpty(t, res.ReservationID)
	assert.Equal(t, "https://pay.example/"+res.SessionID, res.URL)

	session := h.gateway.markPaid(res.SessionID)
	first := h.verifier.deliver(policies.PaymentEvent{ID: "evt_1", Type: policies.EventCheckoutCompleted, Session: session})
	second := h.verifier.deliver(policies.PaymentEvent{ID: "evt_2", Type: policies.EventCheckoutCompleted, Session: session})

	out, err := h.webhook(ctx, first)
	require.NoError(t, err)
	assert.True(t, out.Transitioned)
	assert.Equal(t, 2, out.EmailsSent)

	// The same event again is absorbed by the inbox.
	out, err = h.webhook(ctx, first)
	require.NoError(t, err)
	assert.True(t, out.Duplicate)

	// A distinct event for the same session finds the reservation already paid.
	out, err = h.webhook(ctx, second)
	require.NoError(t, err)
	assert.False(t, out.Transitioned)
	assert.Equal(t, 0, out.EmailsSent)

	stored, err := h.store.ReservationsRepo.BySessionID(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusPaid, stored.Status)
	assert.ElementsMatch(t, []string{policies.TemplateItinerary, policies.TemplateReceipt}, h.notifier.templates())

	q := h.quote(t, "cabin", "2025-12-25", "2025-12-27")
	assert.False(t, q.Available)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	h := newHarness(t)
	payload := h.verifier.deliver(policies.PaymentEvent{ID: "evt_1", Type: policies.EventCheckoutCompleted})
	_, err := commands.Dispatch[payments.HandleWebhookCommand, *dto.Fulfillment](context.Background(), h.app.Commands, payments.HandleWebhookCommand{
		Payload:   payload,
		Signature: "forged",
	})
	require.ErrorIs(t, err, policies.ErrInvalidSignature)
}

func TestWebhookRebuildsMissingReservationFromMetadata(t *testing.T) {
	h := newHarness(t)
	h.saveProperty(t, cabin())
	ctx := context.Background()

	session := policies.CheckoutSession{
		ID:          "cs_orphan",
		Paid:        true,
		AmountTotal: 20000,
		Currency:    "USD",
		Metadata: map[string]string{
			policies.MetaPropertyID: "cabin",
			policies.MetaCheckIn:    "2026-01-05",
			policies.MetaCheckOut:   "2026-01-08",
			policies.MetaGuests:     "3",
			policies.MetaGuestName:  "Grace Hopper",
			policies.MetaGuestEmail: "grace@example.com",
		},
	}
	out, err := h.webhook(ctx, h.verifier.deliver(policies.PaymentEvent{ID: "evt_9", Type: policies.EventCheckoutCompleted, Session: session}))
	require.NoError(t, err)
	assert.True(t, out.Transitioned)

	stored, err := h.store.ReservationsRepo.BySessionID(ctx, "cs_orphan")
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusPaid, stored.Status)
	assert.Equal(t, 3, stored.Guests)
	assert.Equal(t, "grace@example.com", stored.Guest.Email)
}

func TestWebhookRebuildKeepsGuestNotes(t *testing.T) {
	h := newHarness(t)
	h.saveProperty(t, cabin())
	ctx := context.Background()

	cmd := booking("key-notes")
	cmd.Notes = strings.Repeat("é", 600)
	res, err := h.checkout(ctx, cmd)
	require.NoError(t, err)

	sent := h.gateway.requests[0].Metadata[policies.MetaNotes]
	assert.Equal(t, strings.Repeat("é", 500), sent)

	// The provider knows a session the store lost; the rebuilt reservation keeps the notes.
	lost := h.gateway.markPaid(res.SessionID)
	lost.ID = "cs_lost"
	_, err = h.webhook(ctx, h.verifier.deliver(policies.PaymentEvent{ID: "evt_notes", Type: policies.EventCheckoutCompleted, Session: lost}))
	require.NoError(t, err)

	stored, err := h.store.ReservationsRepo.BySessionID(ctx, "cs_lost")
	require.NoError(t, err)
	assert.Equal(t, sent, stored.Notes)
}

func TestWebhookWithoutMetadataIsRejected(t *testing.T) {
	h := newHarness(t)
	session := policies.CheckoutSession{ID: "cs_bare", Paid: true}
	_, err := h.webhook(context.Background(), h.verifier.deliver(policies.PaymentEvent{ID: "evt_3", Type: policies.EventCheckoutCompleted, Session: session}))
	require.ErrorIs(t, err, reservations.ErrIncompleteMetadata)
}

func TestUnpaidCompletionIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.saveProperty(t, cabin())
	ctx := context.Background()
	res, err := h.checkout(ctx, booking("key-async"))
	require.NoError(t, err)

	session, err := h.gateway.RetrieveCheckoutSession(ctx, res.SessionID)
	require.NoError(t, err)
	out, err := h.webhook(ctx, h.verifier.deliver(policies.PaymentEvent{ID: "evt_4", Type: policies.EventCheckoutCompleted, Session: session}))
	require.NoError(t, err)
	assert.True(t, out.Ignored)
	assert.Empty(t, h.notifier.templates())
}

func TestCheckoutReplayReturnsFirstSession(t *testing.T) {
	h := newHarness(t)
	h.saveProperty(t, cabin())
	ctx := context.Background()

	first, err := h.checkout(ctx, booking("key-replay"))
	require.NoError(t, err)
	again, err := h.checkout(ctx, booking("key-replay"))
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, again.SessionID)
	assert.Equal(t, 1, h.gateway.calls())

	// The key alone identifies the attempt; a changed body still replays.
	other := booking("key-replay")
	other.Guests = 3
	replayed, err := h.checkout(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, replayed.SessionID)
	assert.Equal(t, 1, h.gateway.calls())
}

func TestCheckoutRecoversSessionAfterIdempotencyCacheLoss(t *testing.T) {
	h := newHarness(t)
	h.saveProperty(t, cabin())
	ctx := context.Background()

	first, err := h.checkout(ctx, booking("key-lost"))
	require.NoError(t, err)

	deps := h.deps
	deps.Idempotency = memory.NewIdempotencyStore(time.Hour)
	fresh, err := bootstrap.Build(deps, h.settings)
	require.NoError(t, err)

	again, err := commands.Dispatch[checkout.CreateCheckoutCommand, *dto.CheckoutResult](ctx, fresh.Commands, booking("key-lost"))
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, again.SessionID)
	assert.Equal(t, first.ReservationID, again.ReservationID)
}

func TestCheckoutRejectsBlockedDatesAndTooManyGuests(t *testing.T) {
	h := newHarness(t)
	cmd := cabin()
	cmd.FeedURLs = []string{"https://airbnb.example/cabin.ics"}
	h.saveProperty(t, cmd)
	h.fetcher.set("https://airbnb.example/cabin.ics", icsFeed("UID:x@airbnb\r\nDTSTART;VALUE=DATE:20251225\r\nDTEND;VALUE=DATE:20251226\r\n"))
	ctx := context.Background()

	_, err := commands.Dispatch[calendarsync.SyncCalendarsCommand, *dto.SyncResult](ctx, h.app.Commands, calendarsync.SyncCalendarsCommand{PropertyID: "cabin"})
	require.NoError(t, err)

	_, err = h.checkout(ctx, booking("key-blocked"))
	require.ErrorIs(t, err, domainavailability.ErrDatesUnavailable)

	crowd := booking("key-crowd")
	crowd.CheckIn, crowd.CheckOut = "2026-02-01", "2026-02-03"
	crowd.Guests = 9
	_, err = h.checkout(ctx, crowd)
	require.ErrorIs(t, err, checkout.ErrInvalidRequest)
	assert.Equal(t, 0, h.gateway.calls())
}

func TestCheckoutProviderFailureIsNotCached(t *testing.T) {
	h := newHarness(t)
	h.saveProperty(t, cabin())
	ctx := context.Background()

	h.gateway.fail = policies.ErrProviderUnavailable
	_, err := h.checkout(ctx, booking("key-flaky"))
	require.ErrorIs(t, err, policies.ErrProviderUnavailable)

	h.gateway.fail = nil
	res, err := h.checkout(ctx, booking("key-flaky"))
	require.NoError(t, err)
	assert.NotEmpty(t, res.SessionID)
}

func TestExpiredSessionAndStaleSweep(t *testing.T) {
	h := newHarness(t)
	h.saveProperty(t, cabin())
	ctx := context.Background()

	a, err := h.checkout(ctx, booking("key-a"))
	require.NoError(t, err)
	later := booking("key-b")
	later.CheckIn, later.CheckOut = "2026-03-01", "2026-03-04"
	b, err := h.checkout(ctx, later)
	require.NoError(t, err)

	session, err := h.gateway.RetrieveCheckoutSession(ctx, a.SessionID)
	require.NoError(t, err)
	out, err := h.webhook(ctx, h.verifier.deliver(policies.PaymentEvent{ID: "evt_exp", Type: policies.EventCheckoutExpired, Session: session}))
	require.NoError(t, err)
	assert.True(t, out.Transitioned)

	h.clock.Advance(25 * time.Hour)
	res, err := commands.Dispatch[reservations.ExpireStaleCommand, *dto.ExpireResult](ctx, h.app.Commands, reservations.ExpireStaleCommand{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Expired)

	stored, err := h.store.ReservationsRepo.BySessionID(ctx, b.SessionID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusExpired, stored.Status)

	// A late payment still wins over expiry.
	paid := h.gateway.markPaid(b.SessionID)
	out, err = h.webhook(ctx, h.verifier.deliver(policies.PaymentEvent{ID: "evt_late", Type: policies.EventCheckoutCompleted, Session: paid}))
	require.NoError(t, err)
	assert.True(t, out.Transitioned)
	assert.Equal(t, string(reservation.StatusPaid), out.Status)
}

func TestRetryFulfillmentUsesProviderSession(t *testing.T) {
	h := newHarness(t)
	h.saveProperty(t, cabin())
	ctx := context.Background()
	res, err := h.checkout(ctx, booking("key-retry"))
	require.NoError(t, err)
	h.gateway.markPaid(res.SessionID)

	out, err := commands.Dispatch[payments.RetryFulfillmentCommand, *dto.Fulfillment](ctx, h.app.Commands, payments.RetryFulfillmentCommand{SessionID: res.SessionID})
	require.NoError(t, err)
	assert.True(t, out.Transitioned)
	assert.Equal(t, 2, out.EmailsSent)

	out, err = commands.Dispatch[payments.RetryFulfillmentCommand, *dto.Fulfillment](ctx, h.app.Commands, payments.RetryFulfillmentCommand{SessionID: res.SessionID})
	require.NoError(t, err)
	assert.False(t, out.Transitioned)
	assert.Len(t, h.notifier.templates(), 2)
}

func icsFeed(events ...string) []byte {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//Test//EN\r\n")
	for _, e := range events {
		b.WriteString("BEGIN:VEVENT\r\n" + e + "END:VEVENT\r\n")
	}
	b.WriteString("END:VCALENDAR\r\n")
	return []byte(b.String())
}

func TestSyncReplacesSourcesAndPrunesRemovedFeeds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	airbnb, vrbo := "https://airbnb.example/cabin.ics", "https://vrbo.example/cabin.ics"
	cmd := cabin()
	cmd.FeedURLs = []string{airbnb, vrbo}
	h.saveProperty(t, cmd)

	h.fetcher.set(airbnb, icsFeed(
		"UID:a1@airbnb\r\nSUMMARY:Reserved\r\nDTSTART;VALUE=DATE:20260110\r\nDTEND;VALUE=DATE:20260113\r\n",
		"UID:a2@airbnb\r\nDTSTART;VALUE=DATE:20260113\r\nDTEND;VALUE=DATE:20260115\r\n",
	))
	h.fetcher.set(vrbo, icsFeed("UID:v1@vrbo\r\nDTSTART;VALUE=DATE:20260201\r\nDTEND;VALUE=DATE:20260203\r\n"))

	res, err := commands.Dispatch[calendarsync.SyncCalendarsCommand, *dto.SyncResult](ctx, h.app.Commands, calendarsync.SyncCalendarsCommand{PropertyID: "cabin"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Feeds)
	assert.Equal(t, 3, res.Imported)

	blocked, err := queries.Ask[availability.GetBlockedDatesQuery, dto.BlockedDates](ctx, h.app.Queries, availability.GetBlockedDatesQuery{PropertyID: "cabin"})
	require.NoError(t, err)
	assert.Len(t, blocked.Ranges, 3)
	assert.Equal(t, []dto.Span{
		{CheckIn: "2026-01-10", CheckOut: "2026-01-15"},
		{CheckIn: "2026-02-01", CheckOut: "2026-02-03"},
	}, blocked.Merged)

	// A feed that shrinks replaces its blocks; an unreachable feed keeps them.
	h.fetcher.set(airbnb, icsFeed("UID:a1@airbnb\r\nDTSTART;VALUE=DATE:20260110\r\nDTEND;VALUE=DATE:20260111\r\n"))
	h.fetcher.remove(vrbo)
	res, err = commands.Dispatch[calendarsync.SyncCalendarsCommand, *dto.SyncResult](ctx, h.app.Commands, calendarsync.SyncCalendarsCommand{PropertyID: "cabin"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Feeds)
	assert.Equal(t, 1, res.Skipped)

	blocked, err = queries.Ask[availability.GetBlockedDatesQuery, dto.BlockedDates](ctx, h.app.Queries, availability.GetBlockedDatesQuery{PropertyID: "cabin"})
	require.NoError(t, err)
	assert.Len(t, blocked.Ranges, 2)

	// Dropping the feed from the property prunes its blocks.
	cmd.FeedURLs = []string{airbnb}
	h.saveProperty(t, cmd)
	res, err = commands.Dispatch[calendarsync.SyncCalendarsCommand, *dto.SyncResult](ctx, h.app.Commands, calendarsync.SyncCalendarsCommand{PropertyID: "cabin"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pruned)

	all, err := commands.Dispatch[calendarsync.SyncAllCommand, *dto.SyncAllResult](ctx, h.app.Commands, calendarsync.SyncAllCommand{})
	require.NoError(t, err)
	assert.Equal(t, 1, all.Properties)
}

func TestSyncStoresRepeatedFeedEventsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	feed := "https://airbnb.example/cabin.ics"
	cmd := cabin()
	cmd.FeedURLs = []string{feed}
	h.saveProperty(t, cmd)

	event := "UID:a1@airbnb\r\nDTSTART;VALUE=DATE:20260110\r\nDTEND;VALUE=DATE:20260113\r\n"
	h.fetcher.set(feed, icsFeed(event, event, "UID:a2@airbnb\r\nDTSTART;VALUE=DATE:20260120\r\nDTEND;VALUE=DATE:20260121\r\n"))

	res, err := commands.Dispatch[calendarsync.SyncCalendarsCommand, *dto.SyncResult](ctx, h.app.Commands, calendarsync.SyncCalendarsCommand{PropertyID: "cabin"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)

	blocked, err := queries.Ask[availability.GetBlockedDatesQuery, dto.BlockedDates](ctx, h.app.Queries, availability.GetBlockedDatesQuery{PropertyID: "cabin"})
	require.NoError(t, err)
	assert.Len(t, blocked.Ranges, 2)
}

func TestSyncRefusesConcurrentRun(t *testing.T) {
	h := newHarness(t)
	h.saveProperty(t, cabin())
	ctx := context.Background()

	release, err := h.deps.Locker.Acquire(ctx, "calendar-sync:cabin", time.Minute)
	require.NoError(t, err)
	defer release()

	_, err = commands.Dispatch[calendarsync.SyncCalendarsCommand, *dto.SyncResult](ctx, h.app.Commands, calendarsync.SyncCalendarsCommand{PropertyID: "cabin"})
	require.ErrorIs(t, err, calendarsync.ErrSyncInProgress)
}

func TestExportAndPublishCalendar(t *testing.T) {
	h := newHarness(t)
	h.saveProperty(t, cabin())
	ctx := context.Background()
	res, err := h.checkout(ctx, booking("key-export"))
	require.NoError(t, err)
	paid := h.gateway.markPaid(res.SessionID)
	_, err = h.webhook(ctx, h.verifier.deliver(policies.PaymentEvent{ID: "evt_exp_1", Type: policies.EventCheckoutCompleted, Session: paid}))
	require.NoError(t, err)

	file, err := queries.Ask[availability.ExportCalendarQuery, dto.CalendarFile](ctx, h.app.Queries, availability.ExportCalendarQuery{PropertyID: "cabin"})
	require.NoError(t, err)
	assert.Equal(t, "lakeside-cabin.ics", file.Name)
	assert.Contains(t, file.ContentType, "text/calendar")
	body := string(file.Body)
	assert.Contains(t, body, "UID:reservation-"+res.ReservationID+"@stay.example")
	assert.Contains(t, body, "DTSTART;VALUE=DATE:20251224")
	assert.Contains(t, body, "DTEND;VALUE=DATE:20251226")

	pub, err := commands.Dispatch[availability.PublishCalendarCommand, *dto.PublishedCalendar](ctx, h.app.Commands, availability.PublishCalendarCommand{PropertyID: "cabin"})
	require.NoError(t, err)
	assert.Equal(t, 1, pub.Events)
	assert.Equal(t, "https://cdn.example/calendars/lakeside-cabin.ics", pub.URL)
	require.Len(t, h.publisher.bodies, 1)
}

func TestPublishWithoutPublisherIsDisabled(t *testing.T) {
	h := newHarness(t)
	deps := h.deps
	deps.Publisher = nil
	app, err := bootstrap.Build(deps, h.settings)
	require.NoError(t, err)
	_, err = commands.Dispatch[availability.PublishCalendarCommand, *dto.PublishedCalendar](context.Background(), app.Commands, availability.PublishCalendarCommand{PropertyID: "cabin"})
	require.ErrorIs(t, err, availability.ErrPublisherDisabled)
}
