package reservation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realty/internal/domain/shared/daterange"
	"realty/internal/domain/shared/money"
)

func pending(t *testing.T) *Reservation {
	t.Helper()
	dr, err := daterange.Parse("2025-12-24", "2025-12-26")
	require.NoError(t, err)
	r, err := NewPending(PendingParams{
		ID:         "res-1",
		PropertyID: "villa",
		Range:      dr,
		Guests:     2,
		Guest:      Guest{Name: " Ada ", Email: "ADA@example.com"},
		Total:      money.Must(71500, "USD"),
		SessionID:  "cs_test_1",
		Now:        time.Date(2025, 11, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return r
}

func TestNewPending(t *testing.T) {
	r := pending(t)
	assert.Equal(t, StatusPending, r.Status)
	assert.Equal(t, 2, r.Nights)
	assert.Equal(t, "Ada", r.Guest.Name)
	assert.Equal(t, "ada@example.com", r.Guest.Email)

	evs := r.Drain()
	require.Len(t, evs, 1)
	assert.Equal(t, "reservation.pending", evs[0].EventName())
}

func TestNewPendingValidation(t *testing.T) {
	dr, _ := daterange.Parse("2025-12-24", "2025-12-26")
	base := PendingParams{PropertyID: "villa", Range: dr, Guests: 1, Guest: Guest{Name: "A", Email: "a@b.c"}, Total: money.Must(1, "USD"), SessionID: "cs"}

	p := base
	p.SessionID = ""
	_, err := NewPending(p)
	assert.ErrorIs(t, err, ErrSessionRequired)

	p = base
	p.Guests = 0
	_, err = NewPending(p)
	assert.ErrorIs(t, err, ErrInvalidGuests)

	p = base
	p.Guest.Email = ""
	_, err = NewPending(p)
	assert.ErrorIs(t, err, ErrGuestRequired)

	p = base
	p.Total = money.Money{}
	_, err = NewPending(p)
	assert.ErrorIs(t, err, ErrInvalidTotal)
}

func TestMarkPaidIsIdempotent(t *testing.T) {
	r := pending(t)
	r.Drain()
	now := time.Date(2025, 11, 1, 11, 0, 0, 0, time.UTC)

	changed, err := r.MarkPaid(now)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, StatusPaid, r.Status)
	assert.Equal(t, now, r.PaidAt)

	changed, err = r.MarkPaid(now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, now, r.PaidAt)

	evs := r.Drain()
	require.Len(t, evs, 1)
	assert.Equal(t, "reservation.paid", evs[0].EventName())
}

func TestExpireAndLatePayment(t *testing.T) {
	r := pending(t)
	now := time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC)

	changed, err := r.Expire(now)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, StatusExpired, r.Status)

	changed, err = r.MarkPaid(now)
	require.NoError(t, err)
	assert.True(t, changed)

	_, err = r.Expire(now)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestFillContactOnlyFillsBlanks(t *testing.T) {
	r := pending(t)
	changed := r.FillContact(Guest{Name: "Other", Email: "other@example.com", Phone: "+1 555"}, time.Now())
	assert.True(t, changed)
	assert.Equal(t, "Ada", r.Guest.Name)
	assert.Equal(t, "ada@example.com", r.Guest.Email)
	assert.Equal(t, "+1 555", r.Guest.Phone)

	assert.False(t, r.FillContact(Guest{Phone: "+1 777"}, time.Now()))
}
