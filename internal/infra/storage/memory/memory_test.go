package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realty/internal/app/policies"
	"realty/internal/domain/availability"
	"realty/internal/domain/reservation"
	"realty/internal/domain/shared/daterange"
	"realty/internal/domain/shared/money"
)

func newPending(t *testing.T, id, session string, total int64) *reservation.Reservation {
	t.Helper()
	dr, err := daterange.Parse("2025-12-24", "2025-12-26")
	require.NoError(t, err)
	r, err := reservation.NewPending(reservation.PendingParams{
		ID:          reservation.ID(id),
		PropertyID:  "villa",
		Range:       dr,
		Guests:      2,
		Guest:       reservation.Guest{Name: "Ada", Email: "ada@example.com"},
		Total:       money.Must(total, "USD"),
		SessionID:   session,
		CheckoutKey: "key-" + id,
		Now:         time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return r
}

func TestUpsertPendingNeverChangesStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewReservationRepository()

	first, err := repo.UpsertPending(ctx, newPending(t, "r1", "cs_1", 71500))
	require.NoError(t, err)
	assert.Equal(t, reservation.ID("r1"), first.ID)

	_, err = first.MarkPaid(time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, first))

	again, err := repo.UpsertPending(ctx, newPending(t, "r2", "cs_1", 80000))
	require.NoError(t, err)
	assert.Equal(t, reservation.ID("r1"), again.ID)
	assert.Equal(t, reservation.StatusPaid, again.Status)
	assert.Equal(t, int64(80000), again.Total.Amount)

	byKey, err := repo.ByCheckoutKey(ctx, "key-r2")
	require.NoError(t, err)
	assert.Equal(t, reservation.ID("r1"), byKey.ID)
}

func TestSaveDetectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewReservationRepository()
	_, err := repo.UpsertPending(ctx, newPending(t, "r1", "cs_1", 100))
	require.NoError(t, err)

	a, err := repo.BySessionID(ctx, "cs_1")
	require.NoError(t, err)
	b, err := repo.BySessionID(ctx, "cs_1")
	require.NoError(t, err)

	_, _ = a.MarkPaid(time.Now())
	require.NoError(t, repo.Save(ctx, a))
	_, _ = b.MarkPaid(time.Now())
	assert.ErrorIs(t, repo.Save(ctx, b), reservation.ErrConcurrentUpdate)

	paid, err := repo.ListPaidByProperty(ctx, "villa")
	require.NoError(t, err)
	assert.Len(t, paid, 1)
}

func TestListStalePending(t *testing.T) {
	ctx := context.Background()
	repo := NewReservationRepository()
	_, err := repo.UpsertPending(ctx, newPending(t, "r1", "cs_1", 100))
	require.NoError(t, err)

	stale, err := repo.ListStalePending(ctx, time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC), 10)
	require.NoError(t, err)
	assert.Len(t, stale, 1)

	stale, err = repo.ListStalePending(ctx, time.Date(2025, 10, 31, 0, 0, 0, 0, time.UTC), 10)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestBlocksReplaceAndPrune(t *testing.T) {
	ctx := context.Background()
	repo := NewBlockRepository()
	d := func(s string) time.Time { v, _ := daterange.ParseDay(s); return v }
	mk := func(src, uid, start, end string) availability.ExternalBlock {
		b, err := availability.NewExternalBlock("villa", src, uid, "", d(start), d(end), time.Now())
		require.NoError(t, err)
		return b
	}

	require.NoError(t, repo.ReplaceForSource(ctx, "villa", "a", []availability.ExternalBlock{mk("a", "1", "2025-12-01", "2025-12-02"), mk("a", "2", "2025-12-10", "2025-12-10")}))
	require.NoError(t, repo.ReplaceForSource(ctx, "villa", "b", []availability.ExternalBlock{mk("b", "1", "2025-12-05", "2025-12-06")}))
	require.NoError(t, repo.ReplaceForSource(ctx, "villa", "a", []availability.ExternalBlock{mk("a", "3", "2025-12-20", "2025-12-21")}))

	all, err := repo.ListByProperty(ctx, "villa")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].Source)
	assert.Equal(t, "3", all[1].UID)

	removed, err := repo.DeleteSourcesExcept(ctx, "villa", []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestLocker(t *testing.T) {
	l := NewLocker()
	release, err := l.Acquire(context.Background(), "k", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(context.Background(), "k", time.Minute)
	assert.ErrorIs(t, err, policies.ErrLockHeld)

	release()
	release()
	again, err := l.Acquire(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	again()
}
