package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"realty/internal/domain/property"
	"realty/internal/domain/reservation"
	"realty/internal/domain/shared/events"
)

// ReservationRepository indexes reservations by id, session id and checkout key.
type ReservationRepository struct {
	mu        sync.RWMutex
	items     map[reservation.ID]reservation.Reservation
	bySession map[string]reservation.ID
}

func NewReservationRepository() *ReservationRepository {
	return &ReservationRepository{
		items:     make(map[reservation.ID]reservation.Reservation),
		bySession: make(map[string]reservation.ID),
	}
}

func (r *ReservationRepository) BySessionID(_ context.Context, sessionID string) (*reservation.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.bySession[sessionID]
	if !ok {
		return nil, reservation.ErrNotFound
	}
	return cloneReservation(r.items[id]), nil
}

func (r *ReservationRepository) ByCheckoutKey(_ context.Context, key string) (*reservation.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if key == "" {
		return nil, reservation.ErrNotFound
	}
	for _, item := range r.items {
		if item.CheckoutKey == key {
			return cloneReservation(item), nil
		}
	}
	return nil, reservation.ErrNotFound
}

func (r *ReservationRepository) UpsertPending(_ context.Context, in *reservation.Reservation) (*reservation.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.bySession[in.SessionID]; ok {
		stored := r.items[id]
		stored.PropertyID = in.PropertyID
		stored.Range = in.Range
		stored.Nights = in.Nights
		stored.Guests = in.Guests
		stored.Guest = in.Guest
		stored.Notes = in.Notes
		stored.Total = in.Total
		if in.CheckoutKey != "" {
			stored.CheckoutKey = in.CheckoutKey
		}
		stored.UpdatedAt = in.UpdatedAt
		stored.Version++
		r.items[id] = stored
		return cloneReservation(stored), nil
	}
	stored := *cloneReservation(*in)
	stored.Version = 1
	r.items[stored.ID] = stored
	r.bySession[stored.SessionID] = stored.ID
	in.Version = 1
	return cloneReservation(stored), nil
}

func (r *ReservationRepository) Save(_ context.Context, in *reservation.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, exists := r.items[in.ID]
	if exists && current.Version != in.Version {
		return reservation.ErrConcurrentUpdate
	}
	if !exists {
		if in.Version != 0 {
			return reservation.ErrConcurrentUpdate
		}
		if _, taken := r.bySession[in.SessionID]; taken {
			return reservation.ErrConcurrentUpdate
		}
	}
	stored := *cloneReservation(*in)
	stored.Version = in.Version + 1
	r.items[in.ID] = stored
	r.bySession[in.SessionID] = in.ID
	in.Version = stored.Version
	return nil
}

func (r *ReservationRepository) ListPaidByProperty(_ context.Context, id property.ID) ([]*reservation.Reservation, error) {
	return r.filter(func(item reservation.Reservation) bool {
		return item.PropertyID == id && item.Status == reservation.StatusPaid
	}, 0), nil
}

func (r *ReservationRepository) ListStalePending(_ context.Context, createdBefore time.Time, limit int) ([]*reservation.Reservation, error) {
	return r.filter(func(item reservation.Reservation) bool {
		return item.Status == reservation.StatusPending && item.CreatedAt.Before(createdBefore)
	}, limit), nil
}

func (r *ReservationRepository) filter(keep func(reservation.Reservation) bool, limit int) []*reservation.Reservation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*reservation.Reservation
	for _, item := range r.items {
		if keep(item) {
			out = append(out, cloneReservation(item))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// cloneReservation copies the row without its pending events.
func cloneReservation(r reservation.Reservation) *reservation.Reservation {
	r.Recorder = events.Recorder{}
	return &r
}
