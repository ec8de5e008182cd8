package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"realty/internal/domain/property"
	"realty/internal/domain/reservation"
	"realty/internal/domain/shared/daterange"
	"realty/internal/domain/shared/money"
)

type ReservationRepository struct {
	col *mongo.Collection
}

func NewReservationRepository(db *mongo.Database) *ReservationRepository {
	return &ReservationRepository{col: db.Collection("reservations")}
}

func ensureReservationIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("reservations").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "session_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "checkout_key", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "property_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
	})
	return err
}

func (r *ReservationRepository) BySessionID(ctx context.Context, sessionID string) (*reservation.Reservation, error) {
	return r.findOne(ctx, bson.M{"session_id": sessionID})
}

func (r *ReservationRepository) ByCheckoutKey(ctx context.Context, key string) (*reservation.Reservation, error) {
	if key == "" {
		return nil, reservation.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"checkout_key": key})
}

func (r *ReservationRepository) findOne(ctx context.Context, filter bson.M) (*reservation.Reservation, error) {
	var doc reservationDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservation.ErrNotFound
		}
		return nil, err
	}
	return doc.toDomain()
}

// UpsertPending keys on session_id. Booking fields are refreshed on every call while
// status, id and creation time are only written on insert.
func (r *ReservationRepository) UpsertPending(ctx context.Context, in *reservation.Reservation) (*reservation.Reservation, error) {
	doc := newReservationDocument(in)
	set := bson.M{
		"property_id": doc.PropertyID,
		"checkin":     doc.CheckIn,
		"checkout":    doc.CheckOut,
		"nights":      doc.Nights,
		"guests":      doc.Guests,
		"guest":       doc.Guest,
		"notes":       doc.Notes,
		"total":       doc.Total,
		"currency":    doc.Currency,
		"updated_at":  doc.UpdatedAt,
	}
	if doc.CheckoutKey != "" {
		set["checkout_key"] = doc.CheckoutKey
	}
	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"_id":        doc.ID,
			"status":     string(reservation.StatusPending),
			"created_at": doc.CreatedAt,
		},
		"$inc": bson.M{"version": int64(1)},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var stored reservationDocument
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"session_id": doc.SessionID}, update, opts).Decode(&stored); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, reservation.ErrConcurrentUpdate
		}
		return nil, err
	}
	out, err := stored.toDomain()
	if err != nil {
		return nil, err
	}
	if out.ID == in.ID {
		in.Version = out.Version
	}
	return out, nil
}

// Save inserts new rows and otherwise replaces the row only when its version is unchanged.
func (r *ReservationRepository) Save(ctx context.Context, in *reservation.Reservation) error {
	doc := newReservationDocument(in)
	doc.Version = in.Version + 1
	if in.Version == 0 {
		if _, err := r.col.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return reservation.ErrConcurrentUpdate
			}
			return err
		}
		in.Version = doc.Version
		return nil
	}
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID, "version": in.Version}, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return reservation.ErrConcurrentUpdate
		}
		return err
	}
	if res.MatchedCount == 0 {
		return reservation.ErrConcurrentUpdate
	}
	in.Version = doc.Version
	return nil
}

func (r *ReservationRepository) ListPaidByProperty(ctx context.Context, id property.ID) ([]*reservation.Reservation, error) {
	filter := bson.M{"property_id": string(id), "status": string(reservation.StatusPaid)}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "checkin", Value: 1}, {Key: "_id", Value: 1}}))
}

func (r *ReservationRepository) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*reservation.Reservation, error) {
	filter := bson.M{"status": string(reservation.StatusPending), "created_at": bson.M{"$lt": createdBefore}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, filter, opts)
}

func (r *ReservationRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*reservation.Reservation, error) {
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []reservationDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*reservation.Reservation, 0, len(docs))
	for _, d := range docs {
		res, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

type guestDocument struct {
	Name  string `bson:"name"`
	Email string `bson:"email"`
	Phone string `bson:"phone,omitempty"`
}

type reservationDocument struct {
	ID          string        `bson:"_id"`
	PropertyID  string        `bson:"property_id"`
	CheckIn     string        `bson:"checkin"`
	CheckOut    string        `bson:"checkout"`
	Nights      int           `bson:"nights"`
	Guests      int           `bson:"guests"`
	Guest       guestDocument `bson:"guest"`
	Notes       string        `bson:"notes,omitempty"`
	Total       int64         `bson:"total"`
	Currency    string        `bson:"currency"`
	SessionID   string        `bson:"session_id"`
	CheckoutKey string        `bson:"checkout_key,omitempty"`
	Status      string        `bson:"status"`
	PaidAt      *time.Time    `bson:"paid_at,omitempty"`
	CreatedAt   time.Time     `bson:"created_at"`
	UpdatedAt   time.Time     `bson:"updated_at"`
	Version     int64         `bson:"version"`
}

func newReservationDocument(r *reservation.Reservation) reservationDocument {
	doc := reservationDocument{
		ID:          string(r.ID),
		PropertyID:  string(r.PropertyID),
		CheckIn:     daterange.FormatDay(r.Range.CheckIn),
		CheckOut:    daterange.FormatDay(r.Range.CheckOut),
		Nights:      r.Nights,
		Guests:      r.Guests,
		Guest:       guestDocument{Name: r.Guest.Name, Email: r.Guest.Email, Phone: r.Guest.Phone},
		Notes:       r.Notes,
		Total:       r.Total.Amount,
		Currency:    r.Total.Currency,
		SessionID:   r.SessionID,
		CheckoutKey: r.CheckoutKey,
		Status:      string(r.Status),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		Version:     r.Version,
	}
	if !r.PaidAt.IsZero() {
		paid := r.PaidAt
		doc.PaidAt = &paid
	}
	return doc
}

func (d reservationDocument) toDomain() (*reservation.Reservation, error) {
	dr, err := daterange.Parse(d.CheckIn, d.CheckOut)
	if err != nil {
		return nil, err
	}
	r := &reservation.Reservation{
		ID:          reservation.ID(d.ID),
		PropertyID:  property.ID(d.PropertyID),
		Range:       dr,
		Nights:      d.Nights,
		Guests:      d.Guests,
		Guest:       reservation.Guest{Name: d.Guest.Name, Email: d.Guest.Email, Phone: d.Guest.Phone},
		Notes:       d.Notes,
		Total:       money.Money{Amount: d.Total, Currency: d.Currency},
		SessionID:   d.SessionID,
		CheckoutKey: d.CheckoutKey,
		Status:      reservation.Status(d.Status),
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
		Version:     d.Version,
	}
	if d.PaidAt != nil {
		r.PaidAt = d.PaidAt.UTC()
	}
	return r, nil
}
