package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"realty/internal/domain/property"
	"realty/internal/domain/shared/money"
)

type PropertyRepository struct {
	col *mongo.Collection
}

func NewPropertyRepository(db *mongo.Database) *PropertyRepository {
	return &PropertyRepository{col: db.Collection("properties")}
}

func ensurePropertyIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("properties").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "slug", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *PropertyRepository) ByID(ctx context.Context, id property.ID) (*property.Property, error) {
	var doc propertyDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, property.ErrNotFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *PropertyRepository) List(ctx context.Context) ([]*property.Property, error) {
	cur, err := r.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []propertyDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*property.Property, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r *PropertyRepository) Save(ctx context.Context, p *property.Property) error {
	doc := newPropertyDocument(p)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return property.ErrInvalidSlug
	}
	return err
}

type propertyDocument struct {
	ID            string    `bson:"_id"`
	Name          string    `bson:"name"`
	Slug          string    `bson:"slug"`
	Currency      string    `bson:"currency"`
	BaseRate      int64     `bson:"base_rate"`
	WeekendRate   *int64    `bson:"weekend_rate,omitempty"`
	CleaningFee   int64     `bson:"cleaning_fee"`
	TaxRatePPM    int64     `bson:"tax_rate_ppm"`
	FeedURLs      []string  `bson:"feed_urls"`
	DamageDeposit int64     `bson:"damage_deposit"`
	MaxGuests     int       `bson:"max_guests"`
	MaxStayNights int       `bson:"max_stay_nights"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

func newPropertyDocument(p *property.Property) propertyDocument {
	doc := propertyDocument{
		ID:            string(p.ID),
		Name:          p.Name,
		Slug:          p.Slug,
		Currency:      p.Currency,
		BaseRate:      p.Pricing.BaseRate.Amount,
		CleaningFee:   p.Pricing.CleaningFee.Amount,
		TaxRatePPM:    int64(p.Pricing.TaxRate),
		FeedURLs:      p.FeedURLs,
		DamageDeposit: p.DamageDeposit.Amount,
		MaxGuests:     p.MaxGuests,
		MaxStayNights: p.MaxStayNights,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.Pricing.WeekendRate != nil {
		w := p.Pricing.WeekendRate.Amount
		doc.WeekendRate = &w
	}
	return doc
}

func (d propertyDocument) toDomain() *property.Property {
	p := &property.Property{
		ID:       property.ID(d.ID),
		Name:     d.Name,
		Slug:     d.Slug,
		Currency: d.Currency,
		Pricing: property.Pricing{
			BaseRate:    money.Money{Amount: d.BaseRate, Currency: d.Currency},
			CleaningFee: money.Money{Amount: d.CleaningFee, Currency: d.Currency},
			TaxRate:     money.Rate(d.TaxRatePPM),
		},
		FeedURLs:      d.FeedURLs,
		DamageDeposit: money.Money{Amount: d.DamageDeposit, Currency: d.Currency},
		MaxGuests:     d.MaxGuests,
		MaxStayNights: d.MaxStayNights,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}
	if d.WeekendRate != nil {
		w := money.Money{Amount: *d.WeekendRate, Currency: d.Currency}
		p.Pricing.WeekendRate = &w
	}
	return p
}
