package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"realty/internal/domain/pricing"
	"realty/internal/domain/property"
	"realty/internal/domain/shared/daterange"
	"realty/internal/domain/shared/money"
)

type RateRuleRepository struct {
	col *mongo.Collection
}

func NewRateRuleRepository(db *mongo.Database) *RateRuleRepository {
	return &RateRuleRepository{col: db.Collection("rate_rules")}
}

func ensureRateRuleIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("rate_rules").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "property_id", Value: 1}, {Key: "start", Value: 1}},
	})
	return err
}

func (r *RateRuleRepository) ListByProperty(ctx context.Context, id property.ID) ([]pricing.RateRule, error) {
	opts := options.Find().SetSort(bson.D{{Key: "start", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"property_id": string(id)}, opts)
	if err != nil {
		return nil, err
	}
	var docs []rateRuleDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]pricing.RateRule, 0, len(docs))
	for _, d := range docs {
		rule, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}

func (r *RateRuleRepository) Save(ctx context.Context, rule pricing.RateRule) error {
	doc := rateRuleDocument{
		ID:         string(rule.ID),
		PropertyID: string(rule.PropertyID),
		Start:      daterange.FormatDay(rule.Start),
		End:        daterange.FormatDay(rule.End),
		Rate:       rule.Rate.Amount,
		Currency:   rule.Rate.Currency,
		MinNights:  rule.MinNights,
		Priority:   rule.Priority,
		Notes:      rule.Notes,
		CreatedAt:  rule.CreatedAt,
	}
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (r *RateRuleRepository) Delete(ctx context.Context, propertyID property.ID, id pricing.RuleID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": string(id), "property_id": string(propertyID)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return pricing.ErrRuleNotFound
	}
	return nil
}

// Days are stored as YYYY-MM-DD so range filters compare lexically.
type rateRuleDocument struct {
	ID         string    `bson:"_id"`
	PropertyID string    `bson:"property_id"`
	Start      string    `bson:"start"`
	End        string    `bson:"end"`
	Rate       int64     `bson:"rate"`
	Currency   string    `bson:"currency"`
	MinNights  int       `bson:"min_nights"`
	Priority   int       `bson:"priority"`
	Notes      string    `bson:"notes,omitempty"`
	CreatedAt  time.Time `bson:"created_at"`
}

func (d rateRuleDocument) toDomain() (pricing.RateRule, error) {
	start, err := daterange.ParseDay(d.Start)
	if err != nil {
		return pricing.RateRule{}, err
	}
	end, err := daterange.ParseDay(d.End)
	if err != nil {
		return pricing.RateRule{}, err
	}
	return pricing.RateRule{
		ID:         pricing.RuleID(d.ID),
		PropertyID: property.ID(d.PropertyID),
		Start:      start,
		End:        end,
		Rate:       money.Money{Amount: d.Rate, Currency: d.Currency},
		MinNights:  d.MinNights,
		Priority:   d.Priority,
		Notes:      d.Notes,
		CreatedAt:  d.CreatedAt.UTC(),
	}, nil
}
