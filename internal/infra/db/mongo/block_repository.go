package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"realty/internal/domain/availability"
	"realty/internal/domain/property"
	"realty/internal/domain/shared/daterange"
)

type BlockRepository struct {
	col *mongo.Collection
}

func NewBlockRepository(db *mongo.Database) *BlockRepository {
	return &BlockRepository{col: db.Collection("external_blocks")}
}

func ensureBlockIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("external_blocks").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "property_id", Value: 1}, {Key: "source", Value: 1}},
	})
	return err
}

func (r *BlockRepository) ListByProperty(ctx context.Context, id property.ID) ([]availability.ExternalBlock, error) {
	opts := options.Find().SetSort(bson.D{{Key: "start", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"property_id": string(id)}, opts)
	if err != nil {
		return nil, err
	}
	var docs []blockDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]availability.ExternalBlock, 0, len(docs))
	for _, d := range docs {
		b, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// ReplaceForSource deletes and reinserts inside the caller's session transaction,
// so readers never observe the source without blocks.
func (r *BlockRepository) ReplaceForSource(ctx context.Context, id property.ID, source string, blocks []availability.ExternalBlock) error {
	if _, err := r.col.DeleteMany(ctx, bson.M{"property_id": string(id), "source": source}); err != nil {
		return err
	}
	if len(blocks) == 0 {
		return nil
	}
	docs := make([]any, 0, len(blocks))
	seen := make(map[string]struct{}, len(blocks))
	for _, b := range blocks {
		if _, dup := seen[b.ID]; dup {
			continue
		}
		seen[b.ID] = struct{}{}
		docs = append(docs, newBlockDocument(b))
	}
	_, err := r.col.InsertMany(ctx, docs)
	return err
}

func (r *BlockRepository) DeleteSourcesExcept(ctx context.Context, id property.ID, keep []string) (int, error) {
	if keep == nil {
		keep = []string{}
	}
	res, err := r.col.DeleteMany(ctx, bson.M{"property_id": string(id), "source": bson.M{"$nin": keep}})
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}

type blockDocument struct {
	ID         string    `bson:"_id"`
	PropertyID string    `bson:"property_id"`
	Start      string    `bson:"start"`
	End        string    `bson:"end"`
	Source     string    `bson:"source"`
	UID        string    `bson:"uid"`
	Summary    string    `bson:"summary,omitempty"`
	ImportedAt time.Time `bson:"imported_at"`
}

func newBlockDocument(b availability.ExternalBlock) blockDocument {
	return blockDocument{
		ID:         b.ID,
		PropertyID: string(b.PropertyID),
		Start:      daterange.FormatDay(b.Start),
		End:        daterange.FormatDay(b.End),
		Source:     b.Source,
		UID:        b.UID,
		Summary:    b.Summary,
		ImportedAt: b.ImportedAt,
	}
}

func (d blockDocument) toDomain() (availability.ExternalBlock, error) {
	start, err := daterange.ParseDay(d.Start)
	if err != nil {
		return availability.ExternalBlock{}, err
	}
	end, err := daterange.ParseDay(d.End)
	if err != nil {
		return availability.ExternalBlock{}, err
	}
	return availability.ExternalBlock{
		ID:         d.ID,
		PropertyID: property.ID(d.PropertyID),
		Start:      start,
		End:        end,
		Source:     d.Source,
		UID:        d.UID,
		Summary:    d.Summary,
		ImportedAt: d.ImportedAt.UTC(),
	}, nil
}
