package persistence

import (
	"context"

	"shabbat-mode/domain/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const historyCollection = "operation_history"

// HistoryRepositoryMongo stores history documents keyed by operation id.
type HistoryRepositoryMongo struct {
	coll *mongo.Collection
}

func NewHistoryRepositoryMongo(db *mongo.Database) *HistoryRepositoryMongo {
	return &HistoryRepositoryMongo{coll: db.Collection(historyCollection)}
}

// EnsureIndexes creates the unique operation index and the per-user timeline index.
func (r *HistoryRepositoryMongo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "operation_id", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "operation_id", Value: bson.D{{Key: "$type", Value: "string"}}}}),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}}},
	})
	return err
}

func (r *HistoryRepositoryMongo) Insert(ctx context.Context, e *model.HistoryEntry) (bool, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OperationID == "" {
		_, err := r.coll.InsertOne(ctx, e)
		return err == nil, err
	}
	// $setOnInsert keeps a replayed operation from overwriting the first record
	res, err := r.coll.UpdateOne(ctx,
		bson.D{{Key: "operation_id", Value: e.OperationID}},
		bson.D{{Key: "$setOnInsert", Value: e}},
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		return false, err
	}
	return res.UpsertedCount > 0, nil
}

func (r *HistoryRepositoryMongo) TrimToNewest(ctx context.Context, userID string, keep int) (int64, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetSkip(int64(keep)).
		SetProjection(bson.D{{Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.D{{Key: "user_id", Value: userID}}, opts)
	if err != nil {
		return 0, err
	}
	var stale []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &stale); err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}
	ids := make([]string, 0, len(stale))
	for _, s := range stale {
		ids = append(ids, s.ID)
	}
	res, err := r.coll.DeleteMany(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *HistoryRepositoryMongo) Recent(ctx context.Context, userID string, limit int) ([]*model.HistoryEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, bson.D{{Key: "user_id", Value: userID}}, opts)
	if err != nil {
		return nil, err
	}
	var out []*model.HistoryEntry
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
