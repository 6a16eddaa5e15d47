package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/keepwaifu/backend/internal/models"
)

// MongoSnapshotService is the top_global collection: a periodically
// refreshed copy of the global leaderboard with profile fields inlined.
type MongoSnapshotService struct {
	col *mongo.Collection
	now func() time.Time
}

func NewMongoSnapshotService(col *mongo.Collection) *MongoSnapshotService {
	return &MongoSnapshotService{col: col, now: func() time.Time { return time.Now().UTC() }}
}

func (s *MongoSnapshotService) Name() string { return "top_global" }

func (s *MongoSnapshotService) FindUserDocument(ctx context.Context, userID string) (bson.M, error) {
	if s.col == nil {
		return nil, ErrSourceUnavailable
	}
	var doc bson.M
	if err := s.col.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc); err != nil {
		return nil, mongoErr(s.Name(), err)
	}
	return doc, nil
}

// Top returns up to limit entries by score, highest first.
func (s *MongoSnapshotService) Top(ctx context.Context, limit int) ([]models.SnapshotEntry, error) {
	if s.col == nil {
		return nil, ErrSourceUnavailable
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "score", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, mongoErr(s.Name(), err)
	}
	defer cur.Close(ctx)

	out := make([]models.SnapshotEntry, 0, limit)
	for cur.Next(ctx) {
		var e models.SnapshotEntry
		if err := cur.Decode(&e); err != nil {
			return nil, mongoErr(s.Name(), err)
		}
		if e.UserID == "" {
			continue
		}
		out = append(out, e)
	}
	if err := cur.Err(); err != nil {
		return nil, mongoErr(s.Name(), err)
	}
	return out, nil
}

func (s *MongoSnapshotService) Upsert(ctx context.Context, entry models.SnapshotEntry) error {
	if s.col == nil {
		return ErrSourceUnavailable
	}
	set := bson.M{
		"score":      entry.Score,
		"updated_at": s.now(),
	}
	if entry.DisplayName != "" {
		set["display_name"] = entry.DisplayName
	}
	if entry.Username != nil {
		set["username"] = *entry.Username
	}
	if entry.AvatarURL != nil {
		set["avatar_url"] = *entry.AvatarURL
	}
	_, err := s.col.UpdateOne(
		ctx,
		bson.M{"user_id": entry.UserID},
		bson.M{"$set": set, "$setOnInsert": bson.M{"user_id": entry.UserID}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return mongoErr(s.Name(), err)
	}
	return nil
}

func (s *MongoSnapshotService) Prune(ctx context.Context, keep []string) (int64, error) {
	if s.col == nil {
		return 0, ErrSourceUnavailable
	}
	if keep == nil {
		keep = []string{}
	}
	res, err := s.col.DeleteMany(ctx, bson.M{"user_id": bson.M{"$nin": keep}})
	if err != nil {
		return 0, mongoErr(s.Name(), err)
	}
	return res.DeletedCount, nil
}
