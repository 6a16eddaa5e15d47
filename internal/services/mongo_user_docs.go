package services

import (
	"context"
	"errors"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/keepwaifu/backend/internal/models"
)


// MongoUserDocs reads user documents from a collection that was written by
// other bots, where the user key is "id" (string or number) or "user_id".
// It serves both the global profile collection and the per-game collections.
type MongoUserDocs struct {
	name string
	col  *mongo.Collection
}

func NewMongoUserDocs(name string, col *mongo.Collection) *MongoUserDocs {
	return &MongoUserDocs{name: name, col: col}
}

func (s *MongoUserDocs) Name() string { return s.name }

// FindUserDocument tries id as string, user_id, then id as an integer.
func (s *MongoUserDocs) FindUserDocument(ctx context.Context, userID string) (bson.M, error) {
	if s.col == nil {
		return nil, ErrSourceUnavailable
	}
	for _, filter := range userFilters(userID) {
		var doc bson.M
		err := s.col.FindOne(ctx, filter).Decode(&doc)
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongoErr(s.name, err)
		}
	}
	return nil, ErrNotFound
}

func userFilters(userID string) []bson.M {
	filters := []bson.M{
		{"id": userID},
		{"user_id": userID},
	}
	if n, err := strconv.ParseInt(userID, 10, 64); err == nil {
		filters = append(filters, bson.M{"id": n}, bson.M{"user_id": n})
	}
	return filters
}

// itemCountExpr sizes the first array among itemArrayFields, the same field
// the collection listing reads, or 0 when none is present.
func itemCountExpr() interface{} {
	var expr interface{} = 0
	for i := len(itemArrayFields) - 1; i >= 0; i-- {
		field := "$" + itemArrayFields[i]
		expr = bson.M{"$cond": bson.M{
			"if":   bson.M{"$isArray": field},
			"then": bson.M{"$size": field},
			"else": expr,
		}}
	}
	return expr
}

// TopByItemCount ranks users by the length of their owned-characters array.
func (s *MongoUserDocs) TopByItemCount(ctx context.Context, limit int) ([]models.ScoredUser, error) {
	if s.col == nil {
		return nil, ErrSourceUnavailable
	}
	pipeline := mongo.Pipeline{
		{{Key: "$addFields", Value: bson.M{"character_count": itemCountExpr()}}},
		{{Key: "$project", Value: bson.M{
			"user_id":         bson.M{"$ifNull": bson.A{"$id", "$user_id"}},
			"character_count": 1,
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "character_count", Value: -1}}}},
		{{Key: "$limit", Value: limit}},
	}
	cur, err := s.col.Aggregate(ctx, pipeline, options.Aggregate().SetAllowDiskUse(true))
	if err != nil {
		return nil, mongoErr(s.name, err)
	}
	defer cur.Close(ctx)

	out := make([]models.ScoredUser, 0, limit)
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, mongoErr(s.name, err)
		}
		id := stringify(doc["user_id"])
		if id == "" {
			continue
		}
		count, _ := toInt64(doc["character_count"])
		out = append(out, models.ScoredUser{UserID: id, Score: count})
	}
	if err := cur.Err(); err != nil {
		return nil, mongoErr(s.name, err)
	}
	return out, nil
}
