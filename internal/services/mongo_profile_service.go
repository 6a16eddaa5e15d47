package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/keepwaifu/backend/internal/models"
)

// MongoProfileService is the registered_users collection. A nil collection
// makes every call return ErrSourceUnavailable.
type MongoProfileService struct {
	col         *mongo.Collection
	avatars     AvatarPolicy
	defaultName string
	now         func() time.Time
}

func NewMongoProfileService(col *mongo.Collection, avatars AvatarPolicy, defaultName string) *MongoProfileService {
	return &MongoProfileService{
		col:         col,
		avatars:     avatars,
		defaultName: defaultName,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *MongoProfileService) Name() string { return "registered_users" }

func (s *MongoProfileService) FindUserDocument(ctx context.Context, userID string) (bson.M, error) {
	if s.col == nil {
		return nil, ErrSourceUnavailable
	}
	var doc bson.M
	if err := s.col.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc); err != nil {
		return nil, mongoErr(s.Name(), err)
	}
	return doc, nil
}

// Upsert writes only the fields that carry real data. A placeholder avatar
// or the default name is never written over what is stored; the default name
// only lands on first insert.
func (s *MongoProfileService) Upsert(ctx context.Context, prof models.Profile) error {
	if s.col == nil {
		return ErrSourceUnavailable
	}
	if strings.TrimSpace(prof.UserID) == "" {
		return ErrMissingUserID
	}
	update := profileUpdate(prof, s.avatars, s.defaultName, s.now())
	_, err := s.col.UpdateOne(
		ctx,
		bson.M{"user_id": prof.UserID},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return mongoErr(s.Name(), err)
	}
	return nil
}

// ListUserIDs returns up to limit stored ids in natural order. limit <= 0
// means no limit.
func (s *MongoProfileService) ListUserIDs(ctx context.Context, limit int) ([]string, error) {
	if s.col == nil {
		return nil, ErrSourceUnavailable
	}
	opts := options.Find().SetProjection(bson.M{"user_id": 1, "_id": 0})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.col.Find(ctx, bson.M{"user_id": bson.M{"$exists": true}}, opts)
	if err != nil {
		return nil, mongoErr(s.Name(), err)
	}
	defer cur.Close(ctx)

	out := make([]string, 0)
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, mongoErr(s.Name(), err)
		}
		if id := stringify(doc["user_id"]); id != "" {
			out = append(out, id)
		}
	}
	if err := cur.Err(); err != nil {
		return nil, mongoErr(s.Name(), err)
	}
	return out, nil
}

// profileUpdate builds the $set/$setOnInsert pair for an upsert.
// MongoDB forbids the same path in both operators, so firstname goes to
// exactly one of them.
func profileUpdate(prof models.Profile, avatars AvatarPolicy, defaultName string, now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	setOnInsert := bson.M{"user_id": prof.UserID}

	name := strings.TrimSpace(prof.DisplayName)
	if name != "" && name != defaultName {
		set["firstname"] = name
	} else if defaultName != "" {
		setOnInsert["firstname"] = defaultName
	}
	if u := strings.TrimSpace(models.StrVal(prof.Username)); u != "" {
		set["username"] = u
	}
	if a := models.StrVal(prof.AvatarURL); a != "" && avatars.IsReal(a) {
		set["photo_url"] = a
	}
	return bson.M{"$set": set, "$setOnInsert": setOnInsert}
}

// mongoErr maps driver errors onto the service taxonomy.
func mongoErr(source string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w: %v", source, ErrSourceUnavailable, err)
}
