package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/keepwaifu/backend/internal/models"
)

func TestProfileUpdate(t *testing.T) {
	avatars := NewAvatarPolicy(nil)
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("real data goes to $set", func(t *testing.T) {
		update := profileUpdate(models.Profile{
			UserID:      "1",
			DisplayName: "Alice",
			Username:    strp("alice"),
			AvatarURL:   strp("https://cdn.example.com/a.png"),
		}, avatars, "Traveler", now)

		assert.Equal(t, bson.M{
			"updated_at": now,
			"firstname":  "Alice",
			"username":   "alice",
			"photo_url":  "https://cdn.example.com/a.png",
		}, update["$set"])
		assert.Equal(t, bson.M{"user_id": "1"}, update["$setOnInsert"])
	})

	t.Run("placeholders are never written", func(t *testing.T) {
		update := profileUpdate(models.Profile{
			UserID:      "2",
			DisplayName: "Traveler",
			AvatarURL:   strp("https://picsum.photos/200"),
		}, avatars, "Traveler", now)

		set := update["$set"].(bson.M)
		assert.NotContains(t, set, "photo_url")
		assert.NotContains(t, set, "firstname")
		assert.NotContains(t, set, "username")
		assert.Equal(t, bson.M{"user_id": "2", "firstname": "Traveler"}, update["$setOnInsert"])
	})
}

func TestMongoProfileService_NilCollection(t *testing.T) {
	svc := NewMongoProfileService(nil, NewAvatarPolicy(nil), "Traveler")
	ctx := context.Background()

	_, err := svc.FindUserDocument(ctx, "1")
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.ErrorIs(t, svc.Upsert(ctx, models.Profile{UserID: "1"}), ErrSourceUnavailable)
	_, err = svc.ListUserIDs(ctx, 10)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func namespace(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

func TestMongoProfileService(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("find", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, bson.D{
			{Key: "user_id", Value: "1"},
			{Key: "firstname", Value: "Alice"},
		}))
		svc := NewMongoProfileService(mt.Coll, NewAvatarPolicy(nil), "Traveler")

		doc, err := svc.FindUserDocument(context.Background(), "1")
		require.NoError(mt, err)
		assert.Equal(mt, "Alice", doc["firstname"])
	})

	mt.Run("miss", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))
		svc := NewMongoProfileService(mt.Coll, NewAvatarPolicy(nil), "Traveler")

		_, err := svc.FindUserDocument(context.Background(), "1")
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("server error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Name:    "BadValue",
			Message: "bad value",
		}))
		svc := NewMongoProfileService(mt.Coll, NewAvatarPolicy(nil), "Traveler")

		_, err := svc.FindUserDocument(context.Background(), "1")
		assert.ErrorIs(mt, err, ErrSourceUnavailable)
		assert.False(mt, errors.Is(err, ErrNotFound))
	})

	mt.Run("upsert", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))
		svc := NewMongoProfileService(mt.Coll, NewAvatarPolicy(nil), "Traveler")

		err := svc.Upsert(context.Background(), models.Profile{UserID: "1", DisplayName: "Alice"})
		assert.NoError(mt, err)
		assert.ErrorIs(mt, svc.Upsert(context.Background(), models.Profile{}), ErrMissingUserID)
	})

	mt.Run("list ids", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch,
			bson.D{{Key: "user_id", Value: "1"}},
			bson.D{{Key: "user_id", Value: int64(2)}},
			bson.D{{Key: "user_id", Value: ""}},
		))
		svc := NewMongoProfileService(mt.Coll, NewAvatarPolicy(nil), "Traveler")

		ids, err := svc.ListUserIDs(context.Background(), 0)
		require.NoError(mt, err)
		assert.Equal(mt, []string{"1", "2"}, ids)
	})
}

func TestMongoUserDocs(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("numeric id fallback", func(mt *mtest.T) {
		ns := namespace(mt)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
				{Key: "id", Value: int64(42)},
				{Key: "first_name", Value: "Legacy"},
			}),
		)
		docs := NewMongoUserDocs("legacy:waifu", mt.Coll)

		doc, err := docs.FindUserDocument(context.Background(), "42")
		require.NoError(mt, err)
		assert.Equal(mt, "Legacy", doc["first_name"])
	})

	mt.Run("miss on every key", func(mt *mtest.T) {
		ns := namespace(mt)
		for i := 0; i < 4; i++ {
			mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		}
		docs := NewMongoUserDocs("legacy:waifu", mt.Coll)

		_, err := docs.FindUserDocument(context.Background(), "42")
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("item counts", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch,
			bson.D{{Key: "user_id", Value: int64(7)}, {Key: "character_count", Value: int32(12)}},
			bson.D{{Key: "user_id", Value: "8"}, {Key: "character_count", Value: int32(3)}},
		))
		docs := NewMongoUserDocs("legacy:waifu", mt.Coll)

		scores, err := docs.TopByItemCount(context.Background(), 10)
		require.NoError(mt, err)
		assert.Equal(mt, []models.ScoredUser{{UserID: "7", Score: 12}, {UserID: "8", Score: 3}}, scores)
	})
}

func TestMongoSnapshotService_Top(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decodes rows", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch,
			bson.D{{Key: "user_id", Value: "1"}, {Key: "score", Value: int64(50)}, {Key: "display_name", Value: "Top"}},
			bson.D{{Key: "user_id", Value: "2"}, {Key: "score", Value: int64(20)}, {Key: "avatar_url", Value: "https://cdn.example.com/2.png"}},
		))
		svc := NewMongoSnapshotService(mt.Coll)

		rows, err := svc.Top(context.Background(), 10)
		require.NoError(mt, err)
		require.Len(mt, rows, 2)
		assert.Equal(mt, "Top", rows[0].DisplayName)
		assert.Equal(mt, "https://cdn.example.com/2.png", *rows[1].AvatarURL)
	})
}

func TestMongoSnapshotService_Prune(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("deletes rows outside keep", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 3}))
		svc := NewMongoSnapshotService(mt.Coll)

		n, err := svc.Prune(context.Background(), []string{"1", "2"})
		require.NoError(mt, err)
		assert.Equal(mt, int64(3), n)
	})

	_, err := NewMongoSnapshotService(nil).Prune(context.Background(), nil)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestItemCountExpr_FollowsCollectionAliases(t *testing.T) {
	expr := itemCountExpr()
	for _, field := range itemArrayFields {
		cond, ok := expr.(bson.M)["$cond"].(bson.M)
		require.True(t, ok, field)
		assert.Equal(t, bson.M{"$isArray": "$" + field}, cond["if"])
		assert.Equal(t, bson.M{"$size": "$" + field}, cond["then"])
		expr = cond["else"]
	}
	assert.Equal(t, 0, expr)
}
