package services

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/keepwaifu/backend/internal/models"
)

// DocumentSource is any store that can hand back the raw document it holds
// for a user. Implementations return ErrNotFound for a miss and
// ErrSourceUnavailable (possibly wrapped) when the store cannot be reached.
type DocumentSource interface {
	Name() string
	FindUserDocument(ctx context.Context, userID string) (bson.M, error)
}

// ProfileStore is the primary profile collection.
type ProfileStore interface {
	DocumentSource
	Upsert(ctx context.Context, prof models.Profile) error
	ListUserIDs(ctx context.Context, limit int) ([]string, error)
}

// CollectionStore is a legacy per-game collection of user documents that own
// an items array.
type CollectionStore interface {
	DocumentSource
	TopByItemCount(ctx context.Context, limit int) ([]models.ScoredUser, error)
}

// SnapshotStore is the precomputed top list.
type SnapshotStore interface {
	DocumentSource
	Top(ctx context.Context, limit int) ([]models.SnapshotEntry, error)
	Upsert(ctx context.Context, entry models.SnapshotEntry) error
	// Prune deletes every row whose user is not in keep.
	Prune(ctx context.Context, keep []string) (int64, error)
}
