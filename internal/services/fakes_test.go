package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/keepwaifu/backend/internal/models"
)

// fakeSource serves documents from memory. err, when set, is returned for
// every lookup.
type fakeSource struct {
	name string
	err  error

	mu    sync.Mutex
	docs  map[string]bson.M
	calls int
}

func newFakeSource(name string, docs map[string]bson.M) *fakeSource {
	if docs == nil {
		docs = map[string]bson.M{}
	}
	return &fakeSource{name: name, docs: docs}
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) FindUserDocument(ctx context.Context, userID string) (bson.M, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	doc, ok := f.docs[userID]
	if !ok {
		return nil, ErrNotFound
	}
	out := bson.M{}
	for k, v := range doc {
		out[k] = v
	}
	return out, nil
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeProfileStore applies upserts to its documents with the same
// real-data-only rule as the mongo store.
type fakeProfileStore struct {
	*fakeSource
	avatars     AvatarPolicy
	defaultName string
	ids         []string
	upserts     []models.Profile
	listLimits  []int
}

func newFakeProfileStore(docs map[string]bson.M) *fakeProfileStore {
	return &fakeProfileStore{
		fakeSource:  newFakeSource("registered_users", docs),
		avatars:     NewAvatarPolicy(nil),
		defaultName: "Traveler",
	}
}

func (f *fakeProfileStore) Upsert(ctx context.Context, prof models.Profile) error {
	if prof.UserID == "" {
		return ErrMissingUserID
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, prof.Clone())

	update := profileUpdate(prof, f.avatars, f.defaultName, time.Unix(0, 0).UTC())
	doc, exists := f.docs[prof.UserID]
	if !exists {
		doc = bson.M{}
		for k, v := range update["$setOnInsert"].(bson.M) {
			doc[k] = v
		}
	}
	for k, v := range update["$set"].(bson.M) {
		doc[k] = v
	}
	f.docs[prof.UserID] = doc
	return nil
}

func (f *fakeProfileStore) ListUserIDs(ctx context.Context, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.listLimits = append(f.listLimits, limit)
	ids := f.ids
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return append([]string(nil), ids...), nil
}

func (f *fakeProfileStore) Upserts() []models.Profile {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Profile(nil), f.upserts...)
}

type fakeCollectionStore struct {
	*fakeSource
	scores []models.ScoredUser
}

func (f *fakeCollectionStore) TopByItemCount(ctx context.Context, limit int) ([]models.ScoredUser, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := f.scores
	if len(out) > limit {
		out = out[:limit]
	}
	return append([]models.ScoredUser(nil), out...), nil
}

type fakeSnapshotStore struct {
	*fakeSource
	rows    []models.SnapshotEntry
	written []models.SnapshotEntry
}

func (f *fakeSnapshotStore) Top(ctx context.Context, limit int) ([]models.SnapshotEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	out := append([]models.SnapshotEntry(nil), f.rows...)
	f.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeSnapshotStore) Upsert(ctx context.Context, entry models.SnapshotEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, entry)
	for i, row := range f.rows {
		if row.UserID == entry.UserID {
			f.rows[i] = entry
			return nil
		}
	}
	f.rows = append(f.rows, entry)
	return nil
}

// Prune keeps rows in input order so Top stays deterministic.
func (f *fakeSnapshotStore) Prune(ctx context.Context, keep []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	wanted := make(map[string]bool, len(keep))
	for _, id := range keep {
		wanted[id] = true
	}
	rows := f.rows[:0]
	for _, row := range f.rows {
		if wanted[row.UserID] {
			rows = append(rows, row)
		}
	}
	deleted := int64(len(f.rows) - len(rows))
	f.rows = rows
	return deleted, nil
}

// newTestRedis starts a miniredis server and a client without retries so
// outage tests fail fast.
func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{
		Addr:        mr.Addr(),
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func strp(s string) *string { return &s }
