package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/keepwaifu/backend/internal/models"
)

// ProfileSync writes resolved profiles back to the primary store and the
// cache so later reads are cheaper. Writes are detached from the request.
type ProfileSync struct {
	store   ProfileStore
	cache   *ProfileCache
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewProfileSync(store ProfileStore, cache *ProfileCache, timeout time.Duration) *ProfileSync {
	return &ProfileSync{store: store, cache: cache, timeout: timeout}
}

// Persist schedules a write and returns immediately.
func (s *ProfileSync) Persist(prof models.Profile) {
	if prof.UserID == "" {
		return
	}
	p := prof.Clone()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := withTimeout(context.Background(), s.timeout)
		defer cancel()
		_ = s.PersistNow(ctx, p)
	}()
}

// PersistNow performs both writes and returns the first store error.
// Unavailable targets are logged and skipped.
func (s *ProfileSync) PersistNow(ctx context.Context, prof models.Profile) error {
	var storeErr error
	if s.store != nil {
		if err := s.store.Upsert(ctx, prof); err != nil {
			storeErr = err
			logSyncFailure(err, "profile upsert failed", prof.UserID)
		}
	}
	if s.cache != nil {
		if err := s.cache.Mirror(ctx, prof); err != nil {
			logSyncFailure(err, "profile cache mirror failed", prof.UserID)
			if storeErr == nil {
				storeErr = err
			}
		}
	}
	return storeErr
}

// Wait blocks until every scheduled write has finished.
func (s *ProfileSync) Wait() {
	s.wg.Wait()
}

func logSyncFailure(err error, msg, userID string) {
	ev := log.Warn()
	if errors.Is(err, ErrSourceUnavailable) {
		ev = log.Debug()
	}
	ev.Err(err).Str("user_id", userID).Msg(msg)
}
