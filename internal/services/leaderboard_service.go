package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/keepwaifu/backend/internal/models"
)

const (
	MaxTopLimit      = 100
	profileScanLimit = 5000
	rebuildLimit     = 10000
	rebuildSample    = 10
	enrichWorkers    = 8
)

// TopSource names the path a top list was read from.
type TopSource string

const (
	SourceSnapshot    TopSource = "snapshot"
	SourceSortedSet   TopSource = "sorted_set"
	SourceAggregation TopSource = "aggregation"
	SourceProfileScan TopSource = "profile_scan"
	SourceNone        TopSource = "none"
)

// LeaderboardService builds ranked lists from whichever source has data and
// maintains the sorted sets and the snapshot.
type LeaderboardService struct {
	ledger   *CharmLedger
	snapshot SnapshotStore
	legacy   map[string]CollectionStore
	profiles ProfileStore
	cache    *ProfileCache
	resolver *ProfileResolver
	timeout  time.Duration
}

type LeaderboardConfig struct {
	Ledger   *CharmLedger
	Snapshot SnapshotStore
	Legacy   map[string]CollectionStore
	Profiles ProfileStore
	Cache    *ProfileCache
	Resolver *ProfileResolver
	Timeout  time.Duration
}

func NewLeaderboardService(cfg LeaderboardConfig) *LeaderboardService {
	return &LeaderboardService{
		ledger:   cfg.Ledger,
		snapshot: cfg.Snapshot,
		legacy:   cfg.Legacy,
		profiles: cfg.Profiles,
		cache:    cfg.Cache,
		resolver: cfg.Resolver,
		timeout:  cfg.Timeout,
	}
}

// ClampLimit bounds limit to [1, MaxTopLimit].
func ClampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > MaxTopLimit {
		return MaxTopLimit
	}
	return limit
}

// Top returns up to limit ranked entries for category (global when empty
// or unrecognized). It never fails; an empty list with SourceNone means no
// source had scores.
func (s *LeaderboardService) Top(ctx context.Context, category string, limit int) ([]models.LeaderboardEntry, TopSource) {
	limit = ClampLimit(limit)
	cat := s.ledger.Category(category)

	if cat == "" {
		if entries := s.fromSnapshot(ctx, limit); len(entries) > 0 {
			return entries, SourceSnapshot
		}
	}

	if scores, _ := s.ledger.TopScores(ctx, cat, limit); len(scores) > 0 {
		return s.enrich(ctx, scores), SourceSortedSet
	}

	if cat != "" {
		if scores := s.aggregate(ctx, cat, limit); len(scores) > 0 {
			return s.enrich(ctx, scores), SourceAggregation
		}
	}

	if scores := s.scanProfiles(ctx, limit); len(scores) > 0 {
		return s.enrich(ctx, scores), SourceProfileScan
	}
	return []models.LeaderboardEntry{}, SourceNone
}

// fromSnapshot reads the precomputed list. Missing display fields come from
// the cache mirror only; the resolver is not consulted on this path.
func (s *LeaderboardService) fromSnapshot(ctx context.Context, limit int) []models.LeaderboardEntry {
	if s.snapshot == nil {
		return nil
	}
	qctx, cancel := withTimeout(ctx, s.timeout)
	rows, err := s.snapshot.Top(qctx, limit)
	cancel()
	if err != nil {
		ev := log.Warn()
		if unconfigured(err) {
			ev = log.Debug()
		}
		ev.Err(err).Str("source", s.snapshot.Name()).Msg("snapshot read failed")
		return nil
	}

	out := make([]models.LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		e := models.LeaderboardEntry{
			UserID:      row.UserID,
			DisplayName: row.DisplayName,
			Username:    models.StrPtr(models.StrVal(row.Username)),
			AvatarURL:   s.resolver.avatars.Sanitize(row.AvatarURL),
			Score:       row.Score,
		}
		if e.DisplayName == "" || e.Username == nil || e.AvatarURL == nil {
			s.fillFromCache(ctx, &e)
		}
		if e.DisplayName == "" {
			e.DisplayName = s.resolver.DefaultName()
		}
		out = append(out, e)
	}
	rank(out)
	return out
}

func (s *LeaderboardService) fillFromCache(ctx context.Context, e *models.LeaderboardEntry) {
	if s.cache == nil {
		return
	}
	cached, outcome := s.cache.Lookup(ctx, e.UserID)
	if outcome != OutcomeFound {
		return
	}
	if e.DisplayName == "" {
		e.DisplayName = cached.DisplayName
	}
	if e.Username == nil {
		e.Username = cached.Username
	}
	if e.AvatarURL == nil {
		e.AvatarURL = cached.AvatarURL
	}
}

func (s *LeaderboardService) aggregate(ctx context.Context, category string, limit int) []models.ScoredUser {
	store, ok := s.legacy[category]
	if !ok || store == nil {
		return nil
	}
	qctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	scores, err := store.TopByItemCount(qctx, limit)
	if err != nil {
		log.Warn().Err(err).Str("source", store.Name()).Msg("item count aggregation failed")
		return nil
	}
	return scores
}

// scanProfiles reads balances for known profile ids. Only positive balances
// are kept, ordered highest first with scan order kept for ties.
func (s *LeaderboardService) scanProfiles(ctx context.Context, limit int) []models.ScoredUser {
	scores := s.balancesOfKnownUsers(ctx, profileScanLimit)
	if len(scores) > limit {
		scores = scores[:limit]
	}
	return scores
}

func (s *LeaderboardService) balancesOfKnownUsers(ctx context.Context, bound int) []models.ScoredUser {
	if s.profiles == nil || !s.ledger.Available() {
		return nil
	}
	qctx, cancel := withTimeout(ctx, s.timeout)
	ids, err := s.profiles.ListUserIDs(qctx, bound)
	cancel()
	if err != nil {
		log.Warn().Err(err).Str("source", s.profiles.Name()).Msg("profile scan failed")
		return nil
	}

	var scores []models.ScoredUser
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		bal, outcome := s.ledger.Balance(ctx, id)
		if outcome == OutcomeUnavailable {
			break
		}
		if bal > 0 {
			scores = append(scores, models.ScoredUser{UserID: id, Score: bal})
		}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	return scores
}

// enrich resolves each profile with bounded concurrency and ranks in input order.
func (s *LeaderboardService) enrich(ctx context.Context, scores []models.ScoredUser) []models.LeaderboardEntry {
	out := make([]models.LeaderboardEntry, len(scores))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichWorkers)
	for i, sc := range scores {
		i, sc := i, sc
		g.Go(func() error {
			prof, _ := s.resolver.Resolve(gctx, sc.UserID, models.ProfileHints{})
			out[i] = models.LeaderboardEntry{
				UserID:      sc.UserID,
				DisplayName: prof.DisplayName,
				Username:    prof.Username,
				AvatarURL:   prof.AvatarURL,
				Score:       sc.Score,
			}
			return nil
		})
	}
	_ = g.Wait()
	rank(out)
	return out
}

func rank(entries []models.LeaderboardEntry) {
	for i := range entries {
		entries[i].Rank = i + 1
	}
}

// Rebuild recomputes a sorted set from the document stores. With a category
// the legacy item counts become scores; without one the balances of every
// known profile are written into the global set. dry skips the writes.
func (s *LeaderboardService) Rebuild(ctx context.Context, category string, dry bool) (models.RebuildResult, error) {
	cat := s.ledger.Category(category)
	res := models.RebuildResult{Key: LeaderboardKey(cat), DryRun: dry}
	if !s.ledger.Available() {
		return res, ErrSourceUnavailable
	}

	var scores []models.ScoredUser
	if cat != "" {
		store, ok := s.legacy[cat]
		if !ok || store == nil {
			return res, ErrSourceUnavailable
		}
		counts, err := store.TopByItemCount(ctx, rebuildLimit)
		if err != nil {
			return res, err
		}
		for _, c := range counts {
			if c.Score > 0 {
				scores = append(scores, c)
			}
		}
	} else {
		if s.profiles == nil {
			return res, ErrSourceUnavailable
		}
		scores = s.balancesOfKnownUsers(ctx, rebuildLimit)
	}

	res.Count = len(scores)
	res.Sample = sample(scores, rebuildSample)
	if dry {
		return res, nil
	}
	if err := s.ledger.WriteScores(ctx, res.Key, scores); err != nil {
		return res, err
	}
	log.Info().Str("key", res.Key).Int("count", res.Count).Msg("leaderboard rebuilt")
	return res, nil
}

func sample(scores []models.ScoredUser, n int) []models.ScoredUser {
	if len(scores) < n {
		n = len(scores)
	}
	out := make([]models.ScoredUser, n)
	copy(out, scores[:n])
	return out
}

// RefreshSnapshot copies the top of the global sorted set, with resolved
// profiles, into the snapshot collection. It returns how many rows were written.
func (s *LeaderboardService) RefreshSnapshot(ctx context.Context, limit int) (int, error) {
	if s.snapshot == nil {
		return 0, ErrSourceUnavailable
	}
	if limit <= 0 {
		limit = MaxTopLimit
	}
	scores, outcome := s.ledger.TopScores(ctx, "", limit)
	if outcome == OutcomeUnavailable {
		return 0, ErrSourceUnavailable
	}

	written := 0
	var errs []error
	kept := make([]string, 0, len(scores))
	for _, e := range s.enrich(ctx, scores) {
		entry := models.SnapshotEntry{
			UserID:      e.UserID,
			Score:       e.Score,
			DisplayName: e.DisplayName,
			Username:    e.Username,
			AvatarURL:   e.AvatarURL,
		}
		if err := s.snapshot.Upsert(ctx, entry); err != nil {
			errs = append(errs, err)
			continue
		}
		kept = append(kept, e.UserID)
		written++
	}

	// Rows outside the current top are stale. A partial refresh keeps them
	// so a failed upsert does not leave a hole.
	var pruned int64
	if len(errs) == 0 {
		n, err := s.snapshot.Prune(ctx, kept)
		if err != nil {
			errs = append(errs, err)
		}
		pruned = n
	}
	if written > 0 || pruned > 0 {
		log.Info().Int("rows", written).Int64("pruned", pruned).Msg("snapshot refreshed")
	}
	return written, errors.Join(errs...)
}
