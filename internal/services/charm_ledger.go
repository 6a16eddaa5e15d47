package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/keepwaifu/backend/internal/models"
)

const (
	GlobalLeaderboardKey = "leaderboard:charms"
	CharmsChannel        = "charms_updates"
	charmField           = "charm"
)

func userKey(userID string) string { return "user:" + userID }

// incrScript seeds a missing balance field from the global sorted set before
// incrementing, so an update never starts from zero while a score survives.
// KEYS: user hash, global set. ARGV: field, member, delta.
var incrScript = redis.NewScript(`
if not redis.call('HGET', KEYS[1], ARGV[1]) then
  local score = redis.call('ZSCORE', KEYS[2], ARGV[2])
  if score then
    redis.call('HSET', KEYS[1], ARGV[1], math.floor(tonumber(score)))
  end
end
return redis.call('HINCRBY', KEYS[1], ARGV[1], ARGV[3])
`)

// LeaderboardKey returns the sorted set for category, or the global one when
// category is empty.
func LeaderboardKey(category string) string {
	if category == "" {
		return GlobalLeaderboardKey
	}
	return GlobalLeaderboardKey + ":" + category
}

// CharmLedger keeps balances in the user:<id> hash and mirrors them into the
// leaderboard sorted sets. A nil client means the cache store is down.
type CharmLedger struct {
	rdb        *redis.Client
	categories map[string]bool
	timeout    time.Duration
}

func NewCharmLedger(rdb *redis.Client, categories []string, timeout time.Duration) *CharmLedger {
	cats := make(map[string]bool, len(categories))
	for _, c := range categories {
		cats[strings.ToLower(c)] = true
	}
	return &CharmLedger{rdb: rdb, categories: cats, timeout: timeout}
}

// Available reports whether a cache client was configured.
func (l *CharmLedger) Available() bool { return l.rdb != nil }

// Category returns the recognized, lower-cased category or "".
func (l *CharmLedger) Category(raw string) string {
	c := strings.ToLower(strings.TrimSpace(raw))
	if l.categories[c] {
		return c
	}
	return ""
}

// Balance reads the hash first. When the hash field is missing but the global
// sorted set still has a score, that score is written back to the hash and
// reported as OutcomeRecovered. A user known nowhere gets 0 and nothing is
// written.
func (l *CharmLedger) Balance(ctx context.Context, userID string) (int64, Outcome) {
	if l.rdb == nil {
		return 0, OutcomeUnavailable
	}
	ctx, cancel := withTimeout(ctx, l.timeout)
	defer cancel()

	raw, err := l.rdb.HGet(ctx, userKey(userID), charmField).Result()
	switch {
	case err == nil:
		if n, perr := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); perr == nil {
			return n, OutcomeFound
		}
		log.Warn().Str("user_id", userID).Str("value", raw).Msg("non-integer charm balance, trying sorted set")
	case errors.Is(err, redis.Nil):
	default:
		log.Warn().Err(err).Str("user_id", userID).Msg("charm balance read failed")
		return 0, OutcomeUnavailable
	}

	score, err := l.rdb.ZScore(ctx, GlobalLeaderboardKey, userID).Result()
	switch {
	case err == nil:
		n := int64(score)
		if herr := l.rdb.HSet(ctx, userKey(userID), charmField, n).Err(); herr != nil {
			log.Warn().Err(herr).Str("user_id", userID).Msg("charm balance self-heal failed")
		}
		return n, OutcomeRecovered
	case errors.Is(err, redis.Nil):
		return 0, OutcomeDefault
	default:
		log.Warn().Err(err).Str("user_id", userID).Msg("charm score read failed")
		return 0, OutcomeUnavailable
	}
}

// Update applies delta and mirrors the new total into the global sorted set
// and, for a recognized category, into that category's set. A missing hash
// field is first healed from the global set. It returns false when any cache
// write fails; the change is not retried here.
func (l *CharmLedger) Update(ctx context.Context, userID string, delta int64, category string) (int64, bool) {
	if l.rdb == nil {
		return 0, false
	}
	ctx, cancel := withTimeout(ctx, l.timeout)
	defer cancel()

	total, err := incrScript.Run(ctx, l.rdb,
		[]string{userKey(userID), GlobalLeaderboardKey},
		charmField, userID, delta,
	).Int64()
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Int64("delta", delta).Msg("charm increment failed")
		return 0, false
	}

	cat := l.Category(category)
	member := redis.Z{Score: float64(total), Member: userID}
	_, err = l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, GlobalLeaderboardKey, member)
		if cat != "" {
			pipe.ZAdd(ctx, LeaderboardKey(cat), member)
		}
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Int64("total", total).Msg("leaderboard mirror failed, balance left ahead of sorted set")
		return total, false
	}

	l.publish(ctx, models.BalanceChange{UserID: userID, Charms: total, Category: cat})
	return total, true
}

// Fire-and-forget; a lost notification only delays a client refresh.
func (l *CharmLedger) publish(ctx context.Context, ev models.BalanceChange) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := l.rdb.Publish(ctx, CharmsChannel, payload).Err(); err != nil {
		log.Debug().Err(err).Str("user_id", ev.UserID).Msg("charm publish failed")
	}
}

// Rank returns the 1-based position of userID in the category set (global
// when category is empty), or false when unranked.
func (l *CharmLedger) Rank(ctx context.Context, userID, category string) (int64, bool) {
	if l.rdb == nil {
		return 0, false
	}
	ctx, cancel := withTimeout(ctx, l.timeout)
	defer cancel()

	r, err := l.rdb.ZRevRank(ctx, LeaderboardKey(l.Category(category)), userID).Result()
	if err != nil {
		return 0, false
	}
	return r + 1, true
}

// TopScores reads the category set highest first.
func (l *CharmLedger) TopScores(ctx context.Context, category string, limit int) ([]models.ScoredUser, Outcome) {
	if l.rdb == nil {
		return nil, OutcomeUnavailable
	}
	ctx, cancel := withTimeout(ctx, l.timeout)
	defer cancel()

	zs, err := l.rdb.ZRevRangeWithScores(ctx, LeaderboardKey(l.Category(category)), 0, int64(limit-1)).Result()
	if err != nil {
		log.Warn().Err(err).Str("category", category).Msg("leaderboard read failed")
		return nil, OutcomeUnavailable
	}
	out := make([]models.ScoredUser, 0, len(zs))
	for _, z := range zs {
		member, ok := z.Member.(string)
		if !ok || member == "" {
			continue
		}
		out = append(out, models.ScoredUser{UserID: member, Score: int64(z.Score)})
	}
	if len(out) == 0 {
		return out, OutcomeDefault
	}
	return out, OutcomeFound
}

// WriteScores ZADDs every entry into key in one round trip.
func (l *CharmLedger) WriteScores(ctx context.Context, key string, scores []models.ScoredUser) error {
	if l.rdb == nil {
		return ErrSourceUnavailable
	}
	if len(scores) == 0 {
		return nil
	}
	members := make([]redis.Z, 0, len(scores))
	for _, s := range scores {
		members = append(members, redis.Z{Score: float64(s.Score), Member: s.UserID})
	}
	if err := l.rdb.ZAdd(ctx, key, members...).Err(); err != nil {
		return errors.Join(ErrSourceUnavailable, err)
	}
	return nil
}
