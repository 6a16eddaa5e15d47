package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/keepwaifu/backend/internal/models"
)

// ProfileResolver reconciles a user's profile across the primary store and
// the secondary sources, then schedules a write-back of the merged result.
type ProfileResolver struct {
	primary     ProfileStore
	secondaries []DocumentSource
	normalizer  *Normalizer
	avatars     AvatarPolicy
	defaultName string
	sync        *ProfileSync
	timeout     time.Duration
}

// ResolverConfig groups the resolver's collaborators. Secondaries are
// searched in slice order, which is also the tie-break order.
type ResolverConfig struct {
	Primary     ProfileStore
	Secondaries []DocumentSource
	Avatars     AvatarPolicy
	DefaultName string
	Sync        *ProfileSync
	Timeout     time.Duration
}

func NewProfileResolver(cfg ResolverConfig) *ProfileResolver {
	name := cfg.DefaultName
	if name == "" {
		name = "Traveler"
	}
	return &ProfileResolver{
		primary:     cfg.Primary,
		secondaries: cfg.Secondaries,
		normalizer:  NewNormalizer(cfg.Avatars),
		avatars:     cfg.Avatars,
		defaultName: name,
		sync:        cfg.Sync,
		timeout:     cfg.Timeout,
	}
}

// DefaultName is the placeholder used when no source knows the user's name.
func (r *ProfileResolver) DefaultName() string { return r.defaultName }

// Resolve returns the best profile for userID with hints applied on top.
// It never fails: the outcome tells whether the result came from the primary
// store (Found), from secondary sources (Recovered), from defaults because no
// source had the user (Default), or from defaults because every source was
// down (Unavailable). The returned profile carries no UpdatedAt. Unavailable
// results are not persisted.
func (r *ProfileResolver) Resolve(ctx context.Context, userID string, hints models.ProfileHints) (models.Profile, Outcome) {
	base, outcome := r.lookup(ctx, userID)
	out := r.applyHints(base, hints)
	if out.DisplayName == "" {
		out.DisplayName = r.defaultName
	}
	out.UpdatedAt = nil

	// Nothing was read, so there is nothing trustworthy to write back.
	if r.sync != nil && outcome != OutcomeUnavailable {
		r.sync.Persist(out)
	}
	return out, outcome
}

// Preview resolves without hints and without scheduling a write-back.
func (r *ProfileResolver) Preview(ctx context.Context, userID string) (models.Profile, Outcome) {
	base, outcome := r.lookup(ctx, userID)
	if base.DisplayName == "" {
		base.DisplayName = r.defaultName
	}
	base.UpdatedAt = nil
	return base, outcome
}

func (r *ProfileResolver) lookup(ctx context.Context, userID string) (models.Profile, Outcome) {
	var (
		candidates  []*models.Profile
		unavailable int
		sources     int
	)

	if r.primary != nil {
		sources++
		doc, err := r.find(ctx, r.primary, userID)
		switch {
		case err == nil:
			if p := r.normalize(doc, userID); p != nil {
				if r.goodName(p.DisplayName) && p.AvatarURL != nil {
					return *p, OutcomeFound
				}
				candidates = append(candidates, p)
			}
		case !errors.Is(err, ErrNotFound):
			unavailable++
		}
	}

	found, down := r.searchSecondaries(ctx, userID)
	sources += len(r.secondaries)
	unavailable += down
	candidates = append(candidates, found...)

	if len(candidates) == 0 {
		empty := models.Profile{UserID: userID}
		if sources > 0 && unavailable == sources {
			return empty, OutcomeUnavailable
		}
		return empty, OutcomeDefault
	}

	best := r.pickBest(candidates)
	return r.fillGaps(best, candidates), OutcomeRecovered
}

// searchSecondaries queries every secondary concurrently and keeps the
// results in priority order. It reports how many sources were unreachable.
func (r *ProfileResolver) searchSecondaries(ctx context.Context, userID string) ([]*models.Profile, int) {
	if len(r.secondaries) == 0 {
		return nil, 0
	}
	slots := make([]*models.Profile, len(r.secondaries))
	failed := make([]bool, len(r.secondaries))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range r.secondaries {
		i, src := i, src
		g.Go(func() error {
			doc, err := r.find(gctx, src, userID)
			if err != nil {
				failed[i] = !errors.Is(err, ErrNotFound)
				return nil
			}
			slots[i] = r.normalize(doc, userID)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*models.Profile, 0, len(slots))
	down := 0
	for i, p := range slots {
		if failed[i] {
			down++
		}
		if p != nil {
			out = append(out, p)
		}
	}
	return out, down
}

func (r *ProfileResolver) find(ctx context.Context, src DocumentSource, userID string) (map[string]interface{}, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	doc, err := src.FindUserDocument(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Warn().Err(err).Str("source", src.Name()).Str("user_id", userID).Msg("profile source unavailable")
		}
		return nil, err
	}
	return doc, nil
}

// normalize pins the user id to the requested one; legacy stores key users
// by numeric ids that would otherwise render differently.
func (r *ProfileResolver) normalize(doc map[string]interface{}, userID string) *models.Profile {
	p := r.normalizer.Normalize(doc)
	if p == nil {
		p = r.normalizer.Normalize(withUserID(doc, userID))
	}
	if p == nil {
		return nil
	}
	p.UserID = userID
	if !r.goodName(p.DisplayName) {
		p.DisplayName = ""
	}
	return p
}

func withUserID(doc map[string]interface{}, userID string) map[string]interface{} {
	out := make(map[string]interface{}, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	out["user_id"] = userID
	return out
}

// pickBest prefers a real avatar, then a real name. Earlier candidates win ties.
func (r *ProfileResolver) pickBest(candidates []*models.Profile) *models.Profile {
	best := candidates[0]
	bestScore := r.rank(best)
	for _, c := range candidates[1:] {
		if s := r.rank(c); s > bestScore {
			best, bestScore = c, s
		}
	}
	return best
}

func (r *ProfileResolver) rank(p *models.Profile) int {
	score := 0
	if p.AvatarURL != nil {
		score += 2
	}
	if r.goodName(p.DisplayName) {
		score++
	}
	return score
}

// fillGaps completes best with fields the other candidates have, in priority order.
func (r *ProfileResolver) fillGaps(best *models.Profile, candidates []*models.Profile) models.Profile {
	out := best.Clone()
	for _, c := range candidates {
		if c == best {
			continue
		}
		if out.DisplayName == "" && r.goodName(c.DisplayName) {
			out.DisplayName = c.DisplayName
		}
		if out.Username == nil && c.Username != nil {
			u := *c.Username
			out.Username = &u
		}
		if out.AvatarURL == nil && c.AvatarURL != nil {
			a := *c.AvatarURL
			out.AvatarURL = &a
		}
	}
	return out
}

// applyHints overrides stored values with caller-supplied ones. An avatar
// hint that is only a placeholder is ignored so it cannot hide a real one.
func (r *ProfileResolver) applyHints(base models.Profile, hints models.ProfileHints) models.Profile {
	out := base.Clone()
	if name := strings.TrimSpace(models.StrVal(hints.DisplayName)); name != "" {
		out.DisplayName = name
	}
	if hints.Username != nil {
		out.Username = models.StrPtr(strings.TrimSpace(*hints.Username))
	}
	if a := r.avatars.Sanitize(hints.AvatarURL); a != nil {
		out.AvatarURL = a
	}
	return out
}

func (r *ProfileResolver) goodName(name string) bool {
	name = strings.TrimSpace(name)
	return name != "" && name != r.defaultName
}
