package services

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/keepwaifu/backend/internal/models"
)

// Hash fields mirrored next to the charm balance in user:<id>.
const (
	cacheNameField     = "name"
	cacheUsernameField = "username"
	cacheAvatarField   = "avatar"
)

// ProfileCache mirrors display fields into the cache hash for cheap reads.
type ProfileCache struct {
	rdb         *redis.Client
	avatars     AvatarPolicy
	defaultName string
	timeout     time.Duration
}

func NewProfileCache(rdb *redis.Client, avatars AvatarPolicy, defaultName string, timeout time.Duration) *ProfileCache {
	return &ProfileCache{rdb: rdb, avatars: avatars, defaultName: defaultName, timeout: timeout}
}

// Mirror writes the non-empty display fields. Placeholder avatars and the
// default name are skipped so they never replace a real cached value.
func (c *ProfileCache) Mirror(ctx context.Context, prof models.Profile) error {
	if c.rdb == nil {
		return ErrSourceUnavailable
	}
	fields := make(map[string]interface{}, 3)
	if prof.DisplayName != "" && prof.DisplayName != c.defaultName {
		fields[cacheNameField] = prof.DisplayName
	}
	if u := models.StrVal(prof.Username); u != "" {
		fields[cacheUsernameField] = u
	}
	if a := models.StrVal(prof.AvatarURL); a != "" && c.avatars.IsReal(a) {
		fields[cacheAvatarField] = a
	}
	if len(fields) == 0 {
		return nil
	}

	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.rdb.HSet(ctx, userKey(prof.UserID), fields).Err(); err != nil {
		return errors.Join(ErrSourceUnavailable, err)
	}
	return nil
}

// Lookup reads the mirrored fields. A hash with no display fields is a miss.
func (c *ProfileCache) Lookup(ctx context.Context, userID string) (*models.Profile, Outcome) {
	if c.rdb == nil {
		return nil, OutcomeUnavailable
	}
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	vals, err := c.rdb.HMGet(ctx, userKey(userID), cacheNameField, cacheUsernameField, cacheAvatarField).Result()
	if err != nil {
		return nil, OutcomeUnavailable
	}
	str := func(i int) string {
		if i >= len(vals) {
			return ""
		}
		s, _ := vals[i].(string)
		return s
	}
	prof := &models.Profile{
		UserID:      userID,
		DisplayName: str(0),
		Username:    models.StrPtr(str(1)),
		AvatarURL:   c.avatars.Sanitize(models.StrPtr(str(2))),
	}
	if prof.DisplayName == "" && prof.Username == nil && prof.AvatarURL == nil {
		return nil, OutcomeDefault
	}
	return prof, OutcomeFound
}
