package services

import (
	"github.com/keepwaifu/backend/internal/config"
	"github.com/keepwaifu/backend/internal/storage"
)

// Core is the set of services the HTTP layer and the CLI are built on.
type Core struct {
	Resolver    *ProfileResolver
	Ledger      *CharmLedger
	Leaderboard *LeaderboardService
	Collections *CollectionService
	Inspector   *Inspector
	Stream      *CharmStream
	Sync        *ProfileSync
}

// NewCore wires services over ds. Missing handles degrade the matching
// feature; nothing here fails.
func NewCore(ds *storage.DataSources, cfg *config.Config) *Core {
	avatars := NewAvatarPolicy(cfg.PlaceholderHosts)
	timeout := cfg.OpTimeout
	defaultName := cfg.DefaultName
	if defaultName == "" {
		defaultName = "Traveler"
	}

	profiles := NewMongoProfileService(ds.Profiles, avatars, defaultName)
	global := NewMongoUserDocs(storage.GlobalProfilesCollection, ds.GlobalProfiles)
	snapshot := NewMongoSnapshotService(ds.Snapshot)

	legacy := make(map[string]CollectionStore, len(cfg.Categories))
	secondaries := []DocumentSource{global}
	for _, cat := range cfg.Categories {
		docs := NewMongoUserDocs(storage.LegacyUsersCollection+":"+cat, ds.Legacy[cat])
		legacy[cat] = docs
		secondaries = append(secondaries, docs)
	}

	ledger := NewCharmLedger(ds.Redis, cfg.Categories, timeout)
	cache := NewProfileCache(ds.Redis, avatars, defaultName, timeout)
	writer := NewProfileSync(profiles, cache, timeout)
	resolver := NewProfileResolver(ResolverConfig{
		Primary:     profiles,
		Secondaries: secondaries,
		Avatars:     avatars,
		DefaultName: defaultName,
		Sync:        writer,
		Timeout:     timeout,
	})

	fallback := "waifu"
	if len(cfg.Categories) > 0 {
		fallback = cfg.Categories[0]
	}

	inspected := append([]DocumentSource{profiles}, secondaries...)
	inspected = append(inspected, snapshot)

	return &Core{
		Resolver: resolver,
		Ledger:   ledger,
		Leaderboard: NewLeaderboardService(LeaderboardConfig{
			Ledger:   ledger,
			Snapshot: snapshot,
			Legacy:   legacy,
			Profiles: profiles,
			Cache:    cache,
			Resolver: resolver,
			Timeout:  timeout,
		}),
		Collections: NewCollectionService(legacy, fallback, timeout),
		Inspector:   NewInspector(inspected, timeout),
		Stream:      NewCharmStream(ds.Redis),
		Sync:        writer,
	}
}
