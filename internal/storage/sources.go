package storage

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/keepwaifu/backend/internal/config"
)

const (
	RegisteredUsersCollection = "registered_users"
	GlobalProfilesCollection  = "global_user_profiles"
	LegacyUsersCollection     = "user_collection_lmaoooo"
	SnapshotCollection        = "top_global"
)

// DataSources holds every external handle, built once at start-up and shared
// read-only afterwards. Any field may be nil when its source is unavailable.
type DataSources struct {
	Redis *redis.Client

	Profiles       *mongo.Collection
	GlobalProfiles *mongo.Collection
	Snapshot       *mongo.Collection
	// Legacy maps a category to its per-game user collection.
	Legacy map[string]*mongo.Collection

	clients []*mongo.Client
}

// Open connects to every configured source. It never fails; unreachable
// sources are simply left nil. Identical URIs share one client.
func Open(ctx context.Context, cfg *config.Config) *DataSources {
	ds := &DataSources{Legacy: make(map[string]*mongo.Collection)}
	byURI := make(map[string]*mongo.Client)

	connect := func(name, uri string) *mongo.Client {
		if c, ok := byURI[uri]; ok {
			return c
		}
		c := ConnectMongo(ctx, name, uri, cfg.ConnectTimeout)
		if c != nil {
			byURI[uri] = c
			ds.clients = append(ds.clients, c)
		}
		return c
	}

	if market := connect("market", cfg.MarketMongoURI); market != nil {
		db := market.Database(cfg.MongoDB)
		ds.Profiles = db.Collection(RegisteredUsersCollection)
		ds.GlobalProfiles = db.Collection(GlobalProfilesCollection)
		ds.Snapshot = db.Collection(SnapshotCollection)
		ensureIndexes(ctx, ds.Profiles, ds.Snapshot)
	}

	for _, cat := range cfg.Categories {
		if c := connect(cat, cfg.CategoryMongoURIs[cat]); c != nil {
			ds.Legacy[cat] = c.Database(cfg.MongoDB).Collection(LegacyUsersCollection)
		}
	}

	ds.Redis = ConnectRedis(ctx, RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Timeout:  cfg.ConnectTimeout,
	})
	return ds
}

// Best-effort indexes.
func ensureIndexes(ctx context.Context, profiles, snapshot *mongo.Collection) {
	if _, err := profiles.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		log.Debug().Err(err).Msg("registered_users index not created")
	}
	if _, err := snapshot.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "score", Value: -1}}},
	}); err != nil {
		log.Debug().Err(err).Msg("top_global indexes not created")
	}
}

// Close disconnects every client. Safe on a partially opened set.
func (d *DataSources) Close(ctx context.Context) {
	for _, c := range d.clients {
		if err := c.Disconnect(ctx); err != nil {
			log.Warn().Err(err).Msg("mongo disconnect")
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			log.Warn().Err(err).Msg("redis close")
		}
	}
}
