package storage

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectMongo returns a client for uri, or nil when the URI is empty or the
// driver rejects it. A failed ping is logged but the client is kept: it may
// still work once the cluster is reachable.
func ConnectMongo(ctx context.Context, name, uri string, timeout time.Duration) *mongo.Client {
	if strings.TrimSpace(uri) == "" {
		log.Warn().Str("source", name).Msg("mongo uri not configured, source disabled")
		return nil
	}

	opts := options.Client().ApplyURI(uri)
	if timeout > 0 {
		opts.SetServerSelectionTimeout(timeout).SetConnectTimeout(timeout)
	}
	// Atlas occasionally fails TLS negotiation unless TLS 1.2 is forced.
	if strings.HasPrefix(uri, "mongodb+srv://") {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tls.VersionTLS12,
			MaxVersion: tls.VersionTLS12,
		})
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		log.Warn().Err(err).Str("source", name).Msg("mongo connect failed, source disabled")
		return nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout(timeout))
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		log.Warn().Err(err).Str("source", name).Msg("mongo ping failed, keeping client")
	} else {
		log.Info().Str("source", name).Msg("MongoDB connected")
	}
	return client
}

// RedisConfig is the subset of settings the cache client needs.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
}

// ConnectRedis mirrors ConnectMongo for the cache store.
func ConnectRedis(ctx context.Context, cfg RedisConfig) *redis.Client {
	if strings.TrimSpace(cfg.Addr) == "" {
		log.Warn().Str("source", "redis").Msg("redis address not configured, cache disabled")
		return nil
	}

	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.Timeout > 0 {
		opts.DialTimeout = cfg.Timeout
		opts.ReadTimeout = cfg.Timeout
		opts.WriteTimeout = cfg.Timeout
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout(cfg.Timeout))
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Str("source", "redis").Msg("redis ping failed, keeping client")
	} else {
		log.Info().Str("addr", cfg.Addr).Msg("Redis connected")
	}
	return client
}

func pingTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 5 * time.Second
	}
	return d
}
