package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"MONGO_URI", "MARKET_DB_URL", "REDIS_ADDR", "REDIS_HOST", "CATEGORIES", "OP_TIMEOUT"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, "Character_catcher", cfg.MongoDB)
	assert.Equal(t, "Traveler", cfg.DefaultName)
	assert.Equal(t, []string{"waifu", "husband"}, cfg.Categories)
	assert.Equal(t, []string{"picsum.photos"}, cfg.PlaceholderHosts)
	assert.Equal(t, 5*time.Second, cfg.OpTimeout)
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.MarketMongoURI)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://shared:27017")
	t.Setenv("MARKET_DB_URL", "mongodb://market:27017")
	t.Setenv("MONGO_URL_HUSBAND", "mongodb://husband:27017")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("CATEGORIES", "Waifu, Husband")
	t.Setenv("OP_TIMEOUT", "750ms")

	cfg := Load()
	assert.Equal(t, "mongodb://market:27017", cfg.MarketMongoURI)
	assert.Equal(t, "mongodb://shared:27017", cfg.CategoryMongoURIs["waifu"])
	assert.Equal(t, "mongodb://husband:27017", cfg.CategoryMongoURIs["husband"])
	assert.Equal(t, "cache:6380", cfg.RedisAddr)
	assert.Equal(t, 750*time.Millisecond, cfg.OpTimeout)
	assert.True(t, cfg.HasCategory(" HUSBAND "))
	assert.False(t, cfg.HasCategory("pirate"))
}

func TestLoad_RedisAddrWins(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis.internal:6379")
	t.Setenv("REDIS_HOST", "ignored")

	assert.Equal(t, "redis.internal:6379", Load().RedisAddr)
}
