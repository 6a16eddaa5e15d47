package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServerAddress string

	MongoURI       string
	MarketMongoURI string
	MongoDB        string

	// CategoryMongoURIs holds the legacy per-game database of each category,
	// read from MONGO_URL_<CATEGORY>.
	CategoryMongoURIs map[string]string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ConnectTimeout time.Duration
	OpTimeout      time.Duration

	JWTSecret      string
	AdminTokenRole string

	LogLevel  string
	LogPretty bool

	DefaultName      string
	PlaceholderHosts []string
	Categories       []string
}

// Load reads configuration from the environment and an optional ./.env file.
// Nothing here is fatal; empty connection strings disable the matching source.
func Load() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetConfigFile("./.env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	v.SetDefault("SERVER_ADDRESS", ":8080")
	v.SetDefault("MONGO_DB", "Character_catcher")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CONNECT_TIMEOUT", "5s")
	v.SetDefault("OP_TIMEOUT", "5s")
	v.SetDefault("ADMIN_TOKEN_ROLE", "admin")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("DEFAULT_NAME", "Traveler")
	v.SetDefault("PLACEHOLDER_AVATAR_HOSTS", "picsum.photos")
	v.SetDefault("CATEGORIES", "waifu,husband")

	mongoURI := v.GetString("MONGO_URI")
	categories := splitList(strings.ToLower(v.GetString("CATEGORIES")))
	categoryURIs := make(map[string]string, len(categories))
	for _, cat := range categories {
		categoryURIs[cat] = getEnv(v, "MONGO_URL_"+strings.ToUpper(cat), mongoURI)
	}

	return &Config{
		ServerAddress:     v.GetString("SERVER_ADDRESS"),
		MongoURI:          mongoURI,
		MarketMongoURI:    getEnv(v, "MARKET_DB_URL", mongoURI),
		CategoryMongoURIs: categoryURIs,
		MongoDB:           v.GetString("MONGO_DB"),
		RedisAddr:         redisAddr(v),
		RedisPassword:     v.GetString("REDIS_PASSWORD"),
		RedisDB:           v.GetInt("REDIS_DB"),
		ConnectTimeout:    v.GetDuration("CONNECT_TIMEOUT"),
		OpTimeout:         v.GetDuration("OP_TIMEOUT"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		AdminTokenRole:    v.GetString("ADMIN_TOKEN_ROLE"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		LogPretty:         v.GetBool("LOG_PRETTY"),
		DefaultName:       v.GetString("DEFAULT_NAME"),
		PlaceholderHosts:  splitList(v.GetString("PLACEHOLDER_AVATAR_HOSTS")),
		Categories:        categories,
	}
}

// HasCategory reports whether name is one of the configured per-game tracks.
func (c *Config) HasCategory(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, cat := range c.Categories {
		if cat == name {
			return true
		}
	}
	return false
}

func getEnv(v *viper.Viper, key, defaultValue string) string {
	if value := strings.TrimSpace(v.GetString(key)); value != "" {
		return value
	}
	return defaultValue
}

// REDIS_ADDR wins; otherwise REDIS_HOST and REDIS_PORT are joined.
func redisAddr(v *viper.Viper) string {
	if addr := strings.TrimSpace(v.GetString("REDIS_ADDR")); addr != "" {
		return addr
	}
	host := strings.TrimSpace(v.GetString("REDIS_HOST"))
	if host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", host, v.GetString("REDIS_PORT"))
}

func splitList(raw string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
