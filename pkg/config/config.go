package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServiceName string
	LogLevel    string

	ServerPort int

	DBDriver    string
	DatabaseURL string

	JWTAccessSecret   []byte
	AdminUsername     string
	AdminPasswordHash string

	AdminQueryTimeout time.Duration
	SchemaCacheTTL    time.Duration
	OrdersPageLimit   int

	KafkaBrokers []string

	RabbitMQURL   string
	EmailQueue    string
	ChannelPool   int
	OwnerEmail    string
	OwnerTextTo   string
	OwnerTextOn   bool
	PublicSiteURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ESURL      string
	ESUser     string
	ESPassword string
	ESIndex    string

	WebhookSecret    string
	WebhookTolerance time.Duration
}

func Load() Config {
	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "storefront"),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),

		ServerPort: EnvIntDefault("SERVER_PORT", 8080),

		DBDriver:    EnvDefault("DB_DRIVER", "postgres"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTAccessSecret:   []byte(os.Getenv("JWT_SECRET")),
		AdminUsername:     EnvDefault("ADMIN_USERNAME", "admin"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),

		AdminQueryTimeout: EnvDurationDefault("ADMIN_QUERY_TIMEOUT", 10*time.Second),
		SchemaCacheTTL:    EnvDurationDefault("SCHEMA_CACHE_TTL", 30*time.Second),
		OrdersPageLimit:   EnvIntDefault("ORDERS_PAGE_LIMIT", 50),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),

		RabbitMQURL:   os.Getenv("RABBITMQ_URL"),
		EmailQueue:    EnvDefault("EMAIL_QUEUE", "email_notifications"),
		ChannelPool:   EnvIntDefault("CHANNEL_POOL_SIZE", 4),
		OwnerEmail:    os.Getenv("OWNER_EMAIL"),
		OwnerTextTo:   os.Getenv("OWNER_TEXT_TO"),
		OwnerTextOn:   EnvBoolDefault("OWNER_TEXT_ENABLED", false),
		PublicSiteURL: os.Getenv("PUBLIC_SITE_URL"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       EnvIntDefault("REDIS_DB", 0),

		ESURL:      os.Getenv("ES_URL"),
		ESUser:     os.Getenv("ES_USER"),
		ESPassword: os.Getenv("ES_PASSWORD"),
		ESIndex:    EnvDefault("ES_INDEX", "products"),

		WebhookSecret:    os.Getenv("CHECKOUT_WEBHOOK_SECRET"),
		WebhookTolerance: EnvDurationDefault("CHECKOUT_WEBHOOK_TOLERANCE", 5*time.Minute),
	}
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if os.Getenv(key) != "" {
		return os.Getenv(key)
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// EnvDurationDefault accepts Go duration strings ("750ms", "10s") or a bare
// number of milliseconds.
func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}

func EnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
