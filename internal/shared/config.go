package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string

	// StoreBackend selects the repository: mysql | mongo | remote
	StoreBackend string
	MySQLDSN     string
	MongoURI     string
	MongoDB      string

	RedisAddr string
	RedisDB   int
	RedisPass string

	PersistenceBase string
	RecommendBase   string

	// ReferenceChecks gates the create-time author/subject existence check
	// against the persistence service.
	ReferenceChecks bool

	OutboundRPS  int
	ForwardLimit int
	CacheTTL     time.Duration
}

func Load() Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	abool := func(k string, def bool) bool {
		if v := os.Getenv(k); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				return b
			}
		}
		return def
	}
	c := Config{
		AppEnv:          env("APP_ENV", "prod"),
		HTTPAddr:        env("HTTP_ADDR", ":8080"),
		MetricsAddr:     env("METRICS_ADDR", ":9100"),
		StoreBackend:    env("STORE_BACKEND", "mysql"),
		MySQLDSN:        env("MYSQL_DSN", "root:root@tcp(localhost:3306)/feedback?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		MongoURI:        env("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:         env("MONGO_DB", "feedback"),
		RedisAddr:       env("REDIS_ADDR", "localhost:6379"),
		RedisPass:       env("REDIS_PASSWORD", ""),
		RedisDB:         atoi("REDIS_DB", 0),
		PersistenceBase: env("PERSISTENCE_BASE_URL", "http://localhost:8081"),
		RecommendBase:   env("RECOMMENDATION_BASE_URL", "http://localhost:8082"),
		ReferenceChecks: abool("REFERENCE_CHECKS", false),
		OutboundRPS:     atoi("OUTBOUND_RPS", 5),
		ForwardLimit:    atoi("FORWARD_LIMIT", 100),
		CacheTTL:        time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,
	}
	switch c.StoreBackend {
	case "mysql", "mongo", "remote":
	default:
		log.Warn().Str("backend", c.StoreBackend).Msg("unknown STORE_BACKEND, falling back to mysql")
		c.StoreBackend = "mysql"
	}
	if c.ReferenceChecks && c.PersistenceBase == "" {
		log.Warn().Msg("REFERENCE_CHECKS enabled but PERSISTENCE_BASE_URL is empty")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
