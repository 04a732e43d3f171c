package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load reads .env (if present) and binds the environment variables the
// service understands. Environment always wins over the file. Dotted keys are
// aliased to the flat names dotenv files produce, so LEDGER_STORE in .env
// answers viper.Get("ledger.store").
func Load(path string) error {
	viper.SetConfigFile(path)
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	bindings := map[string]string{
		"database.host":          "DATABASE_HOST",
		"database.port":          "DATABASE_PORT",
		"database.user":          "DATABASE_USER",
		"database.password":      "DATABASE_PASSWORD",
		"database.name":          "DATABASE_NAME",
		"database.ssl_mode":      "DATABASE_SSL_MODE",
		"database.migrate":       "DATABASE_MIGRATE",
		"redis.host":             "REDIS_HOST",
		"redis.port":             "REDIS_PORT",
		"redis.password":         "REDIS_PASSWORD",
		"redis.db":               "REDIS_DB",
		"jwt.secret_key":         "JWT_SECRET_KEY",
		"log.level":              "LOG_LEVEL",
		"ledger.store":           "LEDGER_STORE",
		"ledger.lock_timeout":    "LEDGER_LOCK_TIMEOUT",
		"ledger.notify_timeout":  "LEDGER_NOTIFY_TIMEOUT",
		"ledger.max_batch_size":  "LEDGER_MAX_BATCH_SIZE",
		"ledger.idempotency_ttl": "LEDGER_IDEMPOTENCY_TTL",
		"leaderboard.transport":  "LEADERBOARD_TRANSPORT",
		"leaderboard.queue":      "LEADERBOARD_QUEUE",
		"kafka.brokers":          "KAFKA_BROKERS",
		"kafka.topic":            "KAFKA_TOPIC",
		"server.port":            "PORT",
	}
	for key, env := range bindings {
		viper.RegisterAlias(key, strings.ToLower(env))
		if err := viper.BindEnv(key, env); err != nil {
			return err
		}
	}

	return viper.ReadInConfig()
}

type LedgerConfig struct {
	Store                string
	LockTimeout          time.Duration
	NotifyTimeout        time.Duration
	MaxBatchSize         int
	IdempotencyTTL       time.Duration
	LeaderboardTransport string
	LeaderboardQueue     string
	KafkaBrokers         []string
	KafkaTopic           string
	Port                 string
}

func LoadLedgerConfig() *LedgerConfig {
	viper.SetDefault("ledger.store", "postgres")
	viper.SetDefault("ledger.lock_timeout", 5*time.Second)
	viper.SetDefault("ledger.notify_timeout", 10*time.Second)
	viper.SetDefault("ledger.max_batch_size", 100)
	viper.SetDefault("ledger.idempotency_ttl", 24*time.Hour)
	viper.SetDefault("leaderboard.transport", "redis")
	viper.SetDefault("leaderboard.queue", "leaderboard_refresh_queue")
	viper.SetDefault("kafka.brokers", "localhost:9092")
	viper.SetDefault("kafka.topic", "leaderboard_refresh")
	viper.SetDefault("server.port", "8080")

	return &LedgerConfig{
		Store:                strings.ToLower(viper.GetString("ledger.store")),
		LockTimeout:          viper.GetDuration("ledger.lock_timeout"),
		NotifyTimeout:        viper.GetDuration("ledger.notify_timeout"),
		MaxBatchSize:         viper.GetInt("ledger.max_batch_size"),
		IdempotencyTTL:       viper.GetDuration("ledger.idempotency_ttl"),
		LeaderboardTransport: strings.ToLower(viper.GetString("leaderboard.transport")),
		LeaderboardQueue:     viper.GetString("leaderboard.queue"),
		KafkaBrokers:         splitList(viper.GetString("kafka.brokers")),
		KafkaTopic:           viper.GetString("kafka.topic"),
		Port:                 viper.GetString("server.port"),
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
