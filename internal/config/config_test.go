package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLedgerConfig_Defaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	cfg := LoadLedgerConfig()

	assert.Equal(t, "postgres", cfg.Store)
	assert.Equal(t, 5*time.Second, cfg.LockTimeout)
	assert.Equal(t, 10*time.Second, cfg.NotifyTimeout)
	assert.Equal(t, 100, cfg.MaxBatchSize)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, "redis", cfg.LeaderboardTransport)
	assert.Equal(t, "leaderboard_refresh_queue", cfg.LeaderboardQueue)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "8080", cfg.Port)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	path := filepath.Join(t.TempDir(), ".env")
	content := "LEDGER_STORE=Memory\nLEDGER_LOCK_TIMEOUT=750ms\nKAFKA_BROKERS=k1:9092, k2:9092\nLEADERBOARD_TRANSPORT=kafka\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("LEDGER_MAX_BATCH_SIZE", "25")
	t.Setenv("LEDGER_LOCK_TIMEOUT", "2s")

	require.NoError(t, Load(path))
	cfg := LoadLedgerConfig()

	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, 2*time.Second, cfg.LockTimeout, "environment wins over the file")
	assert.Equal(t, 25, cfg.MaxBatchSize)
	assert.Equal(t, "kafka", cfg.LeaderboardTransport)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}

func TestLoad_MissingFile(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a", "b"}, splitList(" a ,, b "))
}
