package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("MESSAGING_ENABLED", "false")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_WRITER_DSN", "file::memory:?cache=shared")
}

func TestNewDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "noop", cfg.Cache.Driver)
	assert.Equal(t, "noop", cfg.Messaging.Driver)
	assert.Equal(t, cfg.Database.WriterDSN, cfg.Database.ReaderDSN)
	assert.Equal(t, DefaultTxTimeout, cfg.Ledger.TxTimeout)
	assert.Equal(t, DefaultHistoryPageSize, cfg.Ledger.HistoryPageSize)
	assert.Equal(t, "database", cfg.Activity.Sink)
	assert.Equal(t, DefaultDetailMaxLength, cfg.Activity.DetailMaxLength)
	assert.Equal(t, 1.0, cfg.Observability.TraceSampleRatio)
}

func TestNewNormalisesLedgerBounds(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("LEDGER_TX_TIMEOUT", "10s")
	t.Setenv("LEDGER_MERGE_TIMEOUT", "2s")
	t.Setenv("LEDGER_HISTORY_PAGE_SIZE", "80")
	t.Setenv("LEDGER_HISTORY_MAX_PAGE_SIZE", "20")
	t.Setenv("OBS_PROMETHEUS_PATH", "prom")
	t.Setenv("OBS_LOG_LEVEL_PATH", "loglevel")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Ledger.MergeTimeout)
	assert.Equal(t, 80, cfg.Ledger.HistoryMaxPageSize)
	assert.Equal(t, "/prom", cfg.Observability.PrometheusPath)
	assert.Equal(t, "/loglevel", cfg.Observability.LogLevelPath)
}

func TestNewRejectsInvalidSettings(t *testing.T) {
	cases := map[string]map[string]string{
		"database driver":  {"DB_DRIVER": "oracle"},
		"activity sink":    {"ACTIVITY_SINK": "syslog"},
		"messaging sink":   {"ACTIVITY_SINK": "messaging"},
		"sample ratio":     {"OBS_TRACE_SAMPLE_RATIO": "1.5"},
		"http port":        {"HTTP_PORT": "0"},
		"empty writer dsn": {"DB_WRITER_DSN": ""},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := New()
			assert.Error(t, err)
		})
	}
}

func TestEnvHelpersFallBackOnMalformedValues(t *testing.T) {
	t.Setenv("TABLINE_TEST_INT", "twelve")
	t.Setenv("TABLINE_TEST_DURATION", " 3s ")
	t.Setenv("TABLINE_TEST_SLICE", " a, ,b ")
	t.Setenv("TABLINE_TEST_EMPTY_SLICE", " , ")

	assert.Equal(t, 7, getEnvAsInt("TABLINE_TEST_INT", 7))
	assert.Equal(t, 3*time.Second, getEnvAsDuration("TABLINE_TEST_DURATION", time.Second))
	assert.Equal(t, []string{"a", "b"}, getEnvAsStringSlice("TABLINE_TEST_SLICE", nil))
	assert.Equal(t, []string{"x"}, getEnvAsStringSlice("TABLINE_TEST_EMPTY_SLICE", []string{"x"}))
	assert.True(t, getEnvAsBool("TABLINE_TEST_UNSET", true))
}
