package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"STORE_DRIVER", "PIPELINE_DRIVER", "LOCK_TIMEOUT", "STORE_RETRY_BACKOFF", "DECISION_MODE", "RUN_WORKERS"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, PipelineMemory, cfg.PipelineDriver)
	assert.Equal(t, 2*time.Second, cfg.LockTimeout)
	assert.Equal(t, []time.Duration{50 * time.Millisecond, 200 * time.Millisecond, 800 * time.Millisecond}, cfg.StoreBackoff)
	assert.Equal(t, "auto", cfg.DecisionMode)
	assert.True(t, cfg.RunWorkers)
	assert.Equal(t, 24*time.Hour, cfg.CancellationLeadTime)
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PIPELINE_DRIVER", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("CONSUMER_RETRY_BACKOFF", "10ms,20ms")
	t.Setenv("CONSUMER_MAX_ATTEMPTS", "3")
	t.Setenv("RUN_WORKERS", "off")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, cfg.ConsumerBackoff)
	assert.Equal(t, 3, cfg.ConsumerMaxAttempts)
	assert.False(t, cfg.RunWorkers)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"postgres without url", map[string]string{"STORE_DRIVER": "postgres", "DATABASE_URL": ""}},
		{"kafka without brokers", map[string]string{"PIPELINE_DRIVER": "kafka", "KAFKA_BROKERS": ""}},
		{"amqp without url", map[string]string{"PIPELINE_DRIVER": "amqp", "AMQP_URL": ""}},
		{"bad duration", map[string]string{"LOCK_TIMEOUT": "soon"}},
		{"bad backoff", map[string]string{"STORE_RETRY_BACKOFF": "1s,x"}},
		{"bad mode", map[string]string{"DECISION_MODE": "maybe"}},
		{"bad bool", map[string]string{"RUN_WORKERS": "perhaps"}},
		{"unknown driver", map[string]string{"STORE_DRIVER": "sqlite"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}
