package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{"KAFKA_BROKER", "ADMIN_USERNAME", "ADMIN_PASSWORD", "GOOGLE_MAPS_API_KEY"}
	saved := make(map[string]string, len(keys))
	for _, k := range keys {
		saved[k] = os.Getenv(k)
		os.Unsetenv(k)
	}
	t.Cleanup(func() {
		for k, v := range saved {
			if v != "" {
				os.Setenv(k, v)
			} else {
				os.Unsetenv(k)
			}
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	assert.Equal(t, "localhost:9092", cfg.KafkaBroker)
	assert.Equal(t, "admin@quikmile.com", cfg.AdminUsername)
	assert.Equal(t, "admin", cfg.AdminPassword)
	assert.Equal(t, "", cfg.GoogleMapsAPIKey)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	os.Setenv("KAFKA_BROKER", "kafka.internal:9092")
	os.Setenv("ADMIN_USERNAME", "ops@quikmile.com")
	os.Setenv("ADMIN_PASSWORD", "hunter2")
	os.Setenv("GOOGLE_MAPS_API_KEY", "test-key")

	cfg := Load()
	assert.Equal(t, "kafka.internal:9092", cfg.KafkaBroker)
	assert.Equal(t, "ops@quikmile.com", cfg.AdminUsername)
	assert.Equal(t, "hunter2", cfg.AdminPassword)
	assert.Equal(t, "test-key", cfg.GoogleMapsAPIKey)
}
