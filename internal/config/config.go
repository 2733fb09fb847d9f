// Package config loads the server's environment-driven settings.
package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds the settings the source reads from the environment. Several
// of these back collaborators that are out of this server's scope (the
// admin API, reverse geocoding) but are still loaded here since they come
// from the same environment this process owns.
type Config struct {
	KafkaBroker      string
	AdminUsername    string
	AdminPassword    string
	GoogleMapsAPIKey string
}

// Load reads a .env file if present (ignored if missing) and then the
// process environment, applying defaults for anything unset.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		KafkaBroker:      getenv("KAFKA_BROKER", "localhost:9092"),
		AdminUsername:    getenv("ADMIN_USERNAME", "admin@quikmile.com"),
		AdminPassword:    getenv("ADMIN_PASSWORD", "admin"),
		GoogleMapsAPIKey: os.Getenv("GOOGLE_MAPS_API_KEY"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
