// Package config loads toolkit defaults from the environment.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the analysis defaults and the optional repository DSN.
type Config struct {
	PValueCutoff float64
	Adjust       string
	Norm         string
	Transform    string
	Model        string
	BatchLimit   int64

	// PostgresDSN, when set, enables the marker-result repository.
	PostgresDSN string
}

// Load reads configuration from the environment, with a best-effort .env
// load first. Unset variables fall back to the toolkit defaults.
func Load() Config {
	_ = godotenv.Load() // .env is optional

	return Config{
		PValueCutoff: envFloat("GOMARKER_PVALUE_CUTOFF", 0.05),
		Adjust:       envString("GOMARKER_P_ADJUST", "BH"),
		Norm:         envString("GOMARKER_NORM", "CSS"),
		Transform:    envString("GOMARKER_TRANSFORM", "identity"),
		Model:        envString("GOMARKER_MODEL", "ZILN"),
		BatchLimit:   envInt("GOMARKER_BATCH_LIMIT", 4),
		PostgresDSN:  envString("GOMARKER_POSTGRES_DSN", ""),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envInt(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
