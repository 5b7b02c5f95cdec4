package config

import "os"

// Config holds the application configuration. Parser defaults set here apply
// to every request that does not override them in its body.
type Config struct {
	// Environment
	Environment string
	Port        string

	// Storage
	DatabaseURL string

	// Observability
	SentryDSN string // Sentry DSN for error tracking

	// Parser defaults
	DefaultFormatVersion string // assumed when a source has no %abc- marker, e.g. "2.1.0"
	StrictLexing         bool   // abort on unmatchable source instead of skipping
	PropagateAccidentals string // "", "not", "pitch" or "octave"; "" follows the format version
}

func Load() *Config {
	return &Config{
		Environment:          getEnv("ENVIRONMENT", "development"),
		Port:                 getEnv("PORT", "8080"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		SentryDSN:            getEnv("SENTRY_DSN", ""),
		DefaultFormatVersion: getEnv("ABC_DEFAULT_VERSION", ""),
		StrictLexing:         getEnv("ABC_STRICT_LEX", "false") == "true",
		PropagateAccidentals: getEnv("ABC_PROPAGATE_ACCIDENTALS", ""),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

// IsProduction returns true when running in the production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
