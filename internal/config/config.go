package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port        string
	Env         string
	LogLevel    string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Voice conversation policy. Retry limit is the number of consecutive
	// parse failures tolerated on one question before it is skipped.
	VoiceRetryLimit      int
	SessionIdleTimeout   time.Duration
	SessionSweepInterval time.Duration

	// Triage thresholds. These are clinical policy, reviewed by the care
	// team, and deliberately overridable per deployment.
	TriagePainRed       int
	TriageBreathingRed  int
	TriagePainYellowMin int
	TriagePainYellowMax int
	TriageOverallYelMin int
	TriageOverallYelMax int

	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		VoiceRetryLimit:      getEnvAsInt("VOICE_RETRY_LIMIT", 2),
		SessionIdleTimeout:   getEnvAsDuration("SESSION_IDLE_TIMEOUT", 10*time.Minute),
		SessionSweepInterval: getEnvAsDuration("SESSION_SWEEP_INTERVAL", time.Minute),

		TriagePainRed:       getEnvAsInt("TRIAGE_PAIN_RED", 7),
		TriageBreathingRed:  getEnvAsInt("TRIAGE_BREATHING_RED", 6),
		TriagePainYellowMin: getEnvAsInt("TRIAGE_PAIN_YELLOW_MIN", 4),
		TriagePainYellowMax: getEnvAsInt("TRIAGE_PAIN_YELLOW_MAX", 6),
		TriageOverallYelMin: getEnvAsInt("TRIAGE_OVERALL_YELLOW_MIN", 5),
		TriageOverallYelMax: getEnvAsInt("TRIAGE_OVERALL_YELLOW_MAX", 7),

		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
