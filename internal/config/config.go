package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath    string
	FailedDir string
	LogsDir   string
	OutputDir string

	ProzorroAPIBaseURL   string
	ProzorroRateLimitRPS int
	ProzorroTimeoutMs    int
	ProzorroPageLimit    int

	AlephBaseURL   string
	AlephAPIKey    string
	AlephForeignID string
	AlephTimeoutMs int
	AlephChunkSize int

	WatchIntervalSec int
	WatchLookbackHrs int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:    getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		FailedDir: getEnv("FAILED_DIR", filepath.Join(cwd, "data", "failed")),
		LogsDir:   getEnv("LOGS_FOLDER_PATH", ""),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		ProzorroAPIBaseURL:   getEnv("PROZORRO_API_BASE_URL", "https://public.api.openprocurement.org/api/2.5"),
		ProzorroRateLimitRPS: getEnvInt("PROZORRO_RATE_LIMIT_RPS", 5),
		ProzorroTimeoutMs:    getEnvInt("PROZORRO_TIMEOUT_MS", 30000),
		ProzorroPageLimit:    getEnvInt("PROZORRO_PAGE_LIMIT", 100),

		AlephBaseURL:   getEnv("ALEPH_URL", ""),
		AlephAPIKey:    getEnv("ALEPH_API_KEY", ""),
		AlephForeignID: getEnv("ALEPH_FOREIGN_ID", ""),
		AlephTimeoutMs: getEnvInt("ALEPH_TIMEOUT_MS", 60000),
		AlephChunkSize: getEnvInt("ALEPH_CHUNK_SIZE", 1000),

		WatchIntervalSec: getEnvInt("WATCH_INTERVAL_SEC", 300),
		WatchLookbackHrs: getEnvInt("WATCH_LOOKBACK_HRS", 24),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
