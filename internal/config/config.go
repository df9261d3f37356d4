package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// DefaultBaseURL is the NCEI directory holding the Storm Events CSV archives.
const DefaultBaseURL = "https://www.ncei.noaa.gov/pub/data/swdi/stormevents/csvfiles/"

// Config holds the ambient settings of a run, populated from environment
// variables. Stage inputs (years, columns, database) come from the command
// line instead.
type Config struct {
	BaseURL    string
	LandingDir string
	ExtractDir string
	FilesList  string // empty means the packaged table

	HTTPTimeout     time.Duration
	MongoTimeout    time.Duration
	MongoAuthSource string

	KafkaBrokers []string
	KafkaTopic   string

	MetricsTextfile string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	httpTimeout, err := parsePositiveDuration("HTTP_TIMEOUT", "5m")
	if err != nil {
		return nil, err
	}

	mongoTimeout, err := parsePositiveDuration("MONGO_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		BaseURL:         sharedcfg.EnvOrDefault("STORM_BASE_URL", DefaultBaseURL),
		LandingDir:      sharedcfg.EnvOrDefault("LANDING_DIR", "landDir"),
		ExtractDir:      sharedcfg.EnvOrDefault("EXTRACT_DIR", "extractDir"),
		FilesList:       sharedcfg.EnvOrDefault("FILES_LIST", ""),
		HTTPTimeout:     httpTimeout,
		MongoTimeout:    mongoTimeout,
		MongoAuthSource: sharedcfg.EnvOrDefault("MONGO_AUTH_SOURCE", ""),
		KafkaBrokers:    sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:      sharedcfg.EnvOrDefault("KAFKA_TOPIC", "raw-weather-reports"),
		MetricsTextfile: sharedcfg.EnvOrDefault("METRICS_TEXTFILE", ""),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "text"),
		ShutdownTimeout: shutdownTimeout,
	}

	if u, err := url.Parse(cfg.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.New("STORM_BASE_URL must be an absolute URL")
	}
	if cfg.LandingDir == cfg.ExtractDir {
		return nil, errors.New("LANDING_DIR and EXTRACT_DIR must differ")
	}
	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}
