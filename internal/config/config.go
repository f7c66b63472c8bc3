package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/river-flow-service/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// RiverTablePath points at a river table JSON file; empty means the
	// embedded Cumberland table.
	RiverTablePath string

	// USGS gauge client configuration.
	USGSBaseURL      string
	USGSTimeout      time.Duration
	GaugeCacheTTL    time.Duration // 0 disables the reading cache
	SiteNamesEnabled bool

	// Flow propagation constants.
	Flow          domain.FlowParams
	PathStepMiles float64

	// Kafka estimate publishing (feature-flagged on KAFKA_BROKERS).
	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaSinkTopic string
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	usgsTimeout, err := parseDurationEnv("USGS_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseDurationEnv("GAUGE_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	flow := domain.DefaultFlowParams()
	if flow.AssumedVelocityMPH, err = parseFloatEnv("ASSUMED_VELOCITY_MPH", flow.AssumedVelocityMPH); err != nil {
		return nil, err
	}
	if flow.AttenuationMiles, err = parseFloatEnv("ATTENUATION_MILES", flow.AttenuationMiles); err != nil {
		return nil, err
	}
	if flow.EstimateFraction, err = parseFloatEnv("ESTIMATE_FRACTION", flow.EstimateFraction); err != nil {
		return nil, err
	}
	if flow.UpstreamFactor, err = parseFloatEnv("UPSTREAM_FACTOR", flow.UpstreamFactor); err != nil {
		return nil, err
	}
	if err := flow.Validate(); err != nil {
		return nil, err
	}

	stepMiles, err := parseFloatEnv("PATH_STEP_MILES", 1.0)
	if err != nil {
		return nil, err
	}
	if stepMiles <= 0 {
		return nil, errors.New("PATH_STEP_MILES must be positive")
	}

	siteNames, err := parseBoolEnv("SITE_NAMES_ENABLED", true)
	if err != nil {
		return nil, err
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		RiverTablePath: os.Getenv("RIVER_TABLE"),

		USGSBaseURL:      sharedcfg.EnvOrDefault("USGS_BASE_URL", "https://waterservices.usgs.gov"),
		USGSTimeout:      usgsTimeout,
		GaugeCacheTTL:    cacheTTL,
		SiteNamesEnabled: siteNames,

		Flow:          flow,
		PathStepMiles: stepMiles,

		KafkaEnabled:   len(brokers) > 0,
		KafkaBrokers:   brokers,
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "river-flow-estimates"),
	}

	if cfg.USGSBaseURL == "" {
		return nil, errors.New("USGS_BASE_URL is required")
	}
	if cfg.USGSTimeout <= 0 {
		return nil, errors.New("USGS_TIMEOUT must be positive")
	}
	if cfg.GaugeCacheTTL < 0 {
		return nil, errors.New("GAUGE_CACHE_TTL must not be negative")
	}
	if cfg.KafkaEnabled && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseFloatEnv(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
