package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Snapshot data sources.
	DataDir           string
	FloodTilesDir     string
	DataBaseURL       string
	DataTimeout       time.Duration
	SnapshotCacheSize int

	// Timer cadences.
	PlaybackInterval time.Duration
	FrameInterval    time.Duration

	// Optional shared snapshot cache.
	RedisAddr string
	RedisTTL  time.Duration

	// Optional playback event publishing.
	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaEventsTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	dataTimeout, err := parsePositiveDuration("DATA_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	playbackInterval, err := parsePositiveDuration("PLAYBACK_INTERVAL", "1s")
	if err != nil {
		return nil, err
	}
	frameInterval, err := parsePositiveDuration("FRAME_INTERVAL", "30ms")
	if err != nil {
		return nil, err
	}
	redisTTL, err := parsePositiveDuration("REDIS_TTL", "10m")
	if err != nil {
		return nil, err
	}

	brokers := os.Getenv("KAFKA_BROKERS")
	kafkaEnabled := brokers != ""
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DataDir:           sharedcfg.EnvOrDefault("DATA_DIR", "data"),
		FloodTilesDir:     sharedcfg.EnvOrDefault("FLOOD_TILES_DIR", "data/flood_tiles"),
		DataBaseURL:       os.Getenv("DATA_BASE_URL"),
		DataTimeout:       dataTimeout,
		SnapshotCacheSize: parseCacheSize(),

		PlaybackInterval: playbackInterval,
		FrameInterval:    frameInterval,

		RedisAddr: os.Getenv("REDIS_ADDR"),
		RedisTTL:  redisTTL,

		KafkaEnabled:     kafkaEnabled,
		KafkaEventsTopic: sharedcfg.EnvOrDefault("KAFKA_EVENTS_TOPIC", "playback-events"),
	}
	if brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaEventsTopic == "" {
		return nil, errors.New("KAFKA_EVENTS_TOPIC is required")
	}
	if cfg.DataDir == "" && cfg.DataBaseURL == "" {
		return nil, errors.New("DATA_DIR or DATA_BASE_URL is required")
	}

	return cfg, nil
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseCacheSize() int {
	if s := os.Getenv("SNAPSHOT_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 64
}
