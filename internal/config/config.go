package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/metar-etl-service/internal/metar"
)

// Report sources.
const (
	SourceKafka = "kafka"
	SourceNOAA  = "noaa"
)

// DefaultNOAABaseURL serves one text file per station: {base}/{STATION}.TXT.
const DefaultNOAABaseURL = "https://tgftp.nws.noaa.gov/data/observations/metar/stations"

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	KafkaSinkEnabled bool
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Source selects where raw report lines come from: a Kafka topic or a
	// NOAA poller over Stations.
	Source       string
	Stations     []string
	PollInterval time.Duration

	// NOAA fetch configuration, used by the poller and the live lookup endpoint.
	NOAABaseURL    string
	NOAATimeout    time.Duration
	NOAAMaxRetries int
	NOAACacheSize  int
	NOAACacheTTL   time.Duration

	// Optional sinks. Empty values disable them.
	SQLitePath      string
	MQTTBroker      string
	MQTTClientID    string
	MQTTTopicPrefix string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	pollInterval, err := parsePositiveDuration("POLL_INTERVAL", "10m")
	if err != nil {
		return nil, err
	}
	noaaTimeout, err := parsePositiveDuration("NOAA_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	noaaCacheTTL, err := parsePositiveDuration("NOAA_CACHE_TTL", "5m")
	if err != nil {
		return nil, err
	}

	noaaMaxRetries, err := parseNonNegativeInt("NOAA_MAX_RETRIES", 2)
	if err != nil {
		return nil, err
	}

	stations, err := parseStations(os.Getenv("STATIONS"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "raw-metar-reports"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "decoded-metar-reports"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "metar-etl"),
		KafkaSinkEnabled:   sharedcfg.EnvOrDefault("KAFKA_SINK_ENABLED", "true") == "true",
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		Source:       sharedcfg.EnvOrDefault("SOURCE", SourceKafka),
		Stations:     stations,
		PollInterval: pollInterval,

		NOAABaseURL:    strings.TrimRight(sharedcfg.EnvOrDefault("NOAA_BASE_URL", DefaultNOAABaseURL), "/"),
		NOAATimeout:    noaaTimeout,
		NOAAMaxRetries: noaaMaxRetries,
		NOAACacheSize:  parseNOAACacheSize(),
		NOAACacheTTL:   noaaCacheTTL,

		SQLitePath:      os.Getenv("SQLITE_PATH"),
		MQTTBroker:      os.Getenv("MQTT_BROKER"),
		MQTTClientID:    sharedcfg.EnvOrDefault("MQTT_CLIENT_ID", "metar-etl"),
		MQTTTopicPrefix: strings.Trim(sharedcfg.EnvOrDefault("MQTT_TOPIC_PREFIX", "metar"), "/"),
	}

	switch cfg.Source {
	case SourceKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaSourceTopic == "" {
			return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
		}
	case SourceNOAA:
		if len(cfg.Stations) == 0 {
			return nil, errors.New("STATIONS is required when SOURCE is noaa")
		}
	default:
		return nil, fmt.Errorf("invalid SOURCE %q: want kafka or noaa", cfg.Source)
	}

	if cfg.KafkaSinkEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required")
		}
	}

	return cfg, nil
}

// parseStations splits a comma-separated station list and normalizes each code.
func parseStations(s string) ([]string, error) {
	var stations []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		code, err := metar.NormalizeStation(part)
		if err != nil {
			return nil, fmt.Errorf("invalid STATIONS: %w", err)
		}
		if seen[code] {
			continue
		}
		seen[code] = true
		stations = append(stations, code)
	}
	return stations, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseNonNegativeInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseNOAACacheSize() int {
	if s := os.Getenv("NOAA_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 500
}
