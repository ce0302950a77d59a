package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Nordur12/SmartAquaria/common/config"

	"github.com/joho/godotenv"
)

const (
	FailurePolicyIsolate  = "isolate"
	FailurePolicyFailFast = "fail_fast"

	DedupModeValue   = "value"
	DedupModeEpisode = "episode"

	StateBackendMemory = "memory"
	StateBackendRedis  = "redis"

	NotifierPush   = "push"
	NotifierMQTT   = "mqtt"
	NotifierStream = "stream"
)

// Config alarm service configuration
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	Alarm struct {
		// PollInterval seconds between in-process poll cycles; 0 disables the ticker
		PollInterval  int
		FailurePolicy string // isolate | fail_fast
		DedupMode     string // value | episode

		State struct {
			Backend   string // memory | redis
			KeyPrefix string // e.g. "aquaria:state:"
		}
	}

	// Source Firebase Realtime Database holding the device documents
	Source struct {
		DatabaseURL string
		AuthToken   string
		Timeout     time.Duration
	}

	Notifier struct {
		Kind string // push | mqtt | stream

		PushEndpoint  string
		PushServerKey string
		PushTimeout   time.Duration

		MQTTTopicPrefix string
		StreamName      string
	}

	HTTP struct {
		Port        int
		BearerToken string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load loads configuration from the environment (and .env when present)
func Load() (*Config, error) {
	_ = godotenv.Load() // missing .env is fine

	cfg := &Config{}

	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "smartaquaria"
	cfg.Database.SSLMode = "disable"
	if err := cfg.Database.LoadFromEnv("DB"); err != nil {
		return nil, err
	}

	cfg.Redis.Addr = "localhost:6379"
	if err := cfg.Redis.LoadFromEnv("REDIS"); err != nil {
		return nil, err
	}

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "aquaria-alarm"
	cfg.MQTT.QoS = 1
	if err := cfg.MQTT.LoadFromEnv("MQTT"); err != nil {
		return nil, err
	}

	var err error
	if cfg.Alarm.PollInterval, err = getEnvInt("POLL_INTERVAL", 10); err != nil {
		return nil, err
	}
	if cfg.Alarm.PollInterval < 0 {
		return nil, fmt.Errorf("invalid POLL_INTERVAL: %d", cfg.Alarm.PollInterval)
	}

	cfg.Alarm.FailurePolicy = getEnv("FAILURE_POLICY", FailurePolicyIsolate)
	if cfg.Alarm.FailurePolicy != FailurePolicyIsolate && cfg.Alarm.FailurePolicy != FailurePolicyFailFast {
		return nil, fmt.Errorf("invalid FAILURE_POLICY: %s", cfg.Alarm.FailurePolicy)
	}

	cfg.Alarm.DedupMode = getEnv("DEDUP_MODE", DedupModeValue)
	if cfg.Alarm.DedupMode != DedupModeValue && cfg.Alarm.DedupMode != DedupModeEpisode {
		return nil, fmt.Errorf("invalid DEDUP_MODE: %s", cfg.Alarm.DedupMode)
	}

	cfg.Alarm.State.Backend = getEnv("STATE_BACKEND", StateBackendMemory)
	if cfg.Alarm.State.Backend != StateBackendMemory && cfg.Alarm.State.Backend != StateBackendRedis {
		return nil, fmt.Errorf("invalid STATE_BACKEND: %s", cfg.Alarm.State.Backend)
	}
	cfg.Alarm.State.KeyPrefix = getEnv("STATE_KEY_PREFIX", "aquaria:state:")

	cfg.Source.DatabaseURL = getEnv("FIREBASE_DATABASE_URL", "")
	cfg.Source.AuthToken = getEnv("FIREBASE_AUTH_TOKEN", "")
	if cfg.Source.Timeout, err = getEnvDuration("SOURCE_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}

	cfg.Notifier.Kind = getEnv("NOTIFIER", NotifierPush)
	switch cfg.Notifier.Kind {
	case NotifierPush, NotifierMQTT, NotifierStream:
	default:
		return nil, fmt.Errorf("invalid NOTIFIER: %s", cfg.Notifier.Kind)
	}
	cfg.Notifier.PushEndpoint = getEnv("PUSH_ENDPOINT", "https://fcm.googleapis.com/fcm/send")
	cfg.Notifier.PushServerKey = getEnv("PUSH_SERVER_KEY", "")
	if cfg.Notifier.PushTimeout, err = getEnvDuration("PUSH_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	cfg.Notifier.MQTTTopicPrefix = getEnv("MQTT_TOPIC_PREFIX", "aquaria/alerts")
	cfg.Notifier.StreamName = getEnv("ALERT_STREAM", "aquaria:alerts")

	if cfg.HTTP.Port, err = getEnvInt("PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.HTTP.Port <= 0 {
		return nil, fmt.Errorf("invalid PORT: %d", cfg.HTTP.Port)
	}
	cfg.HTTP.BearerToken = getEnv("API_BEARER_TOKEN", "")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

// ListenAddr returns the host:port string for the HTTP server
func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.HTTP.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
