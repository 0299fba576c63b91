package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	// LogFile, when set, receives a rotated copy of the JSON log stream.
	LogFile           string
	LogFileMaxMB      int
	LogFileMaxBackups int

	DBDriver          string
	DBDSN             string
	SQLitePath        string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBLogSQL          bool

	BroadcastBuffer   int
	BroadcastOverflow string
	IngestOrder       string

	MQTTEnabled  bool
	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string
	MQTTTopic    string
}

const (
	OverflowDropOldest = "drop-oldest"
	OverflowDisconnect = "disconnect"

	IngestPublishFirst = "publish-first"
	IngestPersistFirst = "persist-first"
)

// LoadDotEnv loads ENV_FILE (or ./.env when present) into the process
// environment. Variables already set are not overridden.
func LoadDotEnv() error {
	path := strings.TrimSpace(os.Getenv("ENV_FILE"))
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %q: %w", path, err)
	}
	return nil
}

func LoadFromEnv() (Config, error) {
	appEnv := envOr("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(envOr("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	logFileMaxMB, err := envInt("LOG_FILE_MAX_MB", 10)
	if err != nil {
		return Config{}, err
	}
	logFileMaxBackups, err := envInt("LOG_FILE_MAX_BACKUPS", 3)
	if err != nil {
		return Config{}, err
	}

	driver := envOr("DB_DRIVER", "sqlite3")
	switch driver {
	case "sqlite3":
	case "postgres", "pgx":
		if strings.TrimSpace(os.Getenv("DB_DSN")) == "" {
			return Config{}, fmt.Errorf("DB_DSN is required for DB_DRIVER %q", driver)
		}
	default:
		return Config{}, fmt.Errorf("invalid DB_DRIVER %q (allowed: sqlite3, postgres, pgx)", driver)
	}

	maxOpenConns, err := envInt("DB_MAX_OPEN_CONNS", 10)
	if err != nil {
		return Config{}, err
	}
	maxIdleConns, err := envInt("DB_MAX_IDLE_CONNS", 5)
	if err != nil {
		return Config{}, err
	}

	connMaxLifetimeStr := envOr("DB_CONN_MAX_LIFETIME", "0s")
	connMaxLifetime, err := time.ParseDuration(connMaxLifetimeStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME %q: %w", connMaxLifetimeStr, err)
	}

	logSQL, err := envBool("DB_LOG_SQL", false)
	if err != nil {
		return Config{}, err
	}

	broadcastBuffer, err := envInt("BROADCAST_BUFFER", 16)
	if err != nil {
		return Config{}, err
	}
	if broadcastBuffer <= 0 {
		return Config{}, fmt.Errorf("invalid BROADCAST_BUFFER %d: must be > 0", broadcastBuffer)
	}

	overflow := envOr("BROADCAST_OVERFLOW", OverflowDropOldest)
	switch overflow {
	case OverflowDropOldest, OverflowDisconnect:
	default:
		return Config{}, fmt.Errorf("invalid BROADCAST_OVERFLOW %q (allowed: %s, %s)", overflow, OverflowDropOldest, OverflowDisconnect)
	}

	ingestOrder := envOr("INGEST_ORDER", IngestPublishFirst)
	switch ingestOrder {
	case IngestPublishFirst, IngestPersistFirst:
	default:
		return Config{}, fmt.Errorf("invalid INGEST_ORDER %q (allowed: %s, %s)", ingestOrder, IngestPublishFirst, IngestPersistFirst)
	}

	mqttEnabled, err := envBool("MQTT_ENABLED", false)
	if err != nil {
		return Config{}, err
	}
	mqttPort, err := envInt("MQTT_PORT", 1883)
	if err != nil {
		return Config{}, err
	}
	if mqttPort <= 0 || mqttPort > 65535 {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %d", mqttPort)
	}

	return Config{
		AppEnv:            appEnv,
		LogLevel:          level,
		HTTPAddr:          envOr("HTTP_ADDR", ":8080"),
		LogFile:           strings.TrimSpace(os.Getenv("LOG_FILE")),
		LogFileMaxMB:      logFileMaxMB,
		LogFileMaxBackups: logFileMaxBackups,
		DBDriver:          driver,
		DBDSN:             strings.TrimSpace(os.Getenv("DB_DSN")),
		SQLitePath:        envOr("SQLITE_PATH", "data/climate.db"),
		DBMaxOpenConns:    maxOpenConns,
		DBMaxIdleConns:    maxIdleConns,
		DBConnMaxLifetime: connMaxLifetime,
		DBLogSQL:          logSQL,
		BroadcastBuffer:   broadcastBuffer,
		BroadcastOverflow: overflow,
		IngestOrder:       ingestOrder,
		MQTTEnabled:       mqttEnabled,
		MQTTBroker:        envOr("MQTT_BROKER", "localhost"),
		MQTTPort:          mqttPort,
		MQTTClientID:      envOr("MQTT_CLIENT_ID", "cloudpico-climate"),
		MQTTTopic:         envOr("MQTT_TOPIC", "climate/measurements"),
	}, nil
}

func envOr(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return b, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
