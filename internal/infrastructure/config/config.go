package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Variable store backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config is the root configuration structure for the IED simulator.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Modbus    ModbusConfig    `yaml:"modbus"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Variables VariablesConfig `yaml:"variables"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DeviceConfig sizes the process image and identifies the simulated device.
type DeviceConfig struct {
	ID                string `yaml:"id"`
	Name              string `yaml:"name"`
	RegisterCount     int    `yaml:"register_count"`
	ChangeLogCapacity int    `yaml:"change_log_capacity"`
	RecentChanges     int    `yaml:"recent_changes"`
}

// CatalogConfig points at an optional register catalog file. When Path is
// empty the built-in power-industry map is used.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// ModbusConfig contains Modbus TCP server settings.
type ModbusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	UnitID  int    `yaml:"unit_id"` // 0 answers every unit
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// VariablesConfig selects where custom variables are persisted.
type VariablesConfig struct {
	Backend string `yaml:"backend"` // file, sqlite, redis
	File    string `yaml:"file"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// SnapshotConfig contains snapshot file settings.
type SnapshotConfig struct {
	// RestoreOnStart is a snapshot file applied after startup, if set.
	RestoreOnStart string `yaml:"restore_on_start"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	File   string `yaml:"file"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern IEDSIM_SECTION_KEY, for example
// IEDSIM_MODBUS_PORT or IEDSIM_VARIABLES_BACKEND.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault behaves like Load, except that a missing file yields the
// defaults (with environment overrides) instead of an error.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return cfg, err
	}

	cfg = defaultConfig()
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

// defaultConfig returns a Config matching the reference device: 500
// registers per bank, Modbus unit 254 on port 5002, API on port 5000.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			ID:                "ied-001",
			Name:              "Power Industry IED Simulator",
			RegisterCount:     500,
			ChangeLogCapacity: 100,
			RecentChanges:     50,
		},
		Modbus: ModbusConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    5002,
			UnitID:  254,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 5000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Variables: VariablesConfig{
			Backend: BackendFile,
			File:    "custom_variables.json",
		},
		Database: DatabaseConfig{
			Path:        "./data/iedsim.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			Key:  "iedsim:custom_variables",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "iedsim",
			},
			QoS:         1,
			TopicPrefix: "iedsim",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies IEDSIM_* environment variables to cfg.
func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"IEDSIM_DEVICE_ID":         &cfg.Device.ID,
		"IEDSIM_CATALOG_PATH":      &cfg.Catalog.Path,
		"IEDSIM_MODBUS_HOST":       &cfg.Modbus.Host,
		"IEDSIM_API_HOST":          &cfg.API.Host,
		"IEDSIM_VARIABLES_BACKEND": &cfg.Variables.Backend,
		"IEDSIM_VARIABLES_FILE":    &cfg.Variables.File,
		"IEDSIM_DATABASE_PATH":     &cfg.Database.Path,
		"IEDSIM_REDIS_ADDR":        &cfg.Redis.Addr,
		"IEDSIM_REDIS_PASSWORD":    &cfg.Redis.Password,
		"IEDSIM_MQTT_HOST":         &cfg.MQTT.Broker.Host,
		"IEDSIM_MQTT_USERNAME":     &cfg.MQTT.Auth.Username,
		"IEDSIM_MQTT_PASSWORD":     &cfg.MQTT.Auth.Password,
		"IEDSIM_INFLUXDB_URL":      &cfg.InfluxDB.URL,
		"IEDSIM_INFLUXDB_TOKEN":    &cfg.InfluxDB.Token,
		"IEDSIM_LOG_LEVEL":         &cfg.Logging.Level,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"IEDSIM_REGISTER_COUNT": &cfg.Device.RegisterCount,
		"IEDSIM_MODBUS_PORT":    &cfg.Modbus.Port,
		"IEDSIM_MODBUS_UNIT_ID": &cfg.Modbus.UnitID,
		"IEDSIM_API_PORT":       &cfg.API.Port,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", key, err)
		}
		*dst = n
	}

	return nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	}
	if c.Device.RegisterCount < 1 || c.Device.RegisterCount > 65536 {
		errs = append(errs, "device.register_count must be between 1 and 65536")
	}
	if c.Device.ChangeLogCapacity < 1 {
		errs = append(errs, "device.change_log_capacity must be positive")
	}
	if c.Device.RecentChanges < 1 || c.Device.RecentChanges > c.Device.ChangeLogCapacity {
		errs = append(errs, "device.recent_changes must be between 1 and change_log_capacity")
	}

	if c.Modbus.Enabled && (c.Modbus.Port < 1 || c.Modbus.Port > 65535) {
		errs = append(errs, "modbus.port must be between 1 and 65535")
	}
	if c.Modbus.UnitID < 0 || c.Modbus.UnitID > 255 {
		errs = append(errs, "modbus.unit_id must be between 0 and 255")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.WebSocket.PingInterval < 1 || c.WebSocket.PongTimeout < 1 {
		errs = append(errs, "websocket.ping_interval and pong_timeout must be positive")
	}

	switch c.Variables.Backend {
	case BackendFile:
		if c.Variables.File == "" {
			errs = append(errs, "variables.file is required for the file backend")
		}
	case BackendSQLite:
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for the sqlite backend")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, "redis.addr is required for the redis backend")
		}
	default:
		errs = append(errs, "variables.backend must be file, sqlite, or redis")
	}

	if c.MQTT.Enabled && (c.MQTT.QoS < 0 || c.MQTT.QoS > 2) {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.Logging.Output == "file" && c.Logging.File == "" {
		errs = append(errs, "logging.file is required when logging.output is file")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ModbusAddr returns host:port for the Modbus listener.
func (c *Config) ModbusAddr() string {
	return fmt.Sprintf("%s:%d", c.Modbus.Host, c.Modbus.Port)
}

// APIAddr returns host:port for the HTTP listener.
func (c *Config) APIAddr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
