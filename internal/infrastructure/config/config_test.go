package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
device:
  id: "feeder-7"
  register_count: 1000
modbus:
  port: 1502
  unit_id: 1
api:
  port: 8080
variables:
  backend: sqlite
database:
  path: "/tmp/test.db"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Device.ID != "feeder-7" {
		t.Errorf("Device.ID = %q, want %q", cfg.Device.ID, "feeder-7")
	}
	if cfg.Device.RegisterCount != 1000 {
		t.Errorf("Device.RegisterCount = %d, want 1000", cfg.Device.RegisterCount)
	}
	if cfg.ModbusAddr() != "0.0.0.0:1502" {
		t.Errorf("ModbusAddr() = %q, want %q", cfg.ModbusAddr(), "0.0.0.0:1502")
	}
	if cfg.Variables.Backend != BackendSQLite {
		t.Errorf("Variables.Backend = %q, want %q", cfg.Variables.Backend, BackendSQLite)
	}
	// Unset sections keep their defaults.
	if cfg.Device.ChangeLogCapacity != 100 {
		t.Errorf("Device.ChangeLogCapacity = %d, want default 100", cfg.Device.ChangeLogCapacity)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
device:
  id: ""
variables:
  backend: tape
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	for _, want := range []string{"device.id is required", "variables.backend"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestLoadOrDefault(t *testing.T) {
	t.Setenv("IEDSIM_API_PORT", "5080")

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.API.Port != 5080 {
		t.Errorf("API.Port = %d, want 5080 from environment", cfg.API.Port)
	}
	if cfg.Modbus.UnitID != 254 {
		t.Errorf("Modbus.UnitID = %d, want 254", cfg.Modbus.UnitID)
	}
}

func TestLoadOrDefault_InvalidFileStillFails(t *testing.T) {
	path := writeConfig(t, "api: [broken")
	if _, err := LoadOrDefault(path); err == nil {
		t.Error("LoadOrDefault() expected error for invalid YAML, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"missing device id", func(c *Config) { c.Device.ID = "" }, true},
		{"zero registers", func(c *Config) { c.Device.RegisterCount = 0 }, true},
		{"too many registers", func(c *Config) { c.Device.RegisterCount = 70000 }, true},
		{"recent larger than log", func(c *Config) { c.Device.RecentChanges = 200 }, true},
		{"modbus port", func(c *Config) { c.Modbus.Port = 0 }, true},
		{"modbus port ignored when disabled", func(c *Config) { c.Modbus.Enabled = false; c.Modbus.Port = 0 }, false},
		{"unit id", func(c *Config) { c.Modbus.UnitID = 256 }, true},
		{"api port high", func(c *Config) { c.API.Port = 70000 }, true},
		{"websocket ping interval", func(c *Config) { c.WebSocket.PingInterval = 0 }, true},
		{"unknown backend", func(c *Config) { c.Variables.Backend = "tape" }, true},
		{"file backend without file", func(c *Config) { c.Variables.File = "" }, true},
		{"sqlite backend without path", func(c *Config) {
			c.Variables.Backend = BackendSQLite
			c.Database.Path = ""
		}, true},
		{"redis backend without addr", func(c *Config) {
			c.Variables.Backend = BackendRedis
			c.Redis.Addr = ""
		}, true},
		{"mqtt qos", func(c *Config) { c.MQTT.Enabled = true; c.MQTT.QoS = 3 }, true},
		{"influx without url", func(c *Config) { c.InfluxDB.Enabled = true }, true},
		{"file logging without path", func(c *Config) { c.Logging.Output = "file" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("IEDSIM_DATABASE_PATH", "/custom/path.db")
	t.Setenv("IEDSIM_MQTT_HOST", "mqtt.example.com")
	t.Setenv("IEDSIM_MQTT_USERNAME", "testuser")
	t.Setenv("IEDSIM_REDIS_ADDR", "redis:6379")
	t.Setenv("IEDSIM_VARIABLES_BACKEND", "redis")
	t.Setenv("IEDSIM_MODBUS_PORT", "502")
	t.Setenv("IEDSIM_REGISTER_COUNT", "250")

	if err := applyEnvOverrides(cfg); err != nil {
		t.Fatalf("applyEnvOverrides() error = %v", err)
	}

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.Redis.Addr != "redis:6379" {
		t.Errorf("Redis.Addr = %q, want %q", cfg.Redis.Addr, "redis:6379")
	}
	if cfg.Variables.Backend != BackendRedis {
		t.Errorf("Variables.Backend = %q, want %q", cfg.Variables.Backend, BackendRedis)
	}
	if cfg.Modbus.Port != 502 {
		t.Errorf("Modbus.Port = %d, want 502", cfg.Modbus.Port)
	}
	if cfg.Device.RegisterCount != 250 {
		t.Errorf("Device.RegisterCount = %d, want 250", cfg.Device.RegisterCount)
	}
}

func TestApplyEnvOverrides_BadInteger(t *testing.T) {
	t.Setenv("IEDSIM_API_PORT", "eighty")
	if err := applyEnvOverrides(defaultConfig()); err == nil {
		t.Error("applyEnvOverrides() expected error for non-numeric port")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Device.RegisterCount != 500 {
		t.Errorf("Device.RegisterCount = %d, want 500", cfg.Device.RegisterCount)
	}
	if cfg.Modbus.Port != 5002 || cfg.Modbus.UnitID != 254 {
		t.Errorf("Modbus = %+v, want port 5002 unit 254", cfg.Modbus)
	}
	if cfg.API.Port != 5000 {
		t.Errorf("API.Port = %d, want 5000", cfg.API.Port)
	}
	if cfg.Variables.File != "custom_variables.json" {
		t.Errorf("Variables.File = %q, want custom_variables.json", cfg.Variables.File)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig().Validate() error = %v", err)
	}
}
