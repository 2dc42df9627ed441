package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
homie:
  prefix: "devices/homie"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "broker.local"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8080
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Homie.Prefix != "devices/homie" {
		t.Errorf("Homie.Prefix = %q, want %q", cfg.Homie.Prefix, "devices/homie")
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}

	// Defaults survive for sections the file omits.
	if cfg.MQTT.StatusTopic != "homiewatch/status" {
		t.Errorf("MQTT.StatusTopic = %q, want %q", cfg.MQTT.StatusTopic, "homiewatch/status")
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	configPath := writeConfig(t, "homie:\n  prefix: homie\n")
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := os.WriteFile(envPath, []byte("HOMIEWATCH_INFLUXDB_TOKEN=from-dotenv\n"), 0600); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("HOMIEWATCH_INFLUXDB_TOKEN") })

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.InfluxDB.Token != "from-dotenv" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "from-dotenv")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	configPath := writeConfig(t, `
homie:
  prefix: "homie/#"
mqtt:
  qos: 3
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	for _, want := range []string{"homie.prefix", "mqtt.qos"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Load() error = %v, want mention of %s", err, want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "defaults",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "multi-segment prefix",
			mutate:  func(c *Config) { c.Homie.Prefix = "site/homie" },
			wantErr: false,
		},
		{
			name:    "empty prefix",
			mutate:  func(c *Config) { c.Homie.Prefix = "" },
			wantErr: true,
		},
		{
			name:    "prefix with wildcard",
			mutate:  func(c *Config) { c.Homie.Prefix = "homie/+" },
			wantErr: true,
		},
		{
			name:    "prefix with trailing slash",
			mutate:  func(c *Config) { c.Homie.Prefix = "homie/" },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "missing broker host",
			mutate:  func(c *Config) { c.MQTT.Broker.Host = "" },
			wantErr: true,
		},
		{
			name:    "status topic inside prefix",
			mutate:  func(c *Config) { c.MQTT.StatusTopic = "homie/homiewatch/$state" },
			wantErr: true,
		},
		{
			name:    "history without database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name: "no database needed without history",
			mutate: func(c *Config) {
				c.Database.Path = ""
				c.History.Enabled = false
			},
			wantErr: false,
		},
		{
			name:    "negative retention",
			mutate:  func(c *Config) { c.History.RetentionDays = -1 },
			wantErr: true,
		},
		{
			name:    "negative history queue",
			mutate:  func(c *Config) { c.History.QueueSize = -1 },
			wantErr: true,
		},
		{
			name: "influxdb enabled without url",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.Bucket = "homie"
			},
			wantErr: true,
		},
		{
			name:    "invalid API port",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: true,
		},
		{
			name: "API port ignored when disabled",
			mutate: func(c *Config) {
				c.API.Enabled = false
				c.API.Port = 0
			},
			wantErr: false,
		},
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
		History: HistoryConfig{
			RetentionDays: 2,
			PruneInterval: 15,
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

	if got := cfg.GetRetention(); got != 48*time.Hour {
		t.Errorf("GetRetention() = %v, want 48h", got)
	}

	if got := cfg.GetPruneInterval(); got != 15*time.Minute {
		t.Errorf("GetPruneInterval() = %v, want 15m", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("HOMIEWATCH_HOMIE_PREFIX", "site/homie")
	t.Setenv("HOMIEWATCH_DATABASE_PATH", "/custom/path.db")
	t.Setenv("HOMIEWATCH_MQTT_HOST", "mqtt.example.com")
	t.Setenv("HOMIEWATCH_MQTT_PORT", "8883")
	t.Setenv("HOMIEWATCH_MQTT_USERNAME", "testuser")
	t.Setenv("HOMIEWATCH_MQTT_PASSWORD", "testpass")
	t.Setenv("HOMIEWATCH_API_HOST", "192.168.1.1")
	t.Setenv("HOMIEWATCH_API_PORT", "9090")
	t.Setenv("HOMIEWATCH_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("HOMIEWATCH_LOG_LEVEL", "debug")

	if err := applyEnvOverrides(cfg); err != nil {
		t.Fatalf("applyEnvOverrides() error = %v", err)
	}

	if cfg.Homie.Prefix != "site/homie" {
		t.Errorf("Homie.Prefix = %q, want %q", cfg.Homie.Prefix, "site/homie")
	}

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}

	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}

	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}

	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}

	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}

	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}

	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestApplyEnvOverrides_InvalidPort(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("HOMIEWATCH_MQTT_PORT", "not-a-port")

	if err := applyEnvOverrides(cfg); err == nil {
		t.Error("applyEnvOverrides() expected error for invalid port, got nil")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Homie.Prefix != "homie" {
		t.Errorf("defaultConfig Homie.Prefix = %q, want %q", cfg.Homie.Prefix, "homie")
	}

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}

	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig Validate() error = %v", err)
	}
}
