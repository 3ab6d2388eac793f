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
	content := `
site:
  id: "test-site"
  timezone: "Europe/Madrid"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
  topics:
    - "gas/datos"
    - "gas/legacy"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if len(cfg.MQTT.Topics) != 2 || cfg.MQTT.Topics[1] != "gas/legacy" {
		t.Errorf("MQTT.Topics = %v, want [gas/datos gas/legacy]", cfg.MQTT.Topics)
	}

	// Defaults survive a partial file.
	if cfg.Ingest.ActuatorName != "ventilador" {
		t.Errorf("Ingest.ActuatorName = %q, want %q", cfg.Ingest.ActuatorName, "ventilador")
	}
	if cfg.Ingest.QueueSize != 256 {
		t.Errorf("Ingest.QueueSize = %d, want 256", cfg.Ingest.QueueSize)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
site:
  id: ""
database:
  path: "/tmp/test.db"
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Error("Load() expected validation error for empty site.id, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AIRGUARD_DATABASE_PATH", "/env/airguard.db")
	t.Setenv("AIRGUARD_MQTT_HOST", "broker.internal")
	t.Setenv("AIRGUARD_MQTT_PORT", "8883")
	t.Setenv("AIRGUARD_MQTT_TOPICS", "gas/datos, ,plant/+/datos")

	cfg, err := Load(writeConfig(t, "site:\n  id: \"s\"\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/env/airguard.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.MQTT.Broker.Host != "broker.internal" {
		t.Errorf("MQTT.Broker.Host = %q, want env override", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if len(cfg.MQTT.Topics) != 2 || cfg.MQTT.Topics[1] != "plant/+/datos" {
		t.Errorf("MQTT.Topics = %v, want [gas/datos plant/+/datos]", cfg.MQTT.Topics)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config { return defaultConfig() }

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "missing site id", mutate: func(c *Config) { c.Site.ID = "" }, wantErr: "site.id"},
		{name: "bad timezone", mutate: func(c *Config) { c.Site.Timezone = "Mars/Olympus" }, wantErr: "site.timezone"},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: "database.path"},
		{name: "qos out of range", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: "mqtt.qos"},
		{name: "no topics", mutate: func(c *Config) { c.MQTT.Topics = nil }, wantErr: "mqtt.topics"},
		{name: "blank topic", mutate: func(c *Config) { c.MQTT.Topics = []string{" "} }, wantErr: "mqtt.topics"},
		{name: "zero queue", mutate: func(c *Config) { c.Ingest.QueueSize = 0 }, wantErr: "ingest.queue_size"},
		{name: "zero dispatch timeout", mutate: func(c *Config) { c.Ingest.DispatchTimeout = 0 }, wantErr: "ingest.dispatch_timeout"},
		{
			name:    "influx enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true; c.InfluxDB.Bucket = "b" },
			wantErr: "influxdb.url",
		},
		{name: "ops port invalid", mutate: func(c *Config) { c.Ops.Port = 0 }, wantErr: "ops.port"},
		{name: "ops disabled ignores port", mutate: func(c *Config) { c.Ops.Enabled = false; c.Ops.Port = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Location(t *testing.T) {
	cfg := defaultConfig()
	loc, err := cfg.Location()
	if err != nil || loc != time.Local {
		t.Errorf("Location() = %v, %v; want time.Local", loc, err)
	}

	cfg.Site.Timezone = "UTC"
	loc, err = cfg.Location()
	if err != nil || loc.String() != "UTC" {
		t.Errorf("Location() = %v, %v; want UTC", loc, err)
	}
}

func TestConfig_GetDispatchTimeout(t *testing.T) {
	cfg := defaultConfig()
	if got := cfg.GetDispatchTimeout(); got != 10*time.Second {
		t.Errorf("GetDispatchTimeout() = %v, want 10s", got)
	}
}
