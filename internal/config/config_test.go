package config

import (
	"os"
	"testing"
)

func TestLoad(t *testing.T) {
	// Create temporary config file
	content := `
server:
  port: 9090
  host: "127.0.0.1"

database:
  host: "testdb"
  port: 5432
  user: "testuser"
  password: "testpass"
  dbname: "streamcast_test"

provisioning:
  portRangeStart: 8100
  portRangeEnd: 8110

shoutcast:
  hostname: "shoutcast.internal"
  adminPort: 8000
  adminPassword: "hackme"
`

	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpfile.Name())

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	// Load config
	cfg, err := Load(tmpfile.Name())
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify loaded values
	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Expected host 127.0.0.1, got %s", cfg.Server.Host)
	}

	if cfg.Provisioning.PortRangeStart != 8100 || cfg.Provisioning.PortRangeEnd != 8110 {
		t.Errorf("Unexpected port range %d-%d",
			cfg.Provisioning.PortRangeStart, cfg.Provisioning.PortRangeEnd)
	}

	if cfg.Shoutcast.Hostname != "shoutcast.internal" {
		t.Errorf("Expected shoutcast hostname shoutcast.internal, got %s", cfg.Shoutcast.Hostname)
	}

	// Defaults should fill unset values
	if cfg.Provisioning.DefaultBitrate != 128 {
		t.Errorf("Expected default bitrate 128, got %d", cfg.Provisioning.DefaultBitrate)
	}

	if cfg.Monitoring.SampleLimit != 100 {
		t.Errorf("Expected default sample limit 100, got %d", cfg.Monitoring.SampleLimit)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Provisioning: ProvisioningConfig{
			PortRangeStart: 8200,
			PortRangeEnd:   8100,
			PasswordLength: 16,
		},
	}

	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for inverted port range")
	}

	cfg.Provisioning.PortRangeStart = 8100
	cfg.Provisioning.PortRangeEnd = 8200
	cfg.Provisioning.PasswordLength = 8

	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for short password length")
	}

	cfg.Provisioning.PasswordLength = 16
	if err := cfg.Validate(); err != nil {
		t.Errorf("Unexpected validation error: %v", err)
	}
}
