package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ReportDef defines a single report the coordinator should start at
// startup. The supported Type values are registered in cmd/ns-coordinator.
type ReportDef struct {
	Type      string   `yaml:"type"`
	Name      string   `yaml:"name"`
	KeyFields []string `yaml:"key_fields"`
	Window    string   `yaml:"window"`
	TickCount uint32   `yaml:"tick_count"`
}

// CoordinatorConfig sizes the coordinator's internal channels and lists the
// reports it should start at boot.
type CoordinatorConfig struct {
	InputBufferCapacity      int         `yaml:"input_buffer_capacity"`
	ReportHostBufferCapacity int         `yaml:"report_host_buffer_capacity"`
	Reports                  []ReportDef `yaml:"reports"`
}

// IngestConfig configures the NATS subscriber that feeds the coordinator.
type IngestConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// AdminConfig configures the coordinator's HTTP control surface.
type AdminConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Config is the top-level configuration struct for ns-coordinator.
type Config struct {
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Admin       AdminConfig       `yaml:"admin"`
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	return &cfg, nil
}
