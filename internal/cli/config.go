package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ScanConfig is the YAML scan configuration file: glob patterns
// selecting which files a scan visits.
type ScanConfig struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// LoadScanConfig reads a scan configuration file.
func LoadScanConfig(path string) (*ScanConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scan config: %w", err)
	}
	var cfg ScanConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse scan config %s: %w", path, err)
	}
	return &cfg, nil
}
