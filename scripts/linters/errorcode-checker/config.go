package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the ErrorCode checker configuration
type Config struct {
	ExcludePaths      []string `yaml:"exclude_paths"`
	ForbiddenPatterns []string `yaml:"forbidden_patterns"`
	CheckForbidden    bool     `yaml:"check_forbidden"`
	ExitOnUnused      bool     `yaml:"exit_on_unused"`
	ExitOnDuplicate   bool     `yaml:"exit_on_duplicate"`
	ExitOnForbidden   bool     `yaml:"exit_on_forbidden"`
	Verbose           bool     `yaml:"verbose"`
}

// loadConfig loads configuration from file over the defaults. An empty
// path returns the defaults.
func loadConfig(configPath string) (*Config, error) {
	config := &Config{
		ExcludePaths:      []string{"_examples/", "scripts/", "testdata/", "vendor/", ".git/"},
		ForbiddenPatterns: []string{`fmt\.Errorf`},
		CheckForbidden:    true,
		ExitOnUnused:      true,
		ExitOnDuplicate:   true,
	}

	if configPath == "" {
		return config, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}
	return config, nil
}
