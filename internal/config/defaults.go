package config

import (
	"os"
	"path/filepath"

	"pipeline-console/internal/domain"
)

const (
	DefaultModelServerURL = "http://127.0.0.1:8000"
	DefaultPipelineURL    = "http://127.0.0.1:5000/run-full-pipeline"
	DefaultListenAddr     = "127.0.0.1:8090"
)

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		ModelServerURL: DefaultModelServerURL,
		PipelineURL:    DefaultPipelineURL,
		Variant:        domain.VariantFull,
	}
}

// DefaultSettingsPath returns the per-user settings file location.
func DefaultSettingsPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".pipeline-console", "settings.json")
}
