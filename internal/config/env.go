package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"pipeline-console/internal/domain"
)

// Environment variables recognized on top of the settings file.
const (
	EnvModelServerURL = "MODEL_SERVER_URL"
	EnvPipelineURL    = "PIPELINE_URL"
	EnvVariant        = "PIPELINE_VARIANT"
	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvListenAddr     = "LISTEN_ADDR"
)

// LoadDotEnv loads .env files into the process environment.
// Missing files are ignored; existing variables are never overwritten.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// ApplyEnv overrides settings with non-empty environment values.
func ApplyEnv(settings domain.Settings, lookup func(string) (string, bool)) (domain.Settings, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if v, ok := lookupNonEmpty(lookup, EnvModelServerURL); ok {
		settings.ModelServerURL = v
	}
	if v, ok := lookupNonEmpty(lookup, EnvPipelineURL); ok {
		settings.PipelineURL = v
	}
	if v, ok := lookupNonEmpty(lookup, EnvVariant); ok {
		variant, known := domain.ParseVariant(v)
		if !known {
			return settings, fmt.Errorf("%s: unknown variant %q", EnvVariant, v)
		}
		settings.Variant = variant
	}
	if v, ok := lookupNonEmpty(lookup, EnvRequestTimeout); ok {
		seconds, err := strconv.Atoi(v)
		if err != nil || seconds < 0 {
			return settings, fmt.Errorf("%s: want non-negative seconds, got %q", EnvRequestTimeout, v)
		}
		settings.RequestTimeoutSeconds = seconds
	}

	return Normalize(settings), nil
}

// ListenAddr returns the headless server address.
func ListenAddr(lookup func(string) (string, bool)) string {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookupNonEmpty(lookup, EnvListenAddr); ok {
		return v
	}
	return DefaultListenAddr
}

// Normalize trims user inputs and fills empty fields with defaults.
func Normalize(settings domain.Settings) domain.Settings {
	defaults := DefaultSettings()

	settings.ModelServerURL = strings.TrimRight(strings.TrimSpace(settings.ModelServerURL), "/")
	if settings.ModelServerURL == "" {
		settings.ModelServerURL = defaults.ModelServerURL
	}
	settings.PipelineURL = strings.TrimSpace(settings.PipelineURL)
	if settings.PipelineURL == "" {
		settings.PipelineURL = defaults.PipelineURL
	}
	if variant, ok := domain.ParseVariant(string(settings.Variant)); ok {
		settings.Variant = variant
	} else {
		settings.Variant = defaults.Variant
	}
	if settings.RequestTimeoutSeconds < 0 {
		settings.RequestTimeoutSeconds = 0
	}
	return settings
}

func lookupNonEmpty(lookup func(string) (string, bool), key string) (string, bool) {
	v, ok := lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}
