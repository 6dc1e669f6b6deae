package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

type fallbackConfig struct {
	Host  string `yaml:"host"`
	Model string `yaml:"model"`
}

type config struct {
	Port          string         `yaml:"port"`
	AllowedOrigin string         `yaml:"allowedOrigin"`
	DBPath        string         `yaml:"dbPath"`
	Fallback      fallbackConfig `yaml:"fallback"`
}

// loadConfig reads the yaml config at path, falling back to environment variables
// and defaults for anything left unset. A missing config file is not an error.
func loadConfig(path string) (config, error) {
	cfg := config{}

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return config{}, fmt.Errorf("error decoding config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return config{}, fmt.Errorf("error opening config file: %w", err)
	}

	if cfg.Port == "" {
		cfg.Port = os.Getenv("PORT")
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	if cfg.AllowedOrigin == "" {
		cfg.AllowedOrigin = "http://localhost:3000"
	}

	if cfg.Fallback.Host == "" {
		cfg.Fallback.Host = os.Getenv("OLLAMA_HOST")
	}
	if cfg.Fallback.Host == "" {
		cfg.Fallback.Host = "http://localhost:11434"
	}
	if cfg.Fallback.Model == "" {
		cfg.Fallback.Model = "llama3.2"
	}

	return cfg, nil
}
