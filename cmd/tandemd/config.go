package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration. Values come from an optional YAML file
// and can be overridden by environment variables.
type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	NATS struct {
		URL           string `yaml:"url"`
		Stream        string `yaml:"stream"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`

	Storage struct {
		Driver string `yaml:"driver"` // memory or postgres
	} `yaml:"storage"`

	Pairing struct {
		WindowSec       int `yaml:"window_sec"`
		HistoryCapacity int `yaml:"history_capacity"`
	} `yaml:"pairing"`

	Push struct {
		VAPIDPublicKey  string `yaml:"vapid_public_key"`
		VAPIDPrivateKey string `yaml:"vapid_private_key"`
		Subscriber      string `yaml:"subscriber"`
		TTLSec          int    `yaml:"ttl_sec"`
	} `yaml:"push"`
}

func loadConfig(path string) (*Config, error) {
	var config Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.Server.Port = getEnv("PORT", defaultString(config.Server.Port, "8080"))
	config.NATS.URL = getEnv("NATS_URL", defaultString(config.NATS.URL, "nats://localhost:4222"))
	config.NATS.Stream = getEnv("NATS_STREAM", defaultString(config.NATS.Stream, "PAIRING_EVENTS"))
	config.NATS.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", defaultString(config.NATS.SubjectPrefix, "pairing.events"))
	config.Storage.Driver = getEnv("STORAGE_DRIVER", defaultString(config.Storage.Driver, "memory"))
	config.Pairing.WindowSec = getEnvAsInt("PAIRING_WINDOW_SEC", defaultInt(config.Pairing.WindowSec, 10))
	config.Pairing.HistoryCapacity = getEnvAsInt("PAIRING_HISTORY_CAPACITY", defaultInt(config.Pairing.HistoryCapacity, 5))
	config.Push.VAPIDPublicKey = getEnv("VAPID_PUBLIC_KEY", config.Push.VAPIDPublicKey)
	config.Push.VAPIDPrivateKey = getEnv("VAPID_PRIVATE_KEY", config.Push.VAPIDPrivateKey)
	config.Push.Subscriber = getEnv("PUSH_SUBSCRIBER", defaultString(config.Push.Subscriber, "mailto:ops@tandemlabs.dev"))
	config.Push.TTLSec = getEnvAsInt("PUSH_TTL_SEC", defaultInt(config.Push.TTLSec, 60))

	if len(config.Server.AllowedOrigins) == 0 {
		config.Server.AllowedOrigins = []string{"*"}
	}

	return &config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func defaultString(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func defaultInt(value, fallback int) int {
	if value != 0 {
		return value
	}
	return fallback
}
