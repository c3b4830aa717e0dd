package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Auth struct {
		Secret   string `yaml:"secret"`
		Guest    bool   `yaml:"guest"`
		TokenTTL string `yaml:"tokenTTL"`
	} `yaml:"auth"`
	Coordinator struct {
		Heartbeat     string `yaml:"heartbeat"`
		TTL           string `yaml:"ttl"`
		Recheck       string `yaml:"recheck"`
		HistoryCap    int    `yaml:"historyCap"`
		QuestionLimit int    `yaml:"questionLimit"`
	} `yaml:"coordinator"`
	Client struct {
		ServerURL string `yaml:"serverURL"`
		Signals   string `yaml:"signals"`
		RelayURL  string `yaml:"relayURL"`
		StatePath string `yaml:"statePath"`
		Language  string `yaml:"language"`
	} `yaml:"client"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// IntOr returns v unless it is not positive.
func IntOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
