package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingVAPIDKeys indicates the engine cannot deliver anything at all.
var ErrMissingVAPIDKeys = errors.New("VAPID keys not configured")

// Config holds all engine configuration. Values come from an optional YAML
// file, overridden by NOTIFY_* environment variables.
type Config struct {
	DBPath          string        `yaml:"db_path"`
	Port            string        `yaml:"port"`
	LogLevel        string        `yaml:"log_level"`
	CronToken       string        `yaml:"cron_token"`
	VAPIDPublicKey  string        `yaml:"vapid_public_key"`
	VAPIDPrivateKey string        `yaml:"vapid_private_key"`
	Subscriber      string        `yaml:"subscriber"` // mailto: contact sent with VAPID auth
	Workers         int           `yaml:"workers"`
	RunDeadline     time.Duration `yaml:"run_deadline"`
	SendTimeout     time.Duration `yaml:"send_timeout"`
}

// Defaults returns a config with all tunables at their default values.
func Defaults() Config {
	return Config{
		DBPath:      "notify.db",
		Port:        "8080",
		LogLevel:    "info",
		Subscriber:  "mailto:admin@lichviet.app",
		Workers:     8,
		RunDeadline: 50 * time.Second,
		SendTimeout: 10 * time.Second,
	}
}

// Load reads the YAML file at path (skipped if path is empty or missing) and
// then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	cfg.applyEnv()

	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return cfg, nil
}

// Validate checks settings without which no run can possibly succeed.
func (c *Config) Validate() error {
	if c.VAPIDPublicKey == "" || c.VAPIDPrivateKey == "" {
		return ErrMissingVAPIDKeys
	}
	return nil
}

func (c *Config) applyEnv() {
	setString(&c.DBPath, "NOTIFY_DB_PATH")
	setString(&c.Port, "NOTIFY_PORT")
	setString(&c.LogLevel, "NOTIFY_LOG_LEVEL")
	setString(&c.CronToken, "NOTIFY_CRON_TOKEN")
	setString(&c.VAPIDPublicKey, "NOTIFY_VAPID_PUBLIC_KEY")
	setString(&c.VAPIDPrivateKey, "NOTIFY_VAPID_PRIVATE_KEY")
	setString(&c.Subscriber, "NOTIFY_SUBSCRIBER")
	setInt(&c.Workers, "NOTIFY_WORKERS")
	setDuration(&c.RunDeadline, "NOTIFY_RUN_DEADLINE")
	setDuration(&c.SendTimeout, "NOTIFY_SEND_TIMEOUT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
