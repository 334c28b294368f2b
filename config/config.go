package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	AMQP      AMQPConfig      `yaml:"amqp"`
	Auth      AuthConfig      `yaml:"auth"`
	Realtime  RealtimeConfig  `yaml:"realtime"`
	Terminal  TerminalConfig  `yaml:"terminal"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	GinMode  string `yaml:"gin_mode"`
	LogLevel string `yaml:"log_level"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// RedisConfig -> kosong berarti bridge antar replica tidak dipakai
type RedisConfig struct {
	URL     string `yaml:"url"`
	Channel string `yaml:"channel"`
}

// AMQPConfig -> kosong berarti kitchen feed tidak dipakai
type AMQPConfig struct {
	URL      string `yaml:"url"`
	Queue    string `yaml:"queue"`
	Exchange string `yaml:"exchange"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type RealtimeConfig struct {
	ChangePollInterval time.Duration `yaml:"change_poll_interval"`
	CoalesceWindow     time.Duration `yaml:"coalesce_window"`
	SendQueue          int           `yaml:"send_queue"`
}

// TerminalConfig -> dipakai oleh cmd/terminal
type TerminalConfig struct {
	HubURL   string `yaml:"hub_url"`
	StoreURL string `yaml:"store_url"`
	Token    string `yaml:"token"`
}

type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     8080,
			GinMode:  "debug",
			LogLevel: "info",
		},
		Database: DatabaseConfig{
			Driver: "mysql",
			DSN:    "root:root@tcp(127.0.0.1:3306)/restaurant?charset=utf8mb4&parseTime=True&loc=Local",
		},
		Redis: RedisConfig{
			Channel: "floor:events",
		},
		AMQP: AMQPConfig{
			Queue:    "kitchen.alerts",
			Exchange: "kitchen_fanout",
		},
		Realtime: RealtimeConfig{
			ChangePollInterval: 500 * time.Millisecond,
			CoalesceWindow:     50 * time.Millisecond,
			SendQueue:          256,
		},
		Terminal: TerminalConfig{
			HubURL:   "ws://localhost:8080/kds/ws",
			StoreURL: "http://localhost:8080",
		},
		RateLimit: RateLimitConfig{
			PerSecond: 2,
			Burst:     5,
		},
	}
}

// Load -> default, lalu file yaml (opsional), lalu .env, lalu environment variable
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	// .env boleh tidak ada
	_ = godotenv.Load()

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		cfg.Server.Port = p
	}
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		cfg.Server.GinMode = mode
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Server.LogLevel = level
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		cfg.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		cfg.Redis.URL = url
	}
	if url := os.Getenv("AMQP_URL"); url != "" {
		cfg.AMQP.URL = url
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if interval := os.Getenv("CHANGE_POLL_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return fmt.Errorf("CHANGE_POLL_INTERVAL: %w", err)
		}
		cfg.Realtime.ChangePollInterval = d
	}
	if url := os.Getenv("HUB_URL"); url != "" {
		cfg.Terminal.HubURL = url
	}
	if url := os.Getenv("STORE_URL"); url != "" {
		cfg.Terminal.StoreURL = url
	}
	if token := os.Getenv("TERMINAL_TOKEN"); token != "" {
		cfg.Terminal.Token = token
	}
	return nil
}
