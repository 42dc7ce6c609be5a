package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Leaderboard backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	Server struct {
		Port      string `yaml:"port"`
		PublicURL string `yaml:"public_url"`
	} `yaml:"server"`
	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`
	Room struct {
		TimerLimit       int    `yaml:"timer_limit"`
		Tick             string `yaml:"tick"`
		ChatLimit        int    `yaml:"chat_limit"`
		DefaultName      string `yaml:"default_name"`
		MaxNameLength    int    `yaml:"max_name_length"`
		MaxMessageLength int    `yaml:"max_message_length"`
		Locale           string `yaml:"locale"`
		CreditTimeout    string `yaml:"credit_timeout"`
		CreditRetries    int    `yaml:"credit_retries"`
	} `yaml:"room"`
	Puzzle struct {
		CorpusFile string `yaml:"corpus_file"`
		TTL        string `yaml:"ttl"`
		ScoreBase  int    `yaml:"score_base"`
		ScoreStep  int    `yaml:"score_step"`
		ScoreFloor int    `yaml:"score_floor"`
	} `yaml:"puzzle"`
	Leaderboard struct {
		Backend string `yaml:"backend"`
	} `yaml:"leaderboard"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
}

// Default returns the settings the game was tuned with: 15 second rounds and a 40 message chat.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "3002"
	cfg.Server.PublicURL = "http://localhost:3002"
	cfg.Log.Level = "info"
	cfg.Room.TimerLimit = 15
	cfg.Room.Tick = "1s"
	cfg.Room.ChatLimit = 40
	cfg.Room.DefaultName = "anonim"
	cfg.Room.MaxNameLength = 32
	cfg.Room.MaxMessageLength = 280
	cfg.Room.Locale = "id"
	cfg.Room.CreditTimeout = "5s"
	cfg.Room.CreditRetries = 3
	cfg.Puzzle.TTL = "10m"
	cfg.Puzzle.ScoreBase = 10
	cfg.Puzzle.ScoreStep = 2
	cfg.Puzzle.ScoreFloor = 1
	cfg.Leaderboard.Backend = BackendMemory
	cfg.Redis.TTL = "10m"
	return cfg
}

// Load reads YAML config from path on top of Default. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings the room cannot run with.
func (c Config) Validate() error {
	if c.Room.TimerLimit < 1 {
		return fmt.Errorf("room.timer_limit must be at least 1, got %d", c.Room.TimerLimit)
	}
	if c.Room.ChatLimit < 1 {
		return fmt.Errorf("room.chat_limit must be at least 1, got %d", c.Room.ChatLimit)
	}
	if c.Room.MaxNameLength < 1 {
		return fmt.Errorf("room.max_name_length must be at least 1, got %d", c.Room.MaxNameLength)
	}
	if c.Puzzle.ScoreFloor < 0 || c.Puzzle.ScoreBase < c.Puzzle.ScoreFloor {
		return fmt.Errorf("puzzle scores must satisfy 0 <= score_floor <= score_base, got floor=%d base=%d",
			c.Puzzle.ScoreFloor, c.Puzzle.ScoreBase)
	}
	if c.Puzzle.ScoreStep < 0 {
		return fmt.Errorf("puzzle.score_step must not be negative, got %d", c.Puzzle.ScoreStep)
	}
	switch c.Leaderboard.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("leaderboard backend redis requires redis.addr")
		}
	case BackendPostgres:
		if c.Postgres.URL == "" {
			return errors.New("leaderboard backend postgres requires postgres.url")
		}
	default:
		return fmt.Errorf("unknown leaderboard backend %q", c.Leaderboard.Backend)
	}
	return nil
}

// Duration parses a duration string or returns the fallback if empty or malformed.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	return fallback
}
