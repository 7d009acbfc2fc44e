// Package config assembles the deskbot configuration: the reusable core
// settings plus everything specific to the relay and application workflow.
package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/deskbot/core/config"
	"github.com/m3rciful/deskbot/core/database"
	"github.com/m3rciful/deskbot/internal/domain"
)

// AdminConfig points at the admin group and its optional forum topics.
type AdminConfig struct {
	GroupID            int64 `yaml:"group_id" envconfig:"ADMIN_GROUP_ID"`
	MessageTopicID     int   `yaml:"message_topic_id" envconfig:"MESSAGE_TOPIC_ID"`
	ApplicationTopicID int   `yaml:"application_topic_id" envconfig:"APPLICATION_TOPIC_ID"`
}

type FilesConfig struct {
	MaxSizeBytes int64         `yaml:"max_size_bytes" envconfig:"MAX_FILE_SIZE"`
	DraftTTL     time.Duration `yaml:"draft_ttl" envconfig:"DRAFT_TTL"`
}

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"
)

type StorageConfig struct {
	Driver string `yaml:"driver" envconfig:"STORAGE_DRIVER"`
}

type LocksConfig struct {
	Backend string        `yaml:"backend" envconfig:"LOCKS_BACKEND"`
	TTL     time.Duration `yaml:"ttl" envconfig:"LOCKS_TTL"`
	Wait    time.Duration `yaml:"wait" envconfig:"LOCKS_WAIT"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
}

type JobsConfig struct {
	// DraftSweep is a cron spec; empty disables the sweep.
	DraftSweep string `yaml:"draft_sweep" envconfig:"JOBS_DRAFT_SWEEP"`
}

// Config is built once at startup and passed down; nothing reads the environment afterwards.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database database.Config `yaml:"database"`
	Admin    AdminConfig     `yaml:"admin"`
	Files    FilesConfig     `yaml:"files"`
	Storage  StorageConfig   `yaml:"storage"`
	Locks    LocksConfig     `yaml:"locks"`
	Redis    RedisConfig     `yaml:"redis"`
	Jobs     JobsConfig      `yaml:"jobs"`
}

// Core exposes the embedded core configuration.
func (c *Config) Core() *coreconfig.Config {
	return &c.Config
}

// Load reads path (YAML, optional) and the environment, then validates.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Jobs: JobsConfig{DraftSweep: "@every 1h"},
	}
	if err := coreconfig.Decode(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalize validates the configuration and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if c.Admin.GroupID == 0 {
		return fmt.Errorf("admin.group_id is required")
	}
	if c.Admin.MessageTopicID < 0 || c.Admin.ApplicationTopicID < 0 {
		return fmt.Errorf("admin topic ids must be >= 0")
	}

	if c.Files.MaxSizeBytes == 0 {
		c.Files.MaxSizeBytes = domain.DefaultMaxFileSize
	}
	if c.Files.MaxSizeBytes < 0 {
		return fmt.Errorf("files.max_size_bytes must be > 0")
	}
	if c.Files.DraftTTL == 0 {
		c.Files.DraftTTL = domain.DefaultDraftTTL
	}
	if c.Files.DraftTTL < 0 {
		return fmt.Errorf("files.draft_ttl must be > 0")
	}

	switch d := strings.ToLower(strings.TrimSpace(c.Storage.Driver)); d {
	case "", StorageDriverPostgres:
		c.Storage.Driver = StorageDriverPostgres
		c.Database = c.Database.WithDefaults()
		if c.Database.Name == "" || c.Database.User == "" {
			return fmt.Errorf("database.name and database.user are required for the postgres driver")
		}
	case StorageDriverMemory:
		c.Storage.Driver = d
	default:
		return fmt.Errorf("invalid storage.driver %q; allowed: postgres, memory", c.Storage.Driver)
	}

	switch b := strings.ToLower(strings.TrimSpace(c.Locks.Backend)); b {
	case "", LockBackendMemory:
		c.Locks.Backend = LockBackendMemory
	case LockBackendRedis:
		c.Locks.Backend = b
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return fmt.Errorf("redis.addr is required when locks.backend is 'redis'")
		}
	default:
		return fmt.Errorf("invalid locks.backend %q; allowed: memory, redis", c.Locks.Backend)
	}
	if c.Locks.Wait < 0 || c.Locks.TTL < 0 {
		return fmt.Errorf("locks.wait and locks.ttl must be >= 0")
	}

	c.Jobs.DraftSweep = strings.TrimSpace(c.Jobs.DraftSweep)
	return nil
}
