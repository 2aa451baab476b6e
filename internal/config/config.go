package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	HTTP       HTTPConfig       `mapstructure:"http"`
	Log        LogConfig        `mapstructure:"log"`
	Model      ModelConfig      `mapstructure:"model"`
	Features   FeaturesConfig   `mapstructure:"features"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Audit      AuditConfig      `mapstructure:"audit"`
	ClickHouse DatabaseConfig   `mapstructure:"clickhouse"`
	Auditor    AuditorConfig    `mapstructure:"auditor"`
	Migrations MigrationsConfig `mapstructure:"migrations"`
}

// ---- Leaf structs ----

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=json console"`
	File       string `mapstructure:"file"`        // empty => stdout only
	MaxSizeMB  int    `mapstructure:"max_size_mb"` // lumberjack rotation
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

type ModelConfig struct {
	Path   string `mapstructure:"path" validate:"required"`
	Format string `mapstructure:"format" validate:"oneof=lightgbm logistic"`
}

type FeaturesConfig struct {
	Source   string `mapstructure:"source" validate:"oneof=csv sql"`
	Path     string `mapstructure:"path"`
	IDColumn string `mapstructure:"id_column" validate:"required"`

	// sql source
	Driver          string        `mapstructure:"driver"` // mysql | sqlite3
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table" validate:"required"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type CacheConfig struct {
	Size      int           `mapstructure:"size" validate:"gte=0"` // 0 disables the in-process tier
	RedisTTL  time.Duration `mapstructure:"redis_ttl"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"` // empty disables the redis tier
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	GroupID        string   `mapstructure:"group_id"`
	MinBytes       int      `mapstructure:"min_bytes"`
	MaxBytes       int      `mapstructure:"max_bytes"`
	CommitInterval int      `mapstructure:"commit_interval_ms"`
}

type BreakerConfig struct {
	FailThreshold int `mapstructure:"fail_threshold" yaml:"fail_threshold"`
	OpenForMs     int `mapstructure:"open_for_ms"    yaml:"open_for_ms"`
}

type AuditConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Topic   string        `mapstructure:"topic"`
	Breaker BreakerConfig `mapstructure:"breaker"`
}

type AuditorConfig struct {
	BatchSize int           `mapstructure:"batch_size"`
	BatchWait time.Duration `mapstructure:"batch_wait"`
}

type MigrationsConfig struct {
	Dir string `mapstructure:"dir"`
}

// Load reads embedded defaults, merges user YAML (if provided), applies env
// overrides (SCORING_*) and validates the result.
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		// a missing file keeps the defaults; a broken one is an error
		if err := v.MergeInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("merge %s: %w", path, err)
		}
	}

	// env override (SCORING_MODEL_PATH, SCORING_FEATURES_SOURCE, ...)
	v.SetEnvPrefix("SCORING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	switch c.Features.Source {
	case "csv":
		if c.Features.Path == "" {
			return errors.New("invalid config: features.path must be set for csv source")
		}
	case "sql":
		if c.Features.Driver != "mysql" && c.Features.Driver != "sqlite3" {
			return fmt.Errorf("invalid config: unsupported features.driver %q", c.Features.Driver)
		}
		if c.Features.DSN == "" {
			return errors.New("invalid config: features.dsn must be set for sql source")
		}
	}

	if c.Audit.Enabled {
		if c.Audit.Topic == "" {
			return errors.New("invalid config: audit.topic must be set")
		}
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("invalid config: audit.enabled requires kafka.brokers")
		}
	}
	return nil
}
