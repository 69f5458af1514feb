// Package config loads client settings from defaults, an optional YAML file and
// CAMPUS_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/and161185/campus-kit/internal/campus"
	"github.com/and161185/campus-kit/internal/credential"
	"github.com/and161185/campus-kit/internal/danxi"
)

// AppName names the config, credential and cache directories.
const AppName = "campus-kit"

// Cache backends.
const (
	BackendDir      = "dir"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Config struct {
	CredentialPath string        `mapstructure:"credential_path" validate:"required"`
	Passphrase     string        `mapstructure:"passphrase"`
	UserAgent      string        `mapstructure:"user_agent"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gt=0"`

	Cache  Cache           `mapstructure:"cache"`
	OAuth2 OAuth2          `mapstructure:"oauth2"`
	DanXi  danxi.Endpoints `mapstructure:"danxi"`
	Campus campus.Hosts    `mapstructure:"campus"`
}

// Cache selects where disk-backed stores keep their blobs.
type Cache struct {
	Backend     string `mapstructure:"backend" validate:"oneof=dir memory postgres redis"`
	Dir         string `mapstructure:"dir" validate:"required_if=Backend dir"`
	PostgresDSN string `mapstructure:"postgres_dsn" validate:"required_if=Backend postgres"`
	Migrate     bool   `mapstructure:"migrate"`
	RedisAddr   string `mapstructure:"redis_addr" validate:"required_if=Backend redis"`
	RedisDB     int    `mapstructure:"redis_db" validate:"gte=0,lte=16"`
	// Namespace separates users sharing a postgres or redis backend.
	Namespace string `mapstructure:"namespace" validate:"required"`
}

// OAuth2 switches token renewal to a standard refresh_token grant when TokenURL is set.
type OAuth2 struct {
	TokenURL     string `mapstructure:"token_url" validate:"omitempty,url"`
	ClientID     string `mapstructure:"client_id" validate:"required_with=TokenURL"`
	ClientSecret string `mapstructure:"client_secret"`
}

func setDefaults(v *viper.Viper) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}
	v.SetDefault("credential_path", credential.DefaultPath(AppName))
	v.SetDefault("passphrase", "")
	v.SetDefault("user_agent", "")
	v.SetDefault("timeout", 30*time.Second)

	v.SetDefault("cache.backend", BackendDir)
	v.SetDefault("cache.dir", filepath.Join(cacheDir, AppName))
	v.SetDefault("cache.postgres_dsn", "")
	v.SetDefault("cache.migrate", true)
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.namespace", AppName)

	v.SetDefault("oauth2.token_url", "")
	v.SetDefault("oauth2.client_id", "")
	v.SetDefault("oauth2.client_secret", "")

	d := danxi.DefaultEndpoints()
	v.SetDefault("danxi.auth", d.Auth)
	v.SetDefault("danxi.forum", d.Forum)
	v.SetDefault("danxi.curriculum", d.Curriculum)

	h := campus.DefaultHosts()
	v.SetDefault("campus.my", h.My)
	v.SetDefault("campus.zlapp", h.Zlapp)
	v.SetDefault("campus.undergrad", h.Undergrad)
	v.SetDefault("campus.postgrad", h.Postgrad)
	v.SetDefault("campus.academic", h.Academic)
	v.SetDefault("campus.classroom", h.Classroom)
	v.SetDefault("campus.ecard", h.ECard)
	v.SetDefault("campus.graduate", h.Graduate)
}

// Load reads the configuration. path may be empty; a missing explicit file is an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CAMPUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
