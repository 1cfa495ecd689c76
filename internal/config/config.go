package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Viewer  ViewerConfig
	S3      S3Config
	Catalog CatalogConfig
	Log     LogConfig
}

// ViewerConfig holds paging settings.
type ViewerConfig struct {
	PageSize int `mapstructure:"page_size"`
}

// S3Config holds object-storage credentials passed through to the
// table backend. Empty values fall back to the ambient AWS chain.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	AllowHTTP bool   `mapstructure:"allow_http"`
}

// CatalogConfig holds REST catalog defaults.
type CatalogConfig struct {
	URI string
}

// LogConfig holds debug log settings. The TUI owns the terminal, so
// logs only ever go to a file.
type LogConfig struct {
	Path string
}

// Load reads configuration from file and env. Env var overrides use prefix FLOE_.
func Load() (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("viewer.page_size", 500)
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.allow_http", false)
	v.SetDefault("catalog.uri", "")
	v.SetDefault("log.path", "")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("FLOE_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "floe"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("FLOE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.Viewer.PageSize <= 0 {
		c.Viewer.PageSize = 500
	}
	return c, nil
}
