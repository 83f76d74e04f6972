// Package config loads the explorer configuration: endpoints, cache sizing
// and the configured dataset layers.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/penwyp/go-eo-explorer/internal/core/model"
	"github.com/penwyp/go-eo-explorer/internal/util"
)

const (
	// EnvPrefix prefixes environment overrides, e.g. EOEXPLORER_CATALOG_ENDPOINT.
	EnvPrefix = "EOEXPLORER"

	DefaultCatalogEndpoint = "https://openveda.cloud/api/stac"
	DefaultRasterEndpoint  = "https://openveda.cloud/api/raster"
	DefaultHTTPTimeout     = 30 * time.Second
	DefaultCacheSize       = 4096
	DefaultCacheTTL        = 30 * time.Minute
	MinCacheTTL            = time.Second
	DefaultMaxItems        = 1000
	DefaultConcurrency     = 8
)

type CacheConfig struct {
	Size int           `mapstructure:"size" yaml:"size"`
	TTL  time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

type AnalysisConfig struct {
	// MaxItems refuses analyses of layers with more assets. Zero disables it.
	MaxItems    int `mapstructure:"max_items" yaml:"max_items"`
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
}

type Config struct {
	CatalogEndpoint string              `mapstructure:"catalog_endpoint" yaml:"catalog_endpoint"`
	RasterEndpoint  string              `mapstructure:"raster_endpoint" yaml:"raster_endpoint"`
	HTTPTimeout     time.Duration       `mapstructure:"http_timeout" yaml:"http_timeout"`
	Timezone        string              `mapstructure:"timezone" yaml:"timezone"`
	Cache           CacheConfig         `mapstructure:"cache" yaml:"cache"`
	Analysis        AnalysisConfig      `mapstructure:"analysis" yaml:"analysis"`
	Layers          []model.LayerConfig `mapstructure:"layers" yaml:"layers"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		CatalogEndpoint: DefaultCatalogEndpoint,
		RasterEndpoint:  DefaultRasterEndpoint,
		HTTPTimeout:     DefaultHTTPTimeout,
		Timezone:        "Local",
		Cache:           CacheConfig{Size: DefaultCacheSize, TTL: DefaultCacheTTL},
		Analysis:        AnalysisConfig{MaxItems: DefaultMaxItems, Concurrency: DefaultConcurrency},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("catalog_endpoint", d.CatalogEndpoint)
	v.SetDefault("raster_endpoint", d.RasterEndpoint)
	v.SetDefault("http_timeout", d.HTTPTimeout)
	v.SetDefault("timezone", d.Timezone)
	v.SetDefault("cache.size", d.Cache.Size)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("analysis.max_items", d.Analysis.MaxItems)
	v.SetDefault("analysis.concurrency", d.Analysis.Concurrency)
}

// Load reads the YAML file at path, applies environment overrides and
// validates the result. A missing file is not an error when optional is set.
func Load(path string, optional bool) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if !optional || !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
			util.LogDebugf("Config: %s not found, using defaults", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate fills unset values with defaults and rejects invalid ones.
func (c *Config) Validate() error {
	for name, endpoint := range map[string]*string{
		"catalog_endpoint": &c.CatalogEndpoint,
		"raster_endpoint":  &c.RasterEndpoint,
	} {
		*endpoint = strings.TrimRight(strings.TrimSpace(*endpoint), "/")
		u, err := url.Parse(*endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: %s must be an http(s) url, got %q", model.ErrConfiguration, name, *endpoint)
		}
	}

	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.Cache.Size <= 0 {
		c.Cache.Size = DefaultCacheSize
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = DefaultCacheTTL
	}
	if c.Cache.TTL < MinCacheTTL {
		return fmt.Errorf("%w: cache.ttl must be at least %v, got %v", model.ErrConfiguration, MinCacheTTL, c.Cache.TTL)
	}
	if c.Analysis.MaxItems < 0 {
		return fmt.Errorf("%w: analysis.max_items must not be negative", model.ErrConfiguration)
	}
	if c.Analysis.Concurrency <= 0 {
		c.Analysis.Concurrency = DefaultConcurrency
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	if _, err := util.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("%w: %w", model.ErrConfiguration, err)
	}

	seen := make(map[string]bool, len(c.Layers))
	for i := range c.Layers {
		l := &c.Layers[i]
		l.ID = strings.TrimSpace(l.ID)
		if l.ID == "" {
			return fmt.Errorf("%w: layer %d has no id", model.ErrConfiguration, i)
		}
		if seen[l.ID] {
			return fmt.Errorf("%w: layer %q is configured twice", model.ErrConfiguration, l.ID)
		}
		seen[l.ID] = true

		p, err := model.ParseProtocol(string(l.Protocol))
		if err != nil {
			return fmt.Errorf("layer %q: %w", l.ID, err)
		}
		l.Protocol = p
		if l.Collection == "" {
			l.Collection = l.ID
		}
		l.TimeDensity = model.ParseTimeDensity(string(l.TimeDensity))
	}
	return nil
}

// LayerByID returns the configured layer with id.
func (c *Config) LayerByID(id string) (model.LayerConfig, bool) {
	for _, l := range c.Layers {
		if l.ID == id {
			return l, true
		}
	}
	return model.LayerConfig{}, false
}

// LayerIDs returns the ids of every configured layer in file order.
func (c *Config) LayerIDs() []string {
	ids := make([]string, len(c.Layers))
	for i, l := range c.Layers {
		ids[i] = l.ID
	}
	return ids
}
