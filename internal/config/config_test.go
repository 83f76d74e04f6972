package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penwyp/go-eo-explorer/internal/core/model"
)

const sampleConfig = `
catalog_endpoint: https://stac.example.com/api/
raster_endpoint: https://raster.example.com
http_timeout: 10s
timezone: UTC
cache:
  size: 64
  ttl: 5m
analysis:
  max_items: 250
layers:
  - id: no2-monthly
    name: Nitrogen Dioxide
    protocol: Raster
    time_density: month
  - id: flood-extent
    protocol: vector
    collection: flood-collection
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig), false)
	require.NoError(t, err)

	assert.Equal(t, "https://stac.example.com/api", cfg.CatalogEndpoint)
	assert.Equal(t, "https://raster.example.com", cfg.RasterEndpoint)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, CacheConfig{Size: 64, TTL: 5 * time.Minute}, cfg.Cache)
	assert.Equal(t, 250, cfg.Analysis.MaxItems)
	assert.Equal(t, DefaultConcurrency, cfg.Analysis.Concurrency)

	require.Len(t, cfg.Layers, 2)
	assert.Equal(t, model.LayerConfig{
		ID:          "no2-monthly",
		Name:        "Nitrogen Dioxide",
		Protocol:    model.ProtocolRaster,
		Collection:  "no2-monthly",
		TimeDensity: model.DensityMonth,
	}, cfg.Layers[0])
	assert.Equal(t, "flood-collection", cfg.Layers[1].Collection)
	assert.Equal(t, []string{"no2-monthly", "flood-extent"}, cfg.LayerIDs())

	layer, ok := cfg.LayerByID("flood-extent")
	assert.True(t, ok)
	assert.Equal(t, model.ProtocolVector, layer.Protocol)
	_, ok = cfg.LayerByID("missing")
	assert.False(t, ok)
}

func TestLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")

	cfg, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, DefaultCatalogEndpoint, cfg.CatalogEndpoint)
	assert.Equal(t, DefaultCacheSize, cfg.Cache.Size)
	assert.Empty(t, cfg.Layers)

	_, err = Load(path, false)
	assert.Error(t, err)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("EOEXPLORER_CATALOG_ENDPOINT", "http://localhost:8081")
	t.Setenv("EOEXPLORER_CACHE_SIZE", "12")

	cfg, err := Load(writeConfig(t, sampleConfig), false)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8081", cfg.CatalogEndpoint)
	assert.Equal(t, 12, cfg.Cache.Size)
}

func TestLoad_Malformed(t *testing.T) {
	_, err := Load(writeConfig(t, "layers: [unterminated"), false)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty catalog", func(c *Config) { c.CatalogEndpoint = "" }},
		{"relative raster", func(c *Config) { c.RasterEndpoint = "/raster" }},
		{"bad scheme", func(c *Config) { c.CatalogEndpoint = "ftp://stac.example.com" }},
		{"negative max items", func(c *Config) { c.Analysis.MaxItems = -1 }},
		{"sub-second cache ttl", func(c *Config) { c.Cache.TTL = 50 * time.Nanosecond }},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }},
		{"layer without id", func(c *Config) {
			c.Layers = []model.LayerConfig{{Protocol: model.ProtocolRaster}}
		}},
		{"duplicate layer", func(c *Config) {
			c.Layers = []model.LayerConfig{
				{ID: "a", Protocol: model.ProtocolRaster},
				{ID: "a", Protocol: model.ProtocolWMS},
			}
		}},
		{"unknown protocol", func(c *Config) {
			c.Layers = []model.LayerConfig{{ID: "a", Protocol: "ftp"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			assert.ErrorIs(t, err, model.ErrConfiguration)
		})
	}
}

func TestValidate_FillsDefaults(t *testing.T) {
	cfg := &Config{
		CatalogEndpoint: "https://stac.example.com",
		RasterEndpoint:  "https://raster.example.com",
		Layers:          []model.LayerConfig{{ID: " co2 ", Protocol: "CMR", TimeDensity: "weekly"}},
	}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultHTTPTimeout, cfg.HTTPTimeout)
	assert.Equal(t, DefaultCacheTTL, cfg.Cache.TTL)
	assert.Equal(t, DefaultConcurrency, cfg.Analysis.Concurrency)
	assert.Equal(t, "Local", cfg.Timezone)
	assert.Equal(t, model.LayerConfig{ID: "co2", Protocol: model.ProtocolCMR, Collection: "co2"}, cfg.Layers[0])
}
