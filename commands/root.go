package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/penwyp/go-eo-explorer/internal/config"
	"github.com/penwyp/go-eo-explorer/internal/util"
)

var (
	// Logging related
	debug   bool
	logFile string

	// Configuration
	configPath string
	timezone   string

	rootCmd = &cobra.Command{
		Use:   "go-eo-explorer [command]",
		Short: "Earth observation dataset exploration and analysis tool",
		Long: `go-eo-explorer reconciles the time domains of geospatial dataset layers published
in a STAC catalog and runs aggregate statistics analyses over them.

Examples:
  go-eo-explorer datasets                                  # Reconcile every configured layer
  go-eo-explorer datasets --watch                          # Re-run whenever the config file changes
  go-eo-explorer timeline --layer no2-monthly --width 600  # Show the lumped timeline of a layer
  go-eo-explorer analyze --layers no2-monthly --start 2020-01-01 --end 2020-12-31 --aoi area.geojson
  go-eo-explorer analyze --url "?datasets=[...]&date=...&aoi=..." --output json`,
		SilenceUsage:      true,
		PersistentPreRunE: setupLogging,
	}
)

const (
	defaultLogFile    = "~/.go-eo-explorer/logs/app.log"
	defaultConfigFile = "~/.go-eo-explorer/config.yaml"
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigFile,
		"Config file path")
	rootCmd.PersistentFlags().StringVar(&timezone, "timezone", "",
		"Timezone setting, overrides the config file (e.g., Europe/Paris, UTC)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"Enable debug mode")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", defaultLogFile,
		"Log file path")
}

func setupLogging(cmd *cobra.Command, args []string) error {
	logLevel := "info"
	if debug {
		logLevel = "debug"
	}

	path := expandPath(logFile)
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	if err := util.InitLogger(logLevel, path, debug); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// loadConfig reads the config file and applies command line overrides.
// The default config file may be absent; an explicit --config may not.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	optional := !cmd.Flags().Changed("config")
	cfg, err := config.Load(expandPath(configPath), optional)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("timezone") {
		cfg.Timezone = timezone
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if err := util.InitializeTimeProvider(cfg.Timezone); err != nil {
		return nil, err
	}

	util.LogDebugf("Config loaded: catalog=%s raster=%s layers=%d timezone=%s",
		cfg.CatalogEndpoint, cfg.RasterEndpoint, len(cfg.Layers), cfg.Timezone)
	return cfg, nil
}

func Execute() error {
	return rootCmd.Execute()
}

// Helper functions

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[2:])
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}
