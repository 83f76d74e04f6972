package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/penwyp/go-eo-explorer/internal/config"
	"github.com/penwyp/go-eo-explorer/internal/presentation/formatter"
	"github.com/penwyp/go-eo-explorer/internal/util"
)

var (
	datasetsOutput string
	datasetsWatch  bool
)

var datasetsCmd = &cobra.Command{
	Use:   "datasets [layer-id...]",
	Short: "Reconcile and list the time domains of configured layers",
	Long: `Fetches the catalog metadata of every configured layer, or of the given ones,
and prints the reconciled time domain of each. With --watch the list is printed again
whenever the config file changes.`,
	RunE: runDatasets,
}

func init() {
	rootCmd.AddCommand(datasetsCmd)

	datasetsCmd.Flags().StringVarP(&datasetsOutput, "output", "o", "table",
		"Output format (table, json, csv, yaml)")
	datasetsCmd.Flags().BoolVarP(&datasetsWatch, "watch", "w", false,
		"Reload and print again when the config file changes")
}

func runDatasets(cmd *cobra.Command, args []string) error {
	format, err := formatter.ParseFormat(datasetsOutput)
	if err != nil {
		return err
	}
	f, err := formatter.New(format)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	a := newApp(cfg)
	if err := printDatasets(ctx, out, f, a, args); err != nil {
		return err
	}
	if !datasetsWatch {
		return nil
	}

	watcher, err := config.NewWatcher(expandPath(configPath), 0)
	if err != nil {
		return fmt.Errorf("failed to watch config: %w", err)
	}
	defer watcher.Close()
	util.LogInfof("Watching %s for changes", watcher.Path())

	for {
		select {
		case <-ctx.Done():
			return nil
		case next := <-watcher.Updates():
			if cmd.Flags().Changed("timezone") {
				next.Timezone = timezone
			}
			if err := util.InitializeTimeProvider(next.Timezone); err != nil {
				util.LogErrorf("Ignoring reloaded config: %v", err)
				continue
			}
			if _, err := fmt.Fprintln(out); err != nil {
				return err
			}
			a = a.reload(next)
			if err := printDatasets(ctx, out, f, a, args); err != nil {
				util.LogErrorf("Failed to list datasets: %v", err)
			}
		}
	}
}

func printDatasets(ctx context.Context, out io.Writer, f formatter.Formatter, a *app, ids []string) error {
	if len(ids) == 0 {
		ids = a.cfg.LayerIDs()
	}
	if len(ids) == 0 {
		return fmt.Errorf("no layers configured in %s", expandPath(configPath))
	}

	view, err := a.newView(nil)
	if err != nil {
		return err
	}
	defer view.Close()

	if err := view.AddDatasets(ids...); err != nil {
		return err
	}
	// Failures are reported per dataset in the output.
	if err := view.SyncMetadata(ctx); err != nil {
		util.LogWarnf("Some datasets failed to reconcile: %v", err)
	}
	return f.Datasets(out, formatter.DatasetRows(view.Datasets()))
}
