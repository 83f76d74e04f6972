package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/penwyp/go-eo-explorer/internal/application/exploration"
	"github.com/penwyp/go-eo-explorer/internal/core/model"
	"github.com/penwyp/go-eo-explorer/internal/core/urlstore"
	"github.com/penwyp/go-eo-explorer/internal/presentation/formatter"
	"github.com/penwyp/go-eo-explorer/internal/presentation/progress"
	"github.com/penwyp/go-eo-explorer/internal/util"
)

var (
	analyzeURL     string
	analyzeLayers  []string
	analyzeStart   string
	analyzeEnd     string
	analyzeAOI     string
	analyzeOutput  string
	analyzeTimeout time.Duration
	analyzeQuiet   bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run an aggregate statistics analysis",
	Long: `Discovers the assets of each selected layer inside the date range and area of
interest, fetches their statistics and prints the resulting timeseries.

The selection comes from an exploration URL (--url) and may be refined with
--layers, --start, --end and --aoi. Dates are YYYY-MM-DD in the configured timezone;
--aoi is a GeoJSON file holding a Polygon or MultiPolygon.`,
	RunE: runAnalysis,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVarP(&analyzeURL, "url", "u", "",
		"Exploration URL or query string to start from")
	analyzeCmd.Flags().StringSliceVar(&analyzeLayers, "layers", nil,
		"Layer ids to analyse (comma separated)")
	analyzeCmd.Flags().StringVar(&analyzeStart, "start", "",
		"Start date (YYYY-MM-DD)")
	analyzeCmd.Flags().StringVar(&analyzeEnd, "end", "",
		"End date (YYYY-MM-DD)")
	analyzeCmd.Flags().StringVar(&analyzeAOI, "aoi", "",
		"GeoJSON file with the area of interest")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "table",
		"Output format (table, json, csv, yaml)")
	analyzeCmd.Flags().DurationVar(&analyzeTimeout, "timeout", 0,
		"Abort the analysis after this duration (0 = no limit)")
	analyzeCmd.Flags().BoolVarP(&analyzeQuiet, "quiet", "q", false,
		"Do not render progress")
}

func runAnalysis(cmd *cobra.Command, args []string) error {
	format, err := formatter.ParseFormat(analyzeOutput)
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

	loc := urlstore.NewMemoryLocation()
	if analyzeURL != "" {
		if loc, err = urlstore.ParseLocation(analyzeURL); err != nil {
			return err
		}
	}

	a := newApp(cfg)
	view, err := a.newView(loc)
	if err != nil {
		return err
	}
	defer view.Close()

	if err := applySelection(view); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if analyzeTimeout > 0 {
		var cancel func()
		ctx, cancel = context.WithTimeout(ctx, analyzeTimeout)
		defer cancel()
	}

	op, err := view.RunAnalysis(ctx)
	if err != nil {
		return err
	}

	order := make([]string, 0, len(op.Request().Layers))
	for _, l := range op.Request().Layers {
		order = append(order, l.ID)
	}
	stopProgress := func() {}
	if !analyzeQuiet {
		renderer := progress.New(cmd.ErrOrStderr(), order)
		off := op.OnAny(renderer.Update)
		stopProgress = func() {
			off()
			renderer.Finish()
		}
	}

	err = op.Wait(ctx)
	stopProgress()
	if err != nil {
		return fmt.Errorf("analysis %s aborted: %w", op.ID(), err)
	}

	report := formatter.NewAnalysisReport(op.ID(), op.Request().DateRange, order, op.States())
	report.Cache = &formatter.CacheStats{
		Entries:  a.cache.Len(),
		InFlight: a.cache.InFlight(),
		Hits:     int(a.cacheCounter("eo_explorer_async_cache_hits_total")),
		Misses:   int(a.cacheCounter("eo_explorer_async_cache_misses_total")),
		Shares:   int(a.cacheCounter("eo_explorer_async_cache_shares_total")),
	}

	failed := 0
	for _, l := range report.Layers {
		if l.Status == string(model.AnalysisErrored) {
			failed++
		}
	}
	util.LogInfof("Analysis %s finished: %d layers, %d failed, %d points", op.ID(), len(report.Layers), failed, len(report.Points))

	return f.Analysis(cmd.OutOrStdout(), report)
}

// applySelection layers the command line selection over the URL state.
func applySelection(view *exploration.View) error {
	if len(analyzeLayers) > 0 {
		ids := make([]string, 0, len(analyzeLayers))
		for _, id := range analyzeLayers {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		if err := view.AddDatasets(ids...); err != nil {
			return err
		}
	}

	if analyzeStart != "" || analyzeEnd != "" {
		r := view.DateRange()
		tp := util.GetTimeProvider()
		if analyzeStart != "" {
			start, err := time.ParseInLocation(util.DateLayout, analyzeStart, tp.Location())
			if err != nil {
				return fmt.Errorf("%w: invalid --start: %w", model.ErrInvalidRequest, err)
			}
			r.Start = util.StartOfDay(start)
		}
		if analyzeEnd != "" {
			end, err := time.ParseInLocation(util.DateLayout, analyzeEnd, tp.Location())
			if err != nil {
				return fmt.Errorf("%w: invalid --end: %w", model.ErrInvalidRequest, err)
			}
			r.End = util.EndOfDay(end)
		}
		if err := view.SetDateRange(r); err != nil {
			return err
		}
	}

	if analyzeAOI != "" {
		data, err := os.ReadFile(expandPath(analyzeAOI))
		if err != nil {
			return fmt.Errorf("failed to read aoi: %w", err)
		}
		aoi, err := model.ParseAOI(data)
		if err != nil {
			return err
		}
		if err := view.SetAOI(aoi); err != nil {
			return err
		}
	}
	return nil
}
