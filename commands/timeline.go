package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/penwyp/go-eo-explorer/internal/core/model"
	"github.com/penwyp/go-eo-explorer/internal/core/timeline"
	"github.com/penwyp/go-eo-explorer/internal/presentation/formatter"
	"github.com/penwyp/go-eo-explorer/internal/util"
)

var (
	timelineLayer    string
	timelineWidth    float64
	timelineMinBlock float64
	timelineOutput   string
)

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Show the timeline blocks of a layer",
	Long: `Reconciles one layer and lumps its time domain into the blocks a timeline of the
given pixel width would draw. Blocks closer than half the minimum block size are merged.`,
	RunE: runTimeline,
}

func init() {
	rootCmd.AddCommand(timelineCmd)

	timelineCmd.Flags().StringVarP(&timelineLayer, "layer", "l", "",
		"Layer id to show")
	timelineCmd.Flags().Float64Var(&timelineWidth, "width", 800,
		"Timeline width in pixels")
	timelineCmd.Flags().Float64Var(&timelineMinBlock, "min-block", timeline.DefaultMinBlockSize,
		"Minimum block size in pixels")
	timelineCmd.Flags().StringVarP(&timelineOutput, "output", "o", "table",
		"Output format (table, json, csv, yaml)")
	_ = timelineCmd.MarkFlagRequired("layer")
}

func runTimeline(cmd *cobra.Command, args []string) error {
	if timelineWidth <= 0 {
		return fmt.Errorf("--width must be positive, got %v", timelineWidth)
	}
	format, err := formatter.ParseFormat(timelineOutput)
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

	view, err := newApp(cfg).newView(nil)
	if err != nil {
		return err
	}
	defer view.Close()

	if err := view.AddDatasets(timelineLayer); err != nil {
		return err
	}
	if err := view.SyncMetadata(cmd.Context()); err != nil {
		return err
	}
	ds, _ := view.Dataset(timelineLayer)

	report := buildTimelineReport(ds.Data, timelineWidth, timelineMinBlock)
	report.Layer = ds.ID
	return f.Timeline(cmd.OutOrStdout(), report)
}

// buildTimelineReport scales the domain from the start of its first period
// to the end of its last onto [0, width].
func buildTimelineReport(data model.DatasetData, width, minBlock float64) formatter.TimelineReport {
	report := formatter.TimelineReport{Width: width, Blocks: []formatter.BlockRow{}}
	first, ok := data.First()
	if !ok {
		return report
	}
	last, _ := data.Last()

	scale := timeline.NewLinearScale(
		timeline.BlockBoundaries(first, data.TimeDensity).Start,
		timeline.BlockBoundaries(last, data.TimeDensity).End,
		0, width,
	)
	result := timeline.DatasetBlocks(data, scale.Scale, minBlock)
	util.LogDebugf("Timeline: %d instants into %d blocks (lumped=%v)", len(data.Domain), len(result.Blocks), result.WasLumped)

	report.WasLumped = result.WasLumped
	report.Blocks = formatter.BlockRows(data, result.Blocks)
	return report
}
