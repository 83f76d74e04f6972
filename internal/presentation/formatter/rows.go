package formatter

import (
	"sort"

	"github.com/penwyp/go-eo-explorer/internal/core/model"
	"github.com/penwyp/go-eo-explorer/internal/core/timeline"
	"github.com/penwyp/go-eo-explorer/internal/util"
)

func densityLabel(d model.TimeDensity) string {
	if d == "" {
		return "-"
	}
	return string(d)
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// DatasetRows flattens datasets in the order given.
func DatasetRows(datasets []model.TimelineDataset) []DatasetRow {
	rows := make([]DatasetRow, 0, len(datasets))
	for _, d := range datasets {
		first, _ := d.Data.First()
		last, _ := d.Data.Last()
		rows = append(rows, DatasetRow{
			ID:          d.ID,
			Name:        d.Data.Layer.Name,
			Protocol:    string(d.Data.Layer.Protocol),
			TimeDensity: densityLabel(d.Data.TimeDensity),
			Periodic:    d.Data.IsPeriodic,
			Timeless:    d.Data.IsTimeless,
			DomainSize:  len(d.Data.Domain),
			First:       util.FormatDate(first),
			Last:        util.FormatDate(last),
			Status:      string(d.Status),
			Error:       errorText(d.Error),
		})
	}
	return rows
}

// BlockRows converts lumped blocks, counting the dataset instants each covers.
func BlockRows(data model.DatasetData, blocks []timeline.Block) []BlockRow {
	rows := make([]BlockRow, 0, len(blocks))
	for _, b := range blocks {
		rows = append(rows, BlockRow{
			Start: util.FormatDate(b.Start),
			// Blocks are half-open; the last covered day is one nanosecond earlier.
			End:      util.FormatDate(b.End.Add(-1)),
			Instants: timeline.CountInRange(data, b.Start, b.End.Add(-1)),
		})
	}
	return rows
}

// NewAnalysisReport summarizes the final per-layer states in layer order.
func NewAnalysisReport(id string, r model.DateRange, order []string, states map[string]model.AnalysisState) AnalysisReport {
	report := AnalysisReport{
		ID:     id,
		Start:  util.FormatDate(r.Start),
		End:    util.FormatDate(r.End),
		Layers: make([]LayerSummary, 0, len(order)),
		Points: []PointRow{},
	}

	for _, layer := range order {
		s, ok := states[layer]
		if !ok {
			continue
		}
		total, _ := s.Total()
		report.Layers = append(report.Layers, LayerSummary{
			Layer:  layer,
			Status: string(s.Status),
			Loaded: s.Loaded(),
			Total:  total,
			Error:  errorText(s.Error),
		})

		points := make([]model.TimeseriesPoint, len(s.Data))
		copy(points, s.Data)
		sort.SliceStable(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
		for _, p := range points {
			report.Points = append(report.Points, PointRow{
				Layer:        layer,
				Date:         util.FormatDate(p.Date),
				Mean:         p.Mean,
				Min:          p.Min,
				Max:          p.Max,
				Std:          p.Std,
				Median:       p.Median,
				ValidPercent: p.ValidPercent,
			})
		}
	}
	return report
}
