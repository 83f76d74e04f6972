package formatter

import (
	"encoding/csv"
	"io"
	"strconv"
)

// CSVFormatter writes one flat table per result. The analysis output holds
// the timeseries points only.
type CSVFormatter struct{}

func NewCSVFormatter() *CSVFormatter {
	return &CSVFormatter{}
}

func writeAll(w io.Writer, header []string, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(records); err != nil {
		return err
	}
	return cw.Error()
}

func float(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (f *CSVFormatter) Datasets(w io.Writer, rows []DatasetRow) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.ID, r.Name, r.Protocol, r.TimeDensity,
			strconv.FormatBool(r.Periodic), strconv.FormatBool(r.Timeless),
			strconv.Itoa(r.DomainSize), r.First, r.Last, r.Status, r.Error,
		})
	}
	return writeAll(w, []string{
		"ID", "Name", "Protocol", "Density", "Periodic", "Timeless",
		"Domain Size", "First", "Last", "Status", "Error",
	}, records)
}

func (f *CSVFormatter) Timeline(w io.Writer, report TimelineReport) error {
	records := make([][]string, 0, len(report.Blocks))
	for _, b := range report.Blocks {
		records = append(records, []string{report.Layer, b.Start, b.End, strconv.Itoa(b.Instants)})
	}
	return writeAll(w, []string{"Layer", "Start", "End", "Instants"}, records)
}

func (f *CSVFormatter) Analysis(w io.Writer, report AnalysisReport) error {
	records := make([][]string, 0, len(report.Points))
	for _, p := range report.Points {
		records = append(records, []string{
			p.Layer, p.Date, float(p.Mean), float(p.Min), float(p.Max),
			float(p.Std), float(p.Median), float(p.ValidPercent),
		})
	}
	return writeAll(w, []string{"Layer", "Date", "Mean", "Min", "Max", "Std", "Median", "Valid Percent"}, records)
}
