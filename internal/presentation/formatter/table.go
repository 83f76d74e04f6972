package formatter

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/penwyp/go-eo-explorer/internal/util"
)

type TableFormatter struct {
	style table.Style
}

func NewTableFormatter() *TableFormatter {
	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	style.Format.Footer = text.FormatDefault
	return &TableFormatter{style: style}
}

func (f *TableFormatter) newWriter(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(f.style)
	return t
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func (f *TableFormatter) Datasets(w io.Writer, rows []DatasetRow) error {
	t := f.newWriter(w)
	t.AppendHeader(table.Row{"ID", "Protocol", "Density", "Periodic", "Domain", "First", "Last", "Status"})
	for _, r := range rows {
		status := r.Status
		if r.Error != "" {
			status += ": " + util.Truncate(r.Error, 48)
		}
		t.AppendRow(table.Row{
			r.ID, r.Protocol, r.TimeDensity, yesNo(r.Periodic),
			util.FormatNumber(r.DomainSize), r.First, r.Last, status,
		})
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d datasets", len(rows))})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	t.Render()
	return nil
}

func (f *TableFormatter) Timeline(w io.Writer, report TimelineReport) error {
	t := f.newWriter(w)
	t.SetTitle(fmt.Sprintf("%s (%s px)", report.Layer, util.FormatStat(report.Width)))
	t.AppendHeader(table.Row{"#", "Start", "End", "Instants"})
	total := 0
	for i, b := range report.Blocks {
		t.AppendRow(table.Row{i + 1, b.Start, b.End, util.FormatNumber(b.Instants)})
		total += b.Instants
	}
	lumped := "not lumped"
	if report.WasLumped {
		lumped = "lumped"
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d blocks", len(report.Blocks)), lumped, util.FormatNumber(total)})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	t.Render()
	return nil
}

func (f *TableFormatter) Analysis(w io.Writer, report AnalysisReport) error {
	summary := f.newWriter(w)
	summary.SetTitle(fmt.Sprintf("Analysis %s  %s .. %s", report.ID, report.Start, report.End))
	summary.AppendHeader(table.Row{"Layer", "Status", "Loaded", "Progress", "Error"})
	for _, l := range report.Layers {
		summary.AppendRow(table.Row{
			l.Layer, l.Status,
			fmt.Sprintf("%s/%s", util.FormatNumber(l.Loaded), util.FormatNumber(l.Total)),
			util.FormatPercent(l.Loaded, l.Total),
			util.Truncate(l.Error, 60),
		})
	}
	summary.Render()

	if len(report.Points) > 0 {
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
		points := f.newWriter(w)
		points.AppendHeader(table.Row{"Layer", "Date", "Mean", "Min", "Max", "Std", "Median", "Valid %"})
		for _, p := range report.Points {
			points.AppendRow(table.Row{
				p.Layer, p.Date,
				util.FormatStat(p.Mean), util.FormatStat(p.Min), util.FormatStat(p.Max),
				util.FormatStat(p.Std), util.FormatStat(p.Median), util.FormatStat(p.ValidPercent),
			})
		}
		configs := []table.ColumnConfig{{Number: 1, AutoMerge: true}}
		for col := 3; col <= 8; col++ {
			configs = append(configs, table.ColumnConfig{Number: col, Align: text.AlignRight})
		}
		points.SetColumnConfigs(configs)
		points.Render()
	}

	if report.Cache != nil {
		c := report.Cache
		_, err := fmt.Fprintf(w, "\nCache: %s entries, %s in flight, %s hits, %s misses, %s shared\n",
			util.FormatNumber(c.Entries), util.FormatNumber(c.InFlight),
			util.FormatNumber(c.Hits), util.FormatNumber(c.Misses), util.FormatNumber(c.Shares))
		return err
	}
	return nil
}
