package formatter

import (
	"io"

	"gopkg.in/yaml.v3"
)

type YAMLFormatter struct{}

func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

func (f *YAMLFormatter) encode(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func (f *YAMLFormatter) Datasets(w io.Writer, rows []DatasetRow) error {
	if rows == nil {
		rows = []DatasetRow{}
	}
	return f.encode(w, rows)
}

func (f *YAMLFormatter) Timeline(w io.Writer, report TimelineReport) error {
	return f.encode(w, report)
}

func (f *YAMLFormatter) Analysis(w io.Writer, report AnalysisReport) error {
	return f.encode(w, report)
}
