package formatter

import (
	"io"

	"github.com/bytedance/sonic"
)

type JSONFormatter struct {
	api sonic.API
}

func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{api: sonic.ConfigStd}
}

func (f *JSONFormatter) encode(w io.Writer, v any) error {
	data, err := f.api.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func (f *JSONFormatter) Datasets(w io.Writer, rows []DatasetRow) error {
	if rows == nil {
		rows = []DatasetRow{}
	}
	return f.encode(w, rows)
}

func (f *JSONFormatter) Timeline(w io.Writer, report TimelineReport) error {
	return f.encode(w, report)
}

func (f *JSONFormatter) Analysis(w io.Writer, report AnalysisReport) error {
	return f.encode(w, report)
}
