package writer

import (
	"Go2FctSpectra/internal/model"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

var csvHeader = []string{
	"file",
	"simulations",
	"valid_flows",
	"small_flows",
	"middle_flows",
	"large_flows",
	"tx_packets",
	"rx_packets",
	"lost_packets",
	"loss_rate",
	"mean_fct",
	"fct_99",
	"mean_small_fct",
	"small_fct_99",
	"mean_middle_fct",
	"mean_large_fct",
	"mean_large_throughput",
}

// CSVWriter writes one row per file plus an "ALL" row with the cross-file
// means. Metrics without data are left empty.
type CSVWriter struct {
	path string
}

// NewCSVWriter creates a CSV writer that replaces the file at path on
// every report.
func NewCSVWriter(path string) *CSVWriter {
	return &CSVWriter{path: path}
}

func (w *CSVWriter) Name() string { return "csv" }

func (w *CSVWriter) Write(report *model.Report) error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("failed to create csv file '%s': %w", w.path, err)
	}

	cw := csv.NewWriter(f)
	rows := [][]string{csvHeader}
	for i := range report.Files {
		rows = append(rows, fileRow(&report.Files[i]))
	}
	rows = append(rows, combinedRow(report))

	if err := cw.WriteAll(rows); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write csv file '%s': %w", w.path, err)
	}
	return f.Close()
}

func fileRow(s *model.FileSummary) []string {
	return []string{
		s.Path,
		strconv.Itoa(s.Simulations),
		strconv.Itoa(s.ValidFlows),
		strconv.Itoa(s.SmallFlows),
		strconv.Itoa(s.MiddleFlows),
		strconv.Itoa(s.LargeFlows),
		strconv.FormatUint(s.TotalTxPackets, 10),
		strconv.FormatUint(s.TotalRxPackets, 10),
		strconv.FormatUint(s.TotalLostPackets, 10),
		fmtFloat(s.LossRate),
		fmtFloat(s.MeanFCT),
		fmtFloat(s.FCT99),
		fmtOptional(s.MeanSmallFCT),
		fmtOptional(s.SmallFCT99),
		fmtOptional(s.MeanMiddleFCT),
		fmtOptional(s.MeanLargeFCT),
		fmtOptional(s.MeanLargeThroughput),
	}
}

func combinedRow(r *model.Report) []string {
	return []string{
		"ALL",
		"",
		fmtFloat(r.MeanValidFlows),
		"",
		"",
		"",
		fmtFloat(r.MeanTotalTxPackets),
		fmtFloat(r.MeanTotalRxPackets),
		fmtFloat(r.MeanTotalLostPackets),
		fmtFloat(r.CombinedLossRate),
		fmtFloat(r.MeanFCT),
		fmtFloat(r.MeanFCT99),
		fmtOptional(r.MeanSmallFCT),
		fmtOptional(r.MeanSmallFCT99),
		fmtOptional(r.MeanMiddleFCT),
		fmtOptional(r.MeanLargeFCT),
		fmtOptional(r.MeanLargeThroughput),
	}
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func fmtOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return fmtFloat(*v)
}
