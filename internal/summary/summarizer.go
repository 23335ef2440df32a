package summary

import (
	"Go2FctSpectra/internal/model"
	"Go2FctSpectra/internal/stats"
	"Go2FctSpectra/pkg/flowmon"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
)

// NoInputError is returned when a pattern yields no usable file: either
// nothing matched or every matching file failed.
type NoInputError struct {
	Pattern  string
	Failures []model.FileFailure
}

func (e *NoInputError) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf("no input files match %q", e.Pattern)
	}
	causes := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		causes[i] = f.Error()
	}
	return fmt.Sprintf("all %d files matching %q failed: %s", len(e.Failures), e.Pattern, strings.Join(causes, "; "))
}

// Unwrap exposes every per-file failure to errors.Is and errors.As.
func (e *NoInputError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// Summarizer runs the reader and aggregator over every file matching a
// pattern and folds the per-file summaries into one report.
type Summarizer struct {
	// Strict aborts the whole run on the first failing file. By default a
	// failing file is recorded in Report.Failures and left out of the means.
	Strict bool
	// Observer, if set, receives every valid flow as it is aggregated.
	Observer model.FlowObserver
}

// Run processes the files matching pattern one at a time, in glob order.
func (s *Summarizer) Run(ctx context.Context, pattern string) (*model.Report, error) {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid file pattern %q: %w", pattern, err)
	}
	if len(files) == 0 {
		return nil, &NoInputError{Pattern: pattern}
	}
	log.Infof("Found %d files matching %s", len(files), pattern)

	report := &model.Report{Pattern: pattern}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		summary, err := s.summarizeFile(path)
		if err != nil {
			if s.Strict {
				return nil, fmt.Errorf("failed to summarize %s: %w", path, err)
			}
			log.Warnf("Skipping %s: %v", path, err)
			report.Failures = append(report.Failures, model.FileFailure{Path: path, Err: err})
			continue
		}
		log.Infof("Summarized %s: %d valid flows in %d runs", path, summary.ValidFlows, summary.Simulations)
		report.Files = append(report.Files, summary)
	}

	if len(report.Files) == 0 {
		return nil, &NoInputError{Pattern: pattern, Failures: report.Failures}
	}
	Fold(report)
	return report, nil
}

// summarizeFile streams one file through the aggregator. The file is closed
// on every path out of this function. The observer only sees the flows of
// a file that summarized successfully.
func (s *Summarizer) summarizeFile(path string) (model.FileSummary, error) {
	r, err := flowmon.Open(path)
	if err != nil {
		return model.FileSummary{}, err
	}
	defer r.Close()

	var pending []*model.Flow
	var observe func(*model.Flow)
	if s.Observer != nil {
		observe = func(f *model.Flow) { pending = append(pending, f) }
	}
	summary, err := stats.Aggregate(r.All(), observe)
	if err != nil {
		return model.FileSummary{}, err
	}
	summary.Path = path

	for _, f := range pending {
		s.Observer.ObserveFlow(path, f)
	}
	return summary, nil
}

// Fold fills the cross-file fields of report from report.Files. A metric
// that a file has no value for does not count towards that metric's mean.
func Fold(report *model.Report) {
	files := report.Files
	if len(files) == 0 {
		return
	}

	report.MeanValidFlows = mean(files, func(f *model.FileSummary) *float64 { return model.Float(float64(f.ValidFlows)) })
	report.MeanTotalTxPackets = mean(files, func(f *model.FileSummary) *float64 { return model.Float(float64(f.TotalTxPackets)) })
	report.MeanTotalRxPackets = mean(files, func(f *model.FileSummary) *float64 { return model.Float(float64(f.TotalRxPackets)) })
	report.MeanTotalLostPackets = mean(files, func(f *model.FileSummary) *float64 { return model.Float(float64(f.TotalLostPackets)) })
	report.MeanFCT = mean(files, func(f *model.FileSummary) *float64 { return &f.MeanFCT })
	report.MeanFCT99 = mean(files, func(f *model.FileSummary) *float64 { return &f.FCT99 })

	report.MeanSmallFCT = optionalMean(files, func(f *model.FileSummary) *float64 { return f.MeanSmallFCT })
	report.MeanSmallFCT99 = optionalMean(files, func(f *model.FileSummary) *float64 { return f.SmallFCT99 })
	report.MeanMiddleFCT = optionalMean(files, func(f *model.FileSummary) *float64 { return f.MeanMiddleFCT })
	report.MeanLargeFCT = optionalMean(files, func(f *model.FileSummary) *float64 { return f.MeanLargeFCT })
	report.MeanLargeThroughput = optionalMean(files, func(f *model.FileSummary) *float64 { return f.MeanLargeThroughput })

	var lost, tx uint64
	for i := range files {
		lost += files[i].TotalLostPackets
		tx += files[i].TotalTxPackets
	}
	if tx > 0 {
		report.CombinedLossRate = float64(lost) / float64(tx)
	}
}

func values(files []model.FileSummary, field func(*model.FileSummary) *float64) []float64 {
	vs := make([]float64, 0, len(files))
	for i := range files {
		if v := field(&files[i]); v != nil {
			vs = append(vs, *v)
		}
	}
	return vs
}

func mean(files []model.FileSummary, field func(*model.FileSummary) *float64) float64 {
	vs := values(files, field)
	if len(vs) == 0 {
		return 0
	}
	return stat.Mean(vs, nil)
}

func optionalMean(files []model.FileSummary, field func(*model.FileSummary) *float64) *float64 {
	vs := values(files, field)
	if len(vs) == 0 {
		return nil
	}
	return model.Float(stat.Mean(vs, nil))
}
