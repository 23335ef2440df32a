package writer

import (
	"Go2FctSpectra/internal/model"
	"Go2FctSpectra/internal/stats"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// PlotWriter draws the empirical CDF of flow completion times, one line for
// all valid flows and one per size class. The image format follows the
// file extension (png, svg, pdf, eps).
type PlotWriter struct {
	path string

	mu      sync.Mutex
	all     []float64
	byClass [3][]float64
}

// NewPlotWriter creates a plot writer saving to path.
func NewPlotWriter(path string) *PlotWriter {
	return &PlotWriter{path: path}
}

func (w *PlotWriter) Name() string { return "plot" }

func (w *PlotWriter) ObserveFlow(_ string, f *model.Flow) {
	if f.FCT == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.all = append(w.all, *f.FCT)
	class := stats.Classify(f)
	w.byClass[class] = append(w.byClass[class], *f.FCT)
}

func (w *PlotWriter) Write(report *model.Report) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.all) == 0 {
		log.Warn("No flow completion times observed, skipping plot.")
		return nil
	}

	p := plot.New()
	p.Title.Text = "FCT ECDF: " + report.Pattern
	p.X.Label.Text = "Flow completion time (s)"
	p.Y.Label.Text = "CDF"
	p.X.Min = 0
	p.Y.Min = 0
	p.Y.Max = 1
	p.Add(plotter.NewGrid())

	series := []struct {
		name    string
		samples []float64
	}{
		{"all", w.all},
		{stats.Small.String(), w.byClass[stats.Small]},
		{stats.Middle.String(), w.byClass[stats.Middle]},
		{stats.Large.String(), w.byClass[stats.Large]},
	}
	for i, s := range series {
		if len(s.samples) == 0 {
			continue
		}
		line, err := plotter.NewLine(ECDF(s.samples))
		if err != nil {
			return fmt.Errorf("failed to build %s line: %w", s.name, err)
		}
		line.Color = plotutil.Color(i)
		line.Dashes = plotutil.Dashes(i)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("%s (%d)", s.name, len(s.samples)), line)
	}
	p.Legend.Top = false
	p.Legend.Left = false

	if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
		return fmt.Errorf("failed to create plot directory: %w", err)
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, w.path); err != nil {
		return fmt.Errorf("failed to save plot '%s': %w", w.path, err)
	}
	log.Infof("Wrote FCT ECDF of %d flows to %s", len(w.all), w.path)
	return nil
}

// ECDF returns the empirical CDF of samples as plot points, one per sample:
// the fraction of samples less than or equal to each value. samples is
// sorted in place. One pass over the sorted slice replaces a stat.CDF call
// per point, which would be quadratic in the number of flows.
func ECDF(samples []float64) plotter.XYs {
	sort.Float64s(samples)
	n := len(samples)
	ecdf := make(plotter.XYs, n)
	for i := n - 1; i >= 0; i-- {
		ecdf[i].X = samples[i]
		if i < n-1 && samples[i] == samples[i+1] {
			ecdf[i].Y = ecdf[i+1].Y
			continue
		}
		ecdf[i].Y = float64(i+1) / float64(n)
	}
	return ecdf
}
