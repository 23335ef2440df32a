package manager

import (
	"Go2FctSpectra/internal/config"
	"Go2FctSpectra/internal/model"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

const fixture = "../../../test/data/flowmon-two-runs.xml"

type recordingWriter struct {
	mu      sync.Mutex
	name    string
	flows   int
	reports int
	closed  bool
	err     error
}

func (w *recordingWriter) Name() string { return w.name }

func (w *recordingWriter) Write(*model.Report) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reports++
	return w.err
}

func (w *recordingWriter) ObserveFlow(string, *model.Flow) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flows++
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

type reportOnlyWriter struct{ reports int }

func (w *reportOnlyWriter) Name() string { return "report-only" }
func (w *reportOnlyWriter) Write(*model.Report) error {
	w.reports++
	return nil
}

func TestManager_Run(t *testing.T) {
	observing := &recordingWriter{name: "observing"}
	failing := &recordingWriter{name: "failing", err: errors.New("disk full")}
	plain := &reportOnlyWriter{}
	m := New([]model.Writer{observing, failing, plain}, false)

	report, err := m.Run(context.Background(), fixture)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.FileCount() != 1 || report.Files[0].ValidFlows != 3 {
		t.Fatalf("Unexpected report: %+v", report.Files)
	}
	if observing.flows != 3 || failing.flows != 3 {
		t.Errorf("Expected every valid flow to be observed, got %d and %d", observing.flows, failing.flows)
	}
	if observing.reports != 1 || failing.reports != 1 || plain.reports != 1 {
		t.Errorf("Expected one report per writer, got %d, %d, %d", observing.reports, failing.reports, plain.reports)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !observing.closed || !failing.closed {
		t.Error("Expected closable writers to be closed")
	}
}

func TestManager_NoInput(t *testing.T) {
	w := &recordingWriter{name: "w"}
	m := New([]model.Writer{w}, false)
	if _, err := m.Run(context.Background(), filepath.Join(t.TempDir(), "*.xml")); err == nil {
		t.Fatal("Expected an error for an empty pattern")
	}
	if w.reports != 0 {
		t.Error("No report should be written when there is no input")
	}
}

func TestNewManager_FromConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Writers = append(cfg.Writers, config.WriterDef{Type: "csv", Enabled: true, Path: filepath.Join(dir, "summary.csv")})
	cfg.Writers[0].Path = filepath.Join(dir, "report.txt")

	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if _, err := m.Run(context.Background(), fixture); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	for _, name := range []string{"report.txt", "summary.csv"} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil || info.Size() == 0 {
			t.Errorf("Expected %s to be written, got %v", name, err)
		}
	}
}

func TestNewManager_UnknownWriter(t *testing.T) {
	cfg := config.Default()
	cfg.Writers = []config.WriterDef{{Type: "fax", Enabled: true}}
	if _, err := NewManager(cfg); err == nil {
		t.Fatal("Expected an error for an unknown writer type")
	}
}
