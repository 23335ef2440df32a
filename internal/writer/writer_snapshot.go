package writer

import (
	"Go2FctSpectra/internal/model"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
)

// TimestampLayout names snapshot directories.
const TimestampLayout = "2006-01-02_15-04-05"

// SnapshotWriter stores each report under a timestamped directory: one gob
// file per input file summary and a summary.json with the whole report.
type SnapshotWriter struct {
	rootPath string
	now      func() time.Time
}

// NewSnapshotWriter creates a snapshot writer rooted at rootPath.
func NewSnapshotWriter(rootPath string) *SnapshotWriter {
	return &SnapshotWriter{rootPath: rootPath, now: time.Now}
}

func (w *SnapshotWriter) Name() string { return "snapshot" }

// Write creates <root>/<timestamp>/ and fills it.
func (w *SnapshotWriter) Write(report *model.Report) error {
	snapshotDir := filepath.Join(w.rootPath, w.now().Format(TimestampLayout))
	if err := os.MkdirAll(snapshotDir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	for i := range report.Files {
		filePath := filepath.Join(snapshotDir, fmt.Sprintf("file_%d.dat", i))
		if err := writeGob(filePath, &report.Files[i]); err != nil {
			return err
		}
	}

	summaryFilePath := filepath.Join(snapshotDir, "summary.json")
	summaryFile, err := os.Create(summaryFilePath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer summaryFile.Close()

	jsonEncoder := json.NewEncoder(summaryFile)
	jsonEncoder.SetIndent("", "  ")
	if err := jsonEncoder.Encode(report); err != nil {
		return fmt.Errorf("failed to encode summary to json: %w", err)
	}

	log.Infof("Wrote snapshot of %d file summaries to %s", report.FileCount(), snapshotDir)
	return nil
}

func writeGob(filePath string, summary *model.FileSummary) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file '%s': %w", filePath, err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(summary); err != nil {
		return fmt.Errorf("failed to encode summary to gob for file '%s': %w", filePath, err)
	}
	return nil
}

// ReadSnapshotFile decodes one file summary written by SnapshotWriter.
func ReadSnapshotFile(filePath string) (*model.FileSummary, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var summary model.FileSummary
	if err := gob.NewDecoder(file).Decode(&summary); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot file '%s': %w", filePath, err)
	}
	return &summary, nil
}
