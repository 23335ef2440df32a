package model

import (
	"context"
)

// Analyzer defines the standard interface for an AI analyzer.
type Analyzer interface {
	// AnalyzeReport receives a text rendering of a report and returns the analysis result from the AI model.
	AnalyzeReport(ctx context.Context, input string) (string, error)
}
