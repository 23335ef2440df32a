package alerter

import (
	"Go2FctSpectra/internal/config"
	"Go2FctSpectra/internal/model"
	"context"
	"errors"
	"strings"
	"testing"
)

type recordingNotifier struct {
	subject, body string
	sent          int
	err           error
}

func (n *recordingNotifier) Send(subject, body string) error {
	n.subject, n.body = subject, body
	n.sent++
	return n.err
}

type fixedAnalyzer string

func (a fixedAnalyzer) AnalyzeReport(context.Context, string) (string, error) {
	return string(a), nil
}

func report() *model.Report {
	return &model.Report{
		Pattern:          "runs/*.xml",
		Files:            []model.FileSummary{{Path: "runs/a.xml"}},
		MeanFCT:          0.8,
		MeanSmallFCT99:   model.Float(0.2),
		CombinedLossRate: 0.02,
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		value, threshold float64
		op               string
		want             bool
	}{
		{2, 1, ">", true},
		{1, 1, ">", false},
		{1, 1, ">=", true},
		{0, 1, "<", true},
		{1, 1, "<=", true},
		{1, 1, "=", true},
		{1, 1, "!=", false},
	}
	for _, tt := range tests {
		if got := check(tt.value, tt.threshold, tt.op); got != tt.want {
			t.Errorf("check(%v %s %v): expected %v, got %v", tt.value, tt.op, tt.threshold, tt.want, got)
		}
	}
}

func TestMetricValue(t *testing.T) {
	r := report()
	if v, ok := MetricValue(r, "mean_small_fct_99"); !ok || v != 0.2 {
		t.Errorf("Expected 0.2, got %v (ok=%v)", v, ok)
	}
	if _, ok := MetricValue(r, "mean_large_fct"); ok {
		t.Error("A metric without data should not be reported")
	}
	if _, ok := MetricValue(r, "no_such_metric"); ok {
		t.Error("An unknown metric should not be reported")
	}
	if v, _ := MetricValue(r, "files"); v != 1 {
		t.Errorf("Expected 1 file, got %v", v)
	}
}

func TestEvaluate_Triggered(t *testing.T) {
	notifier := &recordingNotifier{}
	cfg := &config.AlerterConfig{Rules: []config.AlerterRule{
		{Name: "slow", Metric: "mean_fct", Op: ">", Threshold: 0.5},
		{Name: "lossy", Metric: "combined_loss_rate", Op: ">=", Threshold: 0.05},
		{Name: "large", Metric: "mean_large_fct", Op: ">", Threshold: 0},
	}}
	a := NewAlerter(cfg, notifier, fixedAnalyzer("**Small flows** look fine."), 0)

	messages, err := a.Evaluate(context.Background(), report())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(messages) != 1 || !strings.Contains(messages[0], "Alert: slow") {
		t.Fatalf("Expected only the slow rule to fire, got %v", messages)
	}
	if notifier.sent != 1 || !strings.Contains(notifier.subject, "1 Triggered") {
		t.Errorf("Expected one notification, got %d with subject %q", notifier.sent, notifier.subject)
	}
	if !strings.Contains(notifier.body, "<strong>Small flows</strong>") {
		t.Errorf("Expected the AI markdown to be rendered as HTML, got %q", notifier.body)
	}
}

func TestEvaluate_Quiet(t *testing.T) {
	notifier := &recordingNotifier{}
	cfg := &config.AlerterConfig{Rules: []config.AlerterRule{{Name: "slow", Metric: "mean_fct", Op: ">", Threshold: 5}}}
	messages, err := NewAlerter(cfg, notifier, nil, 0).Evaluate(context.Background(), report())
	if err != nil || len(messages) != 0 || notifier.sent != 0 {
		t.Errorf("Expected no alert, got %v, %v, %d sent", messages, err, notifier.sent)
	}
}

func TestEvaluate_NotifierError(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("smtp down")}
	cfg := &config.AlerterConfig{Rules: []config.AlerterRule{{Name: "slow", Metric: "mean_fct", Op: ">", Threshold: 0}}}
	if _, err := NewAlerter(cfg, notifier, nil, 0).Evaluate(context.Background(), report()); err == nil {
		t.Fatal("Expected the notifier error to be returned")
	}
}
