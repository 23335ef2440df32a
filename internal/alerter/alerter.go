package alerter

import (
	"Go2FctSpectra/internal/config"
	"Go2FctSpectra/internal/model"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	log "github.com/sirupsen/logrus"
)

// Alerter evaluates a finished report against threshold rules and sends
// one consolidated notification when any rule fires.
type Alerter struct {
	rules     []config.AlerterRule
	notifier  model.Notifier
	analyzer  model.Analyzer
	aiTimeout time.Duration
}

// NewAlerter creates a new Alerter. analyzer may be nil, in which case no AI
// commentary is attached.
func NewAlerter(cfg *config.AlerterConfig, notifier model.Notifier, analyzer model.Analyzer, aiTimeout time.Duration) *Alerter {
	return &Alerter{
		rules:     cfg.Rules,
		notifier:  notifier,
		analyzer:  analyzer,
		aiTimeout: aiTimeout,
	}
}

// MetricValue looks up a report metric by its JSON name. ok is false for an
// unknown name and for a metric without data.
func MetricValue(report *model.Report, metric string) (value float64, ok bool) {
	optional := func(p *float64) (float64, bool) {
		if p == nil {
			return 0, false
		}
		return *p, true
	}

	switch metric {
	case "mean_fct":
		return report.MeanFCT, true
	case "mean_fct_99":
		return report.MeanFCT99, true
	case "mean_small_fct":
		return optional(report.MeanSmallFCT)
	case "mean_small_fct_99":
		return optional(report.MeanSmallFCT99)
	case "mean_middle_fct":
		return optional(report.MeanMiddleFCT)
	case "mean_large_fct":
		return optional(report.MeanLargeFCT)
	case "mean_large_throughput":
		return optional(report.MeanLargeThroughput)
	case "combined_loss_rate":
		return report.CombinedLossRate, true
	case "mean_valid_flows":
		return report.MeanValidFlows, true
	case "files":
		return float64(report.FileCount()), true
	case "failed_files":
		return float64(len(report.Failures)), true
	default:
		return 0, false
	}
}

// Evaluate checks every rule and notifies when any fired. It returns the
// triggered alert messages.
func (a *Alerter) Evaluate(ctx context.Context, report *model.Report) ([]string, error) {
	var messages []string
	for _, rule := range a.rules {
		value, ok := MetricValue(report, rule.Metric)
		if !ok {
			log.Debugf("Alerter rule '%s': metric '%s' has no value", rule.Name, rule.Metric)
			continue
		}
		if !check(value, rule.Threshold, rule.Op) {
			continue
		}
		messages = append(messages, fmt.Sprintf("<h3>Alert: %s</h3>"+
			"<ul>"+
			"<li><b>Pattern:</b> <code>%s</code></li>"+
			"<li><b>Metric:</b> <code>%s</code></li>"+
			"<li><b>Condition:</b> <code>%s %g</code></li>"+
			"<li><b>Observed Value:</b> <code>%.6g</code></li>"+
			"</ul>",
			rule.Name, report.Pattern, rule.Metric, rule.Op, rule.Threshold, value))
	}

	if len(messages) == 0 {
		return nil, nil
	}
	log.Infof("Alerter evaluation completed. %d alert(s) triggered.", len(messages))

	body := "<h1>Go2FctSpectra Alert Summary</h1>" +
		fmt.Sprintf("<p>The report over <code>%s</code> (%d files) triggered the following alerts:</p><hr>", report.Pattern, report.FileCount()) +
		strings.Join(messages, "<hr>")

	if analysis, err := a.analyze(ctx, strings.Join(messages, "\n")); err != nil {
		log.Warnf("Failed to get AI analysis: %v", err)
	} else if analysis != "" {
		html := markdown.ToHTML([]byte(analysis), nil, nil)
		body += "<hr><h2>AI-Powered Analysis</h2>" + string(html)
	}

	if a.notifier == nil {
		return messages, nil
	}
	subject := fmt.Sprintf("Go2FctSpectra Alert Summary (%d Triggered)", len(messages))
	if err := a.notifier.Send(subject, body); err != nil {
		return messages, fmt.Errorf("failed to send alert notification: %w", err)
	}
	log.Info("Consolidated alert notification sent successfully.")
	return messages, nil
}

func (a *Alerter) analyze(ctx context.Context, alerts string) (string, error) {
	if a.analyzer == nil {
		return "", nil
	}
	log.Info("Requesting AI analysis for alert summary...")
	if a.aiTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.aiTimeout)
		defer cancel()
	}
	return a.analyzer.AnalyzeReport(ctx, alerts)
}

// check compares a value against a threshold based on an operator.
func check(value, threshold float64, operator string) bool {
	switch operator {
	case ">":
		return value > threshold
	case "<":
		return value < threshold
	case "=":
		return value == threshold
	case ">=":
		return value >= threshold
	case "<=":
		return value <= threshold
	default:
		log.Warnf("Unknown operator '%s' in alerter rule", operator)
		return false
	}
}
