package manager

import (
	"Go2FctSpectra/internal/ai"
	"Go2FctSpectra/internal/alerter"
	"Go2FctSpectra/internal/config"
	"Go2FctSpectra/internal/factory"
	"Go2FctSpectra/internal/model"
	"Go2FctSpectra/internal/notification"
	"Go2FctSpectra/internal/summary"
	_ "Go2FctSpectra/internal/writer" // Registers the report writers
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Manager runs the summarizer over a file pattern and hands the results to
// every configured writer and to the alerter.
type Manager struct {
	writers    []model.Writer
	observers  []model.FlowObserver
	alerter    *alerter.Alerter
	summarizer *summary.Summarizer
}

// New creates a Manager around already built writers.
func New(writers []model.Writer, strict bool) *Manager {
	m := &Manager{writers: writers}
	for _, w := range writers {
		if o, ok := w.(model.FlowObserver); ok {
			m.observers = append(m.observers, o)
		}
	}
	m.summarizer = &summary.Summarizer{Strict: strict, Observer: m}
	return m
}

// NewManager builds the writers and the alerter described by cfg.
func NewManager(cfg *config.Config) (*Manager, error) {
	writers, err := factory.Create(cfg)
	if err != nil {
		return nil, err
	}
	m := New(writers, cfg.Strict)

	if cfg.Alerter.Enabled {
		var notifier model.Notifier
		if cfg.SMTP.Host != "" {
			n, err := notification.NewEmailNotifier(cfg.SMTP)
			if err != nil {
				return nil, err
			}
			notifier = n
		}

		var analyzer model.Analyzer
		if cfg.Alerter.AIAnalysis.Enabled {
			a, err := ai.NewReportAnalyzer(&cfg.AI)
			if err != nil {
				return nil, fmt.Errorf("failed to create AI analyzer: %w", err)
			}
			analyzer = a
		}

		timeout, err := time.ParseDuration(cfg.AI.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid ai timeout: %w", err)
		}

		if notifier == nil {
			log.Warn("Alerter is enabled in config, but no notifiers are configured. Alerts will only be logged.")
		}
		m.alerter = alerter.NewAlerter(&cfg.Alerter, notifier, analyzer, timeout)
		log.Info("Alerter enabled and initialized.")
	}

	log.Infof("Manager created with %d writers.", len(m.writers))
	return m, nil
}

// ObserveFlow fans a valid flow out to every writer that wants flows.
func (m *Manager) ObserveFlow(path string, flow *model.Flow) {
	for _, o := range m.observers {
		o.ObserveFlow(path, flow)
	}
}

// Run summarizes the files matching pattern, then writes and evaluates the
// report. Writer and alerter failures are logged and do not fail the run.
func (m *Manager) Run(ctx context.Context, pattern string) (*model.Report, error) {
	report, err := m.summarizer.Run(ctx, pattern)
	if err != nil {
		return nil, err
	}

	if err := m.write(report); err != nil {
		log.Errorf("Some writers failed: %v", err)
	}

	if m.alerter != nil {
		if _, err := m.alerter.Evaluate(ctx, report); err != nil {
			log.Errorf("Alerter failed: %v", err)
		}
	}
	return report, nil
}

// write hands the report to all writers concurrently and joins their errors.
func (m *Manager) write(report *model.Report) error {
	var wg sync.WaitGroup
	errs := make([]error, len(m.writers))

	wg.Add(len(m.writers))
	for i, w := range m.writers {
		go func(i int, w model.Writer) {
			defer wg.Done()
			if err := w.Write(report); err != nil {
				errs[i] = fmt.Errorf("%s writer: %w", w.Name(), err)
			}
		}(i, w)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// Close releases every writer that holds a file or a connection.
func (m *Manager) Close() error {
	var errs []error
	for _, w := range m.writers {
		if c, ok := w.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s writer: %w", w.Name(), err))
			}
		}
	}
	log.Debug("Manager stopped.")
	return errors.Join(errs...)
}
