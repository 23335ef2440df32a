package writer

import (
	"Go2FctSpectra/internal/config"
	"Go2FctSpectra/internal/model"
	"Go2FctSpectra/internal/wire"
	"fmt"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// NATSWriter publishes every report, protobuf encoded, to a NATS subject.
type NATSWriter struct {
	nc      *nats.Conn
	subject string
}

// NewNATSWriter connects to the configured NATS server.
func NewNATSWriter(cfg config.NATSConfig) (*NATSWriter, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, err
	}
	log.Infof("Connected to NATS server at %s", cfg.URL)
	return &NATSWriter{nc: nc, subject: cfg.Subject}, nil
}

func (w *NATSWriter) Name() string { return "nats" }

// Write serializes the report and publishes it to the configured subject.
func (w *NATSWriter) Write(report *model.Report) error {
	data, err := wire.MarshalReport(report)
	if err != nil {
		return err
	}
	if err := w.nc.Publish(w.subject, data); err != nil {
		return fmt.Errorf("failed to publish report to '%s': %w", w.subject, err)
	}
	return w.nc.Flush()
}

// Close drains and closes the NATS connection.
func (w *NATSWriter) Close() error {
	if w.nc == nil {
		return nil
	}
	err := w.nc.Drain()
	log.Info("NATS connection drained and closed.")
	return err
}
