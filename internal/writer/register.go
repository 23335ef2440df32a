package writer

import (
	"Go2FctSpectra/internal/config"
	"Go2FctSpectra/internal/factory"
	"Go2FctSpectra/internal/model"
	"fmt"
	"os"
)

// --- Factory Registration ---

func init() {
	factory.RegisterWriter("text", func(def config.WriterDef, _ *config.Config) (model.Writer, error) {
		if def.Path == "" {
			return NewTextWriter(os.Stdout, def.Flows), nil
		}
		w, err := NewTextFileWriter(def.Path, def.Flows)
		if err != nil {
			return nil, err
		}
		return w, nil
	})
	factory.RegisterWriter("snapshot", func(def config.WriterDef, _ *config.Config) (model.Writer, error) {
		if def.Path == "" {
			return nil, fmt.Errorf("snapshot writer needs a root path")
		}
		return NewSnapshotWriter(def.Path), nil
	})
	factory.RegisterWriter("csv", func(def config.WriterDef, _ *config.Config) (model.Writer, error) {
		if def.Path == "" {
			return nil, fmt.Errorf("csv writer needs a file path")
		}
		return NewCSVWriter(def.Path), nil
	})
	factory.RegisterWriter("plot", func(def config.WriterDef, _ *config.Config) (model.Writer, error) {
		if def.Path == "" {
			return nil, fmt.Errorf("plot writer needs a file path")
		}
		return NewPlotWriter(def.Path), nil
	})
	factory.RegisterWriter("clickhouse", func(_ config.WriterDef, cfg *config.Config) (model.Writer, error) {
		w, err := NewClickHouseWriter(cfg.ClickHouse)
		if err != nil {
			return nil, err
		}
		return w, nil
	})
	factory.RegisterWriter("nats", func(_ config.WriterDef, cfg *config.Config) (model.Writer, error) {
		w, err := NewNATSWriter(cfg.NATS)
		if err != nil {
			return nil, err
		}
		return w, nil
	})
	factory.RegisterWriter("amqp", func(_ config.WriterDef, cfg *config.Config) (model.Writer, error) {
		w, err := NewAMQPWriter(cfg.AMQP)
		if err != nil {
			return nil, err
		}
		return w, nil
	})
}
