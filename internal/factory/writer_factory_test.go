package factory

import (
	"Go2FctSpectra/internal/config"
	"Go2FctSpectra/internal/model"
	"errors"
	"testing"
)

type stubWriter struct{ name string }

func (w *stubWriter) Write(*model.Report) error { return nil }
func (w *stubWriter) Name() string              { return w.name }

func init() {
	RegisterWriter("stub", func(def config.WriterDef, _ *config.Config) (model.Writer, error) {
		return &stubWriter{name: def.Path}, nil
	})
	RegisterWriter("unreachable", func(config.WriterDef, *config.Config) (model.Writer, error) {
		return nil, errors.New("connection refused")
	})
}

func TestCreate(t *testing.T) {
	cfg := &config.Config{Writers: []config.WriterDef{
		{Type: "stub", Enabled: true, Path: "first"},
		{Type: "unreachable", Enabled: true},
		{Type: "stub", Enabled: false, Path: "disabled"},
		{Type: "stub", Enabled: true, Path: "second"},
	}}
	writers, err := Create(cfg)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(writers) != 2 {
		t.Fatalf("Expected 2 writers, got %d", len(writers))
	}
	if writers[0].Name() != "first" || writers[1].Name() != "second" {
		t.Errorf("Writers out of config order: %s, %s", writers[0].Name(), writers[1].Name())
	}
}

func TestCreate_UnknownType(t *testing.T) {
	cfg := &config.Config{Writers: []config.WriterDef{{Type: "carrier-pigeon", Enabled: true}}}
	if _, err := Create(cfg); err == nil {
		t.Fatal("Expected an error for an unknown writer type")
	}
}

func TestRegisterWriter_Duplicate(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected a panic when registering a type twice")
		}
	}()
	RegisterWriter("stub", nil)
}

func TestTypes(t *testing.T) {
	types := Types()
	if len(types) < 2 || types[0] != "stub" {
		t.Errorf("Expected sorted registered types, got %v", types)
	}
}
