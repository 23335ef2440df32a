package factory

import (
	"Go2FctSpectra/internal/config"
	"Go2FctSpectra/internal/model"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"
)

// WriterFactory builds one report writer from its definition.
type WriterFactory func(def config.WriterDef, cfg *config.Config) (model.Writer, error)

// registry holds the mapping of writer types to their factory functions.
var registry = make(map[string]WriterFactory)

// RegisterWriter registers a new writer type with its factory function.
func RegisterWriter(name string, factory WriterFactory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("writer type '%s' already registered", name))
	}
	registry[name] = factory
}

// Types returns the registered writer types in sorted order.
func Types() []string {
	types := make([]string, 0, len(registry))
	for name := range registry {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// Create builds every enabled writer in cfg. An unknown type is a
// configuration error; a writer whose backend cannot be reached is skipped
// with a warning so the remaining sinks still receive the report.
func Create(cfg *config.Config) ([]model.Writer, error) {
	var writers []model.Writer

	for _, def := range cfg.EnabledWriters() {
		factory, ok := registry[def.Type]
		if !ok {
			return nil, fmt.Errorf("unknown writer type: '%s'", def.Type)
		}

		log.Debugf("Creating writer of type '%s'", def.Type)
		writer, err := factory(def, cfg)
		if err != nil {
			log.Warnf("Failed to create writer type '%s': %v, skipping.", def.Type, err)
			continue
		}
		writers = append(writers, writer)
	}

	return writers, nil
}
