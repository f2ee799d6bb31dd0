// Package logging wires zap as the kernel's logging backend, selected
// by the framework mode the way the teacher's Config.Framework.Mode
// switched CLI verbosity.
package logging

import "go.uber.org/zap"

// New builds a *zap.Logger for the given mode ("development" or
// "production") and level ("debug", "info", "warn", "error").
func New(mode, level string) (*zap.Logger, error) {
	var cfg zap.Config
	if mode == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}

	return cfg.Build()
}

// Noop returns a logger that discards everything.
func Noop() *zap.Logger {
	return zap.NewNop()
}
