package main

import (
	"testing"

	"rendezvous/internal/app"
	"rendezvous/internal/config"
	"rendezvous/internal/logging"
)

func TestApplication_DefaultConfigIsValid(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestApplication_ConstructorRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.MaxQueueSize = -1

	logger := logging.New("error")
	if _, err := app.New(cfg, logger); err == nil {
		t.Error("New() should reject a config that fails Validate()")
	}
}

func TestApplication_ConstructorSucceedsWithDefaults(t *testing.T) {
	cfg := config.Default()
	cfg.Port = "0"

	logger := logging.New("error")
	application, err := app.New(cfg, logger)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if application == nil {
		t.Fatal("New() returned a nil application with no error")
	}
}
