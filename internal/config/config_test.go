package config

import "testing"

func TestDefaultPassesValidation(t *testing.T) {
	cfg := Default()
	if err := cfg.validate(); err != nil {
		t.Fatalf("Default() config should validate, got: %v", err)
	}
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := Default()
	cfg.World.Backend = "bogus"
	if err := cfg.validate(); err == nil {
		t.Fatal("expected validation error for unknown backend")
	}
}

func TestValidateRejectsBadTickRate(t *testing.T) {
	cfg := Default()
	cfg.World.TickRateMs = 0
	if err := cfg.validate(); err == nil {
		t.Fatal("expected validation error for zero tick rate")
	}
}

func TestValidateRejectsEmptyBindAddr(t *testing.T) {
	cfg := Default()
	cfg.Gateway.BindAddr = ""
	if err := cfg.validate(); err == nil {
		t.Fatal("expected validation error for empty bind address")
	}
}
