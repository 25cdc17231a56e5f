package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ARCADIA_TOKEN", "tok")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Token != "tok" {
		t.Fatalf("Token = %q", cfg.Token)
	}
	if cfg.RequestTimeout != 300*time.Second {
		t.Fatalf("RequestTimeout = %v", cfg.RequestTimeout)
	}
	if cfg.BackoffStep != 5*time.Second || cfg.BackoffMax != 60*time.Second {
		t.Fatalf("backoff = %v/%v", cfg.BackoffStep, cfg.BackoffMax)
	}
	if cfg.ReconcileDelay != time.Second {
		t.Fatalf("ReconcileDelay = %v", cfg.ReconcileDelay)
	}
	if cfg.RenderInterval != 0 {
		t.Fatalf("RenderInterval = %v, want 0", cfg.RenderInterval)
	}
}

func TestLoadRejectsNonPositiveTimeout(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "0")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for zero request timeout")
	}
}

func TestLoadRejectsNegativeInterval(t *testing.T) {
	t.Setenv("RENDER_INTERVAL", "-5")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for negative render interval")
	}
}
