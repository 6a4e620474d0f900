package appconfig

import (
	"testing"
	"time"
)

func TestDefaultConfigReparentEnabled(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	if !cfg.Surface.Reparent {
		t.Fatalf("expected surface reparent to default true")
	}
	if cfg.Window.HideOnClose {
		t.Fatalf("expected hide on close to default false")
	}
}

func TestServiceConfigMapsDrag(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.Drag.PollHz = 50
	cfg.Drag.TabStripHeight = 32
	svc := cfg.ServiceConfig()
	if svc.PollInterval != 20*time.Millisecond {
		t.Fatalf("expected 20ms poll interval, got %s", svc.PollInterval)
	}
	if svc.TabStripHeight != 32 {
		t.Fatalf("expected strip height 32, got %d", svc.TabStripHeight)
	}
	if svc.StateDir != cfg.StateDir {
		t.Fatalf("expected state dir %q, got %q", cfg.StateDir, svc.StateDir)
	}
}
