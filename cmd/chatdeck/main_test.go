package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"pkt.systems/chatdeck/internal/appconfig"
	"pkt.systems/chatdeck/internal/persist"
	"pkt.systems/chatdeck/schema"
	"pkt.systems/pslog"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	want := []string{"config", "serve", "state", "version"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigInitWritesDefaultsAndRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if _, err := runCmd(t, newConfigCmd(), "init", "-c", path); err != nil {
		t.Fatalf("config init: %v", err)
	}
	cfg, err := appconfig.Load(path)
	if err != nil {
		t.Fatalf("load written config: %v", err)
	}
	if cfg.Drag.Pointer != appconfig.PointerAuto {
		t.Fatalf("expected default pointer, got %q", cfg.Drag.Pointer)
	}
	if _, err := runCmd(t, newConfigCmd(), "init", "-c", path); err == nil {
		t.Fatalf("expected second init without --force to fail")
	}
	if _, err := runCmd(t, newConfigCmd(), "init", "-c", path, "--force"); err != nil {
		t.Fatalf("config init --force: %v", err)
	}
}

func TestStateShowAndReset(t *testing.T) {
	cfgPath, stateDir := writeTestConfig(t)

	out, err := runCmd(t, newStateCmd(), "show", "-c", cfgPath)
	if err != nil {
		t.Fatalf("state show empty: %v", err)
	}
	if strings.TrimSpace(out) != "{}" {
		t.Fatalf("expected empty registry, got %q", out)
	}

	store, err := persist.NewStore(stateDir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	reg := persist.NewRegistry(store)
	seed := schema.TabState{"1": {Tabs: []schema.Tab{{ID: "t1", Type: schema.TabTypeChat, Active: true}}}}
	if err := reg.Save(context.Background(), seed, schema.SourceController); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err = runCmd(t, newStateCmd(), "show", "-c", cfgPath)
	if err != nil {
		t.Fatalf("state show: %v", err)
	}
	var got schema.TabState
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if diff := cmp.Diff(seed, got); diff != "" {
		t.Fatalf("state mismatch (-want +got):\n%s", diff)
	}

	if _, err := runCmd(t, newStateCmd(), "reset", "-c", cfgPath); err != nil {
		t.Fatalf("state reset: %v", err)
	}
	if _, ok, err := reg.Load(context.Background()); err != nil || ok {
		t.Fatalf("expected registry removed, ok=%v err=%v", ok, err)
	}
}

func TestVersionPrintsModule(t *testing.T) {
	out, err := runCmd(t, newVersionCmd())
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "pkt.systems/chatdeck ") {
		t.Fatalf("unexpected version output %q", out)
	}
}

func TestToServerConfig(t *testing.T) {
	cfg, err := appconfig.DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig: %v", err)
	}
	cfg.Drag.Pointer = appconfig.PointerNone
	cfg.Surface.Reparent = false
	got := toServerConfig(cfg)
	if got.Pointer != appconfig.PointerNone || got.Reparent {
		t.Fatalf("unexpected server config %+v", got)
	}
	if got.HTTP.Addr != cfg.HTTP.Addr {
		t.Fatalf("expected http addr %q, got %q", cfg.HTTP.Addr, got.HTTP.Addr)
	}
	if got.Service.TabStripHeight != cfg.Drag.TabStripHeight {
		t.Fatalf("expected tab strip height %d, got %d", cfg.Drag.TabStripHeight, got.Service.TabStripHeight)
	}
}

func runCmd(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	logger := pslog.NewWithOptions(io.Discard, pslog.Options{Mode: pslog.ModeStructured, NoColor: true})
	var out bytes.Buffer
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.ExecuteContext(pslog.ContextWithLogger(context.Background(), logger))
	return out.String(), err
}

func writeTestConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	stateDir := filepath.Join(dir, "state")
	path := filepath.Join(dir, "config.yaml")
	data := fmt.Sprintf("config_version: %d\nstate_dir: %s\ntemp_dir: %s\n",
		appconfig.CurrentConfigVersion, stateDir, filepath.Join(dir, "tmp"))
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path, stateDir
}
