package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/danmuck/forgemirror/internal/mirror"
	"github.com/danmuck/forgemirror/internal/testutil/testlog"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mirrorctl.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
concurrency = 4
workdir = "/srv/mirrors"
org = "my-mirrors"
push_tags = true
legacy_import = false
all_branches = false
command_timeout = "10m"
serve_interval = "30m"
description_suffix = "Read-only mirror."
cors_origins = [" http://localhost:3000 ", ""]
unknown_key = "ignored"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Concurrency != 4 || cfg.WorkDir != "/srv/mirrors" || cfg.Org != "my-mirrors" {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
	if !cfg.PushTags || cfg.LegacyImport || cfg.AllBranches {
		t.Fatalf("unexpected bool overrides: %+v", cfg)
	}
	if cfg.CommandTimeout != 10*time.Minute || cfg.ServeInterval != 30*time.Minute {
		t.Fatalf("unexpected durations: %v %v", cfg.CommandTimeout, cfg.ServeInterval)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://localhost:3000" {
		t.Fatalf("unexpected cors origins: %v", cfg.CORSOrigins)
	}
	def := Default()
	if cfg.SearchURL != def.SearchURL || cfg.MirrorURL != def.MirrorURL || cfg.FetchMaxElapsed != def.FetchMaxElapsed {
		t.Fatalf("undefined keys should keep defaults: %+v", cfg)
	}
	if got := cfg.Layout().MirrorRemote("foo"); got != "https://github.com/my-mirrors/foo" {
		t.Fatalf("unexpected mirror remote: %s", got)
	}
	if got := cfg.Layout().MirrorDescription("Foo"); got != "Foo - Read-only mirror." {
		t.Fatalf("unexpected description: %q", got)
	}
}

func TestLoadExplicitZeroConcurrency(t *testing.T) {
	testlog.Start(t)
	cfg, err := Load(writeConfig(t, "concurrency = 0\n"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Concurrency != mirror.ConcurrencySequential {
		t.Fatalf("explicit 0 must select sequential mode, got %d", cfg.Concurrency)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"negative concurrency": "concurrency = -3\n",
		"org with slash":       "org = \"a/b\"\n",
		"template":             "mirror_url = \"https://github.com/x\"\n",
		"interval":             "serve_interval = \"0s\"\n",
	}
	for name, content := range cases {
		if _, err := Load(writeConfig(t, content)); !errors.Is(err, ErrInvalid) {
			t.Fatalf("%s: expected ErrInvalid, got %v", name, err)
		}
	}
	if _, err := Load(writeConfig(t, "http_timeout = \"soon\"\n")); err == nil {
		t.Fatalf("expected duration parse error")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestTemplateLoadsAsDefaults(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "etc", "mirrorctl.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Fatalf("overwrite template: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Fatalf("template drifted from defaults:\n got %+v\nwant %+v", cfg, Default())
	}
}

func TestRunlogRoot(t *testing.T) {
	testlog.Start(t)
	cfg := Default()
	cfg.WorkDir = "/srv/m"
	if got := cfg.RunlogRoot(); got != filepath.Join("/srv/m", ".forgemirror", "runs") {
		t.Fatalf("unexpected default runlog root: %s", got)
	}
	cfg.RunlogDir = "/var/log/runs"
	if got := cfg.RunlogRoot(); got != "/var/log/runs" {
		t.Fatalf("unexpected runlog root: %s", got)
	}
}
