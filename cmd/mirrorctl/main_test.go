package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/danmuck/forgemirror/internal/catalog"
	"github.com/danmuck/forgemirror/internal/config"
	"github.com/danmuck/forgemirror/internal/mirror"
	"github.com/danmuck/forgemirror/internal/runlog"
	"github.com/danmuck/forgemirror/internal/testutil/testlog"
)

const catalogPage = `<html><body><table class="box">
<tr class="boxitem"><td><a href="../projects/foo">Foo tool</a></td></tr>
<tr class="boxitemalt"><td><a href="../projects/bar">Bar util</a></td></tr>
<tr class="boxitem"><td><a href="../projects/baz">...</a></td></tr>
</table></body></html>`

// scriptRunner answers gh and git the way a healthy host without git-cvs would.
type scriptRunner struct {
	mu       sync.Mutex
	commands []string
}

func (r *scriptRunner) Run(_ context.Context, _ string, name string, args ...string) ([]byte, int32, error) {
	r.mu.Lock()
	r.commands = append(r.commands, name+" "+strings.Join(args, " "))
	r.mu.Unlock()

	switch name {
	case "gh":
		if len(args) > 1 && args[0] == "repo" && args[1] == "list" {
			return []byte(`[{"name":"baz"}]`), 0, nil
		}
		return nil, 0, nil
	case "git":
		if len(args) < 3 {
			return nil, 1, nil
		}
		switch args[2] {
		case "clone":
			if strings.HasSuffix(args[3], "/bar.git") {
				return []byte("fatal: repository not found"), 128, nil
			}
			if err := os.MkdirAll(filepath.Join(args[1], args[4]), 0o755); err != nil {
				return nil, 1, err
			}
			return nil, 0, nil
		case "cvsimport":
			return []byte("git: 'cvsimport' is not a git command. See 'git --help'."), 1, nil
		}
		return nil, 0, nil
	}
	return nil, 127, errors.New("not found")
}

func (r *scriptRunner) count(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.commands {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func catalogServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(catalogPage))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, searchURL string) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.WorkDir = t.TempDir()
	cfg.Org = "mirrors"
	cfg.SearchURL = searchURL
	cfg.FetchMaxElapsed = 0
	cfg.Concurrency = 2
	cfg.MetricsTextfile = filepath.Join(t.TempDir(), "forgemirror.prom")
	return cfg
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunSyncEndToEnd(t *testing.T) {
	testlog.Start(t)
	srv := catalogServer(t, http.StatusOK)
	cfg := testConfig(t, srv.URL)
	runner := &scriptRunner{}

	summary, err := runSync(context.Background(), cfg, nil, runner)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	want := map[string]mirror.Outcome{
		"foo": mirror.OutcomeSynced,
		"bar": mirror.OutcomeSkippedCapabilityMissing,
		"baz": mirror.OutcomeSynced,
	}
	for id, outcome := range want {
		rep, ok := summary.Report(id)
		if !ok || rep.Outcome != outcome {
			t.Fatalf("%s: expected %q, got %+v", id, outcome, rep)
		}
	}
	if runner.count("gh repo create mirrors/foo") != 1 || runner.count("gh repo create mirrors/baz") != 0 {
		t.Fatalf("unexpected creates: %v", runner.commands)
	}
	if runner.count("gh api repos/mirrors/baz") != 1 || runner.count("gh api repos/mirrors/bar") != 0 {
		t.Fatalf("unexpected settings calls: %v", runner.commands)
	}

	rec, err := runlog.NewStore(cfg.RunlogRoot()).Latest()
	if err != nil {
		t.Fatalf("load run log: %v", err)
	}
	if rec.Counts["synced"] != 2 || rec.Counts["skipped_capability_missing"] != 1 {
		t.Fatalf("unexpected recorded counts: %v", rec.Counts)
	}
	if data, err := os.ReadFile(cfg.MetricsTextfile); err != nil || !strings.Contains(string(data), "forgemirror_sync_outcomes_total") {
		t.Fatalf("metrics textfile not written: %v", err)
	}
}

func TestSyncCatalogFailureExits(t *testing.T) {
	testlog.Start(t)
	srv := catalogServer(t, http.StatusBadGateway)
	dir := t.TempDir()
	path := filepath.Join(dir, "mirrorctl.toml")
	content := "search_url = \"" + srv.URL + "\"\nfetch_max_elapsed = \"0s\"\nworkdir = \"" + filepath.ToSlash(dir) + "\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := execute(t, "sync", "--config", path)
	if !errors.Is(err, catalog.ErrCatalogUnavailable) {
		t.Fatalf("expected ErrCatalogUnavailable, got %v", err)
	}
}

func TestConfigInitAndValidateWithFlagOverrides(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "mirrorctl.toml")

	out, err := execute(t, "config", "init", path)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "wrote "+path) {
		t.Fatalf("unexpected init output: %q", out)
	}
	if _, err := execute(t, "config", "init", path); err == nil {
		t.Fatalf("expected init to refuse overwriting")
	}

	out, err = execute(t, "config", "validate", path, "-w", "3", "--org", "elsewhere", "--workdir", dir)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	for _, want := range []string{"config ok", "workers      3", "org          elsewhere", "https://github.com/elsewhere/{project}"} {
		if !strings.Contains(out, want) {
			t.Fatalf("validate output missing %q:\n%s", want, out)
		}
	}

	if _, err := execute(t, "config", "validate", path, "-w", "-4"); !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected invalid concurrency to fail, got %v", err)
	}
}

func TestRunsListAndShow(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()

	out, err := execute(t, "runs", "--workdir", dir)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if !strings.Contains(out, "no runs recorded") {
		t.Fatalf("unexpected empty listing: %q", out)
	}

	cfg := config.Default()
	cfg.WorkDir = dir
	store := runlog.NewStore(cfg.RunlogRoot())
	name, err := store.Write(&mirror.Summary{
		CatalogSize: 1,
		Reports: []mirror.Report{
			{Project: "bar", Outcome: mirror.OutcomeSkippedNoOrigin, Warnings: []string{"clone failed"}},
		},
	})
	if err != nil {
		t.Fatalf("write run: %v", err)
	}

	out, err = execute(t, "runs", "--workdir", dir)
	if err != nil || !strings.Contains(out, name) {
		t.Fatalf("expected %s in listing, got %q (%v)", name, out, err)
	}

	out, err = execute(t, "runs", "show", "latest", "--workdir", dir)
	if err != nil {
		t.Fatalf("runs show: %v", err)
	}
	for _, want := range []string{"skipped_no_origin", "bar", "clone failed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("show output missing %q:\n%s", want, out)
		}
	}

	if _, err := execute(t, "runs", "show", "../escape", "--workdir", dir); !errors.Is(err, runlog.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestProjectFilter(t *testing.T) {
	testlog.Start(t)
	opts := &rootOptions{projects: []string{"foo", " bar,baz ", ""}}
	got := projectFilter(opts)
	if strings.Join(got, ",") != "foo,bar,baz" {
		t.Fatalf("unexpected filter: %v", got)
	}
}
