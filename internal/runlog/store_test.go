package runlog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/forgemirror/internal/mirror"
	"github.com/danmuck/forgemirror/internal/testutil/testlog"
	"github.com/danmuck/forgemirror/internal/vcs"
)

func sampleSummary(finished time.Time) *mirror.Summary {
	return &mirror.Summary{
		Started:               finished.Add(-time.Minute),
		Finished:              finished,
		CatalogSize:           2,
		RegistrySize:          1,
		LegacyImportAvailable: false,
		Reports: []mirror.Report{
			{Project: "foo", Outcome: mirror.OutcomeSynced, Created: true, Duration: 2 * time.Second},
			{
				Project:  "bar",
				Outcome:  mirror.OutcomeSkippedCapabilityMissing,
				Warnings: []string{"legacy importer not installed"},
				Steps: []mirror.Step{
					{Op: "clone", ExitCode: 128, Signal: vcs.NotFound},
					{Op: "legacy_import", ExitCode: 1, Signal: vcs.ToolMissing},
				},
			},
		},
	}
}

func TestStoreWriteListLoad(t *testing.T) {
	testlog.Start(t)
	store := NewStore(filepath.Join(t.TempDir(), "runs"))
	finished := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	name, err := store.Write(sampleSummary(finished))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if name != "20240501T120000.000000000Z.toml" {
		t.Fatalf("unexpected run name: %s", name)
	}

	names, err := store.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 1 || names[0] != name {
		t.Fatalf("unexpected list: %v", names)
	}

	rec, err := store.Load(name[:len(name)-len(".toml")])
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !rec.Finished.Equal(finished) {
		t.Fatalf("unexpected finished time: %v", rec.Finished)
	}
	if rec.Counts["synced"] != 1 || rec.Counts["skipped_capability_missing"] != 1 || rec.Counts["cancelled"] != 0 {
		t.Fatalf("unexpected counts: %v", rec.Counts)
	}
	if len(rec.Projects) != 2 || rec.Projects[1].ID != "bar" {
		t.Fatalf("unexpected projects: %+v", rec.Projects)
	}
	bar := rec.Projects[1]
	if len(bar.Failed) != 2 || bar.Failed[1].ExitCode != 1 || bar.Failed[1].Signal != "tool_missing" {
		t.Fatalf("unexpected failed steps: %+v", bar.Failed)
	}
	if !rec.Projects[0].Created || rec.Projects[0].Seconds != 2 {
		t.Fatalf("unexpected foo record: %+v", rec.Projects[0])
	}
}

func TestStoreLatest(t *testing.T) {
	testlog.Start(t)
	store := NewStore(t.TempDir())
	if _, err := store.Latest(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty store, got %v", err)
	}
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := range 3 {
		if _, err := store.Write(sampleSummary(base.Add(time.Duration(i) * time.Hour))); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	rec, err := store.Latest()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if !rec.Finished.Equal(base.Add(2 * time.Hour)) {
		t.Fatalf("expected newest run, got %v", rec.Finished)
	}
}

func TestStoreRejectsEscapes(t *testing.T) {
	testlog.Start(t)
	root := t.TempDir()
	store := NewStore(filepath.Join(root, "runs"))
	if err := os.WriteFile(filepath.Join(root, "secret.toml"), []byte("x = 1\n"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	for _, name := range []string{"", "../secret", "/etc/passwd", "a/b"} {
		if _, err := store.Load(name); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("%q: expected ErrInvalidName, got %v", name, err)
		}
	}
	if _, err := store.Load("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreListMissingRoot(t *testing.T) {
	testlog.Start(t)
	store := NewStore(filepath.Join(t.TempDir(), "nope"))
	names, err := store.List()
	if err != nil || len(names) != 0 {
		t.Fatalf("expected empty list, got %v %v", names, err)
	}
}
