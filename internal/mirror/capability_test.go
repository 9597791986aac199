package mirror

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/forgemirror/internal/testutil/testlog"
	"github.com/danmuck/forgemirror/internal/vcs"
)

func TestLegacyImportDisabled(t *testing.T) {
	testlog.Start(t)
	c := NewLegacyImport(false)
	if c.Available() {
		t.Fatalf("disabled capability should start unavailable")
	}
	if c.TryUse(context.Background()) {
		t.Fatalf("disabled capability must not be usable")
	}
}

func TestLegacyImportMonotonic(t *testing.T) {
	testlog.Start(t)
	c := NewLegacyImport(true)
	if !c.TryUse(context.Background()) {
		t.Fatalf("first caller should probe")
	}
	c.Observe(vcs.Success)
	if !c.Available() {
		t.Fatalf("expected available after success")
	}
	if !c.MarkUnavailable() {
		t.Fatalf("first clear should report true")
	}
	if c.MarkUnavailable() {
		t.Fatalf("second clear should report false")
	}
	c.Observe(vcs.Success)
	if c.Available() || c.TryUse(context.Background()) {
		t.Fatalf("capability must never be restored")
	}
}

func TestLegacyImportTransientReleasesProbe(t *testing.T) {
	testlog.Start(t)
	c := NewLegacyImport(true)
	if !c.TryUse(context.Background()) {
		t.Fatalf("first caller should probe")
	}

	done := make(chan bool, 1)
	go func() { done <- c.TryUse(context.Background()) }()

	select {
	case <-done:
		t.Fatalf("second caller should wait while the probe is outstanding")
	case <-time.After(20 * time.Millisecond):
	}

	c.Observe(vcs.TransientFailure)
	select {
	case ok := <-done:
		if !ok {
			t.Fatalf("waiter should take over the probe after a transient result")
		}
	case <-time.After(time.Second):
		t.Fatalf("waiter not released")
	}
	if !c.Available() {
		t.Fatalf("transient result must not clear the capability")
	}
}

func TestLegacyImportConcurrentSingleAttempt(t *testing.T) {
	testlog.Start(t)
	c := NewLegacyImport(true)
	var attempts atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !c.TryUse(context.Background()) {
				return
			}
			attempts.Add(1)
			time.Sleep(5 * time.Millisecond)
			c.Observe(vcs.ToolMissing)
		}()
	}
	wg.Wait()
	if n := attempts.Load(); n != 1 {
		t.Fatalf("expected one import attempt against a missing tool, got %d", n)
	}
	if c.Available() {
		t.Fatalf("expected capability cleared")
	}
}

func TestLegacyImportWaitHonorsContext(t *testing.T) {
	testlog.Start(t)
	c := NewLegacyImport(true)
	if !c.TryUse(context.Background()) {
		t.Fatalf("first caller should probe")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if c.TryUse(ctx) {
		t.Fatalf("waiter should give up when its context ends")
	}
}
