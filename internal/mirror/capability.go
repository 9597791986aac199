package mirror

import (
	"context"
	"sync"

	"github.com/danmuck/forgemirror/internal/vcs"
)

type capabilityState int

const (
	capabilityUnknown capabilityState = iota
	capabilityAvailable
	capabilityUnavailable
)

// LegacyImport is the run-scoped knowledge of whether the legacy importer is
// usable. It only ever moves towards unavailable.
//
// While the verdict is unknown, the first caller of TryUse becomes the probe
// and later callers wait for it to report back through Observe, so racing
// workflows do not all fail against a missing importer.
type LegacyImport struct {
	mu      sync.Mutex
	state   capabilityState
	probing bool
	settled chan struct{}
}

// NewLegacyImport returns a capability flag; enabled=false starts it cleared.
func NewLegacyImport(enabled bool) *LegacyImport {
	c := &LegacyImport{settled: make(chan struct{})}
	if !enabled {
		c.state = capabilityUnavailable
	}
	return c
}

// TryUse reports whether an import attempt is still worthwhile. A true return
// obliges the caller to call Observe with the attempt's signal. TryUse returns
// false if ctx ends while waiting on another caller's probe.
func (c *LegacyImport) TryUse(ctx context.Context) bool {
	for {
		c.mu.Lock()
		switch {
		case c.state == capabilityUnavailable:
			c.mu.Unlock()
			return false
		case c.state == capabilityAvailable:
			c.mu.Unlock()
			return true
		case !c.probing:
			c.probing = true
			c.mu.Unlock()
			return true
		}
		wait := c.settled
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return false
		case <-wait:
		}
	}
}

// Observe feeds back the signal of an import attempt started after TryUse.
func (c *LegacyImport) Observe(sig vcs.Signal) {
	switch sig {
	case vcs.ToolMissing:
		c.MarkUnavailable()
	case vcs.Success, vcs.NotFound:
		c.settle(capabilityAvailable)
	default:
		c.settle(capabilityUnknown)
	}
}

// MarkUnavailable clears the capability for the rest of the run. It reports
// whether this call was the one that cleared it.
func (c *LegacyImport) MarkUnavailable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cleared := c.state != capabilityUnavailable
	c.state = capabilityUnavailable
	c.endProbeLocked()
	return cleared
}

// Available reports whether the capability has not been cleared.
func (c *LegacyImport) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != capabilityUnavailable
}

func (c *LegacyImport) settle(state capabilityState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if state != capabilityUnknown && c.state == capabilityUnknown {
		c.state = state
	}
	c.endProbeLocked()
}

func (c *LegacyImport) endProbeLocked() {
	if !c.probing {
		return
	}
	c.probing = false
	close(c.settled)
	c.settled = make(chan struct{})
}
