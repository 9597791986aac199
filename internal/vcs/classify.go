package vcs

import (
	"context"
	"errors"
	"strings"

	"github.com/danmuck/forgemirror/internal/tools"
)

// Signal is the semantic class of a raw git result.
type Signal string

const (
	Success          Signal = "success"
	NotFound         Signal = "not_found"
	TransientFailure Signal = "transient_failure"
	ToolMissing      Signal = "tool_missing"
)

// exitFatal is git's generic fatal-error code. In the reference environment a
// clone of a repository that does not exist on the origin exits with it, but
// so do several network failures, hence the marker check below.
const exitFatal int32 = 128

// exitImporterAbsent is what `git cvsimport` returns when git-cvs is not
// installed: git itself reports an unknown subcommand and exits 1.
const exitImporterAbsent int32 = 1

var transientMarkers = []string{
	"could not resolve host",
	"failed to connect",
	"connection timed out",
	"connection refused",
	"connection reset",
	"early eof",
	"the requested url returned error: 5",
	"operation timed out",
}

var importerMissingMarkers = []string{
	"is not a git command",
	"can't locate cvs",
	"cvs: command not found",
}

// Classify maps r to a Signal using the table for its Op.
//
//	any     exit 0                          -> Success
//	any     cancelled context               -> TransientFailure
//	any     refused argument                -> TransientFailure
//	any     binary missing (127)            -> ToolMissing
//	clone   128 + network marker in output  -> TransientFailure
//	clone   128                             -> NotFound
//	import  unknown-subcommand marker       -> ToolMissing
//	import  exit 1                          -> ToolMissing
//	import  other nonzero                   -> NotFound
//	other   nonzero                         -> TransientFailure
//
// Derived from git 2.x over HTTPS and the Debian git-cvs package; verify
// against the versions actually deployed before trusting new codes.
func Classify(r Result) Signal {
	if r.OK() {
		return Success
	}
	if errors.Is(r.Err, context.Canceled) || errors.Is(r.Err, context.DeadlineExceeded) {
		return TransientFailure
	}
	if errors.Is(r.Err, ErrUnsafeArgument) {
		return TransientFailure
	}
	if r.ExitCode == tools.ExitCommandNotFound {
		return ToolMissing
	}
	switch r.Op {
	case OpClone:
		return classifyClone(r)
	case OpLegacyImport:
		return classifyImport(r)
	default:
		return TransientFailure
	}
}

func classifyClone(r Result) Signal {
	if r.ExitCode != exitFatal {
		return TransientFailure
	}
	if containsAny(r.Output, transientMarkers) {
		return TransientFailure
	}
	return NotFound
}

func classifyImport(r Result) Signal {
	if containsAny(r.Output, importerMissingMarkers) {
		return ToolMissing
	}
	if r.ExitCode == exitImporterAbsent {
		return ToolMissing
	}
	return NotFound
}

func containsAny(output string, markers []string) bool {
	lower := strings.ToLower(output)
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
