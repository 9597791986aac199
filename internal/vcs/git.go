package vcs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/danmuck/forgemirror/internal/tools"
	"github.com/rs/zerolog/log"
)

const DefaultGitBinary = "git"

// ErrUnsafeArgument rejects a directory or project name git could read as an
// option or that would leave the working dir.
var ErrUnsafeArgument = errors.New("vcs: unsafe argument")

// Op names one gateway operation.
type Op string

const (
	OpClone        Op = "clone"
	OpPull         Op = "pull"
	OpPush         Op = "push"
	OpPushTags     Op = "push_tags"
	OpLegacyImport Op = "legacy_import"
)

// Result is the raw outcome of one git invocation.
type Result struct {
	Op       Op
	ExitCode int32
	Output   string
	Err      error
}

// OK reports a zero exit code with no runner error.
func (r Result) OK() bool {
	return r.ExitCode == 0 && r.Err == nil
}

// Gateway is the version-control contract the mirror workflow depends on.
type Gateway interface {
	Clone(ctx context.Context, sourceURL, destDir string) Result
	Pull(ctx context.Context, workTree string) Result
	Push(ctx context.Context, workTree, destURL string, allBranches bool) Result
	PushTags(ctx context.Context, workTree, destURL string) Result
	LegacyImport(ctx context.Context, workDir, legacyRef, projectID string) Result
}

// Git runs the git binary through a CommandRunner.
type Git struct {
	binary string
	runner tools.CommandRunner
}

// NewGit returns a gateway for binary; empty values fall back to defaults.
func NewGit(binary string, runner tools.CommandRunner) *Git {
	b := strings.TrimSpace(binary)
	if b == "" {
		b = DefaultGitBinary
	}
	if runner == nil {
		runner = tools.ExecRunner{}
	}
	return &Git{binary: b, runner: runner}
}

// Clone clones sourceURL into destDir, running from destDir's parent.
func (g *Git) Clone(ctx context.Context, sourceURL, destDir string) Result {
	parent, name := filepath.Split(filepath.Clean(destDir))
	if err := checkName(name); err != nil {
		return Result{Op: OpClone, ExitCode: -1, Err: err}
	}
	return g.run(ctx, OpClone, "-C", filepath.Clean(parent), "clone", "--", sourceURL, name)
}

func (g *Git) Pull(ctx context.Context, workTree string) Result {
	return g.run(ctx, OpPull, "-C", workTree, "pull")
}

// Push sends every local branch when allBranches is set, otherwise only the
// checked-out branch.
func (g *Git) Push(ctx context.Context, workTree, destURL string, allBranches bool) Result {
	if allBranches {
		return g.run(ctx, OpPush, "-C", workTree, "push", destURL, "--all")
	}
	return g.run(ctx, OpPush, "-C", workTree, "push", destURL, "HEAD")
}

func (g *Git) PushTags(ctx context.Context, workTree, destURL string) Result {
	return g.run(ctx, OpPushTags, "-C", workTree, "push", destURL, "--tags")
}

// LegacyImport converts a CVS module into a git tree named projectID under workDir.
func (g *Git) LegacyImport(ctx context.Context, workDir, legacyRef, projectID string) Result {
	if err := checkName(projectID); err != nil {
		return Result{Op: OpLegacyImport, ExitCode: -1, Err: err}
	}
	return g.run(ctx, OpLegacyImport, "-C", workDir, "cvsimport", "-d", legacyRef, projectID, "-C", projectID)
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, "-") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrUnsafeArgument, name)
	}
	return nil
}

func (g *Git) run(ctx context.Context, op Op, args ...string) Result {
	out, code, err := g.runner.Run(ctx, "", g.binary, args...)
	res := Result{Op: op, ExitCode: code, Output: string(out), Err: err}
	ev := log.Debug()
	if !res.OK() {
		ev = log.Warn()
	}
	ev.Str("op", string(op)).Strs("args", args).Int32("exit", code).Err(err).Msg("git")
	if len(out) > 0 {
		log.Debug().Str("op", string(op)).Msg(strings.TrimSpace(string(out)))
	}
	return res
}
