package mirror

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/danmuck/forgemirror/internal/catalog"
	"github.com/danmuck/forgemirror/internal/observability"
	"github.com/danmuck/forgemirror/internal/platform"
	"github.com/danmuck/forgemirror/internal/vcs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Workflow runs one synchronization pass for one project.
type Workflow struct {
	Layout     Layout
	Git        vcs.Gateway
	Platform   platform.Gateway
	Capability *LegacyImport
	Settings   platform.Settings
	// AllBranches pushes every local branch instead of only HEAD.
	AllBranches bool
	PushTags    bool
}

// Sync drives project through the workflow. mirrorExists is the registry
// membership computed before the run started. Sync never panics or returns
// an error; every failure ends up in the Report.
func (w *Workflow) Sync(ctx context.Context, project catalog.Project, mirrorExists bool) (rep Report) {
	start := time.Now()
	rep = Report{Project: project.ID, MirrorExisted: mirrorExists}
	logger := log.With().Str("project", project.ID).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("workflow panicked")
			rep.warn(fmt.Sprintf("workflow panic: %v", r))
			if rep.Outcome == "" {
				rep.Outcome = OutcomeSkippedNoOrigin
				if present, _ := dirExists(w.Layout.WorkTree(project.ID)); present {
					rep.Outcome = OutcomeSynced
				}
			}
		}
		rep.Duration = time.Since(start)
		observability.RecordOutcome(string(rep.Outcome), rep.Duration)
		logger.Info().Str("outcome", string(rep.Outcome)).Int("warnings", len(rep.Warnings)).
			Dur("took", rep.Duration).Msg("done")
	}()

	if !catalog.ValidID(project.ID) {
		logger.Warn().Msg("invalid project id, skipping")
		rep.warn(fmt.Sprintf("invalid project id %q", project.ID))
		rep.Outcome = OutcomeSkippedNoOrigin
		return rep
	}

	logger.Info().Msg("mirroring project")
	tree := w.Layout.WorkTree(project.ID)

	present, err := dirExists(tree)
	if err != nil {
		rep.warn(fmt.Sprintf("inspect local copy: %v", err))
		rep.Outcome = OutcomeSkippedNoOrigin
		return rep
	}

	switch {
	case !present:
		logger.Info().Msg("local copy does not exist, cloning")
		if outcome, ok := w.fetchOrigin(ctx, logger, &rep, project.ID); !ok {
			rep.Outcome = outcome
			return rep
		}
	case mirrorExists:
		logger.Info().Msg("local copy exists, pulling")
		res := w.Git.Pull(ctx, tree)
		if sig := w.recordGit(&rep, res); sig != vcs.Success {
			rep.warn(fmt.Sprintf("pull failed (exit %d); pushing existing history", res.ExitCode))
		}
	default:
		logger.Info().Msg("local copy exists")
	}

	if ctx.Err() != nil {
		rep.warn("run cancelled before mirror update")
		rep.Outcome = OutcomeCancelled
		return rep
	}

	if !mirrorExists {
		logger.Info().Msg("mirror repo does not exist, creating")
		res, err := w.Platform.Create(ctx, project.ID, w.Layout.ProjectPage(project.ID), w.Layout.MirrorDescription(project.Description))
		w.recordPlatform(&rep, res, err)
		if err != nil {
			logger.Warn().Err(err).Msg("mirror creation failed")
			rep.warn(fmt.Sprintf("create mirror: %v", err))
		} else {
			rep.Created = true
		}
	} else {
		logger.Debug().Msg("mirror repo already exists")
	}

	res, err := w.Platform.UpdateSettings(ctx, project.ID, w.Settings)
	w.recordPlatform(&rep, res, err)
	if err != nil {
		logger.Warn().Err(err).Msg("settings update failed")
		rep.warn(fmt.Sprintf("update settings: %v", err))
	}

	if ctx.Err() != nil {
		rep.warn("run cancelled before push")
		rep.Outcome = OutcomeCancelled
		return rep
	}

	remote := w.Layout.MirrorRemote(project.ID)
	push := w.Git.Push(ctx, tree, remote, w.AllBranches)
	if sig := w.recordGit(&rep, push); sig != vcs.Success {
		logger.Warn().Int32("exit", push.ExitCode).Msg("push failed; next run will retry")
		rep.warn(fmt.Sprintf("%v: exit %d", ErrPushFailed, push.ExitCode))
	} else if w.PushTags {
		tags := w.Git.PushTags(ctx, tree, remote)
		if sig := w.recordGit(&rep, tags); sig != vcs.Success {
			rep.warn(fmt.Sprintf("push tags failed: exit %d", tags.ExitCode))
		}
	}

	rep.Outcome = OutcomeSynced
	return rep
}

// fetchOrigin creates the local copy by cloning, falling back to the legacy
// importer when the origin has no git repository. ok=false aborts the workflow.
func (w *Workflow) fetchOrigin(ctx context.Context, logger zerolog.Logger, rep *Report, project string) (Outcome, bool) {
	tree := w.Layout.WorkTree(project)
	clone := w.Git.Clone(ctx, w.Layout.OriginRemote(project), tree)
	switch sig := w.recordGit(rep, clone); sig {
	case vcs.Success:
		return "", true
	case vcs.NotFound:
	default:
		if ctx.Err() != nil {
			rep.warn("run cancelled during clone")
			return OutcomeCancelled, false
		}
		rep.warn(fmt.Sprintf("clone failed (%s, exit %d)", sig, clone.ExitCode))
		return OutcomeSkippedNoOrigin, false
	}

	if w.Capability == nil || !w.Capability.TryUse(ctx) {
		if ctx.Err() != nil {
			rep.warn("run cancelled waiting for legacy import capability")
			return OutcomeCancelled, false
		}
		logger.Info().Msg("legacy importer unavailable, skipping")
		rep.warn("origin has no git repository and legacy import is unavailable")
		return OutcomeSkippedCapabilityMissing, false
	}

	// A true TryUse must be matched by Observe, including when the import panics.
	observed := false
	defer func() {
		if !observed {
			w.Capability.Observe(vcs.TransientFailure)
		}
	}()

	logger.Info().Msg("not hosted on git, importing from legacy origin")
	imp := w.Git.LegacyImport(ctx, w.Layout.WorkDir, w.Layout.LegacySource(project), project)
	sig := w.recordGit(rep, imp)
	w.Capability.Observe(sig)
	observed = true

	switch sig {
	case vcs.Success:
		return "", true
	case vcs.ToolMissing:
		observability.RecordLegacyImportAvailable(false)
		logger.Warn().Msg("legacy importer not installed; skipping legacy projects for the rest of the run")
		rep.warn("legacy importer not installed")
		return OutcomeSkippedCapabilityMissing, false
	default:
		if ctx.Err() != nil {
			rep.warn("run cancelled during legacy import")
			return OutcomeCancelled, false
		}
		rep.warn(fmt.Sprintf("legacy import failed (%s, exit %d)", sig, imp.ExitCode))
		return OutcomeSkippedNoOrigin, false
	}
}

func (w *Workflow) recordGit(rep *Report, res vcs.Result) vcs.Signal {
	sig := vcs.Classify(res)
	rep.record(string(res.Op), res.ExitCode, sig, res.Output)
	if sig != vcs.Success {
		observability.RecordStepFailure(string(res.Op), string(sig))
	}
	return sig
}

func (w *Workflow) recordPlatform(rep *Report, res platform.Result, err error) {
	sig := vcs.Success
	if err != nil {
		sig = vcs.TransientFailure
		observability.RecordStepFailure(string(res.Op), string(sig))
	}
	rep.record(string(res.Op), res.ExitCode, sig, res.Output)
}

func dirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !info.IsDir() {
		return false, fmt.Errorf("%s exists and is not a directory", path)
	}
	return true, nil
}
