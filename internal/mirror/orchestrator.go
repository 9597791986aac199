package mirror

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/danmuck/forgemirror/internal/catalog"
	"github.com/danmuck/forgemirror/internal/observability"
	"github.com/danmuck/forgemirror/internal/platform"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidConcurrency = errors.New("mirror: invalid concurrency")
	ErrDuplicateProject   = errors.New("mirror: duplicate project scheduled")
	ErrPushFailed         = errors.New("mirror: push failed")
)

const (
	// ConcurrencySequential runs projects one after another in catalog order.
	ConcurrencySequential = 0
	// ConcurrencyDefault asks for the platform default pool size.
	ConcurrencyDefault = -1

	maxDefaultWorkers = 32
)

// CatalogSource yields the origin catalog for one run.
type CatalogSource interface {
	Fetch(ctx context.Context) (*catalog.Catalog, error)
}

// RegistrySource yields the mirror registry snapshot for one run.
type RegistrySource interface {
	ListRepos(ctx context.Context) (*platform.Registry, error)
}

// Orchestrator reconciles the origin catalog against the mirror registry and
// runs one Workflow per project.
type Orchestrator struct {
	Catalog  CatalogSource
	Registry RegistrySource
	Workflow *Workflow
	// Only restricts the run to these project ids when non-empty.
	Only []string
	// FetchMaxElapsed bounds retries of the catalog and registry fetches.
	// Zero means a single attempt.
	FetchMaxElapsed time.Duration
	// OnReport, when set, is called from the worker that produced the report.
	OnReport func(Report)
}

// ResolveWorkers maps a concurrency setting to a pool size. Zero means
// sequential execution.
func ResolveWorkers(concurrency int) (int, error) {
	switch {
	case concurrency == ConcurrencyDefault:
		return min(maxDefaultWorkers, runtime.NumCPU()+4), nil
	case concurrency < 0:
		return 0, fmt.Errorf("%w: %d (use 0, -1, or a positive pool size)", ErrInvalidConcurrency, concurrency)
	default:
		return concurrency, nil
	}
}

// Run performs one full synchronization pass. It returns an error only when
// the catalog or registry cannot be fetched, or the arguments are invalid;
// per-project failures are reported in the Summary.
func (o *Orchestrator) Run(ctx context.Context, concurrency int) (*Summary, error) {
	workers, err := ResolveWorkers(concurrency)
	if err != nil {
		return nil, err
	}
	summary := &Summary{Started: time.Now()}

	var cat *catalog.Catalog
	err = o.fetch(ctx, "catalog", catalog.ErrCatalogUnavailable, func(ctx context.Context) error {
		c, err := o.Catalog.Fetch(ctx)
		cat = c
		return err
	})
	if err != nil {
		return nil, err
	}

	var reg *platform.Registry
	err = o.fetch(ctx, "registry", platform.ErrRegistryUnavailable, func(ctx context.Context) error {
		r, err := o.Registry.ListRepos(ctx)
		reg = r
		return err
	})
	if err != nil {
		return nil, err
	}

	cat = cat.Filter(o.Only)
	projects := cat.Projects()
	if err := assertDistinct(projects); err != nil {
		return nil, err
	}

	summary.CatalogSize = len(projects)
	summary.RegistrySize = reg.Len()
	summary.RegistryTruncated = reg.Truncated
	summary.Reports = make([]Report, len(projects))

	log.Info().Int("projects", len(projects)).Int("existing", reg.Len()).Int("workers", workers).Msg("starting sync")

	if workers == 0 {
		for i, p := range projects {
			summary.Reports[i] = o.runOne(ctx, p, reg.Has(p.ID))
		}
	} else {
		var g errgroup.Group
		g.SetLimit(workers)
		for i, p := range projects {
			if ctx.Err() != nil {
				summary.Reports[i] = o.cancelled(p, reg.Has(p.ID))
				continue
			}
			g.Go(func() error {
				summary.Reports[i] = o.runOne(ctx, p, reg.Has(p.ID))
				return nil
			})
		}
		_ = g.Wait()
	}

	summary.Finished = time.Now()
	if o.Workflow.Capability != nil {
		summary.LegacyImportAvailable = o.Workflow.Capability.Available()
	}
	if ctx.Err() == nil {
		observability.RecordRun(summary.CatalogSize, summary.Finished)
	}
	return summary, nil
}

func (o *Orchestrator) runOne(ctx context.Context, p catalog.Project, mirrorExists bool) Report {
	if ctx.Err() != nil {
		return o.cancelled(p, mirrorExists)
	}
	rep := o.Workflow.Sync(ctx, p, mirrorExists)
	if o.OnReport != nil {
		o.OnReport(rep)
	}
	return rep
}

func (o *Orchestrator) cancelled(p catalog.Project, mirrorExists bool) Report {
	rep := Report{Project: p.ID, Outcome: OutcomeCancelled, MirrorExisted: mirrorExists}
	rep.warn("not started: run cancelled")
	observability.RecordOutcome(string(rep.Outcome), 0)
	if o.OnReport != nil {
		o.OnReport(rep)
	}
	return rep
}

// fetch retries op with exponential backoff. Structural catalog errors and
// cancellation stop immediately; the final error always wraps sentinel.
func (o *Orchestrator) fetch(ctx context.Context, what string, sentinel error, op func(context.Context) error) error {
	var bo backoff.BackOff = &backoff.StopBackOff{}
	if o.FetchMaxElapsed > 0 {
		exp := backoff.NewExponentialBackOff()
		exp.MaxElapsedTime = o.FetchMaxElapsed
		bo = exp
	}

	err := backoff.RetryNotify(func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, catalog.ErrCatalogStructure) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(bo, ctx), func(err error, wait time.Duration) {
		log.Warn().Err(err).Str("fetch", what).Dur("retry_in", wait).Msg("fetch failed, retrying")
	})
	if err == nil {
		return nil
	}
	log.Error().Err(err).Str("fetch", what).Msg("fetch failed")
	if !errors.Is(err, sentinel) {
		err = fmt.Errorf("%w: %w", sentinel, err)
	}
	return err
}

// assertDistinct guards the invariant that no project id is scheduled twice,
// which would let two workflows share one working tree.
func assertDistinct(projects []catalog.Project) error {
	seen := make(map[string]struct{}, len(projects))
	for _, p := range projects {
		if _, ok := seen[p.ID]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateProject, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}
