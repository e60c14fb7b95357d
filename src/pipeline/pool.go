package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trustedanalytics/platform-parent/src/build"
	"github.com/trustedanalytics/platform-parent/src/config"
	"github.com/trustedanalytics/platform-parent/src/ctxlog"
	"github.com/trustedanalytics/platform-parent/src/refs"
)

// Pool runs projects through fetch, build and package on a fixed number
// of workers. A failing project never stops the others.
type Pool struct {
	Workers  int // <= 0 means runtime.NumCPU()
	Registry *build.Registry
	Env      *build.Env
	Layout   build.Layout
	Refs     *refs.Aggregator

	locks nameLocks
}

func (p *Pool) workers(n int) int {
	w := p.Workers
	if w <= 0 {
		w = runtime.NumCPU()
	}
	if w > n {
		w = n
	}
	if w < 1 {
		w = 1
	}
	return w
}

// Run processes every project exactly once and returns results in input
// order. It returns after all workers have joined.
func (p *Pool) Run(ctx context.Context, projects []config.Project) []Result {
	results := make([]Result, len(projects))
	q := NewQueue(projects)
	logger := ctxlog.FromContext(ctx)

	workers := p.workers(len(projects))
	logger.Info("starting workers", "workers", workers, "projects", len(projects))

	var g errgroup.Group
	for id := 1; id <= workers; id++ {
		g.Go(func() error {
			return q.drain(ctx,
				func(it Item) { results[it.Index] = p.process(ctx, id, it.Project) },
				func(it Item) {
					results[it.Index] = Result{Project: it.Project, Status: StatusSkipped, Worker: id, Err: ctx.Err()}
				},
			)
		})
	}
	if err := g.Wait(); err != nil {
		logger.Warn("run interrupted, queued projects skipped", "error", err)
	}
	return results
}

// process runs one project. Errors and panics become a failed Result.
func (p *Pool) process(ctx context.Context, worker int, proj config.Project) (res Result) {
	logger := ctxlog.FromContext(ctx).With("worker", worker, "project", proj.Name, "builder", proj.Builder)
	ctx = ctxlog.WithLogger(ctx, logger)

	unlock := p.locks.lock(proj.Name)
	defer unlock()

	start := time.Now()
	res = Result{Project: proj, Worker: worker}
	stage := build.StageSetup

	defer func() {
		if r := recover(); r != nil {
			res.Err = build.Wrap(proj.Name, stage, fmt.Errorf("panic: %v", r))
		}
		res.Duration = time.Since(start)
		if res.Err != nil {
			res.Status = StatusFailed
			logger.Error("project failed", "stage", string(stage), "err", res.Err, "duration", res.Duration.Round(time.Millisecond))
			return
		}
		res.Status = StatusSuccess
		logger.Info("project finished", "archives", len(res.Archives), "ref", res.Ref, "duration", res.Duration.Round(time.Millisecond))
	}()

	b, err := p.Registry.New(proj, p.Env)
	if err != nil {
		res.Err = build.Wrap(proj.Name, stage, err)
		return res
	}

	stage = build.StageAcquire
	logger.Info("fetching", "ref", proj.Snapshot)
	fetched, err := b.Fetch(ctx)
	if err != nil {
		res.Err = build.Wrap(proj.Name, stage, err)
		return res
	}

	stage = build.StageBuild
	logger.Info("building")
	if err := b.Build(ctx); err != nil {
		res.Err = build.Wrap(proj.Name, stage, err)
		return res
	}

	stage = build.StagePackage
	archives, err := b.Package(ctx, p.Layout.Dir(b.Category()))
	if err != nil {
		res.Err = build.Wrap(proj.Name, stage, err)
		return res
	}

	res.Archives = archives
	res.Ref = fetched.Ref
	if p.Refs != nil {
		p.Refs.Record(proj.Name, fetched.Ref)
	}
	return res
}

// nameLocks serializes projects that share a name, and therefore a
// workspace and archive path.
type nameLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func (l *nameLocks) lock(name string) func() {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[string]*sync.Mutex)
	}
	m, ok := l.m[name]
	if !ok {
		m = &sync.Mutex{}
		l.m[name] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
