package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/chazu/meshforge/internal/config"
	"github.com/chazu/meshforge/pkg/engine"
	"github.com/chazu/meshforge/pkg/kernel"
	"github.com/chazu/meshforge/pkg/kernel/bsp"
	"github.com/chazu/meshforge/pkg/kernel/sdfx"
	"github.com/chazu/meshforge/pkg/meshgen"
	"github.com/chazu/meshforge/pkg/outcome"
	"github.com/chazu/meshforge/pkg/remesh"
	"github.com/chazu/meshforge/pkg/scheduler"
	"github.com/chazu/meshforge/pkg/skeleton"
	"github.com/chazu/meshforge/pkg/snapshot"
)

// ErrEmptyOutcome is reported when a pass produced no geometry.
var ErrEmptyOutcome = errors.New("generation produced no geometry")

// App ties the scene engine to the generation scheduler. Every accepted
// evaluation replaces the current snapshot and schedules a pass; current
// results are written to the output path as OBJ.
type App struct {
	engine *engine.Engine
	sched  *scheduler.Scheduler
	log    *zap.Logger
	output string

	mu      sync.Mutex
	snap    *snapshot.Snapshot
	lastErr error
	written uint64
}

// NewApp creates an App writing to output.
func NewApp(cfg *config.Config, log *zap.Logger, output string) *App {
	a := &App{
		engine: engine.NewEngine(engine.WithTimeout(cfg.Engine.Timeout), engine.WithLogger(log.Named("engine"))),
		log:    log,
		output: output,
		snap:   snapshot.New(),
	}
	a.sched = scheduler.New(a.current, a.deliver,
		scheduler.WithLogger(log.Named("scheduler")),
		scheduler.WithGeneratorOptions(generatorOptions(cfg)...),
	)
	return a
}

// generatorOptions maps the configuration onto generator options.
func generatorOptions(cfg *config.Config) []meshgen.Option {
	voxel := sdfx.NewCombiner(cfg.Generator.KernelCells)
	var combiner kernel.Combiner = kernel.Chain{bsp.New(), voxel}
	if cfg.Generator.Kernel == config.KernelSDF {
		combiner = voxel
	}
	remeshCfg := remesh.Config{MinCells: cfg.Remesh.MinCells, MaxCells: cfg.Remesh.MaxCells}
	return []meshgen.Option{
		meshgen.WithCombiner(combiner),
		meshgen.WithBuilder(skeleton.NewSDFBuilder(cfg.Builder.Cells)),
		meshgen.WithRemesher(func() meshgen.Remesher { return remesh.New(remeshCfg) }),
		meshgen.WithWorkers(cfg.Generator.Workers),
		meshgen.WithSmoothShadingThreshold(cfg.Generator.SmoothShadingThreshold),
		meshgen.WithSmoothIterations(cfg.Generator.SmoothIterations),
		meshgen.WithSelfIntersectionCheck(cfg.Generator.SelfIntersectionCheck),
		meshgen.WithClothMaxIterations(cfg.Cloth.MaxIterations),
		meshgen.WithClothStep(cfg.Cloth.Step),
	}
}

// EvalErrors is returned when a script fails to evaluate.
type EvalErrors []engine.EvalError

func (e EvalErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	return fmt.Sprintf("%s (and %d more)", e[0].Error(), len(e)-1)
}

// Evaluate runs source through the engine. On success the resulting
// snapshot becomes current and a pass is scheduled; on failure the
// previous snapshot is kept.
func (a *App) Evaluate(source string) error {
	snap, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		return err
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			a.log.Warn("script error", zap.Int("line", e.Line), zap.Int("col", e.Col), zap.String("message", e.Message))
		}
		return EvalErrors(evalErrs)
	}

	a.mu.Lock()
	a.snap = snap
	a.mu.Unlock()
	a.sched.Invalidate()
	return nil
}

// EvaluateFile reads and evaluates a script file.
func (a *App) EvaluateFile(path string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading script: %w", err)
	}
	return a.Evaluate(string(source))
}

func (a *App) current() *snapshot.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snap
}

func (a *App) deliver(res *meshgen.Result) {
	for _, w := range res.Warnings {
		a.log.Warn("generation warning", zap.Stringer("kind", w.Kind), zap.Stringer("id", w.ID), zap.String("message", w.Message))
	}
	for _, f := range res.Failures {
		a.log.Error("generation failure", zap.Stringer("kind", f.Kind), zap.Stringer("id", f.ID), zap.Error(f.Err))
	}

	err := ErrEmptyOutcome
	if res.Succeeded {
		err = writeOBJFile(a.output, res.Outcome)
	}

	a.mu.Lock()
	a.lastErr = err
	if err == nil {
		a.written = res.ID
	}
	a.mu.Unlock()

	if err != nil {
		a.log.Error("pass not written", zap.Uint64("pass", res.ID), zap.Error(err))
		return
	}
	a.log.Info("mesh written",
		zap.Uint64("pass", res.ID),
		zap.String("path", a.output),
		zap.Int("vertices", len(res.Outcome.Vertices)),
		zap.Int("faces", len(res.Outcome.Faces)),
		zap.Int("parts_built", res.Stats.PartsBuilt),
		zap.Int("components_combined", res.Stats.ComponentsCombined),
		zap.Duration("duration", res.Stats.Duration),
	)
}

// Wait blocks until the scheduler is idle and returns the error of the
// last delivered pass.
func (a *App) Wait(ctx context.Context) error {
	if err := a.sched.Wait(ctx); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

// Written returns the id of the last pass written to disk, or zero.
func (a *App) Written() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.written
}

// Close stops the scheduler.
func (a *App) Close() {
	a.sched.Close()
}

// writeOBJFile writes o next to path and renames it into place so
// viewers never observe a partial file.
func writeOBJFile(path string, o *outcome.Outcome) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".meshgen-*.obj")
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := outcome.WriteOBJ(tmp, o); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing output: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
