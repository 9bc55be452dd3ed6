// Package pipeline runs the caudal data pipeline: it resolves the project
// layout, loads the configuration, loads the caudal dataset and records how
// long the run took.
//
// Every dependency can be injected through Deps so tests run against a
// temporary layout, a fake warehouse and a fake clock. Downstream stages
// that consume the loaded dataset are not part of the pipeline yet.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/ajitpratap0/caudal/internal/loader"
	"github.com/ajitpratap0/caudal/pkg/config"
	"github.com/ajitpratap0/caudal/pkg/logger"
	"github.com/ajitpratap0/caudal/pkg/metrics"
	"github.com/ajitpratap0/caudal/pkg/observability"
	"github.com/ajitpratap0/caudal/pkg/paths"
	"github.com/ajitpratap0/caudal/pkg/persistence"
	"github.com/ajitpratap0/caudal/pkg/warehouse"
)

var newWarehouse = warehouse.New

// Deps are the optional collaborators of a run. Nil fields are built from
// the configuration and the discovered layout.
type Deps struct {
	// Configs skips loading configs/default_config.yaml
	Configs *config.Configs
	// Loader is used as given; it is not loaded by Run
	Loader *loader.Loader
	Layout *paths.Layout
	// Warehouse overrides the warehouse built from Configs.Warehouse
	Warehouse warehouse.Warehouse
	Clock     clockwork.Clock
	Logger    *logger.Logger
	Metrics   *metrics.Run
}

// Result describes a finished run.
type Result struct {
	RunID    string
	Duration time.Duration
	Configs  *config.Configs
	Loader   *loader.Loader
	Metrics  *metrics.Run
}

type runner struct {
	deps  Deps
	log   *logger.Logger
	clock clockwork.Clock
	// warehouse built by the run itself, closed once loading is done
	built warehouse.Warehouse
}

// Run executes the pipeline once.
func Run(ctx context.Context, deps Deps) (*Result, error) {
	r := &runner{deps: deps, clock: deps.Clock, log: deps.Logger}
	if r.clock == nil {
		r.clock = clockwork.NewRealClock()
	}
	if r.log == nil {
		r.log = logger.Get()
	}
	r.log = r.log.Named("pipeline")
	if r.deps.Metrics == nil {
		r.deps.Metrics = metrics.NewRun()
	}

	start := r.clock.Now()
	res := &Result{RunID: uuid.NewString(), Metrics: r.deps.Metrics}
	r.log.Debug("Starting run", res.RunID)

	err := observability.Trace(ctx, "pipeline.run", func(ctx context.Context, span *observability.Span) error {
		span.SetAttribute("run.id", res.RunID)
		return r.run(ctx, res)
	})
	if err != nil {
		return nil, err
	}

	res.Duration = r.clock.Since(start)
	r.finish(res)
	return res, nil
}

func (r *runner) run(ctx context.Context, res *Result) error {
	cfg := r.deps.Configs
	if cfg == nil {
		layout, err := r.layout()
		if err != nil {
			return err
		}
		cfg, err = config.Load(layout.Config, config.DefaultFileName, nil)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	res.Configs = cfg

	ld := r.deps.Loader
	if ld == nil {
		var err error
		ld, err = r.newLoader(cfg)
		if err != nil {
			return err
		}
		defer r.closeWarehouse()
		if err := r.load(ctx, ld); err != nil {
			return err
		}
	}
	res.Loader = ld

	// downstream stages plug in here
	return nil
}

func (r *runner) newLoader(cfg *config.Configs) (*loader.Loader, error) {
	layout, err := r.layout()
	if err != nil {
		return nil, err
	}

	wh := r.deps.Warehouse
	if wh == nil && cfg.UseWarehouse {
		wh, err = newWarehouse(cfg.Warehouse)
		if err != nil {
			return nil, err
		}
		r.built = wh
	}

	return loader.New(loader.Options{
		UseWarehouse: cfg.UseWarehouse,
		Layout:       *layout,
		Warehouse:    wh,
		Query:        cfg.Warehouse.Query,
		ProjectID:    cfg.Warehouse.ProjectID,
		FileName:     cfg.Data.CaudalFile,
		Logger:       r.deps.Logger,
	}), nil
}

// closeWarehouse releases a warehouse the run opened. Caller-provided
// warehouses are left open.
func (r *runner) closeWarehouse() {
	c, ok := r.built.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		r.log.Warn("Could not close warehouse", err.Error())
	}
	r.built = nil
}

func (r *runner) load(ctx context.Context, ld *loader.Loader) error {
	return observability.Trace(ctx, "loader.load", func(ctx context.Context, span *observability.Span) error {
		span.SetAttribute("source", ld.Source())

		start := r.clock.Now()
		if err := ld.Load(ctx); err != nil {
			return err
		}
		rows := ld.Caudal.NumRows()
		span.SetAttribute("rows", rows)
		r.deps.Metrics.ObserveLoad(ld.Source(), rows, r.clock.Since(start))
		return nil
	})
}

// finish records run metrics. Failures here are logged, never returned:
// the dataset is already loaded.
func (r *runner) finish(res *Result) {
	m := r.deps.Metrics
	m.ObserveRun(res.Duration)
	if err := m.SampleMemory(); err != nil {
		r.log.Warn("Could not sample process memory", err.Error())
	}

	if res.Configs != nil && res.Configs.Observability.MetricsFile != "" {
		if path, err := r.outputPath(res.Configs.Observability.MetricsFile); err != nil {
			r.log.Warn("Could not resolve metrics file", err.Error())
		} else if err := m.WriteTextfile(path); err != nil {
			r.log.Warn("Could not write metrics file", err.Error())
		} else {
			r.log.Debug("Wrote run metrics to", path)
		}
	}

	r.log.Info("Script completed in", fmt.Sprintf("%d seconds", int(res.Duration.Seconds())))
}

// outputPath anchors a relative path under the project root.
func (r *runner) outputPath(p string) (string, error) {
	layout, err := r.layout()
	if err != nil {
		return "", err
	}
	return persistence.New(layout.Root, persistence.WithLogger(r.log)).Path(p), nil
}

func (r *runner) layout() (*paths.Layout, error) {
	if r.deps.Layout == nil {
		layout, err := paths.Discover(paths.RootName())
		if err != nil {
			return nil, err
		}
		r.deps.Layout = layout
	}
	return r.deps.Layout, nil
}
