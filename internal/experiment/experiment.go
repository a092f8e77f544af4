package experiment

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/san-kum/gravsim/internal/body"
	"github.com/san-kum/gravsim/internal/config"
	"github.com/san-kum/gravsim/internal/sim"
	"github.com/san-kum/gravsim/internal/storage"
)

// Experiment is one configured run: generated bodies, a simulator and,
// once attached to a store, its persistence.
type Experiment struct {
	cfg       *config.Config
	set       *body.Set
	simulator *sim.Simulator
	logger    *log.Logger

	store   *storage.Store
	runID   string
	closers []io.Closer
}

func New(cfg *config.Config, logger *log.Logger) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	set, err := Bodies(cfg)
	if err != nil {
		return nil, err
	}
	backend, err := Backend(cfg)
	if err != nil {
		return nil, err
	}
	integ, err := Integrator(cfg)
	if err != nil {
		return nil, err
	}

	s := sim.New(backend, integ, sim.WithLogger(logger))
	for _, m := range DefaultMetrics(cfg) {
		s.AddMetric(m)
	}

	return &Experiment{
		cfg:       cfg,
		set:       set,
		simulator: s,
		logger:    logger,
	}, nil
}

// Attach creates a run directory in st and wires the diagnostics and
// snapshot writers as observers.
func (e *Experiment) Attach(st *storage.Store) error {
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Create(e.cfg.Name)
	if err != nil {
		return err
	}
	e.store, e.runID = st, runID

	g, _ := e.cfg.Constants()
	diag, err := st.OpenDiagnostics(runID, e.cfg.DiagnosticsEvery(), g, e.cfg.Softening*e.cfg.Softening)
	if err != nil {
		return err
	}
	e.simulator.AddObserver(diag)
	e.closers = append(e.closers, diag)

	if e.cfg.Snapshot.Every > 0 {
		sink, err := st.OpenSink(runID, e.cfg.Snapshot.Format)
		if err != nil {
			e.closeAll()
			return err
		}
		e.simulator.AddObserver(&storage.SnapshotObserver{Sink: sink, Every: e.cfg.Snapshot.Every})
		e.closers = append(e.closers, sink)
	}

	e.logger.Debug("attached store", "run", runID, "dir", st.Dir(runID))
	return nil
}

// Run executes the simulation and, when attached, saves its metadata even
// if the run failed part way.
func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	result, runErr := e.simulator.Run(ctx, e.set, e.cfg.SimConfig())

	closeErr := e.closeAll()
	if e.store != nil {
		if _, err := e.store.Save(e.runID, e.cfg, e.set.Len(), result, runErr); err != nil {
			return result, fmt.Errorf("save run %s: %w", e.runID, err)
		}
	}
	if runErr != nil {
		return result, runErr
	}
	return result, closeErr
}

func (e *Experiment) closeAll() error {
	var first error
	for _, c := range e.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	e.closers = nil
	return first
}

func (e *Experiment) Config() *config.Config    { return e.cfg }
func (e *Experiment) Set() *body.Set            { return e.set }
func (e *Experiment) RunID() string             { return e.runID }
func (e *Experiment) Simulator() *sim.Simulator { return e.simulator }
