package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/san-kum/gravsim/internal/bhtree"
	"github.com/san-kum/gravsim/internal/body"
	"github.com/san-kum/gravsim/internal/compute"
	"github.com/san-kum/gravsim/internal/dynamo"
)

type Simulator struct {
	backend    compute.Backend
	integrator dynamo.Integrator
	metrics    []dynamo.Metric
	observers  []dynamo.Observer
	logger     *log.Logger
}

type Option func(*Simulator)

func WithLogger(l *log.Logger) Option {
	return func(s *Simulator) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(backend compute.Backend, integrator dynamo.Integrator, opts ...Option) *Simulator {
	s := &Simulator{
		backend:    backend,
		integrator: integrator,
		metrics:    make([]dynamo.Metric, 0),
		observers:  make([]dynamo.Observer, 0),
		logger:     log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulator) AddMetric(m dynamo.Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o dynamo.Observer) { s.observers = append(s.observers, o) }

type treeReporter interface {
	LastTree() *bhtree.Tree
}

// Run advances set in place for cfg.Steps steps. Metrics and observers see
// the initial state as step 0 and every completed step after that. The
// context is only consulted between steps.
func (s *Simulator) Run(ctx context.Context, set *body.Set, cfg Config) (*Result, error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}

	result := &Result{
		Times:   make([]float64, 0, cfg.Steps+1),
		Metrics: make(map[string]float64),
		Errors:  make([]error, 0),
		Final:   set,
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	metricsEvery := max(cfg.MetricsEvery, 1)

	t := 0.0
	result.Times = append(result.Times, t)
	if err := s.notify(set, 0, t, true); err != nil {
		return result, err
	}

	s.logger.Info("starting run",
		"bodies", set.Len(),
		"steps", cfg.Steps,
		"dt", cfg.Dt,
		"backend", s.backend.Name(),
		"integrator", s.integrator.Name())

	progressEvery := cfg.Steps / 10
	if progressEvery < 1 {
		progressEvery = 1
	}

	start := time.Now()
	defer func() { result.Elapsed = time.Since(start) }()

	for i := 1; i <= cfg.Steps; i++ {
		select {
		case <-ctx.Done():
			s.logger.Warn("run interrupted", "step", i-1, "t", t)
			return result, fmt.Errorf("%w after %d steps: %w", dynamo.ErrContextCanceled, result.StepsTaken, ctx.Err())
		default:
		}

		acc, err := s.backend.Prepare(set)
		if errors.Is(err, dynamo.ErrEmptyInput) {
			if result.StepsSkipped == 0 {
				s.logger.Warn("no bodies, skipping step", "step", i)
			}
			result.StepsSkipped++
			continue
		}
		if err != nil {
			return result, &dynamo.SimulationError{Step: i, Time: t, Wrapped: err}
		}

		s.integrator.Step(set, cfg.Dt, acc)
		t += cfg.Dt

		if cfg.ValidateState && !set.IsValid() {
			err := &dynamo.SimulationError{Step: i, Time: t, Wrapped: dynamo.ErrInvalidState}
			result.Errors = append(result.Errors, err)
			s.logger.Error("invalid state", "step", i, "t", t)
			return result, err
		}

		result.StepsTaken++
		result.Times = append(result.Times, t)

		if err := s.notify(set, i, t, i%metricsEvery == 0 || i == cfg.Steps); err != nil {
			return result, err
		}

		if i%progressEvery == 0 {
			s.logProgress(i, t, start)
		}
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	if drift, ok := result.Metrics["energy_drift"]; ok {
		result.EnergyDrift = drift
	}

	s.logger.Info("run complete",
		"steps", result.StepsTaken,
		"skipped", result.StepsSkipped,
		"elapsed", time.Since(start).Round(time.Millisecond))

	return result, nil
}

func (s *Simulator) notify(set *body.Set, step int, t float64, observe bool) error {
	if observe {
		for _, m := range s.metrics {
			m.Observe(set, step, t)
		}
	}
	for _, obs := range s.observers {
		if err := obs.OnStep(set, step, t); err != nil {
			return &dynamo.SimulationError{Step: step, Time: t, Wrapped: err}
		}
	}
	return nil
}

func (s *Simulator) logProgress(step int, t float64, start time.Time) {
	kv := []interface{}{"step", step, "t", t, "elapsed", time.Since(start).Round(time.Millisecond)}
	if tr, ok := s.backend.(treeReporter); ok {
		if tree := tr.LastTree(); tree != nil {
			st := tree.Stats()
			kv = append(kv, "nodes", st.Nodes, "depth", st.MaxDepth)
		}
	}
	s.logger.Debug("progress", kv...)
}

func (s *Simulator) validateConfig(cfg Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %f", dynamo.ErrParameterBounds, cfg.Dt)
	}
	if cfg.Steps <= 0 {
		return fmt.Errorf("%w: steps must be positive, got %d", dynamo.ErrParameterBounds, cfg.Steps)
	}
	return nil
}
