package narrative

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Generator produces text for a prompt, trying models in order.
type Generator interface {
	Generate(ctx context.Context, models []string, system, user string) (string, error)
}

// StepError wraps the failure of one generation step.
type StepError struct {
	Step StepName
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("narrative step %s: %v", e.Step, e.Err) }

func (e *StepError) Unwrap() error { return e.Err }

// Options configures an Orchestrator.
type Options struct {
	// Parallel runs independent steps of a layer concurrently.
	Parallel bool
	Models   StepModels
}

// Orchestrator runs the generation graph over a Generator.
type Orchestrator struct {
	gen    Generator
	layers [][]StepName
	opts   Options
	logger *zap.Logger
}

// NewOrchestrator validates the graph and returns an Orchestrator.
func NewOrchestrator(gen Generator, opts Options, logger *zap.Logger) (*Orchestrator, error) {
	graph := DefaultGraph()
	layers, err := graph.Order()
	if err != nil {
		return nil, err
	}
	blank := NewState(Facts{})
	for _, s := range graph {
		if output(s.Name, blank) == nil {
			return nil, fmt.Errorf("step %q has no output field", s.Name)
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{gen: gen, layers: layers, opts: opts, logger: logger}, nil
}

// Run executes every step in topological order. The first failing step
// aborts the run; no partial narrative is returned.
func (o *Orchestrator) Run(ctx context.Context, facts Facts) (*Narrative, error) {
	st := NewState(facts)
	for _, layer := range o.layers {
		var err error
		if o.opts.Parallel && len(layer) > 1 {
			err = o.runParallel(ctx, layer, st)
		} else {
			err = o.runSequential(ctx, layer, st)
		}
		if err != nil {
			return nil, err
		}
	}
	return st.Narrative()
}

func (o *Orchestrator) runSequential(ctx context.Context, layer []StepName, st *State) error {
	for _, name := range layer {
		text, err := o.generate(ctx, name, st)
		if err != nil {
			return err
		}
		if err := o.commit(name, st, text); err != nil {
			return err
		}
	}
	return nil
}

// runParallel generates every step of the layer concurrently, then writes
// the outputs in layer order once all of them have finished.
func (o *Orchestrator) runParallel(ctx context.Context, layer []StepName, st *State) error {
	results := make([]string, len(layer))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range layer {
		i, name := i, name
		g.Go(func() error {
			text, err := o.generate(gctx, name, st)
			if err != nil {
				return err
			}
			results[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, name := range layer {
		if err := o.commit(name, st, results[i]); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) generate(ctx context.Context, name StepName, st *State) (string, error) {
	start := time.Now()
	p, err := prompt(name, st)
	if err != nil {
		return "", &StepError{Step: name, Err: err}
	}
	text, err := o.gen.Generate(ctx, o.opts.Models[name], p.System, p.User)
	if err != nil {
		o.logger.Error("narrative step failed",
			zap.String("step", string(name)), zap.Duration("duration", time.Since(start)), zap.Error(err))
		return "", &StepError{Step: name, Err: err}
	}
	o.logger.Info("narrative step done",
		zap.String("step", string(name)),
		zap.Duration("duration", time.Since(start)),
		zap.String("output", outputName(name)),
	)
	return text, nil
}

func (o *Orchestrator) commit(name StepName, st *State, text string) error {
	if err := output(name, st).Set(text); err != nil {
		return &StepError{Step: name, Err: err}
	}
	return nil
}

func outputName(name StepName) string {
	for _, s := range DefaultGraph() {
		if s.Name == name {
			return s.Produces
		}
	}
	return ""
}
