package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/logging"
)

// Orchestrator is the per-case execution surface the runner drives. The
// planmesh façade satisfies it.
type Orchestrator interface {
	PrepareInitialState(query, context string, extras ...map[string]any) core.State
	Run(ctx context.Context, state core.State) (core.State, error)
	ExtractResult(state core.State) *core.Result
}

// Case is one independent unit of a batch run.
type Case struct {
	// ID identifies the case in the outcome store. Empty ids get a
	// generated one.
	ID string

	// Query is the user requirement of the case.
	Query string

	// Context is optional background information seeded into the state.
	Context string

	// Extras merge flat into the initial state without overriding the
	// seeded keys.
	Extras map[string]any
}

// Outcome is the collected result of one case.
type Outcome struct {
	CaseID   string
	Result   *core.Result
	State    core.State
	Err      error
	Duration time.Duration
}

// Options holds configuration overrides passed to New().
type Options struct {
	// MaxConcurrentCases bounds how many cases execute simultaneously.
	// Defaults to 4; zero or negative runs every case at once.
	MaxConcurrentCases int

	// Logger receives per-case progress logs. Defaults to a no-op
	// logger.
	Logger logging.Logger
}

// Runner fans a batch of cases over a pool of orchestrators. The factory is
// invoked once per case so cases never share mutable orchestration state;
// sharing one pre-built orchestrator is fine when it is stateless across
// runs, in which case the factory simply returns it.
type Runner struct {
	factory func(c Case) (Orchestrator, error)

	maxConcurrentCases int
	logger             logging.Logger
}

// New constructs a Runner around an orchestrator factory.
func New(factory func(c Case) (Orchestrator, error), optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxConcurrentCases: 4,
		Logger:             logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Runner{
		factory:            factory,
		maxConcurrentCases: opts.MaxConcurrentCases,
		logger:             opts.Logger,
	}
}

// Run executes every case and returns the filled outcome store once all of
// them settled. Case failures are recorded in their outcomes, never
// propagated; only a cancelled context returns an error, together with the
// outcomes collected so far.
func (r *Runner) Run(ctx context.Context, cases []Case) (*Store, error) {
	store := NewStore()

	n := len(cases)
	maxPar := r.maxConcurrentCases
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxPar)

	batchStart := time.Now()
	for i := range cases {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(c Case) {
			defer wg.Done()
			defer func() { <-sem }()

			store.put(r.runCase(ctx, c))
		}(normalized(cases[i]))
	}

	wg.Wait()

	r.logger.Info("runner.batch.complete",
		"cases", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	if err := ctx.Err(); err != nil {
		return store, err
	}
	return store, nil
}

// runCase executes one case end to end, converting every failure mode into
// the outcome's Err. The named return keeps the outcome visible to the
// panic handler.
func (r *Runner) runCase(ctx context.Context, c Case) (outcome Outcome) {
	outcome = Outcome{CaseID: c.ID}
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			outcome.Err = fmt.Errorf("case %s panicked: %v", c.ID, rec)
			outcome.Duration = time.Since(start)
			r.logger.Error("runner.case.panic", "case", c.ID, "recover", fmt.Sprint(rec))
		}
	}()

	r.logger.Info("runner.case.start", "case", c.ID)

	orch, err := r.factory(c)
	if err != nil {
		outcome.Err = fmt.Errorf("orchestrator construction failed: %w", err)
		outcome.Duration = time.Since(start)
		return outcome
	}

	var extras []map[string]any
	if c.Extras != nil {
		extras = append(extras, c.Extras)
	}

	state := orch.PrepareInitialState(c.Query, c.Context, extras...)

	final, err := orch.Run(ctx, state)
	outcome.State = final
	outcome.Duration = time.Since(start)

	if err != nil {
		outcome.Err = err
		r.logger.Error("runner.case.error", "case", c.ID, "error", err.Error())
		return outcome
	}

	outcome.Result = orch.ExtractResult(final)

	r.logger.Info("runner.case.complete", "case", c.ID, "duration_ms", outcome.Duration.Milliseconds())

	return outcome
}

// normalized fills the case id when the caller left it empty.
func normalized(c Case) Case {
	if c.ID == "" {
		c.ID = core.NewID()
	}
	return c
}
