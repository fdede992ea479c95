// Package orchestrator fans an analysis subject out to the registered
// dimension tools, enforces per-dimension timeouts and retries, and
// aggregates the per-dimension results into one report. A slow or broken
// dimension degrades alone; the only outward error is requesting an
// analysis with no usable dimension.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"facet/internal/tool"
)

// ErrNoDimensions is the orchestrator's single outward failure: nothing to
// dispatch.
var ErrNoDimensions = errors.New("orchestrator: no usable analysis dimensions")

// State names the phases of one analysis run.
type State string

const (
	StateIdle        State = "idle"
	StateSelection   State = "dimension_selection"
	StateDispatch    State = "dispatch"
	StateAwaiting    State = "awaiting"
	StateAggregation State = "aggregation"
	StateDone        State = "done"
	StateError       State = "error"
)

// Config bounds one analysis run. Zero fields take the defaults.
type Config struct {
	// Retries is how many extra attempts a dimension gets when its result
	// failed or scored below ConfidenceThreshold.
	Retries int
	// Timeout caps a single attempt.
	Timeout time.Duration
	// Backoff is the base delay between attempts; it doubles per attempt.
	Backoff time.Duration
	// ConfidenceThreshold is the score below which a successful result is
	// still retried. Zero disables confidence-based retries.
	ConfidenceThreshold float64
	Logger              *zap.Logger
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		Retries:             2,
		Timeout:             30 * time.Second,
		Backoff:             300 * time.Millisecond,
		ConfidenceThreshold: 0.5,
	}
}

// Timing records how one dimension's execution went.
type Timing struct {
	Attempts int           `json:"attempts"`
	Elapsed  time.Duration `json:"elapsed"`
	TimedOut bool          `json:"timed_out"`
}

// Analysis is the aggregated report of one run. Results holds a key for
// every registered dimension plus every requested one: ran dimensions
// carry their result; dimensions left out of the run and unknown requested
// names carry nil. Confidence is the mean over the dimensions that ran.
type Analysis struct {
	Results      map[string]*tool.Result `json:"results"`
	Timings      map[string]Timing       `json:"timings"`
	Confidence   float64                 `json:"confidence"`
	TotalElapsed time.Duration           `json:"total_elapsed"`
	State        State                   `json:"state"`
	Notes        []string                `json:"notes,omitempty"`
}

// Orchestrator dispatches analysis runs. Safe for concurrent use.
type Orchestrator struct {
	tools  map[string]*tool.Tool
	cfg    Config
	logger *zap.Logger
}

// New builds an orchestrator over the given tools, keyed by dimension.
func New(tools []*tool.Tool, cfg Config) *Orchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultConfig().Backoff
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	byDim := make(map[string]*tool.Tool, len(tools))
	for _, t := range tools {
		byDim[t.Dimension()] = t
	}
	return &Orchestrator{tools: byDim, cfg: cfg, logger: cfg.Logger}
}

// Dimensions returns the registered dimension names, sorted.
func (o *Orchestrator) Dimensions() []string {
	out := make([]string, 0, len(o.tools))
	for dim := range o.tools {
		out = append(out, dim)
	}
	sort.Strings(out)
	return out
}

// Analyze runs the requested dimensions concurrently against subject. An
// empty dimensions list means every registered dimension. Unknown
// dimension names are noted and skipped; if nothing remains the run
// terminates with ErrNoDimensions.
func (o *Orchestrator) Analyze(ctx context.Context, subject any, dimensions []string) (*Analysis, error) {
	start := time.Now()
	state := StateIdle
	advance := func(next State) {
		o.logger.Debug("orchestrator state", zap.String("from", string(state)), zap.String("to", string(next)))
		state = next
	}

	advance(StateSelection)
	if len(dimensions) == 0 {
		dimensions = o.Dimensions()
	}
	var notes []string
	var unknown []string
	selected := make([]*tool.Tool, 0, len(dimensions))
	seen := make(map[string]bool, len(dimensions))
	for _, dim := range dimensions {
		if seen[dim] {
			continue
		}
		seen[dim] = true
		t, ok := o.tools[dim]
		if !ok {
			notes = append(notes, fmt.Sprintf("unknown dimension %q skipped", dim))
			unknown = append(unknown, dim)
			continue
		}
		selected = append(selected, t)
	}
	if len(selected) == 0 {
		advance(StateError)
		o.logger.Warn("analysis rejected", zap.Strings("requested", dimensions))
		return nil, ErrNoDimensions
	}

	advance(StateDispatch)
	results := make([]tool.Result, len(selected))
	timings := make([]Timing, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range selected {
		// Each goroutine owns exactly its own slot; no shared writes.
		g.Go(func() error {
			results[i], timings[i] = o.runDimension(gctx, t, subject)
			return nil
		})
	}
	advance(StateAwaiting)
	// Dimension runs never return errors; Wait only joins the goroutines.
	_ = g.Wait()

	advance(StateAggregation)
	out := &Analysis{
		Results: make(map[string]*tool.Result, len(selected)+len(unknown)),
		Timings: make(map[string]Timing, len(selected)),
		Notes:   notes,
	}
	var confSum float64
	for i, t := range selected {
		r := results[i]
		out.Results[t.Dimension()] = &r
		out.Timings[t.Dimension()] = timings[i]
		confSum += r.Confidence
	}
	for _, dim := range unknown {
		out.Results[dim] = nil
	}
	// Registered dimensions left out of this run still report, as null, so
	// the result keys are stable across invocations with different subsets.
	for dim := range o.tools {
		if _, ok := out.Results[dim]; !ok {
			out.Results[dim] = nil
		}
	}
	out.Confidence = confSum / float64(len(selected))
	out.TotalElapsed = time.Since(start)

	advance(StateDone)
	out.State = state
	o.logger.Info("analysis complete",
		zap.Int("dimensions", len(selected)),
		zap.Float64("confidence", out.Confidence),
		zap.Duration("elapsed", out.TotalElapsed))
	return out, nil
}

// runDimension drives one dimension through its bounded attempts.
func (o *Orchestrator) runDimension(ctx context.Context, t *tool.Tool, subject any) (tool.Result, Timing) {
	start := time.Now()
	maxAttempts := o.cfg.Retries + 1
	var res tool.Result
	var timedOut bool
	attempts := 0
	for attempts < maxAttempts {
		attempts++
		res, timedOut = o.runAttempt(ctx, t, subject)
		if res.Success && res.Confidence >= o.cfg.ConfidenceThreshold {
			break
		}
		if attempts == maxAttempts {
			break
		}
		o.logger.Debug("dimension retrying",
			zap.String("dimension", t.Dimension()),
			zap.Int("attempt", attempts),
			zap.Bool("timed_out", timedOut),
			zap.Float64("confidence", res.Confidence))
		backoff := o.cfg.Backoff << (attempts - 1)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return res, Timing{Attempts: attempts, Elapsed: time.Since(start), TimedOut: timedOut}
		}
	}
	return res, Timing{Attempts: attempts, Elapsed: time.Since(start), TimedOut: timedOut}
}

// runAttempt bounds one Execute call. A stuck provider is abandoned to its
// goroutine and the dimension degrades to its schema defaults; the
// attempt context still signals well-behaved clients to return.
func (o *Orchestrator) runAttempt(ctx context.Context, t *tool.Tool, subject any) (tool.Result, bool) {
	attemptCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	done := make(chan tool.Result, 1)
	go func() { done <- t.Execute(attemptCtx, subject) }()

	select {
	case res := <-done:
		return res, false
	case <-attemptCtx.Done():
		o.logger.Warn("dimension attempt abandoned",
			zap.String("dimension", t.Dimension()),
			zap.Duration("timeout", o.cfg.Timeout),
			zap.Error(attemptCtx.Err()))
		return tool.Result{
			Dimension:   t.Dimension(),
			Success:     false,
			Data:        t.Schema().Defaults(),
			Strategy:    "fallback",
			Confidence:  0.1,
			Diagnostics: []string{"attempt abandoned: " + attemptCtx.Err().Error()},
		}, true
	}
}
