// Package taskgraph runs a declarative graph of deterministic and
// llm-backed tasks to completion, wiring together IR parsing, scheduling,
// execution, and telemetry. See SPEC_FULL.md for the full specification.
package taskgraph

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/coregraph/taskgraph/contracts"
	"github.com/coregraph/taskgraph/internal/adapter"
	"github.com/coregraph/taskgraph/internal/adaptive"
	"github.com/coregraph/taskgraph/internal/audit"
	"github.com/coregraph/taskgraph/internal/executor"
	"github.com/coregraph/taskgraph/internal/ir"
	"github.com/coregraph/taskgraph/internal/scheduler"
	"github.com/coregraph/taskgraph/internal/telemetry"
	"github.com/coregraph/taskgraph/internal/verify"
)

// Options customizes one run. Adapters is the only required field for any
// graph containing an llm task; everything else has a usable default.
type Options struct {
	// Adapters resolves llm task dispatch. Required if the graph has any
	// llm tasks; a graph of only det tasks may leave this nil.
	Adapters contracts.AdapterRegistry

	// Cache backs the adaptive controller's escalation-gate retrieval. May
	// be nil if no task in the graph sets adaptive.enable_gate_retrieval.
	Cache contracts.RetrievalCache

	// ExtraHandlers are registered alongside the runtime's built-in
	// deterministic handlers (echo, classify_simple, flaky_once,
	// parse_request_constraints, quality_gate), overriding a built-in of
	// the same name if present.
	ExtraHandlers map[string]contracts.DeterministicHandler

	// Instruments, if set, receives an OpenTelemetry mirror of the run's
	// telemetry summary after the run completes.
	Instruments *telemetry.Instruments

	// Logger overrides the package-level audit logger for this process.
	// Most callers should set this once at startup rather than per run.
	Logger *zap.Logger
}

// Run parses, validates, schedules, and executes a graph descriptor
// (JSON or YAML, see internal/ir), returning the run result. A non-nil
// error indicates the descriptor itself could not be prepared; a failed
// run is reported via RunResult.OK and RunResult.Error, not a Go error.
func Run(ctx context.Context, descriptor []byte, opts Options) (*contracts.RunResult, error) {
	g, err := ir.Prepare(descriptor)
	if err != nil {
		return nil, err
	}
	return runGraph(ctx, g, opts)
}

// RunMap is Run for a descriptor already decoded into a generic map, e.g.
// one assembled programmatically rather than parsed from bytes.
func RunMap(ctx context.Context, descriptor map[string]interface{}, opts Options) (*contracts.RunResult, error) {
	g, err := ir.PrepareMap(descriptor)
	if err != nil {
		return nil, err
	}
	return runGraph(ctx, g, opts)
}

func runGraph(ctx context.Context, g *contracts.Graph, opts Options) (*contracts.RunResult, error) {
	if opts.Logger != nil {
		audit.SetLogger(opts.Logger)
	}

	sched := scheduler.New()
	schedStart := time.Now()
	order, err := sched.Linearize(g)
	schedElapsed := time.Since(schedStart).Seconds()
	if err != nil {
		return nil, err
	}

	adapters := opts.Adapters
	if adapters == nil {
		adapters = adapter.NewRegistry()
	}

	handlers := executor.NewHandlerRegistry()
	for name, h := range opts.ExtraHandlers {
		handlers.Register(name, h)
	}

	ctl := adaptive.New(adapters, opts.Cache)
	exec := executor.New(handlers, ctl, verify.New())

	result, err := exec.Run(ctx, g, order)
	if err != nil {
		return nil, err
	}
	result.StageTimings.SchedulerTotalS = schedElapsed
	result.StageTimings.OverallTotalS += schedElapsed

	if opts.Instruments != nil {
		opts.Instruments.Record(ctx, telemetry.Summarize(result))
	}

	return result, nil
}
