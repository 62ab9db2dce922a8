package contracts

import "context"

// =============================================================================
// Scheduler
// =============================================================================

// Scheduler linearizes a validated graph into a deterministic total order.
type Scheduler interface {
	// Linearize returns a topological order of task IDs, ties broken by
	// ascending TaskID. Returns ErrScheduleIncomplete if the graph has a
	// cycle (validation should normally have already rejected this).
	Linearize(g *Graph) ([]TaskID, error)

	// DetectCycle reports whether the graph's dependency relation contains a
	// cycle (true means cyclic).
	DetectCycle(g *Graph) bool
}

// =============================================================================
// Verifier
// =============================================================================

// Verifier gates acceptance of a task's output against its Verify block.
type Verifier interface {
	Verify(v *Verify, output Mapping) error
}

// =============================================================================
// Adapter
// =============================================================================

// Adapter is the single operation every external inference stage exposes.
type Adapter interface {
	Run(ctx context.Context, taskID TaskID, input Mapping, budget Budget, outputSchema JSONSchema) (*AdapterResult, error)
}

// AdapterFunc adapts a plain function to the Adapter interface.
type AdapterFunc func(ctx context.Context, taskID TaskID, input Mapping, budget Budget, outputSchema JSONSchema) (*AdapterResult, error)

func (f AdapterFunc) Run(ctx context.Context, taskID TaskID, input Mapping, budget Budget, outputSchema JSONSchema) (*AdapterResult, error) {
	return f(ctx, taskID, input, budget, outputSchema)
}

// AdapterRegistry resolves adapter names, including stage-qualified escalation
// tokens ("openai" -> "openai:gate" -> "openai:full").
type AdapterRegistry interface {
	Register(name string, a Adapter)
	// Resolve looks up an adapter by bare name. ok is false if unregistered.
	Resolve(name string) (Adapter, bool)
	// ResolveStage resolves an escalation stage token against a base adapter
	// name, trying the bare token first then "<base>:<token>" (spec §4.4).
	ResolveStage(base, stageToken string) (Adapter, string, bool)
}

// =============================================================================
// Retrieval cache
// =============================================================================

// Clock abstracts time for deterministic TTL testing.
type Clock func() int64 // unix millis

// RetrievalCache is a process-wide, bounded, TTL-expiring mapping from a
// stable fingerprint to a previously-accepted task output.
type RetrievalCache interface {
	Get(fingerprint string) (Mapping, bool)
	Put(fingerprint string, output Mapping, ttlSeconds int64)
	Clear()
	Configure(maxEntries int)
}

// =============================================================================
// Deterministic handlers
// =============================================================================

// State is the per-run scratch mapping passed to deterministic handlers.
// Handlers should treat it as opaque except for the "outputs" key, which
// holds prior task results keyed by task id.
type State map[string]interface{}

// DeterministicHandler is a pure, named function producing an output without
// external I/O.
type DeterministicHandler func(task *Task, state State) (Mapping, error)

// HandlerRegistry resolves deterministic handler names.
type HandlerRegistry interface {
	Register(name string, h DeterministicHandler)
	Resolve(name string) (DeterministicHandler, bool)
}

// =============================================================================
// Adaptive controller
// =============================================================================

// EscalationOutcome is the result of running the adaptive controller loop
// for one llm-task attempt.
type EscalationOutcome struct {
	FinalOutput Mapping
	Events      []Event
	StopReason  string
	Failed      bool
	Error       *FailureContract
}

// AdaptiveController runs the confidence/VoI/budget escalation loop for a
// single llm task attempt.
type AdaptiveController interface {
	Run(ctx context.Context, task *Task, resolvedInput Mapping, attempt int) (*EscalationOutcome, error)
}

// =============================================================================
// Executor
// =============================================================================

// Executor walks a schedule and produces a RunResult.
type Executor interface {
	Run(ctx context.Context, g *Graph, order []TaskID) (*RunResult, error)
}
