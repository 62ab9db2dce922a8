// Package contracts defines the core types, data model, and interfaces
// for the task-graph execution runtime.
package contracts

// TaskID uniquely identifies a task within a graph.
type TaskID string

// RunID correlates one execution of a graph for logging and telemetry.
type RunID string

// Stage identifies which component of the runtime produced an event or error.
type Stage string

const (
	StageIR           Stage = "IR"
	StageScheduler    Stage = "SCHEDULER"
	StageDeterministic Stage = "DETERMINISTIC"
	StageAdapter      Stage = "ADAPTER"
	StageVerify       Stage = "VERIFY"
	StageBudget       Stage = "BUDGET"
	StageUnknown      Stage = "UNKNOWN"
)

// EventStatus is the outcome of a single attempt or escalation step.
type EventStatus string

const (
	StatusOK   EventStatus = "ok"
	StatusFail EventStatus = "fail"
)

// RoutingProfile selects a default table of Adaptive field values.
type RoutingProfile string

const (
	ProfileLatency    RoutingProfile = "latency"
	ProfileCost       RoutingProfile = "cost"
	ProfileReliability RoutingProfile = "reliability"
	ProfileBalanced   RoutingProfile = "balanced"
)

// RetrievalStrategy selects how the adaptive controller fingerprints a cache lookup.
type RetrievalStrategy string

const (
	RetrievalExact RetrievalStrategy = "exact"
)

// OnFail is the disposition a task's policy declares for exhausted attempts.
type OnFail string

const (
	OnFailRetry    OnFail = "retry"
	OnFailFail     OnFail = "fail"
	OnFailEscalate OnFail = "escalate"
)

// ErrorType is the runtime's failure taxonomy (spec §7).
type ErrorType string

const (
	ErrInvalidTask            ErrorType = "INVALID_TASK"
	ErrDAGInvalidType         ErrorType = "DAG_INVALID"
	ErrDeterministicExecFailed ErrorType = "DETERMINISTIC_EXEC_FAILED"
	ErrAdapterFailed          ErrorType = "ADAPTER_FAILED"
	ErrOutputSchemaInvalid    ErrorType = "OUTPUT_SCHEMA_INVALID"
	ErrBudgetBreachType       ErrorType = "BUDGET_BREACH"
	ErrEscalateRequired       ErrorType = "ESCALATE_REQUIRED"
	ErrUnknownType            ErrorType = "UNKNOWN"
)

// GraphVersion is the only version string the parser accepts.
const GraphVersion = "0.1"
