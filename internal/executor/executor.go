// Package executor walks a validated, scheduled graph one task at a time,
// dispatching det tasks to the handler registry and llm tasks to the
// adaptive controller, per spec §4.7.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/coregraph/taskgraph/contracts"
	"github.com/coregraph/taskgraph/internal/audit"
)

type executor struct {
	handlers contracts.HandlerRegistry
	adaptive contracts.AdaptiveController
	verifier contracts.Verifier
}

// New returns an Executor. handlers resolves det task dispatch, adaptive
// runs the escalation loop for llm tasks, and verifier gates task output
// acceptance.
func New(handlers contracts.HandlerRegistry, adaptive contracts.AdaptiveController, verifier contracts.Verifier) contracts.Executor {
	return &executor{handlers: handlers, adaptive: adaptive, verifier: verifier}
}

func (e *executor) Run(ctx context.Context, g *contracts.Graph, order []contracts.TaskID) (*contracts.RunResult, error) {
	start := time.Now()
	result := &contracts.RunResult{
		RunID:   contracts.RunID(uuid.NewString()),
		GraphID: g.GraphID,
		Order:   order,
		Outputs: make(map[contracts.TaskID]contracts.Mapping, len(order)),
	}

	state := contracts.State{"outputs": result.Outputs}
	idx := g.Index()

	audit.Log("run_start", "run_id", result.RunID, "graph_id", g.GraphID, "task_count", len(order))

	for _, id := range order {
		task := idx[id]
		output, timings, taskErr := e.runTask(ctx, task, state)

		result.StageTimings.DetTotalS += timings.det
		result.StageTimings.LLMTotalS += timings.llm
		result.StageTimings.VerifyTotalS += timings.verify

		if taskErr == nil {
			result.Outputs[id] = output
			result.Events = append(result.Events, timings.events...)
			audit.Log("task_ok", "run_id", result.RunID, "task_id", string(id))
			continue
		}

		result.Events = append(result.Events, timings.events...)
		audit.Warn("task_fail", "run_id", result.RunID, "task_id", string(id), "on_fail", string(task.Policy.OnFail), "error", taskErr.Error())

		fc := toFailureContract(taskErr, id)
		if task.Policy.OnFail == contracts.OnFailEscalate {
			fc.ErrorType = contracts.ErrEscalateRequired
		}
		result.OK = false
		result.Final = nil
		result.Error = fc
		result.StageTimings.OverallTotalS = time.Since(start).Seconds()
		audit.Warn("run_terminated", "run_id", result.RunID, "graph_id", g.GraphID, "task_id", string(id), "error_type", string(fc.ErrorType))
		return result, nil
	}

	result.OK = true
	if out, ok := result.Outputs[g.Root]; ok {
		result.Final = out
	}
	result.StageTimings.OverallTotalS = time.Since(start).Seconds()
	audit.Log("run_complete", "run_id", result.RunID, "graph_id", g.GraphID, "ok", result.OK)
	return result, nil
}

type taskTimings struct {
	det, llm, verify float64
	events           []contracts.Event
}

// runTask drives the per-task attempt loop (spec §4.7): compute
// max_attempts, retry with backoff on on_fail=retry, and stop at the first
// success or the first disposition that isn't a retry.
func (e *executor) runTask(ctx context.Context, task *contracts.Task, state contracts.State) (contracts.Mapping, taskTimings, error) {
	budget := contracts.Budget{}
	if task.Policy.Budget != nil {
		budget = *task.Policy.Budget
	}
	maxAttempts := 1 + budget.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Millisecond
	bo.MaxInterval = 100 * time.Millisecond
	if budget.MaxTimeMs > 0 {
		bo.MaxElapsedTime = time.Duration(budget.MaxTimeMs) * time.Millisecond
	}

	var timings taskTimings
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		output, err := e.dispatch(ctx, task, state, attempt, &timings)
		if err == nil {
			return output, timings, nil
		}
		lastErr = err

		if task.Policy.OnFail != contracts.OnFailRetry || attempt == maxAttempts {
			return nil, timings, err
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return nil, timings, err
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, timings, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, timings, lastErr
}

// dispatch runs a single attempt and records its event(s) and stage timing
// into timings, returning the accepted output or the failure that occurred.
func (e *executor) dispatch(ctx context.Context, task *contracts.Task, state contracts.State, attempt int, timings *taskTimings) (contracts.Mapping, error) {
	switch task.Run.Kind {
	case contracts.RunDet:
		return e.dispatchDet(task, state, attempt, timings)
	case contracts.RunLLM:
		return e.dispatchLLM(ctx, task, state, attempt, timings)
	default:
		return nil, &contracts.FailureContract{
			ErrorType: contracts.ErrInvalidTask,
			Stage:     contracts.StageIR,
			Retryable: false,
			Details:   fmt.Sprintf("task %q has unknown run kind %q", task.ID, task.Run.Kind),
			TaskID:    task.ID,
		}
	}
}

func (e *executor) dispatchDet(task *contracts.Task, state contracts.State, attempt int, timings *taskTimings) (contracts.Mapping, error) {
	handler, ok := e.handlers.Resolve(task.Run.Det.Handler)
	if !ok {
		fc := &contracts.FailureContract{
			ErrorType: contracts.ErrInvalidTask,
			Stage:     contracts.StageDeterministic,
			Retryable: false,
			Details:   fmt.Sprintf("handler %q not registered", task.Run.Det.Handler),
			TaskID:    task.ID,
		}
		timings.events = append(timings.events, failEvent(task.ID, attempt, contracts.StageDeterministic, fc))
		return nil, fc
	}

	started := time.Now()
	output, err := handler(task, state)
	timings.det += time.Since(started).Seconds()

	if err != nil {
		fc := &contracts.FailureContract{
			ErrorType: contracts.ErrDeterministicExecFailed,
			Stage:     contracts.StageDeterministic,
			Retryable: task.Policy.OnFail == contracts.OnFailRetry,
			Details:   err.Error(),
			TaskID:    task.ID,
		}
		timings.events = append(timings.events, failEvent(task.ID, attempt, contracts.StageDeterministic, fc))
		return nil, fc
	}

	if task.Verify != nil && len(task.Verify.Schema) > 0 {
		vStart := time.Now()
		vErr := e.verifier.Verify(task.Verify, output)
		timings.verify += time.Since(vStart).Seconds()
		if vErr != nil {
			fc := &contracts.FailureContract{
				ErrorType: contracts.ErrOutputSchemaInvalid,
				Stage:     contracts.StageVerify,
				Retryable: task.Policy.OnFail == contracts.OnFailRetry,
				Details:   vErr.Error(),
				TaskID:    task.ID,
			}
			timings.events = append(timings.events, failEvent(task.ID, attempt, contracts.StageVerify, fc))
			return nil, fc
		}
	}

	timings.events = append(timings.events, contracts.Event{
		TaskID:  task.ID,
		Attempt: attempt,
		Status:  contracts.StatusOK,
		Stage:   contracts.StageDeterministic,
	})
	return output, nil
}

func (e *executor) dispatchLLM(ctx context.Context, task *contracts.Task, state contracts.State, attempt int, timings *taskTimings) (contracts.Mapping, error) {
	input := task.Run.LLM.Input

	if skip, ok := extractSkipIf(input); ok {
		outputs, _ := state["outputs"].(map[contracts.TaskID]contracts.Mapping)
		if skipMatches(skip, task.Deps, outputs) {
			stub := contracts.Mapping{
				"status":  "ok",
				"task_id": string(task.ID),
				"skipped": true,
				"message": fmt.Sprintf("Skipped %s: skip_if matched", task.ID),
			}
			timings.events = append(timings.events, contracts.Event{
				TaskID:  task.ID,
				Attempt: attempt,
				Status:  contracts.StatusOK,
				Stage:   contracts.StageAdapter,
				Skipped: true,
			})
			return stub, nil
		}
	}

	started := time.Now()
	outcome, err := e.adaptive.Run(ctx, task, input, attempt)
	timings.llm += time.Since(started).Seconds()
	if err != nil {
		fc := &contracts.FailureContract{
			ErrorType: contracts.ErrAdapterFailed,
			Stage:     contracts.StageAdapter,
			Retryable: task.Policy.OnFail == contracts.OnFailRetry,
			Details:   err.Error(),
			TaskID:    task.ID,
		}
		if outcome != nil {
			timings.events = append(timings.events, outcome.Events...)
		}
		timings.events = append(timings.events, failEvent(task.ID, attempt, contracts.StageAdapter, fc))
		return nil, fc
	}
	timings.events = append(timings.events, outcome.Events...)

	if outcome.Failed {
		fc := outcome.Error
		if fc == nil {
			fc = &contracts.FailureContract{
				ErrorType: contracts.ErrAdapterFailed,
				Stage:     contracts.StageAdapter,
				Retryable: task.Policy.OnFail == contracts.OnFailRetry,
				Details:   "adaptive controller reported failure with no contract",
				TaskID:    task.ID,
			}
		}
		fc.Retryable = task.Policy.OnFail == contracts.OnFailRetry
		fc.TaskID = task.ID
		return nil, fc
	}

	output := normalizeAnswer(outcome.FinalOutput)

	if task.Verify != nil && len(task.Verify.Schema) > 0 {
		vStart := time.Now()
		vErr := e.verifier.Verify(task.Verify, output)
		timings.verify += time.Since(vStart).Seconds()
		if vErr != nil {
			fc := &contracts.FailureContract{
				ErrorType: contracts.ErrOutputSchemaInvalid,
				Stage:     contracts.StageVerify,
				Retryable: task.Policy.OnFail == contracts.OnFailRetry,
				Details:   vErr.Error(),
				TaskID:    task.ID,
			}
			timings.events = append(timings.events, failEvent(task.ID, attempt, contracts.StageVerify, fc))
			return nil, fc
		}
	}

	return output, nil
}

func failEvent(id contracts.TaskID, attempt int, stage contracts.Stage, fc *contracts.FailureContract) contracts.Event {
	return contracts.Event{
		TaskID:  id,
		Attempt: attempt,
		Status:  contracts.StatusFail,
		Stage:   stage,
		Error:   fc,
	}
}

func toFailureContract(err error, id contracts.TaskID) *contracts.FailureContract {
	if fc, ok := err.(*contracts.FailureContract); ok {
		return fc
	}
	return &contracts.FailureContract{
		ErrorType: contracts.ErrUnknownType,
		Stage:     contracts.StageUnknown,
		Retryable: false,
		Details:   err.Error(),
		TaskID:    id,
	}
}

// normalizeAnswer best-effort JSON-decodes a string "answer" field into an
// object or array before verification runs, per spec §4.7.
func normalizeAnswer(output contracts.Mapping) contracts.Mapping {
	if output == nil {
		return output
	}
	answer, ok := output["answer"].(string)
	if !ok {
		return output
	}
	trimmed := strings.TrimSpace(answer)
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return output
	}
	var decoded interface{}
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return output
	}
	out := make(contracts.Mapping, len(output))
	for k, v := range output {
		out[k] = v
	}
	out["answer"] = decoded
	return out
}

func extractSkipIf(input contracts.Mapping) (contracts.SkipIf, bool) {
	raw, ok := input["skip_if"]
	if !ok {
		return contracts.SkipIf{}, false
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return contracts.SkipIf{}, false
	}
	path, _ := m["path"].(string)
	if path == "" {
		return contracts.SkipIf{}, false
	}
	return contracts.SkipIf{Path: path, Equals: m["equals"]}, true
}

// skipMatches checks whether any dependency's top-level key named by
// skip.Path equals skip.Equals, the single-segment-key lookup spec.md's
// open question (a) keeps in place.
func skipMatches(skip contracts.SkipIf, deps []contracts.TaskID, outputs map[contracts.TaskID]contracts.Mapping) bool {
	key := strings.TrimPrefix(skip.Path, "$.")
	for _, dep := range deps {
		out, ok := outputs[dep]
		if !ok {
			continue
		}
		if v, ok := out[key]; ok && equalValue(v, skip.Equals) {
			return true
		}
	}
	return false
}

func equalValue(a, b interface{}) bool {
	ab, aok := a.(bool)
	bb, bok := b.(bool)
	if aok && bok {
		return ab == bb
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
