// Package adaptive implements the confidence/VoI/budget escalation loop that
// drives dispatch of a single llm task, per spec §4.6.
package adaptive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coregraph/taskgraph/contracts"
	"github.com/coregraph/taskgraph/internal/audit"
	"github.com/coregraph/taskgraph/internal/cache"
	"github.com/coregraph/taskgraph/internal/verify"
)

const emaWeight = 0.3

// defaultAdapterTimeoutMs is the deadline applied to an adapter invocation
// when the task carries no max_time_ms budget. Overridable via
// TASKGRAPH_ADAPTER_TIMEOUT_MS per spec §5's "environment-overridable
// default (~30s)".
const defaultAdapterTimeoutMs = 30_000

// minAdapterTimeoutMs is the floor (0.1s) spec §5 places under the computed
// deadline so a tiny max_time_ms budget can't starve an adapter call of any
// time to run at all.
const minAdapterTimeoutMs = 100

// adapterTimeoutSlackMs is added on top of a task's max_time_ms budget
// before it becomes a hard deadline, so ordinary scheduling jitter doesn't
// trip the budget-breach path for work that is merely close to its budget.
const adapterTimeoutSlackMs = 1_000

func adapterDeadline(budget contracts.Budget) time.Duration {
	ms := int64(defaultAdapterTimeoutMs)
	if v := os.Getenv("TASKGRAPH_ADAPTER_TIMEOUT_MS"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
			ms = parsed
		}
	}
	if budget.MaxTimeMs > 0 {
		ms = budget.MaxTimeMs + adapterTimeoutSlackMs
	}
	if ms < minAdapterTimeoutMs {
		ms = minAdapterTimeoutMs
	}
	return time.Duration(ms) * time.Millisecond
}

// budgetBreached applies spec §7's heuristic: a call that actually tripped
// its computed deadline is a breach, and so is any adapter error whose
// message mentions budget or timeout exhaustion.
func budgetBreached(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "budget") || strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline")
}

type controller struct {
	adapters contracts.AdapterRegistry
	cache    contracts.RetrievalCache

	mu  sync.Mutex
	ema map[string]float64
}

// New returns an AdaptiveController backed by the given adapter registry and
// retrieval cache. The retrieval cache may be nil if gate retrieval is never
// enabled by any graph this controller serves.
func New(adapters contracts.AdapterRegistry, retrieval contracts.RetrievalCache) contracts.AdaptiveController {
	return &controller{
		adapters: adapters,
		cache:    retrieval,
		ema:      make(map[string]float64),
	}
}

func (c *controller) Run(ctx context.Context, task *contracts.Task, resolvedInput contracts.Mapping, attempt int) (*contracts.EscalationOutcome, error) {
	if task.Run.Kind != contracts.RunLLM || task.Run.LLM == nil {
		return nil, fmt.Errorf("task %q is not an llm task: %w", task.ID, contracts.ErrInvalidInput)
	}
	a := task.Policy.Adaptive
	if a == nil {
		a = &contracts.Adaptive{}
		ApplyProfileDefaults(a)
	}

	step := 0
	currentName := task.Run.LLM.Adapter
	currentStage := currentName
	currentAdapter, ok := c.adapters.Resolve(currentName)
	if !ok {
		return nil, fmt.Errorf("adapter %q: %w", currentName, contracts.ErrAdapterNotFound)
	}

	var events []contracts.Event
	var usedTokens, usedTimeMs int64
	budget := contracts.Budget{}
	if task.Policy.Budget != nil {
		budget = *task.Policy.Budget
	}

	for {
		result, gateHit, err := c.invoke(ctx, task, currentAdapter, currentName, resolvedInput, budget, a, step)
		stepCopy := step
		if err != nil {
			breached := errors.Is(err, contracts.ErrBudgetBreach)
			errType := contracts.ErrAdapterFailed
			stage := contracts.StageAdapter
			if breached {
				errType = contracts.ErrBudgetBreachType
				stage = contracts.StageBudget
			}
			ev := contracts.Event{
				TaskID:         task.ID,
				Attempt:        attempt,
				EscalationStep: &stepCopy,
				Status:         contracts.StatusFail,
				Stage:          contracts.StageAdapter,
				Error: &contracts.FailureContract{
					ErrorType:      errType,
					Stage:          stage,
					Retryable:      !breached,
					BudgetBreached: breached,
					Details:        err.Error(),
					TaskID:         task.ID,
				},
			}
			events = append(events, ev)
			return &contracts.EscalationOutcome{Events: events, Failed: true, Error: ev.Error}, nil
		}

		usage := result.Usage
		meta := result.Meta
		if meta == nil {
			meta = contracts.Mapping{}
		}
		if gateHit {
			meta["gate_retrieval_hit"] = true
		}

		ev := contracts.Event{
			TaskID:         task.ID,
			Attempt:        attempt,
			EscalationStep: &stepCopy,
			Status:         contracts.StatusOK,
			Stage:          contracts.StageAdapter,
			TimeMs:         usage.TimeMs,
			Usage:          &usage,
			Meta:           meta,
		}
		events = append(events, ev)

		confidence := clampConfidence(meta["confidence"])
		uncertainty := 1 - confidence

		usedTokens += usage.TokensIn + usage.TokensOut
		usedTimeMs += usage.TimeMs

		costUnits := float64(usage.TokensIn + usage.TokensOut)
		if costUnits == 0 {
			costUnits = float64(usage.TimeMs)
		}
		c.updateEMA(currentStage, costUnits)

		var nextToken string
		if step < len(a.EscalationOrder) {
			nextToken = a.EscalationOrder[step]
		}
		expectedNextCost := c.expectedCost(a, nextToken)

		stopReason := ""
		switch {
		case confidence >= derefFloat(a.MinConfidenceToStop, 1.0):
			stopReason = "confident_enough"
		case derefBool(a.UseVoI, true) && nextToken != "" && (uncertainty/expectedNextCost) < derefFloat(a.MinVoIToEscalate, 0):
			stopReason = "voi_too_low"
		case nextToken != "" && !affordable(budget, usedTokens, usedTimeMs, expectedNextCost):
			stopReason = "budget_remaining_low"
		}

		if stopReason == "" {
			if step >= derefInt(a.MaxEscalations, 0) {
				stopReason = "max_escalations"
			} else if nextToken == "" {
				stopReason = "escalation_adapter_missing"
			}
		}

		if stopReason != "" {
			events[len(events)-1].Meta["stop_reason"] = stopReason
			return &contracts.EscalationOutcome{
				FinalOutput: result.Output,
				Events:      events,
				StopReason:  stopReason,
			}, nil
		}

		nextAdapter, resolvedName, found := c.adapters.ResolveStage(task.Run.LLM.Adapter, nextToken)
		if !found {
			events[len(events)-1].Meta["stop_reason"] = "escalation_adapter_missing"
			return &contracts.EscalationOutcome{
				FinalOutput: result.Output,
				Events:      events,
				StopReason:  "escalation_adapter_missing",
			}, nil
		}

		step++
		audit.Log("escalation", "task_id", string(task.ID), "step", step, "from", currentName, "to", resolvedName)
		currentAdapter = nextAdapter
		currentName = resolvedName
		currentStage = nextToken
	}
}

// invoke runs one adapter stage, applying the retrieval gate (for
// escalation steps only, per spec §4.6) and self-consistency sampling (when
// configured) ahead of the stop-test logic.
func (c *controller) invoke(ctx context.Context, task *contracts.Task, a contracts.Adapter, name string, input contracts.Mapping, budget contracts.Budget, policy *contracts.Adaptive, step int) (*contracts.AdapterResult, bool, error) {
	if step > 0 && c.cache != nil && derefBool(policy.EnableGateRetrieval, false) {
		fp := cache.Fingerprint(task.Type, input, task.Tags)
		if out, ok := c.cache.Get(fp); ok {
			return &contracts.AdapterResult{OK: true, Output: out}, true, nil
		}
	}

	deadline, cancel := context.WithTimeout(ctx, adapterDeadline(budget))
	defer cancel()

	hardenedSchema := verify.Harden(task.Run.LLM.OutputSchema)

	samples := derefInt(policy.SCSamples, 1)
	if samples <= 1 {
		res, err := a.Run(deadline, task.ID, input, budget, hardenedSchema)
		if err != nil && budgetBreached(deadline, err) {
			err = fmt.Errorf("%w: %v", contracts.ErrBudgetBreach, err)
		}
		return res, false, err
	}
	res, err := c.runSelfConsistency(deadline, task, a, input, budget, policy, samples, hardenedSchema)
	if err != nil && budgetBreached(deadline, err) {
		err = fmt.Errorf("%w: %v", contracts.ErrBudgetBreach, err)
	}
	return res, false, err
}

// runSelfConsistency invokes the same adapter stage `samples` times and
// reduces the results by majority vote on policy.SCVoteKey, falling back to
// the first sample when the vote key is absent or there is no vote quorum.
func (c *controller) runSelfConsistency(ctx context.Context, task *contracts.Task, a contracts.Adapter, input contracts.Mapping, budget contracts.Budget, policy *contracts.Adaptive, samples int, outputSchema contracts.JSONSchema) (*contracts.AdapterResult, error) {
	capped := budget
	if maxTok := derefInt64(policy.SCMaxTokensPerSample, 0); maxTok > 0 {
		capped.MaxTokens = maxTok
	}

	results := make([]*contracts.AdapterResult, 0, samples)
	for i := 0; i < samples; i++ {
		res, err := a.Run(ctx, task.ID, input, capped, outputSchema)
		if err != nil {
			if len(results) > 0 {
				break
			}
			return nil, err
		}
		results = append(results, res)
	}

	voteKey := policy.SCVoteKey
	if voteKey == "" {
		return results[0], nil
	}

	votes := make(map[interface{}]int)
	for _, r := range results {
		votes[r.Output[voteKey]]++
	}
	var winner interface{}
	best := -1
	for v, count := range votes {
		if count > best {
			best = count
			winner = v
		}
	}

	merged := results[0]
	if best*2 > len(results) {
		for _, r := range results {
			if r.Output[voteKey] == winner {
				merged = r
				break
			}
		}
	}

	var totalIn, totalOut, totalTime int64
	for _, r := range results {
		totalIn += r.Usage.TokensIn
		totalOut += r.Usage.TokensOut
		totalTime += r.Usage.TimeMs
	}
	merged.Usage = contracts.Usage{TokensIn: totalIn, TokensOut: totalOut, TimeMs: totalTime}
	if merged.Meta == nil {
		merged.Meta = contracts.Mapping{}
	}
	merged.Meta["sc_samples"] = len(results)
	merged.Meta["sc_agreement"] = float64(best) / float64(len(results))

	return merged, nil
}

func (c *controller) updateEMA(stageToken string, observed float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, ok := c.ema[stageToken]
	if !ok {
		c.ema[stageToken] = observed
		return
	}
	c.ema[stageToken] = emaWeight*observed + (1-emaWeight)*prev
}

func (c *controller) expectedCost(a *contracts.Adaptive, stageToken string) float64 {
	if stageToken == "" {
		return 1.0
	}
	if cost, ok := a.StageCosts[stageToken]; ok {
		return cost
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cost, ok := c.ema[stageToken]; ok && cost > 0 {
		return cost
	}
	return 1.0
}

func affordable(budget contracts.Budget, usedTokens, usedTimeMs int64, expectedCost float64) bool {
	if budget.MaxTokens > 0 && float64(usedTokens)+expectedCost > float64(budget.MaxTokens) {
		return false
	}
	if budget.MaxTimeMs > 0 && float64(usedTimeMs)+expectedCost > float64(budget.MaxTimeMs) {
		return false
	}
	return true
}

func clampConfidence(v interface{}) float64 {
	f, ok := v.(float64)
	if !ok {
		return 0
	}
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func derefFloat(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func derefInt(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func derefInt64(p *int64, def int64) int64 {
	if p == nil {
		return def
	}
	return *p
}

func derefBool(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
