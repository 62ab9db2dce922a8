// Package telemetry derives human- and machine-readable run summaries, cost
// projections, and OpenTelemetry metrics from a contracts.RunResult.
package telemetry

import "github.com/coregraph/taskgraph/contracts"

// ModelUsage accumulates token counts attributed to one model id.
type ModelUsage struct {
	TokensIn  int64
	TokensOut int64
}

// Summary is the derived, machine-readable digest of a single run, per
// spec §4.8.
type Summary struct {
	GraphID                 string                     `json:"graph_id"`
	OK                      bool                       `json:"ok"`
	TotalTimeS              float64                    `json:"total_time_s"`
	LLMCalls                int                        `json:"llm_calls"`
	TokensIn                int64                      `json:"tokens_in"`
	TokensOut               int64                      `json:"tokens_out"`
	OKEvents                int                        `json:"ok_events"`
	FailEvents              int                        `json:"fail_events"`
	SkippedEvents           int                        `json:"skipped_events"`
	StageCounts             map[contracts.Stage]int    `json:"stage_counts"`
	BudgetBreachCount       int                        `json:"budget_breach_count"`
	EscalationRequiredCount int                        `json:"escalation_required_count"`
	ModelTokens             map[string]ModelUsage      `json:"model_tokens,omitempty"`
}

// Summarize derives a Summary from a completed run result.
func Summarize(result *contracts.RunResult) Summary {
	s := Summary{
		GraphID:     result.GraphID,
		OK:          result.OK,
		TotalTimeS:  result.StageTimings.OverallTotalS,
		StageCounts: make(map[contracts.Stage]int),
		ModelTokens: make(map[string]ModelUsage),
	}

	if result.Error != nil && result.Error.ErrorType == contracts.ErrEscalateRequired {
		s.EscalationRequiredCount++
	}

	for _, ev := range result.Events {
		s.StageCounts[ev.Stage]++

		switch {
		case ev.Skipped:
			s.SkippedEvents++
		case ev.Status == contracts.StatusOK:
			s.OKEvents++
		case ev.Status == contracts.StatusFail:
			s.FailEvents++
		}

		if ev.Error != nil && ev.Error.BudgetBreached {
			s.BudgetBreachCount++
		}

		if ev.Stage == contracts.StageAdapter && ev.Status == contracts.StatusOK && !ev.Skipped {
			s.LLMCalls++
			if ev.Usage != nil {
				s.TokensIn += ev.Usage.TokensIn
				s.TokensOut += ev.Usage.TokensOut

				model := "unknown"
				if ev.Meta != nil {
					if m, ok := ev.Meta["model"].(string); ok && m != "" {
						model = m
					}
				}
				usage := s.ModelTokens[model]
				usage.TokensIn += ev.Usage.TokensIn
				usage.TokensOut += ev.Usage.TokensOut
				s.ModelTokens[model] = usage
			}
		}
	}

	return s
}
