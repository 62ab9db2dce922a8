package telemetry

import "fmt"

// Report renders a Summary (and an optional priced Cost) as the
// human-readable text a CLI or log line can print directly.
func Report(s Summary, cost *Cost) string {
	status := "OK"
	if !s.OK {
		status = "FAILED"
	}

	out := fmt.Sprintf(
		"run %s: %s in %.3fs, %d llm calls (%d in / %d out tokens), events ok=%d fail=%d skipped=%d",
		s.GraphID, status, s.TotalTimeS, s.LLMCalls, s.TokensIn, s.TokensOut, s.OKEvents, s.FailEvents, s.SkippedEvents,
	)
	if s.BudgetBreachCount > 0 {
		out += fmt.Sprintf(", budget_breaches=%d", s.BudgetBreachCount)
	}
	if s.EscalationRequiredCount > 0 {
		out += fmt.Sprintf(", escalations_required=%d", s.EscalationRequiredCount)
	}
	if cost != nil {
		out += fmt.Sprintf(", cost=%.4f %s", cost.Amount, cost.Currency)
	}
	return out
}
