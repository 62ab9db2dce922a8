package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coregraph/taskgraph/contracts"
)

func sampleResult() *contracts.RunResult {
	return &contracts.RunResult{
		GraphID: "g1",
		OK:      true,
		StageTimings: contracts.StageTimings{OverallTotalS: 1.5},
		Events: []contracts.Event{
			{TaskID: "t1", Stage: contracts.StageDeterministic, Status: contracts.StatusOK},
			{
				TaskID: "t2", Stage: contracts.StageAdapter, Status: contracts.StatusOK,
				Usage: &contracts.Usage{TokensIn: 100, TokensOut: 50},
				Meta:  contracts.Mapping{"model": "fast-model"},
			},
			{TaskID: "t3", Stage: contracts.StageAdapter, Status: contracts.StatusOK, Skipped: true},
			{
				TaskID: "t4", Stage: contracts.StageVerify, Status: contracts.StatusFail,
				Error: &contracts.FailureContract{ErrorType: contracts.ErrOutputSchemaInvalid},
			},
		},
	}
}

func TestSummarize_CountsAndTokens(t *testing.T) {
	s := Summarize(sampleResult())
	require.Equal(t, "g1", s.GraphID)
	require.True(t, s.OK)
	require.Equal(t, 1, s.LLMCalls)
	require.EqualValues(t, 100, s.TokensIn)
	require.EqualValues(t, 50, s.TokensOut)
	require.Equal(t, 2, s.OKEvents)
	require.Equal(t, 1, s.FailEvents)
	require.Equal(t, 1, s.SkippedEvents)
	require.Equal(t, ModelUsage{TokensIn: 100, TokensOut: 50}, s.ModelTokens["fast-model"])
}

func TestSummarize_EscalationRequired(t *testing.T) {
	r := sampleResult()
	r.OK = false
	r.Error = &contracts.FailureContract{ErrorType: contracts.ErrEscalateRequired}
	s := Summarize(r)
	require.Equal(t, 1, s.EscalationRequiredCount)
}

func TestProjectCost_UsesOverrideThenTableThenDefault(t *testing.T) {
	s := Summary{ModelTokens: map[string]ModelUsage{
		"fast-model": {TokensIn: 1_000_000, TokensOut: 1_000_000},
		"unknown-model": {TokensIn: 1_000_000, TokensOut: 0},
	}}
	prices := PriceTable{
		"fast-model": {InputPer1M: 1.0, OutputPer1M: 2.0},
		"default":    {InputPer1M: 5.0, OutputPer1M: 10.0},
	}
	overrides := PriceTable{"fast-model": {InputPer1M: 0.5, OutputPer1M: 1.0}}

	cost := ProjectCost(s, prices, overrides)
	// fast-model priced via override: 0.5 + 1.0 = 1.5
	// unknown-model priced via default input price: 5.0
	require.InDelta(t, 6.5, cost.Amount, 1e-9)
}

func TestComputeSavings(t *testing.T) {
	r := ComputeSavings(Cost{Amount: 10, Currency: "USD"}, Cost{Amount: 4, Currency: "USD"})
	require.InDelta(t, 6, r.AbsoluteUSD, 1e-9)
	require.InDelta(t, 60, r.PercentOff, 1e-9)
}

func TestReport_IncludesCost(t *testing.T) {
	s := Summarize(sampleResult())
	cost := Cost{Amount: 0.0042, Currency: "USD"}
	text := Report(s, &cost)
	require.Contains(t, text, "g1")
	require.Contains(t, text, "cost=0.0042")
}
