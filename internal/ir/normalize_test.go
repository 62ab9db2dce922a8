package ir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coregraph/taskgraph/contracts"
)

func llmGraph() *contracts.Graph {
	return &contracts.Graph{
		GraphID:  "g",
		Version:  "0.1",
		Root:     "ask",
		Defaults: contracts.GraphDefaults{Budget: &contracts.Budget{MaxTimeMs: 5000, MaxRetries: 2}},
		Tasks: []*contracts.Task{
			{
				ID:   "ask",
				Type: "llm",
				Run: contracts.RunSpec{
					Kind: contracts.RunLLM,
					LLM: &contracts.LLMRun{
						Adapter:      "openai",
						Input:        contracts.Mapping{"prompt": "hi"},
						OutputSchema: contracts.JSONSchema{"type": "object"},
					},
				},
				Policy: contracts.Policy{OnFail: contracts.OnFailEscalate},
			},
		},
	}
}

func TestNormalize_InheritsBudget(t *testing.T) {
	g := llmGraph()
	out, err := Normalize(g)
	require.NoError(t, err)
	task := out.Index()["ask"]
	require.NotNil(t, task.Policy.Budget)
	require.Equal(t, int64(5000), task.Policy.Budget.MaxTimeMs)
	require.Equal(t, 2, task.Policy.Budget.MaxRetries)

	// Original graph must be untouched.
	require.Nil(t, g.Index()["ask"].Policy.Budget)
}

func TestNormalize_SynthesizesVerifySchema(t *testing.T) {
	g := llmGraph()
	out, err := Normalize(g)
	require.NoError(t, err)
	task := out.Index()["ask"]
	require.NotNil(t, task.Verify)
	require.Equal(t, "object", task.Verify.Schema["type"])
}

func TestNormalize_FillsAdaptiveDefaults(t *testing.T) {
	g := llmGraph()
	out, err := Normalize(g)
	require.NoError(t, err)
	task := out.Index()["ask"]
	require.NotNil(t, task.Policy.Adaptive)
	require.Equal(t, contracts.ProfileBalanced, task.Policy.Adaptive.RoutingProfile)
	require.NotNil(t, task.Policy.Adaptive.MinConfidenceToStop)
}

func TestNormalize_Idempotent(t *testing.T) {
	g := llmGraph()
	once, err := Normalize(g)
	require.NoError(t, err)
	twice, err := Normalize(once)
	require.NoError(t, err)
	require.Equal(t, once.Index()["ask"].Policy.Adaptive, twice.Index()["ask"].Policy.Adaptive)
	require.Equal(t, once.Index()["ask"].Policy.Budget, twice.Index()["ask"].Policy.Budget)
}

func TestNormalize_PreservesExplicitBudget(t *testing.T) {
	g := llmGraph()
	g.Index()["ask"].Policy.Budget = &contracts.Budget{MaxTimeMs: 999}
	out, err := Normalize(g)
	require.NoError(t, err)
	require.Equal(t, int64(999), out.Index()["ask"].Policy.Budget.MaxTimeMs)
}
