package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coregraph/taskgraph/contracts"
	"github.com/coregraph/taskgraph/internal/adapter"
	"github.com/coregraph/taskgraph/internal/adaptive"
	"github.com/coregraph/taskgraph/internal/verify"
)

func newExecutor(adapters contracts.AdapterRegistry) contracts.Executor {
	ctl := adaptive.New(adapters, nil)
	return New(NewHandlerRegistry(), ctl, verify.New())
}

// S1 — hello echo.
func TestExecutor_HelloEcho(t *testing.T) {
	g := &contracts.Graph{
		GraphID: "hello",
		Root:    "say_hi",
		Tasks: []*contracts.Task{
			{
				ID:     "say_hi",
				Type:   "det",
				In:     contracts.Mapping{"message": "hello from kora"},
				Run:    contracts.RunSpec{Kind: contracts.RunDet, Det: &contracts.DetRun{Handler: "echo"}},
				Policy: contracts.Policy{OnFail: contracts.OnFailFail},
			},
		},
	}

	exec := newExecutor(adapter.NewRegistry())
	result, err := exec.Run(context.Background(), g, []contracts.TaskID{"say_hi"})
	require.NoError(t, err)
	require.True(t, result.OK)
	require.Equal(t, "hello from kora", result.Final["message"])
	require.NotEmpty(t, result.RunID)
}

// S2 — skip on classifier.
func TestExecutor_SkipOnClassifier(t *testing.T) {
	g := &contracts.Graph{
		GraphID: "skip",
		Root:    "task_llm",
		Tasks: []*contracts.Task{
			{
				ID:     "task_pre",
				Type:   "det",
				In:     contracts.Mapping{"text": "short"},
				Run:    contracts.RunSpec{Kind: contracts.RunDet, Det: &contracts.DetRun{Handler: "classify_simple"}},
				Policy: contracts.Policy{OnFail: contracts.OnFailFail},
			},
			{
				ID:   "task_llm",
				Type: "llm",
				Deps: []contracts.TaskID{"task_pre"},
				Run: contracts.RunSpec{
					Kind: contracts.RunLLM,
					LLM: &contracts.LLMRun{
						Adapter: "never_called",
						Input: contracts.Mapping{
							"skip_if": map[string]interface{}{"path": "$.is_simple", "equals": true},
						},
					},
				},
				Policy: contracts.Policy{OnFail: contracts.OnFailFail},
			},
		},
	}

	reg := adapter.NewRegistry()
	never := adapter.NewScriptedAdapter()
	reg.Register("never_called", never)

	exec := newExecutor(reg)
	result, err := exec.Run(context.Background(), g, []contracts.TaskID{"task_pre", "task_llm"})
	require.NoError(t, err)
	require.True(t, result.OK)
	require.Empty(t, never.Calls)
	require.True(t, result.Outputs["task_llm"]["skipped"].(bool))

	var found bool
	for _, ev := range result.Events {
		if ev.TaskID == "task_llm" && ev.Skipped {
			found = true
		}
	}
	require.True(t, found, "expected a skipped event for task_llm")
}

// S3 — retry recovery.
func TestExecutor_RetryRecovery(t *testing.T) {
	g := &contracts.Graph{
		GraphID: "flaky",
		Root:    "task_flaky",
		Tasks: []*contracts.Task{
			{
				ID:   "task_flaky",
				Type: "det",
				Run:  contracts.RunSpec{Kind: contracts.RunDet, Det: &contracts.DetRun{Handler: "flaky_once"}},
				Policy: contracts.Policy{
					OnFail: contracts.OnFailRetry,
					Budget: &contracts.Budget{MaxRetries: 1},
				},
			},
		},
	}

	exec := newExecutor(adapter.NewRegistry())
	result, err := exec.Run(context.Background(), g, []contracts.TaskID{"task_flaky"})
	require.NoError(t, err)
	require.True(t, result.OK)
	require.Equal(t, "ok", result.Final["status"])

	var failCount, okCount int
	for _, ev := range result.Events {
		if ev.Status == contracts.StatusFail {
			failCount++
		}
		if ev.Status == contracts.StatusOK {
			okCount++
		}
	}
	require.Equal(t, 1, failCount)
	require.Equal(t, 1, okCount)
}

// S4 — schema failure is terminal.
func TestExecutor_SchemaFailureTerminal(t *testing.T) {
	g := &contracts.Graph{
		GraphID: "schema_fail",
		Root:    "task_ask",
		Tasks: []*contracts.Task{
			{
				ID:   "task_ask",
				Type: "det",
				Run:  contracts.RunSpec{Kind: contracts.RunDet, Det: &contracts.DetRun{Handler: "echo"}},
				In:   contracts.Mapping{"status": "ok", "task_id": "task_ask", "message": "hello"},
				Verify: &contracts.Verify{
					Schema: contracts.JSONSchema{
						"type":     "object",
						"required": []interface{}{"must_exist"},
					},
				},
				Policy: contracts.Policy{OnFail: contracts.OnFailFail},
			},
		},
	}

	exec := newExecutor(adapter.NewRegistry())
	result, err := exec.Run(context.Background(), g, []contracts.TaskID{"task_ask"})
	require.NoError(t, err)
	require.False(t, result.OK)
	require.Nil(t, result.Final)
	require.NotNil(t, result.Error)
	require.Equal(t, contracts.ErrOutputSchemaInvalid, result.Error.ErrorType)
	require.Equal(t, contracts.StageVerify, result.Error.Stage)
	require.Nil(t, result.Outputs["task_ask"])
}
