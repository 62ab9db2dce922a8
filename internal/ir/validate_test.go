package ir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coregraph/taskgraph/contracts"
)

func detTask(id string, deps ...string) *contracts.Task {
	var d []contracts.TaskID
	for _, dep := range deps {
		d = append(d, contracts.TaskID(dep))
	}
	return &contracts.Task{
		ID:     contracts.TaskID(id),
		Type:   "det",
		Deps:   d,
		Run:    contracts.RunSpec{Kind: contracts.RunDet, Det: &contracts.DetRun{Handler: "echo"}},
		Policy: contracts.Policy{OnFail: contracts.OnFailFail},
	}
}

func TestValidate_OK(t *testing.T) {
	g := &contracts.Graph{
		Root: "root",
		Tasks: []*contracts.Task{
			detTask("root", "a"),
			detTask("a"),
		},
	}
	require.NoError(t, Validate(g))
}

func TestValidate_RootNotFound(t *testing.T) {
	g := &contracts.Graph{
		Root: "missing",
		Tasks: []*contracts.Task{
			detTask("a"),
		},
	}
	require.ErrorIs(t, Validate(g), contracts.ErrRootNotFound)
}

func TestValidate_DepNotFound(t *testing.T) {
	g := &contracts.Graph{
		Root: "a",
		Tasks: []*contracts.Task{
			detTask("a", "ghost"),
		},
	}
	require.ErrorIs(t, Validate(g), contracts.ErrDepNotFound)
}

func TestValidate_Cycle(t *testing.T) {
	g := &contracts.Graph{
		Root: "a",
		Tasks: []*contracts.Task{
			detTask("a", "b"),
			detTask("b", "a"),
		},
	}
	require.ErrorIs(t, Validate(g), contracts.ErrDAGCycle)
}

func TestValidate_DuplicateTaskID(t *testing.T) {
	g := &contracts.Graph{
		Root: "a",
		Tasks: []*contracts.Task{
			detTask("a"),
			detTask("a"),
		},
	}
	require.ErrorIs(t, Validate(g), contracts.ErrDuplicateTaskID)
}

func TestValidate_EmptyTaskID(t *testing.T) {
	g := &contracts.Graph{
		Root: "a",
		Tasks: []*contracts.Task{
			detTask(""),
		},
	}
	require.ErrorIs(t, Validate(g), contracts.ErrEmptyTaskID)
}

func TestValidate_LLMMissingSchema(t *testing.T) {
	g := &contracts.Graph{
		Root: "ask",
		Tasks: []*contracts.Task{
			{
				ID:   "ask",
				Type: "llm",
				Run: contracts.RunSpec{
					Kind: contracts.RunLLM,
					LLM:  &contracts.LLMRun{Adapter: "openai"},
				},
				Policy: contracts.Policy{OnFail: contracts.OnFailFail},
			},
		},
	}
	require.ErrorIs(t, Validate(g), contracts.ErrMissingSchema)
}

func TestValidate_LLMWithSchemaOK(t *testing.T) {
	g := llmGraph()
	normalized, err := Normalize(g)
	require.NoError(t, err)
	require.NoError(t, Validate(normalized))
}
