package verify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coregraph/taskgraph/contracts"
)

func TestEvaluateSchema_RequiredAndType(t *testing.T) {
	schema := contracts.JSONSchema{
		"type":       "object",
		"required":   []interface{}{"answer"},
		"properties": map[string]interface{}{"answer": map[string]interface{}{"type": "string"}},
	}
	require.NoError(t, EvaluateSchema(schema, map[string]interface{}{"answer": "hi"}))
	require.Error(t, EvaluateSchema(schema, map[string]interface{}{}))
	require.Error(t, EvaluateSchema(schema, map[string]interface{}{"answer": 5.0}))
}

func TestEvaluateSchema_AdditionalPropertiesFalse(t *testing.T) {
	schema := contracts.JSONSchema{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           map[string]interface{}{"a": map[string]interface{}{"type": "string"}},
	}
	require.NoError(t, EvaluateSchema(schema, map[string]interface{}{"a": "x"}))
	require.Error(t, EvaluateSchema(schema, map[string]interface{}{"a": "x", "b": "y"}))
}

func TestEvaluateSchema_MinMax(t *testing.T) {
	schema := contracts.JSONSchema{
		"type":       "object",
		"properties": map[string]interface{}{"confidence": map[string]interface{}{"type": "number", "minimum": 0.0, "maximum": 1.0}},
	}
	require.NoError(t, EvaluateSchema(schema, map[string]interface{}{"confidence": 0.5}))
	require.Error(t, EvaluateSchema(schema, map[string]interface{}{"confidence": 1.5}))
}

func TestEvaluateSchema_Enum(t *testing.T) {
	schema := contracts.JSONSchema{
		"type": "object",
		"properties": map[string]interface{}{
			"label": map[string]interface{}{"enum": []interface{}{"a", "b"}},
		},
	}
	require.NoError(t, EvaluateSchema(schema, map[string]interface{}{"label": "a"}))
	require.Error(t, EvaluateSchema(schema, map[string]interface{}{"label": "c"}))
}

func TestEvaluateSchema_AnyOf(t *testing.T) {
	schema := contracts.JSONSchema{
		"anyOf": []interface{}{
			map[string]interface{}{"type": "string"},
			map[string]interface{}{"type": "number"},
		},
	}
	require.NoError(t, EvaluateSchema(schema, "x"))
	require.NoError(t, EvaluateSchema(schema, 1.0))
	require.Error(t, EvaluateSchema(schema, true))
}

func TestEvaluateSchema_ArrayItems(t *testing.T) {
	schema := contracts.JSONSchema{
		"type":  "array",
		"items": map[string]interface{}{"type": "string"},
	}
	require.NoError(t, EvaluateSchema(schema, []interface{}{"a", "b"}))
	require.Error(t, EvaluateSchema(schema, []interface{}{"a", 1.0}))
}

func TestEvaluateSchema_Empty(t *testing.T) {
	require.NoError(t, EvaluateSchema(nil, "anything"))
}
