package verify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coregraph/taskgraph/contracts"
)

func TestHarden_SetsAdditionalPropertiesFalse(t *testing.T) {
	schema := contracts.JSONSchema{
		"type":       "object",
		"properties": map[string]interface{}{"a": map[string]interface{}{"type": "object", "properties": map[string]interface{}{"b": map[string]interface{}{"type": "string"}}}},
	}
	hardened := Harden(schema)
	require.Equal(t, false, hardened["additionalProperties"])
	props := hardened["properties"].(map[string]interface{})
	nested := props["a"].(map[string]interface{})
	require.Equal(t, false, nested["additionalProperties"])
}

func TestHarden_PreservesExplicitTrue(t *testing.T) {
	schema := contracts.JSONSchema{
		"type":                 "object",
		"additionalProperties": true,
	}
	hardened := Harden(schema)
	require.Equal(t, true, hardened["additionalProperties"])
}

func TestHarden_Idempotent(t *testing.T) {
	schema := contracts.JSONSchema{
		"type":       "object",
		"properties": map[string]interface{}{"a": map[string]interface{}{"type": "string"}},
	}
	once := Harden(schema)
	twice := Harden(once)
	require.Equal(t, once, twice)
}

func TestHarden_DoesNotMutateInput(t *testing.T) {
	schema := contracts.JSONSchema{"type": "object"}
	_ = Harden(schema)
	_, declared := schema["additionalProperties"]
	require.False(t, declared)
}
