// Package ir parses, normalizes, and validates task-graph descriptors into
// contracts.Graph values ready for scheduling.
package ir

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/coregraph/taskgraph/contracts"
)

// Parse decodes a graph descriptor from bytes. The bytes may be JSON or
// YAML: yaml.Unmarshal accepts both, so the document is first decoded into a
// generic interface{} tree, re-marshaled to JSON, and only then unmarshaled
// into the typed Graph. Routing every input format through one JSON decode
// path keeps RunSpec/Rule's tagged-union UnmarshalJSON the single place that
// understands the wire shape.
func Parse(data []byte) (*contracts.Graph, error) {
	var generic interface{}
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("decoding graph descriptor: %w", err)
	}
	return fromGeneric(generic)
}

// ParseMap accepts an already-decoded mapping (e.g. from a caller that owns
// its own YAML/JSON front door) and parses it the same way Parse does.
func ParseMap(m map[string]interface{}) (*contracts.Graph, error) {
	return fromGeneric(m)
}

func fromGeneric(generic interface{}) (*contracts.Graph, error) {
	normalized := normalizeYAMLKeys(generic)
	raw, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("re-marshaling graph descriptor: %w", err)
	}
	var g contracts.Graph
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("decoding graph: %w", err)
	}
	if g.Version != contracts.GraphVersion {
		return nil, fmt.Errorf("graph version %q: %w", g.Version, contracts.ErrBadVersion)
	}
	if len(g.Tasks) == 0 {
		return nil, contracts.ErrEmptyTasks
	}
	return &g, nil
}

// normalizeYAMLKeys recursively converts map[string]interface{} keys that
// yaml.v3 may decode as map[interface{}]interface{} (nested documents) into
// map[string]interface{} so encoding/json can marshal them. yaml.v3 actually
// always produces map[string]interface{} for string-keyed maps, but this
// walk is kept defensive for maps nested under interface{} values coming
// from already-decoded callers via ParseMap.
func normalizeYAMLKeys(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, sub := range val {
			out[k] = normalizeYAMLKeys(sub)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, sub := range val {
			out[fmt.Sprintf("%v", k)] = normalizeYAMLKeys(sub)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, sub := range val {
			out[i] = normalizeYAMLKeys(sub)
		}
		return out
	default:
		return v
	}
}
