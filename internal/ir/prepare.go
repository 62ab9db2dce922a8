package ir

import (
	"fmt"

	"github.com/coregraph/taskgraph/contracts"
)

// Prepare parses, normalizes, and validates a graph descriptor in one call,
// the sequence every entry point into the runtime needs before scheduling.
func Prepare(data []byte) (*contracts.Graph, error) {
	g, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return normalizeAndValidate(g)
}

// PrepareMap is Prepare for a descriptor already decoded into a map.
func PrepareMap(m map[string]interface{}) (*contracts.Graph, error) {
	g, err := ParseMap(m)
	if err != nil {
		return nil, err
	}
	return normalizeAndValidate(g)
}

func normalizeAndValidate(g *contracts.Graph) (*contracts.Graph, error) {
	normalized, err := Normalize(g)
	if err != nil {
		return nil, fmt.Errorf("normalizing graph: %w", err)
	}
	if err := Validate(normalized); err != nil {
		return nil, fmt.Errorf("validating graph: %w", err)
	}
	return normalized, nil
}
