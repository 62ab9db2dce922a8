package verify

import (
	"fmt"
	"strings"

	"github.com/coregraph/taskgraph/contracts"
)

// EvaluateRules checks output against each declarative rule in order,
// returning the first violation wrapped in ErrRuleFailed.
func EvaluateRules(rules []contracts.Rule, output contracts.Mapping) error {
	for _, r := range rules {
		switch r.Kind {
		case contracts.RuleRequired:
			if err := evalRequired(r, output); err != nil {
				return err
			}
		case contracts.RuleRange:
			if err := evalRange(r, output); err != nil {
				return err
			}
		default:
			return fmt.Errorf("rule kind %q: %w", r.Kind, contracts.ErrUnknownVariant)
		}
	}
	return nil
}

func evalRequired(r contracts.Rule, output contracts.Mapping) error {
	for _, path := range r.Paths {
		if _, ok := lookupTopLevel(output, path); !ok {
			return fmt.Errorf("required path %q missing: %w", path, contracts.ErrRuleFailed)
		}
	}
	return nil
}

func evalRange(r contracts.Rule, output contracts.Mapping) error {
	val, ok := lookupTopLevel(output, r.Path)
	if !ok {
		return fmt.Errorf("range path %q missing: %w", r.Path, contracts.ErrRuleFailed)
	}
	n, ok := val.(float64)
	if !ok {
		return fmt.Errorf("range path %q not numeric: %w", r.Path, contracts.ErrRuleFailed)
	}
	if n < r.Min || n > r.Max {
		return fmt.Errorf("range path %q value %v outside [%v,%v]: %w", r.Path, n, r.Min, r.Max, contracts.ErrRuleFailed)
	}
	return nil
}

// lookupTopLevel resolves a rule path against output. Per the runtime's
// explicit scope decision, only a single top-level key is supported: a
// leading "$." is stripped, and any other "." is part of the literal key, not
// a nested traversal.
func lookupTopLevel(output contracts.Mapping, path string) (interface{}, bool) {
	path = strings.TrimPrefix(path, "$.")
	v, ok := output[path]
	return v, ok
}
