// Package verify evaluates task output against the JSON-Schema subset and
// declarative rules the runtime's verify block supports, and hardens
// descriptor-supplied schemas against extraneous output fields.
package verify

import (
	"fmt"

	"github.com/coregraph/taskgraph/contracts"
)

// EvaluateSchema checks value against the supported JSON-Schema subset:
// type, required, properties, additionalProperties, items, minimum, maximum,
// enum, anyOf, oneOf, allOf. Returns the first violation found, wrapped in
// ErrSchemaMismatch.
func EvaluateSchema(schema contracts.JSONSchema, value interface{}) error {
	if len(schema) == 0 {
		return nil
	}
	if err := evalNode(schema, value, "$"); err != nil {
		return fmt.Errorf("%s: %w", err.Error(), contracts.ErrSchemaMismatch)
	}
	return nil
}

func evalNode(schema map[string]interface{}, value interface{}, path string) error {
	if anyOf, ok := schema["anyOf"].([]interface{}); ok {
		return evalCombinator(anyOf, value, path, "anyOf", 1, len(anyOf))
	}
	if oneOf, ok := schema["oneOf"].([]interface{}); ok {
		return evalCombinator(oneOf, value, path, "oneOf", 1, 1)
	}
	if allOf, ok := schema["allOf"].([]interface{}); ok {
		for i, sub := range allOf {
			sm, ok := sub.(map[string]interface{})
			if !ok {
				continue
			}
			if err := evalNode(sm, value, fmt.Sprintf("%s.allOf[%d]", path, i)); err != nil {
				return err
			}
		}
	}

	if t, ok := schema["type"].(string); ok {
		if err := checkType(t, value, path); err != nil {
			return err
		}
	}

	if enumVals, ok := schema["enum"].([]interface{}); ok {
		if !containsValue(enumVals, value) {
			return fmt.Errorf("%s: value not in enum", path)
		}
	}

	switch t := value.(type) {
	case map[string]interface{}:
		if err := checkObject(schema, t, path); err != nil {
			return err
		}
	case []interface{}:
		if err := checkArray(schema, t, path); err != nil {
			return err
		}
	case float64:
		if err := checkNumberRange(schema, t, path); err != nil {
			return err
		}
	}

	return nil
}

// evalCombinator checks that at least minMatches (out of maxMatches allowed
// before it's an error, used only by oneOf to reject multiple matches) of
// subs validate value.
func evalCombinator(subs []interface{}, value interface{}, path, name string, minMatches, maxMatches int) error {
	matches := 0
	for _, sub := range subs {
		sm, ok := sub.(map[string]interface{})
		if !ok {
			continue
		}
		if evalNode(sm, value, path) == nil {
			matches++
		}
	}
	if matches < minMatches {
		return fmt.Errorf("%s: no branch of %s matched", path, name)
	}
	if name == "oneOf" && matches > maxMatches {
		return fmt.Errorf("%s: more than one branch of oneOf matched", path)
	}
	return nil
}

func checkType(t string, value interface{}, path string) error {
	ok := false
	switch t {
	case "object":
		_, ok = value.(map[string]interface{})
	case "array":
		_, ok = value.([]interface{})
	case "string":
		_, ok = value.(string)
	case "number":
		_, ok = value.(float64)
	case "integer":
		f, isFloat := value.(float64)
		ok = isFloat && f == float64(int64(f))
	case "boolean":
		_, ok = value.(bool)
	case "null":
		ok = value == nil
	default:
		// Unknown type keyword: not our concern to reject, schema hardening
		// and descriptor validation happen upstream.
		return nil
	}
	if !ok {
		return fmt.Errorf("%s: expected type %q", path, t)
	}
	return nil
}

func checkObject(schema map[string]interface{}, obj map[string]interface{}, path string) error {
	if required, ok := schema["required"].([]interface{}); ok {
		for _, r := range required {
			key, ok := r.(string)
			if !ok {
				continue
			}
			if _, present := obj[key]; !present {
				return fmt.Errorf("%s: missing required property %q", path, key)
			}
		}
	}

	props, _ := schema["properties"].(map[string]interface{})
	for key, val := range obj {
		propSchema, hasProp := props[key]
		if !hasProp {
			if additional, ok := schema["additionalProperties"].(bool); ok && !additional {
				return fmt.Errorf("%s: unexpected property %q", path, key)
			}
			continue
		}
		propSchemaMap, ok := propSchema.(map[string]interface{})
		if !ok {
			continue
		}
		if err := evalNode(propSchemaMap, val, fmt.Sprintf("%s.%s", path, key)); err != nil {
			return err
		}
	}
	return nil
}

func checkArray(schema map[string]interface{}, arr []interface{}, path string) error {
	items, ok := schema["items"].(map[string]interface{})
	if !ok {
		return nil
	}
	for i, item := range arr {
		if err := evalNode(items, item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

func checkNumberRange(schema map[string]interface{}, n float64, path string) error {
	if min, ok := numberValue(schema["minimum"]); ok && n < min {
		return fmt.Errorf("%s: %v below minimum %v", path, n, min)
	}
	if max, ok := numberValue(schema["maximum"]); ok && n > max {
		return fmt.Errorf("%s: %v above maximum %v", path, n, max)
	}
	return nil
}

func numberValue(v interface{}) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

func containsValue(vals []interface{}, v interface{}) bool {
	for _, cand := range vals {
		if cand == v {
			return true
		}
	}
	return false
}
