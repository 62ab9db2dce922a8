package verify

import "github.com/coregraph/taskgraph/contracts"

// Harden returns a deep copy of schema with additionalProperties:false set on
// every object-typed node that doesn't already declare it explicitly,
// recursing into properties, items, and the anyOf/oneOf/allOf combinators.
// Idempotent: hardening an already-hardened schema returns an equal schema.
func Harden(schema contracts.JSONSchema) contracts.JSONSchema {
	if schema == nil {
		return nil
	}
	return hardenNode(map[string]interface{}(schema)).(map[string]interface{})
}

func hardenNode(node interface{}) interface{} {
	m, ok := node.(map[string]interface{})
	if !ok {
		return node
	}

	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}

	if t, _ := out["type"].(string); t == "object" || (t == "" && out["properties"] != nil) {
		if _, declared := out["additionalProperties"]; !declared {
			out["additionalProperties"] = false
		}
	}

	if props, ok := out["properties"].(map[string]interface{}); ok {
		hardenedProps := make(map[string]interface{}, len(props))
		for k, v := range props {
			hardenedProps[k] = hardenNode(v)
		}
		out["properties"] = hardenedProps
	}

	if items, ok := out["items"].(map[string]interface{}); ok {
		out["items"] = hardenNode(items)
	}

	for _, key := range []string{"anyOf", "oneOf", "allOf"} {
		if list, ok := out[key].([]interface{}); ok {
			hardened := make([]interface{}, len(list))
			for i, sub := range list {
				hardened[i] = hardenNode(sub)
			}
			out[key] = hardened
		}
	}

	return out
}
