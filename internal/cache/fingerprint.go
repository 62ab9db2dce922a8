package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/coregraph/taskgraph/contracts"
)

// Fingerprint computes a stable cache key for a retrieval lookup: the task
// type, its resolved input payload, and (optionally) its tags. json.Marshal
// writes map keys in sorted order, so semantically identical inputs with
// different key orders fingerprint identically.
func Fingerprint(taskType string, input contracts.Mapping, tags []string) string {
	canonical := map[string]interface{}{
		"task_type": taskType,
		"input":     canonicalize(input),
	}
	if len(tags) > 0 {
		sorted := append([]string(nil), tags...)
		sort.Strings(sorted)
		canonical["tags"] = sorted
	}

	raw, err := json.Marshal(canonical)
	if err != nil {
		// Marshaling a Mapping built from decoded JSON cannot fail; if it
		// somehow does, fall back to a fingerprint of the error itself so
		// the cache degrades to "never hits" rather than panicking.
		raw = []byte(err.Error())
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// canonicalize recursively copies map[string]interface{} and []interface{}
// values. It does not order keys itself: key order in the fingerprint comes
// from json.Marshal, which sorts the keys of any string-keyed map. Values of
// any other type (including a contracts.Mapping or a
// map[interface{}]interface{}) are returned unchanged.
func canonicalize(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, sub := range val {
			out[k] = canonicalize(sub)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, sub := range val {
			out[i] = canonicalize(sub)
		}
		return out
	default:
		return v
	}
}
