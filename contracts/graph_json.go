package contracts

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON emits RunSpec as a tagged object: {"kind":"det",...} or
// {"kind":"llm",...}. Both variants are flattened into the same object as
// the discriminator, matching the wire shape Parse accepts.
func (r RunSpec) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case RunDet:
		if r.Det == nil {
			return nil, fmt.Errorf("run kind det with nil Det: %w", ErrInvalidInput)
		}
		return json.Marshal(map[string]interface{}{
			"kind":    string(RunDet),
			"handler": r.Det.Handler,
			"args":    orEmptyMapping(r.Det.Args),
		})
	case RunLLM:
		if r.LLM == nil {
			return nil, fmt.Errorf("run kind llm with nil LLM: %w", ErrInvalidInput)
		}
		return json.Marshal(map[string]interface{}{
			"kind":          string(RunLLM),
			"adapter":       r.LLM.Adapter,
			"input":         orEmptyMapping(r.LLM.Input),
			"output_schema": orEmptySchema(r.LLM.OutputSchema),
		})
	default:
		return nil, fmt.Errorf("run kind %q: %w", r.Kind, ErrUnknownVariant)
	}
}

// UnmarshalJSON decodes a tagged run object, rejecting unknown kinds.
func (r *RunSpec) UnmarshalJSON(data []byte) error {
	var probe struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("decoding run kind: %w", err)
	}
	switch RunKind(probe.Kind) {
	case RunDet:
		var d DetRun
		if err := json.Unmarshal(data, &d); err != nil {
			return fmt.Errorf("decoding det run: %w", err)
		}
		r.Kind = RunDet
		r.Det = &d
		r.LLM = nil
		return nil
	case RunLLM:
		var l LLMRun
		if err := json.Unmarshal(data, &l); err != nil {
			return fmt.Errorf("decoding llm run: %w", err)
		}
		r.Kind = RunLLM
		r.LLM = &l
		r.Det = nil
		return nil
	default:
		return fmt.Errorf("run kind %q: %w", probe.Kind, ErrUnknownVariant)
	}
}

// MarshalJSON emits Rule as a tagged object per its Kind.
func (rl Rule) MarshalJSON() ([]byte, error) {
	switch rl.Kind {
	case RuleRequired:
		return json.Marshal(map[string]interface{}{
			"kind":  string(RuleRequired),
			"paths": rl.Paths,
		})
	case RuleRange:
		return json.Marshal(map[string]interface{}{
			"kind": string(RuleRange),
			"path": rl.Path,
			"min":  rl.Min,
			"max":  rl.Max,
		})
	default:
		return nil, fmt.Errorf("rule kind %q: %w", rl.Kind, ErrUnknownVariant)
	}
}

// UnmarshalJSON decodes a tagged rule object, rejecting unknown kinds.
func (rl *Rule) UnmarshalJSON(data []byte) error {
	var probe struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("decoding rule kind: %w", err)
	}
	switch RuleKind(probe.Kind) {
	case RuleRequired:
		var body struct {
			Paths []string `json:"paths"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return fmt.Errorf("decoding required rule: %w", err)
		}
		rl.Kind = RuleRequired
		rl.Paths = body.Paths
		return nil
	case RuleRange:
		var body struct {
			Path string  `json:"path"`
			Min  float64 `json:"min"`
			Max  float64 `json:"max"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return fmt.Errorf("decoding range rule: %w", err)
		}
		rl.Kind = RuleRange
		rl.Path = body.Path
		rl.Min = body.Min
		rl.Max = body.Max
		return nil
	default:
		return fmt.Errorf("rule kind %q: %w", probe.Kind, ErrUnknownVariant)
	}
}

func orEmptyMapping(m Mapping) Mapping {
	if m == nil {
		return Mapping{}
	}
	return m
}

func orEmptySchema(s JSONSchema) JSONSchema {
	if s == nil {
		return JSONSchema{}
	}
	return s
}
