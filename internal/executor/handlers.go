package executor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/coregraph/taskgraph/contracts"
)

type handlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]contracts.DeterministicHandler
}

// NewHandlerRegistry returns a HandlerRegistry pre-populated with the
// runtime's built-in deterministic handlers.
func NewHandlerRegistry() contracts.HandlerRegistry {
	r := &handlerRegistry{handlers: make(map[string]contracts.DeterministicHandler)}
	r.Register("echo", echoHandler)
	r.Register("classify_simple", classifySimpleHandler)
	r.Register("flaky_once", flakyOnceHandler)
	r.Register("parse_request_constraints", parseRequestConstraintsHandler)
	r.Register("quality_gate", qualityGateHandler)
	return r
}

func (r *handlerRegistry) Register(name string, h contracts.DeterministicHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

func (r *handlerRegistry) Resolve(name string) (contracts.DeterministicHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// echoHandler returns the task's input mapping unchanged.
func echoHandler(task *contracts.Task, state contracts.State) (contracts.Mapping, error) {
	out := make(contracts.Mapping, len(task.In))
	for k, v := range task.In {
		out[k] = v
	}
	return out, nil
}

// classifySimpleHandler labels short input text as "simple", a minimal
// stand-in for a real classifier used to demonstrate skip_if routing.
func classifySimpleHandler(task *contracts.Task, state contracts.State) (contracts.Mapping, error) {
	text, _ := task.In["text"].(string)
	isSimple := len(text) < 80
	return contracts.Mapping{"text": text, "is_simple": isSimple}, nil
}

// flakyOnceHandler fails on a task's first attempt within a run and
// succeeds from the second attempt on, using the per-run scratch state to
// track the attempt count per task id — the re-entrant counter spec §9
// calls for in place of a module-level global.
func flakyOnceHandler(task *contracts.Task, state contracts.State) (contracts.Mapping, error) {
	counts, _ := state["flaky_attempts"].(map[contracts.TaskID]int)
	if counts == nil {
		counts = make(map[contracts.TaskID]int)
		state["flaky_attempts"] = counts
	}
	counts[task.ID]++
	if counts[task.ID] == 1 {
		return nil, fmt.Errorf("flaky_once: transient failure on first attempt")
	}
	return contracts.Mapping{"status": "ok", "task_id": string(task.ID), "attempts": counts[task.ID]}, nil
}

var slideCountPattern = regexp.MustCompile(`(\d+)\s*slides?`)

// topicKeywords is the fixed vocabulary parseRequestConstraintsHandler
// matches against free text to derive topic_tags.
var topicKeywords = []string{
	"budget", "timeline", "marketing", "sales", "technical",
	"roadmap", "strategy", "product", "research", "summary",
}

const defaultSlideCount = 10

// parseRequestConstraintsHandler extracts slide count and topic tags from a
// free-text request by keyword matching: an explicit "N slides" phrase sets
// slide_count (falling back to defaultSlideCount), and any vocabulary word
// present in the text becomes a topic tag.
func parseRequestConstraintsHandler(task *contracts.Task, state contracts.State) (contracts.Mapping, error) {
	text, _ := task.In["text"].(string)
	lower := strings.ToLower(text)

	slideCount := defaultSlideCount
	if m := slideCountPattern.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			slideCount = n
		}
	}

	var tags []string
	for _, kw := range topicKeywords {
		if strings.Contains(lower, kw) {
			tags = append(tags, kw)
		}
	}

	return contracts.Mapping{
		"status":      "ok",
		"task_id":     string(task.ID),
		"slide_count": slideCount,
		"topic_tags":  tags,
	}, nil
}

// qualityGateHandler inspects a named dependency's output and decides
// whether the full (expensive) path should run: run_full requires both a
// slide_count at or above the threshold and every required field present
// on that dependency's output, else skip_full.
func qualityGateHandler(task *contracts.Task, state contracts.State) (contracts.Mapping, error) {
	outputs, _ := state["outputs"].(map[contracts.TaskID]contracts.Mapping)

	depName, _ := task.In["dependency"].(string)
	if depName == "" && len(task.Deps) > 0 {
		depName = string(task.Deps[0])
	}
	depOutput := outputs[contracts.TaskID(depName)]
	if depOutput == nil {
		return nil, fmt.Errorf("quality_gate: dependency %q has no recorded output", depName)
	}

	threshold := float64(defaultSlideCount)
	if v, ok := task.In["slide_count_threshold"]; ok {
		if f, ok := toFloat(v); ok {
			threshold = f
		}
	}

	requiredFields := []string{"slide_count", "topic_tags"}
	if v, ok := task.In["required_fields"].([]interface{}); ok {
		requiredFields = requiredFields[:0]
		for _, f := range v {
			if s, ok := f.(string); ok {
				requiredFields = append(requiredFields, s)
			}
		}
	}

	complete := true
	for _, f := range requiredFields {
		if _, ok := depOutput[f]; !ok {
			complete = false
			break
		}
	}
	slideCount, _ := toFloat(depOutput["slide_count"])

	decision := "skip_full"
	if complete && slideCount >= threshold {
		decision = "run_full"
	}

	return contracts.Mapping{
		"status":   "ok",
		"task_id":  string(task.ID),
		"decision": decision,
	}, nil
}
