package verify

import (
	"fmt"

	"github.com/coregraph/taskgraph/contracts"
)

type verifier struct{}

// New returns a contracts.Verifier that checks a task's output against its
// declared schema and declarative rules. Schema hardening (additionalProperties:false)
// is a property of the adapter-transport path (§6), not acceptance here — see Harden.
func New() contracts.Verifier {
	return &verifier{}
}

func (v *verifier) Verify(spec *contracts.Verify, output contracts.Mapping) error {
	if spec == nil {
		return nil
	}
	if len(spec.Schema) == 0 {
		return fmt.Errorf("%w", contracts.ErrSchemaMissing)
	}

	if err := EvaluateSchema(spec.Schema, map[string]interface{}(output)); err != nil {
		return err
	}
	return EvaluateRules(spec.Rules, output)
}
