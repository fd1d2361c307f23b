package schema

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError reports one schema or cross-field violation.
type ValidationError struct {
	FieldPath string `json:"fieldPath"`
	Message   string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.FieldPath, e.Message)
}

// Registry validates artifacts against their declared shapes. A single
// Registry is shared by every repository; it is safe for concurrent use.
type Registry struct {
	v *validator.Validate
}

// NewRegistry builds a Registry with JSON field names in error paths.
func NewRegistry() *Registry {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return &Registry{v: v}
}

// Validate checks a document of the given kind. It returns a nil slice when
// the document is valid.
func (r *Registry) Validate(kind Kind, doc interface{}) []ValidationError {
	switch kind {
	case KindPlan:
		if p, ok := doc.(*Plan); ok {
			return r.ValidatePlan(p)
		}
	}
	return r.check(doc)
}

// ValidatePrompt checks a prompt document.
func (r *Registry) ValidatePrompt(p *Prompt) []ValidationError {
	return r.check(p)
}

// ValidatePlan checks a plan's declared shape plus the dependency invariants
// the tag language cannot express: a subtask must not depend on itself, and
// every dependency must name an earlier subtask in the same plan.
func (r *Registry) ValidatePlan(p *Plan) []ValidationError {
	errs := r.check(p)

	seen := make(map[string]bool)
	for pi, phase := range p.Phases {
		for si, st := range phase.Subtasks {
			path := fmt.Sprintf("phases[%d].subtasks[%d]", pi, si)
			if seen[st.ID] {
				errs = append(errs, ValidationError{
					FieldPath: path + ".id",
					Message:   fmt.Sprintf("duplicate subtask id %q", st.ID),
				})
			}
			for _, dep := range st.Dependencies {
				if dep == st.ID {
					errs = append(errs, ValidationError{
						FieldPath: path + ".dependencies",
						Message:   fmt.Sprintf("subtask %q depends on itself", st.ID),
					})
					continue
				}
				if !seen[dep] {
					errs = append(errs, ValidationError{
						FieldPath: path + ".dependencies",
						Message:   fmt.Sprintf("dependency %q does not reference an earlier subtask", dep),
					})
				}
			}
			seen[st.ID] = true
		}
	}
	return errs
}

// ValidateHandoff checks a handoff document.
func (r *Registry) ValidateHandoff(h *Handoff) []ValidationError {
	return r.check(h)
}

// ValidateState checks an orchestrator state document.
func (r *Registry) ValidateState(s *OrchestratorState) []ValidationError {
	return r.check(s)
}

// ValidateMemory checks a linked memory document.
func (r *Registry) ValidateMemory(m *LinkedMemory) []ValidationError {
	return r.check(m)
}

// ValidateEvidence checks an evidence chain document.
func (r *Registry) ValidateEvidence(c *EvidenceChain) []ValidationError {
	return r.check(c)
}

// ValidateGateResult checks a gate result document.
func (r *Registry) ValidateGateResult(g *GateResult) []ValidationError {
	return r.check(g)
}

// check runs tag validation and flattens the result into ValidationErrors.
func (r *Registry) check(doc interface{}) []ValidationError {
	err := r.v.Struct(doc)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []ValidationError{{FieldPath: "", Message: err.Error()}}
	}

	out := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{
			FieldPath: trimNamespace(fe.Namespace()),
			Message:   describeTag(fe),
		})
	}
	return out
}

// trimNamespace drops the leading struct name from a validator namespace so
// paths read like JSON pointers ("metadata.fromAgent.type").
func trimNamespace(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// describeTag turns a validator tag failure into a human-readable message.
func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "uuid4":
		return "must be a UUID"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "datetime":
		return "must be an RFC3339 timestamp"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
