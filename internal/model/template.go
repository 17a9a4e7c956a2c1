package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// ParameterSpec mirrors ParameterDefinition without the level/entity
// binding or row bookkeeping. Templates carry specs; applying a template
// binds each spec to a concrete position.
type ParameterSpec struct {
	Name         string    `json:"name" yaml:"name"`
	Value        string    `json:"value" yaml:"value"`
	Type         ValueType `json:"type" yaml:"type"`
	DefaultValue string    `json:"default_value,omitempty" yaml:"default_value,omitempty"`
	Description  string    `json:"description,omitempty" yaml:"description,omitempty"`
	IsRequired   bool      `json:"is_required,omitempty" yaml:"is_required,omitempty"`
	Rules        Rules     `json:"rules,omitempty" yaml:"rules,omitempty"`
}

// Template is a named, reusable bundle of parameter specs that can be
// applied to a level/entity in bulk.
type Template struct {
	ID            string          `json:"id" yaml:"id,omitempty"`
	Name          string          `json:"name" yaml:"name"`
	TemplateLevel Level           `json:"template_level" yaml:"level"`
	Description   string          `json:"description,omitempty" yaml:"description,omitempty"`
	Parameters    []ParameterSpec `json:"parameters" yaml:"parameters"`
	CreatedAt     time.Time       `json:"created_at,omitempty" yaml:"-"`
	UpdatedAt     time.Time       `json:"updated_at,omitempty" yaml:"-"`
}

// Check rejects templates that would fail every application attempt
// anyway: no name, an unknown target level, no parameters, or a spec
// with a missing name or unknown value type.
func (t Template) Check() error {
	if t.Name == "" {
		return eris.New("missing template name")
	}
	if !t.TemplateLevel.Valid() {
		return eris.Errorf("template %s: unknown level %q", t.Name, t.TemplateLevel)
	}
	if len(t.Parameters) == 0 {
		return eris.Errorf("template %s: no parameters", t.Name)
	}
	for i, spec := range t.Parameters {
		if spec.Name == "" {
			return eris.Errorf("template %s: parameter %d has no name", t.Name, i)
		}
		if !spec.Type.Valid() {
			return eris.Errorf("template %s: parameter %s has unknown type %q", t.Name, spec.Name, spec.Type)
		}
	}
	return nil
}

// ApplyStrategy controls how template application treats parameters that
// already exist at the target position.
type ApplyStrategy string

const (
	// StrategySkipExisting leaves existing rows untouched; re-application
	// is idempotent.
	StrategySkipExisting ApplyStrategy = "skip_existing"
	// StrategyOverride always writes, marking the row as an override when
	// the name was already resolvable from an ancestor.
	StrategyOverride ApplyStrategy = "override"
	// StrategyMerge writes only fields the template sets that are unset
	// on the existing row.
	StrategyMerge ApplyStrategy = "merge"
)

// ParseApplyStrategy converts a string into an ApplyStrategy. The empty
// string selects skip_existing, the only strategy that is safe to apply
// blindly.
func ParseApplyStrategy(s string) (ApplyStrategy, error) {
	switch ApplyStrategy(s) {
	case "":
		return StrategySkipExisting, nil
	case StrategySkipExisting, StrategyOverride, StrategyMerge:
		return ApplyStrategy(s), nil
	default:
		return "", eris.Errorf("unknown apply strategy: %q", s)
	}
}

// ApplyFailure records one parameter a template application could not
// write, with the reason.
type ApplyFailure struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// ApplyResult aggregates per-parameter outcomes of one template
// application. A failing parameter never blocks its siblings; partial
// application is reported, not swallowed.
type ApplyResult struct {
	Applied    []string       `json:"applied"`
	Skipped    []string       `json:"skipped"`
	Overridden []string       `json:"overridden"`
	Failed     []ApplyFailure `json:"failed"`
}

// Clean returns the result with nil slices replaced by empty ones so the
// JSON encoding always lists every bucket.
func (r ApplyResult) Clean() ApplyResult {
	if r.Applied == nil {
		r.Applied = []string{}
	}
	if r.Skipped == nil {
		r.Skipped = []string{}
	}
	if r.Overridden == nil {
		r.Overridden = []string{}
	}
	if r.Failed == nil {
		r.Failed = []ApplyFailure{}
	}
	return r
}
