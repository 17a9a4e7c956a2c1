package model

import "time"

// Rules constrains a parameter value at write time. All fields are
// optional; the zero value imposes no constraints beyond the type check.
// Which fields apply depends on the parameter type: min/max for numbers,
// regex/length/enum for strings, custom_expr for any type.
type Rules struct {
	Min           *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max           *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Regex         string   `json:"regex,omitempty" yaml:"regex,omitempty"`
	MinLength     *int     `json:"min_length,omitempty" yaml:"min_length,omitempty"`
	MaxLength     *int     `json:"max_length,omitempty" yaml:"max_length,omitempty"`
	EnumValues    []string `json:"enum_values,omitempty" yaml:"enum_values,omitempty"`
	CustomExpr    string   `json:"custom_expr,omitempty" yaml:"custom_expr,omitempty"`
	CustomMessage string   `json:"custom_message,omitempty" yaml:"custom_message,omitempty"`
}

// IsZero reports whether no rule field is set.
func (r Rules) IsZero() bool {
	return r.Min == nil && r.Max == nil && r.Regex == "" &&
		r.MinLength == nil && r.MaxLength == nil &&
		len(r.EnumValues) == 0 && r.CustomExpr == ""
}

// ParameterDefinition is one stored parameter row. At most one row exists
// per (level, entity_id, name). A row with IsOverride set shadows an
// ancestor definition of the same name; SourceLevel records which level
// it shadows, for inheritance-tree display only.
type ParameterDefinition struct {
	ID           string    `json:"id"`
	Level        Level     `json:"level"`
	EntityID     string    `json:"entity_id"`
	Name         string    `json:"name"`
	Value        string    `json:"value"`
	Type         ValueType `json:"type"`
	DefaultValue string    `json:"default_value,omitempty"`
	Description  string    `json:"description,omitempty"`
	IsRequired   bool      `json:"is_required"`
	Rules        Rules     `json:"rules,omitempty"`
	IsOverride   bool      `json:"is_override"`
	SourceLevel  *Level    `json:"source_level,omitempty"`
	RowVersion   int64     `json:"row_version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Position returns the row's place in the hierarchy.
func (d ParameterDefinition) Position() Position {
	return Position{Level: d.Level, EntityID: d.EntityID}
}

// Origin classifies how a resolved parameter reached an entity.
type Origin string

const (
	// OriginCustom marks a parameter defined at the requested position.
	OriginCustom Origin = "custom"
	// OriginOverride marks a parameter defined at the requested position
	// that shadows an ancestor definition of the same name.
	OriginOverride Origin = "override"
	// OriginInherited marks a parameter visible only through an ancestor.
	OriginInherited Origin = "inherited"
)

// EffectiveParameter is one entry of a resolved parameter set: the value
// an entity actually sees for a name, annotated with where it came from.
type EffectiveParameter struct {
	Name           string              `json:"name"`
	Value          string              `json:"value"`
	Type           ValueType           `json:"type"`
	Origin         Origin              `json:"origin"`
	SourceLevel    Level               `json:"source_level"`
	SourceEntityID string              `json:"source_entity_id"`
	Definition     ParameterDefinition `json:"definition"`
}
