package model

// Entity is one node in the configuration hierarchy: a concrete thing
// that exists at a level (a supplier, a model, an agent). The system
// level has a single implicit entity with no parent; every other entity
// names its parent one level up.
type Entity struct {
	Level       Level  `json:"level" yaml:"level"`
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	ParentLevel *Level `json:"parent_level,omitempty" yaml:"parent_level,omitempty"`
	ParentID    string `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
}

// Position returns the entity's (level, entity_id) pair.
func (e Entity) Position() Position {
	return Position{Level: e.Level, EntityID: e.ID}
}
