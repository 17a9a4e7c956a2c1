package model

import "github.com/rotisserie/eris"

// Level identifies one position in the fixed administrative hierarchy.
// Parameters defined at a level are visible to every descendant level
// unless a descendant defines (or overrides) the same name.
type Level string

const (
	LevelSystem          Level = "system"
	LevelSupplier        Level = "supplier"
	LevelModelType       Level = "model_type"
	LevelModelCapability Level = "model_capability"
	LevelModel           Level = "model"
	LevelAgent           Level = "agent"
)

// SystemEntityID is the single implicit entity at the system level.
// The system level has no parent and exactly one entity.
const SystemEntityID = "system"

// levelOrder fixes the hierarchy, most general first. Levels are immutable
// and defined at process start; every level except system has exactly one
// parent: the previous entry.
var levelOrder = []Level{
	LevelSystem,
	LevelSupplier,
	LevelModelType,
	LevelModelCapability,
	LevelModel,
	LevelAgent,
}

// levelRank maps each level to its index in levelOrder.
var levelRank = func() map[Level]int {
	m := make(map[Level]int, len(levelOrder))
	for i, l := range levelOrder {
		m[l] = i
	}
	return m
}()

// Levels returns the ordered level list, system first.
func Levels() []Level {
	out := make([]Level, len(levelOrder))
	copy(out, levelOrder)
	return out
}

// MaxChainDepth bounds the length of any ancestor chain. A chain longer
// than this indicates a malformed entity hierarchy, not a deeper tree.
func MaxChainDepth() int {
	return len(levelOrder)
}

// Rank returns the position of l in the hierarchy (system = 0), or -1 for
// an unknown level.
func (l Level) Rank() int {
	r, ok := levelRank[l]
	if !ok {
		return -1
	}
	return r
}

// Valid reports whether l is one of the defined levels.
func (l Level) Valid() bool {
	_, ok := levelRank[l]
	return ok
}

// ParentOf returns the parent level of l. The second return is false for
// the system level (no parent) and for unknown levels.
func ParentOf(l Level) (Level, bool) {
	r, ok := levelRank[l]
	if !ok || r == 0 {
		return "", false
	}
	return levelOrder[r-1], true
}

// ParseLevel converts a string into a Level.
func ParseLevel(s string) (Level, error) {
	l := Level(s)
	if !l.Valid() {
		return "", eris.Errorf("unknown level: %q", s)
	}
	return l, nil
}

// Position addresses one entity at one level in the hierarchy.
type Position struct {
	Level    Level  `json:"level"`
	EntityID string `json:"entity_id"`
}

// SystemPosition returns the position of the implicit system entity.
func SystemPosition() Position {
	return Position{Level: LevelSystem, EntityID: SystemEntityID}
}
