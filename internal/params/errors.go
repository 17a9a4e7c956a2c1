package params

import (
	"errors"
	"fmt"

	"github.com/modelforge/paramd/internal/model"
)

// NotFoundError reports an unknown id or position. Kind names what was
// looked up ("parameter", "template", "version", "entity").
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("params: %s not found: %s", e.Kind, e.Key)
}

// NewNotFound builds a NotFoundError for the given kind and lookup key.
func NewNotFound(kind, key string) *NotFoundError {
	return &NotFoundError{Kind: kind, Key: key}
}

// IsNotFound returns true if the error (or any error in its chain) is a
// NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ConflictError reports an optimistic-concurrency collision or a unique
// constraint violation. The loser should re-read and retry.
type ConflictError struct {
	Key    string // parameter id or level/entity/name triple
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("params: conflict on %s: %s", e.Key, e.Reason)
}

// IsConflict returns true if the error (or any error in its chain) is a
// ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// InheritedParameterError reports an attempted direct mutation of a name
// that is only visible through inheritance. No row exists at the position;
// the value lives on an ancestor.
type InheritedParameterError struct {
	Level    model.Level
	EntityID string
	Name     string
	Source   model.Level
}

func (e *InheritedParameterError) Error() string {
	return fmt.Sprintf("params: %s at %s/%s is inherited from %s and has no row of its own",
		e.Name, e.Level, e.EntityID, e.Source)
}

// IsInherited returns true if the error (or any error in its chain) is an
// InheritedParameterError.
func IsInherited(err error) bool {
	var ie *InheritedParameterError
	return errors.As(err, &ie)
}
