package resolve

import (
	"errors"
	"fmt"

	"github.com/modelforge/paramd/internal/model"
)

// UpstreamLookupError reports a parent lookup that failed against the
// entity hierarchy. The resolver has already retried by the time one
// surfaces, so callers should treat it as upstream unavailability, not
// as a bad request.
type UpstreamLookupError struct {
	Level    model.Level
	EntityID string
	Err      error
}

func (e *UpstreamLookupError) Error() string {
	return fmt.Sprintf("resolve: parent lookup for %s/%s failed: %v", e.Level, e.EntityID, e.Err)
}

func (e *UpstreamLookupError) Unwrap() error {
	return e.Err
}

// IsUpstreamLookup returns true if the error chain contains an
// UpstreamLookupError.
func IsUpstreamLookup(err error) bool {
	var ue *UpstreamLookupError
	return errors.As(err, &ue)
}

// CycleGuardError reports an ancestor chain longer than the level count,
// which can only happen when the hierarchy feeds back on itself. It
// signals corrupt hierarchy data and is never retried.
type CycleGuardError struct {
	Level    model.Level
	EntityID string
}

func (e *CycleGuardError) Error() string {
	return fmt.Sprintf("resolve: ancestor chain of %s/%s exceeds %d positions, hierarchy contains a cycle",
		e.Level, e.EntityID, model.MaxChainDepth())
}

// IsCycleGuard returns true if the error chain contains a CycleGuardError.
func IsCycleGuard(err error) bool {
	var ce *CycleGuardError
	return errors.As(err, &ce)
}
