// Package history tracks parameter value changes as an append-only
// version log. Records are written on every value-changing write and
// never mutated or deleted; revert appends rather than rewinds.
package history

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/modelforge/paramd/internal/model"
)

// VersionStore is the slice of the parameter store the history manager
// needs. params.Store satisfies it.
type VersionStore interface {
	AppendVersion(ctx context.Context, parameterID, value, updatedBy string) (*model.VersionRecord, error)
	ListVersions(ctx context.Context, parameterID string) ([]model.VersionRecord, error)
	GetVersion(ctx context.Context, parameterID, versionID string) (*model.VersionRecord, error)
}

// Manager records and serves the version log for parameter rows.
type Manager struct {
	store VersionStore
}

func NewManager(store VersionStore) *Manager {
	return &Manager{store: store}
}

// Record appends the next version for a parameter. Numbering starts at 1
// and increases by one per record; the store computes the next number
// inside the insert so no read-modify-write window exists.
func (m *Manager) Record(ctx context.Context, parameterID, value, updatedBy string) (*model.VersionRecord, error) {
	rec, err := m.store.AppendVersion(ctx, parameterID, value, updatedBy)
	if err != nil {
		return nil, eris.Wrapf(err, "history: record %s", parameterID)
	}
	zap.L().Debug("history: version recorded",
		zap.String("parameter_id", parameterID),
		zap.Int("version", rec.VersionNumber),
		zap.String("updated_by", updatedBy),
	)
	return rec, nil
}

// List returns all versions for a parameter, oldest first.
func (m *Manager) List(ctx context.Context, parameterID string) ([]model.VersionRecord, error) {
	recs, err := m.store.ListVersions(ctx, parameterID)
	if err != nil {
		return nil, eris.Wrapf(err, "history: list %s", parameterID)
	}
	return recs, nil
}

// Get returns one version, requiring that it belong to the parameter.
func (m *Manager) Get(ctx context.Context, parameterID, versionID string) (*model.VersionRecord, error) {
	rec, err := m.store.GetVersion(ctx, parameterID, versionID)
	if err != nil {
		return nil, eris.Wrapf(err, "history: get %s", versionID)
	}
	return rec, nil
}
