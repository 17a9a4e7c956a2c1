// Package params implements the parameter store and the write-policy
// service on top of it. The store persists raw rows; the service layers
// validation, override classification, optimistic concurrency, and
// version recording over it.
package params

import (
	"context"
	"fmt"

	"github.com/modelforge/paramd/internal/model"
)

// EntityFilter specifies criteria for listing catalog entities.
type EntityFilter struct {
	Level    *model.Level `json:"level,omitempty"`
	ParentID string       `json:"parent_id,omitempty"`
}

// ValueUpdate is one row of an atomic batch edit. RecordVersion marks
// updates whose value actually changed and therefore need a history row.
type ValueUpdate struct {
	ID            string `json:"id"`
	Value         string `json:"value"`
	RowVersion    int64  `json:"row_version"`
	UpdatedBy     string `json:"updated_by,omitempty"`
	RecordVersion bool   `json:"-"`
}

// Store defines the persistence interface for the parameter subsystem.
// Postgres and SQLite implementations must behave identically; the
// service and HTTP layers only ever see this interface.
type Store interface {
	// Parameters
	Get(ctx context.Context, level model.Level, entityID, name string) (*model.ParameterDefinition, error)
	GetByID(ctx context.Context, id string) (*model.ParameterDefinition, error)
	ListForEntity(ctx context.Context, level model.Level, entityID string) ([]model.ParameterDefinition, error)
	ListForPositions(ctx context.Context, positions []model.Position) ([]model.ParameterDefinition, error)
	Insert(ctx context.Context, def *model.ParameterDefinition) (*model.ParameterDefinition, error)
	Update(ctx context.Context, def *model.ParameterDefinition) (*model.ParameterDefinition, error)
	Delete(ctx context.Context, id string) error
	BatchUpdateValues(ctx context.Context, updates []ValueUpdate) error
	BatchDelete(ctx context.Context, ids []string) error

	// Version history
	AppendVersion(ctx context.Context, parameterID, value, updatedBy string) (*model.VersionRecord, error)
	ListVersions(ctx context.Context, parameterID string) ([]model.VersionRecord, error)
	GetVersion(ctx context.Context, parameterID, versionID string) (*model.VersionRecord, error)

	// Templates
	GetTemplate(ctx context.Context, id string) (*model.Template, error)
	GetTemplateByName(ctx context.Context, name string) (*model.Template, error)
	ListTemplates(ctx context.Context) ([]model.Template, error)
	UpsertTemplate(ctx context.Context, tpl *model.Template) (*model.Template, error)
	DeleteTemplate(ctx context.Context, id string) error

	// Entity catalog
	UpsertEntity(ctx context.Context, e model.Entity) error
	GetEntity(ctx context.Context, level model.Level, id string) (*model.Entity, error)
	ListEntities(ctx context.Context, filter EntityFilter) ([]model.Entity, error)
	DeleteAllEntities(ctx context.Context) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// positionKey renders a (level, entity_id, name) triple for error keys
// and log fields.
func positionKey(level model.Level, entityID, name string) string {
	return fmt.Sprintf("%s/%s/%s", level, entityID, name)
}

func sourceLevelArg(l *model.Level) *string {
	if l == nil {
		return nil
	}
	s := string(*l)
	return &s
}

func sourceLevelFromDB(s *string) *model.Level {
	if s == nil {
		return nil
	}
	l := model.Level(*s)
	return &l
}
