package params

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/modelforge/paramd/internal/history"
	"github.com/modelforge/paramd/internal/model"
	"github.com/modelforge/paramd/internal/validate"
)

// AncestryResolver answers whether a name resolves at a position by
// walking the entity's ancestor chain. Satisfied by *resolve.Resolver.
// A nil result with nil error means the name is not defined anywhere in
// the chain.
type AncestryResolver interface {
	ResolveOne(ctx context.Context, level model.Level, entityID, name string) (*model.EffectiveParameter, error)
}

// BatchEdit is one entry of an atomic multi-row value edit.
type BatchEdit struct {
	ID         string `json:"id"`
	Value      string `json:"value"`
	RowVersion int64  `json:"row_version"`
}

// Service owns write policy for parameters: validation first, override
// classification, optimistic concurrency, then version recording.
type Service struct {
	store    Store
	resolver AncestryResolver
	history  *history.Manager
}

func NewService(store Store, resolver AncestryResolver, hist *history.Manager) *Service {
	return &Service{store: store, resolver: resolver, history: hist}
}

// Create validates and inserts a new parameter row. When the name is
// already resolvable from a strict ancestor, the row is stored as an
// override shadowing that ancestor.
func (s *Service) Create(ctx context.Context, def model.ParameterDefinition, updatedBy string) (*model.ParameterDefinition, error) {
	if err := checkPosition(def.Level, def.EntityID, def.Name); err != nil {
		return nil, err
	}
	if !def.Type.Valid() {
		return nil, &validate.ValidationError{Rule: "type", Value: string(def.Type), Reason: fmt.Sprintf("unknown value type %q", def.Type)}
	}
	if err := validate.Validate(def.Type, def.Value, def.Rules); err != nil {
		return nil, eris.Wrapf(err, "params: create %s", positionKey(def.Level, def.EntityID, def.Name))
	}

	def.IsOverride = false
	def.SourceLevel = nil
	eff, err := s.resolver.ResolveOne(ctx, def.Level, def.EntityID, def.Name)
	if err != nil {
		return nil, eris.Wrapf(err, "params: classify %s", positionKey(def.Level, def.EntityID, def.Name))
	}
	if eff != nil && eff.Origin == model.OriginInherited {
		def.IsOverride = true
		src := eff.SourceLevel
		def.SourceLevel = &src
	}

	created, err := s.store.Insert(ctx, &def)
	if err != nil {
		return nil, err
	}
	if _, err := s.history.Record(ctx, created.ID, created.Value, updatedBy); err != nil {
		return nil, err
	}

	zap.L().Info("params: created",
		zap.String("id", created.ID),
		zap.String("position", positionKey(created.Level, created.EntityID, created.Name)),
		zap.Bool("override", created.IsOverride),
	)
	return created, nil
}

// Update applies caller changes to an existing row. The RowVersion stamp
// from the caller's last read rides along; a stale stamp surfaces as
// ConflictError. Row identity and override classification never change
// on update.
func (s *Service) Update(ctx context.Context, def model.ParameterDefinition, updatedBy string) (*model.ParameterDefinition, error) {
	existing, err := s.store.GetByID(ctx, def.ID)
	if err != nil {
		return nil, err
	}

	if def.Type == "" {
		def.Type = existing.Type
	}
	if !def.Type.Valid() {
		return nil, &validate.ValidationError{Rule: "type", Value: string(def.Type), Reason: fmt.Sprintf("unknown value type %q", def.Type)}
	}
	if err := validate.Validate(def.Type, def.Value, def.Rules); err != nil {
		return nil, eris.Wrapf(err, "params: update %s", def.ID)
	}

	def.Level = existing.Level
	def.EntityID = existing.EntityID
	def.Name = existing.Name
	def.IsOverride = existing.IsOverride
	def.SourceLevel = existing.SourceLevel
	def.CreatedAt = existing.CreatedAt

	updated, err := s.store.Update(ctx, &def)
	if err != nil {
		return nil, err
	}
	if updated.Value != existing.Value {
		if _, err := s.history.Record(ctx, updated.ID, updated.Value, updatedBy); err != nil {
			return nil, err
		}
	}

	zap.L().Info("params: updated",
		zap.String("id", updated.ID),
		zap.Int64("row_version", updated.RowVersion),
	)
	return updated, nil
}

// Delete removes the row at a position. A name visible there only
// through inheritance has no row of its own; deleting it is refused with
// InheritedParameterError so the ancestor's definition stays untouched.
func (s *Service) Delete(ctx context.Context, level model.Level, entityID, name string) error {
	def, err := s.store.Get(ctx, level, entityID, name)
	if err != nil {
		if IsNotFound(err) {
			eff, rerr := s.resolver.ResolveOne(ctx, level, entityID, name)
			if rerr != nil {
				return eris.Wrapf(rerr, "params: delete %s", positionKey(level, entityID, name))
			}
			if eff != nil {
				return &InheritedParameterError{Level: level, EntityID: entityID, Name: name, Source: eff.SourceLevel}
			}
		}
		return err
	}

	if err := s.store.Delete(ctx, def.ID); err != nil {
		return err
	}
	zap.L().Info("params: deleted",
		zap.String("id", def.ID),
		zap.String("position", positionKey(level, entityID, name)),
	)
	return nil
}

// DeleteByID removes a row by surrogate id.
func (s *Service) DeleteByID(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	zap.L().Info("params: deleted", zap.String("id", id))
	return nil
}

// Revert writes a historical value back as the current one. The value
// re-runs current validation rules, the write respects the row's
// concurrency stamp, and a new version record is appended. Reverting to
// the value the row already holds is a no-op.
func (s *Service) Revert(ctx context.Context, parameterID, versionID, updatedBy string) (*model.ParameterDefinition, error) {
	def, err := s.store.GetByID(ctx, parameterID)
	if err != nil {
		return nil, err
	}
	rec, err := s.history.Get(ctx, parameterID, versionID)
	if err != nil {
		return nil, err
	}
	if rec.Value == def.Value {
		return def, nil
	}

	// Rules may have tightened since the version was recorded; the old
	// value must still pass them today.
	if err := validate.Validate(def.Type, rec.Value, def.Rules); err != nil {
		return nil, eris.Wrapf(err, "params: revert %s to version %d", parameterID, rec.VersionNumber)
	}

	def.Value = rec.Value
	updated, err := s.store.Update(ctx, def)
	if err != nil {
		return nil, err
	}
	if _, err := s.history.Record(ctx, updated.ID, updated.Value, updatedBy); err != nil {
		return nil, err
	}

	zap.L().Info("params: reverted",
		zap.String("id", parameterID),
		zap.Int("to_version", rec.VersionNumber),
	)
	return updated, nil
}

// BatchUpdate validates every edit up front, then applies all of them in
// one transaction; the first stale stamp or missing row rolls the whole
// batch back and the error names the offending id.
func (s *Service) BatchUpdate(ctx context.Context, edits []BatchEdit, updatedBy string) error {
	if len(edits) == 0 {
		return nil
	}

	updates := make([]ValueUpdate, 0, len(edits))
	for _, e := range edits {
		def, err := s.store.GetByID(ctx, e.ID)
		if err != nil {
			return err
		}
		if err := validate.Validate(def.Type, e.Value, def.Rules); err != nil {
			return eris.Wrapf(err, "params: batch update %s", e.ID)
		}
		updates = append(updates, ValueUpdate{
			ID:            e.ID,
			Value:         e.Value,
			RowVersion:    e.RowVersion,
			UpdatedBy:     updatedBy,
			RecordVersion: e.Value != def.Value,
		})
	}

	if err := s.store.BatchUpdateValues(ctx, updates); err != nil {
		return err
	}
	zap.L().Info("params: batch updated", zap.Int("count", len(updates)))
	return nil
}

// BatchDelete removes all ids atomically; a missing id rolls back the
// whole batch.
func (s *Service) BatchDelete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.store.BatchDelete(ctx, ids); err != nil {
		return err
	}
	zap.L().Info("params: batch deleted", zap.Int("count", len(ids)))
	return nil
}

func checkPosition(level model.Level, entityID, name string) error {
	if !level.Valid() {
		return &validate.ValidationError{Rule: "level", Value: string(level), Reason: fmt.Sprintf("unknown level %q", level)}
	}
	if entityID == "" {
		return &validate.ValidationError{Rule: "entity_id", Value: "", Reason: "entity_id must be set"}
	}
	if level == model.LevelSystem && entityID != model.SystemEntityID {
		return &validate.ValidationError{Rule: "entity_id", Value: entityID, Reason: fmt.Sprintf("system level has a single entity %q", model.SystemEntityID)}
	}
	if name == "" {
		return &validate.ValidationError{Rule: "name", Value: "", Reason: "name must be set"}
	}
	return nil
}
