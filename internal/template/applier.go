// Package template applies named parameter bundles to hierarchy
// positions.
package template

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/modelforge/paramd/internal/model"
	"github.com/modelforge/paramd/internal/params"
	"github.com/modelforge/paramd/internal/validate"
)

// ParameterWriter is the slice of the parameter service the applier
// writes through, so every write gets validation, override
// classification, and version recording.
type ParameterWriter interface {
	Create(ctx context.Context, def model.ParameterDefinition, updatedBy string) (*model.ParameterDefinition, error)
	Update(ctx context.Context, def model.ParameterDefinition, updatedBy string) (*model.ParameterDefinition, error)
}

// Store is the read slice the applier needs: templates and the exact
// rows at the target position.
type Store interface {
	GetTemplate(ctx context.Context, id string) (*model.Template, error)
	Get(ctx context.Context, level model.Level, entityID, name string) (*model.ParameterDefinition, error)
}

// Applier binds template specs to concrete positions.
type Applier struct {
	store  Store
	writer ParameterWriter
}

func NewApplier(store Store, writer ParameterWriter) *Applier {
	return &Applier{store: store, writer: writer}
}

type outcome int

const (
	outcomeApplied outcome = iota
	outcomeSkipped
	outcomeOverridden
)

// Apply writes a template's parameters to (level, entityID) under the
// given strategy. Parameters are written independently: one failing
// validation or losing a concurrent edit lands in Failed without
// blocking its siblings, and buckets keep the template's parameter
// order.
func (a *Applier) Apply(ctx context.Context, templateID string, level model.Level, entityID string, strategy model.ApplyStrategy, updatedBy string) (*model.ApplyResult, error) {
	strategy, err := model.ParseApplyStrategy(string(strategy))
	if err != nil {
		return nil, err
	}
	if !level.Valid() {
		return nil, eris.Errorf("template: unknown level %q", level)
	}
	if entityID == "" {
		return nil, eris.New("template: entity id is empty")
	}

	tpl, err := a.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if tpl.TemplateLevel != "" && tpl.TemplateLevel != level {
		zap.L().Warn("template applied outside its intended level",
			zap.String("template", tpl.Name),
			zap.String("intended", string(tpl.TemplateLevel)),
			zap.String("target", string(level)),
		)
	}

	var result model.ApplyResult
	for _, spec := range tpl.Parameters {
		out, err := a.applyOne(ctx, spec, level, entityID, strategy, updatedBy)
		if err != nil {
			result.Failed = append(result.Failed, model.ApplyFailure{Name: spec.Name, Reason: failureReason(err)})
			continue
		}
		switch out {
		case outcomeApplied:
			result.Applied = append(result.Applied, spec.Name)
		case outcomeSkipped:
			result.Skipped = append(result.Skipped, spec.Name)
		case outcomeOverridden:
			result.Overridden = append(result.Overridden, spec.Name)
		}
	}

	res := result.Clean()
	zap.L().Info("template applied",
		zap.String("template", tpl.Name),
		zap.String("level", string(level)),
		zap.String("entity_id", entityID),
		zap.String("strategy", string(strategy)),
		zap.Int("applied", len(res.Applied)),
		zap.Int("skipped", len(res.Skipped)),
		zap.Int("overridden", len(res.Overridden)),
		zap.Int("failed", len(res.Failed)),
	)
	return &res, nil
}

func (a *Applier) applyOne(ctx context.Context, spec model.ParameterSpec, level model.Level, entityID string, strategy model.ApplyStrategy, updatedBy string) (outcome, error) {
	existing, err := a.store.Get(ctx, level, entityID, spec.Name)
	if err != nil && !params.IsNotFound(err) {
		return 0, err
	}

	if existing == nil {
		created, err := a.writer.Create(ctx, specToDefinition(spec, level, entityID), updatedBy)
		if err != nil {
			return 0, err
		}
		if created.IsOverride {
			return outcomeOverridden, nil
		}
		return outcomeApplied, nil
	}

	switch strategy {
	case model.StrategySkipExisting:
		return outcomeSkipped, nil
	case model.StrategyOverride:
		def := specToDefinition(spec, level, entityID)
		def.ID = existing.ID
		def.RowVersion = existing.RowVersion
		if _, err := a.writer.Update(ctx, def, updatedBy); err != nil {
			return 0, err
		}
		return outcomeOverridden, nil
	case model.StrategyMerge:
		merged, changed := mergeSpec(*existing, spec)
		if !changed {
			return outcomeSkipped, nil
		}
		if _, err := a.writer.Update(ctx, merged, updatedBy); err != nil {
			return 0, err
		}
		return outcomeApplied, nil
	default:
		return 0, eris.Errorf("template: unknown apply strategy %q", strategy)
	}
}

func specToDefinition(spec model.ParameterSpec, level model.Level, entityID string) model.ParameterDefinition {
	return model.ParameterDefinition{
		Level:        level,
		EntityID:     entityID,
		Name:         spec.Name,
		Value:        spec.Value,
		Type:         spec.Type,
		DefaultValue: spec.DefaultValue,
		Description:  spec.Description,
		IsRequired:   spec.IsRequired,
		Rules:        spec.Rules,
	}
}

// mergeSpec fills fields the template sets that the existing row leaves
// empty. Value, default, description, and rules merge; the type, the
// required flag, and any already-set value never change, so merge cannot
// clobber a configured row.
func mergeSpec(existing model.ParameterDefinition, spec model.ParameterSpec) (model.ParameterDefinition, bool) {
	merged := existing
	changed := false
	if merged.Value == "" && spec.Value != "" {
		merged.Value = spec.Value
		changed = true
	}
	if merged.DefaultValue == "" && spec.DefaultValue != "" {
		merged.DefaultValue = spec.DefaultValue
		changed = true
	}
	if merged.Description == "" && spec.Description != "" {
		merged.Description = spec.Description
		changed = true
	}
	if merged.Rules.IsZero() && !spec.Rules.IsZero() {
		merged.Rules = spec.Rules
		changed = true
	}
	return merged, changed
}

// failureReason flattens an error into the per-parameter reason string.
// Validation failures keep just the rule message; everything else keeps
// its full error text.
func failureReason(err error) string {
	var verr *validate.ValidationError
	if errors.As(err, &verr) {
		return verr.Reason
	}
	return err.Error()
}
