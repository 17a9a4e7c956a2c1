// Package hierarchy maintains the entity catalog: which entities exist
// at each level and how they chain together. Entities are owned by the
// surrounding platform; the catalog mirrors just enough of them to
// answer parent lookups during resolution.
package hierarchy

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/modelforge/paramd/internal/model"
	"github.com/modelforge/paramd/internal/params"
	"github.com/modelforge/paramd/internal/resolve"
)

// EntityStore is the slice of the parameter store the catalog needs.
type EntityStore interface {
	UpsertEntity(ctx context.Context, e model.Entity) error
	GetEntity(ctx context.Context, level model.Level, id string) (*model.Entity, error)
	ListEntities(ctx context.Context, filter params.EntityFilter) ([]model.Entity, error)
}

// Catalog answers parent lookups against the entity store. It satisfies
// the resolver's EntityResolver interface.
type Catalog struct {
	store EntityStore
}

func NewCatalog(store EntityStore) *Catalog {
	return &Catalog{store: store}
}

// Parent returns the position an entity inherits from. The system
// position has no parent, and suppliers always chain to the system
// position without needing a catalog row. An entity missing from the
// catalog ends the chain with a warning, so resolution degrades to a
// shorter chain instead of failing on incomplete catalog data.
func (c *Catalog) Parent(ctx context.Context, level model.Level, entityID string) (resolve.ParentRef, bool, error) {
	switch level {
	case model.LevelSystem:
		return resolve.ParentRef{}, false, nil
	case model.LevelSupplier:
		return resolve.ParentRef{Level: model.LevelSystem, EntityID: model.SystemEntityID}, true, nil
	}

	e, err := c.store.GetEntity(ctx, level, entityID)
	if err != nil {
		if params.IsNotFound(err) {
			zap.L().Warn("entity missing from catalog, ancestor chain truncated",
				zap.String("level", string(level)),
				zap.String("entity_id", entityID),
			)
			return resolve.ParentRef{}, false, nil
		}
		return resolve.ParentRef{}, false, err
	}
	if e.ParentLevel == nil || e.ParentID == "" {
		return resolve.ParentRef{}, false, nil
	}
	return resolve.ParentRef{Level: *e.ParentLevel, EntityID: e.ParentID}, true, nil
}

// Register validates and stores one entity.
func (c *Catalog) Register(ctx context.Context, e model.Entity) error {
	if err := ValidateEntity(e); err != nil {
		return err
	}
	return c.store.UpsertEntity(ctx, e)
}

// Get looks up one catalog entry.
func (c *Catalog) Get(ctx context.Context, level model.Level, id string) (*model.Entity, error) {
	return c.store.GetEntity(ctx, level, id)
}

// List returns catalog entries matching the filter, ordered by level
// then id.
func (c *Catalog) List(ctx context.Context, filter params.EntityFilter) ([]model.Entity, error) {
	return c.store.ListEntities(ctx, filter)
}

// Sync upserts entities one at a time and returns how many landed. A bad
// row stops the sync with its index so the source file can be fixed.
func (c *Catalog) Sync(ctx context.Context, entities []model.Entity) (int, error) {
	for i, e := range entities {
		if err := c.Register(ctx, e); err != nil {
			return i, eris.Wrapf(err, "hierarchy: sync entity %s/%s", e.Level, e.ID)
		}
	}
	zap.L().Info("entity catalog synced", zap.Int("count", len(entities)))
	return len(entities), nil
}

// ValidateEntity checks a catalog entry against the fixed level order.
// The system entity is implicit and never stored; every other entity
// must name a parent at the immediately enclosing level, except
// suppliers whose parent is always the system position.
func ValidateEntity(e model.Entity) error {
	if !e.Level.Valid() {
		return eris.Errorf("hierarchy: unknown level %q", e.Level)
	}
	if e.Level == model.LevelSystem {
		return eris.New("hierarchy: the system entity is implicit and cannot be registered")
	}
	if e.ID == "" {
		return eris.Errorf("hierarchy: entity at level %s has no id", e.Level)
	}

	wantParent, _ := model.ParentOf(e.Level)
	if e.Level == model.LevelSupplier {
		if e.ParentLevel != nil && (*e.ParentLevel != model.LevelSystem || e.ParentID != model.SystemEntityID) {
			return eris.Errorf("hierarchy: supplier %s may only chain to the system position", e.ID)
		}
		return nil
	}

	if e.ParentLevel == nil || e.ParentID == "" {
		return eris.Errorf("hierarchy: entity %s/%s needs a parent at level %s", e.Level, e.ID, wantParent)
	}
	if *e.ParentLevel != wantParent {
		return eris.Errorf("hierarchy: parent of a %s must sit at %s, got %s", e.Level, wantParent, *e.ParentLevel)
	}
	return nil
}
