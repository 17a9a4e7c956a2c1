package registry

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/modelforge/paramd/internal/model"
)

// TemplateStore is the slice of the parameter store the registry writes
// through. params.Store satisfies it.
type TemplateStore interface {
	UpsertTemplate(ctx context.Context, tpl *model.Template) (*model.Template, error)
}

// Sync upserts templates into the store by name and returns how many were
// written. The first failing template stops the sync; templates before it
// stay written.
func Sync(ctx context.Context, store TemplateStore, templates []model.Template) (int, error) {
	for i, tpl := range templates {
		if _, err := store.UpsertTemplate(ctx, &tpl); err != nil {
			return i, eris.Wrapf(err, "registry: sync template %s", tpl.Name)
		}
	}
	zap.L().Info("registry: templates synced", zap.Int("count", len(templates)))
	return len(templates), nil
}
