package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelforge/paramd/internal/model"
)

type fakeTemplateStore struct {
	upserted []string
	failOn   string
}

func (f *fakeTemplateStore) UpsertTemplate(_ context.Context, tpl *model.Template) (*model.Template, error) {
	if tpl.Name == f.failOn {
		return nil, assert.AnError
	}
	f.upserted = append(f.upserted, tpl.Name)
	return tpl, nil
}

func TestSyncUpsertsAll(t *testing.T) {
	store := &fakeTemplateStore{}
	templates := []model.Template{
		{Name: "llm-defaults", TemplateLevel: model.LevelModel},
		{Name: "agent-defaults", TemplateLevel: model.LevelAgent},
	}

	n, err := Sync(context.Background(), store, templates)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"llm-defaults", "agent-defaults"}, store.upserted)
}

func TestSyncStopsAtFirstFailure(t *testing.T) {
	store := &fakeTemplateStore{failOn: "agent-defaults"}
	templates := []model.Template{
		{Name: "llm-defaults", TemplateLevel: model.LevelModel},
		{Name: "agent-defaults", TemplateLevel: model.LevelAgent},
		{Name: "never-reached", TemplateLevel: model.LevelSystem},
	}

	n, err := Sync(context.Background(), store, templates)
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, err.Error(), "sync template agent-defaults")
	assert.Equal(t, []string{"llm-defaults"}, store.upserted)
}

func TestSyncEmpty(t *testing.T) {
	n, err := Sync(context.Background(), &fakeTemplateStore{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
