package hierarchy

import (
	"context"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/modelforge/paramd/internal/db"
	"github.com/modelforge/paramd/internal/model"
)

var entityColumns = []string{"level", "id", "name", "parent_level", "parent_id"}

// entityFile is the on-disk YAML shape for catalog imports.
type entityFile struct {
	Entities []entityEntry `yaml:"entities"`
}

type entityEntry struct {
	Level       string `yaml:"level"`
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	ParentLevel string `yaml:"parent_level"`
	ParentID    string `yaml:"parent_id"`
}

func (raw entityEntry) toEntity() (model.Entity, error) {
	level, err := model.ParseLevel(raw.Level)
	if err != nil {
		return model.Entity{}, err
	}
	e := model.Entity{
		Level:    level,
		ID:       raw.ID,
		Name:     raw.Name,
		ParentID: raw.ParentID,
	}
	if raw.ParentLevel != "" {
		pl, err := model.ParseLevel(raw.ParentLevel)
		if err != nil {
			return model.Entity{}, err
		}
		e.ParentLevel = &pl
	}
	// Suppliers may omit their parent; it is always the system position.
	if level == model.LevelSupplier && e.ParentLevel == nil {
		pl := model.LevelSystem
		e.ParentLevel = &pl
		e.ParentID = model.SystemEntityID
	}
	if err := ValidateEntity(e); err != nil {
		return model.Entity{}, err
	}
	return e, nil
}

// LoadEntitiesFromFile reads an entity catalog from a YAML file.
func LoadEntitiesFromFile(path string) ([]model.Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "hierarchy: read %s", path)
	}
	var f entityFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "hierarchy: parse %s", path)
	}

	entities := make([]model.Entity, 0, len(f.Entities))
	for i, raw := range f.Entities {
		e, err := raw.toEntity()
		if err != nil {
			return nil, eris.Wrapf(err, "hierarchy: entry %d in %s", i, path)
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// BulkLoad pushes a catalog into Postgres with COPY. Without replace the
// rows are upserted over the existing catalog; with replace the catalog
// is cleared and loaded fresh inside one transaction.
func BulkLoad(ctx context.Context, pool db.Pool, entities []model.Entity, replace bool) (int64, error) {
	rows := make([][]any, 0, len(entities))
	for _, e := range entities {
		if err := ValidateEntity(e); err != nil {
			return 0, err
		}
		rows = append(rows, []any{string(e.Level), e.ID, e.Name, levelArg(e.ParentLevel), e.ParentID})
	}

	if replace {
		var copied int64
		err := db.WithTx(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, `DELETE FROM entities`); err != nil {
				return eris.Wrap(err, "hierarchy: clear entities")
			}
			n, err := tx.CopyFrom(ctx, pgx.Identifier{"entities"}, entityColumns, pgx.CopyFromRows(rows))
			if err != nil {
				return eris.Wrap(err, "hierarchy: copy entities")
			}
			copied = n
			return nil
		})
		return copied, err
	}

	return db.BulkUpsert(ctx, pool, db.UpsertConfig{
		Table:        "entities",
		Columns:      entityColumns,
		ConflictKeys: []string{"level", "id"},
		UpdateCols:   []string{"name", "parent_level", "parent_id"},
	}, rows)
}

func levelArg(l *model.Level) *string {
	if l == nil {
		return nil
	}
	s := string(*l)
	return &s
}
