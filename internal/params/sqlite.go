package params

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	sqlite "modernc.org/sqlite"

	"github.com/modelforge/paramd/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS parameters (
	id            TEXT PRIMARY KEY,
	level         TEXT NOT NULL,
	entity_id     TEXT NOT NULL,
	name          TEXT NOT NULL,
	value         TEXT NOT NULL,
	type          TEXT NOT NULL,
	default_value TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	is_required   BOOLEAN NOT NULL DEFAULT 0,
	rules         TEXT NOT NULL DEFAULT '{}',
	is_override   BOOLEAN NOT NULL DEFAULT 0,
	source_level  TEXT,
	row_version   INTEGER NOT NULL DEFAULT 1,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (level, entity_id, name)
);

CREATE INDEX IF NOT EXISTS idx_parameters_position ON parameters(level, entity_id);
CREATE INDEX IF NOT EXISTS idx_parameters_name ON parameters(name);

CREATE TABLE IF NOT EXISTS parameter_versions (
	id             TEXT PRIMARY KEY,
	parameter_id   TEXT NOT NULL,
	version_number INTEGER NOT NULL,
	value          TEXT NOT NULL,
	updated_by     TEXT NOT NULL DEFAULT '',
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (parameter_id, version_number)
);

CREATE INDEX IF NOT EXISTS idx_parameter_versions_parameter ON parameter_versions(parameter_id);

CREATE TABLE IF NOT EXISTS templates (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	level       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	parameters  TEXT NOT NULL DEFAULT '[]',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS entities (
	level        TEXT NOT NULL,
	id           TEXT NOT NULL,
	name         TEXT NOT NULL DEFAULT '',
	parent_level TEXT,
	parent_id    TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (level, id)
);

CREATE INDEX IF NOT EXISTS idx_entities_parent ON entities(parent_level, parent_id);
`

const sqliteInsertVersionSQL = `INSERT INTO parameter_versions (id, parameter_id, version_number, value, updated_by, updated_at)
	 VALUES (?, ?, (SELECT COALESCE(MAX(version_number), 0) + 1 FROM parameter_versions WHERE parameter_id = ?), ?, ?, ?)`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isSQLiteUniqueViolation reports SQLITE_CONSTRAINT_UNIQUE (2067) or
// SQLITE_CONSTRAINT_PRIMARYKEY (1555).
func isSQLiteUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == 2067 || code == 1555
	}
	return false
}

func (s *SQLiteStore) Get(ctx context.Context, level model.Level, entityID, name string) (*model.ParameterDefinition, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+parameterCols+` FROM parameters WHERE level = ? AND entity_id = ? AND name = ?`,
		string(level), entityID, name,
	)
	def, err := scanParameter(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewNotFound("parameter", positionKey(level, entityID, name))
		}
		return nil, eris.Wrapf(err, "sqlite: get parameter %s", positionKey(level, entityID, name))
	}
	return def, nil
}

func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*model.ParameterDefinition, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+parameterCols+` FROM parameters WHERE id = ?`,
		id,
	)
	def, err := scanParameter(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewNotFound("parameter", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get parameter %s", id)
	}
	return def, nil
}

func (s *SQLiteStore) ListForEntity(ctx context.Context, level model.Level, entityID string) ([]model.ParameterDefinition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+parameterCols+` FROM parameters WHERE level = ? AND entity_id = ? ORDER BY name`,
		string(level), entityID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list parameters")
	}
	defer rows.Close()

	var defs []model.ParameterDefinition
	for rows.Next() {
		def, err := scanParameter(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan parameter")
		}
		defs = append(defs, *def)
	}
	return defs, eris.Wrap(rows.Err(), "sqlite: list parameters iterate")
}

func (s *SQLiteStore) ListForPositions(ctx context.Context, positions []model.Position) ([]model.ParameterDefinition, error) {
	if len(positions) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(positions))
	args := make([]any, 0, len(positions)*2)
	for i, pos := range positions {
		placeholders[i] = "(?, ?)"
		args = append(args, string(pos.Level), pos.EntityID)
	}

	query := `SELECT ` + parameterCols + ` FROM parameters WHERE (level, entity_id) IN (` + strings.Join(placeholders, ", ") + `) ORDER BY name`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list for positions")
	}
	defer rows.Close()

	var defs []model.ParameterDefinition
	for rows.Next() {
		def, err := scanParameter(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan parameter")
		}
		defs = append(defs, *def)
	}
	return defs, eris.Wrap(rows.Err(), "sqlite: list for positions iterate")
}

func (s *SQLiteStore) Insert(ctx context.Context, def *model.ParameterDefinition) (*model.ParameterDefinition, error) {
	d := *def
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	d.RowVersion = 1
	d.CreatedAt = now
	d.UpdatedAt = now

	rulesJSON, err := json.Marshal(d.Rules)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal rules")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO parameters (`+parameterCols+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, string(d.Level), d.EntityID, d.Name, d.Value, string(d.Type),
		d.DefaultValue, d.Description, d.IsRequired, string(rulesJSON),
		d.IsOverride, sourceLevelArg(d.SourceLevel), d.RowVersion, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return nil, &ConflictError{
				Key:    positionKey(d.Level, d.EntityID, d.Name),
				Reason: "a definition already exists at this position",
			}
		}
		return nil, eris.Wrapf(err, "sqlite: insert parameter %s", d.Name)
	}
	return &d, nil
}

func (s *SQLiteStore) Update(ctx context.Context, def *model.ParameterDefinition) (*model.ParameterDefinition, error) {
	d := *def
	now := time.Now().UTC()

	rulesJSON, err := json.Marshal(d.Rules)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal rules")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE parameters SET value = ?, default_value = ?, description = ?, is_required = ?, rules = ?, is_override = ?, source_level = ?, row_version = row_version + 1, updated_at = ? WHERE id = ? AND row_version = ?`,
		d.Value, d.DefaultValue, d.Description, d.IsRequired, string(rulesJSON),
		d.IsOverride, sourceLevelArg(d.SourceLevel), now, d.ID, d.RowVersion,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update parameter %s", d.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		_, getErr := s.GetByID(ctx, d.ID)
		switch {
		case IsNotFound(getErr):
			return nil, NewNotFound("parameter", d.ID)
		case getErr != nil:
			return nil, getErr
		default:
			return nil, &ConflictError{Key: d.ID, Reason: "row version stamp moved"}
		}
	}

	d.RowVersion++
	d.UpdatedAt = now
	return &d, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM parameters WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete parameter %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return NewNotFound("parameter", id)
	}
	return nil
}

func (s *SQLiteStore) BatchUpdateValues(ctx context.Context, updates []ValueUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, u := range updates {
		res, err := tx.ExecContext(ctx,
			`UPDATE parameters SET value = ?, row_version = row_version + 1, updated_at = ? WHERE id = ? AND row_version = ?`,
			u.Value, now, u.ID, u.RowVersion,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: batch update %s", u.ID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return eris.Wrap(err, "sqlite: rows affected")
		}
		if n == 0 {
			var exists bool
			if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM parameters WHERE id = ?)`, u.ID).Scan(&exists); err != nil {
				return eris.Wrapf(err, "sqlite: batch update recheck %s", u.ID)
			}
			if !exists {
				return NewNotFound("parameter", u.ID)
			}
			return &ConflictError{Key: u.ID, Reason: "row version stamp moved"}
		}
		if u.RecordVersion {
			if _, err := tx.ExecContext(ctx, sqliteInsertVersionSQL,
				uuid.New().String(), u.ID, u.ID, u.Value, u.UpdatedBy, now); err != nil {
				return eris.Wrapf(err, "sqlite: batch append version %s", u.ID)
			}
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit batch update")
}

func (s *SQLiteStore) BatchDelete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	for _, id := range ids {
		res, err := tx.ExecContext(ctx, `DELETE FROM parameters WHERE id = ?`, id)
		if err != nil {
			return eris.Wrapf(err, "sqlite: batch delete %s", id)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return eris.Wrap(err, "sqlite: rows affected")
		}
		if n == 0 {
			return NewNotFound("parameter", id)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit batch delete")
}

func (s *SQLiteStore) AppendVersion(ctx context.Context, parameterID, value, updatedBy string) (*model.VersionRecord, error) {
	rec := model.VersionRecord{
		ID:          uuid.New().String(),
		ParameterID: parameterID,
		Value:       value,
		UpdatedBy:   updatedBy,
		UpdatedAt:   time.Now().UTC(),
	}
	err := s.db.QueryRowContext(ctx, sqliteInsertVersionSQL+` RETURNING version_number`,
		rec.ID, parameterID, parameterID, value, updatedBy, rec.UpdatedAt,
	).Scan(&rec.VersionNumber)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: append version for %s", parameterID)
	}
	return &rec, nil
}

func (s *SQLiteStore) ListVersions(ctx context.Context, parameterID string) ([]model.VersionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, parameter_id, version_number, value, updated_by, updated_at FROM parameter_versions WHERE parameter_id = ? ORDER BY version_number ASC`,
		parameterID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list versions")
	}
	defer rows.Close()

	var recs []model.VersionRecord
	for rows.Next() {
		var rec model.VersionRecord
		if err := rows.Scan(&rec.ID, &rec.ParameterID, &rec.VersionNumber, &rec.Value, &rec.UpdatedBy, &rec.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan version")
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list versions iterate")
}

func (s *SQLiteStore) GetVersion(ctx context.Context, parameterID, versionID string) (*model.VersionRecord, error) {
	var rec model.VersionRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT id, parameter_id, version_number, value, updated_by, updated_at FROM parameter_versions WHERE parameter_id = ? AND id = ?`,
		parameterID, versionID,
	).Scan(&rec.ID, &rec.ParameterID, &rec.VersionNumber, &rec.Value, &rec.UpdatedBy, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewNotFound("version", versionID)
		}
		return nil, eris.Wrapf(err, "sqlite: get version %s", versionID)
	}
	return &rec, nil
}

func (s *SQLiteStore) GetTemplate(ctx context.Context, id string) (*model.Template, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, level, description, parameters, created_at, updated_at FROM templates WHERE id = ?`,
		id,
	)
	tpl, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewNotFound("template", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get template %s", id)
	}
	return tpl, nil
}

func (s *SQLiteStore) GetTemplateByName(ctx context.Context, name string) (*model.Template, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, level, description, parameters, created_at, updated_at FROM templates WHERE name = ?`,
		name,
	)
	tpl, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewNotFound("template", name)
		}
		return nil, eris.Wrapf(err, "sqlite: get template %s", name)
	}
	return tpl, nil
}

func (s *SQLiteStore) ListTemplates(ctx context.Context) ([]model.Template, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, level, description, parameters, created_at, updated_at FROM templates ORDER BY name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list templates")
	}
	defer rows.Close()

	var tpls []model.Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan template")
		}
		tpls = append(tpls, *tpl)
	}
	return tpls, eris.Wrap(rows.Err(), "sqlite: list templates iterate")
}

func (s *SQLiteStore) UpsertTemplate(ctx context.Context, tpl *model.Template) (*model.Template, error) {
	t := *tpl
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	specJSON, err := json.Marshal(t.Parameters)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal template parameters")
	}

	err = s.db.QueryRowContext(ctx,
		`INSERT INTO templates (id, name, level, description, parameters, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET level = excluded.level, description = excluded.description, parameters = excluded.parameters, updated_at = excluded.updated_at
		 RETURNING id, created_at, updated_at`,
		t.ID, t.Name, string(t.TemplateLevel), t.Description, string(specJSON), now, now,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert template %s", t.Name)
	}
	return &t, nil
}

func (s *SQLiteStore) DeleteTemplate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete template %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return NewNotFound("template", id)
	}
	return nil
}

func (s *SQLiteStore) UpsertEntity(ctx context.Context, e model.Entity) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entities (level, id, name, parent_level, parent_id) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (level, id) DO UPDATE SET name = excluded.name, parent_level = excluded.parent_level, parent_id = excluded.parent_id`,
		string(e.Level), e.ID, e.Name, sourceLevelArg(e.ParentLevel), e.ParentID,
	)
	return eris.Wrapf(err, "sqlite: upsert entity %s/%s", e.Level, e.ID)
}

func (s *SQLiteStore) GetEntity(ctx context.Context, level model.Level, id string) (*model.Entity, error) {
	var e model.Entity
	var parentLevel *string
	err := s.db.QueryRowContext(ctx,
		`SELECT level, id, name, parent_level, parent_id FROM entities WHERE level = ? AND id = ?`,
		string(level), id,
	).Scan(&e.Level, &e.ID, &e.Name, &parentLevel, &e.ParentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewNotFound("entity", fmt.Sprintf("%s/%s", level, id))
		}
		return nil, eris.Wrapf(err, "sqlite: get entity %s/%s", level, id)
	}
	e.ParentLevel = sourceLevelFromDB(parentLevel)
	return &e, nil
}

func (s *SQLiteStore) ListEntities(ctx context.Context, filter EntityFilter) ([]model.Entity, error) {
	query := `SELECT level, id, name, parent_level, parent_id FROM entities WHERE 1=1`
	var args []any

	if filter.Level != nil {
		query += ` AND level = ?`
		args = append(args, string(*filter.Level))
	}
	if filter.ParentID != "" {
		query += ` AND parent_id = ?`
		args = append(args, filter.ParentID)
	}
	query += ` ORDER BY level, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list entities")
	}
	defer rows.Close()

	var entities []model.Entity
	for rows.Next() {
		var e model.Entity
		var parentLevel *string
		if err := rows.Scan(&e.Level, &e.ID, &e.Name, &parentLevel, &e.ParentID); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan entity")
		}
		e.ParentLevel = sourceLevelFromDB(parentLevel)
		entities = append(entities, e)
	}
	return entities, eris.Wrap(rows.Err(), "sqlite: list entities iterate")
}

func (s *SQLiteStore) DeleteAllEntities(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM entities`)
	return eris.Wrap(err, "sqlite: delete entities")
}
