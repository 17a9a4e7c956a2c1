package params

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/modelforge/paramd/internal/db"
	"github.com/modelforge/paramd/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const parameterCols = `id, level, entity_id, name, value, type, default_value, description, is_required, rules, is_override, source_level, row_version, created_at, updated_at`

const insertVersionSQL = `INSERT INTO parameter_versions (id, parameter_id, version_number, value, updated_by, updated_at)
	 VALUES ($1, $2, (SELECT COALESCE(MAX(version_number), 0) + 1 FROM parameter_versions WHERE parameter_id = $2), $3, $4, $5)`

const appendVersionSQL = insertVersionSQL + `
	 RETURNING version_number`

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_parameter":       `SELECT ` + parameterCols + ` FROM parameters WHERE level = $1 AND entity_id = $2 AND name = $3`,
	"get_parameter_by_id": `SELECT ` + parameterCols + ` FROM parameters WHERE id = $1`,
	"list_for_entity":     `SELECT ` + parameterCols + ` FROM parameters WHERE level = $1 AND entity_id = $2 ORDER BY name`,
	"update_parameter":    `UPDATE parameters SET value = $1, default_value = $2, description = $3, is_required = $4, rules = $5, is_override = $6, source_level = $7, row_version = row_version + 1, updated_at = $8 WHERE id = $9 AND row_version = $10`,
	"append_version":      appendVersionSQL,
	"list_versions":       `SELECT id, parameter_id, version_number, value, updated_by, updated_at FROM parameter_versions WHERE parameter_id = $1 ORDER BY version_number ASC`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for use by subsystems that
// need direct query access (e.g., bulk entity catalog loads).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS parameters (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	level         TEXT NOT NULL,
	entity_id     TEXT NOT NULL,
	name          TEXT NOT NULL,
	value         TEXT NOT NULL,
	type          TEXT NOT NULL,
	default_value TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	is_required   BOOLEAN NOT NULL DEFAULT false,
	rules         JSONB NOT NULL DEFAULT '{}',
	is_override   BOOLEAN NOT NULL DEFAULT false,
	source_level  TEXT,
	row_version   BIGINT NOT NULL DEFAULT 1,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (level, entity_id, name)
);

CREATE INDEX IF NOT EXISTS idx_parameters_position ON parameters(level, entity_id);
CREATE INDEX IF NOT EXISTS idx_parameters_name ON parameters(name);

CREATE TABLE IF NOT EXISTS parameter_versions (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	parameter_id   TEXT NOT NULL,
	version_number INTEGER NOT NULL,
	value          TEXT NOT NULL,
	updated_by     TEXT NOT NULL DEFAULT '',
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (parameter_id, version_number)
);

CREATE INDEX IF NOT EXISTS idx_parameter_versions_parameter ON parameter_versions(parameter_id);

CREATE TABLE IF NOT EXISTS templates (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name        TEXT NOT NULL UNIQUE,
	level       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	parameters  JSONB NOT NULL DEFAULT '[]',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
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

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// isPGUniqueViolation reports a PostgreSQL unique_violation (23505).
func isPGUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *PostgresStore) Get(ctx context.Context, level model.Level, entityID, name string) (*model.ParameterDefinition, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+parameterCols+` FROM parameters WHERE level = $1 AND entity_id = $2 AND name = $3`,
		string(level), entityID, name,
	)
	def, err := scanParameter(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NewNotFound("parameter", positionKey(level, entityID, name))
		}
		return nil, eris.Wrapf(err, "postgres: get parameter %s", positionKey(level, entityID, name))
	}
	return def, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*model.ParameterDefinition, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+parameterCols+` FROM parameters WHERE id = $1`,
		id,
	)
	def, err := scanParameter(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NewNotFound("parameter", id)
		}
		return nil, eris.Wrapf(err, "postgres: get parameter %s", id)
	}
	return def, nil
}

func (s *PostgresStore) ListForEntity(ctx context.Context, level model.Level, entityID string) ([]model.ParameterDefinition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+parameterCols+` FROM parameters WHERE level = $1 AND entity_id = $2 ORDER BY name`,
		string(level), entityID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list parameters")
	}
	defer rows.Close()

	var defs []model.ParameterDefinition
	for rows.Next() {
		def, err := scanParameter(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan parameter")
		}
		defs = append(defs, *def)
	}
	return defs, eris.Wrap(rows.Err(), "postgres: list parameters iterate")
}

// ListForPositions fetches the rows for a whole ancestor chain with one
// statement, so resolution sees a single consistent snapshot.
func (s *PostgresStore) ListForPositions(ctx context.Context, positions []model.Position) ([]model.ParameterDefinition, error) {
	if len(positions) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	args := make([]any, 0, len(positions)*2)
	for i, pos := range positions {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "($%d, $%d)", i*2+1, i*2+2)
		args = append(args, string(pos.Level), pos.EntityID)
	}

	query := `SELECT ` + parameterCols + ` FROM parameters WHERE (level, entity_id) IN (` + sb.String() + `) ORDER BY name`
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list for positions")
	}
	defer rows.Close()

	var defs []model.ParameterDefinition
	for rows.Next() {
		def, err := scanParameter(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan parameter")
		}
		defs = append(defs, *def)
	}
	return defs, eris.Wrap(rows.Err(), "postgres: list for positions iterate")
}

func (s *PostgresStore) Insert(ctx context.Context, def *model.ParameterDefinition) (*model.ParameterDefinition, error) {
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
		return nil, eris.Wrap(err, "postgres: marshal rules")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO parameters (`+parameterCols+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		d.ID, string(d.Level), d.EntityID, d.Name, d.Value, string(d.Type),
		d.DefaultValue, d.Description, d.IsRequired, rulesJSON,
		d.IsOverride, sourceLevelArg(d.SourceLevel), d.RowVersion, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		if isPGUniqueViolation(err) {
			return nil, &ConflictError{
				Key:    positionKey(d.Level, d.EntityID, d.Name),
				Reason: "a definition already exists at this position",
			}
		}
		return nil, eris.Wrapf(err, "postgres: insert parameter %s", d.Name)
	}
	return &d, nil
}

// Update persists def guarded by its RowVersion stamp. Zero rows affected
// means either the row vanished or a concurrent writer moved the stamp.
func (s *PostgresStore) Update(ctx context.Context, def *model.ParameterDefinition) (*model.ParameterDefinition, error) {
	d := *def
	now := time.Now().UTC()

	rulesJSON, err := json.Marshal(d.Rules)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal rules")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE parameters SET value = $1, default_value = $2, description = $3, is_required = $4, rules = $5, is_override = $6, source_level = $7, row_version = row_version + 1, updated_at = $8 WHERE id = $9 AND row_version = $10`,
		d.Value, d.DefaultValue, d.Description, d.IsRequired, rulesJSON,
		d.IsOverride, sourceLevelArg(d.SourceLevel), now, d.ID, d.RowVersion,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: update parameter %s", d.ID)
	}
	if tag.RowsAffected() == 0 {
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

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM parameters WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete parameter %s", id)
	}
	if tag.RowsAffected() == 0 {
		return NewNotFound("parameter", id)
	}
	return nil
}

// BatchUpdateValues applies all updates in one transaction. The first
// conflict or missing row rolls back the whole batch and names the
// offending id.
func (s *PostgresStore) BatchUpdateValues(ctx context.Context, updates []ValueUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		for _, u := range updates {
			tag, err := tx.Exec(ctx,
				`UPDATE parameters SET value = $1, row_version = row_version + 1, updated_at = $2 WHERE id = $3 AND row_version = $4`,
				u.Value, now, u.ID, u.RowVersion,
			)
			if err != nil {
				return eris.Wrapf(err, "postgres: batch update %s", u.ID)
			}
			if tag.RowsAffected() == 0 {
				var exists bool
				if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM parameters WHERE id = $1)`, u.ID).Scan(&exists); err != nil {
					return eris.Wrapf(err, "postgres: batch update recheck %s", u.ID)
				}
				if !exists {
					return NewNotFound("parameter", u.ID)
				}
				return &ConflictError{Key: u.ID, Reason: "row version stamp moved"}
			}
			if u.RecordVersion {
				if _, err := tx.Exec(ctx, insertVersionSQL, uuid.New().String(), u.ID, u.Value, u.UpdatedBy, now); err != nil {
					return eris.Wrapf(err, "postgres: batch append version %s", u.ID)
				}
			}
		}
		return nil
	})
}

// BatchDelete removes all ids in one transaction; any missing id rolls
// back the whole batch.
func (s *PostgresStore) BatchDelete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, id := range ids {
			tag, err := tx.Exec(ctx, `DELETE FROM parameters WHERE id = $1`, id)
			if err != nil {
				return eris.Wrapf(err, "postgres: batch delete %s", id)
			}
			if tag.RowsAffected() == 0 {
				return NewNotFound("parameter", id)
			}
		}
		return nil
	})
}

// AppendVersion inserts the next history row for a parameter. The next
// version number is computed inside the insert statement; callers hold
// the row's optimistic-concurrency win, so max+1 cannot race for the
// same parameter.
func (s *PostgresStore) AppendVersion(ctx context.Context, parameterID, value, updatedBy string) (*model.VersionRecord, error) {
	rec := model.VersionRecord{
		ID:          uuid.New().String(),
		ParameterID: parameterID,
		Value:       value,
		UpdatedBy:   updatedBy,
		UpdatedAt:   time.Now().UTC(),
	}
	err := s.pool.QueryRow(ctx, appendVersionSQL,
		rec.ID, parameterID, value, updatedBy, rec.UpdatedAt,
	).Scan(&rec.VersionNumber)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: append version for %s", parameterID)
	}
	return &rec, nil
}

func (s *PostgresStore) ListVersions(ctx context.Context, parameterID string) ([]model.VersionRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, parameter_id, version_number, value, updated_by, updated_at FROM parameter_versions WHERE parameter_id = $1 ORDER BY version_number ASC`,
		parameterID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list versions")
	}
	defer rows.Close()

	var recs []model.VersionRecord
	for rows.Next() {
		var rec model.VersionRecord
		if err := rows.Scan(&rec.ID, &rec.ParameterID, &rec.VersionNumber, &rec.Value, &rec.UpdatedBy, &rec.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan version")
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list versions iterate")
}

func (s *PostgresStore) GetVersion(ctx context.Context, parameterID, versionID string) (*model.VersionRecord, error) {
	var rec model.VersionRecord
	err := s.pool.QueryRow(ctx,
		`SELECT id, parameter_id, version_number, value, updated_by, updated_at FROM parameter_versions WHERE parameter_id = $1 AND id = $2`,
		parameterID, versionID,
	).Scan(&rec.ID, &rec.ParameterID, &rec.VersionNumber, &rec.Value, &rec.UpdatedBy, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NewNotFound("version", versionID)
		}
		return nil, eris.Wrapf(err, "postgres: get version %s", versionID)
	}
	return &rec, nil
}

func (s *PostgresStore) GetTemplate(ctx context.Context, id string) (*model.Template, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, level, description, parameters, created_at, updated_at FROM templates WHERE id = $1`,
		id,
	)
	tpl, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NewNotFound("template", id)
		}
		return nil, eris.Wrapf(err, "postgres: get template %s", id)
	}
	return tpl, nil
}

func (s *PostgresStore) GetTemplateByName(ctx context.Context, name string) (*model.Template, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, level, description, parameters, created_at, updated_at FROM templates WHERE name = $1`,
		name,
	)
	tpl, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NewNotFound("template", name)
		}
		return nil, eris.Wrapf(err, "postgres: get template %s", name)
	}
	return tpl, nil
}

func (s *PostgresStore) ListTemplates(ctx context.Context) ([]model.Template, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, level, description, parameters, created_at, updated_at FROM templates ORDER BY name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list templates")
	}
	defer rows.Close()

	var tpls []model.Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan template")
		}
		tpls = append(tpls, *tpl)
	}
	return tpls, eris.Wrap(rows.Err(), "postgres: list templates iterate")
}

// UpsertTemplate inserts or replaces a template by name. The returned
// template carries the canonical row id (the existing one on update).
func (s *PostgresStore) UpsertTemplate(ctx context.Context, tpl *model.Template) (*model.Template, error) {
	t := *tpl
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	specJSON, err := json.Marshal(t.Parameters)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal template parameters")
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO templates (id, name, level, description, parameters, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)
		 ON CONFLICT (name) DO UPDATE SET level = $3, description = $4, parameters = $5, updated_at = $6
		 RETURNING id, created_at, updated_at`,
		t.ID, t.Name, string(t.TemplateLevel), t.Description, specJSON, now,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert template %s", t.Name)
	}
	return &t, nil
}

func (s *PostgresStore) DeleteTemplate(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete template %s", id)
	}
	if tag.RowsAffected() == 0 {
		return NewNotFound("template", id)
	}
	return nil
}

func (s *PostgresStore) UpsertEntity(ctx context.Context, e model.Entity) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO entities (level, id, name, parent_level, parent_id) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (level, id) DO UPDATE SET name = $3, parent_level = $4, parent_id = $5`,
		string(e.Level), e.ID, e.Name, sourceLevelArg(e.ParentLevel), e.ParentID,
	)
	return eris.Wrapf(err, "postgres: upsert entity %s/%s", e.Level, e.ID)
}

func (s *PostgresStore) GetEntity(ctx context.Context, level model.Level, id string) (*model.Entity, error) {
	var e model.Entity
	var parentLevel *string
	err := s.pool.QueryRow(ctx,
		`SELECT level, id, name, parent_level, parent_id FROM entities WHERE level = $1 AND id = $2`,
		string(level), id,
	).Scan(&e.Level, &e.ID, &e.Name, &parentLevel, &e.ParentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NewNotFound("entity", fmt.Sprintf("%s/%s", level, id))
		}
		return nil, eris.Wrapf(err, "postgres: get entity %s/%s", level, id)
	}
	e.ParentLevel = sourceLevelFromDB(parentLevel)
	return &e, nil
}

func (s *PostgresStore) ListEntities(ctx context.Context, filter EntityFilter) ([]model.Entity, error) {
	query := `SELECT level, id, name, parent_level, parent_id FROM entities WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Level != nil {
		query += fmt.Sprintf(` AND level = $%d`, argIdx)
		args = append(args, string(*filter.Level))
		argIdx++
	}
	if filter.ParentID != "" {
		query += fmt.Sprintf(` AND parent_id = $%d`, argIdx)
		args = append(args, filter.ParentID)
		argIdx++
	}
	query += ` ORDER BY level, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list entities")
	}
	defer rows.Close()

	var entities []model.Entity
	for rows.Next() {
		var e model.Entity
		var parentLevel *string
		if err := rows.Scan(&e.Level, &e.ID, &e.Name, &parentLevel, &e.ParentID); err != nil {
			return nil, eris.Wrap(err, "postgres: scan entity")
		}
		e.ParentLevel = sourceLevelFromDB(parentLevel)
		entities = append(entities, e)
	}
	return entities, eris.Wrap(rows.Err(), "postgres: list entities iterate")
}

func (s *PostgresStore) DeleteAllEntities(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM entities`)
	return eris.Wrap(err, "postgres: delete entities")
}

// rowScanner lets one scan helper cover pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanParameter(row rowScanner) (*model.ParameterDefinition, error) {
	var def model.ParameterDefinition
	var rulesJSON []byte
	var sourceLevel *string

	if err := row.Scan(&def.ID, &def.Level, &def.EntityID, &def.Name, &def.Value, &def.Type,
		&def.DefaultValue, &def.Description, &def.IsRequired, &rulesJSON,
		&def.IsOverride, &sourceLevel, &def.RowVersion, &def.CreatedAt, &def.UpdatedAt); err != nil {
		return nil, err
	}
	if len(rulesJSON) > 0 {
		if err := json.Unmarshal(rulesJSON, &def.Rules); err != nil {
			return nil, eris.Wrap(err, "unmarshal rules")
		}
	}
	def.SourceLevel = sourceLevelFromDB(sourceLevel)
	return &def, nil
}

func scanTemplate(row rowScanner) (*model.Template, error) {
	var tpl model.Template
	var specJSON []byte

	if err := row.Scan(&tpl.ID, &tpl.Name, &tpl.TemplateLevel, &tpl.Description, &specJSON, &tpl.CreatedAt, &tpl.UpdatedAt); err != nil {
		return nil, err
	}
	if len(specJSON) > 0 {
		if err := json.Unmarshal(specJSON, &tpl.Parameters); err != nil {
			return nil, eris.Wrap(err, "unmarshal template parameters")
		}
	}
	return &tpl, nil
}
