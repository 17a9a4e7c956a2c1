package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "entities",
		Columns:      []string{"id", "level"},
		ConflictKeys: []string{"id"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "entities",
		ConflictKeys: []string{"id"},
	}, [][]any{{"gpt-4o", "model"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:   "entities",
		Columns: []string{"id", "level"},
	}, [][]any{{"gpt-4o", "model"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_entities"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_entities"}, []string{"id", "level", "parent_id"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "entities"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	rows := [][]any{
		{"gpt-4o", "model", "vision"},
		{"vision", "model_capability", "chat"},
	}
	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "entities",
		Columns:      []string{"id", "level", "parent_id"},
		ConflictKeys: []string{"id"},
	}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_entities"}, []string{"id", "level"}).
		WillReturnError(fmt.Errorf("connection reset"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "entities",
		Columns:      []string{"id", "level"},
		ConflictKeys: []string{"id"},
	}, [][]any{{"gpt-4o", "model"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertStatement(t *testing.T) {
	sql := upsertStatement(UpsertConfig{
		Table:        "entities",
		Columns:      []string{"id", "level", "parent_id"},
		ConflictKeys: []string{"id"},
	}, "_tmp_upsert_entities")

	assert.Equal(t,
		`INSERT INTO "entities" ("id", "level", "parent_id") SELECT "id", "level", "parent_id" FROM "_tmp_upsert_entities" ON CONFLICT ("id") DO UPDATE SET "level" = EXCLUDED."level", "parent_id" = EXCLUDED."parent_id"`,
		sql)
}

func TestJoinIdentifiers(t *testing.T) {
	result := joinIdentifiers([]string{"id", "level", "parent_id"})
	assert.Equal(t, `"id", "level", "parent_id"`, result)
}

func TestWithTx_Commit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE parameters`).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err = WithTx(context.Background(), mock, func(tx pgx.Tx) error {
		_, err := tx.Exec(context.Background(), `UPDATE parameters SET value = $1`, "0.7")
		return err
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollbackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	err = WithTx(context.Background(), mock, func(tx pgx.Tx) error {
		return fmt.Errorf("boom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.NoError(t, mock.ExpectationsWereMet())
}
