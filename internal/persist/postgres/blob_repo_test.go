package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/campus-kit/internal/persist"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func TestBlobRepo_Save_Upserts(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewBlobRepo(db, "alice")

	mock.ExpectExec(`INSERT INTO cache_blobs \(key, value, updated_at\) VALUES \(\$1,\$2,now\(\)\)`).
		WithArgs("alice/fdutools/bus.json", []byte(`{"workday":[]}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, r.Save(context.Background(), "fdutools/bus.json", []byte(`{"workday":[]}`)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBlobRepo_Save_Error(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewBlobRepo(db, "")

	mock.ExpectExec(`INSERT INTO cache_blobs`).
		WithArgs("k", []byte("v")).
		WillReturnError(errors.New("db down"))

	err := r.Save(context.Background(), "k", []byte("v"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "db down")
}

func TestBlobRepo_Load_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewBlobRepo(db, "alice")

	mock.ExpectQuery(`SELECT value FROM cache_blobs WHERE key=\$1`).
		WithArgs("alice/danke/course-groups.json").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow([]byte(`{"hash":"h1"}`)))

	got, err := r.Load(context.Background(), "danke/course-groups.json")
	require.NoError(t, err)
	require.Equal(t, `{"hash":"h1"}`, string(got))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBlobRepo_Load_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewBlobRepo(db, "alice")

	mock.ExpectQuery(`SELECT value FROM cache_blobs WHERE key=\$1`).
		WithArgs("alice/missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := r.Load(context.Background(), "missing")
	require.ErrorIs(t, err, persist.ErrNotFound)
}

func TestBlobRepo_RemoveAndPrefix(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewBlobRepo(db, "alice")

	mock.ExpectExec(`DELETE FROM cache_blobs WHERE key=\$1`).
		WithArgs("alice/fdutools/bus.json").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM cache_blobs WHERE starts_with\(key, \$1\)`).
		WithArgs("alice/fdutools/").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	ctx := context.Background()
	require.NoError(t, r.Remove(ctx, "fdutools/bus.json"))
	require.NoError(t, r.RemovePrefix(ctx, "fdutools/"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBlobRepo_Expire(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewBlobRepo(db, "alice")
	before := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`DELETE FROM cache_blobs WHERE starts_with\(key, \$1\) AND updated_at < \$2`).
		WithArgs("alice/", before).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	n, err := r.Expire(context.Background(), before)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}
