package dataset_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/addrfmt/internal/dataset"
)

func newMockStore(t *testing.T) (*dataset.PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return dataset.NewPostgresStore(db, ""), mock
}

func TestPostgresStore_LoadSchema(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM address_schemas WHERE code = $1`)).
		WithArgs("US").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{"fmt":"%N%n%A","name":"UNITED STATES","sub_keys_count":51}`)))

	schema, err := store.LoadSchema(context.Background(), "US")
	require.NoError(t, err)
	assert.Equal(t, "%N%n%A", schema["fmt"])
	assert.Equal(t, "51", schema["sub_keys_count"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadSchemaNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM address_schemas WHERE code = $1`)).
		WithArgs("ZZ").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	_, err := store.LoadFallbackSchema(context.Background())
	assert.ErrorIs(t, err, dataset.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadSchemaQueryError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM address_schemas`)).
		WillReturnError(errors.New("connection reset"))

	_, err := store.LoadSchema(context.Background(), "US")
	require.Error(t, err)
	assert.NotErrorIs(t, err, dataset.ErrNotFound)
}

func TestPostgresStore_InvalidCode(t *testing.T) {
	store, _ := newMockStore(t)

	_, err := store.LoadSchema(context.Background(), "us'; DROP TABLE")
	assert.ErrorIs(t, err, dataset.ErrInvalidCode)
}

func TestPostgresStore_LoadCountryMeta(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT code, name FROM address_schemas WHERE code <> $1 ORDER BY code`)).
		WithArgs("ZZ").
		WillReturnRows(sqlmock.NewRows([]string{"code", "name"}).
			AddRow("CA", "Canada").
			AddRow("US", "United States"))

	countries, err := store.LoadCountryMeta(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []dataset.Country{{Code: "CA", Name: "Canada"}, {Code: "US", Name: "United States"}}, countries)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PutSchema(t *testing.T) {
	store, mock := newMockStore(t)
	data := `{"fmt":"%N%n%A"}`

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO address_schemas`)).
		WithArgs("US", data).
		WillReturnResult(sqlmock.NewResult(0, 1))

	loc, err := store.PutSchema(context.Background(), "US", []byte(data))
	require.NoError(t, err)
	assert.Equal(t, "address_schemas/US", loc)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PutSchemaRejectsNonObject(t *testing.T) {
	store, _ := newMockStore(t)

	_, err := store.PutSchema(context.Background(), "US", []byte(`<html>`))
	assert.ErrorIs(t, err, dataset.ErrCorrupt)
}

func TestPostgresStore_PutMeta(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE address_schemas SET name = $2 WHERE code = $1`)).
		WithArgs("CA", "Canada").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE address_schemas SET name = $2 WHERE code = $1`)).
		WithArgs("US", "United States").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.PutMeta(context.Background(), []dataset.Country{{Code: "CA", Name: "Canada"}, {Code: "US", Name: "United States"}})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PutMetaRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE address_schemas`)).
		WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	err := store.PutMeta(context.Background(), []dataset.Country{{Code: "CA", Name: "Canada"}})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
