package dataset_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/addrfmt/internal/dataset"
	"github.com/dukerupert/addrfmt/internal/storage"
)

func newStorageStore(t *testing.T) (*dataset.StorageStore, *storage.LocalStorage) {
	t.Helper()
	local, err := storage.NewLocalStorage(t.TempDir(), "")
	require.NoError(t, err)
	return dataset.NewStorageStore(local, "i18n", ""), local
}

func TestStorageStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, local := newStorageStore(t)

	loc, err := store.PutSchema(ctx, "US", []byte(`{"fmt":"%N%n%A","name":"UNITED STATES"}`))
	require.NoError(t, err)
	assert.Equal(t, local.URL("i18n/US.json"), loc)

	exists, err := local.Exists(ctx, "i18n/US.json")
	require.NoError(t, err)
	assert.True(t, exists)

	schema, err := store.LoadSchema(ctx, "US")
	require.NoError(t, err)
	assert.Equal(t, "UNITED STATES", schema["name"])
}

func TestStorageStore_Fallback(t *testing.T) {
	ctx := context.Background()
	store, _ := newStorageStore(t)

	_, err := store.LoadFallbackSchema(ctx)
	assert.ErrorIs(t, err, dataset.ErrNotFound)

	_, err = store.PutSchema(ctx, "ZZ", []byte(`{"fmt":"%N%n%O%n%A%n%C"}`))
	require.NoError(t, err)

	schema, err := store.LoadFallbackSchema(ctx)
	require.NoError(t, err)
	assert.Equal(t, "%N%n%O%n%A%n%C", schema["fmt"])
}

func TestStorageStore_Meta(t *testing.T) {
	ctx := context.Background()
	store, _ := newStorageStore(t)

	_, err := store.LoadCountryMeta(ctx)
	assert.ErrorIs(t, err, dataset.ErrNotFound)

	countries := []dataset.Country{{Code: "CA", Name: "Canada"}, {Code: "US", Name: "United States"}}
	require.NoError(t, store.PutMeta(ctx, countries))

	got, err := store.LoadCountryMeta(ctx)
	require.NoError(t, err)
	assert.Equal(t, countries, got)
}

func TestStorageStore_CorruptRecord(t *testing.T) {
	ctx := context.Background()
	store, local := newStorageStore(t)

	_, err := local.Put(ctx, "i18n/US.json", strings.NewReader("not json"), "application/json")
	require.NoError(t, err)

	_, err = store.LoadSchema(ctx, "US")
	assert.ErrorIs(t, err, dataset.ErrCorrupt)
}

func TestStorageStore_InvalidCode(t *testing.T) {
	store, _ := newStorageStore(t)

	_, err := store.LoadSchema(context.Background(), "../../etc")
	assert.ErrorIs(t, err, dataset.ErrInvalidCode)

	_, err = store.PutSchema(context.Background(), "us", []byte(`{}`))
	assert.ErrorIs(t, err, dataset.ErrInvalidCode, "codes must be normalized by the caller")
}

func TestStorageStore_CodeList(t *testing.T) {
	store, _ := newStorageStore(t)

	codes, err := store.LoadCountryCodeList(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dataset.CountryCodes(), codes)
}
