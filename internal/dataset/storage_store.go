package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/dukerupert/addrfmt/internal/storage"
)

const metaFile = "meta.json"

// StorageStore keeps the dataset as JSON objects in a storage.Storage:
//
//	<prefix>/<CODE>.json   one raw record per country, plus the fallback record
//	<prefix>/meta.json     [{"code": "AD", "name": "Andorra"}, ...]
type StorageStore struct {
	storage  storage.Storage
	prefix   string
	fallback string
}

// NewStorageStore creates a store over the given storage backend.
// An empty fallback defaults to DefaultFallback.
func NewStorageStore(s storage.Storage, prefix, fallback string) *StorageStore {
	if fallback == "" {
		fallback = DefaultFallback
	}
	return &StorageStore{
		storage:  s,
		prefix:   prefix,
		fallback: NormalizeCode(fallback),
	}
}

func (s *StorageStore) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// LoadSchema reads <prefix>/<CODE>.json.
func (s *StorageStore) LoadSchema(ctx context.Context, code string) (RawSchema, error) {
	if !ValidCode(code) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}

	data, err := s.read(ctx, s.key(code+".json"))
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
		}
		return nil, err
	}

	schema, err := ParseSchema(data)
	if err != nil {
		return nil, errCorrupt(code, err)
	}
	return schema, nil
}

// LoadFallbackSchema reads the fallback record.
func (s *StorageStore) LoadFallbackSchema(ctx context.Context) (RawSchema, error) {
	return s.LoadSchema(ctx, s.fallback)
}

// LoadCountryMeta reads <prefix>/meta.json.
func (s *StorageStore) LoadCountryMeta(ctx context.Context) ([]Country, error) {
	data, err := s.read(ctx, s.key(metaFile))
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, metaFile)
		}
		return nil, err
	}

	var countries []Country
	if err := json.Unmarshal(data, &countries); err != nil {
		return nil, errCorrupt(metaFile, err)
	}
	return countries, nil
}

// LoadCountryCodeList returns the curated code list.
func (s *StorageStore) LoadCountryCodeList(ctx context.Context) ([]string, error) {
	return CountryCodes(), nil
}

// PutSchema writes <prefix>/<CODE>.json, replacing any earlier copy, and
// returns the location reported by the storage backend.
func (s *StorageStore) PutSchema(ctx context.Context, code string, data []byte) (string, error) {
	if !ValidCode(code) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}

	loc, err := s.storage.Put(ctx, s.key(code+".json"), bytes.NewReader(data), "application/json")
	if err != nil {
		return "", fmt.Errorf("failed to store schema %s: %w", code, err)
	}
	return loc, nil
}

// PutMeta writes <prefix>/meta.json.
func (s *StorageStore) PutMeta(ctx context.Context, countries []Country) error {
	data, err := json.Marshal(countries)
	if err != nil {
		return fmt.Errorf("failed to encode country list: %w", err)
	}

	if _, err := s.storage.Put(ctx, s.key(metaFile), bytes.NewReader(data), "application/json"); err != nil {
		return fmt.Errorf("failed to store country list: %w", err)
	}
	return nil
}

func (s *StorageStore) read(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.storage.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}
