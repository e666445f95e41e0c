package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/addrfmt/internal"
)

type mockAPIError struct {
	code    string
	message string
}

func (e *mockAPIError) ErrorCode() string             { return e.code }
func (e *mockAPIError) ErrorMessage() string          { return e.message }
func (e *mockAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultUnknown }
func (e *mockAPIError) Error() string                 { return fmt.Sprintf("%s: %s", e.code, e.message) }

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		notFound bool
	}{
		{name: "NoSuchKey type", err: &types.NoSuchKey{}, notFound: true},
		{name: "NotFound type", err: &types.NotFound{}, notFound: true},
		{name: "NoSuchKey code", err: &mockAPIError{code: "NoSuchKey"}, notFound: true},
		{name: "NotFound code", err: fmt.Errorf("head: %w", &mockAPIError{code: "NotFound"}), notFound: true},
		{name: "AccessDenied code", err: &mockAPIError{code: "AccessDenied"}, notFound: false},
		{name: "plain error", err: errors.New("connection reset"), notFound: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := mapError("i18n/US.json", tt.err)
			assert.Equal(t, tt.notFound, errors.Is(mapped, ErrNotExist))
			assert.Equal(t, !tt.notFound, errors.Is(mapped, ErrStorageFailed))
		})
	}
}

func TestNewR2Storage_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     R2Config
		wantErr error
	}{
		{name: "missing account", cfg: R2Config{AccessKeyID: "k", SecretKey: "s", BucketName: "b"}, wantErr: ErrR2AccountIDRequired},
		{name: "missing credentials", cfg: R2Config{AccountID: "a", BucketName: "b"}, wantErr: ErrR2CredentialsRequired},
		{name: "missing bucket", cfg: R2Config{AccountID: "a", AccessKeyID: "k", SecretKey: "s"}, wantErr: ErrR2BucketRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewR2Storage(tt.cfg)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("endpoint replaces account", func(t *testing.T) {
		s, err := NewR2Storage(R2Config{
			Endpoint:    "http://127.0.0.1:9000",
			AccessKeyID: "k",
			SecretKey:   "s",
			BucketName:  "dataset",
			PublicURL:   "https://cdn.example.com/",
		})
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/i18n/US.json", s.URL("i18n/US.json"))
	})
}

func TestNewStorage(t *testing.T) {
	s, err := NewStorage(internal.StorageConfig{Provider: "local", LocalPath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)

	_, err = NewStorage(internal.StorageConfig{Provider: "gcs"})
	require.Error(t, err)
	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, codeInvalid, se.ErrorCode())
}
