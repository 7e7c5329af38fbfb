package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HK-Mattew/go-limits/pkg/storage"
)

func TestNewFromURIMemory(t *testing.T) {
	s, err := storage.NewFromURI(context.Background(), "memory://")

	require.NoError(t, err)
	assert.IsType(t, &storage.MemoryStorage{}, s)
}

func TestNewFromURIUnknownScheme(t *testing.T) {
	_, err := storage.NewFromURI(context.Background(), "blah://")

	assert.ErrorIs(t, err, storage.ErrUnknownScheme)
}

func TestNewFromURINotAURI(t *testing.T) {
	_, err := storage.NewFromURI(context.Background(), "localhost:6379")

	assert.ErrorIs(t, err, storage.ErrUnknownScheme)
}

func TestNewFromURISchemeAliases(t *testing.T) {
	ctx := context.Background()

	// Nothing listens on port 1, so construction fails; what matters is
	// that the alias schemes resolve to their backend factories.
	for _, uri := range []string{"rediss://localhost:1/0", "postgresql://user@localhost:1/limits"} {
		t.Run(uri, func(t *testing.T) {
			_, err := storage.NewFromURI(ctx, uri)

			require.Error(t, err)
			assert.NotErrorIs(t, err, storage.ErrUnknownScheme)
		})
	}
}

func TestNewFromURIInvalidRedisURI(t *testing.T) {
	_, err := storage.NewFromURI(context.Background(), "redis://invalid uri with spaces")

	assert.Error(t, err)
}

func TestRegisterCustomScheme(t *testing.T) {
	storage.Register("custom-test", func(context.Context, string) (storage.Storage, error) {
		return storage.NewMemoryStorage(), nil
	})

	s, err := storage.NewFromURI(context.Background(), "custom-test://anything")

	require.NoError(t, err)
	assert.IsType(t, &storage.MemoryStorage{}, s)
}
