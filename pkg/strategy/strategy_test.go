package strategy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HK-Mattew/go-limits/pkg/storage"
	"github.com/HK-Mattew/go-limits/pkg/strategy"
)

func TestNewByName(t *testing.T) {
	store := storage.NewMemoryStorage()

	for _, name := range []string{"fixed-window", "fixed-window-elastic-expiry", "moving-window"} {
		t.Run(name, func(t *testing.T) {
			limiter, err := strategy.New(name, store)

			require.NoError(t, err)
			assert.NotNil(t, limiter)
		})
	}
}

func TestNewByNameUnknown(t *testing.T) {
	_, err := strategy.New("token-bucket", storage.NewMemoryStorage())

	assert.Error(t, err)
}

func TestNewByNameCapabilityMismatch(t *testing.T) {
	_, err := strategy.New("moving-window", counterOnlyStorage{storage.NewMemoryStorage()})

	assert.ErrorIs(t, err, strategy.ErrMovingWindowNotSupported)
}
