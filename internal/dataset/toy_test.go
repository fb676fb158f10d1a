package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBuiltinRejectsUnknownName(t *testing.T) {
	_, _, err := LoadBuiltin("nonexistent")
	assert.ErrorContains(t, err, "unknown builtin dataset")
}

func TestLoadBuiltinToy2Shape(t *testing.T) {
	mu, sigma2, err := LoadBuiltin("toy2")
	require.NoError(t, err)
	require.Len(t, mu, 2)
	require.Len(t, sigma2, 2)
	assert.Len(t, mu[0], 50)
	assert.Equal(t, 0.0, mu[0][0])
	assert.Equal(t, 1.0, mu[1][0])
}

func TestBuiltinDatasetNamesCoversAllEntriesSorted(t *testing.T) {
	names := BuiltinDatasetNames()
	assert.Equal(t, []string{"goodreads8", "netflix8", "toy2"}, names)
}
