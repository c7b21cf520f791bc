package uuid

import (
	"errors"
	"testing"

	googleuuid "github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestGeneratorNewIDIsTimeOrdered(t *testing.T) {
	t.Parallel()

	gen := New()
	first, err := gen.NewID()
	require.NoError(t, err)
	second, err := gen.NewID()
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	require.LessOrEqual(t, first, second)
	parsed, err := googleuuid.Parse(first)
	require.NoError(t, err)
	require.Equal(t, googleuuid.Version(7), parsed.Version())
}

func TestGeneratorFallsBackToRandom(t *testing.T) {
	t.Parallel()

	gen := &Generator{
		v7: func() (googleuuid.UUID, error) { return googleuuid.Nil, errors.New("clock unavailable") },
		v4: googleuuid.NewRandom,
	}
	id, err := gen.NewID()
	require.NoError(t, err)
	parsed, err := googleuuid.Parse(id)
	require.NoError(t, err)
	require.Equal(t, googleuuid.Version(4), parsed.Version())

	gen.v4 = func() (googleuuid.UUID, error) { return googleuuid.Nil, errors.New("entropy exhausted") }
	_, err = gen.NewID()
	require.ErrorContains(t, err, "generate cycle id")
}
