package checkpoint_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perokvist/messagevault/internal/checkpoint"
)

func Test_Read_Missing(t *testing.T) {
	check := checkpoint.NewFileCheckpoint(afero.NewMemMapFs(), "stream.chk")

	length, err := check.Read(t.Context())

	require.NoError(t, err)
	assert.EqualValues(t, 0, length)
}

func Test_GetOrInit_CreatesAndReads(t *testing.T) {
	fs := afero.NewMemMapFs()
	check := checkpoint.NewFileCheckpoint(fs, "stream.chk")

	length, err := check.GetOrInit(t.Context())
	require.NoError(t, err)
	assert.EqualValues(t, 0, length)

	exists, err := afero.Exists(fs, "stream.chk")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, check.Update(t.Context(), 123))
	length, err = check.GetOrInit(t.Context())
	require.NoError(t, err)
	assert.EqualValues(t, 123, length)
}

func Test_Update_Monotonic(t *testing.T) {
	check := checkpoint.NewFileCheckpoint(afero.NewMemMapFs(), "stream.chk")

	require.NoError(t, check.Update(t.Context(), 100))
	require.NoError(t, check.Update(t.Context(), 100))
	require.NoError(t, check.Update(t.Context(), 250))

	err := check.Update(t.Context(), 249)
	assert.ErrorIs(t, err, checkpoint.ErrNonMonotonic)

	length, err := check.Read(t.Context())
	require.NoError(t, err)
	assert.EqualValues(t, 250, length)
}
