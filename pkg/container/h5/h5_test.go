package h5

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"sofa-convert/pkg/container"
)

func TestOpenMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Open(filepath.Join(t.TempDir(), "missing.sofa"))
	require.ErrorIs(t, err, container.ErrIO)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpenNotHDF5(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "not.sofa")
	require.NoError(t, os.WriteFile(path, []byte("this is not an HDF5 superblock"), 0o644))

	_, err := Open(path)
	require.ErrorIs(t, err, container.ErrIO)
}

// TestOpenSOFAFile exercises a real SOFA file when one is provided through
// SOFA_TEST_FILE.
func TestOpenSOFAFile(t *testing.T) {
	path := os.Getenv("SOFA_TEST_FILE")
	if path == "" {
		t.Skip("SOFA_TEST_FILE not set")
	}

	f, err := Open(path)
	require.NoError(t, err)

	ir, err := f.Variable("Data.IR")
	require.NoError(t, err)
	require.NotEmpty(t, ir)

	rate, err := f.Variable("Data.SamplingRate")
	require.NoError(t, err)
	require.NotEmpty(t, rate)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	_, err = f.Variable("Data.IR")
	require.ErrorIs(t, err, container.ErrClosed)
}
