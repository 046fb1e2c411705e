package dirsize

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSum(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("12345"), 0o644))
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "b.txt"), []byte("1234567890"), 0o644))

	total, err := Sum(dir)
	require.NoError(t, err)
	require.EqualValues(t, 15, total)
}

func TestSum_SymlinkContributesZero(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.txt")
	require.NoError(t, os.WriteFile(target, []byte("0123456789"), 0o644))

	link := filepath.Join(dir, "link.txt")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported in this environment: %v", err)
	}

	total, err := Sum(dir)
	require.NoError(t, err)
	require.EqualValues(t, 10, total, "symlink must not double-count the target's bytes")
}

func TestSum_MissingDir(t *testing.T) {
	_, err := Sum(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
}
