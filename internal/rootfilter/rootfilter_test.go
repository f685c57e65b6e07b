package rootfilter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShouldEmitExactAndSubdomain(t *testing.T) {
	f := FromList([]string{"example.com"})

	require.True(t, f.ShouldEmit("example.com"))
	require.True(t, f.ShouldEmit("sub.example.com"))
	require.False(t, f.ShouldEmit("notexample.com"))
	require.False(t, f.ShouldEmit("example.org"))
}

func TestFromListIsCaseInsensitive(t *testing.T) {
	f := FromList([]string{"Example.COM"})
	require.True(t, f.ShouldEmit("sub.EXAMPLE.com"))
}

func TestFromFileSkipsCommentsAndBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roots.txt")
	content := "# comment\n\nexample.com\n  other.test  \n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	f, err := FromFile(path)
	require.NoError(t, err)

	require.True(t, f.ShouldEmit("example.com"))
	require.True(t, f.ShouldEmit("other.test"))
	require.False(t, f.ShouldEmit("comment"))
}

func TestFromFileMissingFileErrors(t *testing.T) {
	_, err := FromFile(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}
