package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefault(t *testing.T) {
	seeds, err := Load(filepath.Join(t.TempDir(), "initial_prompts.txt"))
	require.NoError(t, err)
	require.Equal(t, []string{Default}, seeds)
}

func TestLoadSkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "initial_prompts.txt")
	require.NoError(t, os.WriteFile(path, []byte("  first  \n\n\t\nsecond\r\nthird"), 0644))

	seeds, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"first", "second", "third"}, seeds)
}

func TestParseEmpty(t *testing.T) {
	seeds, err := Parse(strings.NewReader("\n  \n"))
	require.NoError(t, err)
	require.Empty(t, seeds)
}
