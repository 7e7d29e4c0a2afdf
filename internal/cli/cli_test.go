package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandTree(t *testing.T) {
	root := newRootCommand()
	assert.Equal(t, "arccheck", root.Use)

	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"check", "deps", "test"})

	check, _, err := root.Find([]string{"check"})
	require.NoError(t, err)
	for _, flag := range []string{"config", "dir", "ext", "recursive", "concurrency", "format", "output", "always-report", "upload"} {
		assert.NotNil(t, check.Flags().Lookup(flag), flag)
	}

	test, _, err := root.Find([]string{"test"})
	require.NoError(t, err)
	assert.NotNil(t, test.Flags().Lookup("file"))
}

func TestRunnerCommandRejectsArgs(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"test", "extra"})
	assert.Error(t, root.Execute())
}
