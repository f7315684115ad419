package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := newRootCommand()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	require.ElementsMatch(t, []string{"fetch", "serve"}, names)

	fetch, _, err := cmd.Find([]string{"fetch"})
	require.NoError(t, err)
	require.NotNil(t, fetch.Flags().Lookup("manifest"))
	require.NotNil(t, fetch.Flags().Lookup("no-progress"))
	require.NotNil(t, cmd.PersistentFlags().ShorthandLookup("c"))
}

func TestFetchMissingConfig(t *testing.T) {
	cmd := newRootCommand()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"fetch", "-c", t.TempDir() + "/missing.yml"})

	require.Error(t, cmd.Execute())
}
