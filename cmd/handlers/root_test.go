package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()

	for _, name := range []string{"analyze", "elbow", "runs"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	runs, _, err := root.Find([]string{"runs"})
	require.NoError(t, err)
	var names []string
	for _, c := range runs.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"list", "show", "delete", "clear", "stats"}, names)
}

func TestAnalyzeCmd_Flags(t *testing.T) {
	cmd := NewAnalyzeCmd()
	for _, flag := range []string{"input", "k", "eps", "min-samples", "seed", "output", "save"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), flag)
	}
	assert.Equal(t, "0", cmd.Flags().Lookup("k").DefValue)
}

func TestFormatOptional(t *testing.T) {
	v := 0.51234
	assert.Equal(t, "0.512", formatOptional(&v))
	assert.Equal(t, "n/a", formatOptional(nil))
}
