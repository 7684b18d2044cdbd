package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_ListsSubcommands(t *testing.T) {
	cmd := NewRootCmd()

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	for _, want := range []string{"index", "query", "status", "clear", "logs", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestVersionCmd_PrintsVersion(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "knowledgehub")
}

func TestVersionCmd_Short(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"version", "--short"})

	require.NoError(t, cmd.Execute())
	assert.NotContains(t, buf.String(), "commit")
}

func TestQueryCmd_RequiresTextWithoutAll(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"query"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query text is required")
}

func TestSelectionFromFlag(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flag absent means all documents",
			args:     nil,
			expected: nil,
		},
		{
			name:     "flag set to empty string means no documents",
			args:     []string{"--docs", ""},
			expected: []string{},
		},
		{
			name:     "named documents pass through",
			args:     []string{"--docs", "a.md,b.txt"},
			expected: []string{"a.md", "b.txt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newIndexCmd()
			require.NoError(t, cmd.ParseFlags(tt.args))

			docsFlag, err := cmd.Flags().GetStringSlice("docs")
			require.NoError(t, err)

			got := selectionFromFlag(cmd, docsFlag)
			if tt.expected == nil {
				assert.Nil(t, got)
			} else {
				assert.NotNil(t, got)
				assert.Equal(t, tt.expected, got)
			}
		})
	}
}
