package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/atikulmunna/poplog/internal/config"
	"github.com/atikulmunna/poplog/internal/parser"
)

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestConfigCommandPrintsEffectiveConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	out, err := runRoot(t, "config",
		"--pattern", config.DefaultPattern,
		"--loglevel", "warning",
		"--max", "25",
		"--jobs", "0,2",
	)
	require.NoError(t, err)

	var got config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, "warning", got.LogLevel)
	assert.Equal(t, 25, got.Max)
	assert.Equal(t, []int{0, 2}, got.Jobs)
	assert.Equal(t, "stdout", got.Source)
	assert.Equal(t, config.DefaultLocalPoll, got.Poll.Local)
}

func TestConfigCommandRejectsBadPattern(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	_, err := runRoot(t, "config", "--pattern", "(")
	require.Error(t, err)
	assert.ErrorIs(t, err, parser.ErrInvalidPattern)
}
