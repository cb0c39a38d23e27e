package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T, yaml string) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newViper(t, ""))
	require.NoError(t, err)

	assert.Empty(t, cfg.Jobs)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "stdout", cfg.Source)
	assert.Equal(t, DefaultPattern, cfg.Pattern)
	assert.Equal(t, 0, cfg.Max)
	assert.Equal(t, "forward", cfg.Unmatched)
	assert.Equal(t, time.Second, cfg.Poll.Local)
	assert.Equal(t, 5*time.Second, cfg.Poll.Remote)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadFileAndGroups(t *testing.T) {
	cfg, err := Load(newViper(t, `
loglevel: warning
max: 100
poll:
  local: 250ms
  remote: 10s
groups:
  PoplogStderrLimitJobs:
    jobs: [0, 1]
    loglevel: warning
    source: stderr
    pattern: '^\[POPLOG\]\[(?P<level>\w+?)\] (?P<message>.*)$'
    max: 6
`))
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Poll.Local)
	assert.Equal(t, 10*time.Second, cfg.Poll.Remote)

	g := cfg.Resolve("PoplogStderrLimitJobs")
	assert.Equal(t, []int{0, 1}, g.Jobs)
	assert.Equal(t, "stderr", g.Source)
	assert.Equal(t, 6, g.Max)
	assert.Equal(t, `^\[POPLOG\]\[(?P<level>\w+?)\] (?P<message>.*)$`, g.Pattern)
	assert.Equal(t, "forward", g.Unmatched)

	d := cfg.Resolve("PoplogDefault")
	assert.Empty(t, d.Jobs)
	assert.Equal(t, "warning", d.LogLevel)
	assert.Equal(t, "stdout", d.Source)
	assert.Equal(t, 100, d.Max)
}

func TestResolveDoesNotAlias(t *testing.T) {
	cfg := &Config{Options: Options{Jobs: []int{1, 2}}}
	o := cfg.Resolve("x")
	o.Jobs[0] = 9
	assert.Equal(t, []int{1, 2}, cfg.Jobs)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("POPLOG_LOGLEVEL", "error")
	v := newViper(t, "")
	v.SetEnvPrefix("POPLOG")
	v.AutomaticEnv()

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	_, err := Load(newViper(t, "max: -1\n"))
	assert.ErrorContains(t, err, "max must not be negative")

	_, err = Load(newViper(t, "poll:\n  local: 0s\n"))
	assert.ErrorContains(t, err, "poll intervals")

	_, err = Load(newViper(t, "log:\n  format: xml\n"))
	assert.ErrorContains(t, err, "log.format")

	_, err = Load(newViper(t, "groups:\n  p:\n    max: -2\n"))
	assert.ErrorContains(t, err, "group p")
}
