// Package config loads poplog settings through viper from a config file,
// POPLOG_* environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultPattern matches lines such as "[PIPEN-POPLOG][WARNING] disk almost full".
const DefaultPattern = `^\[PIPEN-POPLOG\]\[(?P<level>\w+?)\] (?P<message>.*)$`

const (
	DefaultLocalPoll  = time.Second
	DefaultRemotePoll = 5 * time.Second
)

// Options are the per-job-group monitoring settings.
type Options struct {
	Jobs      []int  `mapstructure:"jobs" yaml:"jobs,omitempty"`           // job indices to monitor, empty for all
	LogLevel  string `mapstructure:"loglevel" yaml:"loglevel,omitempty"`   // minimum level forwarded
	Source    string `mapstructure:"source" yaml:"source,omitempty"`       // stdout or stderr
	Pattern   string `mapstructure:"pattern" yaml:"pattern,omitempty"`     // regex with level/message groups
	Max       int    `mapstructure:"max" yaml:"max,omitempty"`             // per-job message budget, 0 unbounded
	Unmatched string `mapstructure:"unmatched" yaml:"unmatched,omitempty"` // forward or drop
}

// Poll holds the poll cadences.
type Poll struct {
	Local  time.Duration `mapstructure:"local" yaml:"local"`
	Remote time.Duration `mapstructure:"remote" yaml:"remote"`
}

// Log configures poplog's own logger.
type Log struct {
	Format string `mapstructure:"format" yaml:"format"` // console or json
	Level  string `mapstructure:"level" yaml:"level"`
}

// Config is the complete configuration.
type Config struct {
	Options `mapstructure:",squash" yaml:",inline"`
	Groups  map[string]Options `mapstructure:"groups" yaml:"groups,omitempty"`
	Poll    Poll               `mapstructure:"poll" yaml:"poll"`
	Log     Log                `mapstructure:"log" yaml:"log"`
	Listen  string             `mapstructure:"listen" yaml:"listen,omitempty"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("loglevel", "info")
	v.SetDefault("source", "stdout")
	v.SetDefault("pattern", DefaultPattern)
	v.SetDefault("max", 0)
	v.SetDefault("unmatched", "forward")
	v.SetDefault("poll.local", DefaultLocalPoll)
	v.SetDefault("poll.remote", DefaultRemotePoll)
	v.SetDefault("log.format", "console")
	v.SetDefault("log.level", "info")
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that do not need compiling. Patterns and
// levels are checked when policies are built.
func (c *Config) Validate() error {
	var errs []error
	if c.Poll.Local <= 0 || c.Poll.Remote <= 0 {
		errs = append(errs, fmt.Errorf("poll intervals must be positive (local %s, remote %s)", c.Poll.Local, c.Poll.Remote))
	}
	if c.Max < 0 {
		errs = append(errs, fmt.Errorf("max must not be negative, got %d", c.Max))
	}
	for name, g := range c.Groups {
		if g.Max < 0 {
			errs = append(errs, fmt.Errorf("group %s: max must not be negative, got %d", name, g.Max))
		}
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Resolve returns the options for a job group: the group's overrides on
// top of the defaults. Zero-valued override fields inherit.
func (c *Config) Resolve(group string) Options {
	o := c.Options
	o.Jobs = slices.Clone(o.Jobs)
	g, ok := c.group(group)
	if !ok {
		return o
	}
	if g.Jobs != nil {
		o.Jobs = slices.Clone(g.Jobs)
	}
	if g.LogLevel != "" {
		o.LogLevel = g.LogLevel
	}
	if g.Source != "" {
		o.Source = g.Source
	}
	if g.Pattern != "" {
		o.Pattern = g.Pattern
	}
	if g.Max != 0 {
		o.Max = g.Max
	}
	if g.Unmatched != "" {
		o.Unmatched = g.Unmatched
	}
	return o
}

// group looks a group up by name. viper lower-cases map keys read from
// files, so the lookup falls back to a case-insensitive match.
func (c *Config) group(name string) (Options, bool) {
	if g, ok := c.Groups[name]; ok {
		return g, true
	}
	for k, g := range c.Groups {
		if strings.EqualFold(k, name) {
			return g, true
		}
	}
	return Options{}, false
}
