// Package cmd implements the poplog command line.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "poplog",
	Short: "poplog: forward job log messages to the pipeline log",
	Long: `poplog tails the stdout or stderr of running pipeline jobs, picks out
lines tagged with a severity level, and forwards those at or above a
threshold to the pipeline's own log.

A job writes messages such as

  [PIPEN-POPLOG][WARNING] reference index is stale

and poplog re-emits them with the job's name attached.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	f := rootCmd.PersistentFlags()
	f.StringVarP(&cfgFile, "config", "c", "", "config file (default: $HOME/.poplog.yaml or ./.poplog.yaml)")
	f.StringP("loglevel", "l", "info", "minimum level forwarded: debug, info, warning, error, critical")
	f.String("source", "stdout", "job output to tail: stdout or stderr")
	f.String("pattern", "", "regex with named groups level and message")
	f.Int("max", 0, "maximum messages forwarded per job, 0 for no limit")
	f.IntSlice("jobs", nil, "job indices to monitor (default all)")
	f.String("unmatched", "forward", "lines not matching the pattern: forward or drop")
	f.String("listen", "", "address for the status server, e.g. :8080 (disabled when empty)")
	f.String("log-format", "console", "poplog's own log format: console or json")
	f.String("verbosity", "info", "poplog's own log level")

	bind := map[string]string{
		"loglevel":   "loglevel",
		"source":     "source",
		"pattern":    "pattern",
		"max":        "max",
		"jobs":       "jobs",
		"unmatched":  "unmatched",
		"listen":     "listen",
		"log.format": "log-format",
		"log.level":  "verbosity",
	}
	for key, flag := range bind {
		cobra.CheckErr(viper.BindPFlag(key, f.Lookup(flag)))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".poplog")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("POPLOG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// readConfig loads the config file. A missing default file is fine; an
// explicit --config that cannot be read is not.
func readConfig() error {
	err := viper.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if cfgFile == "" && errors.As(err, &notFound) {
		return nil
	}
	return fmt.Errorf("read config: %w", err)
}
