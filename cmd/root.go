// Package cmd provides the command-line interface for docsite with
// configuration management supporting multiple configuration sources.
//
// Configuration System:
//
//	Configuration is resolved with this precedence:
//	1. Command-line flags (--port, --content-dir, etc.) - highest priority
//	2. Individual environment variables (DOCSITE_SERVER_PORT, etc.)
//	3. Configuration file: --config, DOCSITE_CONFIG_FILE, or .docsite.yml
//	4. Built-in defaults - lowest priority
//
// Environment Variables:
//
//	DOCSITE_CONFIG_FILE: Path to custom configuration file
//	DOCSITE_MODE: Runtime mode (falls back to NODE_ENV)
//	DOCSITE_SERVER_PORT: Override the WebSocket port
//	DOCSITE_CONTENT_DIR: Override the watched content directory
//	And the rest following the DOCSITE_<SECTION>_<OPTION> pattern
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/docsite/internal/config"
	"github.com/conneroisu/docsite/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "docsite",
	Short: "Content hot-reload tooling for a documentation site",
	Long: `Docsite watches the content directory of a documentation site and tells
connected browsers to reload whenever a document or asset changes.

Quick Start:
  docsite watch                   Watch content/ and serve ws://localhost:3001
  docsite listen                  Connect to a running watcher and report reloads
  docsite sync                    Copy assets referenced by documents into public/
  docsite list                    List the documents in content/

Browsers pick up reloads by including the served listener script:
  <script src="http://localhost:3001/client.js" data-mode="development"></script>`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .docsite.yml, can also use DOCSITE_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig points viper at the config file and the DOCSITE_ environment.
// A missing config file is not an error.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("DOCSITE_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".docsite")
	}

	viper.SetEnvPrefix("DOCSITE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.RegisterDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the process logger from the log section of cfg.
func newLogger(cfg *config.Config) logging.Logger {
	lc := logging.DefaultConfig()
	if level, err := logging.ParseLevel(cfg.Log.Level); err == nil {
		lc.Level = level
	}
	lc.Format = cfg.Log.Format
	return logging.NewLogger(lc)
}
