package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/docsite/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect docsite configuration",
	Long: `Inspect the effective docsite configuration.

Configuration is resolved from .docsite.yml, DOCSITE_* environment variables
(NODE_ENV selects the mode) and command-line flags.

Examples:
  docsite config show              # Effective configuration as YAML
  docsite config show --format json
  docsite config validate          # Validate .docsite.yml
  docsite config validate -f other.yml`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	RunE:  runConfigValidate,
}

var (
	configFormat string
	configFile   string
)

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)

	configShowCmd.Flags().StringVar(&configFormat, "format", "yaml", "Output format (yaml, json)")
	configValidateCmd.Flags().
		StringVarP(&configFile, "file", "f", "", "Configuration file to validate (default: .docsite.yml)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	return showConfig(cmd.OutOrStdout(), cfg, configFormat)
}

func showConfig(w io.Writer, cfg *config.Config, format string) error {
	switch format {
	case "yaml", "yml":
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		return encoder.Encode(cfg)
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(cfg)
	default:
		return fmt.Errorf("unsupported format: %s (supported: yaml, json)", format)
	}
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	targetFile := configFile
	if targetFile == "" {
		targetFile = findConfigFile()
		if targetFile == "" {
			return fmt.Errorf("no configuration file found, use --file to specify one")
		}
	}

	if err := validateConfigFile(targetFile); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration file %s is valid\n", targetFile)
	return nil
}

func findConfigFile() string {
	for _, name := range []string{".docsite.yml", ".docsite.yaml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// validateConfigFile loads path on its own, without environment overrides,
// and runs the same validation as the other commands.
func validateConfigFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("configuration file %s does not exist", path)
	}

	v := viper.New()
	v.SetConfigFile(path)
	config.RegisterDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read configuration file: %w", err)
	}

	if _, err := config.LoadFrom(v); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
