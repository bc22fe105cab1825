package cmd

import (
	"fmt"

	"skip-analyzer/infrastructure/config"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configuration",
	Long: `Inspect the effective configuration: the config file laid over the
built-in defaults, with SKIP_* environment variables applied last.

Examples:
  skip-analyzer config show
  SKIP_CACHE_BACKEND=none skip-analyzer config show
  skip-analyzer config validate --config other.yaml`,
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		return RunConfigShowWithDependencies(cfg, DefaultOutput)
	},
}

// RunConfigShowWithDependencies runs the show command with injected dependencies
func RunConfigShowWithDependencies(cfg *config.Config, out OutputWriter) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	return enc.Close()
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration for errors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := GetConfig(); err != nil {
			return err
		}
		fmt.Fprintf(DefaultOutput, "%s is valid\n", cfgFile)
		return nil
	},
}
