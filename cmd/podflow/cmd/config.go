package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Catonlarge/PodFlow-sub000/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing podflow configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the effective configuration",
	Long: `Dump the effective configuration values in YAML format.

This shows all configuration options after defaults, config file, and
environment variables are applied. Redirect the output to a file to
create a configuration template:

  podflow config dump > config.yaml

Environment variables use the PODFLOW_ prefix and underscores for
nesting. Example: transcription.segment_duration ->
PODFLOW_TRANSCRIPTION_SEGMENT_DURATION`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

func runConfigDump(cmd *cobra.Command, args []string) error {
	v := viper.New()
	config.SetDefaults(v)
	for key, value := range viper.GetViper().AllSettings() {
		v.Set(key, value)
	}

	yamlData, err := yaml.Marshal(v.AllSettings())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	fmt.Println("# podflow Configuration File")
	fmt.Println("#")
	fmt.Println("# Environment variable overrides:")
	fmt.Println("#   PODFLOW_SERVER_HOST, PODFLOW_SERVER_PORT")
	fmt.Println("#   PODFLOW_DATABASE_DRIVER, PODFLOW_DATABASE_DSN")
	fmt.Println("#   PODFLOW_TRANSCRIPTION_SEGMENT_DURATION, PODFLOW_TRANSCRIPTION_API_KEY")
	fmt.Println("#   PODFLOW_LOGGING_LEVEL, PODFLOW_LOGGING_FORMAT")
	fmt.Println("#")
	fmt.Print(string(yamlData))

	return nil
}
