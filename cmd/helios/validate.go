package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"hookly/helios/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load the configuration file, apply defaults and environment overrides,
and run the full validation rules without starting the service.

All validation errors are collected and reported together.

Examples:
  # Validate the default config
  helios validate

  # Validate a specific file
  helios validate --config /etc/helios/config.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	_, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		var validationErr config.ValidationError
		if errors.As(err, &validationErr) {
			fmt.Printf("✗ %s is invalid:\n", cfgFile)
			for _, fieldErr := range validationErr.Errors {
				fmt.Printf("  - %s\n", fieldErr.Error())
			}
			return fmt.Errorf("%d validation errors", len(validationErr.Errors))
		}
		return fmt.Errorf("failed to load %s: %w", cfgFile, err)
	}

	fmt.Printf("✓ %s is valid\n", cfgFile)
	return nil
}
