package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the config file and required environment variables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if !strict {
				if err := cfg.Validate(); err != nil {
					return err
				}
				fmt.Println("config OK")
				return nil
			}

			report := cfg.ValidateStrict()
			if report.OK() {
				fmt.Println("config OK")
				return nil
			}
			for _, e := range report.Errors {
				fmt.Println("  -", e)
			}
			return fmt.Errorf("%d problem(s) found", len(report.Errors))
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "cross-check every required field instead of just the env vars")
	return cmd
}
