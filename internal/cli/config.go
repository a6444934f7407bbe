package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the resolved runtime configuration",
	}
	cmd.AddCommand(newConfigShowCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration as JSON, with secrets redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			redacted := *cfg
			redacted.MasterKeyHex = redact(redacted.MasterKeyHex)
			redacted.CaptchaAPIKey = redact(redacted.CaptchaAPIKey)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(redacted)
		},
	}
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return fmt.Sprintf("<redacted, %d bytes>", len(s))
}
