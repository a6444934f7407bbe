package cli

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relaysix/lazabot/internal/stealth"
)

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate fingerprints, master keys, and other bootstrap material",
	}
	cmd.AddCommand(newGenerateFingerprintCmd())
	cmd.AddCommand(newGenerateKeyCmd())
	return cmd
}

func newGenerateFingerprintCmd() *cobra.Command {
	var count int
	var browser string

	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Generate one or more randomized browser fingerprints",
		RunE: func(cmd *cobra.Command, args []string) error {
			var fps []stealth.Fingerprint
			if browser != "" {
				fps = []stealth.Fingerprint{stealth.GenerateForBrowser(browser)}
			} else {
				fps = stealth.GenerateMany(count)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(fps)
		},
	}
	cmd.Flags().IntVar(&count, "count", 1, "number of fingerprints to generate")
	cmd.Flags().StringVar(&browser, "browser", "", "pin the fingerprint to a specific browser family (chrome, firefox, safari, edge)")
	return cmd
}

func newGenerateKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "key",
		Short: "Generate a random 32-byte master key (hex-encoded)",
		RunE: func(cmd *cobra.Command, args []string) error {
			key := make([]byte, 32)
			if _, err := rand.Read(key); err != nil {
				return fmt.Errorf("generate key: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(key))
			return nil
		},
	}
}
