package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relaysix/lazabot/internal/config"
	"github.com/relaysix/lazabot/internal/crypto"
	"github.com/relaysix/lazabot/internal/vault"
)

func newCredentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage the on-disk credential vault",
	}
	cmd.AddCommand(newCredentialsInitCmd())
	cmd.AddCommand(newCredentialsListCmd())
	return cmd
}

func openVault(cfg *config.Config) (*vault.Manager, error) {
	envelope, err := crypto.NewEnvelopeFromHex(cfg.MasterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}
	return vault.Open(cfg.VaultPath, envelope)
}

func newCredentialsInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Bootstrap the vault from LAZABOT_* environment variables and save it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := vault.ValidateEnv(); err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			m, err := openVault(cfg)
			if err != nil {
				return err
			}
			if err := m.LoadFromEnv(); err != nil {
				return fmt.Errorf("load env credentials: %w", err)
			}
			if err := m.Save(); err != nil {
				return fmt.Errorf("save vault: %w", err)
			}

			fmt.Printf("vault written to %s\n", cfg.VaultPath)
			return nil
		},
	}
}

func newCredentialsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the account and proxy ids currently stored in the vault",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			m, err := openVault(cfg)
			if err != nil {
				return err
			}

			fmt.Println("accounts:")
			for _, id := range m.AccountIDs() {
				fmt.Printf("  %s\n", id)
			}
			fmt.Println("proxies:")
			for _, id := range m.ProxyIDs() {
				fmt.Printf("  %s\n", id)
			}
			return nil
		},
	}
}
