package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/relaysix/lazabot/internal/config"
	"github.com/relaysix/lazabot/internal/crypto"
	"github.com/relaysix/lazabot/internal/httpclient"
	"github.com/relaysix/lazabot/internal/retry"
	"github.com/relaysix/lazabot/internal/session"
	"github.com/relaysix/lazabot/internal/store"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and clean up persisted login sessions",
	}
	cmd.AddCommand(newSessionListCmd())
	cmd.AddCommand(newSessionCleanupCmd())
	return cmd
}

func sessionManager(cfg *config.Config) (*session.Manager, *store.SQLiteStore, error) {
	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	envelope, err := crypto.NewEnvelopeFromHex(cfg.MasterKeyHex)
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("master key: %w", err)
	}
	client := httpclient.New("lazabot-session/1.0", retry.Policy{MaxRetries: 0, BaseDelay: time.Second, MaxDelay: time.Second, Multiplier: 1})
	mgr := session.NewManager(st, client, envelope, cfg.SessionsDir, cfg.Accounts.LoginURL, cfg.Accounts.ValidateURL)
	return mgr, st, nil
}

func newSessionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List persisted session ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			mgr, st, err := sessionManager(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			ids, err := mgr.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}
}

func newSessionCleanupCmd() *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete sessions idle longer than --max-age",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			mgr, st, err := sessionManager(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			removed, err := mgr.CleanupExpired(cmd.Context(), maxAge)
			if err != nil {
				return err
			}
			fmt.Printf("removed %d expired session(s)\n", removed)
			return nil
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", 24*time.Hour, "maximum session idle time before cleanup")
	return cmd
}
