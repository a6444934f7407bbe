package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/relaysix/lazabot/internal/challenge"
	"github.com/relaysix/lazabot/internal/checkout"
	"github.com/relaysix/lazabot/internal/crypto"
	"github.com/relaysix/lazabot/internal/httpclient"
	"github.com/relaysix/lazabot/internal/retry"
	"github.com/relaysix/lazabot/internal/session"
	"github.com/relaysix/lazabot/internal/store"
	"github.com/relaysix/lazabot/internal/vault"
)

func newBuyCmd() *cobra.Command {
	var accountID, productID, productURL, baseURL, shipping, payment string
	var price float64
	var quantity int

	cmd := &cobra.Command{
		Use:   "buy",
		Short: "Run one instant-checkout attempt for an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			envelope, err := crypto.NewEnvelopeFromHex(cfg.MasterKeyHex)
			if err != nil {
				return fmt.Errorf("master key: %w", err)
			}

			v, err := vault.Open(cfg.VaultPath, envelope)
			if err != nil {
				return fmt.Errorf("open vault: %w", err)
			}
			acct, err := v.Account(accountID)
			if err != nil {
				return err
			}

			st, err := store.Open(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			policy := retry.Policy{MaxRetries: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second, Multiplier: 2}
			client := httpclient.New("lazabot-buy/1.0", policy)

			sessionMgr := session.NewManager(st, client, envelope, cfg.SessionsDir, cfg.Accounts.LoginURL, cfg.Accounts.ValidateURL)
			sess, err := sessionMgr.Login(cmd.Context(), session.Credentials{
				Username: acct.Username,
				Password: acct.Password,
				Email:    acct.Email,
			})
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}

			solver := challenge.NewRemoteSolver(cfg.CaptchaAPIKey, client).
				WithEndpoint(cfg.Captcha.Endpoint, time.Duration(cfg.Captcha.PollIntervalMS)*time.Millisecond, cfg.Captcha.MaxPolls)

			engine := checkout.NewEngine(client, solver, baseURL)

			var priceP *float64
			if price > 0 {
				priceP = &price
			}
			product := checkout.Product{ID: productID, URL: productURL, Price: priceP, Quantity: quantity}
			account := checkout.Account{
				ID:       acct.AccountID,
				Username: acct.Username,
				Settings: checkout.AccountSettings{
					ShippingAddress: shipping,
					PaymentMethod:   payment,
				},
			}

			result := engine.InstantCheckout(cmd.Context(), product, account, sess)
			if !result.Success {
				return fmt.Errorf("checkout failed: %s", result.Error)
			}

			fmt.Printf("order placed: %s (%s)\n", result.OrderID, result.Duration)
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "vault account id")
	cmd.Flags().StringVar(&productID, "product-id", "", "product id")
	cmd.Flags().StringVar(&productURL, "product-url", "", "product url")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "storefront API base URL")
	cmd.Flags().Float64Var(&price, "price", 0, "expected unit price (0 to skip)")
	cmd.Flags().IntVar(&quantity, "quantity", 1, "quantity to purchase")
	cmd.Flags().StringVar(&shipping, "shipping-address", "", "shipping address to submit at checkout")
	cmd.Flags().StringVar(&payment, "payment-method", "", "payment method to select at checkout")
	cmd.MarkFlagRequired("account")
	cmd.MarkFlagRequired("product-id")
	cmd.MarkFlagRequired("base-url")
	return cmd
}
