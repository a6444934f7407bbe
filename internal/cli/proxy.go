package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/relaysix/lazabot/internal/proxypool"
)

func newProxyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Inspect and health-check the proxy pool",
	}
	cmd.AddCommand(newProxyListCmd())
	cmd.AddCommand(newProxyCheckCmd())
	return cmd
}

func newProxyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List proxy pool members and their health state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pool, err := proxypool.LoadFile(cfg.Proxies.File)
			if err != nil {
				return err
			}
			for _, ep := range pool.Members() {
				status := "healthy"
				if !pool.IsHealthy(ep) {
					status = "unhealthy"
				}
				fmt.Printf("%-8s %-22s %s\n", ep.Type, ep.Addr(), status)
			}
			return nil
		},
	}
}

func newProxyCheckCmd() *cobra.Command {
	var unhealthyOnly bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Probe every proxy pool member and report the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pool, err := proxypool.LoadFile(cfg.Proxies.File)
			if err != nil {
				return err
			}

			hc := proxypool.NewHealthChecker(cfg.Proxies.HealthCheckURL,
				time.Duration(cfg.Proxies.HealthTimeoutMS)*time.Millisecond)

			var report proxypool.HealthReport
			if unhealthyOnly {
				report = hc.ScanUnhealthyOnly(cmd.Context(), pool)
			} else {
				report = hc.ScanAll(cmd.Context(), pool)
			}

			fmt.Printf("scanned %d in %s: %d healthy, %d unhealthy\n",
				report.Total, report.Duration, len(report.Healthy), len(report.Unhealthy))
			for _, ep := range report.Unhealthy {
				fmt.Printf("  down: %s\n", ep.Addr())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&unhealthyOnly, "unhealthy-only", false, "only re-probe members currently marked unhealthy")
	return cmd
}
