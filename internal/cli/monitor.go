package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/relaysix/lazabot/internal/httpclient"
	"github.com/relaysix/lazabot/internal/metrics"
	"github.com/relaysix/lazabot/internal/monitor"
	"github.com/relaysix/lazabot/internal/proxypool"
	"github.com/relaysix/lazabot/internal/retry"
)

func newMonitorCmd() *cobra.Command {
	var productsPath string
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Poll product pages for availability changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if productsPath == "" {
				productsPath = cfg.Monitoring.ProductsFile
			}

			specs, err := loadProducts(productsPath)
			if err != nil {
				return err
			}

			pool, err := proxypool.LoadFile(cfg.Proxies.File)
			if err != nil {
				return err
			}

			policy := retry.Policy{
				MaxRetries: 3,
				BaseDelay:  time.Second,
				MaxDelay:   10 * time.Second,
				Multiplier: 2,
			}
			client := httpclient.New("lazabot-monitor/1.0", policy)

			engine := monitor.NewEngine()
			defaultPoll := time.Duration(cfg.Monitoring.DefaultPollMS) * time.Millisecond

			var events []<-chan monitor.AvailabilityEvent
			for _, spec := range specs {
				task := monitor.NewTask(spec.toMonitorConfig(defaultPoll), client, pool)
				events = append(events, engine.AddMonitor(task))
			}
			engine.Start()

			reg := prometheus.NewRegistry()
			collector := metrics.NewCollector(reg)

			var metricsSrv *metrics.Server
			if metricsAddr != "" {
				metricsSrv = metrics.NewServer(metricsAddr, reg, func(ctx context.Context) error { return nil })
				go func() {
					if err := metricsSrv.ListenAndServe(); err != nil {
						slog.Error("metrics server stopped", "error", err)
					}
				}()
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			for _, ch := range events {
				go func(ch <-chan monitor.AvailabilityEvent) {
					for {
						select {
						case <-ctx.Done():
							return
						case ev, ok := <-ch:
							if !ok {
								return
							}
							collector.IncRequest("success")
							slog.Info("availability changed",
								"product", ev.ProductID, "available", ev.IsAvailable, "url", ev.ProductURL)
						}
					}
				}(ch)
			}

			<-ctx.Done()
			slog.Info("shutting down monitor engine")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := engine.Stop(shutdownCtx); err != nil {
				slog.Error("monitor engine shutdown error", "error", err)
			}
			if metricsSrv != nil {
				_ = metricsSrv.Shutdown(shutdownCtx)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&productsPath, "products", "", "override monitoring.products_file")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve /metrics and /health on (disabled if empty)")
	return cmd
}
