package cli

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/relaysix/lazabot/internal/monitor"
)

// productSpec is one entry of the monitoring.products_file YAML list.
type productSpec struct {
	ID          string   `yaml:"id"`
	URL         string   `yaml:"url"`
	Name        string   `yaml:"name"`
	TargetPrice *float64 `yaml:"target_price"`
	MinStock    *int     `yaml:"min_stock"`
	IntervalMS  int      `yaml:"interval_ms"`
}

func loadProducts(path string) ([]productSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read products file %s: %w", path, err)
	}
	var specs []productSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("parse products file %s: %w", path, err)
	}
	return specs, nil
}

func (s productSpec) toMonitorConfig(defaultPoll time.Duration) monitor.Config {
	interval := defaultPoll
	if s.IntervalMS > 0 {
		interval = time.Duration(s.IntervalMS) * time.Millisecond
	}
	return monitor.Config{
		Product: monitor.ProductInfo{
			ID:          s.ID,
			URL:         s.URL,
			Name:        s.Name,
			TargetPrice: s.TargetPrice,
			MinStock:    s.MinStock,
		},
		Interval: interval,
	}
}
