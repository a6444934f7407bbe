package config

import "fmt"

// ValidationReport collects every problem found while cross-checking a
// loaded Config, instead of stopping at the first one. Used by the CLI's
// `validate --strict` path.
type ValidationReport struct {
	Errors []string
}

func (r *ValidationReport) add(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// OK reports whether no problems were found.
func (r *ValidationReport) OK() bool { return len(r.Errors) == 0 }

// ValidateStrict runs every cross-check against the config and returns a
// full report rather than failing fast.
func (c *Config) ValidateStrict() *ValidationReport {
	r := &ValidationReport{}

	if err := c.Validate(); err != nil {
		if missing, ok := err.(*MissingEnvError); ok {
			for _, f := range missing.Fields {
				r.add("missing required env var: %s", f)
			}
		} else {
			r.add("%s", err.Error())
		}
	}

	if c.Bot.MaxConcurrent <= 0 {
		r.add("bot.max_concurrent must be positive, got %d", c.Bot.MaxConcurrent)
	}
	if c.Monitoring.ProductsFile == "" {
		r.add("monitoring.products_file is not set")
	}
	if c.Proxies.File == "" {
		r.add("proxies.file is not set")
	}
	if c.Accounts.LoginURL == "" {
		r.add("accounts.login_url is not set")
	}
	if c.Accounts.ValidateURL == "" {
		r.add("accounts.validate_url is not set")
	}

	return r
}
