package config

import (
	"fmt"
	"strings"
)

// Validate checks high-impact runtime configuration constraints.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("base_url must not be empty")
	}
	if c.Token == "" && (c.Username == "" || c.Password == "") {
		return ErrNoCredentials
	}

	if c.Interval <= 0 {
		return fmt.Errorf("interval must be > 0, got %s", c.Interval)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be > 0, got %s", c.RequestTimeout)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be >= 1, got %d", c.Concurrency)
	}

	mode := strings.ToLower(strings.TrimSpace(c.Ranking.Mode))
	if mode != "" && mode != "full" && mode != "topk" {
		return fmt.Errorf("ranking.mode must be 'full' or 'topk', got %q", c.Ranking.Mode)
	}
	if mode == "topk" && c.Ranking.TopK < 1 {
		return fmt.Errorf("ranking.top_k must be >= 1 in topk mode, got %d", c.Ranking.TopK)
	}

	if strings.TrimSpace(c.OutputPath) == "" {
		return fmt.Errorf("output_path must not be empty")
	}
	return nil
}
