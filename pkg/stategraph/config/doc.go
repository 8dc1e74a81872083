/*
Package config provides type-safe configuration extraction from
map[string]any, plus a mapping from config documents onto executor run
options.

# Basic Usage

Create a Config from any map and extract values with defaults:

	cfg := config.New(map[string]any{
	    "timeout": "30s",
	    "retries": 3,
	    "enabled": true,
	})

	timeout := cfg.Duration("timeout", 10*time.Second) // 30s
	retries := cfg.Int("retries", 5)                   // 3
	enabled := cfg.Bool("enabled", false)              // true
	missing := cfg.String("missing", "default")        // "default"

Nested sections are reached with Sub:

	cfg.Sub("retry").Int("max_attempts", 3)

# File Loading

Load configuration from YAML or JSON files:

	cfg, err := config.FromFile("orchestrator.yaml")
	if err != nil {
	    log.Fatal(err)
	}
	final, err := compiled.Run(ctx, initial, config.Options(cfg)...)

Options recognizes the executor's tuning knobs (step limit, timeouts,
checkpoint cadence, retry and breaker settings); see its documentation for
the full key list.

# Thread Safety

Config is safe for concurrent reads. The underlying map is never modified
after creation.
*/
package config
