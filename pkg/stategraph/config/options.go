package config

import (
	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/failure"
)

// Options maps an execution section of a config document onto run options,
// so deployments can tune the executor from a file instead of code.
//
// Recognized keys:
//
//	max_steps: 500
//	timeout: 2m
//	node_timeout: 10s
//	checkpoint_every: 5
//	checkpoint_failure_fatal: true
//	retry:
//	  max_attempts: 3
//	  initial_delay: 1s
//	  max_delay: 30s
//	  multiplier: 2.0
//	  jitter: 0.1
//	breaker:
//	  failure_threshold: 5
//	  cooldown: 30s
//
// Absent keys keep the executor defaults. Checkpoint stores and trace sinks
// are runtime collaborators and are not configurable from a file.
func Options(cfg Config) []stategraph.RunOption {
	var opts []stategraph.RunOption

	if cfg.Has("max_steps") {
		opts = append(opts, stategraph.WithMaxSteps(cfg.Int("max_steps", 0)))
	}
	if cfg.Has("timeout") {
		opts = append(opts, stategraph.WithTimeout(cfg.Duration("timeout", 0)))
	}
	if cfg.Has("node_timeout") {
		opts = append(opts, stategraph.WithNodeTimeout(cfg.Duration("node_timeout", 0)))
	}
	if cfg.Has("checkpoint_every") {
		opts = append(opts, stategraph.WithCheckpointEvery(cfg.Int("checkpoint_every", 1)))
	}
	if cfg.Bool("checkpoint_failure_fatal", false) {
		opts = append(opts, stategraph.WithCheckpointFailureFatal())
	}

	if cfg.Has("retry") {
		retry := cfg.Sub("retry")
		policy := failure.DefaultPolicy
		policy.MaxAttempts = retry.Int("max_attempts", policy.MaxAttempts)
		policy.InitialDelay = retry.Duration("initial_delay", policy.InitialDelay)
		policy.MaxDelay = retry.Duration("max_delay", policy.MaxDelay)
		policy.Multiplier = retry.Float("multiplier", policy.Multiplier)
		policy.Jitter = retry.Float("jitter", policy.Jitter)
		opts = append(opts, stategraph.WithRetryPolicy(policy))
	}

	if cfg.Has("breaker") {
		breaker := cfg.Sub("breaker")
		bc := failure.DefaultBreaker
		bc.FailureThreshold = breaker.Int("failure_threshold", bc.FailureThreshold)
		bc.Cooldown = breaker.Duration("cooldown", bc.Cooldown)
		opts = append(opts, stategraph.WithCircuitBreaker(bc))
	}

	return opts
}
