// Package config decodes the engine-level run configuration: worker pool
// sizes, the run-wide deadline, retry back-off shape, the remote-executor
// endpoint, and the task manifest directory (SPEC_FULL.md § "Ambient
// stack"). This is a deliberately different HCL document from Pointy-Lang
// source and from a task manifest: Pointy-Lang says what to run, a task
// manifest says what handlers exist, and this file says how the engine
// itself is tuned for one invocation — the same three-way split the
// teacher draws between its grid HCL, its module manifests, and its CLI
// flags, just collected into one config block instead of flags.
package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/pointyflow/internal/executorpool"
)

type workersBlock struct {
	IO     int64 `hcl:"io,optional"`
	CPU    int64 `hcl:"cpu,optional"`
	Remote int64 `hcl:"remote,optional"`
}

type backoffBlock struct {
	Base       string  `hcl:"base,optional"`
	Max        string  `hcl:"max,optional"`
	Multiplier float64 `hcl:"multiplier,optional"`
}

type remoteBlock struct {
	Transport string `hcl:"transport,optional"`
	Endpoint  string `hcl:"endpoint,optional"`
}

type engineBlock struct {
	Workers       *workersBlock `hcl:"workers,block"`
	Deadline      string        `hcl:"deadline,optional"`
	Backoff       *backoffBlock `hcl:"backoff,block"`
	Remote        *remoteBlock  `hcl:"remote,block"`
	ManifestsPath string        `hcl:"manifests_path,optional"`
}

type rootBlock struct {
	Engine engineBlock `hcl:"engine,block"`
}

// Backoff is the decoded exponential back-off shape for retries.
type Backoff struct {
	Base       time.Duration
	Max        time.Duration
	Multiplier float64
}

// Func returns the scheduler.Config.Backoff callback this shape describes:
// Base for the first retry, multiplying by Multiplier on every subsequent
// one, capped at Max.
func (b Backoff) Func() func(attempt int) time.Duration {
	return func(attempt int) time.Duration {
		if b.Base <= 0 || attempt < 1 {
			return 0
		}
		d := b.Base
		for i := 1; i < attempt; i++ {
			d = time.Duration(float64(d) * b.Multiplier)
			if b.Max > 0 && d > b.Max {
				return b.Max
			}
		}
		return d
	}
}

// Config is the decoded, format-agnostic engine run configuration.
type Config struct {
	Pools           executorpool.Options
	Deadline        time.Duration
	Backoff         Backoff
	RemoteTransport string // "http", "socketio", or "" for no remote transport
	RemoteEndpoint  string
	ManifestsPath   string
}

// Default returns the configuration an engine run uses when no HCL config
// file is given: every pool size at its executorpool default, no deadline,
// immediate retries, no remote transport, and manifests read from a
// "manifests" directory relative to the working directory.
func Default() *Config {
	return &Config{ManifestsPath: "manifests", Backoff: Backoff{Multiplier: 2}}
}

// Load decodes the engine configuration HCL file at path.
func Load(path string) (*Config, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("config: parsing %s: %w", path, diags)
	}

	var root rootBlock
	if diags := gohcl.DecodeBody(f.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("config: %s: %w", path, diags)
	}

	cfg := Default()
	e := root.Engine

	if e.Workers != nil {
		cfg.Pools = executorpool.Options{
			IOConcurrency:     e.Workers.IO,
			CPUConcurrency:    e.Workers.CPU,
			RemoteConcurrency: e.Workers.Remote,
		}
	}

	if e.Deadline != "" {
		d, err := time.ParseDuration(e.Deadline)
		if err != nil {
			return nil, fmt.Errorf("config: %s: deadline: %w", path, err)
		}
		cfg.Deadline = d
	}

	if e.Backoff != nil {
		if e.Backoff.Base != "" {
			d, err := time.ParseDuration(e.Backoff.Base)
			if err != nil {
				return nil, fmt.Errorf("config: %s: backoff.base: %w", path, err)
			}
			cfg.Backoff.Base = d
		}
		if e.Backoff.Max != "" {
			d, err := time.ParseDuration(e.Backoff.Max)
			if err != nil {
				return nil, fmt.Errorf("config: %s: backoff.max: %w", path, err)
			}
			cfg.Backoff.Max = d
		}
		if e.Backoff.Multiplier > 0 {
			cfg.Backoff.Multiplier = e.Backoff.Multiplier
		}
	}

	if e.Remote != nil {
		cfg.RemoteTransport = e.Remote.Transport
		cfg.RemoteEndpoint = e.Remote.Endpoint
	}

	if e.ManifestsPath != "" {
		cfg.ManifestsPath = e.ManifestsPath
	}

	return cfg, nil
}
