// Package config loads tool configuration from HCL files.
package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config holds the settings for the CLI and the NFS server.
type Config struct {
	// Listen is the TCP address the NFS server binds to.
	Listen string `hcl:"listen,optional"`
	// CacheSize bounds the prefetch value cache, in entries.
	CacheSize int `hcl:"cache_size,optional"`
	// Workers bounds prefetch concurrency.
	Workers int `hcl:"workers,optional"`
	// MCAMarker overrides the spectrum line prefix, normally "@A".
	MCAMarker string `hcl:"mca_marker,optional"`
	// Verbose enables debug logging.
	Verbose bool `hcl:"verbose,optional"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Listen:    ":2049",
		CacheSize: 1024,
		Workers:   4,
		MCAMarker: "@A",
	}
}

// Load parses an HCL config file and merges it over the defaults.
func Load(path string) (*Config, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}

	cfg := Default()
	diags = gohcl.DecodeBody(hclFile.Body, nil, cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size must not be negative, got %d", c.CacheSize)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.MCAMarker == "" {
		return fmt.Errorf("mca_marker must not be empty")
	}
	return nil
}
