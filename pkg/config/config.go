// Package config loads the kernos boot configuration from a JSON file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Config is the boot configuration.
type Config struct {
	// InitProc is the app the init process runs.
	InitProc string `json:"init_proc"`
	// Apps are the programs the init process spawns. Empty means all.
	Apps []string `json:"apps"`
	// Frames is the number of physical frames.
	Frames int `json:"frames"`
	// KernelStackPages is the size of each kernel stack in pages.
	KernelStackPages int `json:"kernel_stack_pages"`
	// UserStackPages is the size of each user stack in pages.
	UserStackPages int `json:"user_stack_pages"`
	// LogLevel is one of DEBUG, INFO, WARN or ERROR.
	LogLevel string `json:"log_level"`
	// LogFile receives a copy of the log. Empty logs to stdout only.
	LogFile string `json:"log_file"`
	// Step waits for a key press before every dispatch.
	Step bool `json:"step"`
}

// Configuration errors.
var (
	ErrNoInitProc   = errors.New("init_proc must not be empty")
	ErrNoFrames     = errors.New("frames must be positive")
	ErrStackPages   = errors.New("stack sizes must be positive")
	ErrUnknownLevel = errors.New("unknown log level")
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		InitProc:         "ch5b_initproc",
		Frames:           8192,
		KernelStackPages: 2,
		UserStackPages:   2,
		LogLevel:         "INFO",
	}
}

// Load reads a configuration file. Fields missing from the file keep their
// default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if err := setupConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func setupConfig(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch {
	case c.InitProc == "":
		return ErrNoInitProc
	case c.Frames <= 0:
		return ErrNoFrames
	case c.KernelStackPages <= 0 || c.UserStackPages <= 0:
		return ErrStackPages
	}
	switch c.LogLevel {
	case "DEBUG", "INFO", "WARN", "ERROR":
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownLevel, c.LogLevel)
}
