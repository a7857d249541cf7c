// Package config loads the daemon configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cyberinferno/telnetd/commands"
	"github.com/cyberinferno/telnetd/logger"
	"github.com/cyberinferno/telnetd/telnet"
)

// File is the daemon configuration. Fields missing from the YAML document
// keep their defaults.
type File struct {
	Server   telnet.Config    `yaml:"server"`
	Log      logger.Options   `yaml:"log"`
	Commands commands.Options `yaml:"commands"`
}

// Default returns the configuration used when no file is given.
func Default() File {
	return File{
		Server: telnet.DefaultConfig(),
		Log: logger.Options{
			Service: "telnetd",
			Level:   "info",
		},
		Commands: commands.DefaultOptions(),
	}
}

// Load reads and validates the configuration file at path.
//
// Parameters:
//   - path: YAML file location
//
// Returns:
//   - The configuration on top of Default, or a read, parse or validation error
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("config: %w", err)
	}

	f, err := Parse(data)
	if err != nil {
		return File{}, fmt.Errorf("config: %s: %w", path, err)
	}

	return f, nil
}

// Parse decodes a YAML document on top of Default and validates it. Unknown
// keys are rejected.
func Parse(data []byte) (File, error) {
	f := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return File{}, err
	}

	if err := f.Validate(); err != nil {
		return File{}, err
	}

	return f, nil
}

// Validate checks every section.
func (f File) Validate() error {
	if err := f.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if _, err := logger.ParseLevel(f.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}

	if f.Commands.SlowThreshold < 0 {
		return fmt.Errorf("commands: slow threshold must not be negative")
	}

	if f.Commands.CacheTTL < 0 {
		return fmt.Errorf("commands: cache ttl must not be negative")
	}

	return nil
}
