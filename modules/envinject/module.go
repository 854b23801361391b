// SPDX-License-Identifier: MPL-2.0

// Package envinject provides the built-in env-inject module: it assembles
// an environment map from its options and publishes it as the "env"
// capability for later modules to merge into whatever they execute.
package envinject

import (
	"context"
	"fmt"
	"os"
	"strings"

	"convoy-cli/internal/capability"
	"convoy-cli/internal/config"
	"convoy-cli/internal/module"
	"convoy-cli/internal/registry"
)

// CapabilityName is the shared-capability name the environment map is
// published under.
const CapabilityName = "env"

// Descriptor returns the module's registry entry.
func Descriptor() *registry.Descriptor {
	return &registry.Descriptor{
		Name:        "env-inject",
		Group:       "helpers",
		Description: "Publishes an environment variable map for later modules.",
		Options: []config.OptionSpec{
			{
				Name:    "env",
				Type:    config.StringSliceOption,
				Default: nil,
				Help:    "Variables to inject, as repeated or comma-separated KEY=VALUE pairs.",
			},
			{
				Name:    "env-file",
				Type:    config.StringSliceOption,
				Default: nil,
				Help:    "Files with one KEY=VALUE per line; direct --env pairs win over file entries.",
			},
		},
		Provides: []string{CapabilityName},
		New: func(core module.Core) module.Module {
			return &envModule{Core: core}
		},
	}
}

type envModule struct {
	module.Core

	vars map[string]string
}

// Configure parses the KEY=VALUE pairs; a malformed pair fails fast.
// File entries load first so direct pairs override them.
func (m *envModule) Configure(_ context.Context, opts *config.Options) error {
	m.SetOptions(opts)

	m.vars = make(map[string]string)
	for _, path := range opts.StringSlice("env-file") {
		if err := m.loadFile(path); err != nil {
			return err
		}
	}
	for _, pair := range opts.StringSlice("env") {
		if err := m.addPair(pair); err != nil {
			return err
		}
	}
	return nil
}

func (m *envModule) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read env file: %w", err)
	}
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := m.addPair(line); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func (m *envModule) addPair(pair string) error {
	key, value, ok := strings.Cut(pair, "=")
	if !ok || key == "" {
		return fmt.Errorf("invalid env entry %q, want KEY=VALUE", pair)
	}
	m.vars[key] = value
	return nil
}

// Execute logs what will be injected; publication happens via Shared.
func (m *envModule) Execute(context.Context) error {
	m.Logger().Debug("environment assembled", "variables", len(m.vars))
	return nil
}

// Shared publishes the environment map accessor.
func (m *envModule) Shared() map[string]capability.Invocable {
	return map[string]capability.Invocable{
		CapabilityName: func(context.Context, ...any) (any, error) {
			// Hand out a copy; consumers must not mutate each other's view.
			out := make(map[string]string, len(m.vars))
			for k, v := range m.vars {
				out[k] = v
			}
			return out, nil
		},
	}
}
