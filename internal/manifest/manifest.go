// SPDX-License-Identifier: MPL-2.0

// Package manifest discovers script-defined modules from directories.
//
// A manifest is a TOML file declaring a module's identity, option schema,
// and a shell script body. Discovered manifests become ordinary module
// descriptors whose instances execute the script through the embedded shell
// interpreter, with resolved options exported as CONVOY_OPT_* environment
// variables. This is how site-local pipeline steps ship without recompiling
// convoy.
package manifest

import (
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"convoy-cli/internal/config"
)

// FileSuffix is the extension module manifests must carry.
const FileSuffix = ".toml"

type (
	// Manifest is the on-disk declaration of a script module.
	Manifest struct {
		Name        string       `toml:"name"`
		Group       string       `toml:"group"`
		Description string       `toml:"description"`
		Script      string       `toml:"script"`
		Options     []OptionDecl `toml:"option"`
		Provides    []string     `toml:"provides"`
		Requires    []string     `toml:"requires"`
		// RetryExitCode marks one exit code that converts into a
		// whole-pipeline retry signal instead of an ordinary failure.
		// Zero means no exit code retries.
		RetryExitCode int `toml:"retry_exit_code"`

		// Path is where the manifest was loaded from. Not part of the
		// TOML surface.
		Path string `toml:"-"`
	}

	// OptionDecl is the TOML shape of one option schema entry.
	OptionDecl struct {
		Name      string `toml:"name"`
		Shorthand string `toml:"shorthand"`
		Type      string `toml:"type"`
		Default   any    `toml:"default"`
		Help      string `toml:"help"`
		Required  bool   `toml:"required"`
	}

	// InvalidManifestError reports a manifest that parsed but fails
	// validation.
	InvalidManifestError struct {
		Path   string
		Reason string
	}
)

// Error implements the error interface.
func (e *InvalidManifestError) Error() string {
	return fmt.Sprintf("invalid module manifest %s: %s", e.Path, e.Reason)
}

// Parse decodes and validates a manifest. path is recorded for diagnostics.
func Parse(data []byte, path string) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse module manifest %s: %w", path, err)
	}
	m.Path = path

	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	fail := func(reason string) error {
		return &InvalidManifestError{Path: m.Path, Reason: reason}
	}

	if m.Name == "" {
		return fail("missing module name")
	}
	if strings.ContainsAny(m.Name, " \t") {
		return fail(fmt.Sprintf("module name %q must not contain whitespace", m.Name))
	}
	if m.Name == config.GlobalSection {
		return fail(fmt.Sprintf("module name %q is reserved for the global config section", m.Name))
	}
	if m.Script == "" {
		return fail("missing script body")
	}

	seen := make(map[string]bool, len(m.Options))
	for _, opt := range m.Options {
		if opt.Name == "" {
			return fail("option without a name")
		}
		if seen[opt.Name] {
			return fail(fmt.Sprintf("duplicate option %q", opt.Name))
		}
		seen[opt.Name] = true
		if _, err := optionType(opt.Type); err != nil {
			return fail(fmt.Sprintf("option %q: %v", opt.Name, err))
		}
	}

	return nil
}

// Schema converts the manifest's option declarations into the resolver's
// option schema.
func (m *Manifest) Schema() ([]config.OptionSpec, error) {
	schema := make([]config.OptionSpec, 0, len(m.Options))
	for _, opt := range m.Options {
		typ, err := optionType(opt.Type)
		if err != nil {
			return nil, &InvalidManifestError{Path: m.Path, Reason: fmt.Sprintf("option %q: %v", opt.Name, err)}
		}
		schema = append(schema, config.OptionSpec{
			Name:      opt.Name,
			Shorthand: opt.Shorthand,
			Type:      typ,
			Default:   coerceDefault(typ, opt.Default),
			Help:      opt.Help,
			Required:  opt.Required,
		})
	}
	return schema, nil
}

func optionType(name string) (config.OptionType, error) {
	switch name {
	case "", "string":
		return config.StringOption, nil
	case "bool":
		return config.BoolOption, nil
	case "int":
		return config.IntOption, nil
	case "list":
		return config.StringSliceOption, nil
	default:
		return 0, fmt.Errorf("unknown option type %q (want string, bool, int, or list)", name)
	}
}

// coerceDefault narrows TOML's decoded shapes (int64, []any) to the types
// the resolver expects for the declared option type.
func coerceDefault(typ config.OptionType, value any) any {
	if value == nil {
		return nil
	}
	switch typ {
	case config.IntOption:
		if n, ok := value.(int64); ok {
			return int(n)
		}
	case config.BoolOption:
		if b, ok := value.(bool); ok {
			return b
		}
	}
	return value
}
