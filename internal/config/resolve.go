// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Resolver merges the three option layers for one module slot. The same
// resolver is reused across slots and across pipeline retries; it holds no
// per-slot state.
type Resolver struct {
	file   *File
	logger *slog.Logger
}

// NewResolver creates a resolver over the loaded configuration file.
// file may be nil when no configuration file exists.
func NewResolver(file *File, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{file: file, logger: logger}
}

// Resolve produces the canonical option set for one pipeline slot of the
// named module. Precedence, lowest to highest: schema defaults, the module's
// config file section, then the slot's command-line arguments. An option
// name any layer supplies that the schema does not declare is a fatal error.
func (r *Resolver) Resolve(module string, schema []OptionSpec, args []string) (*Options, error) {
	v := viper.New()

	declared := make(map[string]OptionSpec, len(schema))
	for _, spec := range schema {
		declared[spec.Name] = spec
		v.SetDefault(spec.Name, defaultFor(spec))
	}

	// Layer 2: config file section matching the module's name.
	if section := r.file.Section(module); section != nil {
		for key := range section {
			if _, ok := declared[key]; !ok {
				return nil, &UnknownOptionError{Module: module, Option: key, Layer: "config file"}
			}
		}
		if err := v.MergeConfigMap(section); err != nil {
			return nil, fmt.Errorf("failed to merge config section [%s]: %w", module, err)
		}
		r.logger.Debug("applied config file section", "module", module, "keys", len(section))
	}

	// Layer 3: command-line flags for this slot. Viper only prefers a bound
	// flag over lower layers when the flag was explicitly changed, which is
	// exactly the precedence the option contract requires.
	fs := newFlagSet(module, schema)
	if err := fs.Parse(args); err != nil {
		if name, ok := unknownFlagName(err); ok {
			return nil, &UnknownOptionError{Module: module, Option: name, Layer: "command line"}
		}
		return nil, fmt.Errorf("module %q: %w", module, err)
	}
	if positional := fs.Args(); len(positional) > 0 {
		return nil, fmt.Errorf("module %q: unexpected positional argument %q", module, positional[0])
	}
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("module %q: failed to bind flags: %w", module, err)
	}

	values := make(map[string]any, len(schema))
	for _, spec := range schema {
		switch spec.Type {
		case BoolOption:
			values[spec.Name] = v.GetBool(spec.Name)
		case IntOption:
			values[spec.Name] = v.GetInt(spec.Name)
		case StringSliceOption:
			values[spec.Name] = normalizeList(v.Get(spec.Name))
		default:
			values[spec.Name] = v.GetString(spec.Name)
		}
	}

	opts := &Options{module: module, values: values}
	if err := checkRequired(module, schema, opts); err != nil {
		return nil, err
	}

	return opts, nil
}

// FlagSet builds the pflag set for a module's schema. Exposed so help output
// can render a module's flags without resolving anything.
func FlagSet(module string, schema []OptionSpec) *pflag.FlagSet {
	return newFlagSet(module, schema)
}

func newFlagSet(module string, schema []OptionSpec) *pflag.FlagSet {
	fs := pflag.NewFlagSet(module, pflag.ContinueOnError)
	fs.SortFlags = false
	// Errors are surfaced by the resolver; pflag must not print or exit.
	fs.Usage = func() {}

	for _, spec := range schema {
		switch spec.Type {
		case BoolOption:
			def, _ := spec.Default.(bool)
			fs.BoolP(spec.Name, spec.Shorthand, def, spec.Help)
		case IntOption:
			def, _ := spec.Default.(int)
			fs.IntP(spec.Name, spec.Shorthand, def, spec.Help)
		case StringSliceOption:
			fs.StringSliceP(spec.Name, spec.Shorthand, normalizeList(spec.Default), spec.Help)
		default:
			def, _ := spec.Default.(string)
			fs.StringP(spec.Name, spec.Shorthand, def, spec.Help)
		}
	}

	return fs
}

// defaultFor returns the schema default in its canonical shape.
func defaultFor(spec OptionSpec) any {
	if spec.Type == StringSliceOption {
		return normalizeList(spec.Default)
	}
	if spec.Default != nil {
		return spec.Default
	}
	switch spec.Type {
	case BoolOption:
		return false
	case IntOption:
		return 0
	default:
		return ""
	}
}

// checkRequired enforces Required on the resolved values. Only string and
// list options can meaningfully be required: an empty resolved value means
// no layer supplied one.
func checkRequired(module string, schema []OptionSpec, opts *Options) error {
	for _, spec := range schema {
		if !spec.Required {
			continue
		}
		switch spec.Type {
		case StringSliceOption:
			if len(opts.StringSlice(spec.Name)) == 0 {
				return &MissingOptionError{Module: module, Option: spec.Name}
			}
		case StringOption:
			if opts.String(spec.Name) == "" {
				return &MissingOptionError{Module: module, Option: spec.Name}
			}
		}
	}
	return nil
}

// unknownFlagName extracts the offending flag name from pflag's unknown-flag
// errors so they can be reported as UnknownOptionError.
func unknownFlagName(err error) (string, bool) {
	msg := err.Error()
	for _, prefix := range []string{"unknown flag: --", "unknown shorthand flag: "} {
		if strings.HasPrefix(msg, prefix) {
			name := strings.TrimPrefix(msg, prefix)
			name = strings.TrimPrefix(name, "'")
			if i := strings.IndexAny(name, "' "); i >= 0 {
				name = name[:i]
			}
			return name, true
		}
	}
	return "", false
}
