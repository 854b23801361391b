// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"strings"
)

type (
	// OptionType enumerates the value types a module option may declare.
	OptionType int

	// OptionSpec declares a single module option: its name, type, default
	// value, and help text. Specs are immutable once the descriptor is
	// loaded; the resolver reads them, never mutates them.
	OptionSpec struct {
		// Name is the option name as it appears in config file sections and
		// as the long flag (--name). Must not contain leading dashes.
		Name string
		// Shorthand is an optional one-letter flag alias.
		Shorthand string
		// Type selects the value type. Zero value is StringOption.
		Type OptionType
		// Default is the descriptor-level default, the lowest precedence
		// layer. Its dynamic type must match Type.
		Default any
		// Help is the one-line help text shown in module listings.
		Help string
		// Required marks options that must resolve to a non-empty value.
		Required bool
	}

	// Options is the canonical resolved option set for one module instance.
	// Values are fully normalized: list options are always []string no
	// matter which layer supplied them or in what shape.
	Options struct {
		module string
		values map[string]any
	}

	// UnknownOptionError reports an option name supplied by some layer that
	// the module's schema does not declare. Unknown names fail fast instead
	// of being silently ignored.
	UnknownOptionError struct {
		Module string
		Option string
		// Layer names the source that supplied the option ("config file",
		// "command line").
		Layer string
	}

	// MissingOptionError reports a required option that resolved to an
	// empty value across all layers.
	MissingOptionError struct {
		Module string
		Option string
	}
)

const (
	// StringOption is a free-form string value.
	StringOption OptionType = iota
	// BoolOption is a true/false toggle.
	BoolOption
	// IntOption is an integer value.
	IntOption
	// StringSliceOption is a list of strings, settable as a comma-separated
	// value or by repeating the flag.
	StringSliceOption
)

// String returns a human-readable type name.
func (t OptionType) String() string {
	switch t {
	case StringOption:
		return "string"
	case BoolOption:
		return "bool"
	case IntOption:
		return "int"
	case StringSliceOption:
		return "list"
	default:
		return "unknown"
	}
}

// Error implements the error interface.
func (e *UnknownOptionError) Error() string {
	return fmt.Sprintf("module %q does not declare option %q (supplied by %s)", e.Module, e.Option, e.Layer)
}

// Error implements the error interface.
func (e *MissingOptionError) Error() string {
	return fmt.Sprintf("module %q: missing required option %q", e.Module, e.Option)
}

// Module returns the name of the module these options were resolved for.
func (o *Options) Module() string { return o.module }

// IsSet reports whether the option resolved to a value (including a default).
func (o *Options) IsSet(name string) bool {
	_, ok := o.values[name]
	return ok
}

// Value returns the raw resolved value, or nil for undeclared names.
func (o *Options) Value(name string) any { return o.values[name] }

// String returns the option as a string, or "" when unset or mistyped.
func (o *Options) String(name string) string {
	s, _ := o.values[name].(string)
	return s
}

// Bool returns the option as a bool, false when unset or mistyped.
func (o *Options) Bool(name string) bool {
	b, _ := o.values[name].(bool)
	return b
}

// Int returns the option as an int, 0 when unset or mistyped.
func (o *Options) Int(name string) int {
	n, _ := o.values[name].(int)
	return n
}

// StringSlice returns the option as a []string, nil when unset or mistyped.
func (o *Options) StringSlice(name string) []string {
	s, _ := o.values[name].([]string)
	return s
}

// normalizeList converts the shapes a list option may arrive in (TOML array,
// repeated flag, comma-separated string) into the canonical []string form.
// Elements are trimmed; empty elements are dropped.
func normalizeList(value any) []string {
	var raw []string

	switch v := value.(type) {
	case nil:
		return nil
	case []string:
		raw = v
	case []any:
		for _, item := range v {
			raw = append(raw, fmt.Sprint(item))
		}
	case string:
		raw = []string{v}
	default:
		raw = []string{fmt.Sprint(v)}
	}

	var out []string
	for _, item := range raw {
		for _, part := range strings.Split(item, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
