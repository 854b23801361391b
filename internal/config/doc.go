// SPDX-License-Identifier: MPL-2.0

// Package config handles convoy configuration using Viper with TOML as the file format.
//
// Configuration is loaded from ~/.config/convoy/convoy.toml (or XDG equivalent on Linux,
// ~/Library/Application Support/convoy/convoy.toml on macOS, %APPDATA%\convoy\convoy.toml
// on Windows), with a ./convoy.toml fallback for project-local settings. The [convoy]
// table carries global settings; every other top-level table is a per-module section
// whose keys map onto that module's declared option schema.
//
// The Resolver merges three option layers per pipeline slot, lowest precedence first:
// descriptor defaults, the module's config file section, and command-line flags parsed
// from the slot's argument list. Unknown option names at any layer are fatal.
package config
