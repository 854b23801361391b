// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the CLI surface of convoy.
//
// The whole surface is a single root command: global flags, then a chain of
// module names with per-module options. The package wires configuration
// loading, module discovery, and the pipeline executor together and maps
// pipeline outcomes to process exit codes.
package cmd
