// SPDX-License-Identifier: MPL-2.0

// Package script runs shell snippets through the embedded mvdan/sh
// interpreter. Manifest modules execute their bodies with it, and the
// schedule runner uses it to run test commands against local guests,
// so module scripts behave identically on every platform convoy runs on.
package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// RunOptions configures one script execution.
type RunOptions struct {
	// Script is the shell source to execute.
	Script string
	// Name labels the script in parse errors (module or entry name).
	Name string
	// Dir is the working directory; empty means the process working dir.
	Dir string
	// Env is merged over the process environment.
	Env map[string]string
	// Params become the script's positional parameters ($1, $2, ...).
	Params []string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Validate parses the script and reports syntax errors without running it.
// Call it at configure time so a broken script fails fast.
func Validate(scriptBody, name string) error {
	_, err := syntax.NewParser().Parse(strings.NewReader(scriptBody), name)
	if err != nil {
		return fmt.Errorf("script syntax error: %w", err)
	}
	return nil
}

// Run executes the script and returns its exit code. A non-zero exit code is
// not an error; err is set only when the script could not run at all.
func Run(ctx context.Context, opts RunOptions) (int, error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader(opts.Script), opts.Name)
	if err != nil {
		return 1, fmt.Errorf("failed to parse script: %w", err)
	}

	runnerOpts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(buildEnviron(opts.Env)...)),
		interp.StdIO(opts.Stdin, opts.Stdout, opts.Stderr),
	}
	if opts.Dir != "" {
		runnerOpts = append(runnerOpts, interp.Dir(opts.Dir))
	}
	// Prepend "--" so params that look like shell options ("-v") are not
	// interpreted as such by interp.Params.
	if len(opts.Params) > 0 {
		params := append([]string{"--"}, opts.Params...)
		runnerOpts = append(runnerOpts, interp.Params(params...))
	}

	runner, err := interp.New(runnerOpts...)
	if err != nil {
		return 1, fmt.Errorf("failed to create interpreter: %w", err)
	}

	if err := runner.Run(ctx, prog); err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			return int(exitStatus), nil
		}
		return 1, fmt.Errorf("script execution failed: %w", err)
	}

	return 0, nil
}

// buildEnviron merges extra over the process environment and returns the
// KEY=VALUE slice the interpreter expects, deterministically ordered.
func buildEnviron(extra map[string]string) []string {
	merged := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			merged[kv[:i]] = kv[i+1:]
		}
	}
	for k, v := range extra {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+merged[k])
	}
	return out
}
