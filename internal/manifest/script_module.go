// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"convoy-cli/internal/config"
	"convoy-cli/internal/module"
	"convoy-cli/internal/script"
)

// EnvOptionPrefix prefixes the environment variables carrying resolved
// option values into a manifest module's script.
const EnvOptionPrefix = "CONVOY_OPT_"

// ScriptError reports a manifest script exiting with a non-zero status
// other than the manifest's retry exit code.
type ScriptError struct {
	Module string
	Status int
}

// Error implements the error interface.
func (e *ScriptError) Error() string {
	return fmt.Sprintf("script exited with status %d", e.Status)
}

// scriptModule runs a manifest's shell script as its Execute step.
type scriptModule struct {
	module.Core
	manifest *Manifest
}

func newScriptModule(core module.Core, m *Manifest) module.Module {
	return &scriptModule{Core: core, manifest: m}
}

// Configure validates the script body so a syntax error fails the run
// before any module executes.
func (s *scriptModule) Configure(_ context.Context, opts *config.Options) error {
	if err := script.Validate(s.manifest.Script, s.manifest.Name); err != nil {
		return err
	}
	s.SetOptions(opts)
	return nil
}

// Execute runs the script with resolved options in the environment. The
// manifest's retry_exit_code converts that exit status into a pipeline
// retry signal; any other non-zero status is an ordinary failure.
func (s *scriptModule) Execute(ctx context.Context) error {
	env := map[string]string{
		"CONVOY_MODULE": s.manifest.Name,
	}
	for _, spec := range s.manifest.Options {
		env[EnvOptionPrefix+envName(spec.Name)] = s.optionEnvValue(spec.Name)
	}

	s.Logger().Debug("running manifest script", "manifest", s.manifest.Path)

	code, err := script.Run(ctx, script.RunOptions{
		Script: s.manifest.Script,
		Name:   s.manifest.Name,
		Dir:    filepath.Dir(s.manifest.Path),
		Env:    env,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	if err != nil {
		return err
	}

	switch {
	case code == 0:
		return nil
	case s.manifest.RetryExitCode != 0 && code == s.manifest.RetryExitCode:
		return module.Retry(fmt.Sprintf("script exited with retry code %d", code), nil)
	default:
		return &ScriptError{Module: s.manifest.Name, Status: code}
	}
}

// optionEnvValue renders one resolved option for the environment. Lists are
// joined with commas, matching the canonical flag syntax.
func (s *scriptModule) optionEnvValue(name string) string {
	value := s.Options().Value(name)
	if list, ok := value.([]string); ok {
		return strings.Join(list, ",")
	}
	return fmt.Sprint(value)
}

// envName converts an option name to its environment variable form:
// "artifact-id" becomes "ARTIFACT_ID".
func envName(option string) string {
	upper := strings.ToUpper(option)
	return strings.NewReplacer("-", "_", ".", "_").Replace(upper)
}
