// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"sort"

	"github.com/charmbracelet/glamour"
)

// Id identifies an entry in the issue catalog.
type Id int

const (
	UnknownModuleId Id = iota + 1
	ModuleCollisionId
	CapabilityNotFoundId
	ConfigLoadFailedId
	OptionResolutionFailedId
	RetriesExhaustedId
	ScriptExecutionFailedId
)

// MarkdownMsg is the raw markdown body of a catalog entry.
type MarkdownMsg string

// Issue is one catalog entry: guidance for a recurring failure class.
type Issue struct {
	id    Id
	mdMsg MarkdownMsg
}

// Id returns the catalog identifier.
func (i *Issue) Id() Id {
	return i.id
}

// MarkdownMsg returns the raw markdown body.
func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

// Render renders the issue's markdown with the given glamour style.
func (i *Issue) Render(stylePath string) (string, error) {
	return render(string(i.mdMsg), stylePath)
}

var (
	render = glamour.Render

	unknownModuleIssue = &Issue{
		id: UnknownModuleId,
		mdMsg: `
# Unknown module!

A name on the command line does not match any discovered module. No module
was executed.

## Things you can try:
- List all available modules:
~~~
$ convoy --list-modules
~~~
- Check for typos in the module name
- If the module ships as a manifest, make sure its directory is on the
  module path:
~~~
$ convoy --module-path /path/to/modules ...
~~~
  or in your config file:
~~~toml
[convoy]
module_paths = ["/path/to/modules"]
~~~`,
	}

	moduleCollisionIssue = &Issue{
		id: ModuleCollisionId,
		mdMsg: `
# Duplicate module name!

Two discovered modules declare the same name. Module names must be unique
across every source, so discovery stops before anything runs.

## Things you can try:
- Rename one of the colliding manifest modules
- Remove the stale directory from ` + "`module_paths`" + `
- Run with --debug to see which source each module came from`,
	}

	capabilityNotFoundIssue = &Issue{
		id: CapabilityNotFoundId,
		mdMsg: `
# Capability not found!

A module asked for a shared capability that no earlier module published.
Pipeline order is the only thing that connects producers to consumers, so
this almost always means the modules are in the wrong order.

## Example — the producer must come first:
~~~
$ convoy test-scheduler --environments x86_64 schedule-runner
~~~
not
~~~
$ convoy schedule-runner test-scheduler --environments x86_64
~~~

## Things you can try:
- Move the module that publishes the capability before the one consuming it
- Run with --list-modules to see what each module provides and requires`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

Could not load the convoy configuration file.

## Configuration file locations:
- Linux: ~/.config/convoy/convoy.toml
- macOS: ~/Library/Application Support/convoy/convoy.toml
- Windows: %APPDATA%\convoy\convoy.toml
- Fallback: ./convoy.toml

## Example configuration:
~~~toml
[convoy]
retries = 2
module_paths = ["/etc/convoy/modules"]

[cache]
namespace = "ci"
~~~`,
	}

	optionResolutionFailedIssue = &Issue{
		id: OptionResolutionFailedId,
		mdMsg: `
# Invalid module options!

An option supplied for a module — on the command line or in its config file
section — is not declared by that module, or a required option is missing.
Unknown options are never silently ignored.

## Things you can try:
- Check the spelling of the option against the module listing:
~~~
$ convoy --list-modules
~~~
- Remove stale keys from the module's section in convoy.toml`,
	}

	retriesExhaustedIssue = &Issue{
		id: RetriesExhaustedId,
		mdMsg: `
# Pipeline retries exhausted!

A module kept signaling a transient condition and the retry bound ran out,
so the last retry signal became a fatal error.

## Things you can try:
- Raise the bound: ` + "`convoy --retries 3 ...`" + ` or in convoy.toml:
~~~toml
[convoy]
retries = 3
~~~
- Check the external service the failing module talks to; a retry signal
  usually means infrastructure flakiness, not a configuration problem`,
	}

	scriptExecutionFailedIssue = &Issue{
		id: ScriptExecutionFailedId,
		mdMsg: `
# Module script failed!

A manifest module's script exited with a non-zero status.

## Things you can try:
- Run with --debug to see the script's output
- Test the script body in a shell
- If the failure is transient, declare ` + "`retry_exit_code`" + ` in the
  manifest so the exit code restarts the whole pipeline instead`,
	}

	issues = map[Id]*Issue{
		unknownModuleIssue.Id():          unknownModuleIssue,
		moduleCollisionIssue.Id():        moduleCollisionIssue,
		capabilityNotFoundIssue.Id():     capabilityNotFoundIssue,
		configLoadFailedIssue.Id():       configLoadFailedIssue,
		optionResolutionFailedIssue.Id(): optionResolutionFailedIssue,
		retriesExhaustedIssue.Id():       retriesExhaustedIssue,
		scriptExecutionFailedIssue.Id():  scriptExecutionFailedIssue,
	}
)

// Get returns the catalog entry for id, or nil when none exists.
func Get(id Id) *Issue {
	return issues[id]
}

// Values returns all catalog entries ordered by Id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].id < out[b].id })
	return out
}
