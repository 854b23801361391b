// SPDX-License-Identifier: MPL-2.0

// Package modules aggregates the built-in module descriptors shipped with
// the binary. Manifest-defined script modules come from module search paths
// instead; see internal/manifest.
package modules

import (
	"convoy-cli/internal/registry"

	"convoy-cli/modules/cache"
	"convoy-cli/modules/envinject"
	"convoy-cli/modules/provision"
	"convoy-cli/modules/runner"
	"convoy-cli/modules/scheduler"
)

// Builtin returns the descriptors of all compiled-in modules.
func Builtin() []*registry.Descriptor {
	return []*registry.Descriptor{
		cache.Descriptor(),
		envinject.Descriptor(),
		scheduler.Descriptor(),
		provision.Descriptor(),
		runner.Descriptor(),
	}
}
