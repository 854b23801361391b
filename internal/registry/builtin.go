// SPDX-License-Identifier: MPL-2.0

package registry

import "context"

// builtinSource serves descriptors compiled into the binary.
type builtinSource struct {
	descriptors []*Descriptor
}

// NewBuiltinSource wraps compiled-in descriptors as a discovery source.
func NewBuiltinSource(descriptors ...*Descriptor) Source {
	return &builtinSource{descriptors: descriptors}
}

// Name identifies the source in logs and collision errors.
func (s *builtinSource) Name() string { return "builtin" }

// Discover returns the compiled-in descriptors.
func (s *builtinSource) Discover(context.Context) ([]*Descriptor, error) {
	return s.descriptors, nil
}
