// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"convoy-cli/internal/module"
	"convoy-cli/internal/registry"
)

// DirSource discovers module manifests under a directory tree.
type DirSource struct {
	dir string
}

// NewDirSource creates a source scanning dir recursively for *.toml
// manifests. A missing directory discovers nothing; scanning is not the
// place to decide whether a configured path must exist.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// Name identifies the source in logs and collision errors.
func (s *DirSource) Name() string {
	return "dir:" + s.dir
}

// Discover walks the directory and loads every manifest into a descriptor.
// A manifest that fails to parse or validate aborts discovery: a broken
// manifest on the module path is a configuration error, not noise to skip.
func (s *DirSource) Discover(ctx context.Context) ([]*registry.Descriptor, error) {
	info, err := os.Stat(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat module path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("module path %s is not a directory", s.dir)
	}

	var paths []string
	err = filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), FileSuffix) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan module path %s: %w", s.dir, err)
	}
	// Deterministic discovery order keeps collision reports stable.
	sort.Strings(paths)

	descriptors := make([]*registry.Descriptor, 0, len(paths))
	for _, path := range paths {
		desc, err := s.load(path)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, desc)
	}
	return descriptors, nil
}

func (s *DirSource) load(path string) (*registry.Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read module manifest %s: %w", path, err)
	}

	m, err := Parse(data, path)
	if err != nil {
		return nil, err
	}
	schema, err := m.Schema()
	if err != nil {
		return nil, err
	}

	return &registry.Descriptor{
		Name:        m.Name,
		Group:       m.Group,
		Description: m.Description,
		Options:     schema,
		Provides:    m.Provides,
		Requires:    m.Requires,
		Source:      path,
		New: func(core module.Core) module.Module {
			return newScriptModule(core, m)
		},
	}, nil
}
