// SPDX-License-Identifier: MPL-2.0

// Package cache provides the built-in cache module: it publishes the
// "cache" capability backed by an in-process store honoring the
// check-and-set protocol.
package cache

import (
	"context"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	cachestore "convoy-cli/internal/cache"
	"convoy-cli/internal/capability"
	"convoy-cli/internal/config"
	"convoy-cli/internal/module"
	"convoy-cli/internal/registry"
)

// CapabilityName is the shared-capability name the cache is published under.
const CapabilityName = "cache"

// Descriptor returns the module's registry entry.
func Descriptor() *registry.Descriptor {
	return &registry.Descriptor{
		Name:        "cache",
		Group:       "infrastructure",
		Description: "Provides an in-process CAS-capable cache to later modules.",
		Options: []config.OptionSpec{
			{
				Name:    "namespace",
				Type:    config.StringOption,
				Default: "",
				Help:    "Prefix applied to every key going through the published cache.",
			},
			{
				Name:    "dump-path",
				Type:    config.StringOption,
				Default: "",
				Help:    "When set, the cache contents are written to this file as TOML on teardown.",
			},
		},
		Provides: []string{CapabilityName},
		New: func(core module.Core) module.Module {
			return &cacheModule{Core: core}
		},
	}
}

type cacheModule struct {
	module.Core

	namespace string
	dumpPath  string
	store     *cachestore.MemoryCache
}

// Configure validates options and creates the backing store.
func (m *cacheModule) Configure(_ context.Context, opts *config.Options) error {
	m.SetOptions(opts)
	m.namespace = opts.String("namespace")
	m.dumpPath = opts.String("dump-path")
	m.store = cachestore.NewMemory()
	return nil
}

// Execute has nothing to do; the capability is registered right after it.
func (m *cacheModule) Execute(context.Context) error {
	m.Logger().Debug("cache ready", "namespace", m.namespace)
	return nil
}

// Shared publishes the cache accessor once Execute succeeded.
func (m *cacheModule) Shared() map[string]capability.Invocable {
	return map[string]capability.Invocable{
		CapabilityName: func(context.Context, ...any) (any, error) {
			return m.Cache(), nil
		},
	}
}

// Cache returns the published cache object, namespaced when configured.
func (m *cacheModule) Cache() cachestore.Cache {
	if m.namespace == "" {
		return m.store
	}
	return &namespaced{prefix: m.namespace + "/", inner: m.store}
}

// Destroy dumps the store when asked to; otherwise the store is garbage.
// The dump is written even when the run failed, so cached state survives
// for inspection.
func (m *cacheModule) Destroy(_ context.Context, _ *module.Failure) error {
	if m.store == nil {
		return nil
	}
	m.Logger().Debug("discarding cache", "keys", m.store.Len())

	if m.dumpPath == "" {
		return nil
	}
	raw, err := toml.Marshal(m.store.Snapshot())
	if err != nil {
		return fmt.Errorf("cannot serialize cache dump: %w", err)
	}
	if err := os.WriteFile(m.dumpPath, raw, 0o644); err != nil {
		return fmt.Errorf("cannot write cache dump: %w", err)
	}
	m.Logger().Info("cache dumped", "path", m.dumpPath)
	return nil
}

// namespaced prefixes every key before delegating to the inner cache.
type namespaced struct {
	prefix string
	inner  cachestore.Cache
}

func (n *namespaced) key(key string) string { return fmt.Sprintf("%s%s", n.prefix, key) }

func (n *namespaced) Get(key string, def any) any { return n.inner.Get(n.key(key), def) }

func (n *namespaced) Gets(key string) (any, cachestore.Tag, bool) { return n.inner.Gets(n.key(key)) }

func (n *namespaced) Set(key string, value any) { n.inner.Set(n.key(key), value) }

func (n *namespaced) Cas(key string, value any, tag cachestore.Tag) bool {
	return n.inner.Cas(n.key(key), value, tag)
}
