// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

// Package scope holds the per-scope authentication configuration.
//
// A Registry is populated once at start-up with Scope and read for the rest
// of the process lifetime. The package-level Default registry backs
// Configure; ResetDefault exists for test harnesses only.
package scope

import (
	"sort"
	"sync"

	"github.com/samber/oops"
)

// Registry maps scope names to their configuration.
type Registry struct {
	mu     sync.RWMutex
	scopes map[Name]*Config
	cookie CookiePolicy
}

// NewRegistry creates an empty registry with the default cookie policy.
func NewRegistry() *Registry {
	return &Registry{
		scopes: make(map[Name]*Config),
		cookie: DefaultCookiePolicy(),
	}
}

// Scope creates the configuration for name, passes it to configure and
// registers it.
func (r *Registry) Scope(name Name, configure func(*Config)) error {
	if configure == nil {
		return oops.Code("SCOPE_CONFIGURER_REQUIRED").
			With("scope", name.String()).
			Wrapf(ErrInvalidArgument, "scope %q requires a configurer", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.scopes[name]; exists {
		return oops.Code("SCOPE_ALREADY_REGISTERED").
			With("scope", name.String()).
			Wrapf(ErrConfiguration, "scope %q is already registered", name)
	}

	cfg := NewConfig(name)
	configure(cfg)
	r.scopes[name] = cfg
	return nil
}

// Lookup returns the configuration for name, if registered.
func (r *Registry) Lookup(name Name) (*Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.scopes[name]
	return cfg, ok
}

// Get returns the configuration for name or a configuration error.
func (r *Registry) Get(name Name) (*Config, error) {
	cfg, ok := r.Lookup(name)
	if !ok {
		return nil, oops.Code("SCOPE_NOT_REGISTERED").
			With("scope", name.String()).
			Wrapf(ErrConfiguration, "scope %q is not registered", name)
	}
	return cfg, nil
}

// Names returns the registered scope names in sorted order.
func (r *Registry) Names() []Name {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]Name, 0, len(r.scopes))
	for name := range r.scopes {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Validate checks every registered scope and returns the first failure.
func (r *Registry) Validate() error {
	for _, name := range r.Names() {
		cfg, _ := r.Lookup(name)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// CookiePolicy returns the process-wide cookie policy.
func (r *Registry) CookiePolicy() CookiePolicy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cookie
}

// SetCookiePolicy replaces the process-wide cookie policy.
func (r *Registry) SetCookiePolicy(p CookiePolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cookie = p
}

var (
	defaultMu       sync.Mutex
	defaultRegistry = NewRegistry()
)

// Default returns the process-wide registry.
func Default() *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultRegistry
}

// Configure registers a scope on the process-wide registry.
func Configure(name Name, configure func(*Config)) error {
	return Default().Scope(name, configure)
}

// ResetDefault replaces the process-wide registry with an empty one.
// Only test harnesses call this.
func ResetDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultRegistry = NewRegistry()
}
