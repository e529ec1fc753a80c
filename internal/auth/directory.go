// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

package auth

import (
	"sync"

	"github.com/samber/oops"

	"github.com/authscope/authscope/internal/password"
	"github.com/authscope/authscope/internal/scope"
)

// Directory builds and caches one Authenticable per registered scope.
type Directory struct {
	registry *scope.Registry
	resolver RepositoryResolver
	hasher   password.Hasher
	opts     []Option

	mu    sync.Mutex
	cache map[scope.Name]*Authenticable
}

// NewDirectory creates a Directory. opts are applied to every Authenticable.
func NewDirectory(registry *scope.Registry, resolver RepositoryResolver, hasher password.Hasher, opts ...Option) (*Directory, error) {
	if registry == nil {
		return nil, oops.Code("AUTH_REGISTRY_REQUIRED").Errorf("scope registry is required")
	}
	if resolver == nil {
		return nil, oops.Code("AUTH_RESOLVER_REQUIRED").Errorf("repository resolver is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_HASHER_REQUIRED").Errorf("password hasher is required")
	}
	return &Directory{
		registry: registry,
		resolver: resolver,
		hasher:   hasher,
		opts:     opts,
		cache:    make(map[scope.Name]*Authenticable),
	}, nil
}

// For returns the Authenticable for the named scope.
func (d *Directory) For(name scope.Name) (*Authenticable, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if a, ok := d.cache[name]; ok {
		return a, nil
	}

	cfg, err := d.registry.Get(name)
	if err != nil {
		return nil, err
	}
	recordType, err := cfg.RecordType()
	if err != nil {
		return nil, err
	}
	repo, err := d.resolver.Repository(recordType)
	if err != nil {
		return nil, oops.Code("AUTH_REPOSITORY_UNAVAILABLE").
			With("scope", name.String()).
			With("record_type", recordType).
			Wrap(err)
	}
	a, err := NewAuthenticable(cfg, repo, d.hasher, d.opts...)
	if err != nil {
		return nil, err
	}
	d.cache[name] = a
	return a, nil
}
