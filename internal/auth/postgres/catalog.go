// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

package postgres

import (
	"github.com/samber/oops"

	"github.com/authscope/authscope/internal/auth"
)

// Catalog resolves record types to repositories for a fixed set of tables.
type Catalog struct {
	repos map[string]*PrincipalRepository
}

// NewCatalog creates a Catalog serving tables.
func NewCatalog(pool poolIface, tables ...string) *Catalog {
	c := &Catalog{repos: make(map[string]*PrincipalRepository, len(tables))}
	for _, t := range tables {
		c.repos[t] = NewPrincipalRepository(pool, t)
	}
	return c
}

// Repository implements auth.RepositoryResolver.
func (c *Catalog) Repository(recordType string) (auth.PrincipalRepository, error) {
	repo, ok := c.repos[recordType]
	if !ok {
		return nil, oops.Code("PRINCIPAL_UNKNOWN_RECORD_TYPE").
			With("record_type", recordType).
			Wrap(auth.ErrUnknownRecordType)
	}
	return repo, nil
}

// Verify interface is satisfied.
var _ auth.RepositoryResolver = (*Catalog)(nil)
