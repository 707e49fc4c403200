// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package kernel

import "github.com/lowRISC/otcryptocore/pkg/cryptoerr"

// AttributeID identifies an attribute governed by an object's ACL. The
// concrete enumeration of attribute IDs lives in internal/attrstore;
// the kernel only needs opaque comparable keys.
type AttributeID int

// ACLEntry describes the visibility and state requirements for one
// attribute.
type ACLEntry struct {
	// Internal permits the attribute to be read/written by code inside
	// this module (e.g. the envelope engine setting a context's IV).
	Internal bool
	// External permits the attribute to be read/written by a caller
	// outside the module boundary.
	External bool
	// RequiredState is the minimum object state the attribute may be
	// touched in; StateLow means "any state".
	RequiredState State
	// WriteRequiresLow is set for attributes that become immutable once
	// the object reaches StateHigh (e.g. a context's algorithm once
	// keyed).
	WriteRequiresLow bool
}

// ACL is a per-object-type table of attribute access rules.
type ACL struct {
	entries map[AttributeID]ACLEntry
}

// NewACL builds an ACL from a table of entries.
func NewACL(entries map[AttributeID]ACLEntry) *ACL {
	return &ACL{entries: entries}
}

// Check validates that an access of kind (read/write) from origin
// (internal/external) against attr is permitted given the object's
// current state.
func (a *ACL) Check(attr AttributeID, external bool, write bool, state State) error {
	if a == nil {
		return nil
	}
	entry, ok := a.entries[attr]
	if !ok {
		return cryptoerr.New(cryptoerr.NotFound)
	}
	if external && !entry.External {
		return cryptoerr.New(cryptoerr.Permission)
	}
	if !external && !entry.Internal {
		return cryptoerr.New(cryptoerr.Permission)
	}
	if entry.RequiredState != StateLow && state != entry.RequiredState {
		return cryptoerr.New(cryptoerr.NotInited)
	}
	if write && entry.WriteRequiresLow && state == StateHigh {
		return cryptoerr.New(cryptoerr.Permission)
	}
	return nil
}
