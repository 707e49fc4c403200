// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

// Package kernel implements the handle-based object runtime that every
// other subsystem (key contexts, certificates, envelopes, sessions)
// addresses through: reference-counted objects, dependent-object
// chains, a re-entrant per-object lock and a closed, typed message set.
//
// cryptlib identifies a lock's owner by OS thread ID; Go does not
// expose a stable goroutine identity, so re-entrancy here is keyed off
// a caller-supplied LockToken instead of an implicit thread ID. Callers
// that want cryptlib's "any message from the owning thread re-enters"
// behaviour mint one LockToken per logical worker and reuse it across
// calls (see DESIGN.md).
package kernel

import (
	"sync"

	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// Handle addresses an Object inside a Kernel. The zero Handle is never
// valid.
type Handle uint64

// ObjectType tags the union-typed object the original C source
// expresses via an untagged handle plus a subtype field.
type ObjectType int

const (
	TypeContext ObjectType = iota
	TypeCertificate
	TypeEnvelope
	TypeKeyset
	TypeSession
	TypeDevice
	TypeUser
)

// State models an object's lifecycle stage. Objects in StateHigh
// (keyed/signed/finalised) reject attribute sets that would violate
// their finalised contents.
type State int

const (
	StateLow State = iota // newly created, still configurable
	StateHigh
	StateDestroyed
	StateSignalled
)

// LockToken identifies a logical lock owner (see package doc).
type LockToken uint64

// Payload is the object-kind-specific data a handle carries. Concrete
// kinds (context data, certificate data, envelope state, ...) implement
// this as a marker; packages outside kernel type-assert Payload back to
// their own concrete struct after acquiring the object.
type Payload interface {
	// ObjectType reports which kind of payload this is, so the kernel
	// can validate a message's target without an unsafe type switch at
	// every call site.
	ObjectType() ObjectType
}

// Object is the kernel-owned record behind every Handle.
type Object struct {
	handle Handle
	typ    ObjectType
	state  State

	mu         sync.Mutex
	cond       *sync.Cond
	lockOwner  LockToken
	lockDepth  int
	lockHeld   bool
	refCount   int
	dependents []Handle // dependent-object chain (cert->context, context->device, chain->certs)

	acl     *ACL
	payload Payload
}

// Type returns the object's kind.
func (o *Object) Type() ObjectType { return o.typ }

// State returns the object's lifecycle state.
func (o *Object) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Handle returns the object's own handle.
func (o *Object) Handle() Handle { return o.handle }

// Payload returns the kind-specific payload attached at creation.
func (o *Object) Payload() Payload { return o.payload }

// SetHigh transitions the object to the "high" (finalised) state. It is
// idempotent.
func (o *Object) SetHigh() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateLow {
		o.state = StateHigh
	}
}

// checkAlive returns SIGNALLED for any message sent to a destroyed or
// signalled object, per spec.md section 3's kernel invariant.
func (o *Object) checkAlive() error {
	if o.state == StateDestroyed || o.state == StateSignalled {
		return cryptoerr.New(cryptoerr.Signalled)
	}
	return nil
}

// Lock acquires the object's re-entrant lock for owner. A second lock
// by the same owner increments the depth counter instead of blocking;
// a lock held by a different owner blocks until release.
func (o *Object) Lock(owner LockToken) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cond == nil {
		o.cond = sync.NewCond(&o.mu)
	}
	for o.lockHeld && o.lockOwner != owner {
		o.cond.Wait()
	}
	if err := o.checkAlive(); err != nil {
		if o.lockHeld && o.lockOwner == owner {
			// Still let a re-entrant caller proceed to unwind cleanly.
		} else {
			return err
		}
	}
	o.lockHeld = true
	o.lockOwner = owner
	o.lockDepth++
	return nil
}

// Unlock releases one level of the re-entrant lock; the object is only
// actually unlocked once the depth counter reaches zero.
func (o *Object) Unlock(owner LockToken) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.lockHeld || o.lockOwner != owner {
		return
	}
	o.lockDepth--
	if o.lockDepth <= 0 {
		o.lockDepth = 0
		o.lockHeld = false
		if o.cond != nil {
			o.cond.Broadcast()
		}
	}
}
