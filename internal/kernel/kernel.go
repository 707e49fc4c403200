// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"sync"
	"sync/atomic"

	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// Kernel owns the handle table. Any number of goroutines may hold or
// dereference a Handle concurrently; the registry mutex only protects
// table membership, not an individual object's contents (that's the
// per-Object lock in object.go).
type Kernel struct {
	mu      sync.RWMutex
	objects map[Handle]*Object
	nextID  uint64
}

// New returns an empty Kernel. One Kernel is typically process-wide,
// mirroring cryptlib's single default system object.
func New() *Kernel {
	return &Kernel{objects: make(map[Handle]*Object)}
}

// CreateObject allocates a new object of the given type owned by the
// caller, with an initial reference count of one. dependentOn, if
// non-zero, becomes the object's first dependent-object link (a
// certificate's context, a context's device).
func (k *Kernel) CreateObject(typ ObjectType, payload Payload, acl *ACL, dependentOn Handle) (Handle, error) {
	id := atomic.AddUint64(&k.nextID, 1)
	h := Handle(id)
	obj := &Object{
		handle:   h,
		typ:      typ,
		state:    StateLow,
		refCount: 1,
		acl:      acl,
		payload:  payload,
	}
	if dependentOn != 0 {
		obj.dependents = append(obj.dependents, dependentOn)
	}

	k.mu.Lock()
	k.objects[h] = obj
	k.mu.Unlock()

	if dependentOn != 0 {
		if _, err := k.IncRefCount(dependentOn); err != nil {
			k.mu.Lock()
			delete(k.objects, h)
			k.mu.Unlock()
			return 0, err
		}
	}
	return h, nil
}

// lookup returns the object for h, or SIGNALLED if it doesn't exist or
// has already been destroyed.
func (k *Kernel) lookup(h Handle) (*Object, error) {
	k.mu.RLock()
	obj, ok := k.objects[h]
	k.mu.RUnlock()
	if !ok {
		return nil, cryptoerr.New(cryptoerr.Signalled)
	}
	if err := obj.checkAlive(); err != nil {
		return nil, err
	}
	return obj, nil
}

// AcquireObject looks up h, checks its type, and returns the object
// with its payload for the caller to operate on. It does not take the
// per-object lock; callers that mutate state should call Lock/Unlock
// around their critical section.
func (k *Kernel) AcquireObject(h Handle, wantType ObjectType) (*Object, error) {
	obj, err := k.lookup(h)
	if err != nil {
		return nil, err
	}
	if obj.typ != wantType {
		return nil, cryptoerr.New(cryptoerr.BadData)
	}
	return obj, nil
}

// IncRefCount adds a strong reference to h, per "every INCREFCOUNT
// reserves a fresh strong reference".
func (k *Kernel) IncRefCount(h Handle) (int, error) {
	obj, err := k.lookup(h)
	if err != nil {
		return 0, err
	}
	obj.mu.Lock()
	obj.refCount++
	n := obj.refCount
	obj.mu.Unlock()
	return n, nil
}

// DecRefCount drops a reference; when the count reaches zero the
// object is destroyed and its dependents released in turn.
func (k *Kernel) DecRefCount(h Handle) error {
	obj, err := k.lookup(h)
	if err != nil {
		return err
	}
	obj.mu.Lock()
	obj.refCount--
	shouldDestroy := obj.refCount <= 0
	obj.mu.Unlock()
	if shouldDestroy {
		return k.Destroy(h)
	}
	return nil
}

// Destroy marks the object destroyed regardless of its reference
// count, decrementing every dependent object's reference count in
// turn. Any message sent to h afterwards yields SIGNALLED, and any
// message already in flight on another goroutine observes it on its
// next kernel call (cancellation is cooperative, not preemptive).
func (k *Kernel) Destroy(h Handle) error {
	k.mu.Lock()
	obj, ok := k.objects[h]
	if !ok {
		k.mu.Unlock()
		return cryptoerr.New(cryptoerr.Signalled)
	}
	delete(k.objects, h)
	k.mu.Unlock()

	obj.mu.Lock()
	obj.state = StateDestroyed
	deps := append([]Handle(nil), obj.dependents...)
	if obj.cond != nil {
		obj.cond.Broadcast()
	}
	obj.mu.Unlock()

	for _, d := range deps {
		_ = k.DecRefCount(d)
	}
	return nil
}

// Signal marks an object SIGNALLED without removing it from the table,
// used when a dependency (e.g. the device backing a context) fails
// asynchronously: every subsequent message on the object observes
// SIGNALLED until it's explicitly destroyed.
func (k *Kernel) Signal(h Handle) error {
	obj, err := k.lookup(h)
	if err != nil {
		return err
	}
	obj.mu.Lock()
	obj.state = StateSignalled
	if obj.cond != nil {
		obj.cond.Broadcast()
	}
	obj.mu.Unlock()
	return nil
}

// SetDependent attaches an additional dependent-object link (e.g. a
// chain certificate's dependent public-key context) and takes a
// reference on it.
func (k *Kernel) SetDependent(h, dependent Handle) error {
	obj, err := k.lookup(h)
	if err != nil {
		return err
	}
	if _, err := k.IncRefCount(dependent); err != nil {
		return err
	}
	obj.mu.Lock()
	obj.dependents = append(obj.dependents, dependent)
	obj.mu.Unlock()
	return nil
}

// Dependents returns a copy of h's dependent-object handles.
func (k *Kernel) Dependents(h Handle) ([]Handle, error) {
	obj, err := k.lookup(h)
	if err != nil {
		return nil, err
	}
	obj.mu.Lock()
	defer obj.mu.Unlock()
	return append([]Handle(nil), obj.dependents...), nil
}
