// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"errors"
	"testing"

	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

type fakePayload struct{ n int }

func (f *fakePayload) ObjectType() ObjectType { return TypeContext }

func TestRefCountDestroysDependents(t *testing.T) {
	k := New()
	device, err := k.CreateObject(TypeDevice, &fakePayload{}, nil, 0)
	if err != nil {
		t.Fatalf("CreateObject(device): %v", err)
	}
	ctx, err := k.CreateObject(TypeContext, &fakePayload{}, nil, device)
	if err != nil {
		t.Fatalf("CreateObject(context): %v", err)
	}
	// Release the creator's own reference, so ctx's dependent link is
	// the last one holding device.
	if err := k.DecRefCount(device); err != nil {
		t.Fatalf("DecRefCount(device): %v", err)
	}

	if err := k.DecRefCount(ctx); err != nil {
		t.Fatalf("DecRefCount(ctx): %v", err)
	}

	if _, err := k.AcquireObject(ctx, TypeContext); !errors.Is(err, cryptoerr.New(cryptoerr.Signalled)) {
		t.Fatalf("expected ctx to be gone, got %v", err)
	}
	if _, err := k.AcquireObject(device, TypeDevice); !errors.Is(err, cryptoerr.New(cryptoerr.Signalled)) {
		t.Fatalf("expected device destroyed with its last dependent, got %v", err)
	}
}

func TestDestroyedObjectSignalsFurtherMessages(t *testing.T) {
	k := New()
	RegisterHandler(TypeContext, func(obj *Object, msg Message) (interface{}, error) {
		return nil, nil
	})
	h, _ := k.CreateObject(TypeContext, &fakePayload{}, nil, 0)
	if err := k.Destroy(h); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	_, err := k.SendMessage(h, 1, Message{Type: MsgGetAttributeInt})
	var ce *cryptoerr.Error
	if !errors.As(err, &ce) || ce.Code != cryptoerr.Signalled {
		t.Fatalf("SendMessage after destroy: %v, want SIGNALLED", err)
	}
}

func TestReentrantLock(t *testing.T) {
	obj := &Object{}
	const owner LockToken = 42
	if err := obj.Lock(owner); err != nil {
		t.Fatal(err)
	}
	if err := obj.Lock(owner); err != nil {
		t.Fatalf("re-entrant lock by same owner should not block: %v", err)
	}
	obj.Unlock(owner)
	if !obj.lockHeld {
		t.Fatalf("lock released too early at depth 1")
	}
	obj.Unlock(owner)
	if obj.lockHeld {
		t.Fatalf("lock should be released once depth reaches zero")
	}
}
