// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package kernel

import "github.com/lowRISC/otcryptocore/pkg/cryptoerr"

// MessageType is the closed set of verbs every cross-object interaction
// uses. "Send notifier" (fire-and-forget, reference-count semantics) is
// distinguished from "send message" (synchronous, may yield a status)
// by which method the caller invokes, not by MessageType.
type MessageType int

const (
	MsgGetAttributeInt MessageType = iota
	MsgSetAttributeInt
	MsgGetAttributeBytes
	MsgSetAttributeBytes
	MsgCreateObjectIndirect
	MsgCompare
	MsgClone
	MsgSetDependent
	MsgIncRefCount
	MsgDecRefCount
	MsgDestroy

	// Cryptographic verbs.
	MsgEncrypt
	MsgDecrypt
	MsgHash
	MsgSign
	MsgSigCheck
	MsgKeyGenerate
	MsgGenerateIV
	MsgDeriveKey
)

// Message is the payload of one SendMessage call: a target attribute
// (for attribute verbs) plus an opaque value the handler for that
// MessageType knows how to interpret.
type Message struct {
	Type      MessageType
	Attribute AttributeID
	IntValue  int
	Bytes     []byte
	External  bool // true when the message originates outside this module
}

// Handler processes one Message against a payload already known to
// match the handle's ObjectType, returning a possibly-updated response
// payload (attribute reads) or an error.
type Handler func(obj *Object, msg Message) (interface{}, error)

// handlerRegistry maps ObjectType to the Handler registered for it.
var handlerRegistry = map[ObjectType]Handler{}

// RegisterHandler installs the Handler for a given ObjectType.
// internal/spmkernel calls it at package init time for TypeDevice.
func RegisterHandler(typ ObjectType, h Handler) {
	handlerRegistry[typ] = h
}

// SendMessage is the synchronous message path: it acquires the object's
// lock under owner, checks the ACL (when present) for the requested
// attribute, dispatches to the registered Handler, and always releases
// the lock before returning.
func (k *Kernel) SendMessage(h Handle, owner LockToken, msg Message) (interface{}, error) {
	obj, err := k.lookup(h)
	if err != nil {
		return nil, err
	}

	if err := obj.Lock(owner); err != nil {
		return nil, err
	}
	defer obj.Unlock(owner)

	if err := obj.checkAlive(); err != nil {
		return nil, err
	}

	if isAttributeMessage(msg.Type) {
		write := msg.Type == MsgSetAttributeInt || msg.Type == MsgSetAttributeBytes
		if err := obj.acl.Check(msg.Attribute, msg.External, write, obj.state); err != nil {
			return nil, err
		}
	}

	handler, ok := handlerRegistry[obj.typ]
	if !ok {
		return nil, cryptoerr.New(cryptoerr.NotAvail)
	}
	return handler(obj, msg)
}

// SendNotifier is the fire-and-forget path used purely for
// reference-count bookkeeping; it never returns a status code to the
// caller because there is, by construction, nothing to report.
func (k *Kernel) SendNotifier(h Handle, inc bool) {
	if inc {
		_, _ = k.IncRefCount(h)
		return
	}
	_ = k.DecRefCount(h)
}

func isAttributeMessage(t MessageType) bool {
	switch t {
	case MsgGetAttributeInt, MsgSetAttributeInt, MsgGetAttributeBytes, MsgSetAttributeBytes:
		return true
	default:
		return false
	}
}
