// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package spmkernel

import (
	"crypto"

	"github.com/lowRISC/otcryptocore/internal/kernel"
	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// Payload is the kernel.Payload a TypeDevice object carries: a Device
// implementation plus the key handle the owning context was created
// against, so a context's MsgSign/MsgDecrypt dispatch can resolve
// straight to "this device, this key" without a second lookup.
type Payload struct {
	Device Device
	Key    KeyHandle
}

func (Payload) ObjectType() kernel.ObjectType { return kernel.TypeDevice }

// init registers the TypeDevice handler once (see
// kernel.RegisterHandler).
func init() {
	kernel.RegisterHandler(kernel.TypeDevice, handle)
}

func handle(obj *kernel.Object, msg kernel.Message) (interface{}, error) {
	p, ok := obj.Payload().(Payload)
	if !ok {
		return nil, cryptoerr.New(cryptoerr.Internal)
	}
	switch msg.Type {
	case kernel.MsgSign:
		return p.Device.Sign(p.Key, crypto.SHA256, msg.Bytes)
	case kernel.MsgSigCheck:
		// msg.Bytes carries digest||signature, split at the digest's
		// fixed SHA-256 length; callers that need a different hash
		// should call the Device directly rather than through a
		// kernel message.
		if len(msg.Bytes) < crypto.SHA256.Size() {
			return nil, cryptoerr.New(cryptoerr.BadData)
		}
		digest, sig := msg.Bytes[:crypto.SHA256.Size()], msg.Bytes[crypto.SHA256.Size():]
		return nil, p.Device.Verify(p.Key, crypto.SHA256, digest, sig)
	case kernel.MsgDecrypt:
		return p.Device.Decrypt(p.Key, msg.Bytes)
	case kernel.MsgGetAttributeBytes:
		return msg.Bytes, nil
	default:
		return nil, cryptoerr.New(cryptoerr.NotAvail)
	}
}
