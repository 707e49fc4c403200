// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

// Package spmkernel supplies the "device" dependent-object the object
// kernel's contexts and certificates hang off: the uniform interface
// spec.md section 1 fixes for PKCS#11/Fortezza hardware and an
// in-memory software fallback, plus the registration of both as
// kernel.TypeDevice handlers so a context's dependent device can be
// resolved through ordinary kernel messages. Grounded on the
// provisioning appliance's src/pk11 HSM session wrapper, generalized
// from "one session per SKU keyset" to the kernel's general-purpose
// dependent-device slot.
package spmkernel

import (
	"crypto"

	"github.com/lowRISC/otcryptocore/internal/keycodec"
	"github.com/lowRISC/otcryptocore/internal/logger"
	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// KeyHandle opaquely identifies a key inside a Device; its shape is
// device-specific (a PKCS#11 object handle pair for the hardware
// backend, a slice index for the software backend).
type KeyHandle uint64

// Device is the capability surface spec.md section 1 calls out as an
// external collaborator: the core only ever asks a device to perform
// an operation, never reaches into key material directly. Both
// SoftwareDevice and PKCS11Device implement it.
type Device interface {
	// Name identifies the device for logging and is the key Registry
	// stores it under.
	Name() string

	// GenerateKey creates a new key of the given algorithm and bit
	// length, returning a handle the device can later Sign/Decrypt
	// with.
	GenerateKey(alg keycodec.Algorithm, bits int) (KeyHandle, error)

	// PublicKey returns the RSA or DLP public components for handle,
	// whichever Algorithm it was generated as.
	PublicKey(h KeyHandle) (alg keycodec.Algorithm, rsaPub *keycodec.RSAPublic, dlpPub *keycodec.DLPPublic, err error)

	// Sign produces a signature over an already-computed digest.
	Sign(h KeyHandle, hash crypto.Hash, digest []byte) ([]byte, error)

	// Verify checks a signature over an already-computed digest.
	Verify(h KeyHandle, hash crypto.Hash, digest, sig []byte) error

	// Decrypt performs RSA PKCS#1 v1.5 decryption with the key at h; the
	// TypeDevice handler's MsgDecrypt dispatch calls it.
	Decrypt(h KeyHandle, ciphertext []byte) ([]byte, error)

	// SupportedCiphers reports the conventional-encryption algorithms
	// this device can drive, unioned across devices by
	// Registry.AvailableCiphers.
	SupportedCiphers() []string
}

// Registry is a process-wide set of named devices, the software
// fallback always present as "software" and any PKCS#11 tokens added
// by the host application at startup.
type Registry struct {
	devices map[string]Device
	log     *logger.Logger
}

// NewRegistry returns a Registry seeded with the default software
// device and a stderr logger at LevelError, which drops the registry's
// info and warning records; cmd/certtool and cmd/tsaserver use
// NewRegistryWithLogger instead so device registration and lookup
// failures land in the subsystem log.
func NewRegistry() *Registry {
	return NewRegistryWithLogger(logger.New("spmkernel", logger.LevelError))
}

// NewRegistryWithLogger returns a Registry seeded with the default
// software device, logging registration and lookup events through
// log.
func NewRegistryWithLogger(log *logger.Logger) *Registry {
	r := &Registry{devices: map[string]Device{}, log: log}
	r.Register(NewSoftwareDevice())
	return r
}

// Register adds or replaces a device under its own Name().
func (r *Registry) Register(d Device) {
	r.devices[d.Name()] = d
	r.log.Infof("registered device %q", d.Name())
}

// Lookup returns the device registered under name.
func (r *Registry) Lookup(name string) (Device, error) {
	d, ok := r.devices[name]
	if !ok {
		r.log.Warnf("lookup of unregistered device %q", name)
		return nil, cryptoerr.New(cryptoerr.NotFound)
	}
	return d, nil
}

// Default returns the "software" device, the one every context uses
// unless a dependent hardware device was explicitly set.
func (r *Registry) Default() Device {
	return r.devices["software"]
}

// AvailableCiphers unions SupportedCiphers() across every registered
// device; cmd/tsaserver passes the result to its RTCS and TSP
// responders as the cipher list of their sMIMECapabilities attribute.
func (r *Registry) AvailableCiphers() []string {
	seen := map[string]bool{}
	var out []string
	for _, d := range r.devices {
		for _, c := range d.SupportedCiphers() {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}
