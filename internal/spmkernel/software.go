// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package spmkernel

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"math/big"

	"github.com/lowRISC/otcryptocore/internal/keycodec"
	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// SoftwareDevice is the in-memory fallback every kernel context uses
// when no dependent hardware device is set: plain crypto/rsa key
// material held in process memory, never wiped (the zeroizing
// destructor spec.md section 9 asks for belongs to the caller that
// owns the *rsa.PrivateKey, not to this device).
type SoftwareDevice struct {
	keys []*rsa.PrivateKey
}

// NewSoftwareDevice returns an empty SoftwareDevice.
func NewSoftwareDevice() *SoftwareDevice { return &SoftwareDevice{} }

func (d *SoftwareDevice) Name() string { return "software" }

func (d *SoftwareDevice) GenerateKey(alg keycodec.Algorithm, bits int) (KeyHandle, error) {
	if alg != keycodec.AlgRSA {
		// DLP keys are internal-only per spec.md section 4.5; this
		// software device only ever generates RSA, the one algorithm
		// a pure-software context may hold with full permissions.
		return 0, cryptoerr.New(cryptoerr.NotAvail)
	}
	if bits < keycodec.MinPKCSizeBits {
		return 0, cryptoerr.WrapAttr(cryptoerr.BadData, "keySize", cryptoerr.ErrTypeAttrSize,
			cryptoerr.New(cryptoerr.BadData).Err)
	}
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return 0, cryptoerr.Wrap(cryptoerr.Internal, err)
	}
	d.keys = append(d.keys, priv)
	return KeyHandle(len(d.keys) - 1), nil
}

// Import registers an already-generated key, returning its handle, for
// a caller that loads a key from a keyset rather than generating one
// fresh.
func (d *SoftwareDevice) Import(priv *rsa.PrivateKey) KeyHandle {
	d.keys = append(d.keys, priv)
	return KeyHandle(len(d.keys) - 1)
}

func (d *SoftwareDevice) key(h KeyHandle) (*rsa.PrivateKey, error) {
	if int(h) >= len(d.keys) {
		return nil, cryptoerr.New(cryptoerr.NotFound)
	}
	return d.keys[h], nil
}

func (d *SoftwareDevice) PublicKey(h KeyHandle) (keycodec.Algorithm, *keycodec.RSAPublic, *keycodec.DLPPublic, error) {
	priv, err := d.key(h)
	if err != nil {
		return 0, nil, nil, err
	}
	return keycodec.AlgRSA, &keycodec.RSAPublic{N: priv.N, E: bigFromInt(priv.E)}, nil, nil
}

func (d *SoftwareDevice) Sign(h KeyHandle, hash crypto.Hash, digest []byte) ([]byte, error) {
	priv, err := d.key(h)
	if err != nil {
		return nil, err
	}
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, hash, digest)
	if err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.Signature, err)
	}
	return sig, nil
}

func (d *SoftwareDevice) Verify(h KeyHandle, hash crypto.Hash, digest, sig []byte) error {
	priv, err := d.key(h)
	if err != nil {
		return err
	}
	if err := rsa.VerifyPKCS1v15(&priv.PublicKey, hash, digest, sig); err != nil {
		return cryptoerr.Wrap(cryptoerr.Signature, err)
	}
	return nil
}

func (d *SoftwareDevice) Decrypt(h KeyHandle, ciphertext []byte) ([]byte, error) {
	priv, err := d.key(h)
	if err != nil {
		return nil, err
	}
	pt, err := rsa.DecryptPKCS1v15(rand.Reader, priv, ciphertext)
	if err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.WrongKey, err)
	}
	return pt, nil
}

// SupportedCiphers reports the conventional ciphers cms always has
// available through crypto/cipher regardless of hardware backing.
func (d *SoftwareDevice) SupportedCiphers() []string {
	return []string{"3DES", "AES"}
}

func bigFromInt(e int) *big.Int { return big.NewInt(int64(e)) }
