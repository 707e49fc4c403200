// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

// Package keycodec reads and writes public and private key components
// for RSA, DSA, Diffie-Hellman and Elgamal in the five wire dialects
// named in spec.md section 4.5: X.509 SubjectPublicKeyInfo, PKCS#1
// private keys, SSHv1 and SSHv2 public keys, SSL/TLS DH parameters and
// OpenPGP v3/v4 packets. It also computes the cryptlib and OpenPGP
// key-IDs and the three signature-value transport shapes (cryptlib,
// PGP, SSH).
//
// The KEA key-agreement dialect named in the original cryptlib source
// is deliberately absent: spec.md's open questions direct that a
// re-implementation keep it absent rather than guess at semantics.
package keycodec

import (
	"math/big"

	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// MinPKCSizeBits is the minimum accepted RSA/DSA modulus size. cryptlib
// leaves the exact value implementation-defined; 1024 is the value it
// typically ships with.
const MinPKCSizeBits = 1024

// Algorithm identifies which key family a set of components belongs
// to.
type Algorithm int

const (
	AlgRSA Algorithm = iota
	AlgDSA
	AlgDH
	AlgElgamal
)

func (a Algorithm) String() string {
	switch a {
	case AlgRSA:
		return "RSA"
	case AlgDSA:
		return "DSA"
	case AlgDH:
		return "DH"
	case AlgElgamal:
		return "Elgamal"
	default:
		return "unknown"
	}
}

// IsDLP reports whether a is one of the discrete-log family (DSA, DH,
// Elgamal), which per spec.md section 4.5 only ever get internal-only
// action permissions, unlike RSA which gets full permissions.
func (a Algorithm) IsDLP() bool { return a != AlgRSA }

// RSAPublic holds an RSA public key's two components.
type RSAPublic struct {
	N *big.Int
	E *big.Int
}

// RSAPrivate holds the full PKCS#1 component set.
type RSAPrivate struct {
	RSAPublic
	D  *big.Int
	P  *big.Int
	Q  *big.Int
	E1 *big.Int // d mod (p-1)
	E2 *big.Int // d mod (q-1)
	U  *big.Int // q^-1 mod p
}

// DLPPublic holds the DSA/DH/Elgamal public components. Field ordering
// on the wire differs by dialect (DSA: p,q,g; DH/Elgamal: p,g,q,
// inherited from the PKIX/X9.42 parameter ordering) but the in-memory
// shape is the same.
type DLPPublic struct {
	P *big.Int
	Q *big.Int
	G *big.Int
	Y *big.Int
}

// DLPPrivate adds the private exponent.
type DLPPrivate struct {
	DLPPublic
	X *big.Int
}

func checkMinSize(n *big.Int, locus string) error {
	if n == nil || n.BitLen() < MinPKCSizeBits {
		return cryptoerr.WrapAttr(cryptoerr.BadData, locus, cryptoerr.ErrTypeAttrSize,
			cryptoerr.Errorf(cryptoerr.BadData, "key size %d below minimum %d bits", bitLenOrZero(n), MinPKCSizeBits).Err)
	}
	return nil
}

func bitLenOrZero(n *big.Int) int {
	if n == nil {
		return 0
	}
	return n.BitLen()
}
