// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package keycodec

import (
	"crypto/sha1" //nolint:gosec // key-ID computation is specified to use SHA-1, not a signature primitive
	"encoding/binary"
	"math/big"

	"github.com/lowRISC/otcryptocore/internal/stream"
)

// KeyIDLength is the fixed truncation length of the cryptlib key-ID,
// a SHA-1 digest of the encoded SubjectPublicKeyInfo.
const KeyIDLength = 20

// ComputeKeyID returns the cryptlib key-ID: SHA-1 over the DER
// encoding of the key's SubjectPublicKeyInfo.
func ComputeKeyID(encodeSPKI func(stream.Stream) error) ([]byte, error) {
	w := stream.MemNullOpen()
	if err := encodeSPKI(w); err != nil {
		return nil, err
	}
	real := stream.MemOpen(int(w.Size()))
	if err := encodeSPKI(real); err != nil {
		return nil, err
	}
	digest := sha1.Sum(real.Bytes())
	return digest[:KeyIDLength], nil
}

// ComputePGPKeyIDFromRSA returns the legacy PGP key-ID of an RSA key:
// the low 64 bits of the modulus n.
func ComputePGPKeyIDFromRSA(n *big.Int) uint64 {
	b := n.Bytes()
	if len(b) >= 8 {
		return binary.BigEndian.Uint64(b[len(b)-8:])
	}
	var padded [8]byte
	copy(padded[8-len(b):], b)
	return binary.BigEndian.Uint64(padded[:])
}

// ComputeOpenPGPKeyID returns the v4 OpenPGP key-ID: the low 64 bits
// of SHA-1 over 0x99 || uint16(len(packetBody)) || packetBody.
//
// When the packet's creation time is unavailable (CTime == 0, as when
// a key is synthesized from raw components with no provenance), this
// falls back to the first 64 bits of the cryptlib key-ID, since a v4
// fingerprint without the real creation time the key was created under
// would silently not match any third party's copy of the key.
func ComputeOpenPGPKeyID(packetBody []byte, ctime uint32, cryptlibKeyID []byte) uint64 {
	if ctime == 0 {
		if len(cryptlibKeyID) >= 8 {
			return binary.BigEndian.Uint64(cryptlibKeyID[:8])
		}
		return 0
	}
	h := sha1.New() //nolint:gosec // OpenPGP v4 fingerprints are specified to use SHA-1
	h.Write([]byte{0x99})
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(packetBody)))
	h.Write(lenBuf[:])
	h.Write(packetBody)
	digest := h.Sum(nil)
	return binary.BigEndian.Uint64(digest[len(digest)-8:])
}
