// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package asn1io

import (
	"github.com/lowRISC/otcryptocore/internal/stream"
	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// MaxIntegerBytes bounds the size of an INTEGER this package will
// decode into an int, mirroring cryptlib's "integer > configured
// maximum" rejection.
const MaxIntegerBytes = 8

// MaxOIDBytes bounds the encoded length of an OBJECT IDENTIFIER body.
const MaxOIDBytes = 32

// writeLength emits the shortest-form definite length encoding of n.
func writeLength(s stream.Stream, n int) error {
	if n < 0 {
		return cryptoerr.New(cryptoerr.Internal)
	}
	if n < 0x80 {
		_, err := s.Write([]byte{byte(n)})
		return wrapWrite(err)
	}
	var buf []byte
	v := n
	for v > 0 {
		buf = append([]byte{byte(v)}, buf...)
		v >>= 8
	}
	if len(buf) > maxLengthOctets {
		return cryptoerr.New(cryptoerr.Overflow)
	}
	header := append([]byte{byte(0x80 | len(buf))}, buf...)
	_, err := s.Write(header)
	return wrapWrite(err)
}

// writeIndefiniteLength emits the indefinite-length introducer 0x80.
func writeIndefiniteLength(s stream.Stream) error {
	_, err := s.Write([]byte{LengthIndefinite})
	return wrapWrite(err)
}

// writeEOC emits one end-of-contents sentinel (0x00 0x00).
func writeEOC(s stream.Stream) error {
	_, err := s.Write([]byte{0x00, 0x00})
	return wrapWrite(err)
}

// sizeOfLength returns how many octets writeLength(n) would emit.
func sizeOfLength(n int) int {
	if n < 0x80 {
		return 1
	}
	v, octets := n, 0
	for v > 0 {
		octets++
		v >>= 8
	}
	return 1 + octets
}

// SizeOfObject returns the total TLV size (tag + length + body) for a
// definite-length body of size bodyLen with a 1-byte tag, matching
// cryptlib's sizeofObject().
func SizeOfObject(bodyLen int) int {
	return 1 + sizeOfLength(bodyLen) + bodyLen
}

// readLength reads a BER length octet sequence. indefinite is true if
// the length was the indefinite marker 0x80; in that case length is 0
// and the caller must read until an EOC is encountered.
func readLength(s stream.Stream) (length int, indefinite bool, err error) {
	var b [1]byte
	if _, err := s.Read(b[:]); err != nil {
		return 0, false, wrapRead(err)
	}
	if b[0] == LengthIndefinite {
		return 0, true, nil
	}
	if b[0] < 0x80 {
		return int(b[0]), false, nil
	}
	numOctets := int(b[0] & 0x7F)
	if numOctets > maxLengthOctets {
		return 0, false, cryptoerr.New(cryptoerr.BadData)
	}
	lenBuf := make([]byte, numOctets)
	if _, err := s.Read(lenBuf); err != nil {
		return 0, false, wrapRead(err)
	}
	var v int
	for _, c := range lenBuf {
		v = v<<8 | int(c)
	}
	if v < 0 {
		return 0, false, cryptoerr.New(cryptoerr.BadData)
	}
	return v, false, nil
}

func wrapWrite(err error) error {
	if err == nil {
		return nil
	}
	return err
}

func wrapRead(err error) error {
	if err == nil {
		return nil
	}
	return err
}
