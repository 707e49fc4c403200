// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package asn1io

import (
	"math/big"
	"time"

	"github.com/lowRISC/otcryptocore/internal/stream"
)

// WriteTagHeader emits a tag octet followed by a definite-length
// encoding of length.
func WriteTagHeader(s stream.Stream, tag byte, length int) error {
	if _, err := s.Write([]byte{tag}); err != nil {
		return err
	}
	return writeLength(s, length)
}

// WriteTagHeaderIndefinite emits a tag octet followed by the
// indefinite-length introducer 0x80; the caller must later emit a
// matching EOC via WriteEOC.
func WriteTagHeaderIndefinite(s stream.Stream, tag byte) error {
	if _, err := s.Write([]byte{tag}); err != nil {
		return err
	}
	return writeIndefiniteLength(s)
}

// WriteEOC emits one end-of-contents sentinel.
func WriteEOC(s stream.Stream) error {
	return writeEOC(s)
}

// WriteSequenceHeader emits a SEQUENCE tag and definite length.
func WriteSequenceHeader(s stream.Stream, length int) error {
	return WriteTagHeader(s, TagSequenceOf, length)
}

// WriteSetHeader emits a SET tag and definite length.
func WriteSetHeader(s stream.Stream, length int) error {
	return WriteTagHeader(s, TagSetOf, length)
}

// WriteBoolean writes a BOOLEAN value.
func WriteBoolean(s stream.Stream, v bool) error {
	if err := WriteTagHeader(s, TagBoolean, 1); err != nil {
		return err
	}
	b := byte(0x00)
	if v {
		b = 0xFF
	}
	_, err := s.Write([]byte{b})
	return err
}

// SizeOfInteger returns the DER-encoded size of an INTEGER TLV for n.
func SizeOfInteger(n *big.Int) int {
	return SizeOfObject(len(encodeIntegerBody(n)))
}

// WriteInteger writes an INTEGER, two's-complement per DER, with a
// leading 0x00 inserted when the high bit of a positive value's most
// significant byte would otherwise be read as a sign bit.
func WriteInteger(s stream.Stream, n *big.Int) error {
	body := encodeIntegerBody(n)
	if err := WriteTagHeader(s, TagInteger, len(body)); err != nil {
		return err
	}
	_, err := s.Write(body)
	return err
}

func encodeIntegerBody(n *big.Int) []byte {
	if n.Sign() == 0 {
		return []byte{0x00}
	}
	if n.Sign() > 0 {
		b := n.Bytes()
		if b[0]&0x80 != 0 {
			b = append([]byte{0x00}, b...)
		}
		return b
	}
	// Negative: two's complement of the smallest-width representation.
	bitLen := new(big.Int).Sub(new(big.Int).Neg(n), big.NewInt(1)).BitLen()
	numBytes := bitLen/8 + 1
	twos := new(big.Int).Add(n, new(big.Int).Lsh(big.NewInt(1), uint(numBytes*8)))
	b := twos.Bytes()
	for len(b) < numBytes {
		b = append([]byte{0x00}, b...)
	}
	return b
}

// SizeOfOID returns the DER-encoded size of an OBJECT IDENTIFIER TLV.
func SizeOfOID(oid OID) int {
	return SizeOfObject(len(encodeOIDBody(oid)))
}

// WriteOID writes an OBJECT IDENTIFIER.
func WriteOID(s stream.Stream, oid OID) error {
	body := encodeOIDBody(oid)
	if err := WriteTagHeader(s, TagObjectID, len(body)); err != nil {
		return err
	}
	_, err := s.Write(body)
	return err
}

func encodeOIDBody(oid OID) []byte {
	if len(oid) < 2 {
		return nil
	}
	body := []byte{byte(oid[0]*40 + oid[1])}
	for _, v := range oid[2:] {
		body = append(body, encodeBase128(v)...)
	}
	return body
}

func encodeBase128(v int) []byte {
	if v == 0 {
		return []byte{0x00}
	}
	var out []byte
	for v > 0 {
		out = append([]byte{byte(v & 0x7F)}, out...)
		v >>= 7
	}
	for i := 0; i < len(out)-1; i++ {
		out[i] |= 0x80
	}
	return out
}

// SizeOfOctetString returns the DER-encoded size of an OCTET STRING TLV.
func SizeOfOctetString(body []byte) int {
	return SizeOfObject(len(body))
}

// WriteOctetString writes an OCTET STRING.
func WriteOctetString(s stream.Stream, body []byte) error {
	if err := WriteTagHeader(s, TagOctetString, len(body)); err != nil {
		return err
	}
	_, err := s.Write(body)
	return err
}

// WriteBitString writes a BIT STRING with the given unused-bit count.
func WriteBitString(s stream.Stream, unusedBits byte, body []byte) error {
	if err := WriteTagHeader(s, TagBitString, len(body)+1); err != nil {
		return err
	}
	if _, err := s.Write([]byte{unusedBits}); err != nil {
		return err
	}
	_, err := s.Write(body)
	return err
}

// WriteUTCTime writes t as a UTCTime value.
func WriteUTCTime(s stream.Stream, t time.Time) error {
	body := []byte(t.UTC().Format("060102150405Z"))
	if err := WriteTagHeader(s, TagUTCTime, len(body)); err != nil {
		return err
	}
	_, err := s.Write(body)
	return err
}

// WriteGeneralizedTime writes t as a GeneralizedTime value.
func WriteGeneralizedTime(s stream.Stream, t time.Time) error {
	body := []byte(t.UTC().Format("20060102150405Z"))
	if err := WriteTagHeader(s, TagGeneralizedTime, len(body)); err != nil {
		return err
	}
	_, err := s.Write(body)
	return err
}
