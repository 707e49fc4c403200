// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package asn1io

import (
	"encoding/asn1"
	"math/big"
	"time"

	"github.com/lowRISC/otcryptocore/internal/stream"
	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// OID is the exported object-identifier type; it reuses the stdlib's
// dotted-integer representation but every encode/decode path in this
// package is hand-rolled against the stream abstraction rather than
// going through encoding/asn1.Unmarshal.
type OID = asn1.ObjectIdentifier

// PeekTag returns the next tag octet without consuming it.
func PeekTag(s stream.Stream) (byte, error) {
	tag, err := s.PeekTag()
	if err != nil {
		return 0, cryptoerr.Wrap(cryptoerr.Underflow, err)
	}
	return tag, nil
}

// ReadTagHeader reads a tag octet and its length, returning whether the
// length was indefinite (0x80, terminated by an EOC pair).
func ReadTagHeader(s stream.Stream) (tag byte, length int, indefinite bool, err error) {
	var b [1]byte
	if _, err := s.Read(b[:]); err != nil {
		return 0, 0, false, cryptoerr.Wrap(cryptoerr.Underflow, err)
	}
	length, indefinite, err = readLength(s)
	if err != nil {
		return 0, 0, false, err
	}
	return b[0], length, indefinite, nil
}

// expectTag reads a tag header and confirms the tag matches want.
func expectTag(s stream.Stream, want byte) (length int, indefinite bool, err error) {
	tag, length, indefinite, err := ReadTagHeader(s)
	if err != nil {
		return 0, false, err
	}
	if tag != want {
		return 0, false, cryptoerr.Errorf(cryptoerr.BadData, "unexpected tag %#x, want %#x", tag, want)
	}
	return length, indefinite, nil
}

// ReadSequence reads a SEQUENCE header (universal constructed tag 0x30).
func ReadSequence(s stream.Stream) (length int, indefinite bool, err error) {
	return expectTag(s, TagSequenceOf)
}

// ReadSet reads a SET header (universal constructed tag 0x31).
func ReadSet(s stream.Stream) (length int, indefinite bool, err error) {
	return expectTag(s, TagSetOf)
}

// ReadEOC consumes one end-of-contents sentinel (0x00 0x00), used to
// close a value that was opened with an indefinite length.
func ReadEOC(s stream.Stream) error {
	var b [2]byte
	if _, err := s.Read(b[:]); err != nil {
		return cryptoerr.Wrap(cryptoerr.Underflow, err)
	}
	if b[0] != 0x00 || b[1] != 0x00 {
		return cryptoerr.Errorf(cryptoerr.BadData, "expected EOC, got %#x %#x", b[0], b[1])
	}
	return nil
}

// AtEOC reports whether the next tag octet is the EOC tag (0x00),
// without consuming it; used by indefinite-length readers to decide
// whether to keep reading child elements or stop.
func AtEOC(s stream.Stream) (bool, error) {
	tag, err := s.PeekTag()
	if err != nil {
		return false, cryptoerr.Wrap(cryptoerr.Underflow, err)
	}
	return tag == EOC, nil
}

// ReadBoolean reads a BOOLEAN value.
func ReadBoolean(s stream.Stream) (bool, error) {
	length, indefinite, err := expectTag(s, TagBoolean)
	if err != nil {
		return false, err
	}
	if indefinite || length != 1 {
		return false, cryptoerr.New(cryptoerr.BadData)
	}
	var b [1]byte
	if _, err := s.Read(b[:]); err != nil {
		return false, cryptoerr.Wrap(cryptoerr.Underflow, err)
	}
	return b[0] != 0x00, nil
}

// ReadInteger reads an INTEGER into a big.Int, two's-complement per
// DER. Fails with BadData if the encoded size exceeds MaxIntegerBytes.
func ReadInteger(s stream.Stream) (*big.Int, error) {
	length, indefinite, err := expectTag(s, TagInteger)
	if err != nil {
		return nil, err
	}
	if indefinite || length == 0 {
		return nil, cryptoerr.New(cryptoerr.BadData)
	}
	if length > MaxIntegerBytes {
		return nil, cryptoerr.Errorf(cryptoerr.BadData, "integer length %d exceeds maximum %d", length, MaxIntegerBytes)
	}
	buf := make([]byte, length)
	if _, err := s.Read(buf); err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.Underflow, err)
	}
	return bytesToBigInt(buf), nil
}

// ReadBigInteger is like ReadInteger but without the MaxIntegerBytes
// cap, for the large RSA/DLP components that legitimately exceed it.
func ReadBigInteger(s stream.Stream) (*big.Int, error) {
	length, indefinite, err := expectTag(s, TagInteger)
	if err != nil {
		return nil, err
	}
	if indefinite || length == 0 {
		return nil, cryptoerr.New(cryptoerr.BadData)
	}
	buf := make([]byte, length)
	if _, err := s.Read(buf); err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.Underflow, err)
	}
	return bytesToBigInt(buf), nil
}

func bytesToBigInt(buf []byte) *big.Int {
	n := new(big.Int)
	if len(buf) > 0 && buf[0]&0x80 != 0 {
		// Negative: decode as two's complement.
		tmp := make([]byte, len(buf))
		copy(tmp, buf)
		for i := range tmp {
			tmp[i] = ^tmp[i]
		}
		n.SetBytes(tmp)
		n.Add(n, big.NewInt(1))
		n.Neg(n)
		return n
	}
	n.SetBytes(buf)
	return n
}

// ReadOID reads an OBJECT IDENTIFIER, rejecting bodies over
// MaxOIDBytes.
func ReadOID(s stream.Stream) (OID, error) {
	length, indefinite, err := expectTag(s, TagObjectID)
	if err != nil {
		return nil, err
	}
	if indefinite || length == 0 || length > MaxOIDBytes {
		return nil, cryptoerr.New(cryptoerr.BadData)
	}
	buf := make([]byte, length)
	if _, err := s.Read(buf); err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.Underflow, err)
	}
	return decodeOIDBody(buf)
}

func decodeOIDBody(buf []byte) (OID, error) {
	if len(buf) == 0 {
		return nil, cryptoerr.New(cryptoerr.BadData)
	}
	oid := OID{int(buf[0] / 40), int(buf[0] % 40)}
	var v int
	for _, b := range buf[1:] {
		v = v<<7 | int(b&0x7F)
		if b&0x80 == 0 {
			oid = append(oid, v)
			v = 0
		}
	}
	return oid, nil
}

// ReadOctetString reads an OCTET STRING body, definite length only
// (constructed/indefinite octet strings are reassembled by callers
// that need the segmented-content behaviour of internal/cms).
func ReadOctetString(s stream.Stream) ([]byte, error) {
	length, indefinite, err := expectTag(s, TagOctetString)
	if err != nil {
		return nil, err
	}
	if indefinite {
		return nil, cryptoerr.New(cryptoerr.BadData)
	}
	buf := make([]byte, length)
	if length > 0 {
		if _, err := s.Read(buf); err != nil {
			return nil, cryptoerr.Wrap(cryptoerr.Underflow, err)
		}
	}
	return buf, nil
}

// ReadBitString reads a BIT STRING, returning the unused-bit count and
// the raw body (unused bits still present in the low order of the last
// byte, per DER).
func ReadBitString(s stream.Stream) (unusedBits byte, body []byte, err error) {
	length, indefinite, err := expectTag(s, TagBitString)
	if err != nil {
		return 0, nil, err
	}
	if indefinite || length == 0 {
		return 0, nil, cryptoerr.New(cryptoerr.BadData)
	}
	var ub [1]byte
	if _, err := s.Read(ub[:]); err != nil {
		return 0, nil, cryptoerr.Wrap(cryptoerr.Underflow, err)
	}
	body = make([]byte, length-1)
	if len(body) > 0 {
		if _, err := s.Read(body); err != nil {
			return 0, nil, cryptoerr.Wrap(cryptoerr.Underflow, err)
		}
	}
	return ub[0], body, nil
}

// ReadUTCTime reads a UTCTime value (YYMMDDHHMMSSZ).
func ReadUTCTime(s stream.Stream) (time.Time, error) {
	length, indefinite, err := expectTag(s, TagUTCTime)
	if err != nil {
		return time.Time{}, err
	}
	if indefinite {
		return time.Time{}, cryptoerr.New(cryptoerr.BadData)
	}
	buf := make([]byte, length)
	if _, err := s.Read(buf); err != nil {
		return time.Time{}, cryptoerr.Wrap(cryptoerr.Underflow, err)
	}
	t, err := time.Parse("060102150405Z0700", string(buf))
	if err != nil {
		return time.Time{}, cryptoerr.WrapAttr(cryptoerr.BadData, "utcTime", cryptoerr.ErrTypeAttrValue, err)
	}
	return t.UTC(), nil
}

// ReadGeneralizedTime reads a GeneralizedTime value (YYYYMMDDHHMMSSZ).
func ReadGeneralizedTime(s stream.Stream) (time.Time, error) {
	length, indefinite, err := expectTag(s, TagGeneralizedTime)
	if err != nil {
		return time.Time{}, err
	}
	if indefinite {
		return time.Time{}, cryptoerr.New(cryptoerr.BadData)
	}
	buf := make([]byte, length)
	if _, err := s.Read(buf); err != nil {
		return time.Time{}, cryptoerr.Wrap(cryptoerr.Underflow, err)
	}
	t, err := time.Parse("20060102150405Z0700", string(buf))
	if err != nil {
		return time.Time{}, cryptoerr.WrapAttr(cryptoerr.BadData, "generalizedTime", cryptoerr.ErrTypeAttrValue, err)
	}
	return t.UTC(), nil
}

// ReadGenericHole reads a tag and length, confirming the body is at
// least minLength bytes, but leaves the body unread for the caller to
// copy verbatim (used to lift an opaque TBSCertificate or signed-attrs
// blob out of a larger message without re-encoding it).
func ReadGenericHole(s stream.Stream, minLength int, wantTag byte) (length int, err error) {
	tag, length, indefinite, err := ReadTagHeader(s)
	if err != nil {
		return 0, err
	}
	if tag != wantTag {
		return 0, cryptoerr.Errorf(cryptoerr.BadData, "unexpected tag %#x, want %#x", tag, wantTag)
	}
	if indefinite {
		return 0, cryptoerr.New(cryptoerr.BadData)
	}
	if length < minLength {
		return 0, cryptoerr.New(cryptoerr.BadData)
	}
	return length, nil
}
