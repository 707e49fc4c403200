// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package keycodec

import (
	"math/big"

	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/internal/stream"
)

// EncodeCryptlibSignature writes the default DLP signature transport
// shape: SEQUENCE { r, s }, the form used everywhere cryptlib itself
// stores a DSA/ECDSA signature value.
func EncodeCryptlibSignature(s stream.Stream, r, sVal *big.Int) error {
	body := asn1io.SizeOfInteger(r) + asn1io.SizeOfInteger(sVal)
	if err := asn1io.WriteSequenceHeader(s, body); err != nil {
		return err
	}
	if err := asn1io.WriteInteger(s, r); err != nil {
		return err
	}
	return asn1io.WriteInteger(s, sVal)
}

// DecodeCryptlibSignature reverses EncodeCryptlibSignature.
func DecodeCryptlibSignature(s stream.Stream) (r, sVal *big.Int, err error) {
	if _, _, err = asn1io.ReadSequence(s); err != nil {
		return nil, nil, err
	}
	if r, err = asn1io.ReadBigInteger(s); err != nil {
		return nil, nil, err
	}
	if sVal, err = asn1io.ReadBigInteger(s); err != nil {
		return nil, nil, err
	}
	return r, sVal, nil
}
