// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package keycodec

import (
	"math/big"

	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/internal/stream"
)

// EncodePKCS1PrivateKey writes the "bare" RSAPrivateKey form: SEQUENCE
// { [0] n, [1] e, [2] d, [3] p, [4] q, [5] e1, [6] e2, [7] u }, as laid
// out in spec.md section 4.5. Each component is wrapped in its own
// explicit context tag rather than the plain untagged SEQUENCE OF
// INTEGER some RSA implementations use, matching cryptlib's wire form.
func EncodePKCS1PrivateKey(s stream.Stream, priv RSAPrivate) error {
	fields := []*big.Int{priv.N, priv.E, priv.D, priv.P, priv.Q, priv.E1, priv.E2, priv.U}
	bodySize := 0
	for _, f := range fields {
		// SizeOfInteger already returns the full INTEGER TLV size; the
		// [n] EXPLICIT wrapper adds one more tag+length around it.
		bodySize += asn1io.SizeOfObject(asn1io.SizeOfInteger(f))
	}
	if err := asn1io.WriteSequenceHeader(s, bodySize); err != nil {
		return err
	}
	for i, f := range fields {
		if err := writeExplicitInteger(s, i, f); err != nil {
			return err
		}
	}
	return nil
}

func writeExplicitInteger(s stream.Stream, tagNum int, v *big.Int) error {
	inner := asn1io.SizeOfInteger(v)
	if err := asn1io.WriteTagHeader(s, asn1io.ContextTag(tagNum, true), inner); err != nil {
		return err
	}
	return asn1io.WriteInteger(s, v)
}

// DecodePKCS1PrivateKey reads the bare [0]..[7]-tagged RSAPrivateKey
// form back into its components.
func DecodePKCS1PrivateKey(s stream.Stream) (RSAPrivate, error) {
	var priv RSAPrivate
	if _, _, err := asn1io.ReadSequence(s); err != nil {
		return priv, err
	}
	fields := make([]*big.Int, 8)
	for i := range fields {
		if _, _, _, err := asn1io.ReadTagHeader(s); err != nil {
			return priv, err
		}
		v, err := asn1io.ReadBigInteger(s)
		if err != nil {
			return priv, err
		}
		fields[i] = v
	}
	priv.N, priv.E, priv.D, priv.P, priv.Q, priv.E1, priv.E2, priv.U =
		fields[0], fields[1], fields[2], fields[3], fields[4], fields[5], fields[6], fields[7]
	return priv, nil
}
