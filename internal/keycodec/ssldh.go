// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package keycodec

import (
	"encoding/binary"
	"math/big"

	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// EncodeSSLDHParams writes the SSL/TLS ServerDHParams wire form:
// uint16 plen, p, uint16 glen, g. Unlike the SSHv1 mpint this length
// prefix counts bytes, not bits.
func EncodeSSLDHParams(pub DLPPublic) []byte {
	pBytes := pub.P.Bytes()
	gBytes := pub.G.Bytes()
	out := make([]byte, 0, 4+len(pBytes)+len(gBytes))
	out = append(out, uint16Bytes(len(pBytes))...)
	out = append(out, pBytes...)
	out = append(out, uint16Bytes(len(gBytes))...)
	out = append(out, gBytes...)
	return out
}

// DecodeSSLDHParams parses the blob EncodeSSLDHParams produces.
func DecodeSSLDHParams(b []byte) (DLPPublic, error) {
	p, rest, err := readSSLDHComponent(b)
	if err != nil {
		return DLPPublic{}, err
	}
	g, _, err := readSSLDHComponent(rest)
	if err != nil {
		return DLPPublic{}, err
	}
	return DLPPublic{P: p, G: g}, nil
}

func readSSLDHComponent(b []byte) (*big.Int, []byte, error) {
	if len(b) < 2 {
		return nil, nil, cryptoerr.New(cryptoerr.Underflow)
	}
	n := int(binary.BigEndian.Uint16(b))
	if len(b) < 2+n {
		return nil, nil, cryptoerr.New(cryptoerr.Underflow)
	}
	return new(big.Int).SetBytes(b[2 : 2+n]), b[2+n:], nil
}

func uint16Bytes(n int) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(n))
	return b[:]
}
