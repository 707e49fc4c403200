// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package tsp

import (
	"math/big"
	"time"

	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/internal/stream"
	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// tstInfo is the subset of RFC 3161's TSTInfo this tree emits and
// reads: version is always 1, accuracy/ordering/tsa/extensions are
// left unsupported, per spec.md's "fixed policy OID, nonce propagated
// verbatim" TSP server rule.
type tstInfo struct {
	policy        asn1io.OID
	hashAlgo      asn1io.OID
	hashedMessage []byte
	serialNumber  *big.Int
	genTime       time.Time
	nonce         *big.Int // nil if the request carried none
}

func buildTSTInfo(info tstInfo) ([]byte, error) {
	imprintSize := sizeOfMessageImprint(info.hashAlgo, info.hashedMessage)
	serialSize := asn1io.SizeOfInteger(info.serialNumber)
	genTimeSize := asn1io.SizeOfObject(15) // "20060102150405Z"
	nonceSize := 0
	if info.nonce != nil {
		nonceSize = asn1io.SizeOfInteger(info.nonce)
	}

	body := 3 /* version */ + asn1io.SizeOfOID(info.policy) + imprintSize + serialSize + genTimeSize + nonceSize

	w := stream.MemOpen(asn1io.SizeOfObject(body))
	if err := asn1io.WriteSequenceHeader(w, body); err != nil {
		return nil, err
	}
	if err := asn1io.WriteInteger(w, big.NewInt(1)); err != nil {
		return nil, err
	}
	if err := asn1io.WriteOID(w, info.policy); err != nil {
		return nil, err
	}
	if err := writeMessageImprint(w, info.hashAlgo, info.hashedMessage); err != nil {
		return nil, err
	}
	if err := asn1io.WriteInteger(w, info.serialNumber); err != nil {
		return nil, err
	}
	if err := asn1io.WriteGeneralizedTime(w, info.genTime); err != nil {
		return nil, err
	}
	if info.nonce != nil {
		if err := asn1io.WriteInteger(w, info.nonce); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

func parseTSTInfo(der []byte) (tstInfo, error) {
	s := stream.MemConnect(der)
	if _, _, err := asn1io.ReadSequence(s); err != nil {
		return tstInfo{}, err
	}
	version, err := asn1io.ReadInteger(s)
	if err != nil {
		return tstInfo{}, err
	}
	if version.Cmp(big.NewInt(1)) != 0 {
		return tstInfo{}, cryptoerr.New(cryptoerr.BadData)
	}
	policy, err := asn1io.ReadOID(s)
	if err != nil {
		return tstInfo{}, err
	}
	hashAlgo, hashedMessage, err := readMessageImprint(s)
	if err != nil {
		return tstInfo{}, err
	}
	serialNumber, err := asn1io.ReadInteger(s)
	if err != nil {
		return tstInfo{}, err
	}
	genTime, err := asn1io.ReadGeneralizedTime(s)
	if err != nil {
		return tstInfo{}, err
	}
	info := tstInfo{
		policy:        policy,
		hashAlgo:      hashAlgo,
		hashedMessage: hashedMessage,
		serialNumber:  serialNumber,
		genTime:       genTime,
	}
	if tag, err := asn1io.PeekTag(s); err == nil && tag == asn1io.TagInteger {
		info.nonce, err = asn1io.ReadInteger(s)
		if err != nil {
			return tstInfo{}, err
		}
	}
	return info, nil
}
