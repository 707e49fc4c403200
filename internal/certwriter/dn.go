// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package certwriter

import (
	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/internal/stream"
	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// rdnOIDs maps the short RDN type labels accepted in DN to their
// X.520 attribute-type OIDs.
var rdnOIDs = map[string]asn1io.OID{
	"C":  {2, 5, 4, 6},
	"ST": {2, 5, 4, 8},
	"L":  {2, 5, 4, 7},
	"O":  {2, 5, 4, 10},
	"OU": {2, 5, 4, 11},
	"CN": {2, 5, 4, 3},
}

// sizeOfDN returns the total TLV size of a Name SEQUENCE encoding d.
func sizeOfDN(d DN) int {
	body := 0
	for _, rdn := range d {
		body += asn1io.SizeOfObject(sizeOfRDN(rdn))
	}
	return asn1io.SizeOfObject(body)
}

func sizeOfRDN(rdn RDN) int {
	inner := asn1io.SizeOfOID(rdnOIDs[rdn.Type]) + asn1io.SizeOfObject(len(rdn.Value))
	return asn1io.SizeOfObject(inner)
}

// writeDN emits a Name as SEQUENCE OF SET OF SEQUENCE { OID, value },
// one single-valued RDN per component, in the order given.
func writeDN(s stream.Stream, d DN) error {
	body := 0
	for _, rdn := range d {
		body += asn1io.SizeOfObject(sizeOfRDN(rdn))
	}
	if err := asn1io.WriteSequenceHeader(s, body); err != nil {
		return err
	}
	for _, rdn := range d {
		if err := writeRDNSet(s, rdn); err != nil {
			return err
		}
	}
	return nil
}

func writeRDNSet(s stream.Stream, rdn RDN) error {
	inner := sizeOfRDN(rdn)
	if err := asn1io.WriteSetHeader(s, inner); err != nil {
		return err
	}
	atavSize := asn1io.SizeOfOID(rdnOIDs[rdn.Type]) + asn1io.SizeOfObject(len(rdn.Value))
	if err := asn1io.WriteSequenceHeader(s, atavSize); err != nil {
		return err
	}
	oid, ok := rdnOIDs[rdn.Type]
	if !ok {
		return cryptoerr.Errorf(cryptoerr.BadData, "unknown RDN type %q", rdn.Type)
	}
	if err := asn1io.WriteOID(s, oid); err != nil {
		return err
	}
	// PrintableString/UTF8String distinction is not load-bearing for
	// this codec's callers; UTF8String (tag 0x0C) is used uniformly.
	if err := asn1io.WriteTagHeader(s, 0x0C, len(rdn.Value)); err != nil {
		return err
	}
	_, err := s.Write([]byte(rdn.Value))
	return err
}

// readDN parses a Name SEQUENCE back into a DN.
func readDN(s stream.Stream) (DN, error) {
	if _, _, err := asn1io.ReadSequence(s); err != nil {
		return nil, err
	}
	var d DN
	for {
		tag, err := asn1io.PeekTag(s)
		if err != nil {
			break
		}
		if tag != asn1io.TagSetOf {
			break
		}
		if _, _, err := asn1io.ReadSet(s); err != nil {
			return nil, err
		}
		if _, _, err := asn1io.ReadSequence(s); err != nil {
			return nil, err
		}
		oid, err := asn1io.ReadOID(s)
		if err != nil {
			return nil, err
		}
		valTag, valLen, _, err := asn1io.ReadTagHeader(s)
		if err != nil {
			return nil, err
		}
		_ = valTag
		val := make([]byte, valLen)
		if valLen > 0 {
			if _, err := s.Read(val); err != nil {
				return nil, err
			}
		}
		d = append(d, RDN{Type: rdnLabel(oid), Value: string(val)})
	}
	return d, nil
}

func rdnLabel(oid asn1io.OID) string {
	for label, o := range rdnOIDs {
		if o.Equal(oid) {
			return label
		}
	}
	return oid.String()
}
