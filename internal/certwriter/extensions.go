// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package certwriter

import (
	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/internal/attrstore"
	"github.com/lowRISC/otcryptocore/internal/keycodec"
	"github.com/lowRISC/otcryptocore/internal/stream"
)

// KeyUsage bits, numbered per X.509's keyUsage BIT STRING layout.
const (
	KeyUsageDigitalSignature = 1 << iota
	KeyUsageNonRepudiation
	KeyUsageKeyEncipherment
	KeyUsageDataEncipherment
	KeyUsageKeyAgreement
	KeyUsageKeyCertSign
	KeyUsageCRLSign
)

// ExtKeyUsage purposes, each contributing an implied keyUsage bit when
// keyUsage itself is absent (excluding nonRepudiation, per spec.md
// section 4.6: "keyUsage is inferred from extKeyUsage masking
// nonRepudiation").
var extKeyUsageImpliedBits = map[string]int{
	asn1io.OIDEKUServerAuth.String():      KeyUsageDigitalSignature | KeyUsageKeyEncipherment,
	asn1io.OIDEKUClientAuth.String():      KeyUsageDigitalSignature,
	asn1io.OIDEKUCodeSigning.String():     KeyUsageDigitalSignature,
	asn1io.OIDEKUEmailProtection.String(): KeyUsageDigitalSignature | KeyUsageKeyEncipherment,
	asn1io.OIDEKUTimeStamping.String():    KeyUsageDigitalSignature,
	asn1io.OIDEKUOCSPSigning.String():     KeyUsageDigitalSignature,
}

// addStandardExtensions fills in the extensions spec.md section 4.6
// says the writer derives automatically: keyUsage (inferred from
// extKeyUsage when absent), the CA keyCertSign|cRLSign bits,
// subjectKeyIdentifier (from the cryptlib key-ID) and basicConstraints
// (defaulting to non-CA). It is idempotent: an attribute the caller
// already set is kept, except that a CA's existing keyUsage gains the
// keyCertSign|cRLSign bits.
func addStandardExtensions(info *CertInfo) error {
	if info.Attrs == nil {
		info.Attrs = attrstore.New()
	}

	if info.Attrs.Find(attrstore.TypeBasicConstraints, 0) == nil {
		info.Attrs.Add(attrstore.Attribute{
			Type: attrstore.TypeBasicConstraints,
			Kind: attrstore.KindInt,
			Int:  boolToInt(info.IsCA),
		})
	}

	if info.Attrs.Find(attrstore.TypeKeyUsage, 0) == nil {
		bits := inferKeyUsage(info)
		if info.IsCA {
			bits |= KeyUsageKeyCertSign | KeyUsageCRLSign
		}
		if bits != 0 {
			info.Attrs.Add(attrstore.Attribute{
				Type: attrstore.TypeKeyUsage,
				Kind: attrstore.KindInt,
				Int:  int64(bits),
			})
		}
	} else if info.IsCA {
		ku := info.Attrs.Find(attrstore.TypeKeyUsage, 0)
		ku.Int |= KeyUsageKeyCertSign | KeyUsageCRLSign
	}

	if info.Attrs.Find(attrstore.TypeSubjectKeyIdentifier, 0) == nil {
		skid, err := computeSubjectKeyID(info)
		if err != nil {
			return err
		}
		if skid != nil {
			info.Attrs.Add(attrstore.Attribute{
				Type:  attrstore.TypeSubjectKeyIdentifier,
				Kind:  attrstore.KindBytes,
				Bytes: skid,
			})
		}
	}

	return nil
}

func inferKeyUsage(info *CertInfo) int {
	var bits int
	for _, a := range info.Attrs.FindAll(attrstore.TypeExtKeyUsage) {
		if a.Kind == attrstore.KindOID {
			if implied, ok := extKeyUsageImpliedBits[a.OID.String()]; ok {
				bits |= implied
			}
		}
	}
	return bits &^ KeyUsageNonRepudiation
}

func computeSubjectKeyID(info *CertInfo) ([]byte, error) {
	if info.RSAKey == nil && info.DLPKey == nil {
		return nil, nil
	}
	return keycodec.ComputeKeyID(func(s stream.Stream) error {
		if info.RSAKey != nil {
			return keycodec.EncodeRSASPKI(s, *info.RSAKey)
		}
		return keycodec.EncodeDLPSPKI(s, info.Algorithm, *info.DLPKey)
	})
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
