// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package certwriter

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/internal/attrstore"
	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// CertPolicy is a named certificate-issuance policy: the subset of a
// CertInfo's attribute set an operator wants fixed across every
// certificate a SKU issues, rather than recomputed per call. Grounded
// on src/spm/services/skucfg.go's yaml-tagged Config, narrowed from
// that type's SKU-wide key/session/attribute bundle to the one
// concern cmd/certtool and cmd/tsaserver need from a policy file: the
// extension set a CA operator wants stamped on every certificate of a
// given kind.
type CertPolicy struct {
	Name string `yaml:"name"`

	// ValidDays is the certificate lifetime in days named by the policy
	// file. Apply does not read it; NotBefore/NotAfter stay whatever the
	// caller set.
	ValidDays int `yaml:"validDays"`

	// KeyUsages/ExtKeyUsages name bits from extensions.go's
	// KeyUsage* constants and EKU purposes by short label
	// ("serverAuth", "clientAuth", "codeSigning", "emailProtection",
	// "timeStamping", "ocspSigning"); unknown labels are rejected by
	// LoadCertPolicy rather than silently ignored.
	KeyUsages    []string `yaml:"keyUsages"`
	ExtKeyUsages []string `yaml:"extKeyUsages"`

	// CriticalKeyUsage/CriticalExtKeyUsage set the Critical flag on the
	// keyUsage/extKeyUsage attributes Apply adds.
	CriticalKeyUsage    bool `yaml:"criticalKeyUsage"`
	CriticalExtKeyUsage bool `yaml:"criticalExtKeyUsage"`

	// DNSNames becomes the certificate's subjectAltName dNSName
	// entries (SubField 2, the dNSName GeneralName tag number).
	DNSNames []string `yaml:"dnsNames"`
}

var keyUsageBits = map[string]int{
	"digitalSignature": KeyUsageDigitalSignature,
	"nonRepudiation":    KeyUsageNonRepudiation,
	"keyEncipherment":   KeyUsageKeyEncipherment,
	"dataEncipherment":  KeyUsageDataEncipherment,
	"keyAgreement":      KeyUsageKeyAgreement,
	"keyCertSign":       KeyUsageKeyCertSign,
	"cRLSign":           KeyUsageCRLSign,
}

var extKeyUsageOIDs = map[string]asn1io.OID{
	"serverAuth":      asn1io.OIDEKUServerAuth,
	"clientAuth":      asn1io.OIDEKUClientAuth,
	"codeSigning":     asn1io.OIDEKUCodeSigning,
	"emailProtection": asn1io.OIDEKUEmailProtection,
	"timeStamping":    asn1io.OIDEKUTimeStamping,
	"ocspSigning":     asn1io.OIDEKUOCSPSigning,
}

// LoadCertPolicy reads and validates a CertPolicy from a YAML file,
// the same gopkg.in/yaml.v3 decoder skucfg.go uses for SKU
// configuration.
func LoadCertPolicy(path string) (*CertPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.NotFound, err)
	}
	var p CertPolicy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.BadData, err)
	}
	for _, ku := range p.KeyUsages {
		if _, ok := keyUsageBits[ku]; !ok {
			return nil, cryptoerr.New(cryptoerr.BadData)
		}
	}
	for _, eku := range p.ExtKeyUsages {
		if _, ok := extKeyUsageOIDs[eku]; !ok {
			return nil, cryptoerr.New(cryptoerr.BadData)
		}
	}
	return &p, nil
}

// Apply stamps the policy's extensions onto info.Attrs. It must run
// before PreEncode, which only fills in keyUsage when the caller
// (here, the policy) has not already set it.
func (p *CertPolicy) Apply(info *CertInfo) error {
	if p == nil {
		return nil
	}
	if len(p.KeyUsages) > 0 {
		var bits int64
		for _, ku := range p.KeyUsages {
			bits |= int64(keyUsageBits[ku])
		}
		if err := info.Attrs.Add(attrstore.Attribute{
			Type: attrstore.TypeKeyUsage, Kind: attrstore.KindInt,
			Int: bits, Critical: p.CriticalKeyUsage,
		}); err != nil {
			return err
		}
	}
	for _, eku := range p.ExtKeyUsages {
		if err := info.Attrs.Add(attrstore.Attribute{
			Type: attrstore.TypeExtKeyUsage, Kind: attrstore.KindOID,
			OID: extKeyUsageOIDs[eku], Critical: p.CriticalExtKeyUsage,
		}); err != nil {
			return err
		}
	}
	for i, name := range p.DNSNames {
		if err := info.Attrs.Add(attrstore.Attribute{
			Type: attrstore.TypeSubjectAltName, SubField: 2,
			Kind: attrstore.KindBytes, Bytes: []byte(name), Int: int64(i),
		}); err != nil {
			return err
		}
	}
	return nil
}
