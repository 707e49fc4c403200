// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

// Package main provides a command line tool to generate a self-signed
// CA certificate and a leaf certificate issued under it, exercising
// internal/spmkernel, internal/certwriter and internal/chain end to
// end. Modeled on src/spm/util/certgen.go's single-shot HSM CLI, but
// widened from "generate one root CA" to "generate and chain a CA and
// a leaf", and generalized from the provisioning appliance's
// PKCS#11-only key source to spmkernel's software/PKCS#11 device
// choice.
package main

import (
	"crypto"
	"crypto/rand"
	"crypto/sha256"
	"encoding/pem"
	"flag"
	"os"
	"time"

	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/internal/attrstore"
	"github.com/lowRISC/otcryptocore/internal/certwriter"
	"github.com/lowRISC/otcryptocore/internal/chain"
	"github.com/lowRISC/otcryptocore/internal/keycodec"
	"github.com/lowRISC/otcryptocore/internal/logger"
	"github.com/lowRISC/otcryptocore/internal/spmkernel"
	"github.com/lowRISC/otcryptocore/internal/version"
)

var (
	device     = flag.String("device", "software", `Key source: "software" or "pkcs11"`)
	hsmSOPath  = flag.String("hsm_so", "", "File path to the PKCS#11 .so library; required when --device=pkcs11")
	hsmSlot    = flag.Uint("hsm_slot", 0, "The HSM slot number")
	hsmPIN     = flag.String("hsm_pin", "", "The HSM token PIN")
	keyBits    = flag.Int("key_bits", 2048, "RSA modulus size in bits for both the CA and leaf key")
	caCN       = flag.String("ca_cn", "OpenTitan Test Root CA", "CA certificate CommonName")
	leafCN     = flag.String("leaf_cn", "OpenTitan Test Device", "Leaf certificate CommonName")
	validDays  = flag.Int("valid_days", 3650, "Validity period, in days, for both certificates")
	caOut      = flag.String("ca_outfile", "ca.pem", "CA certificate output path")
	leafOut    = flag.String("leaf_outfile", "leaf.pem", "Leaf certificate output path")
	chainOut   = flag.String("chain_outfile", "chain.pem", "Reordered leaf-first chain output path")
	leafPolicy = flag.String("leaf_policy", "", "Optional path to a YAML CertPolicy file applied to the leaf certificate")
	showVer    = flag.Bool("version", false, "Print version information and exit")
)

func openDevice(log *logger.Logger) (spmkernel.Device, error) {
	if *device == "software" {
		return spmkernel.NewSoftwareDevice(), nil
	}
	log.Infof("opening PKCS#11 device via %s, slot %d", *hsmSOPath, *hsmSlot)
	return spmkernel.OpenPKCS11Device("pkcs11", *hsmSOPath, *hsmSlot, *hsmPIN)
}

// freshSerial returns a random positive serial number, matching
// certgen.go's "clear the sign bit, bump a leading zero byte" rule for
// a DER INTEGER that must stay positive.
func freshSerial() ([]byte, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	b[0] &= 0x7F
	if b[0] == 0 {
		b[0] = 1
	}
	return b, nil
}

func buildSubject(cn string) certwriter.DN {
	return certwriter.DN{
		{Type: "C", Value: "US"},
		{Type: "O", Value: "OpenTitan"},
		{Type: "OU", Value: "Engineering"},
		{Type: "CN", Value: cn},
	}
}

// signTBS hashes tbs with SHA-256 and signs it through dev, returning
// the signature ready for certwriter.WriteCertificate.
func signTBS(dev spmkernel.Device, key spmkernel.KeyHandle, tbs []byte) ([]byte, error) {
	digest := sha256.Sum256(tbs)
	return dev.Sign(key, crypto.SHA256, digest[:])
}

func writeCert(der []byte, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return pem.Encode(f, &pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func main() {
	flag.Parse()
	version.Print(*showVer)

	log := logger.New("certtool", logger.LevelInfo)
	registry := spmkernel.NewRegistryWithLogger(log)

	dev, err := openDevice(log)
	if err != nil {
		log.Errorf("failed to open device: %v", err)
		os.Exit(1)
	}
	if dev.Name() != "software" {
		registry.Register(dev)
	}

	caKey, err := dev.GenerateKey(keycodec.AlgRSA, *keyBits)
	if err != nil {
		log.Errorf("failed to generate CA key: %v", err)
		os.Exit(1)
	}
	_, caRSAPub, _, err := dev.PublicKey(caKey)
	if err != nil {
		log.Errorf("failed to read CA public key: %v", err)
		os.Exit(1)
	}

	notBefore := time.Now().UTC()
	notAfter := notBefore.AddDate(0, 0, *validDays)

	caSerial, err := freshSerial()
	if err != nil {
		log.Errorf("failed to generate CA serial number: %v", err)
		os.Exit(1)
	}

	caInfo := &certwriter.CertInfo{
		Type:       certwriter.TypeCertificate,
		Version:    3,
		Serial:     caSerial,
		Subject:    buildSubject(*caCN),
		SelfSigned: true,
		NotBefore:  notBefore,
		NotAfter:   notAfter,
		Algorithm:  keycodec.AlgRSA,
		RSAKey:     caRSAPub,
		Attrs:      attrstore.New(),
		IsCA:       true,
	}
	if err := certwriter.PreEncode(caInfo); err != nil {
		log.Errorf("CA pre-encode failed: %v", err)
		os.Exit(1)
	}
	caTBS, err := certwriter.WriteTBSCertificate(caInfo, asn1io.OIDSHA256WithRSA)
	if err != nil {
		log.Errorf("CA TBS encode failed: %v", err)
		os.Exit(1)
	}
	caSig, err := signTBS(dev, caKey, caTBS)
	if err != nil {
		log.Errorf("CA signing failed: %v", err)
		os.Exit(1)
	}
	caDER, err := certwriter.WriteCertificate(caInfo, asn1io.OIDSHA256WithRSA, caSig)
	if err != nil {
		log.Errorf("CA encode failed: %v", err)
		os.Exit(1)
	}
	if err := writeCert(caDER, *caOut); err != nil {
		log.Errorf("failed to write %s: %v", *caOut, err)
		os.Exit(1)
	}

	leafKey, err := dev.GenerateKey(keycodec.AlgRSA, *keyBits)
	if err != nil {
		log.Errorf("failed to generate leaf key: %v", err)
		os.Exit(1)
	}
	_, leafRSAPub, _, err := dev.PublicKey(leafKey)
	if err != nil {
		log.Errorf("failed to read leaf public key: %v", err)
		os.Exit(1)
	}

	leafSerial, err := freshSerial()
	if err != nil {
		log.Errorf("failed to generate leaf serial number: %v", err)
		os.Exit(1)
	}

	leafInfo := &certwriter.CertInfo{
		Type:            certwriter.TypeCertificate,
		Version:         3,
		Serial:          leafSerial,
		Subject:         buildSubject(*leafCN),
		Issuer:          caInfo.Subject,
		IssuerNotBefore: caInfo.NotBefore,
		IssuerNotAfter:  caInfo.NotAfter,
		NotBefore:       notBefore,
		NotAfter:        notAfter,
		Algorithm:       keycodec.AlgRSA,
		RSAKey:          leafRSAPub,
		Attrs:           attrstore.New(),
		IssuerAttrs:     caInfo.Attrs,
	}
	if caSKID := caInfo.Attrs.Find(attrstore.TypeSubjectKeyIdentifier, 0); caSKID != nil {
		leafInfo.Attrs.Add(attrstore.Attribute{
			Type:  attrstore.TypeAuthorityKeyIdentifier,
			Kind:  attrstore.KindBytes,
			Bytes: caSKID.Bytes,
		})
	}
	if *leafPolicy != "" {
		policy, err := certwriter.LoadCertPolicy(*leafPolicy)
		if err != nil {
			log.Errorf("failed to load leaf policy %s: %v", *leafPolicy, err)
			os.Exit(1)
		}
		if err := policy.Apply(leafInfo); err != nil {
			log.Errorf("failed to apply leaf policy %s: %v", *leafPolicy, err)
			os.Exit(1)
		}
	}
	if err := certwriter.PreEncode(leafInfo); err != nil {
		log.Errorf("leaf pre-encode failed: %v", err)
		os.Exit(1)
	}
	leafTBS, err := certwriter.WriteTBSCertificate(leafInfo, asn1io.OIDSHA256WithRSA)
	if err != nil {
		log.Errorf("leaf TBS encode failed: %v", err)
		os.Exit(1)
	}
	leafSig, err := signTBS(dev, caKey, leafTBS)
	if err != nil {
		log.Errorf("leaf signing failed: %v", err)
		os.Exit(1)
	}
	leafDER, err := certwriter.WriteCertificate(leafInfo, asn1io.OIDSHA256WithRSA, leafSig)
	if err != nil {
		log.Errorf("leaf encode failed: %v", err)
		os.Exit(1)
	}
	if err := writeCert(leafDER, *leafOut); err != nil {
		log.Errorf("failed to write %s: %v", *leafOut, err)
		os.Exit(1)
	}

	if err := reorderAndWriteChain(log, caInfo, leafInfo, caDER, leafDER); err != nil {
		log.Errorf("chain assembly failed: %v", err)
		os.Exit(1)
	}

	log.Infof("wrote %s, %s and %s", *caOut, *leafOut, *chainOut)
}

// reorderAndWriteChain builds a chain.Info extract for both
// certificates, feeds them through chain.Sort out of order (leaf then
// CA, the order a naive collector would hand back), and writes the
// resulting leaf-first chain, proving internal/chain's reordering
// against certtool's own output rather than only against unit-test
// fixtures.
func reorderAndWriteChain(log *logger.Logger, caInfo, leafInfo *certwriter.CertInfo, caDER, leafDER []byte) error {
	caSKID := caInfo.Attrs.Find(attrstore.TypeSubjectKeyIdentifier, 0)
	leafAKID := leafInfo.Attrs.Find(attrstore.TypeAuthorityKeyIdentifier, 0)

	extracts := []chain.Info{
		{Handle: 0, SubjectDN: dnKey(leafInfo.Subject), IssuerDN: dnKey(leafInfo.Issuer), Serial: leafInfo.Serial,
			AKID: bytesOf(leafAKID)},
		{Handle: 1, SubjectDN: dnKey(caInfo.Subject), IssuerDN: dnKey(caInfo.Issuer), Serial: caInfo.Serial,
			SKID: bytesOf(caSKID)},
	}
	result, err := chain.Sort(extracts, false, chain.CompliancePKIX)
	if err != nil {
		return err
	}
	log.Infof("chain reordered to handles %v (self-signed root at end)", result.Order)

	der := map[int][]byte{0: leafDER, 1: caDER}
	var ordered [][]byte
	for _, h := range result.Order {
		ordered = append(ordered, der[h])
	}
	collection := chain.WriteSSLChain(ordered)
	return os.WriteFile(*chainOut, collection, 0644)
}

func dnKey(d certwriter.DN) chain.DNKey {
	var s string
	for _, rdn := range d {
		s += rdn.Type + "=" + rdn.Value + ","
	}
	return chain.DNKey(s)
}

func bytesOf(a *attrstore.Attribute) []byte {
	if a == nil {
		return nil
	}
	return a.Bytes
}
