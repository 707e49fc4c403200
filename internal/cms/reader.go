// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package cms

import (
	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/internal/stream"
	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// PeekContentType reads just the outer ContentInfo's contentType OID,
// letting a caller route to UnwrapData/UnwrapEnvelopedData/etc.
// without re-parsing the envelope twice.
func PeekContentType(data []byte) (asn1io.OID, error) {
	s := stream.MemConnect(data)
	if _, _, err := asn1io.ReadSequence(s); err != nil {
		return nil, err
	}
	return asn1io.ReadOID(s)
}

// UnwrapData reverses encodeDataContentInfo.
func UnwrapData(data []byte) ([]byte, error) {
	s := stream.MemConnect(data)
	if _, _, err := asn1io.ReadSequence(s); err != nil {
		return nil, err
	}
	oid, err := asn1io.ReadOID(s)
	if err != nil {
		return nil, err
	}
	if !oid.Equal(asn1io.OIDCMSData) {
		return nil, cryptoerr.New(cryptoerr.BadData)
	}
	if _, _, _, err := asn1io.ReadTagHeader(s); err != nil {
		return nil, err
	}
	return asn1io.ReadOctetString(s)
}

// UnwrapSignedData parses a SignedData ContentInfo as encodeSignedData
// produces it, returning the inner eContent bytes and each SignerInfo
// entry as its own complete DER blob (for internal/cmssigner.
// ParseSignerInfo to decode individually). digestAlgorithms is read and
// discarded; callers that need a signer's digest algorithm read it back
// out of its own SignerInfo.
func UnwrapSignedData(data []byte) (eContent []byte, signerInfos [][]byte, err error) {
	s := stream.MemConnect(data)
	if _, _, err := asn1io.ReadSequence(s); err != nil {
		return nil, nil, err
	}
	oid, err := asn1io.ReadOID(s)
	if err != nil {
		return nil, nil, err
	}
	if !oid.Equal(asn1io.OIDCMSSignedData) {
		return nil, nil, cryptoerr.New(cryptoerr.BadData)
	}
	if _, _, _, err := asn1io.ReadTagHeader(s); err != nil {
		return nil, nil, err
	}
	if _, _, err := asn1io.ReadSequence(s); err != nil {
		return nil, nil, err
	}
	if _, err := asn1io.ReadInteger(s); err != nil {
		return nil, nil, err
	}
	if _, _, err := asn1io.ReadSet(s); err != nil { // digestAlgorithms
		return nil, nil, err
	}
	_, encapIndefinite, err := asn1io.ReadSequence(s) // encapContentInfo
	if err != nil {
		return nil, nil, err
	}
	if _, err := asn1io.ReadOID(s); err != nil { // eContentType
		return nil, nil, err
	}
	_, _, wrapIndefinite, err := asn1io.ReadTagHeader(s) // [0] EXPLICIT
	if err != nil {
		return nil, nil, err
	}
	eContent, err = asn1io.ReadOctetString(s)
	if err != nil {
		return nil, nil, err
	}
	if wrapIndefinite {
		if err := asn1io.ReadEOC(s); err != nil {
			return nil, nil, err
		}
	}
	if encapIndefinite {
		if err := asn1io.ReadEOC(s); err != nil {
			return nil, nil, err
		}
	}
	setLen, setIndefinite, err := asn1io.ReadSet(s)
	if err != nil {
		return nil, nil, err
	}
	setEnd := s.Tell() + int64(setLen)
	for {
		if setIndefinite {
			eoc, err := asn1io.AtEOC(s)
			if err != nil {
				return nil, nil, err
			}
			if eoc {
				if err := asn1io.ReadEOC(s); err != nil {
					return nil, nil, err
				}
				break
			}
		} else if s.Tell() >= setEnd {
			break
		}
		der, err := readOneTLV(s, data)
		if err != nil {
			return nil, nil, err
		}
		signerInfos = append(signerInfos, der)
	}
	return eContent, signerInfos, nil
}

// readOneTLV reads one definite-length tag+length+body value, skipping
// over its body without copying, and slices the complete TLV (header
// included) out of the original data buffer.
func readOneTLV(s stream.Stream, data []byte) ([]byte, error) {
	start := s.Tell()
	_, length, indefinite, err := asn1io.ReadTagHeader(s)
	if err != nil {
		return nil, err
	}
	if indefinite {
		return nil, cryptoerr.New(cryptoerr.BadData)
	}
	if err := s.Skip(length); err != nil {
		return nil, err
	}
	return data[start:s.Tell()], nil
}

// recipientInfo is a parsed, still-wire-encoded RecipientInfo, enough
// to let the caller try its own key/password against encryptedKey.
type recipientInfo struct {
	isPassword bool
	keyID      []byte // populated for the key-transport variant
	salt       []byte // populated for the password variant
	iterations int
	encKey     []byte
}

// UnwrapEnvelopedDataWithPassword parses an EnvelopedData ContentInfo,
// unwraps the first password RecipientInfo under password, decrypts
// the content and returns the plaintext.
func UnwrapEnvelopedDataWithPassword(data []byte, password string) ([]byte, error) {
	recips, iv, encrypted, err := parseEnvelopedData(data)
	if err != nil {
		return nil, err
	}
	for _, r := range recips {
		if !r.isPassword {
			continue
		}
		cek, err := UnwrapCEKWithPassword(password, r.salt, r.encKey)
		if err != nil {
			continue
		}
		return decryptWithCEK(cek, iv, encrypted)
	}
	return nil, cryptoerr.New(cryptoerr.NotFound)
}

// UnwrapEnvelopedDataWithRSA is UnwrapEnvelopedDataWithPassword's
// key-transport counterpart, matching recipients by keyID.
func UnwrapEnvelopedDataWithRSA(data []byte, keyID []byte, unwrap func(encryptedKey []byte) ([]byte, error)) ([]byte, error) {
	recips, iv, encrypted, err := parseEnvelopedData(data)
	if err != nil {
		return nil, err
	}
	for _, r := range recips {
		if r.isPassword || !bytesEqual(r.keyID, keyID) {
			continue
		}
		cek, err := unwrap(r.encKey)
		if err != nil {
			return nil, err
		}
		return decryptWithCEK(cek, iv, encrypted)
	}
	return nil, cryptoerr.New(cryptoerr.NotFound)
}

func decryptWithCEK(cek, iv, encrypted []byte) ([]byte, error) {
	c, err := openContentCipher(cek, iv)
	if err != nil {
		return nil, err
	}
	return c.openFinal(encrypted)
}

func parseEnvelopedData(data []byte) (recips []recipientInfo, iv, encrypted []byte, err error) {
	s := stream.MemConnect(data)
	if _, _, err := asn1io.ReadSequence(s); err != nil {
		return nil, nil, nil, err
	}
	oid, err := asn1io.ReadOID(s)
	if err != nil {
		return nil, nil, nil, err
	}
	if !oid.Equal(asn1io.OIDCMSEnvelopedData) {
		return nil, nil, nil, cryptoerr.New(cryptoerr.BadData)
	}
	if _, _, _, err := asn1io.ReadTagHeader(s); err != nil {
		return nil, nil, nil, err
	}
	if _, _, err := asn1io.ReadSequence(s); err != nil {
		return nil, nil, nil, err
	}
	if _, err := asn1io.ReadInteger(s); err != nil {
		return nil, nil, nil, err
	}
	setLen, setIndefinite, err := asn1io.ReadSet(s)
	if err != nil {
		return nil, nil, nil, err
	}
	setEnd := s.Tell() + int64(setLen)
	for {
		if setIndefinite {
			eoc, err := asn1io.AtEOC(s)
			if err != nil {
				return nil, nil, nil, err
			}
			if eoc {
				if err := asn1io.ReadEOC(s); err != nil {
					return nil, nil, nil, err
				}
				break
			}
		} else if s.Tell() >= setEnd {
			break
		}
		r, err := readOneRecipientInfo(s)
		if err != nil {
			return nil, nil, nil, err
		}
		recips = append(recips, r)
	}

	if _, _, err := asn1io.ReadSequence(s); err != nil {
		return nil, nil, nil, err
	}
	if _, err := asn1io.ReadOID(s); err != nil { // contentType
		return nil, nil, nil, err
	}
	if _, _, err := asn1io.ReadSequence(s); err != nil { // contentEncryptionAlgorithm
		return nil, nil, nil, err
	}
	if _, err := asn1io.ReadOID(s); err != nil {
		return nil, nil, nil, err
	}
	iv, err = asn1io.ReadOctetString(s)
	if err != nil {
		return nil, nil, nil, err
	}
	tag, length, indefinite, err := asn1io.ReadTagHeader(s)
	if err != nil {
		return nil, nil, nil, err
	}
	if tag != asn1io.ContextTag(0, false) || indefinite {
		return nil, nil, nil, cryptoerr.New(cryptoerr.BadData)
	}
	encrypted = make([]byte, length)
	if _, err := s.Read(encrypted); err != nil {
		return nil, nil, nil, err
	}
	return recips, iv, encrypted, nil
}

func readOneRecipientInfo(s stream.Stream) (recipientInfo, error) {
	seqLen, seqIndefinite, err := asn1io.ReadSequence(s)
	if err != nil {
		return recipientInfo{}, err
	}
	if seqIndefinite {
		return recipientInfo{}, cryptoerr.New(cryptoerr.BadData)
	}
	seqEnd := s.Tell() + int64(seqLen)
	if _, err := asn1io.ReadInteger(s); err != nil { // version
		return recipientInfo{}, err
	}
	tag, err := asn1io.PeekTag(s)
	if err != nil {
		return recipientInfo{}, err
	}

	var ri recipientInfo
	switch tag {
	case asn1io.ContextTag(0, false):
		// KeyTransRecipientInfo: [0] IMPLICIT SubjectKeyIdentifier.
		_, length, indefinite, err := asn1io.ReadTagHeader(s)
		if err != nil {
			return recipientInfo{}, err
		}
		if indefinite {
			return recipientInfo{}, cryptoerr.New(cryptoerr.BadData)
		}
		ri.keyID = make([]byte, length)
		if _, err := s.Read(ri.keyID); err != nil {
			return recipientInfo{}, err
		}
		if _, _, err := asn1io.ReadSequence(s); err != nil { // keyEncryptionAlgorithm
			return recipientInfo{}, err
		}
		if _, err := asn1io.ReadOID(s); err != nil {
			return recipientInfo{}, err
		}
		if tag, err := asn1io.PeekTag(s); err == nil && tag == asn1io.TagNull {
			if _, _, _, err := asn1io.ReadTagHeader(s); err != nil {
				return recipientInfo{}, err
			}
		}
		ri.encKey, err = asn1io.ReadOctetString(s)
		if err != nil {
			return recipientInfo{}, err
		}
	default:
		// PasswordRecipientInfo: keyDerivationAlgorithm SEQUENCE.
		ri.isPassword = true
		if _, _, err := asn1io.ReadSequence(s); err != nil { // keyDerivationAlgorithm
			return recipientInfo{}, err
		}
		if _, err := asn1io.ReadOID(s); err != nil { // PBKDF2
			return recipientInfo{}, err
		}
		if _, _, err := asn1io.ReadSequence(s); err != nil { // PBKDF2-params
			return recipientInfo{}, err
		}
		ri.salt, err = asn1io.ReadOctetString(s)
		if err != nil {
			return recipientInfo{}, err
		}
		iterCount, err := asn1io.ReadInteger(s)
		if err != nil {
			return recipientInfo{}, err
		}
		ri.iterations = int(iterCount.Int64())
		if _, _, err := asn1io.ReadSequence(s); err != nil { // keyEncryptionAlgorithm (PWRIKEK)
			return recipientInfo{}, err
		}
		if _, err := asn1io.ReadOID(s); err != nil {
			return recipientInfo{}, err
		}
		if _, err := asn1io.ReadOID(s); err != nil { // wrapped-cipher OID
			return recipientInfo{}, err
		}
		ri.encKey, err = asn1io.ReadOctetString(s)
		if err != nil {
			return recipientInfo{}, err
		}
	}

	if err := s.Seek(seqEnd); err != nil {
		return recipientInfo{}, err
	}
	return ri, nil
}
