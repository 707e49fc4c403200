// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package cms

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"math/big"

	"github.com/google/tink/go/aead/subtle"
	"golang.org/x/crypto/pbkdf2"

	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/internal/stream"
	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// pbkdf2Iterations matches cryptlib's default password-based key
// derivation iteration count for CMS password recipients.
const pbkdf2Iterations = 10000

// pbkdf2SaltLength is the salt length cryptlib derives a PWRI key-
// encryption key with.
const pbkdf2SaltLength = 16

// WrapCEKWithPassword derives a key-encryption key from password via
// PBKDF2-HMAC-SHA256 and wraps cek under it with AES-256-CBC, the
// RFC 3211 password-recipient-info shape cryptlib emits when no
// public-key recipient is configured. The content-encryption-key wrap
// is a single fixed-size block, so it goes through tink's one-shot
// subtle AES-CBC cipher rather than the segmented cipher.CBC bulk path
// internal/cms uses for the payload itself.
func WrapCEKWithPassword(password string, cek []byte) (salt []byte, wrapped []byte, err error) {
	salt = make([]byte, pbkdf2SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, cryptoerr.Wrap(cryptoerr.Internal, err)
	}
	kek := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, 32, sha256.New)
	cipher, err := subtle.NewAESCBCCipher(kek)
	if err != nil {
		return nil, nil, cryptoerr.Wrap(cryptoerr.Internal, err)
	}
	wrapped, err = cipher.Encrypt(cek)
	if err != nil {
		return nil, nil, cryptoerr.Wrap(cryptoerr.Internal, err)
	}
	return salt, wrapped, nil
}

// UnwrapCEKWithPassword reverses WrapCEKWithPassword.
func UnwrapCEKWithPassword(password string, salt, wrapped []byte) ([]byte, error) {
	kek := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, 32, sha256.New)
	cipher, err := subtle.NewAESCBCCipher(kek)
	if err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.Internal, err)
	}
	cek, err := cipher.Decrypt(wrapped)
	if err != nil {
		return nil, cryptoerr.WrapAttr(cryptoerr.BadData, "password", cryptoerr.ErrTypeAttrValue, err)
	}
	return cek, nil
}

// WritePasswordRecipientInfo encodes an RFC 3211 PasswordRecipientInfo:
// SEQUENCE{ version(0), keyDerivationAlgorithm, keyEncryptionAlgorithm,
// encryptedKey }. keyDerivationAlgorithm carries the PBKDF2 salt and
// iteration count; keyEncryptionAlgorithm names id-alg-PWRIKEK with the
// wrapped key's underlying cipher OID as its parameter.
func WritePasswordRecipientInfo(salt []byte, wrappedKey []byte) ([]byte, error) {
	version := big.NewInt(0)
	iterations := big.NewInt(pbkdf2Iterations)

	kdfParamsBody := asn1io.SizeOfOctetString(salt) + asn1io.SizeOfInteger(iterations)
	kdfAlgoBody := asn1io.SizeOfOID(asn1io.OIDPBKDF2) + asn1io.SizeOfObject(kdfParamsBody)

	keAlgoBody := asn1io.SizeOfOID(asn1io.OIDPWRIKEK) + asn1io.SizeOfOID(asn1io.OIDAES256CBC)

	body := asn1io.SizeOfInteger(version) +
		asn1io.SizeOfObject(kdfAlgoBody) +
		asn1io.SizeOfObject(keAlgoBody) +
		asn1io.SizeOfOctetString(wrappedKey)

	w := stream.MemOpen(asn1io.SizeOfObject(body))
	if err := asn1io.WriteSequenceHeader(w, body); err != nil {
		return nil, err
	}
	if err := asn1io.WriteInteger(w, version); err != nil {
		return nil, err
	}
	if err := asn1io.WriteSequenceHeader(w, kdfAlgoBody); err != nil {
		return nil, err
	}
	if err := asn1io.WriteOID(w, asn1io.OIDPBKDF2); err != nil {
		return nil, err
	}
	if err := asn1io.WriteSequenceHeader(w, kdfParamsBody); err != nil {
		return nil, err
	}
	if err := asn1io.WriteOctetString(w, salt); err != nil {
		return nil, err
	}
	if err := asn1io.WriteInteger(w, iterations); err != nil {
		return nil, err
	}
	if err := asn1io.WriteSequenceHeader(w, keAlgoBody); err != nil {
		return nil, err
	}
	if err := asn1io.WriteOID(w, asn1io.OIDPWRIKEK); err != nil {
		return nil, err
	}
	if err := asn1io.WriteOID(w, asn1io.OIDAES256CBC); err != nil {
		return nil, err
	}
	if err := asn1io.WriteOctetString(w, wrappedKey); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// WrapCEKWithRSA implements the PKC key-transport recipient: cek is
// wrapped under the recipient's RSA public key with PKCS#1 v1.5
// encryption, the transport cryptlib's KeyTransRecipientInfo and CMS
// itself (RFC 3852 section 6.2.1) both specify.
func WrapCEKWithRSA(pub *rsa.PublicKey, cek []byte) ([]byte, error) {
	wrapped, err := rsa.EncryptPKCS1v15(rand.Reader, pub, cek)
	if err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.Internal, err)
	}
	return wrapped, nil
}

// UnwrapCEKWithRSA reverses WrapCEKWithRSA.
func UnwrapCEKWithRSA(priv *rsa.PrivateKey, wrapped []byte) ([]byte, error) {
	cek, err := rsa.DecryptPKCS1v15(rand.Reader, priv, wrapped)
	if err != nil {
		return nil, cryptoerr.WrapAttr(cryptoerr.BadData, "encryptedKey", cryptoerr.ErrTypeAttrValue, err)
	}
	return cek, nil
}
