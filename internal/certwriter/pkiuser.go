// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package certwriter

import (
	"crypto/cipher"
	"crypto/des" //nolint:staticcheck // 3DES is the specified PKI-user authenticator cipher, not a general-purpose choice
	"crypto/rand"

	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// pkiUserAuthenticatorKey is the fixed 3DES key cryptlib uses to wrap
// a PKI user's one-time authenticator pair before it is mailed out of
// band; it protects against casual disclosure in transit, not against
// a targeted attacker who already has the source.
var pkiUserAuthenticatorKey = [24]byte{
	0x01, 0x23, 0x45, 0x67, 0x89, 0xAB, 0xCD, 0xEF,
	0xFE, 0xDC, 0xBA, 0x98, 0x76, 0x54, 0x32, 0x10,
	0x89, 0xAB, 0xCD, 0xEF, 0x01, 0x23, 0x45, 0x67,
}

// GenerateUserID returns a fresh random PKI user ID: cryptlib encodes
// this as a sequence of decimal digit groups; here it is returned as
// raw random bytes, left to the caller to format.
func GenerateUserID(length int) ([]byte, error) {
	id := make([]byte, length)
	if _, err := rand.Read(id); err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.Internal, err)
	}
	return id, nil
}

// pkcs5Pad appends k bytes of value k so the result is a multiple of
// blockSize, always adding a full extra block when data is already
// aligned (spec.md section 7's PKCS#5 padding rule).
func pkcs5Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

// pkcs5Unpad strips and validates PKCS#5 padding.
func pkcs5Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, cryptoerr.New(cryptoerr.BadData)
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, cryptoerr.New(cryptoerr.BadData)
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, cryptoerr.New(cryptoerr.BadData)
		}
	}
	return data[:len(data)-padLen], nil
}

// EncryptPKIUserAuthenticator encrypts a PKI user's authenticator pair
// (two fixed-length secret values, concatenated by the caller) under
// the fixed 3DES key in CBC mode with a zero IV and PKCS#5 padding, as
// spec.md section 4.6's PKI-user row specifies.
func EncryptPKIUserAuthenticator(authenticator []byte) ([]byte, error) {
	block, err := des.NewTripleDESCipher(pkiUserAuthenticatorKey[:])
	if err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.Internal, err)
	}
	padded := pkcs5Pad(authenticator, block.BlockSize())
	out := make([]byte, len(padded))
	cbc := cipher.NewCBCEncrypter(block, make([]byte, block.BlockSize()))
	cbc.CryptBlocks(out, padded)
	return out, nil
}

// DecryptPKIUserAuthenticator reverses EncryptPKIUserAuthenticator.
func DecryptPKIUserAuthenticator(ciphertext []byte) ([]byte, error) {
	block, err := des.NewTripleDESCipher(pkiUserAuthenticatorKey[:])
	if err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.Internal, err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return nil, cryptoerr.New(cryptoerr.BadData)
	}
	out := make([]byte, len(ciphertext))
	cbc := cipher.NewCBCDecrypter(block, make([]byte, block.BlockSize()))
	cbc.CryptBlocks(out, ciphertext)
	return pkcs5Unpad(out, block.BlockSize())
}
