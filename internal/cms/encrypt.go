// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package cms

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// contentCipher performs the bulk AES-CBC content encryption action.
// It needs an explicit, externally visible IV (emitted in the
// EncryptedContentInfo AlgorithmIdentifier params) and produces output
// segmented the way the envelope pushes bytes in, so it is built on
// crypto/cipher directly rather than a one-shot AEAD call.
type contentCipher struct {
	encrypter cipher.BlockMode
	decrypter cipher.BlockMode
	blockSize int
	iv        []byte
}

// newContentCipher builds an AES-CBC encrypt/decrypt pair under key
// with a freshly generated IV.
func newContentCipher(key []byte) (*contentCipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.Internal, err)
	}
	iv := make([]byte, block.BlockSize())
	if _, err := rand.Read(iv); err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.Internal, err)
	}
	return &contentCipher{
		encrypter: cipher.NewCBCEncrypter(block, iv),
		blockSize: block.BlockSize(),
		iv:        iv,
	}, nil
}

// openContentCipher builds a decrypter for a previously emitted IV.
func openContentCipher(key, iv []byte) (*contentCipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.Internal, err)
	}
	if len(iv) != block.BlockSize() {
		return nil, cryptoerr.New(cryptoerr.BadData)
	}
	return &contentCipher{
		decrypter: cipher.NewCBCDecrypter(block, iv),
		blockSize: block.BlockSize(),
		iv:        iv,
	}, nil
}

// paddedSize mirrors cms_env.c's paddedSize macro: the payload always
// expands, even when it is already a multiple of blockSize.
func paddedSize(size int) int {
	return roundUp(size+1, aes.BlockSize)
}

func roundUp(size, blockSize int) int {
	return ((size + blockSize - 1) / blockSize) * blockSize
}

// pkcs5Pad appends k bytes of value k so plaintext becomes a multiple
// of blockSize, expanding by a full block when already aligned.
func pkcs5Pad(plaintext []byte, blockSize int) []byte {
	padLen := blockSize - len(plaintext)%blockSize
	out := make([]byte, len(plaintext)+padLen)
	copy(out, plaintext)
	for i := len(plaintext); i < len(out); i++ {
		out[i] = byte(padLen)
	}
	return out
}

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

// sealFinal pads and encrypts the whole buffered payload in one call;
// internal/cms buffers the payload until flush rather than encrypting
// true streaming segments, since DER OCTET STRING segment boundaries
// must not split a CBC block.
func (c *contentCipher) sealFinal(plaintext []byte) []byte {
	padded := pkcs5Pad(plaintext, c.blockSize)
	out := make([]byte, len(padded))
	c.encrypter.CryptBlocks(out, padded)
	return out
}

func (c *contentCipher) openFinal(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%c.blockSize != 0 {
		return nil, cryptoerr.New(cryptoerr.BadData)
	}
	out := make([]byte, len(ciphertext))
	c.decrypter.CryptBlocks(out, ciphertext)
	return pkcs5Unpad(out, c.blockSize)
}
