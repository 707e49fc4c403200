// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package keycodec

import (
	"encoding/binary"
	"math/big"

	"golang.org/x/crypto/ssh"

	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// EncodeSSHv1RSAPublicKey writes the legacy SSHv1 public key blob:
// uint32 key-size (in bits), mpint e (16-bit bit-length prefix rather
// than the SSHv2 byte-length-prefixed string form), mpint n.
func EncodeSSHv1RSAPublicKey(pub RSAPublic) []byte {
	var out []byte
	out = append(out, uint32Bytes(uint32(pub.N.BitLen()))...)
	out = append(out, sshv1MPInt(pub.E)...)
	out = append(out, sshv1MPInt(pub.N)...)
	return out
}

// DecodeSSHv1RSAPublicKey parses the blob EncodeSSHv1RSAPublicKey
// produces.
func DecodeSSHv1RSAPublicKey(b []byte) (RSAPublic, error) {
	if len(b) < 4 {
		return RSAPublic{}, cryptoerr.New(cryptoerr.Underflow)
	}
	b = b[4:] // key-size is advisory; the mpint lengths are authoritative
	e, rest, err := readSSHv1MPInt(b)
	if err != nil {
		return RSAPublic{}, err
	}
	n, _, err := readSSHv1MPInt(rest)
	if err != nil {
		return RSAPublic{}, err
	}
	return RSAPublic{N: n, E: e}, nil
}

// sshv1MPInt encodes a big.Int in the SSHv1 mpint form: a 16-bit
// bit-length prefix followed by the minimal big-endian magnitude.
func sshv1MPInt(n *big.Int) []byte {
	body := n.Bytes()
	out := make([]byte, 2, 2+len(body))
	binary.BigEndian.PutUint16(out, uint16(n.BitLen()))
	return append(out, body...)
}

func readSSHv1MPInt(b []byte) (*big.Int, []byte, error) {
	if len(b) < 2 {
		return nil, nil, cryptoerr.New(cryptoerr.Underflow)
	}
	bits := binary.BigEndian.Uint16(b)
	nbytes := (int(bits) + 7) / 8
	if len(b) < 2+nbytes {
		return nil, nil, cryptoerr.New(cryptoerr.Underflow)
	}
	n := new(big.Int).SetBytes(b[2 : 2+nbytes])
	return n, b[2+nbytes:], nil
}

func uint32Bytes(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}

// EncodeSSHv2PublicKey writes the SSHv2 authorized_keys wire form:
// string algorithm-name, then the algorithm's mpint component list.
// It reuses golang.org/x/crypto/ssh's own marshalling helpers for the
// string/mpint framing rather than reimplementing them, since that
// package already defines the exact wire format this dialect needs.
func EncodeSSHv2PublicKey(alg Algorithm, pub interface{}) ([]byte, error) {
	switch alg {
	case AlgRSA:
		rsaPub := pub.(RSAPublic)
		return ssh.Marshal(struct {
			Name string
			E    *big.Int
			N    *big.Int
		}{"ssh-rsa", rsaPub.E, rsaPub.N}), nil
	case AlgDSA:
		dlpPub := pub.(DLPPublic)
		return ssh.Marshal(struct {
			Name string
			P    *big.Int
			Q    *big.Int
			G    *big.Int
			Y    *big.Int
		}{"ssh-dss", dlpPub.P, dlpPub.Q, dlpPub.G, dlpPub.Y}), nil
	case AlgDH:
		dlpPub := pub.(DLPPublic)
		return ssh.Marshal(struct {
			Name string
			P    *big.Int
			G    *big.Int
		}{"ssh-dh", dlpPub.P, dlpPub.G}), nil
	default:
		return nil, cryptoerr.Errorf(cryptoerr.BadData, "unsupported SSHv2 algorithm %v", alg)
	}
}

// DecodeSSHv2PublicKey dispatches on the leading algorithm-name string
// and returns either an RSAPublic or a (Algorithm, DLPPublic) pair.
func DecodeSSHv2PublicKey(b []byte) (alg Algorithm, rsaKey *RSAPublic, dlpKey *DLPPublic, err error) {
	var name struct {
		Name string
		Rest []byte `ssh:"rest"`
	}
	if err := ssh.Unmarshal(b, &name); err != nil {
		return 0, nil, nil, cryptoerr.Wrap(cryptoerr.BadData, err)
	}
	switch name.Name {
	case "ssh-rsa":
		var body struct {
			Name string
			E    *big.Int
			N    *big.Int
		}
		if err := ssh.Unmarshal(b, &body); err != nil {
			return 0, nil, nil, cryptoerr.Wrap(cryptoerr.BadData, err)
		}
		return AlgRSA, &RSAPublic{N: body.N, E: body.E}, nil, nil
	case "ssh-dss":
		var body struct {
			Name       string
			P, Q, G, Y *big.Int
		}
		if err := ssh.Unmarshal(b, &body); err != nil {
			return 0, nil, nil, cryptoerr.Wrap(cryptoerr.BadData, err)
		}
		return AlgDSA, nil, &DLPPublic{P: body.P, Q: body.Q, G: body.G, Y: body.Y}, nil
	case "ssh-dh":
		var body struct {
			Name string
			P, G *big.Int
		}
		if err := ssh.Unmarshal(b, &body); err != nil {
			return 0, nil, nil, cryptoerr.Wrap(cryptoerr.BadData, err)
		}
		return AlgDH, nil, &DLPPublic{P: body.P, G: body.G}, nil
	default:
		return 0, nil, nil, cryptoerr.Errorf(cryptoerr.BadData, "unsupported SSHv2 algorithm name %q", name.Name)
	}
}

// EncodeSSHSignature writes the SSH signature transport shape: two
// fixed 20-byte big-endian blocks, each component right-aligned and
// zero-padded per spec.md section 4.5.
func EncodeSSHSignature(r, s *big.Int) []byte {
	out := make([]byte, 40)
	r.FillBytes(out[0:20])
	s.FillBytes(out[20:40])
	return out
}

// DecodeSSHSignature reads the two 20-byte blocks back. A buffer
// shorter than 40 bytes is rejected with Underflow; bytes past the
// first 40 are ignored.
func DecodeSSHSignature(b []byte) (r, s *big.Int, err error) {
	if len(b) < 40 {
		return nil, nil, cryptoerr.New(cryptoerr.Underflow)
	}
	r = new(big.Int).SetBytes(b[0:20])
	s = new(big.Int).SetBytes(b[20:40])
	return r, s, nil
}
