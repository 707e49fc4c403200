// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package spmkernel

import (
	"crypto"
	"math/big"

	"github.com/miekg/pkcs11"

	"github.com/lowRISC/otcryptocore/internal/keycodec"
	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// pkcs11HashMech maps a crypto.Hash to the PKCS#11 RSA-PKCS mechanism
// used for sign/verify, the same CKM_RSA_PKCS-with-prehash idiom
// src/pk11/rsa.go's SignRSAPKCS1v15PreHashed uses.
var pkcs11HashMech = map[crypto.Hash]uint{
	crypto.SHA1:   pkcs11.CKM_SHA1_RSA_PKCS,
	crypto.SHA256: pkcs11.CKM_SHA256_RSA_PKCS,
}

// PKCS11Device is a Device backed by a hardware or software PKCS#11
// token, grounded on the provisioning appliance's src/pk11 session
// wrapper (native.go / rsa.go / gensec.go) adapted from "one session
// per SKU keyset" to the object kernel's dependent-device slot: a
// context whose dependent object is a PKCS11Device routes every
// sign/decrypt/key-generate message through the token instead of
// through process memory.
type PKCS11Device struct {
	name string
	ctx  *pkcs11.Ctx
	sess pkcs11.SessionHandle

	keys []pkcs11KeyPair
}

type pkcs11KeyPair struct {
	pub  pkcs11.ObjectHandle
	priv pkcs11.ObjectHandle
	alg  keycodec.Algorithm
}

// OpenPKCS11Device loads the PKCS#11 module at modulePath, opens a
// session on slot, logs in with pin, and returns a Device wrapping it.
// Mirrors src/pk11's module-load/OpenSession/Login sequence.
func OpenPKCS11Device(name, modulePath string, slot uint, pin string) (*PKCS11Device, error) {
	ctx := pkcs11.New(modulePath)
	if ctx == nil {
		return nil, cryptoerr.Errorf(cryptoerr.NotAvail, "failed to load PKCS#11 module %s", modulePath)
	}
	if err := ctx.Initialize(); err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.Open, err)
	}
	sess, err := ctx.OpenSession(slot, pkcs11.CKF_SERIAL_SESSION|pkcs11.CKF_RW_SESSION)
	if err != nil {
		ctx.Finalize()
		return nil, cryptoerr.Wrap(cryptoerr.Open, err)
	}
	if pin != "" {
		if err := ctx.Login(sess, pkcs11.CKU_USER, pin); err != nil {
			ctx.CloseSession(sess)
			ctx.Finalize()
			return nil, cryptoerr.Wrap(cryptoerr.Permission, err)
		}
	}
	return &PKCS11Device{name: name, ctx: ctx, sess: sess}, nil
}

// Close logs out, closes the session and unloads the module.
func (d *PKCS11Device) Close() {
	d.ctx.Logout(d.sess)
	d.ctx.CloseSession(d.sess)
	d.ctx.Finalize()
	d.ctx.Destroy()
}

func (d *PKCS11Device) Name() string { return d.name }

func (d *PKCS11Device) GenerateKey(alg keycodec.Algorithm, bits int) (KeyHandle, error) {
	if alg != keycodec.AlgRSA {
		return 0, cryptoerr.New(cryptoerr.NotAvail)
	}
	pubTpl := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_MODULUS_BITS, uint(bits)),
		pkcs11.NewAttribute(pkcs11.CKA_PUBLIC_EXPONENT, big.NewInt(65537).Bytes()),
		pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_RSA),
		pkcs11.NewAttribute(pkcs11.CKA_VERIFY, true),
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, true),
	}
	privTpl := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_RSA),
		pkcs11.NewAttribute(pkcs11.CKA_SIGN, true),
		pkcs11.NewAttribute(pkcs11.CKA_SENSITIVE, true),
		pkcs11.NewAttribute(pkcs11.CKA_EXTRACTABLE, false),
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, true),
	}
	pub, priv, err := d.ctx.GenerateKeyPair(d.sess,
		[]*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_RSA_PKCS_KEY_PAIR_GEN, nil)},
		pubTpl, privTpl)
	if err != nil {
		return 0, cryptoerr.Wrap(cryptoerr.Internal, err)
	}
	d.keys = append(d.keys, pkcs11KeyPair{pub: pub, priv: priv, alg: keycodec.AlgRSA})
	return KeyHandle(len(d.keys) - 1), nil
}

func (d *PKCS11Device) pair(h KeyHandle) (pkcs11KeyPair, error) {
	if int(h) >= len(d.keys) {
		return pkcs11KeyPair{}, cryptoerr.New(cryptoerr.NotFound)
	}
	return d.keys[h], nil
}

func (d *PKCS11Device) PublicKey(h KeyHandle) (keycodec.Algorithm, *keycodec.RSAPublic, *keycodec.DLPPublic, error) {
	kp, err := d.pair(h)
	if err != nil {
		return 0, nil, nil, err
	}
	attrs, err := d.ctx.GetAttributeValue(d.sess, kp.pub, []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_MODULUS, nil),
		pkcs11.NewAttribute(pkcs11.CKA_PUBLIC_EXPONENT, nil),
	})
	if err != nil {
		return 0, nil, nil, cryptoerr.Wrap(cryptoerr.Internal, err)
	}
	n := new(big.Int).SetBytes(attrs[0].Value)
	e := new(big.Int).SetBytes(attrs[1].Value)
	return keycodec.AlgRSA, &keycodec.RSAPublic{N: n, E: e}, nil, nil
}

func (d *PKCS11Device) Sign(h KeyHandle, hash crypto.Hash, digest []byte) ([]byte, error) {
	kp, err := d.pair(h)
	if err != nil {
		return nil, err
	}
	mech, ok := pkcs11HashMech[hash]
	if !ok {
		return nil, cryptoerr.New(cryptoerr.NotAvail)
	}
	if err := d.ctx.SignInit(d.sess, []*pkcs11.Mechanism{pkcs11.NewMechanism(mech, nil)}, kp.priv); err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.Internal, err)
	}
	sig, err := d.ctx.Sign(d.sess, digest)
	if err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.Signature, err)
	}
	return sig, nil
}

func (d *PKCS11Device) Verify(h KeyHandle, hash crypto.Hash, digest, sig []byte) error {
	kp, err := d.pair(h)
	if err != nil {
		return err
	}
	mech, ok := pkcs11HashMech[hash]
	if !ok {
		return cryptoerr.New(cryptoerr.NotAvail)
	}
	if err := d.ctx.VerifyInit(d.sess, []*pkcs11.Mechanism{pkcs11.NewMechanism(mech, nil)}, kp.pub); err != nil {
		return cryptoerr.Wrap(cryptoerr.Internal, err)
	}
	if err := d.ctx.Verify(d.sess, digest, sig); err != nil {
		return cryptoerr.Wrap(cryptoerr.Signature, err)
	}
	return nil
}

func (d *PKCS11Device) Decrypt(h KeyHandle, ciphertext []byte) ([]byte, error) {
	kp, err := d.pair(h)
	if err != nil {
		return nil, err
	}
	if err := d.ctx.DecryptInit(d.sess, []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_RSA_PKCS, nil)}, kp.priv); err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.Internal, err)
	}
	pt, err := d.ctx.Decrypt(d.sess, ciphertext)
	if err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.WrongKey, err)
	}
	return pt, nil
}

// SupportedCiphers reports the conventional ciphers a PKCS#11 token
// commonly exposes; a real deployment would query
// C_GetMechanismList/C_GetMechanismInfo, but this module targets the
// sign/verify/key-transport path, not bulk on-token symmetric crypto.
func (d *PKCS11Device) SupportedCiphers() []string {
	return []string{"3DES", "AES"}
}
