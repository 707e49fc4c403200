// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package cms

import (
	"crypto/rand"
	"crypto/rsa"
	"math/big"

	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/internal/stream"
	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

var (
	bigZero = big.NewInt(0)
	bigOne  = big.NewInt(1)
)

// Envelope is the push/pop/flush state machine described by spec.md
// section 4.8. Unlike cryptlib's segment-at-a-time implementation it
// buffers the whole payload between push and flush, since DER's OCTET
// STRING segmentation and CBC's block alignment both want to see the
// final length before they commit bytes — the buffering is the one
// simplification; the state names, action-list shape and header/body
// framing it produces follow cms_env.c.
type Envelope struct {
	state       State
	usage       Usage
	contentType ContentType
	actions     ActionList

	cek    []byte
	cipher *contentCipher
	recips [][]byte // pre-encoded RecipientInfo blobs, KEYINFO order

	signerInfos [][]byte // externally built, spliced in at SIGNATURE
	nonce       []byte

	payload   []byte
	sizeKnown bool
	output    []byte
	popped    int
}

// NewEnvelope creates an envelope for the given content type and
// usage, in state NONE.
func NewEnvelope(ct ContentType, usage Usage) *Envelope {
	return &Envelope{contentType: ct, usage: usage}
}

// AddPasswordRecipient adds a keyex-password pre-action: cek (generated
// on first call) is wrapped under password and queued as a
// PasswordRecipientInfo for the KEYINFO state.
func (e *Envelope) AddPasswordRecipient(password string) error {
	if e.state != StateNone {
		return cryptoerr.New(cryptoerr.Permission)
	}
	if err := e.ensureCEK(); err != nil {
		return err
	}
	salt, wrapped, err := WrapCEKWithPassword(password, e.cek)
	if err != nil {
		return err
	}
	der, err := WritePasswordRecipientInfo(salt, wrapped)
	if err != nil {
		return err
	}
	if err := e.actions.Add(&e.actions.Pre, Action{Kind: ActionKeyexPassword, Algorithm: "pbkdf2-aes256"}); err != nil {
		return err
	}
	e.recips = append(e.recips, der)
	return nil
}

// AddRSARecipient adds a keyex-PKC pre-action identified by keyID,
// wrapping cek under pub for the KEYINFO state. Duplicate keyIDs are
// rejected unless the earlier entry was auto-added.
func (e *Envelope) AddRSARecipient(keyID []byte, pub *rsa.PublicKey) error {
	if e.state != StateNone {
		return cryptoerr.New(cryptoerr.Permission)
	}
	if err := e.ensureCEK(); err != nil {
		return err
	}
	if err := e.actions.Add(&e.actions.Pre, Action{Kind: ActionKeyexPKC, KeyID: keyID}); err != nil {
		return err
	}
	wrapped, err := WrapCEKWithRSA(pub, e.cek)
	if err != nil {
		return err
	}
	der, err := writeKeyTransRecipientInfo(keyID, wrapped)
	if err != nil {
		return err
	}
	e.recips = append(e.recips, der)
	return nil
}

func (e *Envelope) ensureCEK() error {
	if e.cek != nil {
		return nil
	}
	e.cek = make([]byte, 32)
	if _, err := rand.Read(e.cek); err != nil {
		return cryptoerr.Wrap(cryptoerr.Internal, err)
	}
	return e.actions.Add(&e.actions.Main, Action{Kind: ActionEncrypt, Algorithm: "aes256-cbc", Auto: true})
}

// AddHashAction registers a main-list hash action for a UsageSign
// envelope, matching the digest algorithm internal/cmssigner will hash
// the payload (and signed-attribute set) with.
func (e *Envelope) AddHashAction(algorithm string) error {
	if e.state != StateNone {
		return cryptoerr.New(cryptoerr.Permission)
	}
	return e.actions.Add(&e.actions.Main, Action{Kind: ActionHash, Algorithm: algorithm})
}

// AddSignAction registers a post-list sign action for a UsageSign
// envelope, satisfying ActionList.Validate's requirement that a
// signing envelope name at least one signer before the postamble runs.
func (e *Envelope) AddSignAction(algorithm string) error {
	if e.state != StateNone {
		return cryptoerr.New(cryptoerr.Permission)
	}
	return e.actions.Add(&e.actions.Post, Action{Kind: ActionSign, Algorithm: algorithm})
}

// SetSignerInfos supplies pre-built SignerInfo DER blobs, constructed
// by internal/cmssigner against this envelope's content digest, to be
// spliced into the SignedData signerInfos SET at the SIGNATURE
// transition.
func (e *Envelope) SetSignerInfos(der [][]byte) {
	e.signerInfos = der
}

// SetNonce stores nonce on the envelope. None of the envelope's
// encoders writes it into the output.
func (e *Envelope) SetNonce(nonce []byte) {
	e.nonce = nonce
}

// SetPayloadSize declares the total payload length up front. An
// envelope with a declared size emits definite-length DER whose total
// size is byte-exact predictable from the two-pass sizing; without one
// the wrappers are emitted indefinite-length (tag, 0x80, contents, EOC
// pair), the way cryptlib encodes an envelope whose DATASIZE was never
// set. Configuration only, so it is refused once the header is out.
func (e *Envelope) SetPayloadSize(n int64) error {
	if e.state != StateNone {
		return cryptoerr.New(cryptoerr.Permission)
	}
	if n < 0 {
		return cryptoerr.New(cryptoerr.BadData)
	}
	e.sizeKnown = true
	return nil
}

// PushData appends p to the buffered payload. The preamble transition
// (NONE through ENCRINFO) runs lazily on the first call.
func (e *Envelope) PushData(p []byte) (int, error) {
	if e.state == StateNone {
		if err := e.runPreamble(); err != nil {
			e.state = StateFailed
			return 0, err
		}
	}
	if e.state != StatePayload && e.state != StateEncrInfo {
		return 0, cryptoerr.New(cryptoerr.Permission)
	}
	e.state = StatePayload
	e.payload = append(e.payload, p...)
	return len(p), nil
}

func (e *Envelope) runPreamble() error {
	if err := e.actions.Validate(e.usage); err != nil {
		return err
	}
	if e.usage == UsageCrypt {
		c, err := newContentCipher(e.cek)
		if err != nil {
			return err
		}
		e.cipher = c
	}
	e.state = StateHeader
	e.state = StateKeyInfo
	e.state = StateEncrInfo
	return nil
}

// Flush finalizes the envelope: encrypts/wraps the buffered payload,
// emits the full ContentInfo DER and moves to DONE (or SIGNATURE then
// DONE when SignerInfos were supplied). After Flush, PopData drains
// the assembled bytes.
func (e *Envelope) Flush() error {
	if e.state == StateDone || e.state == StateFlushed || e.state == StateSignature {
		return cryptoerr.New(cryptoerr.Permission)
	}
	if e.state == StateNone {
		if err := e.runPreamble(); err != nil {
			e.state = StateFailed
			return err
		}
	}
	der, err := e.encode()
	if err != nil {
		e.state = StateFailed
		return err
	}
	e.output = der
	e.state = StateFlushed
	if len(e.signerInfos) > 0 {
		e.state = StateSignature
	}
	e.state = StateDone
	return nil
}

// PopData copies up to len(p) bytes of the flushed envelope into p,
// returning the count copied.
func (e *Envelope) PopData(p []byte) (int, error) {
	if e.state != StateDone {
		return 0, cryptoerr.New(cryptoerr.Permission)
	}
	n := copy(p, e.output[e.popped:])
	e.popped += n
	return n, nil
}

// Bytes returns the full flushed envelope in one call, the common case
// for callers (like internal/rtcs and internal/tsp) that don't stream.
func (e *Envelope) Bytes() ([]byte, error) {
	if e.state != StateDone {
		return nil, cryptoerr.New(cryptoerr.Permission)
	}
	return e.output, nil
}

func (e *Envelope) encode() ([]byte, error) {
	if e.sizeKnown {
		switch e.usage {
		case UsagePlainData:
			return encodeDataContentInfo(e.payload), nil
		case UsageCrypt:
			return e.encodeEnvelopedData()
		case UsageSign:
			return e.encodeSignedData()
		default:
			return nil, cryptoerr.New(cryptoerr.NotAvail)
		}
	}

	// No declared payload size: BER indefinite-length wrappers. The
	// writer is run twice, first against a null stream to size the
	// output buffer, then for real.
	var write func(stream.Stream) error
	switch e.usage {
	case UsagePlainData:
		write = func(w stream.Stream) error { return writeDataContentInfoIndefinite(w, e.payload) }
	case UsageCrypt:
		encrypted := e.cipher.sealFinal(e.payload)
		write = func(w stream.Stream) error { return e.writeEnvelopedDataIndefinite(w, encrypted) }
	case UsageSign:
		write = func(w stream.Stream) error { return e.writeSignedDataIndefinite(w) }
	default:
		return nil, cryptoerr.New(cryptoerr.NotAvail)
	}
	null := stream.MemNullOpen()
	if err := write(null); err != nil {
		return nil, err
	}
	w := stream.MemOpen(int(null.Size()))
	if err := write(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// writeDataContentInfoIndefinite is encodeDataContentInfo with the
// constructed wrappers left open-ended: SEQUENCE and [0] carry the
// 0x80 length introducer and are closed by EOC pairs; the payload
// OCTET STRING itself stays a definite primitive.
func writeDataContentInfoIndefinite(w stream.Stream, payload []byte) error {
	if err := asn1io.WriteTagHeaderIndefinite(w, asn1io.TagSequenceOf); err != nil {
		return err
	}
	if err := asn1io.WriteOID(w, asn1io.OIDCMSData); err != nil {
		return err
	}
	if err := asn1io.WriteTagHeaderIndefinite(w, asn1io.ContextTag(0, true)); err != nil {
		return err
	}
	if err := asn1io.WriteOctetString(w, payload); err != nil {
		return err
	}
	if err := asn1io.WriteEOC(w); err != nil {
		return err
	}
	return asn1io.WriteEOC(w)
}

func (e *Envelope) writeEnvelopedDataIndefinite(w stream.Stream, encrypted []byte) error {
	if err := asn1io.WriteTagHeaderIndefinite(w, asn1io.TagSequenceOf); err != nil {
		return err
	}
	if err := asn1io.WriteOID(w, asn1io.OIDCMSEnvelopedData); err != nil {
		return err
	}
	if err := asn1io.WriteTagHeaderIndefinite(w, asn1io.ContextTag(0, true)); err != nil {
		return err
	}
	if err := asn1io.WriteTagHeaderIndefinite(w, asn1io.TagSequenceOf); err != nil {
		return err
	}
	if err := asn1io.WriteInteger(w, bigZero); err != nil {
		return err
	}
	// The RecipientInfo blobs were pre-encoded definite in KEYINFO
	// order, so their SET can stay definite even inside an indefinite
	// envelope.
	recipSetBody := 0
	for _, r := range e.recips {
		recipSetBody += len(r)
	}
	if err := asn1io.WriteSetHeader(w, recipSetBody); err != nil {
		return err
	}
	for _, r := range e.recips {
		if _, err := w.Write(r); err != nil {
			return err
		}
	}
	if err := asn1io.WriteTagHeaderIndefinite(w, asn1io.TagSequenceOf); err != nil {
		return err
	}
	if err := asn1io.WriteOID(w, contentTypeOID(ContentData)); err != nil {
		return err
	}
	algoBody := asn1io.SizeOfOID(asn1io.OIDAES256CBC) + asn1io.SizeOfOctetString(e.cipher.iv)
	if err := asn1io.WriteSequenceHeader(w, algoBody); err != nil {
		return err
	}
	if err := asn1io.WriteOID(w, asn1io.OIDAES256CBC); err != nil {
		return err
	}
	if err := asn1io.WriteOctetString(w, e.cipher.iv); err != nil {
		return err
	}
	if err := asn1io.WriteTagHeader(w, asn1io.ContextTag(0, false), len(encrypted)); err != nil {
		return err
	}
	if _, err := w.Write(encrypted); err != nil {
		return err
	}
	for i := 0; i < 4; i++ { // encryptedContentInfo, EnvelopedData, [0], ContentInfo
		if err := asn1io.WriteEOC(w); err != nil {
			return err
		}
	}
	return nil
}

func (e *Envelope) writeSignedDataIndefinite(w stream.Stream) error {
	if err := asn1io.WriteTagHeaderIndefinite(w, asn1io.TagSequenceOf); err != nil {
		return err
	}
	if err := asn1io.WriteOID(w, asn1io.OIDCMSSignedData); err != nil {
		return err
	}
	if err := asn1io.WriteTagHeaderIndefinite(w, asn1io.ContextTag(0, true)); err != nil {
		return err
	}
	if err := asn1io.WriteTagHeaderIndefinite(w, asn1io.TagSequenceOf); err != nil {
		return err
	}
	if err := asn1io.WriteInteger(w, bigOne); err != nil {
		return err
	}
	if err := asn1io.WriteSetHeader(w, 0); err != nil { // digestAlgorithms
		return err
	}
	if err := asn1io.WriteTagHeaderIndefinite(w, asn1io.TagSequenceOf); err != nil { // encapContentInfo
		return err
	}
	if err := asn1io.WriteOID(w, asn1io.OIDCMSData); err != nil {
		return err
	}
	if err := asn1io.WriteTagHeaderIndefinite(w, asn1io.ContextTag(0, true)); err != nil {
		return err
	}
	if err := asn1io.WriteOctetString(w, e.payload); err != nil {
		return err
	}
	if err := asn1io.WriteEOC(w); err != nil { // [0] eContent
		return err
	}
	if err := asn1io.WriteEOC(w); err != nil { // encapContentInfo
		return err
	}
	signerInfosBody := 0
	for _, s := range e.signerInfos {
		signerInfosBody += len(s)
	}
	if err := asn1io.WriteSetHeader(w, signerInfosBody); err != nil {
		return err
	}
	for _, s := range e.signerInfos {
		if _, err := w.Write(s); err != nil {
			return err
		}
	}
	for i := 0; i < 3; i++ { // SignedData, [0], ContentInfo
		if err := asn1io.WriteEOC(w); err != nil {
			return err
		}
	}
	return nil
}

// encodeDataContentInfo wraps payload bit-for-bit in a plain
// ContentInfo{ data [0] EXPLICIT OCTET STRING }, the trivial usage
// spec.md's round-trip invariant exercises.
func encodeDataContentInfo(payload []byte) []byte {
	octetSize := asn1io.SizeOfOctetString(payload)
	contentBody := asn1io.SizeOfObject(octetSize)
	body := asn1io.SizeOfOID(asn1io.OIDCMSData) + asn1io.SizeOfObject(contentBody)

	w := stream.MemOpen(asn1io.SizeOfObject(body))
	_ = asn1io.WriteSequenceHeader(w, body)
	_ = asn1io.WriteOID(w, asn1io.OIDCMSData)
	_ = asn1io.WriteTagHeader(w, asn1io.ContextTag(0, true), contentBody)
	_ = asn1io.WriteOctetString(w, payload)
	return w.Bytes()
}

func (e *Envelope) encodeEnvelopedData() ([]byte, error) {
	encrypted := e.cipher.sealFinal(e.payload)

	recipSetBody := 0
	for _, r := range e.recips {
		recipSetBody += len(r)
	}

	algoBody := asn1io.SizeOfOID(asn1io.OIDAES256CBC) + asn1io.SizeOfOctetString(e.cipher.iv)
	eciBody := asn1io.SizeOfOID(contentTypeOID(ContentData)) + asn1io.SizeOfObject(algoBody) +
		asn1io.SizeOfObject(len(encrypted))

	sdBody := 3 /* version */ + asn1io.SizeOfObject(recipSetBody) + asn1io.SizeOfObject(eciBody)
	contentInfoBody := asn1io.SizeOfOID(asn1io.OIDCMSEnvelopedData) + asn1io.SizeOfObject(asn1io.SizeOfObject(sdBody))

	w := stream.MemOpen(asn1io.SizeOfObject(contentInfoBody))
	if err := asn1io.WriteSequenceHeader(w, contentInfoBody); err != nil {
		return nil, err
	}
	if err := asn1io.WriteOID(w, asn1io.OIDCMSEnvelopedData); err != nil {
		return nil, err
	}
	if err := asn1io.WriteTagHeader(w, asn1io.ContextTag(0, true), asn1io.SizeOfObject(sdBody)); err != nil {
		return nil, err
	}
	if err := asn1io.WriteSequenceHeader(w, sdBody); err != nil {
		return nil, err
	}
	if err := asn1io.WriteInteger(w, bigZero); err != nil {
		return nil, err
	}
	if err := asn1io.WriteSetHeader(w, recipSetBody); err != nil {
		return nil, err
	}
	for _, r := range e.recips {
		if _, err := w.Write(r); err != nil {
			return nil, err
		}
	}
	if err := asn1io.WriteSequenceHeader(w, eciBody); err != nil {
		return nil, err
	}
	if err := asn1io.WriteOID(w, contentTypeOID(ContentData)); err != nil {
		return nil, err
	}
	if err := asn1io.WriteSequenceHeader(w, algoBody); err != nil {
		return nil, err
	}
	if err := asn1io.WriteOID(w, asn1io.OIDAES256CBC); err != nil {
		return nil, err
	}
	if err := asn1io.WriteOctetString(w, e.cipher.iv); err != nil {
		return nil, err
	}
	// encryptedContent [0] IMPLICIT OCTET STRING
	if err := asn1io.WriteTagHeader(w, asn1io.ContextTag(0, false), len(encrypted)); err != nil {
		return nil, err
	}
	if _, err := w.Write(encrypted); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// encodeSignedData wraps the buffered payload and e.signerInfos in a
// SignedData ContentInfo; the SignerInfo blobs themselves (including
// their signed/unsigned attributes) are built by internal/cmssigner
// against DigestPayload.
func (e *Envelope) encodeSignedData() ([]byte, error) {
	octetSize := asn1io.SizeOfOctetString(e.payload)
	innerContentBody := asn1io.SizeOfObject(octetSize)
	eciBody := asn1io.SizeOfOID(asn1io.OIDCMSData) + asn1io.SizeOfObject(innerContentBody)

	signerInfosBody := 0
	for _, s := range e.signerInfos {
		signerInfosBody += len(s)
	}

	sdBody := 3 /* version */ + asn1io.SizeOfObject(0) /* digestAlgorithms */ +
		asn1io.SizeOfObject(eciBody) + asn1io.SizeOfObject(signerInfosBody)
	contentInfoBody := asn1io.SizeOfOID(asn1io.OIDCMSSignedData) + asn1io.SizeOfObject(asn1io.SizeOfObject(sdBody))

	w := stream.MemOpen(asn1io.SizeOfObject(contentInfoBody))
	if err := asn1io.WriteSequenceHeader(w, contentInfoBody); err != nil {
		return nil, err
	}
	if err := asn1io.WriteOID(w, asn1io.OIDCMSSignedData); err != nil {
		return nil, err
	}
	if err := asn1io.WriteTagHeader(w, asn1io.ContextTag(0, true), asn1io.SizeOfObject(sdBody)); err != nil {
		return nil, err
	}
	if err := asn1io.WriteSequenceHeader(w, sdBody); err != nil {
		return nil, err
	}
	if err := asn1io.WriteInteger(w, bigOne); err != nil {
		return nil, err
	}
	if err := asn1io.WriteSetHeader(w, 0); err != nil {
		return nil, err
	}
	if err := asn1io.WriteSequenceHeader(w, eciBody); err != nil {
		return nil, err
	}
	if err := asn1io.WriteOID(w, asn1io.OIDCMSData); err != nil {
		return nil, err
	}
	if err := asn1io.WriteTagHeader(w, asn1io.ContextTag(0, true), innerContentBody); err != nil {
		return nil, err
	}
	if err := asn1io.WriteOctetString(w, e.payload); err != nil {
		return nil, err
	}
	if err := asn1io.WriteSetHeader(w, signerInfosBody); err != nil {
		return nil, err
	}
	for _, s := range e.signerInfos {
		if _, err := w.Write(s); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

// writeKeyTransRecipientInfo encodes a CMS KeyTransRecipientInfo:
// SEQUENCE{ version(0), IssuerAndSerialNumber-or-SubjectKeyIdentifier,
// AlgorithmIdentifier(rsaEncryption), encryptedKey }. The recipient
// identifier is simplified to a bare subjectKeyIdentifier OCTET STRING
// rather than the full IssuerAndSerialNumber CHOICE, matching how
// internal/certwriter already exposes a cryptlib key-ID per key.
func writeKeyTransRecipientInfo(keyID, wrappedKey []byte) ([]byte, error) {
	algoBody := asn1io.SizeOfOID(asn1io.OIDRSAEncryption) + 2 // + NULL params
	body := 3 /* version */ + asn1io.SizeOfObject(len(keyID)) +
		asn1io.SizeOfObject(algoBody) + asn1io.SizeOfOctetString(wrappedKey)

	w := stream.MemOpen(asn1io.SizeOfObject(body))
	if err := asn1io.WriteSequenceHeader(w, body); err != nil {
		return nil, err
	}
	if err := asn1io.WriteInteger(w, bigZero); err != nil {
		return nil, err
	}
	// rid: [0] IMPLICIT SubjectKeyIdentifier
	if err := asn1io.WriteTagHeader(w, asn1io.ContextTag(0, false), len(keyID)); err != nil {
		return nil, err
	}
	if _, err := w.Write(keyID); err != nil {
		return nil, err
	}
	if err := asn1io.WriteSequenceHeader(w, algoBody); err != nil {
		return nil, err
	}
	if err := asn1io.WriteOID(w, asn1io.OIDRSAEncryption); err != nil {
		return nil, err
	}
	if err := asn1io.WriteTagHeader(w, asn1io.TagNull, 0); err != nil {
		return nil, err
	}
	if err := asn1io.WriteOctetString(w, wrappedKey); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}
