// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

// Package cms implements the envelope engine: a state machine that
// wraps payload bytes in a CMS ContentInfo (Data, EnvelopedData,
// EncryptedData or a SignedData whose SignerInfo set is supplied by
// internal/cmssigner), pushing bytes in and popping encoded bytes out
// the way cryptlib's envelope object does, except that the payload is
// buffered whole until Flush (see Envelope). Grounded on
// original_source/cryptlib/envelope/cms_env.c.
package cms

import (
	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// State is the envelope's position in cms_env.c's preamble/payload/
// postamble pipeline.
type State int

const (
	StateNone State = iota
	StateHeader
	StateKeyInfo
	StateEncrInfo
	StatePayload
	StateFlushed
	StateSignature
	StateDone
	StateFailed
)

// ContentType selects the outer CMS wrapper and, indirectly, the
// action-list shape the preamble transition will require.
type ContentType int

const (
	ContentData ContentType = iota
	ContentSignedData
	ContentEnvelopedData
	ContentDigestedData
	ContentEncryptedData
	ContentCompressedData
)

func contentTypeOID(ct ContentType) asn1io.OID {
	switch ct {
	case ContentSignedData:
		return asn1io.OIDCMSSignedData
	case ContentEnvelopedData:
		return asn1io.OIDCMSEnvelopedData
	case ContentDigestedData:
		return asn1io.OIDCMSDigestedData
	case ContentEncryptedData:
		return asn1io.OIDCMSEncryptedData
	case ContentCompressedData:
		return asn1io.OIDCMSCompressedData
	default:
		return asn1io.OIDCMSData
	}
}

// Usage constrains which action kinds may appear in the pre/main/post
// lists, per spec.md section 4.8's consistency table.
type Usage int

const (
	UsagePlainData Usage = iota
	UsageCrypt
	UsageSign
	UsageDeenvelope
)

// Action is one entry of the envelope's pre/main/post action lists.
type ActionKind int

const (
	ActionKeyexPKC ActionKind = iota
	ActionKeyexPassword
	ActionEncrypt
	ActionMAC
	ActionHash
	ActionSign
)

// Action carries enough of a cryptlib "ACTION_LIST" entry to drive the
// preamble and payload phases: its kind, an identifying key (key ID for
// PKC key exchange, algorithm name for hash/MAC/encrypt), and whether
// it was synthesized automatically (so a later duplicate add silently
// no-ops rather than erroring).
type Action struct {
	Kind      ActionKind
	KeyID     []byte
	Algorithm string
	Auto      bool
}

// ActionList holds the pre/main/post actions accumulated before the
// preamble transition, along with consistency checking.
type ActionList struct {
	Pre  []Action
	Main []Action
	Post []Action
}

// Add appends act, silently accepting a duplicate (same KeyID for
// keyex-PKC, same Algorithm otherwise) when either the existing or the
// new entry was auto-added, and erroring otherwise.
func (l *ActionList) Add(list *[]Action, act Action) error {
	for _, existing := range *list {
		if !actionsMatch(existing, act) {
			continue
		}
		if existing.Auto || act.Auto {
			return nil
		}
		return cryptoerr.New(cryptoerr.BadData)
	}
	*list = append(*list, act)
	if act.Kind == ActionKeyexPKC {
		l.sortKeyexPre()
	}
	return nil
}

func actionsMatch(a, b Action) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == ActionKeyexPKC {
		return bytesEqual(a.KeyID, b.KeyID)
	}
	return a.Algorithm == b.Algorithm
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// sortKeyexPre stable-sorts the pre-action list so every keyex-PKC
// entry precedes every keyex-password entry, per spec.md section 4.8.
func (l *ActionList) sortKeyexPre() {
	pkc := make([]Action, 0, len(l.Pre))
	pwd := make([]Action, 0, len(l.Pre))
	for _, a := range l.Pre {
		if a.Kind == ActionKeyexPKC {
			pkc = append(pkc, a)
		} else {
			pwd = append(pwd, a)
		}
	}
	l.Pre = append(pkc, pwd...)
}

// Validate enforces the pre/main/post shape the preamble transition
// requires for usage, per spec.md section 4.8's table.
func (l *ActionList) Validate(usage Usage) error {
	switch usage {
	case UsageCrypt:
		if len(l.Pre) == 0 {
			return cryptoerr.New(cryptoerr.BadData)
		}
		if len(l.Main) != 1 || (l.Main[0].Kind != ActionEncrypt && l.Main[0].Kind != ActionMAC) {
			return cryptoerr.New(cryptoerr.BadData)
		}
		if len(l.Post) != 0 {
			return cryptoerr.New(cryptoerr.BadData)
		}
	case UsageSign:
		if len(l.Pre) != 0 {
			return cryptoerr.New(cryptoerr.BadData)
		}
		for _, a := range l.Main {
			if a.Kind != ActionHash {
				return cryptoerr.New(cryptoerr.BadData)
			}
		}
		if len(l.Main) == 0 || len(l.Post) == 0 {
			return cryptoerr.New(cryptoerr.BadData)
		}
		for _, a := range l.Post {
			if a.Kind != ActionSign {
				return cryptoerr.New(cryptoerr.BadData)
			}
		}
	case UsageDeenvelope:
		if len(l.Pre) != 0 || len(l.Post) != 0 {
			return cryptoerr.New(cryptoerr.BadData)
		}
	case UsagePlainData:
		if len(l.Pre) != 0 || len(l.Main) != 0 || len(l.Post) != 0 {
			return cryptoerr.New(cryptoerr.BadData)
		}
	}
	return nil
}
