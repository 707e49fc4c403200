// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

// Package attrstore implements the keyed attribute list shared by
// certificates and CMS messages: a type+subtype-keyed collection with
// insertion-order traversal, per-attribute cardinality, the critical
// flag that propagates to the DER extension header, and the handful of
// cross-attribute side effects spec.md section 4.4 calls out (setting
// the message digest replaces any prior one, setting the content type
// replaces the current OID, and a "never valid" CRL reason populates
// the invalidity date from the revocation date).
package attrstore

import (
	"math/big"
	"time"

	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// Type enumerates the closed set of certificate/CMS attribute types
// this store recognises. Only the ones with cardinality or side-effect
// rules are named individually; callers may still add/find with
// application-specific Type values outside this list.
type Type int

const (
	TypeSubjectKeyIdentifier Type = iota
	TypeAuthorityKeyIdentifier
	TypeKeyUsage
	TypeBasicConstraints
	TypeExtKeyUsage
	TypeSubjectAltName
	TypeCRLReason
	TypeInvalidityDate

	TypeCMSContentType
	TypeCMSMessageDigest
	TypeCMSSigningTime
	TypeCMSSMIMECapabilities
	TypeCMSNonce
	TypeESSCertID
)

// CRLReason mirrors the X.509 CRLReason enumeration far enough to
// recognise the "neverValid" side effect.
type CRLReason int

const (
	ReasonUnspecified CRLReason = iota
	ReasonKeyCompromise
	ReasonCACompromise
	ReasonAffiliationChanged
	ReasonSuperseded
	ReasonCessationOfOperation
	ReasonCertificateHold
	_
	ReasonRemoveFromCRL
	ReasonPrivilegeWithdrawn
	ReasonAACompromise
	ReasonNeverValid = -1
)

// Kind identifies which field of Attribute carries the payload.
type Kind int

const (
	KindInt Kind = iota
	KindTime
	KindOID
	KindBytes
)

// Attribute is one node in the store.
type Attribute struct {
	Type     Type
	SubField int // an optional sub-field selector, 0 when unused
	Critical bool

	Kind  Kind
	Int   int64
	Time  time.Time
	OID   asn1io.OID
	Bytes []byte
}

// cardinality classifies whether repeated Add calls for a Type replace
// the existing value (single-valued) or append (multi-valued).
var singleValued = map[Type]bool{
	TypeSubjectKeyIdentifier:   true,
	TypeAuthorityKeyIdentifier: true,
	TypeKeyUsage:               true,
	TypeBasicConstraints:       true,
	TypeCMSContentType:         true,
	TypeCMSMessageDigest:       true,
	TypeCMSSigningTime:         true,
	TypeCRLReason:              true,
	TypeInvalidityDate:         true,
}

// Store is an ordered, keyed collection of Attribute nodes.
type Store struct {
	nodes []*Attribute
}

// New returns an empty Store.
func New() *Store { return &Store{} }

// Add inserts attr, applying cardinality and the side effects from
// spec.md section 4.4. The (Type, SubField) key must be unique for
// single-valued types; a second Add for such a type replaces the first
// instead of erroring, matching "adding CMS_MESSAGEDIGEST replaces any
// existing digest" and "adding CMS_CONTENTTYPE replaces the current
// content OID".
func (s *Store) Add(attr Attribute) error {
	if singleValued[attr.Type] {
		if existing := s.find(attr.Type, attr.SubField); existing != nil {
			*existing = attr
			s.applySideEffects(existing)
			return nil
		}
	} else if s.find(attr.Type, attr.SubField) != nil {
		return cryptoerr.New(cryptoerr.Duplicate)
	}
	a := attr
	s.nodes = append(s.nodes, &a)
	s.applySideEffects(&a)
	return nil
}

// applySideEffects implements the cross-attribute rules named in
// spec.md section 4.4.
func (s *Store) applySideEffects(attr *Attribute) {
	if attr.Type == TypeCRLReason && attr.Int == int64(ReasonNeverValid) {
		if inv := s.find(TypeInvalidityDate, 0); inv == nil {
			// The caller populates the actual revocation time via
			// PropagateInvalidityDate once "this update" is known; here
			// we only guarantee the slot exists so pre-encode can find
			// it without a nil check.
			s.nodes = append(s.nodes, &Attribute{Type: TypeInvalidityDate, Kind: KindTime})
		}
	}
}

// PropagateInvalidityDate sets TypeInvalidityDate to revocationTime
// when a neverValid CRLReason is present and no explicit invalidity
// date was ever set by the caller.
func (s *Store) PropagateInvalidityDate(revocationTime time.Time) {
	reason := s.find(TypeCRLReason, 0)
	if reason == nil || reason.Int != int64(ReasonNeverValid) {
		return
	}
	inv := s.find(TypeInvalidityDate, 0)
	if inv != nil && inv.Time.IsZero() {
		inv.Time = revocationTime
	}
}

func (s *Store) find(t Type, subField int) *Attribute {
	for _, n := range s.nodes {
		if n.Type == t && n.SubField == subField {
			return n
		}
	}
	return nil
}

// Find returns the attribute keyed by (t, subField), or nil.
func (s *Store) Find(t Type, subField int) *Attribute {
	return s.find(t, subField)
}

// FindAll returns every attribute of type t in insertion order
// (multi-valued attributes, e.g. repeated SubjectAltName entries).
func (s *Store) FindAll(t Type) []*Attribute {
	var out []*Attribute
	for _, n := range s.nodes {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

// Len reports the number of attributes in the store.
func (s *Store) Len() int { return len(s.nodes) }

// All returns every attribute in insertion order.
func (s *Store) All() []*Attribute { return s.nodes }

// Cursor traverses the store with FIRST/NEXT/PREVIOUS/LAST semantics,
// used by internal/certwriter and internal/chain to walk certificates
// and their extensions root-to-leaf or leaf-to-root.
type Cursor struct {
	store *Store
	pos   int
}

// NewCursor returns a Cursor positioned before the first element; call
// First or Next to position it on an element.
func (s *Store) NewCursor() *Cursor { return &Cursor{store: s, pos: -1} }

// First moves the cursor to the first attribute.
func (c *Cursor) First() *Attribute {
	if len(c.store.nodes) == 0 {
		return nil
	}
	c.pos = 0
	return c.store.nodes[0]
}

// Last moves the cursor to the last attribute.
func (c *Cursor) Last() *Attribute {
	if len(c.store.nodes) == 0 {
		return nil
	}
	c.pos = len(c.store.nodes) - 1
	return c.store.nodes[c.pos]
}

// Next advances the cursor and returns the new current attribute, or
// nil past the end.
func (c *Cursor) Next() *Attribute {
	if c.pos+1 >= len(c.store.nodes) {
		c.pos = len(c.store.nodes)
		return nil
	}
	c.pos++
	return c.store.nodes[c.pos]
}

// Previous retreats the cursor and returns the new current attribute,
// or nil before the start.
func (c *Cursor) Previous() *Attribute {
	if c.pos-1 < 0 {
		c.pos = -1
		return nil
	}
	c.pos--
	return c.store.nodes[c.pos]
}

// bigIntBytes returns the big-endian magnitude bytes of n (nil for a
// nil n) without round-tripping through DER.
func bigIntBytes(n *big.Int) []byte {
	if n == nil {
		return nil
	}
	return n.Bytes()
}
