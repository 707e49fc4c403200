// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

// Package chain reorders an unordered multiset of certificates into a
// leaf-first chain, dropping anything unreachable from the leaf. The
// matching rules and two-phase leaf-find/sort algorithm are grounded
// directly on cryptlib's cert/chain.c (isSubject, isIssuer,
// buildChainInfo, findLeafNode, sortCertChain).
package chain

import (
	"github.com/lowRISC/otcryptocore/internal/attrstore"
	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// MaxChainLength bounds how many certificates a single chain operation
// will consider, mirroring cryptlib's MAX_CHAINLENGTH.
const MaxChainLength = 16

// MinKeyIDMatchBytes is the minimum key-ID length isIssuer/isSubject
// will compare; shorter key-IDs are never used as a matching fallback.
const MinKeyIDMatchBytes = 5

// Info is the per-certificate extract chain.go's matching algorithm
// operates on, equivalent to cryptlib's CHAIN_INFO.
type Info struct {
	Handle    int
	SubjectDN DNKey
	IssuerDN  DNKey
	SKID      []byte
	AKID      []byte
	Serial    []byte
}

// DNKey is a comparable stand-in for a distinguished name: the caller
// derives it from whatever DN representation it uses (e.g. the DER
// encoding, or certwriter.DN rendered to a canonical string), so this
// package stays independent of the certwriter DN type.
type DNKey string

// ComplianceLevel gates the path-kludge re-tagging step.
type ComplianceLevel int

const (
	ComplianceReduced ComplianceLevel = iota
	CompliancePKIX
	CompliancePKIXFull
)

func isIssuer(a, b Info) bool {
	if a.SubjectDN == b.IssuerDN {
		return true
	}
	if len(a.SKID) >= MinKeyIDMatchBytes && len(b.AKID) >= MinKeyIDMatchBytes {
		return bytesEqual(a.SKID, b.AKID)
	}
	return false
}

func dnMatches(a, b Info) bool {
	return a.SubjectDN == b.IssuerDN
}

func kidMatches(a, b Info) bool {
	return len(a.SKID) >= MinKeyIDMatchBytes && len(b.AKID) >= MinKeyIDMatchBytes && bytesEqual(a.SKID, b.AKID)
}

func isSubject(a, b Info, strict bool) bool {
	if strict {
		return dnMatches(a, b) && kidMatches(a, b)
	}
	return dnMatches(a, b) || kidMatches(a, b)
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

// FindLeaf walks certs from index 0, repeatedly advancing to any
// still-unused certificate whose issuer matches the current subject
// under the lax rule. The index last advanced to is the leaf; certs
// never visited twice even in the presence of PKIX path-kludge
// self-signed certificates.
func FindLeaf(certs []Info) int {
	if len(certs) == 0 {
		return -1
	}
	used := make([]bool, len(certs))
	current := 0
	used[0] = true
	leaf := 0
	for {
		advanced := false
		for i, c := range certs {
			if used[i] {
				continue
			}
			if isIssuer(certs[current], c) {
				current = i
				used[i] = true
				leaf = i
				advanced = true
				break
			}
		}
		if !advanced {
			break
		}
	}
	return leaf
}

// FindLeafByIssuerAndSerial walks certs for an exact (issuerDN,serial)
// match, the alternative leaf lookup spec.md section 4.7 names.
func FindLeafByIssuerAndSerial(certs []Info, issuer DNKey, serial []byte) int {
	for i, c := range certs {
		if c.IssuerDN == issuer && bytesEqual(c.Serial, serial) {
			return i
		}
	}
	return -1
}

// FindLeafBySubjectKeyID walks certs for an exact subjectKeyIdentifier
// match.
func FindLeafBySubjectKeyID(certs []Info, skid []byte) int {
	for i, c := range certs {
		if bytesEqual(c.SKID, skid) {
			return i
		}
	}
	return -1
}

// Result is the outcome of Sort: the ordered chain (leaf first, each
// entry the original index into the input slice), the indices dropped
// as unreachable, and whether any middle cert was path-kludge
// re-tagged.
type Result struct {
	Order       []int
	Dropped     []int
	PathKludged []int
}

// Sort runs the leaf-find-then-order algorithm from spec.md section
// 4.7. useStrictChaining selects the initial match level; a strict
// scan that finds nothing drops to lax before giving up on that step.
// When level is CompliancePKIXFull, any self-signed-looking middle
// cert (not the root) is path-kludge re-tagged rather than left to
// terminate the chain early.
func Sort(certs []Info, useStrictChaining bool, level ComplianceLevel) (Result, error) {
	if len(certs) > MaxChainLength {
		return Result{}, cryptoerr.New(cryptoerr.Overflow)
	}
	leafIdx := FindLeaf(certs)
	if leafIdx < 0 {
		return Result{}, cryptoerr.New(cryptoerr.NotFound)
	}

	used := make([]bool, len(certs))
	used[leafIdx] = true
	order := []int{leafIdx}
	currentIssuerInfo := certs[leafIdx]

	scan := func(match func(a, b Info) bool) int {
		for i, c := range certs {
			if used[i] {
				continue
			}
			if match(c, currentIssuerInfo) {
				return i
			}
		}
		return -1
	}

	for {
		matched := -1
		if useStrictChaining {
			matched = scan(func(a, b Info) bool { return isSubject(a, b, true) })
		}
		if matched < 0 {
			// Lax level, key-ID first: a rolled-over CA leaves two certs
			// with the same subject DN in circulation, and only the
			// key-ID picks the one that actually issued the child.
			matched = scan(kidMatches)
		}
		if matched < 0 {
			matched = scan(dnMatches)
		}
		if matched < 0 {
			break
		}
		used[matched] = true
		order = append(order, matched)
		currentIssuerInfo = certs[matched]
	}

	var dropped []int
	for i := range certs {
		if !used[i] {
			dropped = append(dropped, i)
		}
	}

	var kludged []int
	if level >= CompliancePKIXFull {
		kludged = pathKludgeRetag(certs, order)
	}

	return Result{Order: order, Dropped: dropped, PathKludged: kludged}, nil
}

// pathKludgeRetag walks the ordered chain from leaf to root-1 and
// flags any middle certificate whose subject equals its own issuer
// (a self-signed-looking cross-certificate) as a path-kludge cert
// rather than letting the chain terminate there, per cryptlib's
// buildCertChain PKIX_FULL handling. The root (last entry) is exempt:
// a genuinely self-signed root is expected to look this way.
func pathKludgeRetag(certs []Info, order []int) []int {
	var kludged []int
	for i := 0; i < len(order)-1; i++ {
		c := certs[order[i]]
		if c.SubjectDN == c.IssuerDN {
			kludged = append(kludged, order[i])
		}
	}
	return kludged
}

// ToInfo builds an Info slice from attribute stores keyed by a DN
// rendering function, for callers that hold certificates as
// (DN, attrstore.Store) pairs rather than Info directly.
func ToInfo(handles []int, subjectDNs, issuerDNs []DNKey, attrs []*attrstore.Store, serials [][]byte) []Info {
	out := make([]Info, len(handles))
	for i := range handles {
		info := Info{Handle: handles[i], SubjectDN: subjectDNs[i], IssuerDN: issuerDNs[i], Serial: serials[i]}
		if a := attrs[i]; a != nil {
			if skid := a.Find(attrstore.TypeSubjectKeyIdentifier, 0); skid != nil {
				info.SKID = skid.Bytes
			}
			if akid := a.Find(attrstore.TypeAuthorityKeyIdentifier, 0); akid != nil {
				info.AKID = akid.Bytes
			}
		}
		out[i] = info
	}
	return out
}
