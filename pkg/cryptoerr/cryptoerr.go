// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

// Package cryptoerr defines the closed error-code enumeration shared by
// the encoding, kernel, envelope and session layers of the certificate
// core, plus the locus/type pair that names the offending attribute.
package cryptoerr

import "fmt"

// Code is one of the closed set of status codes the object kernel and
// its dependent subsystems may return.
type Code int

const (
	OK Code = iota
	BadData
	Underflow
	Overflow
	NotFound
	NotInited
	Inited
	Permission
	Timeout
	Signature
	WrongKey
	Invalid
	NotAvail
	Memory
	Open
	Write
	Read
	Signalled
	Duplicate
	Internal
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case BadData:
		return "BAD_DATA"
	case Underflow:
		return "UNDERFLOW"
	case Overflow:
		return "OVERFLOW"
	case NotFound:
		return "NOT_FOUND"
	case NotInited:
		return "NOT_INITED"
	case Inited:
		return "INITED"
	case Permission:
		return "PERMISSION"
	case Timeout:
		return "TIMEOUT"
	case Signature:
		return "SIGNATURE"
	case WrongKey:
		return "WRONG_KEY"
	case Invalid:
		return "INVALID"
	case NotAvail:
		return "NOT_AVAIL"
	case Memory:
		return "MEMORY"
	case Open:
		return "OPEN"
	case Write:
		return "WRITE"
	case Read:
		return "READ"
	case Signalled:
		return "SIGNALLED"
	case Duplicate:
		return "DUPLICATE"
	case Internal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

// ErrType further classifies why a locus failed, mirroring cryptlib's
// CRYPT_ERRTYPE_* constants.
type ErrType int

const (
	ErrTypeNone ErrType = iota
	ErrTypeAttrSize
	ErrTypeAttrValue
	ErrTypeAttrAbsent
	ErrTypeAttrPresent
	ErrTypeConstraint
	ErrTypeIssuerConstraint
)

// Error is the error type returned across package boundaries in this
// module. Locus names the attribute or field that triggered the
// failure; it is empty when the failure isn't attribute-scoped.
type Error struct {
	Code    Code
	Locus   string
	ErrType ErrType
	Err     error
}

func (e *Error) Error() string {
	if e.Locus == "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Code, e.Err)
		}
		return e.Code.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Locus, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Locus)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Code, so callers
// can do errors.Is(err, cryptoerr.New(cryptoerr.BadData)).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New builds a bare Error carrying only a status code.
func New(code Code) *Error {
	return &Error{Code: code}
}

// Wrap attaches a status code and underlying cause.
func Wrap(code Code, err error) *Error {
	return &Error{Code: code, Err: err}
}

// WrapAttr attaches a status code, an offending attribute locus, an
// error-type classifier and an underlying cause.
func WrapAttr(code Code, locus string, errType ErrType, err error) *Error {
	return &Error{Code: code, Locus: locus, ErrType: errType, Err: err}
}

// Errorf builds an Error with a formatted message wrapped as the cause.
func Errorf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Err: fmt.Errorf(format, args...)}
}
