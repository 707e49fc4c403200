// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

// Package stream implements the portable stream abstraction the
// certificate, envelope and timestamping core reads and writes through:
// a uniform read/write/skip/seek/flush/peek-tag interface backed either
// by an in-memory buffer (with a "null" counting variant used for
// two-pass size computation) or by a platform file.
package stream

import "github.com/lowRISC/otcryptocore/pkg/cryptoerr"

// Stream is the minimal interface the encoding layer (internal/asn1io)
// and every writer in internal/certwriter, internal/cms, internal/tsp
// and internal/rtcs use to produce or consume DER. Every write that
// would exceed a bounded buffer fails with cryptoerr.Overflow; every
// read past the end fails with cryptoerr.Underflow.
type Stream interface {
	// Read fills p completely or returns cryptoerr.Underflow.
	Read(p []byte) (int, error)
	// Write appends buf, or returns cryptoerr.Overflow for a bounded
	// stream whose capacity is exhausted (a null stream never overflows).
	Write(buf []byte) (int, error)
	// Skip advances the read/write position by n bytes without copying.
	Skip(n int) error
	// Seek moves the stream to an absolute byte position.
	Seek(pos int64) error
	// Tell returns the current byte position.
	Tell() int64
	// Flush commits buffered output; a no-op for memory streams.
	Flush() error
	// PeekTag returns the next tag octet without consuming it.
	PeekTag() (byte, error)
	// Close releases any underlying resource (file handle, lock).
	Close() error
}

// Size returns the total addressable size of a stream, where known.
// Memory streams report the high-water mark of data written or
// available (for a null stream, the bytes counted so far); file streams
// their length on disk, or -1 when the file cannot be stat'ed.
type Sizer interface {
	Size() int64
}

var (
	errUnderflow = cryptoerr.New(cryptoerr.Underflow)
	errOverflow  = cryptoerr.New(cryptoerr.Overflow)
)
