// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"crypto/rand"
	"io"
	"os"
	"path/filepath"

	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// eraseBlockSize is the chunk size used by ClearToEOF/Erase when
// overwriting a file with fresh random bytes. Per spec this must never
// be a constant value, since some filesystems compress repeated bytes.
const eraseBlockSize = 1024

// FileStream is a platform file backing a Stream, with advisory locking
// and the secure-deletion primitives (clear_to_eof, erase) described in
// spec.md section 4.2. The lock discipline itself (shared-for-read,
// exclusive-for-write, via POSIX flock) is implemented per-OS in
// file_unix.go / file_other.go; there is no fcntl fallback, and
// non-unix builds take no lock. This file holds the OS-independent read/write/skip/seek machinery and the open-time
// hardening checks.
type FileStream struct {
	f        *os.File
	path     string
	write    bool
	pos      int64
	unlocker func() error
}

// Open opens path for reading (write=false) or truncating-write
// (write=true), after verifying the path is a plain, regular file (not
// a symlink, device node or named pipe) and that an lstat of the path
// and an fstat of the opened descriptor, both taken after the open,
// agree on inode, device, mode and link count. This rejects a symlink
// substituted for the path between the check and the open.
func Open(path string, write bool) (*FileStream, error) {
	if err := verifyRegularFile(path); err != nil {
		return nil, err
	}

	var f *os.File
	var err error
	if write {
		// Atomic-delete-then-create: unlink any stale file first so a
		// lingering ACL or a symlink planted in its place can't be
		// inherited by the new file.
		_ = os.Remove(path)
		f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	} else {
		f, err = os.OpenFile(path, os.O_RDONLY, 0)
	}
	if err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.Open, err)
	}

	if err := verifyOpenedFile(path, f); err != nil {
		f.Close()
		return nil, err
	}

	unlock, err := lockFile(f, write)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &FileStream{f: f, path: path, write: write, unlocker: unlock}, nil
}

func (fs *FileStream) Read(p []byte) (int, error) {
	n, err := io.ReadFull(fs.f, p)
	fs.pos += int64(n)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return n, errUnderflow
		}
		return n, cryptoerr.Wrap(cryptoerr.Read, err)
	}
	return n, nil
}

func (fs *FileStream) Write(buf []byte) (int, error) {
	n, err := fs.f.Write(buf)
	fs.pos += int64(n)
	if err != nil {
		return n, cryptoerr.Wrap(cryptoerr.Write, err)
	}
	return n, nil
}

func (fs *FileStream) Skip(n int) error {
	return fs.Seek(fs.pos + int64(n))
}

func (fs *FileStream) Seek(pos int64) error {
	off, err := fs.f.Seek(pos, io.SeekStart)
	if err != nil {
		return cryptoerr.Wrap(cryptoerr.Read, err)
	}
	fs.pos = off
	return nil
}

func (fs *FileStream) Tell() int64 { return fs.pos }

func (fs *FileStream) Flush() error {
	if err := fs.f.Sync(); err != nil {
		return cryptoerr.Wrap(cryptoerr.Write, err)
	}
	return nil
}

func (fs *FileStream) PeekTag() (byte, error) {
	var b [1]byte
	n, err := fs.f.ReadAt(b[:], fs.pos)
	if n == 0 || err != nil {
		return 0, errUnderflow
	}
	return b[0], nil
}

func (fs *FileStream) Size() int64 {
	info, err := fs.f.Stat()
	if err != nil {
		return -1
	}
	return info.Size()
}

func (fs *FileStream) Close() error {
	var err error
	if fs.unlocker != nil {
		err = fs.unlocker()
	}
	if cerr := fs.f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// ClearToEOF overwrites the file from the current position to its end
// with fresh cryptographically random bytes, then truncates at the
// current position. A constant fill value is deliberately avoided
// because compressing filesystems (and some SSD controllers) would
// store a run of zero/constant bytes far more compactly than the
// original secret, defeating the wipe.
func (fs *FileStream) ClearToEOF() error {
	size := fs.Size()
	if size < 0 {
		return cryptoerr.New(cryptoerr.Write)
	}
	buf := make([]byte, eraseBlockSize)
	for pos := fs.pos; pos < size; pos += int64(len(buf)) {
		n := len(buf)
		if remaining := size - pos; remaining < int64(n) {
			n = int(remaining)
		}
		if _, err := rand.Read(buf[:n]); err != nil {
			return cryptoerr.Wrap(cryptoerr.Write, err)
		}
		if _, err := fs.f.WriteAt(buf[:n], pos); err != nil {
			return cryptoerr.Wrap(cryptoerr.Write, err)
		}
	}
	if err := fs.f.Truncate(fs.pos); err != nil {
		return cryptoerr.Wrap(cryptoerr.Write, err)
	}
	return fs.Flush()
}

// Erase wipes a file in place and unlinks it: open, overwrite every
// block with random data, truncate, then remove the directory entry.
// Used to destroy a private-key or seed file beyond simple unlink.
// The existing file must be opened in place, not via Open's
// delete-then-create path, or the original data blocks would be
// orphaned intact and only the fresh replacement wiped.
func Erase(path string) error {
	if err := verifyRegularFile(path); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return cryptoerr.Wrap(cryptoerr.Open, err)
	}
	if err := verifyOpenedFile(path, f); err != nil {
		f.Close()
		return err
	}
	unlock, err := lockFile(f, true)
	if err != nil {
		f.Close()
		return err
	}
	fs := &FileStream{f: f, path: path, write: true, unlocker: unlock}
	if err := fs.ClearToEOF(); err != nil {
		fs.Close()
		return err
	}
	if err := fs.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}

// verifyRegularFile rejects paths whose current lstat shows a symlink,
// device node, named pipe, or any other non-regular file.
func verifyRegularFile(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // creating a new file is fine
		}
		return cryptoerr.Wrap(cryptoerr.Open, err)
	}
	if !info.Mode().IsRegular() {
		return cryptoerr.Errorf(cryptoerr.Permission, "refusing to open non-regular file %q (mode %v)", path, info.Mode())
	}
	return nil
}

// EnsureDir creates dir (and parents) with owner-only permissions,
// matching the per-platform resolved store directories in spec.md
// section 6 (POSIX: $HOME/.cryptlib, etc).
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return cryptoerr.Wrap(cryptoerr.Open, err)
	}
	return nil
}

// ResolveStoreDir returns the POSIX/Unix private-key store directory,
// $HOME/.cryptlib, per the platform table in spec.md section 6. Other
// platform resolutions (Windows, WinCE, PalmOS, MVS, embedded no-FS) are
// out of scope for this host-backed implementation; see DESIGN.md.
func ResolveStoreDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", cryptoerr.Wrap(cryptoerr.NotAvail, err)
	}
	return filepath.Join(home, ".cryptlib"), nil
}
