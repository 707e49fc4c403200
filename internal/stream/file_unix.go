// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package stream

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// verifyOpenedFile lstats path again after the open and rejects the
// descriptor if its fstat disagrees on inode, device, mode or link
// count, which would indicate the path no longer names the opened file
// (a TOCTOU symlink race).
func verifyOpenedFile(path string, f *os.File) error {
	preStat, err := os.Lstat(path)
	if err != nil {
		return cryptoerr.Wrap(cryptoerr.Open, err)
	}
	postInfo, err := f.Stat()
	if err != nil {
		return cryptoerr.Wrap(cryptoerr.Open, err)
	}
	preSys, ok1 := preStat.Sys().(*syscall.Stat_t)
	postSys, ok2 := postInfo.Sys().(*syscall.Stat_t)
	if !ok1 || !ok2 {
		return cryptoerr.New(cryptoerr.NotAvail)
	}
	if preSys.Ino != postSys.Ino || preSys.Dev != postSys.Dev ||
		preSys.Mode != postSys.Mode || preSys.Nlink != postSys.Nlink {
		return cryptoerr.Errorf(cryptoerr.Permission, "lstat/fstat disagreement on %q, possible symlink race", path)
	}
	return nil
}

// lockFile takes an advisory flock, exclusive for writers and shared
// for readers. flock is used because a single close releases exactly
// the locks that descriptor held, whereas any close by the same process
// on the same file releases ALL fcntl locks held on it. A flock failure
// is returned as an Open error; there is no fcntl fallback.
func lockFile(f *os.File, write bool) (func() error, error) {
	how := unix.LOCK_SH
	if write {
		how = unix.LOCK_EX
	}
	if err := unix.Flock(int(f.Fd()), how); err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.Open, err)
	}
	return func() error {
		return unix.Flock(int(f.Fd()), unix.LOCK_UN)
	}, nil
}
