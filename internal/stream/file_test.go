// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStreamWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.p15")
	want := []byte("private key store contents")

	w, err := Open(path, true)
	if err != nil {
		t.Fatalf("Open for write: %v", err)
	}
	if _, err := w.Write(want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := Open(path, false)
	if err != nil {
		t.Fatalf("Open for read: %v", err)
	}
	defer r.Close()
	got := make([]byte, len(want))
	if _, err := r.Read(got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("round trip mismatch: got %q, want %q", got, want)
	}
}

func TestOpenRejectsSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real")
	if err := os.WriteFile(target, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if _, err := Open(link, false); err == nil {
		t.Fatal("expected Open to reject a symlink")
	}
}

func TestEraseWipesAndRemoves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "randseed.dat")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0xA5}, 4096), 0600); err != nil {
		t.Fatal(err)
	}
	if err := Erase(path); err != nil {
		t.Fatalf("Erase: %v", err)
	}
	if _, err := os.Lstat(path); !os.IsNotExist(err) {
		t.Fatalf("expected file to be unlinked, got %v", err)
	}
}

func TestClearToEOFTruncatesAtPosition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.dat")
	if err := os.WriteFile(path, []byte("keep-this-and-wipe-the-rest"), 0600); err != nil {
		t.Fatal(err)
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	fs := &FileStream{f: f, path: path, write: true}
	if err := fs.Seek(9); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if err := fs.ClearToEOF(); err != nil {
		t.Fatalf("ClearToEOF: %v", err)
	}
	if err := fs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "keep-this" {
		t.Fatalf("expected truncation after the kept prefix, got %q", got)
	}
}
