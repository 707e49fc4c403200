// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

// Package sqlstore persists PKI user records (spec.md section 4.6's
// PKIUser object: a user ID plus its 3DES-wrapped one-time
// authenticator) to a local SQLite database, for a CA operator that
// wants PKI users to survive a cmd/certtool or cmd/tsaserver restart
// instead of living only in an attrstore.Store in memory. Grounded on
// src/proxy_buffer/store/filedb.go's gorm+sqlite connector: the same
// PRAGMA tuning, AutoMigrate and write-mutex discipline, retargeted
// from that package's opaque device-provisioning blob to a named
// PKI-user schema.
package sqlstore

import (
	"context"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// userSchema is the on-disk row for one PKI user.
type userSchema struct {
	UserID        string `gorm:"primarykey"`
	EncAuthentic  []byte
	Revoked       bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Store is a gorm+sqlite backed PKI user registry.
type Store struct {
	db *gorm.DB
	mu sync.Mutex
}

// Open opens (creating if absent) the sqlite database at path, tuned
// the same way filedb.go tunes its device database: WAL journaling, a
// 5-second busy timeout and NORMAL synchronous mode, trading a small
// durability window for write throughput under concurrent
// certtool/tsaserver access.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.Internal, err)
	}
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA busy_timeout = 5000;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	if err := db.AutoMigrate(&userSchema{}); err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.Internal, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return cryptoerr.Wrap(cryptoerr.Internal, err)
	}
	return sqlDB.Close()
}

// Insert adds a new PKI user row; encAuthenticator is the output of
// certwriter.EncryptPKIUserAuthenticator. A duplicate userID is
// rejected rather than silently overwritten.
func (s *Store) Insert(ctx context.Context, userID string, encAuthenticator []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := userSchema{UserID: userID, EncAuthentic: encAuthenticator}
	if r := s.db.WithContext(ctx).Create(&row); r.Error != nil {
		return cryptoerr.Wrap(cryptoerr.Duplicate, r.Error)
	}
	return nil
}

// Get returns the stored encrypted authenticator for userID.
func (s *Store) Get(ctx context.Context, userID string) ([]byte, error) {
	var row userSchema
	r := s.db.WithContext(ctx).First(&row, "user_id = ?", userID)
	if r.Error != nil {
		return nil, cryptoerr.Wrap(cryptoerr.NotFound, r.Error)
	}
	return row.EncAuthentic, nil
}

// Revoke marks userID's record as revoked without deleting it, the way
// a revoked certificate stays in the CA's records after its serial
// number is published on a CRL.
func (s *Store) Revoke(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.db.WithContext(ctx).Model(&userSchema{}).Where("user_id = ?", userID).Update("revoked", true)
	if r.Error != nil {
		return cryptoerr.Wrap(cryptoerr.Internal, r.Error)
	}
	if r.RowsAffected == 0 {
		return cryptoerr.New(cryptoerr.NotFound)
	}
	return nil
}

// IsRevoked reports whether userID has been revoked.
func (s *Store) IsRevoked(ctx context.Context, userID string) (bool, error) {
	var row userSchema
	r := s.db.WithContext(ctx).First(&row, "user_id = ?", userID)
	if r.Error != nil {
		return false, cryptoerr.Wrap(cryptoerr.NotFound, r.Error)
	}
	return row.Revoked, nil
}
