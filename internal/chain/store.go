// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package chain

import (
	"context"
	"fmt"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/lowRISC/otcryptocore/pkg/cryptoerr"
)

// Store caches a leaf-first chain collection keyed by the leaf
// certificate's subject key identifier, so cmd/tsaserver can skip
// re-running Sort against the same certificate set on every RTCS/TSP
// request. Grounded on src/proxy_buffer/store/etcd.go's thin KV
// wrapper, narrowed from that package's generic Connector interface to
// the one key shape this domain needs.
type Store struct {
	kv clientv3.KV
}

// NewStore wraps an already-connected etcd client's KV handle. Callers
// construct the client themselves (clientv3.New) so they control
// dial timeout and endpoint list.
func NewStore(kv clientv3.KV) *Store {
	return &Store{kv: kv}
}

func chainKey(leafSKID []byte) string {
	return fmt.Sprintf("chain/%x", leafSKID)
}

// Put stores the leaf-first DER collection (as produced by
// WriteSSLChain or WriteCertSequence) under leafSKID.
func (s *Store) Put(ctx context.Context, leafSKID []byte, collection []byte) error {
	if _, err := s.kv.Put(ctx, chainKey(leafSKID), string(collection)); err != nil {
		return cryptoerr.Wrap(cryptoerr.Internal, err)
	}
	return nil
}

// Get returns the cached collection for leafSKID, or cryptoerr.NotFound
// if nothing has been cached for it yet.
func (s *Store) Get(ctx context.Context, leafSKID []byte) ([]byte, error) {
	res, err := s.kv.Get(ctx, chainKey(leafSKID))
	if err != nil {
		return nil, cryptoerr.Wrap(cryptoerr.Internal, err)
	}
	if len(res.Kvs) == 0 {
		return nil, cryptoerr.New(cryptoerr.NotFound)
	}
	return res.Kvs[0].Value, nil
}
