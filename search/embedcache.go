// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package search

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"golang.org/x/sync/singleflight"
)

// EmbeddingCache sits in front of an Embedder and caches embeddings keyed
// by the normalized query text, so repeated semantic queries for the same
// qualitative phrasing (common across a conversation's turns) skip the
// network round trip. Entries expire after a configured TTL rather than
// growing the store unbounded. A singleflight group collapses concurrent
// cache misses for the same text into one Embedder call, since a Hybrid
// strategy's exact and semantic legs (and concurrent requests across
// sessions) can race to embed an identical normalized string.
type EmbeddingCache struct {
	db       *badger.DB
	embedder Embedder
	ttl      time.Duration // zero means entries never expire
	group    singleflight.Group
}

// NewEmbeddingCache opens an in-memory badger store to back the cache.
func NewEmbeddingCache(embedder Embedder, ttl time.Duration) (*EmbeddingCache, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("search: opening embedding cache: %w", err)
	}
	return &EmbeddingCache{db: db, embedder: embedder, ttl: ttl}, nil
}

// Close releases the underlying badger store.
func (c *EmbeddingCache) Close() error {
	return c.db.Close()
}

// Embed returns the cached embedding for text if present, else requests
// one from the wrapped Embedder and caches it before returning. Concurrent
// misses for the same text share a single in-flight Embedder call.
func (c *EmbeddingCache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)

	if vector, ok := c.lookup(key); ok {
		return vector, nil
	}

	v, err, _ := c.group.Do(string(key), func() (interface{}, error) {
		vector, err := c.embedder.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		c.store(key, vector)
		return vector, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

func cacheKey(text string) []byte {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(text))))
	return []byte(hex.EncodeToString(sum[:]))
}

func (c *EmbeddingCache) lookup(key []byte) ([]float32, bool) {
	var vector []float32
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return gob.NewDecoder(bytes.NewReader(val)).Decode(&vector)
		})
	})
	if err != nil {
		return nil, false
	}
	return vector, true
}

func (c *EmbeddingCache) store(key []byte, vector []float32) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(vector); err != nil {
		return
	}
	_ = c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, buf.Bytes())
		if c.ttl > 0 {
			entry = entry.WithTTL(c.ttl)
		}
		return txn.SetEntry(entry)
	})
}
