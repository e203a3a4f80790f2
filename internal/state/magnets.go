package state

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	magnetCacheSize = 200
	magnetCacheTTL  = 30 * time.Minute
)

// Magnet is a cached magnet link keyed by a short pick token, so /tadd
// confirmations can reference a result without pasting the full URI back.
type Magnet struct {
	Name string
	URI  string
}

// MagnetCache maps short tokens to magnet links with TTL + LRU eviction.
type MagnetCache struct {
	lru *expirable.LRU[string, Magnet]
}

func NewMagnetCache() *MagnetCache {
	return &MagnetCache{
		lru: expirable.NewLRU[string, Magnet](magnetCacheSize, nil, magnetCacheTTL),
	}
}

// Put stores a magnet and returns its pick token.
func (m *MagnetCache) Put(name, uri string) string {
	key := newPickToken()
	m.lru.Add(key, Magnet{Name: name, URI: uri})
	return key
}

// Get looks up a magnet by pick token.
func (m *MagnetCache) Get(key string) (Magnet, bool) {
	return m.lru.Get(key)
}

func newPickToken() string {
	b := make([]byte, 4)
	rand.Read(b)
	return hex.EncodeToString(b)
}
