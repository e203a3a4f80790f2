// Package state holds the bot's shared mutable state: feed subscriptions
// and mutes, last-seen snapshots for notification diffing, the audit ring,
// command metrics, and the suggestion caches. All access goes through
// synchronized accessors; nothing hands out references to internal maps.
//
// Subscriptions and mutes are persisted to a JSON state file so they
// survive restarts. Everything else is volatile by design.
package state

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Feed identifies a notification source.
type Feed string

const (
	FeedTorrentComplete Feed = "torrent-complete"
	FeedGameOffers      Feed = "gameoffers-digest"
	FeedHackerNews      Feed = "hackernews-digest"
)

// Store owns all shared mutable state. Construct with New, tear down by
// letting it go out of scope (persistence is write-through, there is no
// flush step).
type Store struct {
	mu sync.Mutex

	// Opt-in subscriber sets (torrent completion).
	subscribers map[Feed]map[int64]bool
	// Opt-out mute sets (digests go to every allowed chat not muted).
	muted map[Feed]map[int64]bool

	// feed → item ID → last observed item state.
	snapshots map[Feed]map[string]string
	// Feeds that have completed their seeding poll.
	primed map[Feed]bool

	audit   *auditRing
	metrics map[string]*CommandMetrics

	stateFile string // "" disables persistence
}

// New creates a Store. stateFile may be empty to keep everything in memory.
func New(auditCapacity int, stateFile string) *Store {
	s := &Store{
		subscribers: make(map[Feed]map[int64]bool),
		muted:       make(map[Feed]map[int64]bool),
		snapshots:   make(map[Feed]map[string]string),
		primed:      make(map[Feed]bool),
		audit:       newAuditRing(auditCapacity),
		metrics:     make(map[string]*CommandMetrics),
		stateFile:   stateFile,
	}
	s.loadStateFile()
	return s
}

// --- Subscriptions ---

// SetSubscription enables or disables a chat's subscription to feed and
// reports the resulting state.
func (s *Store) SetSubscription(feed Feed, chatID int64, enable bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.subscribers[feed]
	if set == nil {
		set = make(map[int64]bool)
		s.subscribers[feed] = set
	}
	if enable {
		set[chatID] = true
	} else {
		delete(set, chatID)
	}
	s.saveStateFileLocked()
	return enable
}

// ToggleSubscription flips a chat's subscription and reports the new state.
// The read and write happen under one lock acquisition so concurrent
// toggles never interleave.
func (s *Store) ToggleSubscription(feed Feed, chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.subscribers[feed]
	if set == nil {
		set = make(map[int64]bool)
		s.subscribers[feed] = set
	}
	if set[chatID] {
		delete(set, chatID)
	} else {
		set[chatID] = true
	}
	s.saveStateFileLocked()
	return set[chatID]
}

// IsSubscribed reports whether chatID is subscribed to feed.
func (s *Store) IsSubscribed(feed Feed, chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribers[feed][chatID]
}

// Subscribers returns the sorted chat IDs subscribed to feed.
func (s *Store) Subscribers(feed Feed) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.subscribers[feed])
}

// --- Mutes ---

// ToggleMute flips a chat's mute for a digest feed. Returns true if the
// feed is now muted for that chat.
func (s *Store) ToggleMute(feed Feed, chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.muted[feed]
	if set == nil {
		set = make(map[int64]bool)
		s.muted[feed] = set
	}
	if set[chatID] {
		delete(set, chatID)
	} else {
		set[chatID] = true
	}
	s.saveStateFileLocked()
	return set[chatID]
}

// IsMuted reports whether chatID muted the digest feed.
func (s *Store) IsMuted(feed Feed, chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted[feed][chatID]
}

// Recipients filters candidates down to chats that have not muted feed.
func (s *Store) Recipients(feed Feed, candidates []int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []int64
	for _, id := range candidates {
		if !s.muted[feed][id] {
			out = append(out, id)
		}
	}
	return out
}

// --- Snapshots for diffing ---

// DiffAndUpdate compares current item states against the stored snapshot
// for feed, replaces the snapshot, and returns the IDs of items that just
// transitioned into notable. The first call for a feed only seeds the
// snapshot and reports nothing. Items absent from current are dropped.
//
// The whole diff-then-update runs under the store lock, so a concurrent
// poll cycle can never observe a half-updated snapshot.
func (s *Store) DiffAndUpdate(feed Feed, current map[string]string, notable string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.snapshots[feed]
	next := make(map[string]string, len(current))
	for id, st := range current {
		next[id] = st
	}
	s.snapshots[feed] = next

	if !s.primed[feed] {
		s.primed[feed] = true
		return nil
	}

	var transitioned []string
	for id, st := range current {
		if st == notable && prev[id] != notable {
			transitioned = append(transitioned, id)
		}
	}
	sort.Strings(transitioned)
	return transitioned
}

// --- Persistence ---

// persistedState is the shape of the JSON state file. Only subscriptions
// and mutes survive restarts; see the package comment.
type persistedState struct {
	TorrentSubscribers []int64 `json:"torrentSubscribers"`
	GameOffersMuted    []int64 `json:"gameOffersMuted"`
	HackerNewsMuted    []int64 `json:"hackerNewsMuted"`
}

func (s *Store) loadStateFile() {
	if s.stateFile == "" {
		return
	}
	data, err := os.ReadFile(s.stateFile)
	if err != nil {
		return // first run
	}
	var ps persistedState
	if err := json.Unmarshal(data, &ps); err != nil {
		slog.Error("state: failed to parse state file", "path", s.stateFile, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers[FeedTorrentComplete] = toSet(ps.TorrentSubscribers)
	s.muted[FeedGameOffers] = toSet(ps.GameOffersMuted)
	s.muted[FeedHackerNews] = toSet(ps.HackerNewsMuted)
	slog.Info("state: loaded state file", "path", s.stateFile)
}

func (s *Store) saveStateFileLocked() {
	if s.stateFile == "" {
		return
	}
	ps := persistedState{
		TorrentSubscribers: sortedKeys(s.subscribers[FeedTorrentComplete]),
		GameOffersMuted:    sortedKeys(s.muted[FeedGameOffers]),
		HackerNewsMuted:    sortedKeys(s.muted[FeedHackerNews]),
	}
	data, err := json.MarshalIndent(ps, "", "  ")
	if err != nil {
		slog.Error("state: failed to marshal state file", "error", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.stateFile), 0700); err != nil {
		slog.Error("state: failed to create state dir", "error", err)
		return
	}
	if err := os.WriteFile(s.stateFile, data, 0600); err != nil {
		slog.Error("state: failed to write state file", "path", s.stateFile, "error", err)
	}
}

func toSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func sortedKeys(set map[int64]bool) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
