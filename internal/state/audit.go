package state

import (
	"time"

	"github.com/google/uuid"
)

// AuditEntry records one completed dispatch, whatever its outcome.
type AuditEntry struct {
	ID        string
	Time      time.Time
	ChatID    int64
	Command   string
	Outcome   string // gateway category string
	Latency   time.Duration
	ErrorText string // short error summary, empty on success
}

// auditRing is a fixed-capacity ring buffer: newest entries evict oldest.
type auditRing struct {
	entries []AuditEntry
	head    int // next write position
	size    int
}

func newAuditRing(capacity int) *auditRing {
	if capacity <= 0 {
		capacity = 256
	}
	return &auditRing{entries: make([]AuditEntry, capacity)}
}

func (r *auditRing) append(e AuditEntry) {
	r.entries[r.head] = e
	r.head = (r.head + 1) % len(r.entries)
	if r.size < len(r.entries) {
		r.size++
	}
}

// recent returns up to n entries, newest first.
func (r *auditRing) recent(n int) []AuditEntry {
	if n <= 0 || n > r.size {
		n = r.size
	}
	out := make([]AuditEntry, 0, n)
	for i := 1; i <= n; i++ {
		idx := (r.head - i + len(r.entries)) % len(r.entries)
		out = append(out, r.entries[idx])
	}
	return out
}

func (r *auditRing) clear() {
	r.head = 0
	r.size = 0
}

// RecordDispatch implements the gateway Recorder: one audit entry plus a
// metrics update per dispatch.
func (s *Store) RecordDispatch(chatID int64, command string, outcome string, latency time.Duration, errSummary string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audit.append(AuditEntry{
		ID:        uuid.NewString(),
		Time:      time.Now(),
		ChatID:    chatID,
		Command:   command,
		Outcome:   outcome,
		Latency:   latency,
		ErrorText: errSummary,
	})
	s.recordMetricsLocked(command, outcome, latency, errSummary)
}

// RecentAudit returns up to n audit entries, newest first.
func (s *Store) RecentAudit(n int) []AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audit.recent(n)
}

// ClearAudit empties the audit ring.
func (s *Store) ClearAudit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit.clear()
}
