package state

import (
	"sort"
	"time"
)

// CommandMetrics aggregates dispatch outcomes per command.
type CommandMetrics struct {
	Count       int
	Success     int
	Denied      int // unauthorized + auth_required + invalid_code
	RateLimited int
	Errors      int // timeout + external + internal
	TotalTime   time.Duration
	MaxTime     time.Duration
	LastError   string
	LastRun     time.Time
}

func (s *Store) recordMetricsLocked(command, outcome string, latency time.Duration, errSummary string) {
	m := s.metrics[command]
	if m == nil {
		m = &CommandMetrics{}
		s.metrics[command] = m
	}
	m.Count++
	m.LastRun = time.Now()

	switch outcome {
	case "ok":
		m.Success++
		m.TotalTime += latency
		if latency > m.MaxTime {
			m.MaxTime = latency
		}
	case "rate_limited":
		m.RateLimited++
	case "unauthorized", "auth_required", "invalid_code":
		m.Denied++
	default:
		m.Errors++
		if errSummary != "" {
			m.LastError = errSummary
		}
	}
}

// MetricsSnapshot returns a copy of all per-command metrics keyed by
// command name.
func (s *Store) MetricsSnapshot() map[string]CommandMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]CommandMetrics, len(s.metrics))
	for name, m := range s.metrics {
		out[name] = *m
	}
	return out
}

// MetricsCommands returns the command names with recorded metrics, sorted.
func (s *Store) MetricsCommands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.metrics))
	for name := range s.metrics {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
