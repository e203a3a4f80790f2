package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"

	"github.com/nextlevelbuilder/teleops/internal/bus"
	"github.com/nextlevelbuilder/teleops/internal/state"
)

// DigestFetcher builds the digest content (HTML) for one trigger.
type DigestFetcher func(ctx context.Context) (string, error)

// DigestJob is one fixed-time digest: a feed, a 5-field cron expression
// evaluated in the scheduler's zone, and a content fetcher.
type DigestJob struct {
	Feed  state.Feed
	Expr  string
	Fetch DigestFetcher
}

// AudienceFunc returns the candidate chats for digests (the allow-list).
// Resolved per trigger so config hot reload takes effect.
type AudienceFunc func() []int64

// DigestScheduler fires each job at its cron instants. Chats that muted a
// feed are skipped; a failure delivering to one chat never blocks the
// rest (delivery is decoupled through the bus).
type DigestScheduler struct {
	loc      *time.Location
	timeout  time.Duration
	jobs     []DigestJob
	store    *state.Store
	bus      *bus.Bus
	audience AudienceFunc
}

// NewDigestScheduler creates a scheduler for the given jobs.
func NewDigestScheduler(loc *time.Location, timeout time.Duration, jobs []DigestJob, store *state.Store, b *bus.Bus, audience AudienceFunc) *DigestScheduler {
	return &DigestScheduler{
		loc:      loc,
		timeout:  timeout,
		jobs:     jobs,
		store:    store,
		bus:      b,
		audience: audience,
	}
}

// Run starts one supervised goroutine per job and blocks until ctx is
// cancelled.
func (d *DigestScheduler) Run(ctx context.Context) {
	for _, job := range d.jobs {
		go d.runJob(ctx, job)
	}
	<-ctx.Done()
}

func (d *DigestScheduler) runJob(ctx context.Context, job DigestJob) {
	slog.Info("digest trigger scheduled", "feed", job.Feed, "expr", job.Expr, "tz", d.loc.String())

	for {
		// Recompute from the wall clock every iteration so drift and DST
		// shifts never accumulate.
		next, err := NextTrigger(job.Expr, time.Now().In(d.loc))
		if err != nil {
			slog.Error("digest trigger has invalid schedule, giving up", "feed", job.Feed, "expr", job.Expr, "error", err)
			return
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			d.fire(ctx, job)
		}
	}
}

// fire runs one digest trigger. Contained like a poll cycle: any failure
// is logged and the job reschedules.
func (d *DigestScheduler) fire(ctx context.Context, job DigestJob) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("digest cycle panic", "feed", job.Feed, "panic", r)
		}
	}()

	recipients := d.store.Recipients(job.Feed, d.audience())
	if len(recipients) == 0 {
		slog.Debug("digest skipped: everyone muted", "feed", job.Feed)
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	content, err := job.Fetch(fetchCtx)
	if err != nil {
		slog.Warn("digest fetch failed, skipping this trigger", "feed", job.Feed, "error", err)
		return
	}
	if content == "" {
		slog.Debug("digest empty, nothing to deliver", "feed", job.Feed)
		return
	}

	for _, chatID := range recipients {
		d.bus.Publish(bus.Notification{
			Feed:    string(job.Feed),
			ChatID:  chatID,
			Content: content,
		})
	}
	slog.Info("digest delivered", "feed", job.Feed, "chats", len(recipients))
}

// NextTrigger computes the next cron instant strictly after now, in now's
// location. "20:00 today" already past yields 20:00 tomorrow.
func NextTrigger(expr string, now time.Time) (time.Time, error) {
	next, err := gronx.NextTickAfter(expr, now, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("compute next trigger for %q: %w", expr, err)
	}
	return next, nil
}
