package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	shellwords "github.com/mattn/go-shellwords"

	"github.com/nextlevelbuilder/teleops/internal/auth"
)

// GrantChecker reports whether a chat holds a live elevation grant.
type GrantChecker func(chatID int64) bool

// AllowChecker reports whether a chat is on the allow-list.
type AllowChecker func(chatID int64) bool

// Recorder receives exactly one record per dispatch, whichever pipeline
// step it stopped at.
type Recorder interface {
	RecordDispatch(chatID int64, command string, outcome string, latency time.Duration, errSummary string)
}

// Dispatcher runs the gate pipeline around command handlers.
type Dispatcher struct {
	registry *Registry
	limiter  *RateLimiter
	allowed  AllowChecker
	hasGrant GrantChecker
	recorder Recorder
	timeout  time.Duration
}

// NewDispatcher wires the pipeline. timeout bounds each handler execution;
// <= 0 means no bound.
func NewDispatcher(reg *Registry, limiter *RateLimiter, allowed AllowChecker, hasGrant GrantChecker, recorder Recorder, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		registry: reg,
		limiter:  limiter,
		allowed:  allowed,
		hasGrant: hasGrant,
		recorder: recorder,
		timeout:  timeout,
	}
}

// Registry exposes the command registry (alias resolution, help).
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Dispatch resolves name and runs the pipeline:
// allow-list → elevation → rate limit → execute → record.
// The second result is false when the name resolves to no command; nothing
// is recorded or consumed in that case.
func (d *Dispatcher) Dispatch(ctx context.Context, chatID int64, name, rawArgs string) (Outcome, bool) {
	cmd, ok := d.registry.Resolve(name)
	if !ok {
		return Outcome{}, false
	}

	start := time.Now()
	out := d.runPipeline(ctx, cmd, chatID, rawArgs)

	summary := ""
	if out.Err != nil {
		summary = out.Err.Error()
	}
	d.recorder.RecordDispatch(chatID, cmd.Name, string(out.Category), time.Since(start), summary)

	if out.Failed() {
		slog.Warn("dispatch rejected",
			"chat_id", chatID,
			"command", cmd.Name,
			"outcome", out.Category,
			"error", out.Err,
		)
	}
	return out, true
}

func (d *Dispatcher) runPipeline(ctx context.Context, cmd *Command, chatID int64, rawArgs string) Outcome {
	// 1. Identity: unknown chats are refused before anything is consumed.
	if !d.allowed(chatID) {
		return Outcome{
			Category: Unauthorized,
			Reply:    "⛔ Not authorized",
			Err:      fmt.Errorf("chat %d not on allow-list", chatID),
		}
	}

	// 2. Elevation: sensitive commands need a live grant.
	if cmd.Elevated && !d.hasGrant(chatID) {
		return Outcome{
			Category: AuthRequired,
			Reply:    "🔐 Authorization required or expired. Send /auth <code> first.",
			Err:      fmt.Errorf("no live grant for chat %d", chatID),
		}
	}

	// 3. Rate limit. The slot is only consumed on pass.
	if ok, wait := d.limiter.Allow(rateKey(chatID, cmd.Name)); !ok {
		return Outcome{
			Category: RateLimited,
			Reply:    fmt.Sprintf("⏱ Rate limit: please wait %.1fs", wait.Seconds()),
			RetryIn:  wait,
			Err:      fmt.Errorf("rate limited for %s", wait),
		}
	}

	// 4. Execute, bounded and with failures normalized.
	return d.execute(ctx, cmd, Request{
		ChatID:  chatID,
		Command: cmd.Name,
		Args:    tokenize(rawArgs),
		Raw:     strings.TrimSpace(rawArgs),
	})
}

func (d *Dispatcher) execute(ctx context.Context, cmd *Command, req Request) (out Outcome) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("handler panic", "command", cmd.Name, "panic", r)
			out = Outcome{
				Category: InternalError,
				Reply:    genericFailureReply,
				Err:      fmt.Errorf("panic in %s handler: %v", cmd.Name, r),
			}
		}
	}()

	reply, err := cmd.Handler(ctx, req)
	if err != nil {
		return normalizeHandlerError(cmd.Name, err)
	}
	return okOutcome(reply)
}

const genericFailureReply = "❌ Something went wrong. Details are in /debug."

// normalizeHandlerError maps handler failures into the gateway taxonomy so
// raw collaborator errors never reach chat.
func normalizeHandlerError(command string, err error) Outcome {
	if errors.Is(err, auth.ErrInvalidCode) {
		return Outcome{
			Category: InvalidCode,
			Reply:    "❌ Invalid code.",
			Err:      fmt.Errorf("%s: %w", command, err),
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Outcome{
			Category: Timeout,
			Reply:    "⌛ Timed out talking to the backend. Try again.",
			Err:      fmt.Errorf("%s: %w", command, err),
		}
	}
	return Outcome{
		Category: ExternalFailure,
		Reply:    genericFailureReply,
		Err:      fmt.Errorf("%s: %w", command, err),
	}
}

func rateKey(chatID int64, command string) string {
	return fmt.Sprintf("%d:%s", chatID, command)
}

// tokenize splits the raw argument string shell-style so quoted torrent
// and container names survive as single arguments.
func tokenize(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	args, err := shellwords.Parse(raw)
	if err != nil {
		return strings.Fields(raw)
	}
	return args
}
