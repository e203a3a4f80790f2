package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nextlevelbuilder/teleops/internal/auth"
)

type recordedDispatch struct {
	chatID  int64
	command string
	outcome string
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []recordedDispatch
}

func (f *fakeRecorder) RecordDispatch(chatID int64, command string, outcome string, latency time.Duration, errSummary string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, recordedDispatch{chatID, command, outcome})
}

func (f *fakeRecorder) last(t *testing.T) recordedDispatch {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.records) == 0 {
		t.Fatal("nothing recorded")
	}
	return f.records[len(f.records)-1]
}

type testEnv struct {
	dispatcher *Dispatcher
	recorder   *fakeRecorder
	grants     map[int64]bool
}

func newTestEnv(t *testing.T, window time.Duration) *testEnv {
	t.Helper()
	reg := NewRegistry()
	reg.MustRegister(&Command{
		Name: "echo", Group: "Test",
		Handler: func(ctx context.Context, req Request) (string, error) {
			return "echo: " + strings.Join(req.Args, ","), nil
		},
	})
	reg.MustRegister(&Command{
		Name: "tdelete", Group: "Test", Elevated: true,
		Handler: func(ctx context.Context, req Request) (string, error) {
			return "deleted", nil
		},
	})
	reg.MustRegister(&Command{
		Name: "broken", Group: "Test",
		Handler: func(ctx context.Context, req Request) (string, error) {
			return "", errors.New("backend exploded")
		},
	})
	reg.MustRegister(&Command{
		Name: "slow", Group: "Test",
		Handler: func(ctx context.Context, req Request) (string, error) {
			return "", fmt.Errorf("fetch: %w", context.DeadlineExceeded)
		},
	})
	reg.MustRegister(&Command{
		Name: "panicky", Group: "Test",
		Handler: func(ctx context.Context, req Request) (string, error) {
			panic("boom")
		},
	})
	reg.MustRegister(&Command{
		Name: "unlock", Group: "Test",
		Handler: func(ctx context.Context, req Request) (string, error) {
			return "", fmt.Errorf("verify code: %w", auth.ErrInvalidCode)
		},
	})

	env := &testEnv{recorder: &fakeRecorder{}, grants: make(map[int64]bool)}
	limiter := NewRateLimiter(window)
	t.Cleanup(limiter.Stop)

	env.dispatcher = NewDispatcher(
		reg,
		limiter,
		func(chatID int64) bool { return chatID == 100 || chatID == 200 },
		func(chatID int64) bool { return env.grants[chatID] },
		env.recorder,
		time.Second,
	)
	return env
}

func TestDispatchUnknownCommand(t *testing.T) {
	env := newTestEnv(t, 0)

	_, known := env.dispatcher.Dispatch(context.Background(), 100, "frobnicate", "")
	if known {
		t.Fatal("unknown command reported as known")
	}
	if len(env.recorder.records) != 0 {
		t.Error("unknown command was recorded")
	}
}

func TestDispatchUnauthorized(t *testing.T) {
	env := newTestEnv(t, 0)

	out, known := env.dispatcher.Dispatch(context.Background(), 999, "echo", "")
	if !known {
		t.Fatal("registered command reported unknown")
	}
	if out.Category != Unauthorized {
		t.Errorf("category = %q, want %q", out.Category, Unauthorized)
	}
	if got := env.recorder.last(t); got.outcome != string(Unauthorized) {
		t.Errorf("recorded outcome = %q, want %q", got.outcome, Unauthorized)
	}
}

func TestDispatchElevationRequired(t *testing.T) {
	env := newTestEnv(t, 0)

	out, _ := env.dispatcher.Dispatch(context.Background(), 100, "tdelete", "old-show")
	if out.Category != AuthRequired {
		t.Fatalf("category = %q, want %q", out.Category, AuthRequired)
	}
	if !strings.Contains(out.Reply, "/auth") {
		t.Errorf("reply %q does not point at /auth", out.Reply)
	}

	env.grants[100] = true
	out, _ = env.dispatcher.Dispatch(context.Background(), 100, "tdelete", "old-show")
	if out.Category != OK {
		t.Errorf("category after grant = %q, want %q", out.Category, OK)
	}
}

func TestDispatchRateLimit(t *testing.T) {
	env := newTestEnv(t, time.Hour)

	if out, _ := env.dispatcher.Dispatch(context.Background(), 100, "echo", ""); out.Category != OK {
		t.Fatalf("first call: category = %q", out.Category)
	}
	out, _ := env.dispatcher.Dispatch(context.Background(), 100, "echo", "")
	if out.Category != RateLimited {
		t.Fatalf("second call: category = %q, want %q", out.Category, RateLimited)
	}
	if out.RetryIn <= 0 {
		t.Error("RetryIn not populated on rate limit")
	}

	// Other chats are unaffected.
	if out, _ := env.dispatcher.Dispatch(context.Background(), 200, "echo", ""); out.Category != OK {
		t.Errorf("other chat: category = %q, want %q", out.Category, OK)
	}
}

func TestDispatchHandlerFailures(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()

	out, _ := env.dispatcher.Dispatch(ctx, 100, "broken", "")
	if out.Category != ExternalFailure {
		t.Errorf("broken: category = %q, want %q", out.Category, ExternalFailure)
	}
	if strings.Contains(out.Reply, "exploded") {
		t.Error("raw error text leaked into the chat reply")
	}

	out, _ = env.dispatcher.Dispatch(ctx, 100, "slow", "")
	if out.Category != Timeout {
		t.Errorf("slow: category = %q, want %q", out.Category, Timeout)
	}

	out, _ = env.dispatcher.Dispatch(ctx, 100, "panicky", "")
	if out.Category != InternalError {
		t.Errorf("panicky: category = %q, want %q", out.Category, InternalError)
	}
}

// A wrong elevation code is a distinct failure, not a successful dispatch:
// the audit trail is where brute-force attempts must be visible.
func TestDispatchInvalidCode(t *testing.T) {
	env := newTestEnv(t, 0)

	out, _ := env.dispatcher.Dispatch(context.Background(), 100, "unlock", "000000")
	if out.Category != InvalidCode {
		t.Errorf("category = %q, want %q", out.Category, InvalidCode)
	}
	if out.Reply != "❌ Invalid code." {
		t.Errorf("reply = %q", out.Reply)
	}
	if !out.Failed() {
		t.Error("invalid code outcome reported as not failed")
	}
	if got := env.recorder.last(t); got.outcome != string(InvalidCode) {
		t.Errorf("recorded outcome = %q, want %q", got.outcome, InvalidCode)
	}
}

func TestDispatchArgTokenizing(t *testing.T) {
	env := newTestEnv(t, 0)

	out, _ := env.dispatcher.Dispatch(context.Background(), 100, "echo", `one "two three" four`)
	if want := "echo: one,two three,four"; out.Reply != want {
		t.Errorf("reply = %q, want %q", out.Reply, want)
	}
}

// Full pipeline scenario: a sensitive command is refused, authorized, run,
// and then throttled, with every step recorded.
func TestDispatchElevatedScenario(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	ctx := context.Background()

	out, _ := env.dispatcher.Dispatch(ctx, 100, "tdelete", "old-show")
	if out.Category != AuthRequired {
		t.Fatalf("step 1: category = %q, want %q", out.Category, AuthRequired)
	}

	env.grants[100] = true

	out, _ = env.dispatcher.Dispatch(ctx, 100, "tdelete", "old-show")
	if out.Category != OK || out.Reply != "deleted" {
		t.Fatalf("step 2: got (%q, %q)", out.Category, out.Reply)
	}

	out, _ = env.dispatcher.Dispatch(ctx, 100, "tdelete", "old-show")
	if out.Category != RateLimited {
		t.Fatalf("step 3: category = %q, want %q", out.Category, RateLimited)
	}

	want := []string{string(AuthRequired), string(OK), string(RateLimited)}
	if len(env.recorder.records) != len(want) {
		t.Fatalf("recorded %d dispatches, want %d", len(env.recorder.records), len(want))
	}
	for i, rec := range env.recorder.records {
		if rec.outcome != want[i] {
			t.Errorf("record %d: outcome = %q, want %q", i, rec.outcome, want[i])
		}
	}
}
