// Package gateway implements the command dispatch pipeline: allow-list
// check, elevation check, rate limiting, handler execution, and audit /
// metrics recording. Every inbound command passes through Dispatch; the
// pipeline order is a contract, not an implementation detail.
package gateway

import (
	"time"
)

// Category classifies the result of a dispatch.
type Category string

const (
	// OK means the handler ran and produced a reply.
	OK Category = "ok"
	// Unauthorized means the chat is not on the allow-list.
	Unauthorized Category = "unauthorized"
	// AuthRequired means the command needs a live elevation grant.
	AuthRequired Category = "auth_required"
	// InvalidCode means an elevation attempt presented a wrong code.
	InvalidCode Category = "invalid_code"
	// RateLimited means the command came too soon after the previous one.
	RateLimited Category = "rate_limited"
	// Timeout means an external collaborator exceeded its deadline.
	Timeout Category = "timeout"
	// ExternalFailure means a collaborator returned an error.
	ExternalFailure Category = "external_failure"
	// InternalError means something unexpected broke inside the bot.
	InternalError Category = "internal_error"
)

// Outcome is what Dispatch returns to the channel layer.
type Outcome struct {
	Category Category
	// Reply is the user-visible message (HTML). For OK it is the handler's
	// output; for denials it is a short explanation. Internal and external
	// failures get a generic message so details never leak to chat.
	Reply string
	// Err holds the underlying failure for audit/debug surfaces only.
	Err error
	// RetryIn is set for RateLimited outcomes.
	RetryIn time.Duration
}

// Failed reports whether the outcome is anything but OK.
func (o Outcome) Failed() bool { return o.Category != OK }

func okOutcome(reply string) Outcome {
	return Outcome{Category: OK, Reply: reply}
}
