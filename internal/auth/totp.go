// Package auth implements elevation grants for sensitive commands.
//
// A chat elevates by sending /auth <code>, where the code is a time-based
// one-time password (RFC 6238: HMAC-SHA1, 30-second steps, 6 digits)
// derived from a shared secret the operator holds. A matching code yields
// a grant that expires after a fixed TTL; at most one grant is live per
// chat. Verification tolerates one step of clock skew in either direction
// and compares codes in constant time.
package auth

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

const (
	// TimeStep is the TOTP step size.
	TimeStep = 30 * time.Second
	// CodeDigits is the length of a generated code.
	CodeDigits = 6
	// SkewSteps is how many adjacent steps are accepted on either side.
	SkewSteps = 1
)

// DecodeSecret parses a base32 TOTP secret (case-insensitive, padding
// optional, spaces tolerated).
func DecodeSecret(s string) ([]byte, error) {
	cleaned := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	cleaned = strings.TrimRight(cleaned, "=")
	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("invalid TOTP secret: %w", err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("invalid TOTP secret: empty")
	}
	return key, nil
}

// Code computes the TOTP code for the step containing t.
func Code(secret []byte, t time.Time) string {
	return hotp(secret, uint64(t.Unix()/int64(TimeStep.Seconds())))
}

// VerifyCode checks code against the current step and SkewSteps adjacent
// steps on each side. Every candidate is compared in constant time and all
// comparisons run regardless of earlier matches, so timing reveals neither
// which window matched nor whether anything matched at all.
func VerifyCode(secret []byte, code string, now time.Time) bool {
	if len(code) != CodeDigits {
		return false
	}
	step := now.Unix() / int64(TimeStep.Seconds())

	match := 0
	for offset := -SkewSteps; offset <= SkewSteps; offset++ {
		candidate := hotp(secret, uint64(step+int64(offset)))
		match |= subtle.ConstantTimeCompare([]byte(candidate), []byte(code))
	}
	return match == 1
}

// hotp is RFC 4226 dynamic truncation over HMAC-SHA1.
func hotp(secret []byte, counter uint64) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], counter)

	mac := hmac.New(sha1.New, secret)
	mac.Write(buf[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	value := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	return fmt.Sprintf("%06d", value%1000000)
}
