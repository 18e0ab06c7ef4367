package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/ohjayaxel/syncengine/core"
)

// Transient statuses worth retrying. 409 is included because some commerce
// APIs surface contention on concurrent bulk reads as a conflict.
var retryableStatuses = map[int]struct{}{
	http.StatusRequestTimeout:      {},
	http.StatusConflict:            {},
	http.StatusTooEarly:            {},
	http.StatusTooManyRequests:     {},
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
}

// RetryPolicy decides whether a provider response is worth retrying and how
// long to wait before the next attempt. A Retry-After hint always wins over
// the computed backoff.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Now         func() time.Time
}

func NewRetryPolicy(cfg core.RetryConfig) *RetryPolicy {
	policy := &RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
		Now:         func() time.Time { return time.Now().UTC() },
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 4
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = 500 * time.Millisecond
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 30 * time.Second
	}
	return policy
}

// Retryable reports whether the status code is transient. Everything else,
// including 401 and 403, fails the attempt immediately.
func (p *RetryPolicy) Retryable(statusCode int) bool {
	_, ok := retryableStatuses[statusCode]
	return ok
}

// Delay returns the wait before retry attempt+1. attempt is zero-based: the
// delay after the first failed call is BaseDelay.
func (p *RetryPolicy) Delay(attempt int, res core.TransportResponse) time.Duration {
	if hint, ok := p.retryAfterHint(res.Headers); ok {
		if hint > p.maxDelay() {
			return p.maxDelay()
		}
		return hint
	}
	return p.backoff(attempt)
}

func (p *RetryPolicy) backoff(attempt int) time.Duration {
	base := p.baseDelay()
	maximum := p.maxDelay()
	if attempt <= 0 {
		return base
	}
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= maximum || delay <= 0 {
			return maximum
		}
	}
	return delay
}

func (p *RetryPolicy) retryAfterHint(headers map[string]string) (time.Duration, bool) {
	raw := headerValue(headers, "retry-after")
	if raw == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds <= 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if retryAt, err := httpDate(raw); err == nil {
		now := p.now()
		if retryAt.After(now) {
			return retryAt.Sub(now), true
		}
	}
	return 0, false
}

func (p *RetryPolicy) maxAttempts() int {
	if p != nil && p.MaxAttempts > 0 {
		return p.MaxAttempts
	}
	return 4
}

func (p *RetryPolicy) baseDelay() time.Duration {
	if p != nil && p.BaseDelay > 0 {
		return p.BaseDelay
	}
	return 500 * time.Millisecond
}

func (p *RetryPolicy) maxDelay() time.Duration {
	if p != nil && p.MaxDelay > 0 {
		return p.MaxDelay
	}
	return 30 * time.Second
}

func (p *RetryPolicy) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

// Attempts returns the total number of calls the policy allows.
func (p *RetryPolicy) Attempts() int {
	return p.maxAttempts()
}

// RetryExhaustedError marks a request that stayed transiently broken through
// every allowed attempt.
type RetryExhaustedError struct {
	Operation  string
	Attempts   int
	LastStatus int
	Cause      error
}

func (e RetryExhaustedError) Error() string {
	return fmt.Sprintf(
		"ratelimit: %s failed after %d attempts (last status %d): %v",
		strings.TrimSpace(e.Operation), e.Attempts, e.LastStatus, e.Cause,
	)
}

func (e RetryExhaustedError) Unwrap() error {
	return e.Cause
}

// ToSyncError maps exhaustion to the transport error envelope: rate-limit
// responses keep the 429 category, everything else reads as provider outage.
func (e RetryExhaustedError) ToSyncError() *goerrors.Error {
	metadata := map[string]any{
		"attempts":    e.Attempts,
		"last_status": e.LastStatus,
	}
	if e.LastStatus == http.StatusTooManyRequests {
		return goerrors.New(e.Error(), goerrors.CategoryRateLimit).
			WithCode(http.StatusTooManyRequests).
			WithTextCode(core.SyncErrorRateLimited).
			WithMetadata(metadata)
	}
	return goerrors.New(e.Error(), goerrors.CategoryExternal).
		WithCode(http.StatusBadGateway).
		WithTextCode(core.SyncErrorProviderUnavailable).
		WithMetadata(metadata)
}

func httpDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("ratelimit: empty date")
	}
	if parsed, err := time.Parse(time.RFC1123, value); err == nil {
		return parsed.UTC(), nil
	}
	if parsed, err := time.Parse(time.RFC1123Z, value); err == nil {
		return parsed.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("ratelimit: invalid http date")
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
