package transport

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/ohjayaxel/syncengine/core"
	"github.com/ohjayaxel/syncengine/ratelimit"
)

// RetryAdapter wraps another adapter with the retry policy. Transient
// statuses and network failures are retried with backoff; a Retry-After hint
// on a throttled response overrides the computed delay. Waits are context
// aware so a tenant deadline cancels the sleep, not just the next call.
type RetryAdapter struct {
	Next   core.TransportAdapter
	Policy *ratelimit.RetryPolicy
	Wait   func(ctx context.Context, delay time.Duration) error
}

func NewRetryAdapter(next core.TransportAdapter, policy *ratelimit.RetryPolicy) *RetryAdapter {
	if policy == nil {
		policy = ratelimit.NewRetryPolicy(core.RetryConfig{})
	}
	return &RetryAdapter{
		Next:   next,
		Policy: policy,
		Wait:   core.WaitWithContext,
	}
}

func (a *RetryAdapter) Kind() string {
	if a == nil || a.Next == nil {
		return ""
	}
	return a.Next.Kind()
}

func (a *RetryAdapter) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil || a.Next == nil {
		return core.TransportResponse{}, transportError(
			"transport: retry adapter requires a next adapter",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			map[string]any{"adapter": "retry"},
		)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	attempts := a.Policy.Attempts()
	var lastRes core.TransportResponse
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		res, err := a.Next.Do(ctx, req)
		if err != nil {
			if !retryableTransportError(err) {
				return res, err
			}
			lastRes, lastErr = core.TransportResponse{}, err
		} else {
			if !a.Policy.Retryable(res.StatusCode) {
				return res, nil
			}
			lastRes, lastErr = res, nil
		}

		if attempt == attempts-1 {
			break
		}
		if waitErr := a.wait(ctx, a.Policy.Delay(attempt, lastRes)); waitErr != nil {
			return lastRes, waitErr
		}
	}

	cause := lastErr
	if cause == nil {
		cause = fmt.Errorf("transport: provider returned status %d", lastRes.StatusCode)
	}
	exhausted := ratelimit.RetryExhaustedError{
		Operation:  operationLabel(req),
		Attempts:   attempts,
		LastStatus: lastRes.StatusCode,
		Cause:      cause,
	}
	return lastRes, exhausted.ToSyncError()
}

func (a *RetryAdapter) wait(ctx context.Context, delay time.Duration) error {
	if a.Wait != nil {
		return a.Wait(ctx, delay)
	}
	return core.WaitWithContext(ctx, delay)
}

// retryableTransportError limits error-path retries to external failures:
// bad input or auth problems never improve by calling again.
func retryableTransportError(err error) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryExternal
	}
	return false
}

func operationLabel(req core.TransportRequest) string {
	if req.Metadata != nil {
		if label := strings.TrimSpace(fmt.Sprint(req.Metadata["operation"])); label != "" && label != "<nil>" {
			return label
		}
	}
	method := strings.TrimSpace(strings.ToUpper(req.Method))
	if method == "" {
		method = "GET"
	}
	return strings.TrimSpace(method + " " + req.URL)
}

var _ core.TransportAdapter = (*RetryAdapter)(nil)
