package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	SyncErrorBadInput            = "SYNC_BAD_INPUT"
	SyncErrorConfigInvalid       = "SYNC_CONFIG_INVALID"
	SyncErrorReauthRequired      = "SYNC_REAUTH_REQUIRED"
	SyncErrorProviderUnavailable = "SYNC_PROVIDER_UNAVAILABLE"
	SyncErrorRateLimited         = "SYNC_RATE_LIMITED"
	SyncErrorPersistenceFailed   = "SYNC_PERSISTENCE_FAILED"
	SyncErrorSourceNotFound      = "SYNC_SOURCE_NOT_FOUND"
	SyncErrorInProgress          = "SYNC_IN_PROGRESS"
	SyncErrorUnauthorized        = "SYNC_UNAUTHORIZED"
	SyncErrorInternal            = "SYNC_INTERNAL_ERROR"
)

// MapSyncError normalizes any error into the service error envelope. Trigger
// surfaces call it at their boundary so every outcome carries a category,
// HTTP status, and SYNC_* text code.
func MapSyncError(err error) *goerrors.Error {
	return syncErrorMapper(err)
}

func syncErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureSyncErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not registered"):
		return newSyncError(err.Error(), goerrors.CategoryNotFound, SyncErrorSourceNotFound)
	case strings.Contains(msg, "re-authenticate"), strings.Contains(msg, "reauth"):
		return newSyncError(err.Error(), goerrors.CategoryAuth, SyncErrorReauthRequired)
	case strings.Contains(msg, "lock already held"), strings.Contains(msg, "sync lock"):
		return newSyncError(err.Error(), goerrors.CategoryConflict, SyncErrorInProgress)
	case strings.Contains(msg, "throttl"), strings.Contains(msg, "rate limit"):
		return newSyncError(err.Error(), goerrors.CategoryRateLimit, SyncErrorRateLimited)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newSyncError(err.Error(), goerrors.CategoryBadInput, SyncErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureSyncErrorEnvelope(mapped)
}

func newSyncError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureSyncErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureSyncErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = syncHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultSyncTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultSyncTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return SyncErrorBadInput
	case goerrors.CategoryNotFound:
		return SyncErrorSourceNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return SyncErrorReauthRequired
	case goerrors.CategoryConflict:
		return SyncErrorInProgress
	case goerrors.CategoryRateLimit:
		return SyncErrorRateLimited
	case goerrors.CategoryExternal:
		return SyncErrorProviderUnavailable
	default:
		return SyncErrorInternal
	}
}

func syncHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ConfigError wraps a missing or malformed engine configuration value. It is
// fatal for the whole invocation, before any tenant work starts.
func ConfigError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(SyncErrorConfigInvalid)
}

// PersistenceError marks a storage failure that aborts the current tenant.
func PersistenceError(source error, message string) *goerrors.Error {
	if source == nil {
		return goerrors.New(message, goerrors.CategoryInternal).
			WithCode(http.StatusInternalServerError).
			WithTextCode(SyncErrorPersistenceFailed)
	}
	return goerrors.Wrap(source, goerrors.CategoryInternal, message).
		WithCode(http.StatusInternalServerError).
		WithTextCode(SyncErrorPersistenceFailed)
}

// ReauthError marks a credential failure actionable only by reconnecting the
// tenant. The message must tell the operator what to do, never leak material.
func ReauthError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(SyncErrorReauthRequired)
}
