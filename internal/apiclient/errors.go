package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrStaleCredential — сервер ответил 401, токен нужно обновить.
	ErrStaleCredential = errors.New("credential is stale, sign in again")
	ErrNotFound        = errors.New("resource not found")
	// ErrConflict — состояние на сервере ушло вперёд (например, приёмку уже провёл другой пользователь).
	ErrConflict  = errors.New("conflicting update, reload the trade")
	ErrForbidden = errors.New("not permitted")
)

// Error — неуспешный вызов API. StatusCode == 0 означает сетевую ошибку.
type Error struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *Error) Unwrap() error { return e.Err }

// Is сопоставляет код ответа с сентинелами пакета.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrStaleCredential:
		return e.StatusCode == http.StatusUnauthorized
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	}
	return false
}

// Retryable — имеет ли смысл повторить действие вручную.
func (e *Error) Retryable() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	}
	return false
}

// IsRetryable — то же для произвольной ошибки из цепочки.
func IsRetryable(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return false
}
