// Package httpx carries HTTP status codes through Go errors, in both
// directions: handlers return them, clients receive them.
// see https://blog.questionable.services/article/http-handler-error-handling-revisited/ for more details.
package httpx

import (
	"errors"
	"net/http"

	"github.com/go-json-experiment/json"
	"golang.org/x/exp/slog"
)

// Error is a convenience function for returning an error with an associated HTTP status code.
func Error(code int, err error) error {
	return &StatusError{code, err}
}

// StatusError represents an error with an associated HTTP status code.
type StatusError struct {
	Code int
	Err  error
}

// Allows StatusError to satisfy the error interface.
func (se *StatusError) Error() string {
	if se.Err == nil {
		return http.StatusText(se.Code)
	}
	return se.Err.Error()
}

func (se *StatusError) Unwrap() error {
	return se.Err
}

// Returns our HTTP status code.
func (se *StatusError) Status() int {
	return se.Code
}

// StatusCode returns the HTTP status code carried by err, or 0 if err does not
// carry one.
func StatusCode(err error) int {
	if se := new(StatusError); errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// IsStatus reports whether err carries one of the given status codes.
func IsStatus(err error, codes ...int) bool {
	code := StatusCode(err)
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

// Env is the environment handed to every handler.
type Env interface {
	Log() *slog.Logger
}

// HandlerFunc adapts a function that returns an error to an http.HandlerFunc.
func HandlerFunc[E Env](env E, fn func(E, http.ResponseWriter, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(env, w, r)
		if err == nil {
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		code := StatusCode(err)
		if code == 0 {
			code = http.StatusInternalServerError
		}
		level := slog.LevelInfo
		if code >= 500 {
			level = slog.LevelError
		}
		env.Log().Log(r.Context(), level, "HTTP", "method", r.Method, "path", r.URL.Path, "status", code, "error", err)
		w.WriteHeader(code)
		if code == http.StatusInternalServerError {
			json.MarshalFull(w, map[string]any{
				"error": http.StatusText(code),
			})
			return
		}
		json.MarshalFull(w, map[string]any{
			"error": err.Error(),
		})
	}
}
