package httpx

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

type testEnv struct{}

func (testEnv) Log() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStatusCode(t *testing.T) {
	require := require.New(t)

	err := fmt.Errorf("deliver: %w", Error(http.StatusBadRequest, errors.New("already liked")))
	require.Equal(http.StatusBadRequest, StatusCode(err))
	require.True(IsStatus(err, http.StatusConflict, http.StatusBadRequest))
	require.False(IsStatus(err, http.StatusNotFound))
	require.Equal(0, StatusCode(errors.New("boom")))
	require.Equal("already liked", err.(interface{ Unwrap() error }).Unwrap().Error())
}

func TestHandlerFunc(t *testing.T) {
	t.Run("status error", func(t *testing.T) {
		require := require.New(t)

		h := HandlerFunc(testEnv{}, func(testEnv, http.ResponseWriter, *http.Request) error {
			return Error(http.StatusNotFound, errors.New("no such author"))
		})
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest("GET", "/api/authors/1", nil))
		require.Equal(http.StatusNotFound, rec.Code)
		require.JSONEq(`{"error":"no such author"}`, rec.Body.String())
	})
	t.Run("plain error", func(t *testing.T) {
		require := require.New(t)

		h := HandlerFunc(testEnv{}, func(testEnv, http.ResponseWriter, *http.Request) error {
			return errors.New("database on fire")
		})
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest("GET", "/", nil))
		require.Equal(http.StatusInternalServerError, rec.Code)
		require.NotContains(rec.Body.String(), "fire")
	})
	t.Run("success", func(t *testing.T) {
		require := require.New(t)

		h := HandlerFunc(testEnv{}, func(_ testEnv, w http.ResponseWriter, _ *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		})
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest("DELETE", "/", nil))
		require.Equal(http.StatusNoContent, rec.Code)
	})
}

func TestParams(t *testing.T) {
	type page struct {
		Page int `schema:"page" json:"page"`
		Size int `schema:"size" json:"size"`
	}

	t.Run("query ignores unknown keys", func(t *testing.T) {
		require := require.New(t)

		var p page
		err := Params(httptest.NewRequest("GET", "/?page=2&size=15&all", nil), &p)
		require.NoError(err)
		require.Equal(page{Page: 2, Size: 15}, p)
	})
	t.Run("bad query", func(t *testing.T) {
		require := require.New(t)

		var p page
		err := Params(httptest.NewRequest("GET", "/?page=two", nil), &p)
		require.Equal(http.StatusBadRequest, StatusCode(err))
	})
	t.Run("json body", func(t *testing.T) {
		require := require.New(t)

		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"page":3,"size":5}`))
		req.Header.Set("Content-Type", "application/json")
		var p page
		require.NoError(Params(req, &p))
		require.Equal(page{Page: 3, Size: 5}, p)
	})
	t.Run("unsupported media type", func(t *testing.T) {
		require := require.New(t)

		req := httptest.NewRequest("POST", "/", strings.NewReader(`<page/>`))
		req.Header.Set("Content-Type", "application/xml")
		var p page
		require.Equal(http.StatusUnsupportedMediaType, StatusCode(Params(req, &p)))
	})
}
