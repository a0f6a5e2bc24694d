package httputil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/bnfold/pkg/errors"
	"github.com/matzehuels/bnfold/pkg/graph"
)

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		id := rec.Header().Get(HeaderRequestID)
		assert.Len(t, id, 36)
		assert.Equal(t, id, seen)
	})

	t.Run("client supplied", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "abc-123", rec.Header().Get(HeaderRequestID))
		assert.Equal(t, "abc-123", seen)
	})

	t.Run("oversized replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, strings.Repeat("x", maxRequestIDLen+1))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Len(t, rec.Header().Get(HeaderRequestID), 36)
	})
}

func TestRequestIDFrom_Empty(t *testing.T) {
	assert.Empty(t, RequestIDFrom(context.Background()))
}

type recordingHTTPHooks struct {
	mu     sync.Mutex
	events []string
}

func (h *recordingHTTPHooks) OnRequest(_ context.Context, id, method, path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, fmt.Sprintf("req %s %s %s", id, method, path))
}

func (h *recordingHTTPHooks) OnResponse(_ context.Context, id, method, path string, status int, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, fmt.Sprintf("resp %s %s %s %d", id, method, path, status))
}

func TestObserve(t *testing.T) {
	hooks := &recordingHTTPHooks{}
	h := RequestID(Observe(hooks)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodPost, "/v1/fold", nil)
	req.Header.Set(HeaderRequestID, "r1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, []string{"req r1 POST /v1/fold", "resp r1 POST /v1/fold 418"}, hooks.events)
}

func TestObserve_ImplicitOK(t *testing.T) {
	hooks := &recordingHTTPHooks{}
	h := Observe(hooks)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Len(t, hooks.events, 2)
	assert.Equal(t, "resp  GET /healthz 200", hooks.events[1])
}

func TestNegotiate(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		accept      string
		in, out     graph.Format
		wantErr     bool
	}{
		{"defaults", "", "", graph.FormatJSON, graph.FormatJSON, false},
		{"json with charset", "application/json; charset=utf-8", "", graph.FormatJSON, graph.FormatJSON, false},
		{"msgpack echoes", "application/msgpack", "*/*", graph.FormatMsgpack, graph.FormatMsgpack, false},
		{"msgpack in json out", "application/x-msgpack", "application/json", graph.FormatMsgpack, graph.FormatJSON, false},
		{"accept list", "", "text/html, application/msgpack;q=0.9", graph.FormatJSON, graph.FormatMsgpack, false},
		{"unknown accept ignored", "", "text/html", graph.FormatJSON, graph.FormatJSON, false},
		{"unsupported body", "text/plain", "", "", "", true},
		{"malformed content type", "application/", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			in, out, err := Negotiate(req)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrCodeInvalidFormat))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.in, in)
			assert.Equal(t, tt.out, out)
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{errors.New(errors.ErrCodeCyclic, "cycle"), http.StatusUnprocessableEntity},
		{fmt.Errorf("fold: %w", errors.New(errors.ErrCodeShapeMismatch, "x")), http.StatusUnprocessableEntity},
		{errors.New(errors.ErrCodeInvalidFormat, "bad"), http.StatusBadRequest},
		{errors.New(errors.ErrCodeInvalidInput, "bad"), http.StatusBadRequest},
		{errors.Wrap(errors.ErrCodeInvalidFormat, &http.MaxBytesError{Limit: 1}, "decode"), http.StatusRequestEntityTooLarge},
		{context.Canceled, http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), "%v", tt.err)
	}
}

func TestWriteError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(WithRequestID(req.Context(), "rid"))
	rec := httptest.NewRecorder()

	WriteError(rec, req, errors.New(errors.ErrCodeDanglingReference, "node %q references %q", "b", "zz"), graph.FormatJSON)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ErrorBody{Code: "GRAPH_DANGLING_REFERENCE", Message: `node "b" references "zz"`, RequestID: "rid"}, body)
}

func TestWriteError_Plain(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, httptest.NewRequest(http.MethodGet, "/", nil), fmt.Errorf("boom"), graph.FormatMsgpack)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/msgpack", rec.Header().Get("Content-Type"))
	var body ErrorBody
	require.NoError(t, graph.Decode(rec.Body, &body, graph.FormatMsgpack))
	assert.Equal(t, "INTERNAL_ERROR", body.Code)
	assert.Equal(t, "boom", body.Message)
}
