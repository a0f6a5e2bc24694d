package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/bnfold/pkg/cache"
	"github.com/matzehuels/bnfold/pkg/graph"
	"github.com/matzehuels/bnfold/pkg/httputil"
	"github.com/matzehuels/bnfold/pkg/pipeline"
)

func newTestServer(t *testing.T, maxBody int64) *httptest.Server {
	t.Helper()
	fc, err := cache.NewFileCache(t.TempDir())
	require.NoError(t, err)
	logger := log.New(io.Discard)
	runner := pipeline.NewRunner(fc, nil, logger)

	srv := httptest.NewServer(newServer(runner, pipeline.Options{}, maxBody, logger))
	t.Cleanup(srv.Close)
	return srv
}

func postModel(t *testing.T, url string, body []byte, contentType, accept string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func modelBytes(t *testing.T, m *graph.Model, f graph.Format) []byte {
	t.Helper()
	data, err := graph.Marshal(m, f)
	require.NoError(t, err)
	return data
}

func TestServer_FoldJSON(t *testing.T) {
	srv := newTestServer(t, 1<<20)
	body := modelBytes(t, testModel(), graph.FormatJSON)

	resp := postModel(t, srv.URL+"/v1/fold", body, "application/json", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))
	assert.Len(t, resp.Header.Get(httputil.HeaderRequestID), 36)

	var got foldResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, 1, got.Report.FoldedCount)
	assert.Len(t, got.Model.Nodes, 5)
	assert.Len(t, got.InputHash, 64)
	assert.False(t, got.CacheHit)

	resp = postModel(t, srv.URL+"/v1/fold", body, "application/json", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "HIT", resp.Header.Get("X-Cache"))

	resp = postModel(t, srv.URL+"/v1/fold?refresh=true", body, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))
}

func TestServer_FoldMsgpack(t *testing.T) {
	srv := newTestServer(t, 1<<20)
	body := modelBytes(t, testModel(), graph.FormatMsgpack)

	resp := postModel(t, srv.URL+"/v1/fold", body, "application/msgpack", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/msgpack", resp.Header.Get("Content-Type"))

	var got foldResponse
	require.NoError(t, graph.Decode(resp.Body, &got, graph.FormatMsgpack))
	assert.Equal(t, 1, got.Report.FoldedCount)
	assert.Len(t, got.Model.Nodes, 5)

	resp = postModel(t, srv.URL+"/v1/fold", body, "application/msgpack", "application/json")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestServer_Errors(t *testing.T) {
	srv := newTestServer(t, 1<<20)

	cyclic := testModel()
	cyclic.Nodes[1].Inputs = []string{"bn1"}

	dangling := testModel()
	dangling.Nodes[3].Inputs = []string{"nowhere"}

	tests := []struct {
		name        string
		body        []byte
		contentType string
		status      int
		code        string
	}{
		{"cyclic", modelBytes(t, cyclic, graph.FormatJSON), "application/json", http.StatusUnprocessableEntity, "GRAPH_CYCLIC"},
		{"dangling", modelBytes(t, dangling, graph.FormatJSON), "application/json", http.StatusUnprocessableEntity, "GRAPH_DANGLING_REFERENCE"},
		{"malformed json", []byte(`{"nodes": [`), "application/json", http.StatusBadRequest, "INVALID_FORMAT"},
		{"unsupported type", []byte(`nodes`), "text/csv", http.StatusBadRequest, "INVALID_FORMAT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/fold", bytes.NewReader(tt.body))
			require.NoError(t, err)
			req.Header.Set("Content-Type", tt.contentType)
			req.Header.Set(httputil.HeaderRequestID, "req-"+tt.name)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			var body httputil.ErrorBody
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, "req-"+tt.name, body.RequestID)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestServer_BodyTooLarge(t *testing.T) {
	srv := newTestServer(t, 64)
	body := modelBytes(t, testModel(), graph.FormatJSON)
	require.Greater(t, len(body), 64)

	resp := postModel(t, srv.URL+"/v1/fold", body, "application/json", "")
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, 1<<20)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "ok", got.Status)
	assert.NotEmpty(t, got.Build.Version)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, 1<<20)

	resp, err := http.Get(srv.URL + "/v1/fold")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/v2/fold", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
