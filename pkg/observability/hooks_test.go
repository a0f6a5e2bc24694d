package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	f := NoopFoldHooks{}
	f.OnRoundStart(ctx, 1, 10)
	f.OnFolded(ctx, "bn", "backward", []string{"conv"})
	f.OnNotFolded(ctx, "bn2", "AmbiguousBranching")
	f.OnPassComplete(ctx, 1, 1, 2, time.Millisecond, nil)

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "fold")
	c.OnCacheMiss(ctx, "fold")
	c.OnCacheSet(ctx, "fold", 1024)

	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "id", "POST", "/v1/fold")
	h.OnResponse(ctx, "id", "POST", "/v1/fold", 200, time.Second)
}

func newLogger(buf *bytes.Buffer) *log.Logger {
	return log.NewWithOptions(buf, log.Options{Level: log.DebugLevel})
}

func TestLogFoldHooks(t *testing.T) {
	var buf bytes.Buffer
	h := LogFoldHooks{Logger: newLogger(&buf)}
	ctx := context.Background()

	h.OnRoundStart(ctx, 1, 7)
	h.OnFolded(ctx, "bn1", "backward", []string{"conv1"})
	h.OnNotFolded(ctx, "bn2", "NoReachableAffineNode")
	h.OnPassComplete(ctx, 1, 1, 2, time.Millisecond, nil)

	out := buf.String()
	assert.Contains(t, out, "fold round")
	assert.Contains(t, out, "bn1")
	assert.Contains(t, out, "NoReachableAffineNode")
	assert.Contains(t, out, "fold complete")
}

func TestLogFoldHooksError(t *testing.T) {
	var buf bytes.Buffer
	h := LogFoldHooks{Logger: newLogger(&buf)}

	h.OnPassComplete(context.Background(), 0, 0, 0, time.Millisecond, errors.New("boom"))

	assert.Contains(t, buf.String(), "fold failed")
	assert.Contains(t, buf.String(), "boom")
}

func TestLogCacheAndHTTPHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf)
	ctx := context.Background()

	LogCacheHooks{Logger: logger}.OnCacheHit(ctx, "fold")
	LogHTTPHooks{Logger: logger}.OnResponse(ctx, "req-1", "POST", "/v1/fold", 200, time.Second)

	assert.Contains(t, buf.String(), "cache hit")
	assert.Contains(t, buf.String(), "req-1")
}
