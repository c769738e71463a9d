package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countClips struct {
	n   int
	err error
}

func (c countClips) Count(context.Context) (int, error) { return c.n, c.err }

func TestStatsHandler(t *testing.T) {
	srv := NewServer("", Handlers{Stats: NewStatsHandler(countClips{n: 7}, "edge-tts>silent")}, nil)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[StatsResponse](t, rec)
	assert.Equal(t, 7, resp.CachedClips)
	assert.Equal(t, "edge-tts>silent", resp.TTSEngine)
	assert.Positive(t, resp.Process.Goroutines)
	assert.GreaterOrEqual(t, resp.Process.PeakMemoryMB, resp.Process.MemoryMB)
	assert.NotEmpty(t, resp.Uptime)
}

func TestStatsHandler_CountError(t *testing.T) {
	srv := NewServer("", Handlers{Stats: NewStatsHandler(countClips{err: errors.New("db closed")}, "silent")}, nil)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decode[StatsResponse](t, rec).CachedClips)
}
