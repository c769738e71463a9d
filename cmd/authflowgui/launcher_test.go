package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{":1930", "http://127.0.0.1:1930"},
		{"localhost:1930", "http://127.0.0.1:1930"},
		{"0.0.0.0:80", "http://127.0.0.1:80"},
		{"10.0.0.5:1930", "http://10.0.0.5:1930"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, baseURL(tt.in), tt.in)
	}
}

func TestUnseen(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, unseen(nil, []string{"a", "b"}))
	assert.Equal(t, []string{"c", "d"}, unseen([]string{"a", "b"}, []string{"b", "c", "d"}))
	assert.Empty(t, unseen([]string{"a", "b"}, []string{"a", "b"}))
	// The last seen line scrolled out entirely
	assert.Equal(t, []string{"x", "y"}, unseen([]string{"a"}, []string{"x", "y"}))
}

func TestSpawn_MissingBinary(t *testing.T) {
	dir := t.TempDir()

	l := NewLauncher(filepath.Join(dir, "authflow"), "localhost:0", nil, nil, nil)
	assert.ErrorContains(t, l.spawn(), "not found")

	require.NoError(t, os.Mkdir(filepath.Join(dir, "authflow"), 0o755))
	assert.ErrorContains(t, l.spawn(), "not found")
}

type recorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.lines = append(r.lines, s)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func TestStart_AttachesToRunningServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			_, _ = w.Write([]byte("OK"))
		case "/api/log/latest":
			_, _ = w.Write([]byte(`{"log":"b","lines":["a","b"]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	addr := strings.TrimPrefix(srv.URL, "http://")
	logs := &recorder{}
	opened := make(chan string, 1)
	l := NewLauncher("./missing", addr, nil, logs.add, func(url string) { opened <- url })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l.Start(ctx)

	select {
	case url := <-opened:
		assert.Equal(t, srv.URL, url)
	case <-time.After(5 * time.Second):
		t.Fatal("app was never opened")
	}

	assert.Equal(t, "> Server already active.", logs.snapshot()[0])
	assert.Eventually(t, func() bool {
		got := logs.snapshot()
		return len(got) >= 2 && got[len(got)-1] == "b"
	}, 3*time.Second, 50*time.Millisecond)

	// Nothing was started, so Stop has nothing to do
	l.Stop()
}
