package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authflow/pkg/config"
)

func newConfigServer(t *testing.T) (*http.Server, *memState, *int) {
	t.Helper()
	st := &memState{}
	applied := 0
	prov := config.NewProvider(config.DefaultConfig(), st)
	h := NewConfigHandler(st, prov, func(context.Context) { applied++ })
	return NewServer("", Handlers{Config: h}, nil), st, &applied
}

func TestConfigHandler_Get(t *testing.T) {
	srv, _, _ := newConfigServer(t)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ConfigResponse](t, rec)
	assert.Equal(t, "edge-tts", resp.TTSEngine)
	assert.InDelta(t, 1.1, resp.Rate, 1e-9)
	assert.Equal(t, "https://sac.example.com", resp.RedirectURL)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestConfigHandler_Set(t *testing.T) {
	srv, st, applied := newConfigServer(t)

	body := `{"rate":0.8,"pitch":1.2,"voice":"Hazel","redirect_url":"https://portal.example.org"}`
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/config", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[ConfigResponse](t, rec)
	assert.InDelta(t, 0.8, resp.Rate, 1e-9)
	assert.InDelta(t, 1.2, resp.Pitch, 1e-9)
	assert.InDelta(t, 1.0, resp.Volume, 1e-9)
	assert.Equal(t, "Hazel", resp.Voice)
	assert.Equal(t, "https://portal.example.org", resp.RedirectURL)
	assert.Equal(t, 1, *applied)

	v, ok := st.GetState(context.Background(), config.KeyNarrationRate)
	require.True(t, ok)
	assert.Equal(t, "0.8", v)

	// Clearing the voice drops the override
	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/config", strings.NewReader(`{"voice":""}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[ConfigResponse](t, rec).Voice)
	assert.Equal(t, 2, *applied)
}

func TestConfigHandler_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"RateTooHigh", `{"rate":12}`},
		{"VolumeNegative", `{"volume":-0.1}`},
		{"BadRedirect", `{"redirect_url":"ftp://nowhere"}`},
		{"InvalidJSON", `{"rate":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, st, applied := newConfigServer(t)
			rec := httptest.NewRecorder()
			srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/config", strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Zero(t, *applied)
			assert.Empty(t, st.data)
		})
	}
}

func TestConfigHandler_Options(t *testing.T) {
	srv, _, _ := newConfigServer(t)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/config", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PUT")
}
