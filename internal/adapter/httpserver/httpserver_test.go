package httpserver

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/imposter-project/imposter-protocol/internal/adapter"
	"github.com/imposter-project/imposter-protocol/internal/app"
	"github.com/imposter-project/imposter-protocol/internal/cmdline"
	"github.com/imposter-project/imposter-protocol/internal/config"
	"github.com/imposter-project/imposter-protocol/internal/system"
	"github.com/imposter-project/imposter-protocol/internal/urltable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*adapter.Imposter, *httptest.Server) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app-config.yaml"), []byte(`
privilegedSchemes:
  - schemes: [app]
protocols:
  - scheme: app
    type: string
    response:
      content: hello from app
      headers:
        X-Source: config
  - scheme: other
    type: buffer
    session: persist:other
    response:
      content: other session
`), 0644))

	configs, err := config.LoadConfig(dir)
	require.NoError(t, err)

	tables := urltable.New()
	imposter, err := adapter.NewImposter(&config.ImposterConfig{}, configs, adapter.Options{
		Tables:      tables,
		CommandLine: cmdline.New([]string{"imposter-protocol"}),
		Lifecycle:   app.NewLifecycle(tables),
	})
	require.NoError(t, err)
	t.Cleanup(imposter.Shutdown)
	require.NoError(t, imposter.Boot())

	server := httptest.NewServer(NewServer(imposter))
	t.Cleanup(server.Close)
	return imposter, server
}

func fetch(t *testing.T, server *httptest.Server, query url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(server.URL + "/fetch?" + query.Encode())
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestServer_Status(t *testing.T) {
	imposter, server := newTestServer(t)

	resp, err := http.Get(server.URL + "/system/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var status system.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, imposter.InstanceID, status.InstanceID)
	assert.True(t, status.Ready)
	assert.Equal(t, []string{"", "persist:other"}, status.Partitions)
}

func TestServer_Schemes(t *testing.T) {
	_, server := newTestServer(t)

	resp, err := http.Get(server.URL + "/system/schemes")
	require.NoError(t, err)
	defer resp.Body.Close()

	var schemes system.Schemes
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&schemes))
	assert.Equal(t, []string{"app"}, schemes.StandardSchemes)
	assert.Equal(t, []string{"app"}, schemes.ServiceWorkerSchemes)
	assert.Contains(t, schemes.Switches, "--standard-schemes=app")
	assert.Equal(t, []string{"app"}, schemes.Sessions[""].Registered)
	assert.Equal(t, []string{"other"}, schemes.Sessions["persist:other"].Registered)

	require.Len(t, schemes.Privileged, 1)
	assert.Equal(t, "app", schemes.Privileged[0].Scheme)
	assert.True(t, schemes.Privileged[0].Standard)
	assert.True(t, schemes.Privileged[0].Secure)
	assert.True(t, schemes.Privileged[0].ServiceWorkers)
}

func TestServer_Fetch(t *testing.T) {
	_, server := newTestServer(t)

	tests := []struct {
		name         string
		query        url.Values
		expectedCode int
		expectedBody string
	}{
		{
			name:         "default session",
			query:        url.Values{"url": {"app://host/index.html"}},
			expectedCode: http.StatusOK,
			expectedBody: "hello from app",
		},
		{
			name:         "named session",
			query:        url.Values{"url": {"other:thing"}, "session": {"persist:other"}},
			expectedCode: http.StatusOK,
			expectedBody: "other session",
		},
		{
			name:         "scheme unknown to session",
			query:        url.Values{"url": {"other:thing"}},
			expectedCode: http.StatusForbidden,
		},
		{
			name:         "missing url",
			query:        url.Values{},
			expectedCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := fetch(t, server, tt.query)
			assert.Equal(t, tt.expectedCode, resp.StatusCode)
			if tt.expectedBody != "" {
				assert.Equal(t, tt.expectedBody, body)
			}
		})
	}

	resp, _ := fetch(t, server, url.Values{"url": {"app://host/"}})
	assert.Equal(t, "config", resp.Header.Get("X-Source"))
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
}

func TestServer_Metrics(t *testing.T) {
	_, server := newTestServer(t)
	fetch(t, server, url.Values{"url": {"app://host/"}})

	resp, err := http.Get(server.URL + "/system/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "imposter_protocol_operations_total")
	assert.Contains(t, string(body), "imposter_protocol_jobs_total")
}

func TestServer_FetchRefusesBuiltinSchemes(t *testing.T) {
	_, server := newTestServer(t)

	dir := t.TempDir()
	secret := filepath.Join(dir, "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("TOP-SECRET"), 0600))

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("upstream"))
	}))
	t.Cleanup(upstream.Close)

	tests := []struct {
		name  string
		query url.Values
	}{
		{name: "local file", query: url.Values{"url": {"file://" + secret}}},
		{name: "system file", query: url.Values{"url": {"file:///etc/hostname"}}},
		{name: "http upstream", query: url.Values{"url": {upstream.URL}}},
		{name: "file on named session", query: url.Values{"url": {"file://" + secret}, "session": {"persist:other"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := fetch(t, server, tt.query)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
			assert.NotContains(t, body, "TOP-SECRET")
			assert.NotEqual(t, "upstream", body)
		})
	}
}

func TestServer_FetchAllowsInterceptedBuiltin(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "intercept-config.yaml"), []byte(`
protocols:
  - scheme: file
    type: string
    intercept: true
    response:
      content: intercepted file
`), 0644))

	configs, err := config.LoadConfig(dir)
	require.NoError(t, err)
	tables := urltable.New()
	imposter, err := adapter.NewImposter(&config.ImposterConfig{}, configs, adapter.Options{
		Tables:      tables,
		CommandLine: cmdline.New([]string{"imposter-protocol"}),
		Lifecycle:   app.NewLifecycle(tables),
	})
	require.NoError(t, err)
	t.Cleanup(imposter.Shutdown)
	require.NoError(t, imposter.Boot())

	server := httptest.NewServer(NewServer(imposter))
	t.Cleanup(server.Close)

	resp, body := fetch(t, server, url.Values{"url": {"file:///etc/hostname"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "intercepted file", body)
}
