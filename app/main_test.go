package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration(t *testing.T) {
	tmpDir := t.TempDir()
	opts.DB = filepath.Join(tmpDir, "test.db")
	opts.Server.Address = "127.0.0.1:18585" // use non-standard port to avoid conflicts
	opts.Server.ReadTimeout = 5 * time.Second
	opts.Session.TTL = time.Minute
	opts.Session.CleanupInterval = time.Minute
	opts.Cache.MaxKeys = 100

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx)
	}()

	waitForServer(t, "http://127.0.0.1:18585/ping")

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Timeout: 5 * time.Second, Jar: jar}

	loadPage := func(hint string) (pageID, body string) {
		req, err := http.NewRequest(http.MethodGet, "http://127.0.0.1:18585/", http.NoBody)
		require.NoError(t, err)
		if hint != "" {
			req.Header.Set("Sec-CH-Prefers-Color-Scheme", hint)
		}
		resp, err := client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		m := regexp.MustCompile(`data-page="([^"]+)"`).FindStringSubmatch(string(data))
		require.Len(t, m, 2)
		return m[1], string(data)
	}

	var state struct {
		Theme    string `json:"theme"`
		Explicit bool   `json:"explicit"`
	}

	t.Run("first load follows system preference", func(t *testing.T) {
		_, body := loadPage("dark")
		assert.Contains(t, body, `data-theme="dark"`)
		assert.Contains(t, body, "Switch to light mode")
	})

	t.Run("toggle persists across page loads", func(t *testing.T) {
		pageID, _ := loadPage("dark")
		resp, err := client.PostForm("http://127.0.0.1:18585/web/theme/toggle", url.Values{"page": {pageID}})
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
		assert.Equal(t, "light", state.Theme)
		assert.True(t, state.Explicit)

		_, body := loadPage("dark")
		assert.Contains(t, body, `data-theme="light"`, "persisted choice wins over system dark")
	})

	t.Run("system change suppressed by explicit choice", func(t *testing.T) {
		pageID, _ := loadPage("light")
		resp, err := client.PostForm("http://127.0.0.1:18585/web/theme/system",
			url.Values{"page": {pageID}, "scheme": {"dark"}})
		require.NoError(t, err)
		defer resp.Body.Close()
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
		assert.Equal(t, "light", state.Theme)
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := client.Get("http://127.0.0.1:18585/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.True(t, strings.Contains(string(data), "themer_events_total"))
	})

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}

func waitForServer(t *testing.T, url string) {
	t.Helper()
	client := &http.Client{Timeout: 100 * time.Millisecond}
	require.Eventually(t, func() bool {
		resp, err := client.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 50*time.Millisecond, "server did not start")
}

func TestServerConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		p := flags.NewParser(&opts, flags.Default)
		_, err := p.ParseArgs([]string{})
		require.NoError(t, err)
		cfg := serverConfig()
		assert.Equal(t, ":8585", cfg.Address)
		assert.Equal(t, 30*time.Second, cfg.IdleTimeout)
		assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
		assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
		assert.Equal(t, 256, cfg.EventQueue)
		assert.Equal(t, int64(64*1024), cfg.BodySizeLimit)
		assert.Equal(t, int64(1000), cfg.RequestsPerSec)
		assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	})

	t.Run("overrides", func(t *testing.T) {
		p := flags.NewParser(&opts, flags.Default)
		_, err := p.ParseArgs([]string{
			"--server.idle-timeout=90s", "--server.shutdown-timeout=2s", "--server.store-timeout=250ms",
			"--server.event-queue=16", "--server.body-limit=1024", "--server.rps=10", "--session.ttl=5m",
		})
		require.NoError(t, err)
		cfg := serverConfig()
		assert.Equal(t, 90*time.Second, cfg.IdleTimeout)
		assert.Equal(t, 2*time.Second, cfg.ShutdownTimeout)
		assert.Equal(t, 250*time.Millisecond, cfg.StoreTimeout)
		assert.Equal(t, 16, cfg.EventQueue)
		assert.Equal(t, int64(1024), cfg.BodySizeLimit)
		assert.Equal(t, int64(10), cfg.RequestsPerSec)
		assert.Equal(t, 5*time.Minute, cfg.SessionTTL)
	})
}

func TestSetupLogs(t *testing.T) {
	t.Run("default mode", func(t *testing.T) {
		opts.Debug = false
		assert.NotNil(t, setupLogs())
	})

	t.Run("debug mode", func(t *testing.T) {
		opts.Debug = true
		defer func() { opts.Debug = false }()
		assert.NotNil(t, setupLogs())
	})
}

func TestRun_InvalidDB(t *testing.T) {
	opts.DB = "/nonexistent/path/to/db.db"
	opts.Server.Address = "127.0.0.1:18586"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize store")
}

func TestSignals(t *testing.T) {
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NotPanics(t, func() {
		signals(cancel)
	})
}
