package server

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	ws "github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/instant-compose/devloop/internal/build"
	"github.com/instant-compose/devloop/internal/logging"
	"github.com/instant-compose/devloop/internal/websocket"
)

type fakeBuilds struct {
	running atomic.Bool
	last    *build.Result
}

func (b *fakeBuilds) State() build.State {
	if b.running.Load() {
		return build.StateRunning
	}
	return build.StateIdle
}

func (b *fakeBuilds) Running() bool             { return b.running.Load() }
func (b *fakeBuilds) LastResult() *build.Result { return b.last }

func newTestServer(t *testing.T, files map[string]string) (*Server, *fakeBuilds, string) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}

	builds := &fakeBuilds{}
	s := New(Options{
		OutputDir:       dir,
		LivePath:        "/dev-server",
		CacheMaxAge:     10 * time.Second,
		DefaultDocument: "index.html",
		Compression:     true,
		Registry:        websocket.NewRegistry(logging.Nop()),
		Builds:          builds,
		Logger:          logging.Nop(),
	})
	return s, builds, dir
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestStaticFiles(t *testing.T) {
	s, _, _ := newTestServer(t, map[string]string{
		"index.html":      "<html>index</html>",
		"app.js":          "console.log(1)",
		"app.wasm":        "\x00asm",
		"docs/index.html": "<html>docs</html>",
		".app.js.tmp":     "partial",
	})
	h := s.Handler()

	tests := []struct {
		name        string
		target      string
		body        string
		contentType string
	}{
		{"root serves default document", "/", "<html>index</html>", "text/html"},
		{"asset", "/app.js", "console.log(1)", "javascript"},
		{"wasm", "/app.wasm", "\x00asm", "application/wasm"},
		{"directory default document", "/docs/", "<html>docs</html>", "text/html"},
		{"client route falls back", "/settings/profile", "<html>index</html>", "text/html"},
		{"dot files are hidden", "/.app.js.tmp", "<html>index</html>", "text/html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.target)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.body, rec.Body.String())
			assert.Equal(t, "max-age=10", rec.Header().Get("Cache-Control"))
			assert.Contains(t, rec.Header().Get("Content-Type"), tt.contentType)
		})
	}
}

func TestStaticTraversalStaysInside(t *testing.T) {
	s, _, _ := newTestServer(t, map[string]string{"index.html": "<html>index</html>"})

	// Called directly, the mux would redirect the unclean path first.
	rec := httptest.NewRecorder()
	s.handleStatic(rec, httptest.NewRequest(http.MethodGet, "/../../etc/passwd", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html>index</html>", rec.Body.String())
}

func TestStaticMethodNotAllowed(t *testing.T) {
	s, _, _ := newTestServer(t, map[string]string{"index.html": "x"})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, HEAD", rec.Header().Get("Allow"))
}

func TestWaitingPageBeforeFirstBuild(t *testing.T) {
	s, _, dir := newTestServer(t, nil)
	h := s.Handler()

	rec := get(t, h, "/")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), "Waiting for the first build")
	assert.Contains(t, rec.Body.String(), `data-live-path="/dev-server"`)

	// Once the build has written the default document it is served.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("ready"), 0o644))
	rec = get(t, h, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", rec.Body.String())
}

func TestWaitingPageEscapesLivePath(t *testing.T) {
	var b strings.Builder
	require.NoError(t, waitingPage("/x</script><script>alert(1)").Render(context.Background(), &b))
	assert.NotContains(t, b.String(), "</script><script>alert(1)")
	assert.Contains(t, b.String(), `data-live-path="/x&lt;/script&gt;&lt;script&gt;alert(1)"`)
}

func TestStaticCompression(t *testing.T) {
	bundle := strings.Repeat("function f(){return 1}\n", 500)
	s, _, _ := newTestServer(t, map[string]string{"index.html": "x", "app.js": bundle})

	req := httptest.NewRequest(http.MethodGet, "/app.js", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, bundle, string(body))
}

func TestCacheControlDisabled(t *testing.T) {
	s := New(Options{OutputDir: t.TempDir()})
	assert.Equal(t, "no-cache", s.cacheControl())
}

func TestHealth(t *testing.T) {
	s, builds, _ := newTestServer(t, nil)
	builds.last = &build.Result{
		Success:     true,
		Initial:     true,
		Elapsed:     1500 * time.Millisecond,
		ServedFiles: []string{"app.js", "app.wasm", "app.html"},
	}
	builds.running.Store(true)

	rec := get(t, s.Handler(), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "running", resp.State)
	assert.Equal(t, 0, resp.Clients)
	require.NotNil(t, resp.LastBuild)
	assert.Equal(t, int64(1500), resp.LastBuild.ElapsedMs)
	assert.Equal(t, []string{"app.js", "app.wasm", "app.html"}, resp.LastBuild.Files)
}

func dialLive(t *testing.T, ts *httptest.Server) *ws.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/dev-server"
	conn, _, err := ws.Dial(ctx, url, nil)
	require.NoError(t, err)
	return conn
}

func readText(t *testing.T, conn *ws.Conn) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, ws.MessageText, typ)
	return string(data)
}

func TestLiveEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	a := dialLive(t, ts)
	b := dialLive(t, ts)
	assert.Eventually(t, func() bool { return s.opts.Registry.Count() == 2 }, 2*time.Second, 10*time.Millisecond)

	s.opts.Registry.Broadcast(websocket.MessageRebuilding)
	s.opts.Registry.Broadcast(websocket.ReloadMessage([]string{"app.js", "app.wasm", "app.html"}))

	for _, conn := range []*ws.Conn{a, b} {
		assert.Equal(t, "rebuilding", readText(t, conn))
		assert.Equal(t, "reload:app.js,app.wasm,app.html", readText(t, conn))
	}

	// Frames from the browser are ignored.
	require.NoError(t, a.Write(context.Background(), ws.MessageText, []byte("hello")))

	require.NoError(t, a.Close(ws.StatusNormalClosure, ""))
	assert.Eventually(t, func() bool { return s.opts.Registry.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	b.Close(ws.StatusNormalClosure, "")
	assert.Eventually(t, func() bool { return s.opts.Registry.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestLiveEndpointDuringBuild(t *testing.T) {
	s, builds, _ := newTestServer(t, nil)
	builds.running.Store(true)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn := dialLive(t, ts)
	defer conn.Close(ws.StatusNormalClosure, "")

	assert.Equal(t, "rebuilding", readText(t, conn))
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s, _, _ := newTestServer(t, map[string]string{"index.html": "served"})
	s.opts.MaxConnections = 4

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "served", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestLocalIPv4(t *testing.T) {
	ip := LocalIPv4()
	if ip == "" {
		t.Skip("no non-loopback IPv4 interface")
	}
	parsed := net.ParseIP(ip)
	require.NotNil(t, parsed)
	assert.NotNil(t, parsed.To4())
	assert.False(t, parsed.IsLoopback())
}
