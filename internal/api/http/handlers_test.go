package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/uihost/internal/dom"
	"github.com/GriffinCanCode/uihost/internal/domain/document"
	"github.com/GriffinCanCode/uihost/internal/guest"
	"github.com/GriffinCanCode/uihost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/uihost/internal/sandbox"
	"github.com/GriffinCanCode/uihost/internal/store"
	"github.com/GriffinCanCode/uihost/internal/wasmgen"
)

type fixture struct {
	router  *gin.Engine
	manager *document.Manager
	dir     string
}

func setup(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	config := sandbox.DefaultConfig()
	config.JSPoolSize = 1
	wasm, err := sandbox.NewWasmEngine(ctx, config, nil)
	require.NoError(t, err)
	pool, err := sandbox.NewPool(config)
	require.NoError(t, err)

	metrics := monitoring.NewMetrics()
	manager := document.NewManager(wasm, pool).WithObserver(metrics)
	t.Cleanup(func() {
		_ = manager.CloseAll(ctx)
		pool.Close()
		wasm.Close(ctx)
	})

	dir := t.TempDir()
	h := NewHandlers(manager, guest.NewLoader(guest.DefaultConfig(), nil), metrics, Options{
		ViewportWidth:  400,
		ViewportHeight: 300,
		GuestsDir:      dir,
	})
	r := gin.New()
	r.Use(monitoring.Middleware(metrics))
	h.Register(r)
	return &fixture{router: r, manager: manager, dir: dir}
}

func (f *fixture) do(t *testing.T, method, path, contentType string, body []byte) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var out map[string]any
	if ct := w.Header().Get("Content-Type"); ct == jsonContentType {
		require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func (f *fixture) create(t *testing.T) string {
	t.Helper()
	w, body := f.do(t, http.MethodPost, "/documents?name=counter", "application/wasm", wasmgen.Counter())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return body["id"].(string)
}

func operations(t *testing.T, body map[string]any) []map[string]any {
	t.Helper()
	raw, ok := body["operations"].([]any)
	require.True(t, ok)
	ops := make([]map[string]any, len(raw))
	for i, op := range raw {
		ops[i] = op.(map[string]any)
	}
	return ops
}

func TestRootAndHealth(t *testing.T) {
	f := setup(t)

	w, body := f.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "uihost", body["service"])

	w, body = f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestLayoutETag(t *testing.T) {
	f := setup(t)
	path := "/documents/" + f.create(t) + "/layout"

	w, _ := f.do(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("If-None-Match", etag)
	cached := httptest.NewRecorder()
	f.router.ServeHTTP(cached, req)
	assert.Equal(t, http.StatusNotModified, cached.Code)
	assert.Zero(t, cached.Body.Len())

	w, _ = f.do(t, http.MethodGet, path+"?width=640", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEqual(t, etag, w.Header().Get("ETag"), "viewport changes the paint list")
}

func TestDocumentLifecycle(t *testing.T) {
	f := setup(t)
	docID := f.create(t)
	base := "/documents/" + docID

	w, body := f.do(t, http.MethodGet, base, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "counter", body["name"])
	assert.Equal(t, "wasm", body["engine"])

	w, body = f.do(t, http.MethodGet, "/documents", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["documents"], 1)

	w, body = f.do(t, http.MethodGet, base+"/layout", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 400.0, body["width"], "configured default viewport")
	ops := operations(t, body)
	require.Len(t, ops, 2)
	assert.Equal(t, 80.0, ops[0]["width"])
	node := ops[0]["node"].(string)

	event, _ := sonic.Marshal(EventRequest{Node: node, Event: 0})
	w, body = f.do(t, http.MethodPost, base+"/events", "application/json", event)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 2.0, body["applied"])

	w, body = f.do(t, http.MethodGet, base+"/layout?width=800&height=600", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 100.0, operations(t, body)[0]["width"])

	w, _ = f.do(t, http.MethodGet, base+"/html", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), `data-id="`+node+`"`)

	w, body = f.do(t, http.MethodGet, base+"/nodes/"+node, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, node, body["key"])

	w, body = f.do(t, http.MethodPost, base+"/recompute", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0.0, body["applied"], "nothing changed since the event")

	w, body = f.do(t, http.MethodDelete, base+"/nodes/"+node, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, body["removed"])

	w, body = f.do(t, http.MethodGet, base+"/nodes/"+node, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "node_not_live", body["code"])

	w, _ = f.do(t, http.MethodDelete, base, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, body = f.do(t, http.MethodGet, base, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "document_not_found", body["code"])
}

func TestCreateDocumentErrors(t *testing.T) {
	f := setup(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "counter.wasm"), wasmgen.Counter(), 0o644))

	tests := []struct {
		name        string
		contentType string
		body        []byte
		want        int
	}{
		{"empty body", "application/octet-stream", nil, http.StatusBadRequest},
		{"image", "image/png", append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...), http.StatusUnsupportedMediaType},
		{"bad json", "application/json", []byte(`{"source":`), http.StatusBadRequest},
		{"missing source", "application/json", []byte(`{"name":"x"}`), http.StatusBadRequest},
		{"escaping path", "application/json", []byte(`{"source":"../../etc/passwd"}`), http.StatusForbidden},
		{"absolute outside", "application/json", []byte(`{"source":"/etc/passwd"}`), http.StatusForbidden},
		{"missing file", "application/json", []byte(`{"source":"absent.wasm"}`), http.StatusNotFound},
		{"failing main", "text/javascript", []byte(`fastn.get_i32(null);`), http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := f.do(t, http.MethodPost, "/documents", tt.contentType, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.NotEmpty(t, body["error"])
		})
	}
	assert.Empty(t, f.manager.List())
}

func TestCreateDocumentFromGuestsDir(t *testing.T) {
	f := setup(t)
	require.NoError(t, os.MkdirAll(filepath.Join(f.dir, "demo"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "demo", "counter.wasm"), wasmgen.Counter(), 0o644))

	w, body := f.do(t, http.MethodPost, "/documents", "application/json",
		[]byte(`{"source":"demo/counter.wasm","name":"from-disk"}`))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "from-disk", body["name"])
	assert.Contains(t, body["origin"], "counter.wasm")
}

func TestCreateDocumentRejectsLinkOutOfGuestsDir(t *testing.T) {
	f := setup(t)
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "counter.wasm"), wasmgen.Counter(), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "counter.wasm"), wasmgen.Counter(), 0o644))
	if err := os.Symlink(filepath.Join(outside, "counter.wasm"), filepath.Join(f.dir, "escape.wasm")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	require.NoError(t, os.Symlink(filepath.Join(f.dir, "counter.wasm"), filepath.Join(f.dir, "alias.wasm")))

	w, body := f.do(t, http.MethodPost, "/documents", "application/json", []byte(`{"source":"escape.wasm"}`))
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	assert.Equal(t, "forbidden_source", body["code"])
	assert.Empty(t, f.manager.List())

	w, _ = f.do(t, http.MethodPost, "/documents", "application/json", []byte(`{"source":"alias.wasm"}`))
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestLocalSourcesDisabled(t *testing.T) {
	h := NewHandlers(nil, nil, nil, Options{})
	_, err := h.localPath("counter.wasm")
	assert.ErrorIs(t, err, errLocalSource)
}

func TestRequestValidation(t *testing.T) {
	f := setup(t)
	base := "/documents/" + f.create(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   []byte
		want   int
		code   string
	}{
		{"bad document id", http.MethodGet, "/documents/doc.x", nil, http.StatusBadRequest, "bad_request"},
		{"non-numeric width", http.MethodGet, base + "/layout?width=wide", nil, http.StatusBadRequest, "bad_request"},
		{"zero width", http.MethodGet, base + "/layout?width=0", nil, http.StatusBadRequest, "invalid_viewport"},
		{"malformed key", http.MethodGet, base + "/nodes/nope", nil, http.StatusBadRequest, "malformed_key"},
		{"stale key", http.MethodDelete, base + "/nodes/999v1", nil, http.StatusNotFound, "node_not_live"},
		{"event without node", http.MethodPost, base + "/events", []byte(`{"event":0}`), http.StatusBadRequest, "bad_request"},
		{"event bad json", http.MethodPost, base + "/events", []byte(`{`), http.StatusBadRequest, "bad_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := f.do(t, tt.method, tt.path, "application/json", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Equal(t, tt.code, body["code"])
		})
	}
}

func TestStats(t *testing.T) {
	f := setup(t)
	f.create(t)

	w, body := f.do(t, http.MethodGet, "/stats", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	docs := body["documents"].(map[string]any)
	assert.Equal(t, 1.0, docs["active"])
	totals := body["totals"].(map[string]any)
	assert.Equal(t, 4.0, totals["nodes"])
	requests := body["requests"].(map[string]any)
	assert.Equal(t, 1.0, requests["active_documents"])
	assert.Empty(t, body["origins"])
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{document.ErrNotFound, http.StatusNotFound},
		{document.ErrClosed, http.StatusGone},
		{sandbox.ErrTimeout, http.StatusGatewayTimeout},
		{sandbox.ErrNoHandler, http.StatusNotFound},
		{store.ErrKindMismatch, http.StatusUnprocessableEntity},
		{dom.ErrRootNode, http.StatusBadRequest},
		{&guest.StatusError{URL: "http://x", Code: 503}, http.StatusBadGateway},
		{errors.Join(document.ErrMainFailed, errors.New("TypeError")), http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := classify(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}
