package monitoring

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/uihost/internal/abi"
	"github.com/GriffinCanCode/uihost/internal/sandbox"
	"github.com/GriffinCanCode/uihost/internal/store"
)

func TestPointerMetrics(t *testing.T) {
	m := NewMetrics()
	s := store.New().WithObserver(m)

	s.OpenFrame()
	s.CreateRGBA(store.RGBA{R: 1, A: 1})
	s.CreateBoolean(true)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.Allocations.WithLabelValues("integer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PointersLive.WithLabelValues("composite")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PointersLive.WithLabelValues("boolean")))

	s.CloseFrame()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PointersLive.WithLabelValues("integer")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Frees.WithLabelValues("integer")))
}

func TestGuestCallMetrics(t *testing.T) {
	m := NewMetrics()
	m.GuestCall(sandbox.EngineWasm, "main", time.Millisecond, nil)
	m.GuestCall(sandbox.EngineWasm, "recompute", time.Millisecond, sandbox.ErrNoExport)
	m.GuestCall(sandbox.EngineJS, "event", time.Millisecond, sandbox.ErrTimeout)
	m.GuestCall(sandbox.EngineJS, "main", time.Millisecond, errors.Join(errors.New("get_i32"), abi.ErrNullHandle))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GuestCalls.WithLabelValues("wasm", "main")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GuestTraps.WithLabelValues("js", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GuestTraps.WithLabelValues("js", "bad_handle")))

	snap := m.Snapshot()
	assert.Equal(t, int64(4), snap.GuestCalls)
	assert.Equal(t, int64(2), snap.GuestTraps, "missing exports are not traps")
}

func TestTrapCause(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{store.ErrNotLive, "stale_handle"},
		{store.ErrKindMismatch, "kind_mismatch"},
		{abi.ErrFrameUnderflow, "frame"},
		{sandbox.ErrClosed, "closed"},
		{errors.New("unreachable"), "other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, trapCause(tt.err), tt.err.Error())
	}
}

func TestDocumentMetricsAndTotals(t *testing.T) {
	m := NewMetrics()
	m.DocumentOpened(sandbox.EngineWasm)
	m.DocumentOpened(sandbox.EngineJS)
	m.DocumentClosed(sandbox.EngineWasm)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.DocumentsActive.WithLabelValues("wasm")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocumentsTotal.WithLabelValues("wasm")))
	assert.Equal(t, int64(1), m.Snapshot().ActiveDocuments)

	m.WatchTotals(func() Totals { return Totals{Frames: 2, Attachments: 9} })
	n, err := testutil.GatherAndCount(m.Registry(), "uihost_frames_open", "uihost_attachment_edges")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()
	r := gin.New()
	r.Use(Middleware(m))
	r.GET("/documents/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	for _, path := range []string{"/documents/doc_a", "/documents/doc_b", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/documents/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "unmatched", "404")))

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.TotalRequests)
	assert.Equal(t, int64(1), snap.TotalErrors)
}
