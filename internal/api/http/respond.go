package http

import (
	"errors"
	"io/fs"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/uihost/internal/abi"
	"github.com/GriffinCanCode/uihost/internal/dom"
	"github.com/GriffinCanCode/uihost/internal/domain/document"
	"github.com/GriffinCanCode/uihost/internal/guest"
	"github.com/GriffinCanCode/uihost/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/uihost/internal/sandbox"
	"github.com/GriffinCanCode/uihost/internal/shared/slot"
	"github.com/GriffinCanCode/uihost/internal/store"
)

const jsonContentType = "application/json; charset=utf-8"

// errorResponse is the body of every failed request
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeJSON encodes v with sonic
func writeJSON(c *gin.Context, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		c.Error(err)
		c.Data(http.StatusInternalServerError, jsonContentType, []byte(`{"error":"encoding failed","code":"internal"}`))
		return
	}
	c.Data(status, jsonContentType, data)
}

// fail writes err with the status it maps to
func fail(c *gin.Context, err error) {
	status, code := classify(err)
	if code != "" {
		tracing.Tag(c.Request.Context(), "error.code", code)
	}
	if status >= http.StatusInternalServerError {
		c.Error(err)
	}
	writeJSON(c, status, errorResponse{Error: err.Error(), Code: code})
	c.Abort()
}

// badRequest rejects malformed input
func badRequest(c *gin.Context, msg string) {
	writeJSON(c, http.StatusBadRequest, errorResponse{Error: msg, Code: "bad_request"})
	c.Abort()
}

func classify(err error) (int, string) {
	var status *guest.StatusError
	switch {
	case errors.Is(err, document.ErrNotFound):
		return http.StatusNotFound, "document_not_found"
	case errors.Is(err, dom.ErrNodeNotLive):
		return http.StatusNotFound, "node_not_live"
	case errors.Is(err, slot.ErrMalformedKey):
		return http.StatusBadRequest, "malformed_key"
	case errors.Is(err, document.ErrInvalidViewport):
		return http.StatusBadRequest, "invalid_viewport"
	case errors.Is(err, dom.ErrRootNode):
		return http.StatusBadRequest, "root_node"
	case errors.Is(err, document.ErrClosed):
		return http.StatusGone, "document_closed"
	case errors.Is(err, sandbox.ErrNoHandler):
		return http.StatusNotFound, "no_handler"
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound, "source_not_found"
	case errors.Is(err, errInvalidRequest), errors.Is(err, guest.ErrInvalid):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, guest.ErrUnsupported):
		return http.StatusUnsupportedMediaType, "unsupported_guest"
	case errors.Is(err, document.ErrNoEngine):
		return http.StatusUnprocessableEntity, "no_engine"
	case errors.As(err, &status):
		return http.StatusBadGateway, "fetch_failed"
	case errors.Is(err, sandbox.ErrTimeout):
		return http.StatusGatewayTimeout, "guest_timeout"
	case errors.Is(err, store.ErrNotLive), errors.Is(err, store.ErrKindMismatch),
		errors.Is(err, store.ErrBadShape), errors.Is(err, abi.ErrNullHandle),
		errors.Is(err, abi.ErrBadHandle), errors.Is(err, abi.ErrFrameUnderflow),
		errors.Is(err, dom.ErrUnknownKind), errors.Is(err, dom.ErrCycle):
		return http.StatusUnprocessableEntity, "guest_trap"
	case errors.Is(err, sandbox.ErrPoolClosed), errors.Is(err, sandbox.ErrClosed):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, document.ErrMainFailed):
		return http.StatusUnprocessableEntity, "guest_main"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
