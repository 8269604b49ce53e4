package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/uihost/internal/domain/document"
	"github.com/GriffinCanCode/uihost/internal/guest"
	"github.com/GriffinCanCode/uihost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/uihost/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/uihost/internal/shared/utils"
)

// Version is reported by the root and health endpoints
const Version = "0.3.0"

var (
	errLocalSource    = errors.New("local sources must live under the guests directory")
	errInvalidRequest = errors.New("invalid request")
)

// Options tunes the handlers
type Options struct {
	ViewportWidth  float32
	ViewportHeight float32
	// GuestsDir bounds the local paths a create request may name. Empty
	// disables local sources.
	GuestsDir string
}

// Handlers contains all HTTP handlers
type Handlers struct {
	manager *document.Manager
	loader  *guest.Loader
	metrics *monitoring.Metrics
	options Options
	logger  *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(manager *document.Manager, loader *guest.Loader, metrics *monitoring.Metrics, options Options) *Handlers {
	return &Handlers{
		manager: manager,
		loader:  loader,
		metrics: metrics,
		options: options,
		logger:  zap.NewNop(),
	}
}

// WithLogger sets the logger
func (h *Handlers) WithLogger(l *zap.Logger) *Handlers {
	if l != nil {
		h.logger = l
	}
	return h
}

// Register mounts every route on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/stats", h.Stats)

	docs := r.Group("/documents")
	docs.GET("", h.ListDocuments)
	docs.POST("", h.CreateDocument)
	docs.GET("/:id", h.GetDocument)
	docs.DELETE("/:id", h.CloseDocument)
	docs.GET("/:id/layout", h.Layout)
	docs.GET("/:id/html", h.HTML)
	docs.GET("/:id/nodes/:key", h.GetNode)
	docs.DELETE("/:id/nodes/:key", h.DestroyNode)
	docs.POST("/:id/recompute", h.Recompute)
	docs.POST("/:id/events", h.Dispatch)
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{
		"status":  "online",
		"service": "uihost",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{
		"status":    "healthy",
		"version":   Version,
		"documents": h.manager.Stats(),
	})
}

// ListDocuments lists every hosted document
func (h *Handlers) ListDocuments(c *gin.Context) {
	docs := h.manager.List()
	infos := make([]document.Info, 0, len(docs))
	for _, doc := range docs {
		infos = append(infos, doc.Info())
	}
	writeJSON(c, http.StatusOK, gin.H{
		"documents": infos,
		"stats":     h.manager.Stats(),
	})
}

// CreateRequest names a guest to load by path or URL
type CreateRequest struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

// CreateDocument loads a guest and runs its entry point. The body is either
// the raw guest (optionally compressed) or a JSON CreateRequest.
func (h *Handlers) CreateDocument(c *gin.Context) {
	var (
		src *guest.Source
		err error
	)
	if c.ContentType() == gin.MIMEJSON {
		src, err = h.sourceFromRequest(c)
	} else {
		src, err = h.sourceFromBody(c)
	}
	if err != nil {
		if errors.Is(err, errLocalSource) {
			writeJSON(c, http.StatusForbidden, errorResponse{Error: err.Error(), Code: "forbidden_source"})
			return
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(c, http.StatusRequestEntityTooLarge, errorResponse{Error: err.Error(), Code: "too_large"})
			return
		}
		fail(c, err)
		return
	}

	doc, err := h.manager.Create(c.Request.Context(), src)
	if err != nil {
		fail(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, doc.Info())
}

func (h *Handlers) sourceFromBody(c *gin.Context) (*guest.Source, error) {
	name := c.Query("name")
	if name != "" {
		if err := utils.ValidateName(name, "name"); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidRequest, err)
		}
	}
	data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, utils.MaxGuestSize))
	if err != nil {
		return nil, err
	}
	return h.loader.FromBytes(name, data)
}

func (h *Handlers) sourceFromRequest(c *gin.Context) (*guest.Source, error) {
	data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, utils.MaxRequestSize))
	if err != nil {
		return nil, err
	}
	var req CreateRequest
	if err := sonic.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", errInvalidRequest, err)
	}
	if req.Source == "" {
		return nil, fmt.Errorf("%w: source is required", errInvalidRequest)
	}

	ref := req.Source
	if !isRemote(ref) {
		if ref, err = h.localPath(ref); err != nil {
			return nil, err
		}
	}
	src, err := h.loader.Load(c.Request.Context(), ref)
	if err != nil {
		return nil, err
	}
	if req.Name != "" {
		if err := utils.ValidateName(req.Name, "name"); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidRequest, err)
		}
		src.Name = req.Name
	}
	return src, nil
}

// localPath resolves ref inside the guests directory
func (h *Handlers) localPath(ref string) (string, error) {
	if h.options.GuestsDir == "" {
		return "", errLocalSource
	}
	root, err := filepath.Abs(h.options.GuestsDir)
	if err != nil {
		return "", err
	}
	if root, err = filepath.EvalSymlinks(root); err != nil {
		return "", err
	}
	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path = filepath.Clean(path)
	if !within(root, path) {
		return "", fmt.Errorf("%w: %s", errLocalSource, ref)
	}
	// links inside the directory must not lead out of it
	if path, err = filepath.EvalSymlinks(path); err != nil {
		return "", err
	}
	if !within(root, path) {
		return "", fmt.Errorf("%w: %s", errLocalSource, ref)
	}
	return path, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func isRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// document resolves the :id parameter, writing the failure itself
func (h *Handlers) document(c *gin.Context) (*document.Document, bool) {
	docID := c.Param("id")
	if err := utils.ValidateID(docID, "document_id", true); err != nil {
		badRequest(c, err.Error())
		return nil, false
	}
	tracing.Tag(c.Request.Context(), "document", docID)
	doc, err := h.manager.Get(docID)
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return doc, true
}

// GetDocument describes one document
func (h *Handlers) GetDocument(c *gin.Context) {
	doc, ok := h.document(c)
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, doc.Info())
}

// CloseDocument destroys a document and releases its guest
func (h *Handlers) CloseDocument(c *gin.Context) {
	doc, ok := h.document(c)
	if !ok {
		return
	}
	if err := h.manager.Close(c.Request.Context(), doc.ID.String()); err != nil {
		fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"success":     true,
		"document_id": doc.ID,
	})
}

// Layout returns paint operations for the requested viewport
func (h *Handlers) Layout(c *gin.Context) {
	doc, ok := h.document(c)
	if !ok {
		return
	}
	width, err := dimension(c, "width", h.options.ViewportWidth)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	height, err := dimension(c, "height", h.options.ViewportHeight)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	ops, err := doc.Layout(width, height)
	if err != nil {
		fail(c, err)
		return
	}
	body := gin.H{
		"width":      width,
		"height":     height,
		"operations": ops,
	}

	// Paint lists are deterministic for a given tree and viewport
	if etag, err := utils.DefaultHasher().HashJSON(body); err == nil {
		etag = `"` + utils.ShortHash(etag) + `"`
		c.Header("ETag", etag)
		if c.GetHeader("If-None-Match") == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}
	writeJSON(c, http.StatusOK, body)
}

func dimension(c *gin.Context, name string, fallback float32) (float32, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 32)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	return float32(v), nil
}

// HTML renders the sanitized document tree
func (h *Handlers) HTML(c *gin.Context) {
	doc, ok := h.document(c)
	if !ok {
		return
	}
	html, err := doc.HTML()
	if err != nil {
		fail(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// GetNode describes a node by key
func (h *Handlers) GetNode(c *gin.Context) {
	doc, ok := h.document(c)
	if !ok {
		return
	}
	info, err := doc.Node(c.Param("key"))
	if err != nil {
		fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, info)
}

// DestroyNode removes a node and its subtree
func (h *Handlers) DestroyNode(c *gin.Context) {
	doc, ok := h.document(c)
	if !ok {
		return
	}
	removed, err := doc.Destroy(c.Param("key"))
	if err != nil {
		fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"removed": removed})
}

// Recompute re-runs stale dynamic bindings
func (h *Handlers) Recompute(c *gin.Context) {
	doc, ok := h.document(c)
	if !ok {
		return
	}
	applied, err := doc.Recompute(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"applied": applied})
}

// EventRequest fires a guest event on a node
type EventRequest struct {
	Node  string `json:"node"`
	Event int32  `json:"event"`
}

// Dispatch fires an event and recomputes what it invalidated
func (h *Handlers) Dispatch(c *gin.Context) {
	doc, ok := h.document(c)
	if !ok {
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, utils.MaxRequestSize))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	var req EventRequest
	if err := sonic.Unmarshal(data, &req); err != nil {
		badRequest(c, "invalid JSON: "+err.Error())
		return
	}
	if req.Node == "" {
		badRequest(c, "node is required")
		return
	}

	applied, err := doc.Dispatch(c.Request.Context(), req.Node, req.Event)
	if err != nil {
		fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"applied": applied})
}
