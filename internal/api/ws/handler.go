package ws

import (
	"errors"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/uihost/internal/dom"
	"github.com/GriffinCanCode/uihost/internal/domain/document"
	"github.com/GriffinCanCode/uihost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/uihost/internal/shared/utils"
)

const writeWait = 10 * time.Second

// Message is a client command
type Message struct {
	Type   string  `json:"type"`
	Width  float32 `json:"width,omitempty"`
	Height float32 `json:"height,omitempty"`
	Node   string  `json:"node,omitempty"`
	Event  int32   `json:"event,omitempty"`
}

// Reply is a server frame
type Reply struct {
	Type       string          `json:"type"`
	Document   string          `json:"document,omitempty"`
	Width      float32         `json:"width,omitempty"`
	Height     float32         `json:"height,omitempty"`
	Applied    int             `json:"applied,omitempty"`
	Operations []dom.Operation `json:"operations,omitempty"`
	Message    string          `json:"message,omitempty"`
	Timestamp  int64           `json:"timestamp"`
}

// Handler manages document streams
type Handler struct {
	manager  *document.Manager
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	upgrader websocket.Upgrader
	width    float32
	height   float32
}

// NewHandler creates a stream handler. width and height are the viewport
// used until a client asks for another.
func NewHandler(manager *document.Manager, metrics *monitoring.Metrics, width, height float32) *Handler {
	return &Handler{
		manager: manager,
		metrics: metrics,
		logger:  zap.NewNop(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // CORS middleware owns origin policy
			},
		},
		width:  width,
		height: height,
	}
}

// WithLogger sets the logger
func (h *Handler) WithLogger(l *zap.Logger) *Handler {
	if l != nil {
		h.logger = l
	}
	return h
}

// stream is one connection's state
type stream struct {
	conn   *websocket.Conn
	doc    *document.Document
	width  float32
	height float32
}

// HandleConnection upgrades the request and serves commands until the
// client leaves or the document closes
func (h *Handler) HandleConnection(c *gin.Context) {
	docID := c.Param("id")
	if err := utils.ValidateID(docID, "document_id", true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "bad_request"})
		return
	}
	doc, err := h.manager.Get(docID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "document_not_found"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(utils.MaxMessageSize)

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}
	log := h.logger.With(zap.String("document", docID))
	log.Debug("Stream opened")

	s := &stream{conn: conn, doc: doc, width: h.width, height: h.height}
	if err := h.send(s, Reply{Type: "welcome", Document: docID}); err != nil {
		return
	}

	ctx := c.Request.Context()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("Stream read failed", zap.Error(err))
			}
			return
		}

		var msg Message
		if err := sonic.Unmarshal(data, &msg); err != nil {
			h.record("in", "invalid")
			if h.sendError(s, "invalid message: "+err.Error()) != nil {
				return
			}
			continue
		}
		h.record("in", label(msg.Type))

		var reply Reply
		switch msg.Type {
		case "layout":
			w, ht := s.width, s.height
			if msg.Width != 0 || msg.Height != 0 {
				w, ht = msg.Width, msg.Height
			}
			if err = utils.ValidateViewport(w, ht); err == nil {
				s.width, s.height = w, ht
				reply, err = h.layout(s, 0)
			}
		case "recompute":
			var applied int
			if applied, err = doc.Recompute(ctx); err == nil {
				reply, err = h.layout(s, applied)
			}
		case "event":
			var applied int
			if applied, err = doc.Dispatch(ctx, msg.Node, msg.Event); err == nil {
				reply, err = h.layout(s, applied)
			}
		case "ping":
			reply = Reply{Type: "pong"}
		default:
			err = errors.New("unknown message type")
		}

		if err != nil {
			if h.sendError(s, err.Error()) != nil {
				return
			}
			if errors.Is(err, document.ErrClosed) {
				h.close(s, "document closed")
				return
			}
			continue
		}
		if h.send(s, reply) != nil {
			return
		}
	}
}

func (h *Handler) layout(s *stream, applied int) (Reply, error) {
	ops, err := s.doc.Layout(s.width, s.height)
	if err != nil {
		return Reply{}, err
	}
	return Reply{
		Type:       "operations",
		Width:      s.width,
		Height:     s.height,
		Applied:    applied,
		Operations: ops,
	}, nil
}

func (h *Handler) send(s *stream, r Reply) error {
	r.Timestamp = time.Now().Unix()
	data, err := sonic.Marshal(r)
	if err != nil {
		return err
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	h.record("out", r.Type)
	return nil
}

func (h *Handler) sendError(s *stream, msg string) error {
	return h.send(s, Reply{Type: "error", Message: msg})
}

func (h *Handler) close(s *stream, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

func label(msgType string) string {
	switch msgType {
	case "layout", "recompute", "event", "ping":
		return msgType
	default:
		return "unknown"
	}
}

func (h *Handler) record(direction, msgType string) {
	if h.metrics != nil {
		h.metrics.RecordWSMessage(direction, msgType)
	}
}
