package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/uihost/internal/domain/document"
	"github.com/GriffinCanCode/uihost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/uihost/internal/infrastructure/resilience"
)

// StatsSnapshot aggregates request metrics, document totals and fetch
// breaker state
type StatsSnapshot struct {
	Timestamp time.Time               `json:"timestamp"`
	Requests  *monitoring.Snapshot    `json:"requests,omitempty"`
	Documents document.ManagerStats   `json:"documents"`
	Totals    document.Totals         `json:"totals"`
	Origins   []resilience.NamedState `json:"origins"`
}

// Stats returns the aggregated snapshot
func (h *Handlers) Stats(c *gin.Context) {
	snap := StatsSnapshot{
		Timestamp: time.Now(),
		Documents: h.manager.Stats(),
		Totals:    h.manager.Totals(),
		Origins:   []resilience.NamedState{},
	}
	if h.metrics != nil {
		s := h.metrics.Snapshot()
		snap.Requests = &s
	}
	if h.loader != nil {
		if origins := h.loader.Origins(); origins != nil {
			snap.Origins = origins
		}
	}
	writeJSON(c, http.StatusOK, snap)
}
