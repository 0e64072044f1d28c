package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/samyakrajbayar/cyclesafe/internal/pipeline"
)

// AlertsHandler serves the aggregator's read-only views
type AlertsHandler struct {
	supervisor *pipeline.Supervisor
}

func NewAlertsHandler(supervisor *pipeline.Supervisor) *AlertsHandler {
	return &AlertsHandler{supervisor: supervisor}
}

// Latest returns the most recent alert, or an all-clear marker when the
// history is empty.
func (h *AlertsHandler) Latest(c *gin.Context) {
	snapshot := h.supervisor.Snapshot()
	if snapshot.AllClear {
		c.JSON(http.StatusOK, gin.H{"all_clear": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"all_clear": false, "alert": snapshot.Latest})
}

// History returns recorded alerts, most recent first
func (h *AlertsHandler) History(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"alerts": h.supervisor.History()})
}

// Counters returns the per-source detection counters
func (h *AlertsHandler) Counters(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"counters": h.supervisor.Counters()})
}
