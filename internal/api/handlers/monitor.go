package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/samyakrajbayar/cyclesafe/internal/logging"
	"github.com/samyakrajbayar/cyclesafe/internal/pipeline"
)

// MonitorHandler exposes start/stop and status over the pipeline supervisor
type MonitorHandler struct {
	supervisor *pipeline.Supervisor
}

func NewMonitorHandler(supervisor *pipeline.Supervisor) *MonitorHandler {
	return &MonitorHandler{supervisor: supervisor}
}

// Start activates the pipeline. Starting an already active monitor succeeds
// without doing anything.
func (h *MonitorHandler) Start(c *gin.Context) {
	logging.Info(c).Msg("Monitor start requested")
	h.supervisor.Start()
	c.JSON(http.StatusOK, gin.H{"state": h.supervisor.State().String()})
}

// Stop deactivates the pipeline and waits for the workers to finish. This can
// take up to one audio chunk.
func (h *MonitorHandler) Stop(c *gin.Context) {
	logging.Info(c).Msg("Monitor stop requested")
	h.supervisor.Stop()
	c.JSON(http.StatusOK, gin.H{"state": h.supervisor.State().String()})
}

func (h *MonitorHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.supervisor.Status())
}

// Sources reports per-sensor connection health and throughput
func (h *MonitorHandler) Sources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sources": h.supervisor.Status().Sources})
}
