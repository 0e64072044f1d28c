package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	MonitorID string
	Version   string
}

func NewHealthHandler(monitorID, version string) *HealthHandler {
	return &HealthHandler{MonitorID: monitorID, Version: version}
}

type HealthResponse struct {
	Status    string `json:"status"`
	MonitorID string `json:"monitor_id"`
}

type MonitorInfoResponse struct {
	MonitorID    string   `json:"monitor_id"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		MonitorID: h.MonitorID,
	})
}

func (h *HealthHandler) MonitorInfo(c *gin.Context) {
	c.JSON(http.StatusOK, MonitorInfoResponse{
		MonitorID: h.MonitorID,
		Version:   h.Version,
		Capabilities: []string{
			"vehicle_detection",
			"motion_detection",
			"audio_hazards",
			"mjpeg_streaming",
		},
	})
}
