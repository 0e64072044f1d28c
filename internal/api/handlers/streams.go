package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/samyakrajbayar/cyclesafe/internal/models"
	"github.com/samyakrajbayar/cyclesafe/internal/services/display"
)

// StreamHandler serves the live MJPEG feeds
type StreamHandler struct {
	sink *display.Sink
}

func NewStreamHandler(sink *display.Sink) *StreamHandler {
	return &StreamHandler{sink: sink}
}

// StreamMJPEG streams the named camera position until the client disconnects
func (h *StreamHandler) StreamMJPEG(c *gin.Context) {
	position := models.Position(c.Param("position"))
	if !position.IsValid() {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown camera position"})
		return
	}

	h.sink.StreamMJPEG(c.Writer, c.Request, position)
}
