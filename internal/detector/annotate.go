package detector

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"gocv.io/x/gocv"

	"github.com/samyakrajbayar/cyclesafe/internal/models"
)

// Overlay colors per hazard level
var levelColors = map[models.HazardLevel]color.RGBA{
	models.HazardLevelLow:      {R: 0, G: 255, B: 0, A: 255},
	models.HazardLevelMedium:   {R: 255, G: 165, B: 0, A: 255},
	models.HazardLevelHigh:     {R: 255, G: 100, B: 0, A: 255},
	models.HazardLevelCritical: {R: 255, G: 0, B: 0, A: 255},
}

// OverlayAnnotator draws detection boxes, the position banner and the motion
// indicator onto frames before they reach the display sink.
type OverlayAnnotator struct{}

// NewOverlayAnnotator creates the gocv-backed annotator
func NewOverlayAnnotator() *OverlayAnnotator {
	return &OverlayAnnotator{}
}

// Annotate draws in place over frame.Data
func (a *OverlayAnnotator) Annotate(frame *models.Frame, observations []models.HazardObservation, motionRatio float64) {
	mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data)
	if err != nil {
		return
	}
	defer mat.Close()

	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	banner := fmt.Sprintf("%s CAMERA", strings.ToUpper(frame.Position.String()))
	gocv.PutText(&mat, banner, image.Pt(10, 30), gocv.FontHersheySimplex, 1.0, white, 2)
	gocv.PutText(&mat, fmt.Sprintf("Frame: %d", frame.FrameID),
		image.Pt(10, frame.Height-10), gocv.FontHersheySimplex, 0.5, white, 1)

	for _, obs := range observations {
		if obs.Region == nil {
			continue
		}
		c, ok := levelColors[obs.Level]
		if !ok {
			c = white
		}

		r := image.Rect(obs.Region.X, obs.Region.Y,
			obs.Region.X+obs.Region.Width, obs.Region.Y+obs.Region.Height)
		gocv.Rectangle(&mat, r, c, 3)

		label := fmt.Sprintf("%s: %s", strings.ToUpper(obs.Type.String()), strings.ToUpper(obs.Level.String()))
		gocv.PutText(&mat, label, image.Pt(obs.Region.X, obs.Region.Y-10),
			gocv.FontHersheySimplex, 0.7, c, 2)
	}

	if motionRatio > 0 {
		yellow := color.RGBA{R: 255, G: 255, B: 0, A: 255}
		gocv.PutText(&mat, fmt.Sprintf("MOTION: %.2f%%", motionRatio*100),
			image.Pt(10, 60), gocv.FontHersheySimplex, 0.6, yellow, 2)
	}

	copy(frame.Data, mat.ToBytes())
}
