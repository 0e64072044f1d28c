package detector

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/samyakrajbayar/cyclesafe/internal/models"
)

// CascadeDetector runs a Haar cascade classifier over grayscale frames.
// This is the simple backend: fast, CPU-only, no model downloads beyond the
// cascade XML.
type CascadeDetector struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
}

// NewCascadeDetector loads the cascade XML from disk
func NewCascadeDetector(modelPath string) (*CascadeDetector, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("cascade model not found at %s: %w", modelPath, err)
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(modelPath) {
		classifier.Close()
		return nil, fmt.Errorf("failed to load cascade model from %s", modelPath)
	}

	return &CascadeDetector{classifier: classifier}, nil
}

// Detect finds vehicle candidates in one frame
func (d *CascadeDetector) Detect(ctx context.Context, frame *models.Frame) ([]models.RawDetection, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to create Mat from frame data: %w", err)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	d.mu.Lock()
	rects := d.classifier.DetectMultiScaleWithParams(gray, 1.1, 3, 0, image.Pt(0, 0), image.Pt(0, 0))
	d.mu.Unlock()

	detections := make([]models.RawDetection, 0, len(rects))
	for _, r := range rects {
		detections = append(detections, models.RawDetection{
			Label: "vehicle",
			Box: models.BoundingBox{
				X:      r.Min.X,
				Y:      r.Min.Y,
				Width:  r.Dx(),
				Height: r.Dy(),
			},
			Confidence: 0.7, // cascades do not score; fixed mid confidence
		})
	}
	return detections, nil
}

// Close releases the classifier
func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifier.Close()
}
