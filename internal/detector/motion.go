package detector

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/samyakrajbayar/cyclesafe/internal/models"
)

// MOG2Estimator measures frame motion with background subtraction. Shadow
// pixels are masked out before counting so only real foreground contributes
// to the ratio.
type MOG2Estimator struct {
	mu         sync.Mutex
	subtractor gocv.BackgroundSubtractorMOG2
}

// NewMOG2Estimator creates a background-subtraction motion estimator
func NewMOG2Estimator() *MOG2Estimator {
	return &MOG2Estimator{
		subtractor: gocv.NewBackgroundSubtractorMOG2WithParams(500, 16, true),
	}
}

// Ratio returns the fraction of pixels classified as foreground
func (m *MOG2Estimator) Ratio(frame *models.Frame) (float64, error) {
	mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data)
	if err != nil {
		return 0, fmt.Errorf("failed to create Mat from frame data: %w", err)
	}
	defer mat.Close()

	fg := gocv.NewMat()
	defer fg.Close()

	m.mu.Lock()
	m.subtractor.Apply(mat, &fg)
	m.mu.Unlock()

	// MOG2 marks shadows as 127; keep only full foreground (255)
	bin := gocv.NewMat()
	defer bin.Close()
	gocv.Threshold(fg, &bin, 200, 255, gocv.ThresholdBinary)

	total := frame.Width * frame.Height
	if total == 0 {
		return 0, nil
	}
	return float64(gocv.CountNonZero(bin)) / float64(total), nil
}

// Close releases the background model
func (m *MOG2Estimator) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subtractor.Close()
}
