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

// Class labels the neural backend reports as road hazards. Everything else
// the network finds is ignored.
var vehicleClasses = map[int]string{
	1: "bicycle",
	2: "car",
	3: "motorbike",
	5: "bus",
	7: "truck",
}

const (
	neuralInputSize     = 416
	neuralConfThreshold = 0.5
)

// NeuralDetector runs a YOLO network through the OpenCV DNN module. This is
// the preferred backend when the weight and config files are present.
type NeuralDetector struct {
	mu         sync.Mutex
	net        gocv.Net
	outputName []string
}

// NewNeuralDetector loads the network from disk
func NewNeuralDetector(weightsPath, configPath string) (*NeuralDetector, error) {
	for _, p := range []string{weightsPath, configPath} {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("model artifact not found at %s: %w", p, err)
		}
	}

	net := gocv.ReadNet(weightsPath, configPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to read network from %s", weightsPath)
	}

	return &NeuralDetector{
		net:        net,
		outputName: getOutputLayerNames(&net),
	}, nil
}

// Detect runs one forward pass and returns sized vehicle detections
func (d *NeuralDetector) Detect(ctx context.Context, frame *models.Frame) ([]models.RawDetection, error) {
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

	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(neuralInputSize, neuralInputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	outputs := d.net.ForwardLayers(d.outputName)
	d.mu.Unlock()

	var detections []models.RawDetection
	for i := range outputs {
		detections = append(detections, d.parseOutput(&outputs[i], frame.Width, frame.Height)...)
		outputs[i].Close()
	}
	return detections, nil
}

// parseOutput decodes one YOLO output layer: rows of
// [cx, cy, w, h, objectness, class scores...] in normalized coordinates.
func (d *NeuralDetector) parseOutput(out *gocv.Mat, frameWidth, frameHeight int) []models.RawDetection {
	var detections []models.RawDetection

	rows := out.Rows()
	cols := out.Cols()
	for r := 0; r < rows; r++ {
		var bestClass int
		var bestScore float32
		for c := 5; c < cols; c++ {
			if score := out.GetFloatAt(r, c); score > bestScore {
				bestScore = score
				bestClass = c - 5
			}
		}

		label, isVehicle := vehicleClasses[bestClass]
		if !isVehicle || bestScore < neuralConfThreshold {
			continue
		}

		centerX := float64(out.GetFloatAt(r, 0)) * float64(frameWidth)
		centerY := float64(out.GetFloatAt(r, 1)) * float64(frameHeight)
		width := float64(out.GetFloatAt(r, 2)) * float64(frameWidth)
		height := float64(out.GetFloatAt(r, 3)) * float64(frameHeight)

		detections = append(detections, models.RawDetection{
			Label: label,
			Box: models.BoundingBox{
				X:      int(centerX - width/2),
				Y:      int(centerY - height/2),
				Width:  int(width),
				Height: int(height),
			},
			Confidence: float64(bestScore),
		})
	}
	return detections
}

// Close releases the network
func (d *NeuralDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

func getOutputLayerNames(net *gocv.Net) []string {
	var names []string
	layerNames := net.GetLayerNames()
	for _, i := range net.GetUnconnectedOutLayers() {
		if i-1 >= 0 && i-1 < len(layerNames) {
			names = append(names, layerNames[i-1])
		}
	}
	return names
}
