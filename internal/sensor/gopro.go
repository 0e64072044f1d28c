package sensor

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// GoPro setting IDs and their option values, per the gpControl API
var (
	goproResolutions = map[string]int{"1080p": 9, "720p": 7, "480p": 5}
	goproFrameRates  = map[int]int{30: 5, 60: 8, 120: 11}
	goproFOVs        = map[string]int{"wide": 0, "medium": 1, "narrow": 2, "linear": 4}
)

// GoProController wakes a GoPro over WiFi and switches it into preview
// streaming mode. All control calls are best effort: a failed call is
// logged and the camera keeps streaming at whatever settings it has.
type GoProController struct {
	name    string
	baseURL string
	client  *http.Client
}

// NewGoProController creates a controller for a camera at the given IP
func NewGoProController(name, ip string, timeout time.Duration) *GoProController {
	return &GoProController{
		name:    name,
		baseURL: fmt.Sprintf("http://%s:8080", ip),
		client:  &http.Client{Timeout: timeout},
	}
}

// Connect wakes the camera and restarts its preview stream
func (g *GoProController) Connect(ctx context.Context) error {
	if err := g.get(ctx, "/gp/gpControl/command/system/sleep?p=0"); err != nil {
		return fmt.Errorf("%w: wake %s: %v", ErrSourceUnavailable, g.name, err)
	}

	if err := g.get(ctx, "/gp/gpControl/execute?p1=gpStream&a1=proto_v2&c1=restart"); err != nil {
		return fmt.Errorf("%w: start stream on %s: %v", ErrSourceUnavailable, g.name, err)
	}

	log.Info().Str("camera", g.name).Str("base_url", g.baseURL).Msg("GoPro connected")
	return nil
}

// Configure applies resolution, frame rate and field of view. Unknown values
// fall back to the camera defaults. Errors are returned but callers treat
// them as non-fatal.
func (g *GoProController) Configure(ctx context.Context, resolution string, fps int, fov string) error {
	resValue, ok := goproResolutions[resolution]
	if !ok {
		resValue = goproResolutions["1080p"]
	}
	fpsValue, ok := goproFrameRates[fps]
	if !ok {
		fpsValue = goproFrameRates[30]
	}
	fovValue, ok := goproFOVs[fov]
	if !ok {
		fovValue = goproFOVs["linear"]
	}

	settings := []struct {
		id    int
		value int
		label string
	}{
		{2, resValue, "resolution"},
		{3, fpsValue, "fps"},
		{121, fovValue, "fov"},
	}

	for _, s := range settings {
		path := fmt.Sprintf("/gp/gpControl/setting/%d/%d", s.id, s.value)
		if err := g.get(ctx, path); err != nil {
			log.Warn().
				Err(err).
				Str("camera", g.name).
				Str("setting", s.label).
				Msg("GoPro setting failed, camera keeps defaults")
			return err
		}
	}

	log.Info().
		Str("camera", g.name).
		Str("resolution", resolution).
		Int("fps", fps).
		Str("fov", fov).
		Msg("GoPro configured")
	return nil
}

// Disconnect stops the preview stream. Failures are ignored; the camera
// times out on its own.
func (g *GoProController) Disconnect(ctx context.Context) {
	if err := g.get(ctx, "/gp/gpControl/execute?p1=gpStream&a1=proto_v2&c1=stop"); err != nil {
		log.Debug().Err(err).Str("camera", g.name).Msg("GoPro stream stop failed")
	}
}

func (g *GoProController) get(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("gopro control returned %d for %s", resp.StatusCode, path)
	}
	return nil
}
