package fishnerf

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// RayBundle is a batch of N rays plus, once a sampler has run, their S
// sample depths and materialized 3D sample points. Per-ray data is stored
// in flat slices with stride S (depths) so the whole batch can be pushed
// through the volume query in one call.
type RayBundle struct {
	Origins    []mgl64.Vec3 // N, world frame
	Directions []mgl64.Vec3 // N, unit
	Pixels     []Pixel      // N, the sensor pixel each ray came from

	S       int          // samples per ray; 0 until a sampler runs
	Lengths []Real       // N*S depths, strictly increasing per ray
	Points  []mgl64.Vec3 // N*S, derived: origin + direction*depth
}

// NumRays returns N.
func (rb *RayBundle) NumRays() int { return len(rb.Origins) }

// Depth returns the j-th sample depth of ray i.
func (rb *RayBundle) Depth(i, j int) Real { return rb.Lengths[i*rb.S+j] }

// SetSamples installs per-ray depths (flat, stride s) and recomputes the
// derived sample points. Depths must be strictly increasing per ray.
func (rb *RayBundle) SetSamples(lengths []Real, s int) error {
	n := rb.NumRays()
	if s < 1 || len(lengths) != n*s {
		return fmt.Errorf("expected %d*%d sample depths, got %d", n, s, len(lengths))
	}
	for i := 0; i < n; i++ {
		row := lengths[i*s : (i+1)*s]
		for j, t := range row {
			if !isFinite(t) {
				return fmt.Errorf("ray %d sample %d: non-finite depth %g", i, j, t)
			}
			if j > 0 && t <= row[j-1] {
				return fmt.Errorf("ray %d: depths not strictly increasing at sample %d (%g <= %g)", i, j, t, row[j-1])
			}
		}
	}
	rb.S = s
	rb.Lengths = lengths
	if cap(rb.Points) < n*s {
		rb.Points = make([]mgl64.Vec3, n*s)
	}
	rb.Points = rb.Points[:n*s]
	for i := 0; i < n; i++ {
		o, d := rb.Origins[i], rb.Directions[i]
		for j := 0; j < s; j++ {
			rb.Points[i*s+j] = o.Add(d.Mul(lengths[i*s+j]))
		}
	}
	return nil
}

// RaysFromPixels unprojects a batch of valid pixels through the camera and
// places the resulting rays in the world frame under the given pose. All
// pixels must lie inside the camera's validity mask; forcing a ray through
// an invalid pixel is a contract violation.
func RaysFromPixels(pixels []Pixel, cam *Camera, pose Pose) (*RayBundle, error) {
	rb := &RayBundle{
		Origins:    make([]mgl64.Vec3, len(pixels)),
		Directions: make([]mgl64.Vec3, len(pixels)),
		Pixels:     pixels,
	}
	for i, px := range pixels {
		d, err := cam.Unproject(Real(px.X), Real(px.Y))
		if err != nil {
			return nil, fmt.Errorf("ray %d: %w", i, err)
		}
		w := pose.Apply(nedFromCam(d))
		if n := w.Len(); math.Abs(n-1) > dirNormTol || !isFinite(n) {
			return nil, fmt.Errorf("ray %d: direction %v is not unit length (|d|=%g)", i, w, n)
		}
		rb.Origins[i] = pose.Translation
		rb.Directions[i] = w
	}
	return rb, nil
}
