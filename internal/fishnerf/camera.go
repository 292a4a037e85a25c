package fishnerf

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog/log"
)

// Pixel addresses one sensor cell; X is the column, Y is the row,
// origin top-left (image convention).
type Pixel struct {
	X, Y int
}

// Camera is a linear-sphere (equidistant fisheye) lens model: the angle
// between a ray and the optical axis grows linearly with the pixel's
// distance from the principal point, up to FOV/2 at the rim of the image
// circle. The camera frame has +Z along the optical axis, +X to the right
// and +Y down.
//
// Configuration is immutable; the validity mask is computed once in the
// constructor and reused.
type Camera struct {
	FOVDegree     Real
	Width, Height int

	// cached
	cx, cy   Real // principal point
	rMax     Real // image circle radius in pixels
	thetaMax Real // FOV/2 in radians
	mask     []bool
	valid    []Pixel
}

// NewCamera validates the configuration and precomputes the validity mask.
// A configuration whose valid region is empty is rejected here, not at
// query time.
func NewCamera(fovDegree Real, width, height int) (*Camera, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("sensor shape must be positive, got %dx%d", width, height)
	}
	if fovDegree <= 0 || fovDegree > 360 {
		return nil, fmt.Errorf("field of view must be in (0, 360] degrees, got %g", fovDegree)
	}
	c := &Camera{
		FOVDegree: fovDegree,
		Width:     width,
		Height:    height,
		cx:        Real(width-1) * 0.5,
		cy:        Real(height-1) * 0.5,
		thetaMax:  fovDegree * math.Pi / 360.0,
	}
	c.rMax = math.Min(c.cx, c.cy)
	if c.rMax <= 0 {
		// 1xN or Nx1 sensors have a degenerate image circle
		c.rMax = 0.5
	}

	c.mask = make([]bool, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx := Real(x) - c.cx
			dy := Real(y) - c.cy
			if math.Hypot(dx, dy) <= c.rMax {
				c.mask[y*width+x] = true
				c.valid = append(c.valid, Pixel{X: x, Y: y})
			}
		}
	}
	if len(c.valid) == 0 {
		return nil, fmt.Errorf("camera with fov=%g and shape %dx%d has an empty valid region", fovDegree, width, height)
	}
	log.Debug().Float64("fov", fovDegree).Int("width", width).Int("height", height).
		Int("validPixels", len(c.valid)).Msg("created camera")
	return c, nil
}

// Unproject maps a (possibly sub-pixel) sensor coordinate to the unit ray
// direction observed by that coordinate, in the camera frame. Coordinates
// outside the sensor bounds and coordinates outside the image circle are
// both errors; the messages distinguish the two.
func (c *Camera) Unproject(x, y Real) (mgl64.Vec3, error) {
	if x < 0 || y < 0 || x > Real(c.Width-1) || y > Real(c.Height-1) {
		return mgl64.Vec3{}, fmt.Errorf("pixel (%g, %g) outside sensor bounds %dx%d", x, y, c.Width, c.Height)
	}
	dx := x - c.cx
	dy := y - c.cy
	r := math.Hypot(dx, dy)
	if r > c.rMax {
		return mgl64.Vec3{}, fmt.Errorf("pixel (%g, %g) outside the valid image circle (r=%g > %g)", x, y, r, c.rMax)
	}
	if r == 0 {
		return mgl64.Vec3{0, 0, 1}, nil
	}
	theta := (r / c.rMax) * c.thetaMax
	sinT, cosT := math.Sincos(theta)
	// phi from the in-plane offset; no trig needed beyond the ratio
	return mgl64.Vec3{sinT * dx / r, sinT * dy / r, cosT}, nil
}

// Project is the inverse of Unproject: a unit direction in the camera frame
// to sensor coordinates. Directions beyond FOV/2 off the optical axis have
// no pixel and return an error.
func (c *Camera) Project(dir mgl64.Vec3) (x, y Real, err error) {
	n := dir.Len()
	if math.Abs(n-1) > dirNormTol || !isFinite(n) {
		return 0, 0, fmt.Errorf("direction must be unit length, |d|=%g", n)
	}
	theta := math.Acos(clamp(dir.Z(), -1, 1))
	if theta > c.thetaMax {
		return 0, 0, fmt.Errorf("direction %g rad off axis exceeds half-fov %g", theta, c.thetaMax)
	}
	r := theta / c.thetaMax * c.rMax
	planar := math.Hypot(dir.X(), dir.Y())
	if planar == 0 {
		return c.cx, c.cy, nil
	}
	return c.cx + r*dir.X()/planar, c.cy + r*dir.Y()/planar, nil
}

// ValidMask returns the cached per-pixel validity grid, row-major.
func (c *Camera) ValidMask() []bool { return c.mask }

// Valid reports whether the integer pixel lies inside the image circle.
func (c *Camera) Valid(p Pixel) bool {
	if p.X < 0 || p.Y < 0 || p.X >= c.Width || p.Y >= c.Height {
		return false
	}
	return c.mask[p.Y*c.Width+p.X]
}

// AllValidPixels enumerates every pixel inside the image circle, row-major.
// The returned slice is shared; callers must not mutate it.
func (c *Camera) AllValidPixels() []Pixel { return c.valid }

// SampleValidPixels draws k pixels uniformly (with replacement) from the
// valid region.
func (c *Camera) SampleValidPixels(k int, rng *rand.Rand) []Pixel {
	out := make([]Pixel, k)
	for i := range out {
		out[i] = c.valid[rng.Intn(len(c.valid))]
	}
	return out
}
