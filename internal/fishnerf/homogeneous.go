package fishnerf

import (
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// HomogeneousVolume is the simplest conforming scene representation: one
// learnable density and one learnable color shared by all of space. Density
// goes through softplus and color channels through sigmoid so gradient
// descent cannot push them out of range. Mostly useful as a calibration
// target and in tests, where its render has a closed form.
type HomogeneousVolume struct {
	params [4]Real // raw: density, r, g, b
	grads  [4]Real
	mu     sync.Mutex
}

// NewHomogeneousVolume starts the volume at the given activated density
// (> 0) and color (channels in (0,1)).
func NewHomogeneousVolume(density Real, color mgl64.Vec3) (*HomogeneousVolume, error) {
	if density <= 0 {
		return nil, fmt.Errorf("initial density must be positive, got %g", density)
	}
	v := &HomogeneousVolume{}
	v.params[0] = softplusInv(density)
	for c := 0; c < 3; c++ {
		if color[c] <= 0 || color[c] >= 1 {
			return nil, fmt.Errorf("initial color channel %d must be in (0,1), got %g", c, color[c])
		}
		v.params[1+c] = sigmoidInv(color[c])
	}
	return v, nil
}

func (v *HomogeneousVolume) Query(points, dirs []mgl64.Vec3) ([]Real, []mgl64.Vec3, error) {
	if err := checkQueryBatch(points, dirs); err != nil {
		return nil, nil, err
	}
	sigma := make([]Real, len(points))
	rgb := make([]mgl64.Vec3, len(points))
	s := softplus(v.params[0])
	col := mgl64.Vec3{sigmoid(v.params[1]), sigmoid(v.params[2]), sigmoid(v.params[3])}
	for i := range points {
		sigma[i] = s
		rgb[i] = col
	}
	return sigma, rgb, nil
}

func (v *HomogeneousVolume) Params() []Real { return v.params[:] }
func (v *HomogeneousVolume) Grads() []Real  { return v.grads[:] }

func (v *HomogeneousVolume) AccumulateGrad(points, dirs []mgl64.Vec3, dSigma []Real, dRGB []mgl64.Vec3) error {
	if len(dSigma) != len(points) || len(dRGB) != len(points) {
		return fmt.Errorf("gradient batch size mismatch: %d points, %d dSigma, %d dRGB", len(points), len(dSigma), len(dRGB))
	}
	var acc [4]Real
	for i := range points {
		acc[0] += dSigma[i]
		for c := 0; c < 3; c++ {
			acc[1+c] += dRGB[i][c]
		}
	}
	v.mu.Lock()
	v.grads[0] += acc[0] * softplusGrad(v.params[0])
	for c := 0; c < 3; c++ {
		v.grads[1+c] += acc[1+c] * sigmoidGrad(v.params[1+c])
	}
	v.mu.Unlock()
	return nil
}

func (v *HomogeneousVolume) ZeroGrad() {
	v.mu.Lock()
	v.grads = [4]Real{}
	v.mu.Unlock()
}
