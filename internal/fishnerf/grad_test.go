package fishnerf

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

// scalarLoss renders one forward pass and reduces it to sum(colors . ones),
// the scalar both the analytic and the finite-difference gradients are
// taken of.
func scalarLoss(t *testing.T, vol ImplicitVolume, rb *RayBundle, sampler Sampler) Real {
	t.Helper()
	out, err := NewEmissionAbsorptionRenderer(nil).Render(rb, sampler, vol, nil)
	if err != nil {
		t.Fatal(err)
	}
	total := 0.0
	for _, c := range out.Colors {
		total += c.X() + c.Y() + c.Z()
	}
	return total
}

func analyticGrads(t *testing.T, vol ImplicitVolume, rb *RayBundle, sampler Sampler) []Real {
	t.Helper()
	out, err := NewEmissionAbsorptionRenderer(nil).Render(rb, sampler, vol, nil)
	if err != nil {
		t.Fatal(err)
	}
	vol.ZeroGrad()
	dColors := make([]mgl64.Vec3, len(out.Colors))
	for i := range dColors {
		dColors[i] = mgl64.Vec3{1, 1, 1}
	}
	if err := out.Backward(vol, dColors, nil); err != nil {
		t.Fatal(err)
	}
	grads := make([]Real, len(vol.Grads()))
	copy(grads, vol.Grads())
	return grads
}

func checkFiniteDifference(t *testing.T, vol ImplicitVolume, rb *RayBundle, sampler Sampler, paramIdx []int) {
	t.Helper()
	grads := analyticGrads(t, vol, rb, sampler)
	const eps = 1e-5
	params := vol.Params()
	for _, pi := range paramIdx {
		orig := params[pi]
		params[pi] = orig + eps
		lp := scalarLoss(t, vol, rb, sampler)
		params[pi] = orig - eps
		lm := scalarLoss(t, vol, rb, sampler)
		params[pi] = orig

		fd := (lp - lm) / (2 * eps)
		diff := math.Abs(fd - grads[pi])
		scale := math.Max(math.Abs(fd), math.Abs(grads[pi]))
		if diff > 1e-6+1e-4*scale {
			t.Fatalf("param %d: analytic %.10g vs finite difference %.10g", pi, grads[pi], fd)
		}
	}
}

func TestGradient_Homogeneous(t *testing.T) {
	vol, err := NewHomogeneousVolume(0.8, mgl64.Vec3{0.3, 0.6, 0.2})
	if err != nil {
		t.Fatal(err)
	}
	sampler, err := NewStratifiedSampler(0.5, 2.5, 16, false)
	if err != nil {
		t.Fatal(err)
	}
	rb := bundleOf(3)
	rb.Directions[1] = mgl64.Vec3{0, 1, 0}
	rb.Directions[2] = mgl64.Vec3{0, 0, 1}
	checkFiniteDifference(t, vol, rb, sampler, []int{0, 1, 2, 3})
}

func TestGradient_VoxelGrid(t *testing.T) {
	vol, err := NewVoxelGridVolume(mgl64.Vec3{0, 0, 0}, 2.0, 3)
	if err != nil {
		t.Fatal(err)
	}
	// give the grid some structure so the gradients are not symmetric
	params := vol.Params()
	for i := range params {
		params[i] += 0.05 * Real(i%7)
	}
	sampler, err := NewStratifiedSampler(0.5, 2.5, 12, false)
	if err != nil {
		t.Fatal(err)
	}
	// a ray crossing the grid: origin outside, direction +X through center
	rb := &RayBundle{
		Origins:    []mgl64.Vec3{{-1.5, 0.1, -0.2}},
		Directions: []mgl64.Vec3{{1, 0, 0}},
	}
	// probe density nodes and color nodes along the ray, plus one node the
	// ray never touches (both gradients must be zero there)
	nodes := len(params) / 4
	checkFiniteDifference(t, vol, rb, sampler, []int{0, 4, 13, 22, nodes + 4*3, nodes + 13*3 + 1})
}

func TestGradient_PerturbationMovesRenderedColor(t *testing.T) {
	// perturbing a parameter changes the render in the direction the
	// analytic gradient predicts
	vol, err := NewHomogeneousVolume(1.0, mgl64.Vec3{0.5, 0.5, 0.5})
	if err != nil {
		t.Fatal(err)
	}
	sampler, err := NewStratifiedSampler(0.5, 2.0, 8, false)
	if err != nil {
		t.Fatal(err)
	}
	rb := bundleOf(1)
	base := scalarLoss(t, vol, rb, sampler)
	grads := analyticGrads(t, vol, rb, sampler)

	const step = 1e-3
	vol.Params()[0] += step
	moved := scalarLoss(t, vol, rb, sampler)
	predicted := base + grads[0]*step
	if math.Abs(moved-predicted) > 1e-5 {
		t.Fatalf("loss moved to %.10g, first-order prediction %.10g", moved, predicted)
	}
}
