package fishnerf

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog/log"
)

// VoxelGridVolume is a learnable regular grid: raw density and raw RGB per
// node, trilinearly interpolated at query points and then activated
// (softplus for density, sigmoid for color) so the interpolated field stays
// smooth and in range. Nodes span a cube of side Extent centered at Center;
// points outside the cube read as empty space (zero density, black).
//
// Parameters live in one flat buffer: the first Nx*Ny*Nz entries are raw
// densities, the rest raw colors with stride 3 per node. Gradient scatters
// are shard-locked so many rays can back-propagate concurrently.
type VoxelGridVolume struct {
	Center     mgl64.Vec3
	Extent     Real
	Nx, Ny, Nz int

	params []Real
	grads  []Real
	locks  shardLocks

	// cached bounds & mapping
	min, max         mgl64.Vec3
	invSpan          mgl64.Vec3
	strideX, strideY int
	colorBase        int
}

// NewVoxelGridVolume allocates the grid. Resolution must be at least 2 per
// axis (trilinear interpolation needs a cell) and the extent positive.
// Densities start near zero and colors at mid gray.
func NewVoxelGridVolume(center mgl64.Vec3, extent Real, res int) (*VoxelGridVolume, error) {
	if res < 2 {
		return nil, fmt.Errorf("grid resolution must be at least 2, got %d", res)
	}
	if extent <= 0 {
		return nil, fmt.Errorf("grid extent must be positive, got %g", extent)
	}
	nodes := res * res * res
	v := &VoxelGridVolume{
		Center:    center,
		Extent:    extent,
		Nx:        res,
		Ny:        res,
		Nz:        res,
		params:    make([]Real, nodes*4),
		grads:     make([]Real, nodes*4),
		strideY:   res,
		strideX:   res * res,
		colorBase: nodes,
	}
	half := extent * 0.5
	v.min = mgl64.Vec3{center.X() - half, center.Y() - half, center.Z() - half}
	v.max = mgl64.Vec3{center.X() + half, center.Y() + half, center.Z() + half}
	for a := 0; a < 3; a++ {
		v.invSpan[a] = 1.0 / (v.max[a] - v.min[a])
	}
	// softplus(-2) ~ 0.13: a faint fog that lets early gradients reach the
	// whole frustum instead of starting fully transparent
	for i := 0; i < nodes; i++ {
		v.params[i] = -2
	}
	log.Debug().Int("resolution", res).Float64("extent", extent).
		Int("params", len(v.params)).Msg("created voxel grid volume")
	return v, nil
}

func (v *VoxelGridVolume) node(i, j, k int) int { return i*v.strideX + j*v.strideY + k }

// cellOf locates the interpolation cell containing p and the fractional
// position inside it. ok is false outside the grid bounds.
func (v *VoxelGridVolume) cellOf(p mgl64.Vec3) (ok bool, i, j, k int, fx, fy, fz Real) {
	for a := 0; a < 3; a++ {
		if p[a] < v.min[a] || p[a] > v.max[a] {
			return false, 0, 0, 0, 0, 0, 0
		}
	}
	// node n sits at fraction n/(N-1) along each axis
	gx := (p.X() - v.min[0]) * v.invSpan[0] * Real(v.Nx-1)
	gy := (p.Y() - v.min[1]) * v.invSpan[1] * Real(v.Ny-1)
	gz := (p.Z() - v.min[2]) * v.invSpan[2] * Real(v.Nz-1)
	i, j, k = int(gx), int(gy), int(gz)
	if i > v.Nx-2 {
		i = v.Nx - 2
	}
	if j > v.Ny-2 {
		j = v.Ny - 2
	}
	if k > v.Nz-2 {
		k = v.Nz - 2
	}
	return true, i, j, k, gx - Real(i), gy - Real(j), gz - Real(k)
}

// corners enumerates the 8 cell corners with their trilinear weights.
func cornerWeights(fx, fy, fz Real) [8]Real {
	return [8]Real{
		(1 - fx) * (1 - fy) * (1 - fz),
		(1 - fx) * (1 - fy) * fz,
		(1 - fx) * fy * (1 - fz),
		(1 - fx) * fy * fz,
		fx * (1 - fy) * (1 - fz),
		fx * (1 - fy) * fz,
		fx * fy * (1 - fz),
		fx * fy * fz,
	}
}

func (v *VoxelGridVolume) cellNodes(i, j, k int) [8]int {
	return [8]int{
		v.node(i, j, k), v.node(i, j, k+1), v.node(i, j+1, k), v.node(i, j+1, k+1),
		v.node(i+1, j, k), v.node(i+1, j, k+1), v.node(i+1, j+1, k), v.node(i+1, j+1, k+1),
	}
}

func (v *VoxelGridVolume) Query(points, dirs []mgl64.Vec3) ([]Real, []mgl64.Vec3, error) {
	if err := checkQueryBatch(points, dirs); err != nil {
		return nil, nil, err
	}
	sigma := make([]Real, len(points))
	rgb := make([]mgl64.Vec3, len(points))
	for p, pt := range points {
		ok, i, j, k, fx, fy, fz := v.cellOf(pt)
		if !ok {
			continue // empty space: sigma 0, black
		}
		w := cornerWeights(fx, fy, fz)
		nodes := v.cellNodes(i, j, k)
		var rawD Real
		var rawC [3]Real
		for c, n := range nodes {
			rawD += w[c] * v.params[n]
			cb := v.colorBase + n*3
			rawC[0] += w[c] * v.params[cb+0]
			rawC[1] += w[c] * v.params[cb+1]
			rawC[2] += w[c] * v.params[cb+2]
		}
		sigma[p] = softplus(rawD)
		rgb[p] = mgl64.Vec3{sigmoid(rawC[0]), sigmoid(rawC[1]), sigmoid(rawC[2])}
	}
	return sigma, rgb, nil
}

func (v *VoxelGridVolume) Params() []Real { return v.params }
func (v *VoxelGridVolume) Grads() []Real  { return v.grads }

func (v *VoxelGridVolume) AccumulateGrad(points, dirs []mgl64.Vec3, dSigma []Real, dRGB []mgl64.Vec3) error {
	if len(dSigma) != len(points) || len(dRGB) != len(points) {
		return fmt.Errorf("gradient batch size mismatch: %d points, %d dSigma, %d dRGB", len(points), len(dSigma), len(dRGB))
	}
	for p, pt := range points {
		ok, i, j, k, fx, fy, fz := v.cellOf(pt)
		if !ok {
			continue
		}
		w := cornerWeights(fx, fy, fz)
		nodes := v.cellNodes(i, j, k)

		// re-interpolate the raw values the forward pass saw; the query is
		// pure so this reproduces them exactly
		var rawD Real
		var rawC [3]Real
		for c, n := range nodes {
			rawD += w[c] * v.params[n]
			cb := v.colorBase + n*3
			rawC[0] += w[c] * v.params[cb+0]
			rawC[1] += w[c] * v.params[cb+1]
			rawC[2] += w[c] * v.params[cb+2]
		}
		dRaw := dSigma[p] * softplusGrad(rawD)
		var dCol [3]Real
		for c := 0; c < 3; c++ {
			dCol[c] = dRGB[p][c] * sigmoidGrad(rawC[c])
		}

		for c, n := range nodes {
			v.locks.lock(n)
			v.grads[n] += dRaw * w[c]
			cb := v.colorBase + n*3
			v.grads[cb+0] += dCol[0] * w[c]
			v.grads[cb+1] += dCol[1] * w[c]
			v.grads[cb+2] += dCol[2] * w[c]
			v.locks.unlock(n)
		}
	}
	return nil
}

func (v *VoxelGridVolume) ZeroGrad() {
	for i := range v.grads {
		v.grads[i] = 0
	}
}
