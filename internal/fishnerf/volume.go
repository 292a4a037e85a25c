package fishnerf

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// ImplicitVolume is the scene representation query contract: a batch of 3D
// points (and an optional batch of matching unit view directions, for
// view-dependent variants) maps to one non-negative density and one RGB
// color per point. Queries are pure: the same batch always produces the
// same outputs for a fixed parameter vector.
//
// Gradients are reverse-mode and hand-written: AccumulateGrad takes the
// upstream derivatives of the loss with respect to each point's density and
// color and adds the resulting parameter derivatives into the buffer
// returned by Grads. There is no autodiff runtime behind this; every
// variant carries its own closed-form backward pass.
type ImplicitVolume interface {
	// Query evaluates the field at each point. dirs may be nil for
	// view-independent variants; when present it must match points in
	// length.
	Query(points, dirs []mgl64.Vec3) (sigma []Real, rgb []mgl64.Vec3, err error)

	// Params exposes the flat learnable parameter vector; Grads the
	// matching gradient accumulator. Both are owned by the volume.
	Params() []Real
	Grads() []Real

	// AccumulateGrad back-propagates dSigma (dL/d density per point) and
	// dRGB (dL/d color per point) into Grads. Safe for concurrent calls.
	AccumulateGrad(points, dirs []mgl64.Vec3, dSigma []Real, dRGB []mgl64.Vec3) error

	// ZeroGrad clears the gradient accumulator.
	ZeroGrad()
}

func checkQueryBatch(points, dirs []mgl64.Vec3) error {
	if dirs != nil && len(dirs) != len(points) {
		return fmt.Errorf("points/directions batch size mismatch: %d vs %d", len(points), len(dirs))
	}
	return nil
}

// volumeRegistry maps configuration names to volume constructors, so the
// variant is pluggable without unbounded dynamic dispatch.
var volumeRegistry = map[string]func(cfg VolumeConfig) (ImplicitVolume, error){
	"homogeneous": func(cfg VolumeConfig) (ImplicitVolume, error) {
		return NewHomogeneousVolume(cfg.Density, mgl64.Vec3{cfg.Color[0], cfg.Color[1], cfg.Color[2]})
	},
	"grid": func(cfg VolumeConfig) (ImplicitVolume, error) {
		center := mgl64.Vec3{cfg.Center[0], cfg.Center[1], cfg.Center[2]}
		return NewVoxelGridVolume(center, cfg.Extent, cfg.Resolution)
	},
}

// NewVolume instantiates the volume variant named in the configuration.
func NewVolume(cfg VolumeConfig) (ImplicitVolume, error) {
	build, ok := volumeRegistry[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown volume type %q", cfg.Type)
	}
	return build(cfg)
}
