package fishnerf

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
)

// RenderOutputs holds the per-ray results of one forward pass plus the
// intermediate per-sample state the closed-form backward pass needs.
type RenderOutputs struct {
	Colors  []mgl64.Vec3 // N
	Opacity []Real       // N, sum of compositing weights, always <= 1
	Weights []Real       // N*S

	// saved forward state for Backward
	bundle *RayBundle
	sigma  []Real
	rgb    []mgl64.Vec3
	alpha  []Real
	trans  []Real
	delta  []Real
	dirs   []mgl64.Vec3
	bg     mgl64.Vec3
	hasBG  bool
}

// EmissionAbsorptionRenderer reduces per-sample (density, color) along each
// ray into one color and one accumulated opacity.
//
// Spacing convention: delta_i = t_{i+1} - t_i for interior samples, and the
// final sample reuses the previous spacing (no infinite background
// interval). With S evenly spaced samples of spacing d the total optical
// depth of a homogeneous medium is therefore sigma*S*d, matching the
// analytic integral. Rays need at least 2 samples.
//
// When Background is set, the leftover transmittance (1 - sum w) is filled
// with the background color; opacity reports sum w either way.
type EmissionAbsorptionRenderer struct {
	Background    mgl64.Vec3
	HasBackground bool
}

// NewEmissionAbsorptionRenderer builds a renderer; bg may be nil for no
// background term (escaped rays stay black at zero opacity).
func NewEmissionAbsorptionRenderer(bg *mgl64.Vec3) *EmissionAbsorptionRenderer {
	r := &EmissionAbsorptionRenderer{}
	if bg != nil {
		r.Background = *bg
		r.HasBackground = true
	}
	return r
}

// Render drives the sampler to populate the bundle's sample points (unless
// already present), queries the volume once over the whole N*S point batch,
// and composites. Samplers with an importance pass get a second,
// weight-guided round automatically.
func (r *EmissionAbsorptionRenderer) Render(rb *RayBundle, sampler Sampler, vol ImplicitVolume, rng *rand.Rand) (*RenderOutputs, error) {
	if rb.S == 0 {
		if sampler == nil {
			return nil, fmt.Errorf("bundle has no samples and no sampler was given")
		}
		if err := sampler.Sample(rb, rng); err != nil {
			return nil, fmt.Errorf("sampling: %w", err)
		}
	}
	out, err := r.composite(rb, vol)
	if err != nil {
		return nil, err
	}
	if imp, ok := sampler.(importance); ok {
		if err := imp.Refine(rb, out.Weights, rng); err != nil {
			return nil, fmt.Errorf("importance pass: %w", err)
		}
		out, err = r.composite(rb, vol)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *EmissionAbsorptionRenderer) composite(rb *RayBundle, vol ImplicitVolume) (*RenderOutputs, error) {
	n, s := rb.NumRays(), rb.S
	if s < 2 {
		return nil, fmt.Errorf("compositing needs at least 2 samples per ray, got %d", s)
	}
	// every sample of ray i shares the ray's view direction
	dirs := make([]mgl64.Vec3, n*s)
	for i := 0; i < n; i++ {
		d := rb.Directions[i]
		for j := 0; j < s; j++ {
			dirs[i*s+j] = d
		}
	}
	sigma, rgb, err := vol.Query(rb.Points, dirs)
	if err != nil {
		return nil, fmt.Errorf("volume query: %w", err)
	}
	out := &RenderOutputs{
		Colors:  make([]mgl64.Vec3, n),
		Opacity: make([]Real, n),
		Weights: make([]Real, n*s),
		bundle:  rb,
		sigma:   sigma,
		rgb:     rgb,
		alpha:   make([]Real, n*s),
		dirs:    dirs,
		trans:   make([]Real, n*s),
		delta:   make([]Real, n*s),
		bg:      r.Background,
		hasBG:   r.HasBackground,
	}
	for i := 0; i < n; i++ {
		base := i * s
		for j := 0; j < s-1; j++ {
			out.delta[base+j] = rb.Lengths[base+j+1] - rb.Lengths[base+j]
		}
		out.delta[base+s-1] = out.delta[base+s-2] // final sample reuses spacing

		T := 1.0
		var color mgl64.Vec3
		acc := 0.0
		for j := 0; j < s; j++ {
			sg := sigma[base+j]
			if !isFinite(sg) || sg < 0 {
				return nil, fmt.Errorf("ray %d sample %d: invalid density %g", i, j, sg)
			}
			od := sg * out.delta[base+j]
			if od > maxOpticalDepth {
				od = maxOpticalDepth
			}
			a := 1 - math.Exp(-od)
			w := T * a
			out.alpha[base+j] = a
			out.trans[base+j] = T
			out.Weights[base+j] = w
			color = color.Add(rgb[base+j].Mul(w))
			acc += w
			T *= 1 - a
		}
		if r.HasBackground {
			color = color.Add(r.Background.Mul(1 - acc))
		}
		out.Colors[i] = color
		out.Opacity[i] = acc
	}
	return out, nil
}

// Backward runs the closed-form reverse pass of the compositing rule.
// dColors is dL/dColor per ray; dOpacity (optional, may be nil) is
// dL/dOpacity per ray. Parameter gradients land in the volume via
// AccumulateGrad.
func (out *RenderOutputs) Backward(vol ImplicitVolume, dColors []mgl64.Vec3, dOpacity []Real) error {
	n, s := out.bundle.NumRays(), out.bundle.S
	if len(dColors) != n {
		return fmt.Errorf("expected %d upstream color gradients, got %d", n, len(dColors))
	}
	if dOpacity != nil && len(dOpacity) != n {
		return fmt.Errorf("expected %d upstream opacity gradients, got %d", n, len(dOpacity))
	}
	dSigma := make([]Real, n*s)
	dRGB := make([]mgl64.Vec3, n*s)
	for i := 0; i < n; i++ {
		base := i * s
		dC := dColors[i]

		// dL/dw_j, then the suffix-sum recursion for dL/dalpha_j:
		//   w_k (k>j) carries a (1-alpha_j) factor through T_k, so
		//   dalpha_j = T_j*gw_j - (sum_{k>j} w_k*gw_k)/(1-alpha_j)
		suffix := 0.0
		for j := s - 1; j >= 0; j-- {
			gw := dC.Dot(out.rgb[base+j])
			if out.hasBG {
				gw -= dC.Dot(out.bg)
			}
			if dOpacity != nil {
				gw += dOpacity[i]
			}
			oneMinusA := 1 - out.alpha[base+j]
			if oneMinusA < minTransmittance {
				oneMinusA = minTransmittance
			}
			dAlpha := out.trans[base+j]*gw - suffix/oneMinusA
			suffix += out.Weights[base+j] * gw

			// alpha = 1 - exp(-sigma*delta): d alpha/d sigma = delta*(1-alpha)
			dSigma[base+j] = dAlpha * out.delta[base+j] * (1 - out.alpha[base+j])
			dRGB[base+j] = dC.Mul(out.Weights[base+j])
		}
	}
	return vol.AccumulateGrad(out.bundle.Points, out.dirs, dSigma, dRGB)
}

// rendererRegistry maps configuration names to renderer constructors.
var rendererRegistry = map[string]func(cfg RendererConfig) (*EmissionAbsorptionRenderer, error){
	"emission_absorption": func(cfg RendererConfig) (*EmissionAbsorptionRenderer, error) {
		if cfg.Background == nil {
			return NewEmissionAbsorptionRenderer(nil), nil
		}
		bg := mgl64.Vec3{cfg.Background[0], cfg.Background[1], cfg.Background[2]}
		return NewEmissionAbsorptionRenderer(&bg), nil
	},
}

// NewRenderer instantiates the renderer variant named in the configuration.
func NewRenderer(cfg RendererConfig) (*EmissionAbsorptionRenderer, error) {
	build, ok := rendererRegistry[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown renderer type %q", cfg.Type)
	}
	return build(cfg)
}
