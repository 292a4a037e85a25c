package fishnerf

import (
	"fmt"
	"math/rand"
	"sort"
)

// Sampler chooses depths along each ray at which the volume is queried
// and materializes the matching 3D points on the bundle.
type Sampler interface {
	Sample(rb *RayBundle, rng *rand.Rand) error
}

// importance is the optional second pass: redistribute extra samples
// according to the per-sample weights of a coarse render.
type importance interface {
	Refine(rb *RayBundle, weights []Real, rng *rand.Rand) error
}

// StratifiedSampler partitions [Near, Far] into NumSamples equal bins.
// In stochastic mode one depth is drawn uniformly within each bin (which
// keeps the sequence strictly increasing by construction); in deterministic
// mode the bin midpoints are used.
type StratifiedSampler struct {
	Near, Far  Real
	NumSamples int
	Stochastic bool
}

// NewStratifiedSampler validates the near/far bounds and sample count.
func NewStratifiedSampler(near, far Real, numSamples int, stochastic bool) (*StratifiedSampler, error) {
	if near <= 0 {
		return nil, fmt.Errorf("near bound must be positive, got %g", near)
	}
	if near >= far {
		return nil, fmt.Errorf("near bound %g must be below far bound %g", near, far)
	}
	if numSamples < 1 {
		return nil, fmt.Errorf("sample count must be at least 1, got %d", numSamples)
	}
	return &StratifiedSampler{Near: near, Far: far, NumSamples: numSamples, Stochastic: stochastic}, nil
}

func (s *StratifiedSampler) Sample(rb *RayBundle, rng *rand.Rand) error {
	n := rb.NumRays()
	bin := (s.Far - s.Near) / Real(s.NumSamples)
	lengths := make([]Real, n*s.NumSamples)
	for i := 0; i < n; i++ {
		for j := 0; j < s.NumSamples; j++ {
			u := 0.5
			if s.Stochastic {
				u = rng.Float64()
			}
			lengths[i*s.NumSamples+j] = s.Near + (Real(j)+u)*bin
		}
	}
	return rb.SetSamples(lengths, s.NumSamples)
}

// HierarchicalSampler wraps a coarse stratified pass with an importance
// pass: NumFine extra depths are drawn by inverting the piecewise-constant
// CDF of the coarse compositing weights, then merged (sorted, deduplicated)
// with the coarse depths.
type HierarchicalSampler struct {
	Coarse  *StratifiedSampler
	NumFine int
}

func NewHierarchicalSampler(coarse *StratifiedSampler, numFine int) (*HierarchicalSampler, error) {
	if coarse == nil {
		return nil, fmt.Errorf("hierarchical sampler needs a coarse sampler")
	}
	if numFine < 1 {
		return nil, fmt.Errorf("fine sample count must be at least 1, got %d", numFine)
	}
	return &HierarchicalSampler{Coarse: coarse, NumFine: numFine}, nil
}

func (h *HierarchicalSampler) Sample(rb *RayBundle, rng *rand.Rand) error {
	return h.Coarse.Sample(rb, rng)
}

// Refine resamples the bundle using the coarse weights (flat, stride = the
// coarse S). The merged sequence stays strictly increasing: fine depths
// closer than epsDepth to an existing one are nudged or discarded.
func (h *HierarchicalSampler) Refine(rb *RayBundle, weights []Real, rng *rand.Rand) error {
	n, cs := rb.NumRays(), rb.S
	if len(weights) != n*cs {
		return fmt.Errorf("expected %d coarse weights, got %d", n*cs, len(weights))
	}
	out := make([]Real, 0, n*(cs+h.NumFine))
	stride := 0
	for i := 0; i < n; i++ {
		coarse := rb.Lengths[i*cs : (i+1)*cs]
		w := weights[i*cs : (i+1)*cs]

		// piecewise-constant CDF over the coarse bins; a small floor keeps
		// fully transparent rays sampleable
		cdf := make([]Real, cs+1)
		for j := 0; j < cs; j++ {
			cdf[j+1] = cdf[j] + w[j] + 1e-5
		}
		total := cdf[cs]

		merged := make([]Real, 0, cs+h.NumFine)
		merged = append(merged, coarse...)
		for f := 0; f < h.NumFine; f++ {
			u := rng.Float64() * total
			j := sort.SearchFloat64s(cdf, u)
			if j > 0 {
				j--
			}
			if j >= cs {
				j = cs - 1
			}
			// bin j spans [lo, hi) along the ray
			lo := h.Coarse.Near
			if j > 0 {
				lo = coarse[j-1]
			}
			hi := coarse[j]
			frac := (u - cdf[j]) / (cdf[j+1] - cdf[j])
			merged = append(merged, lo+frac*(hi-lo))
		}
		sort.Float64s(merged)

		dedup := merged[:0]
		for _, t := range merged {
			if len(dedup) > 0 && t-dedup[len(dedup)-1] < epsDepth {
				continue
			}
			dedup = append(dedup, t)
		}
		if stride == 0 {
			stride = len(dedup)
		}
		// rays can end up with fewer depths after dedup; pad at the far end
		// so the flat batch keeps one stride
		for len(dedup) < stride {
			dedup = append(dedup, dedup[len(dedup)-1]+epsDepth)
		}
		out = append(out, dedup[:stride]...)
	}
	return rb.SetSamples(out, stride)
}

// samplerRegistry maps configuration names to sampler constructors.
var samplerRegistry = map[string]func(cfg SamplerConfig, stochastic bool) (Sampler, error){
	"stratified": func(cfg SamplerConfig, stochastic bool) (Sampler, error) {
		return NewStratifiedSampler(cfg.Near, cfg.Far, cfg.NumSamples, stochastic)
	},
	"hierarchical": func(cfg SamplerConfig, stochastic bool) (Sampler, error) {
		coarse, err := NewStratifiedSampler(cfg.Near, cfg.Far, cfg.NumSamples, stochastic)
		if err != nil {
			return nil, err
		}
		return NewHierarchicalSampler(coarse, cfg.NumFineSamples)
	},
}

// NewSampler instantiates the sampler variant named in the configuration.
func NewSampler(cfg SamplerConfig, stochastic bool) (Sampler, error) {
	build, ok := samplerRegistry[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown sampler type %q", cfg.Type)
	}
	return build(cfg, stochastic)
}
