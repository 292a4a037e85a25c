package fishnerf

import (
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func bundleOf(n int) *RayBundle {
	rb := &RayBundle{}
	for i := 0; i < n; i++ {
		rb.Origins = append(rb.Origins, mgl64.Vec3{0, 0, 0})
		rb.Directions = append(rb.Directions, mgl64.Vec3{1, 0, 0})
	}
	return rb
}

func TestNewStratifiedSampler_ConfigErrors(t *testing.T) {
	if _, err := NewStratifiedSampler(0, 2, 8, false); err == nil {
		t.Fatal("expected error for near=0")
	}
	if _, err := NewStratifiedSampler(-1, 2, 8, false); err == nil {
		t.Fatal("expected error for negative near")
	}
	if _, err := NewStratifiedSampler(2, 2, 8, false); err == nil {
		t.Fatal("expected error for near==far")
	}
	if _, err := NewStratifiedSampler(0.5, 2, 0, false); err == nil {
		t.Fatal("expected error for zero samples")
	}
}

func TestStratified_DeterministicMidpoints(t *testing.T) {
	s, err := NewStratifiedSampler(1, 2, 4, false)
	if err != nil {
		t.Fatal(err)
	}
	rb := bundleOf(1)
	if err := s.Sample(rb, nil); err != nil {
		t.Fatal(err)
	}
	want := []Real{1.125, 1.375, 1.625, 1.875}
	for j, w := range want {
		if got := rb.Depth(0, j); got != w {
			t.Fatalf("depth %d = %g, want %g", j, got, w)
		}
	}
}

func TestStratified_StochasticMonotoneInRange(t *testing.T) {
	s, err := NewStratifiedSampler(0.5, 2.0, 16, true)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(3))
	for trial := 0; trial < 50; trial++ {
		rb := bundleOf(8)
		if err := s.Sample(rb, rng); err != nil {
			t.Fatal(err)
		}
		for i := 0; i < rb.NumRays(); i++ {
			prev := 0.0
			for j := 0; j < rb.S; j++ {
				d := rb.Depth(i, j)
				if d < 0.5 || d > 2.0 {
					t.Fatalf("depth %g escapes [near, far]", d)
				}
				if j > 0 && d <= prev {
					t.Fatalf("depths not strictly increasing: %g after %g", d, prev)
				}
				prev = d
			}
		}
	}
}

func TestHierarchical_RefineKeepsMonotone(t *testing.T) {
	coarse, err := NewStratifiedSampler(0.5, 2.0, 8, true)
	if err != nil {
		t.Fatal(err)
	}
	h, err := NewHierarchicalSampler(coarse, 16)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(11))
	rb := bundleOf(4)
	if err := h.Sample(rb, rng); err != nil {
		t.Fatal(err)
	}
	// weights concentrated in one bin should still merge cleanly
	weights := make([]Real, rb.NumRays()*rb.S)
	for i := 0; i < rb.NumRays(); i++ {
		weights[i*rb.S+3] = 1
	}
	if err := h.Refine(rb, weights, rng); err != nil {
		t.Fatal(err)
	}
	if rb.S <= 8 {
		t.Fatalf("refine did not add samples: S=%d", rb.S)
	}
	for i := 0; i < rb.NumRays(); i++ {
		for j := 1; j < rb.S; j++ {
			if rb.Depth(i, j) <= rb.Depth(i, j-1) {
				t.Fatalf("ray %d: refined depths not strictly increasing at %d", i, j)
			}
		}
	}
}

func TestNewHierarchicalSampler_ConfigErrors(t *testing.T) {
	coarse, _ := NewStratifiedSampler(0.5, 2.0, 8, true)
	if _, err := NewHierarchicalSampler(nil, 8); err == nil {
		t.Fatal("expected error for nil coarse sampler")
	}
	if _, err := NewHierarchicalSampler(coarse, 0); err == nil {
		t.Fatal("expected error for zero fine samples")
	}
}
