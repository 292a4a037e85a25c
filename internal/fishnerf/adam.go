package fishnerf

import (
	"fmt"
	"math"
)

// Adam is a standard Adam optimizer over a flat parameter vector, paired
// with an exponential learning-rate decay gamma^(epoch/step).
type Adam struct {
	LR      Real
	Beta1   Real
	Beta2   Real
	Epsilon Real

	m, v []Real
	t    int
}

// NewAdam builds the optimizer for a parameter vector of length n with the
// usual moment defaults.
func NewAdam(n int, lr Real) (*Adam, error) {
	if n < 1 {
		return nil, fmt.Errorf("parameter count must be positive, got %d", n)
	}
	if lr <= 0 {
		return nil, fmt.Errorf("learning rate must be positive, got %g", lr)
	}
	return &Adam{
		LR:      lr,
		Beta1:   0.9,
		Beta2:   0.999,
		Epsilon: 1e-8,
		m:       make([]Real, n),
		v:       make([]Real, n),
	}, nil
}

// Step applies one update in place. lrScale multiplies the base rate (the
// scheduler passes gamma^(epoch/step)).
func (a *Adam) Step(params, grads []Real, lrScale Real) error {
	if len(params) != len(a.m) || len(grads) != len(a.m) {
		return fmt.Errorf("expected %d params and grads, got %d and %d", len(a.m), len(params), len(grads))
	}
	a.t++
	c1 := 1 - math.Pow(a.Beta1, Real(a.t))
	c2 := 1 - math.Pow(a.Beta2, Real(a.t))
	lr := a.LR * lrScale
	for i, g := range grads {
		a.m[i] = a.Beta1*a.m[i] + (1-a.Beta1)*g
		a.v[i] = a.Beta2*a.v[i] + (1-a.Beta2)*g*g
		params[i] -= lr * (a.m[i] / c1) / (math.Sqrt(a.v[i]/c2) + a.Epsilon)
	}
	return nil
}

// LRDecay is the per-epoch multiplier gamma^(epoch/step).
func LRDecay(gamma Real, epoch, step int) Real {
	return math.Pow(gamma, Real(epoch)/Real(step))
}
