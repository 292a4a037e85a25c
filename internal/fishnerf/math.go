package fishnerf

import "math"

func isFinite(x Real) bool { return !math.IsInf(x, 0) && !math.IsNaN(x) }

// softplus maps a raw parameter to a non-negative density.
func softplus(x Real) Real {
	if x > maxOpticalDepth {
		return x // avoids overflow in Exp; softplus(x) ~ x for large x
	}
	return math.Log1p(math.Exp(x))
}

// softplusGrad is d softplus / dx, i.e. the logistic sigmoid.
func softplusGrad(x Real) Real {
	return 1.0 / (1.0 + math.Exp(-x))
}

// softplusInv returns the raw value whose softplus equals y (y > 0).
func softplusInv(y Real) Real {
	if y > maxOpticalDepth {
		return y
	}
	return math.Log(math.Expm1(y))
}

// sigmoid maps a raw parameter to a color channel in (0,1).
func sigmoid(x Real) Real {
	return 1.0 / (1.0 + math.Exp(-x))
}

func sigmoidGrad(x Real) Real {
	s := sigmoid(x)
	return s * (1 - s)
}

// sigmoidInv returns the raw value whose sigmoid equals y (0 < y < 1).
func sigmoidInv(y Real) Real {
	return math.Log(y / (1 - y))
}

func clamp(x, lo, hi Real) Real {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
