package integrators

import "github.com/san-kum/dynsens/internal/dynamo"

// Root returns the fraction alpha in [0, 1] at which the straight line
// through (0, gPrev) and (1, gNew) crosses zero.
func Root(gPrev, gNew float64) float64 {
	den := gPrev - gNew
	if den == 0 {
		return 1
	}
	alpha := gPrev / den
	switch {
	case alpha < 0:
		return 0
	case alpha > 1:
		return 1
	}
	return alpha
}

// Lerp blends a toward b by alpha. A nil pair yields nil so tangent lanes
// can be passed through unconditionally.
func Lerp(a, b dynamo.State, alpha float64) dynamo.State {
	if a == nil || b == nil {
		return nil
	}
	out := make(dynamo.State, len(a))
	for i := range a {
		out[i] = a[i] + (b[i]-a[i])*alpha
	}
	return out
}

func LerpScalar(a, b, alpha float64) float64 {
	return a + (b-a)*alpha
}
