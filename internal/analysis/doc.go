// Package analysis provides dynamics analysis built on the tangent lane of
// the simulator.
//
//   - [LargestExponent]: largest Lyapunov exponent from renormalized tangents
//   - [Spectrum]: per-direction growth rates of the initial state tangent
//
// A positive largest exponent indicates chaotic dynamics:
//
//	lambda, err := analysis.LargestExponent(ctx, sys, x0, params, opts, analysis.DefaultLyapunov())
//	if err == nil && lambda > 0 {
//	    // chaotic
//	}
package analysis
