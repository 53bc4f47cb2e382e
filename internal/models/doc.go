// Package models provides reference systems for the simulation driver.
//
// Every model implements [dynamo.System] and [dynamo.Linearized] with
// hand-written Jacobian-vector products, and reads its parameters from
// [dynamo.Env.Params] in the order given by ParamNames:
//
//   - [Decay]: first-order exponential decay
//   - [Ramp]: constant-rate integrator
//   - [Oscillator]: damped spring-mass with an energy output
//   - [VanDerPol]: self-excited limit cycle
//   - [Duffing]: forced nonlinear oscillator
//   - [Lorenz]: butterfly attractor
//   - [Buck]: PWM-driven step-down converter, a [dynamo.Commander]
//
// Parameter values are resolved against defaults with [Params]:
//
//	m := models.NewOscillator()
//	p, err := models.Params(m, map[string]float64{"k": 4})
package models
