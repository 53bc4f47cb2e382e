package sim_test

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/dynsens/internal/constraint"
	"github.com/san-kum/dynsens/internal/dynamo"
	"github.com/san-kum/dynsens/internal/integrators"
	"github.com/san-kum/dynsens/internal/models"
	"github.com/san-kum/dynsens/internal/sim"
	"github.com/san-kum/dynsens/internal/stop"
)

// plainDecay is dx/dt = -k x without analytic JVPs.
type plainDecay struct{}

func (plainDecay) Names() []string { return []string{"x"} }

func (plainDecay) Derivative(x dynamo.State, _ float64, env dynamo.Env) dynamo.State {
	return dynamo.State{-env.Params[0] * x[0]}
}

func (plainDecay) Output(x dynamo.State, _ float64, _ dynamo.Env) dynamo.State {
	return dynamo.State{2 * x[0]}
}

func withStop(c stop.Condition) sim.Options {
	opts := sim.DefaultOptions()
	opts.Stop = c
	return opts
}

var ctx = context.Background()

var _ = Describe("Simulate", func() {
	Context("scenario A: decay to a threshold", func() {
		It("stops at ln 2", func() {
			res, err := sim.Simulate(ctx, models.NewDecay(), dynamo.State{1}, []float64{1}, withStop(stop.Seuil("x", 0.5)))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Ts).To(BeNumerically("~", math.Ln2, 1e-3))
			Expect(res.X[0]).To(BeNumerically("~", 0.5, 1e-9))
			Expect(res.Y[0]).To(BeNumerically("~", 0.5, 1e-9))
		})

		It("narrows the bracket so the root tracks the tolerance", func() {
			opts := withStop(stop.Seuil("x", 0.5))
			var ts []float64
			opts.Observer = func(t float64, _, _ dynamo.State) { ts = append(ts, t) }

			res, err := sim.Simulate(ctx, models.NewDecay(), dynamo.State{1}, []float64{1}, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Ts).To(BeNumerically("~", math.Ln2, 1e-6))
			Expect(res.Rejected).To(BeNumerically(">", 0))

			n := len(ts)
			Expect(n).To(BeNumerically(">=", 2))
			Expect(ts[n-1] - ts[n-2]).To(BeNumerically("<=", math.Sqrt(opts.Tol)))
		})
	})

	Context("scenario B: ramp for a fixed duration", func() {
		It("lands on the final time with the expected average", func() {
			opts := withStop(stop.TempsFinal(5))
			opts.Constraints = constraint.Set{"avg": constraint.Moy("x")}

			res, err := sim.Simulate(ctx, models.NewRamp(), dynamo.State{0}, []float64{1}, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Ts).To(Equal(5.0))
			Expect(res.X[0]).To(BeNumerically("~", 5.0, 1e-9))
			Expect(res.Constraints["avg"]).To(BeNumerically("~", 2.5, 1e-9))
		})
	})

	DescribeTable("final time is exact for any h0 and tolerance",
		func(h0, tol float64) {
			opts := withStop(stop.TempsFinal(2.5))
			opts.H0, opts.Tol = h0, tol
			res, err := sim.Simulate(ctx, models.NewOscillator(), dynamo.State{1, 0}, models.NewOscillator().DefaultParams(), opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Ts).To(Equal(2.5))
		},
		Entry("tiny first step", 1e-9, 1e-6),
		Entry("default", sim.DefaultH0, sim.DefaultTol),
		Entry("first step past the end", 7.0, 1e-10),
	)

	It("returns x0 at time zero for a zero final time", func() {
		res, err := sim.Simulate(ctx, models.NewDecay(), dynamo.State{3}, []float64{1}, withStop(stop.TempsFinal(0)))
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Ts).To(Equal(0.0))
		Expect(res.X).To(Equal(dynamo.State{3}))
		Expect(res.Steps).To(BeZero())
	})

	DescribeTable("linear trajectories give closed-form statistics",
		func(k float64) {
			const x0, dt = 1.0, 1.5
			xEnd := x0 + k*dt
			opts := withStop(stop.TempsFinal(dt))
			opts.MaxStep = 1e-3
			opts.Constraints = constraint.Set{
				"max": constraint.Max("x"),
				"min": constraint.Min("x"),
				"moy": constraint.Moy("x"),
				"eff": constraint.Eff("x"),
			}

			res, err := sim.Simulate(ctx, models.NewRamp(), dynamo.State{x0}, []float64{k}, opts)
			Expect(err).NotTo(HaveOccurred())
			c := res.Constraints
			Expect(c["max"]).To(BeNumerically("~", math.Max(x0, xEnd), 1e-9))
			Expect(c["min"]).To(BeNumerically("~", math.Min(x0, xEnd), 1e-9))
			Expect(c["moy"]).To(BeNumerically("~", (x0+xEnd)/2, 1e-9))
			Expect(c["eff"]).To(BeNumerically("~", math.Sqrt((x0*x0+x0*xEnd+xEnd*xEnd)/3), 1e-5))
		},
		Entry("rising", 2.0),
		Entry("falling", -2.0),
	)

	It("is idempotent", func() {
		m := models.NewVanDerPol()
		opts := withStop(stop.TempsFinal(4))
		opts.Constraints = constraint.Set{"peak": constraint.Max("x"), "rms": constraint.Eff("y")}

		a, err := sim.Simulate(ctx, m, m.DefaultState(), m.DefaultParams(), opts)
		Expect(err).NotTo(HaveOccurred())
		b, err := sim.Simulate(ctx, m, m.DefaultState(), m.DefaultParams(), opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(b).To(Equal(a))
	})

	It("reports every accepted sample to the observer", func() {
		var times []float64
		opts := withStop(stop.TempsFinal(1))
		opts.Observer = func(t float64, _, _ dynamo.State) { times = append(times, t) }

		res, err := sim.Simulate(ctx, models.NewDecay(), dynamo.State{1}, []float64{1}, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(times).To(HaveLen(res.Steps + 1))
		Expect(times[0]).To(Equal(0.0))
		Expect(times[len(times)-1]).To(Equal(1.0))
	})

	Context("with a commander", func() {
		It("threads the mode and ends in the commanded one", func() {
			m := models.NewBuck()
			opts := withStop(stop.TempsFinal(0.07))
			opts.Period = 0.1
			opts.MaxStep = 1e-3

			res, err := sim.Simulate(ctx, m, m.DefaultState(), m.DefaultParams(), opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Mode).To(Equal(models.BuckOff))
		})
	})

	Context("with a periodic steady-state stop", func() {
		It("stops once even and odd period averages agree", func() {
			m := models.NewBuck()
			cond, set, err := constraint.RegPerm(0.1, 4, []string{"v"}, 1e-3)
			Expect(err).NotTo(HaveOccurred())
			opts := withStop(cond)
			opts.Constraints = set
			opts.Period = 0.1
			opts.MaxStep = opts.Period / 200

			res, err := sim.Simulate(ctx, m, m.DefaultState(), m.DefaultParams(), opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Ts).To(BeNumerically(">", 1))
			Expect(res.Ts).To(BeNumerically("<", 30))

			even, odd := res.Constraints["v_even"], res.Constraints["v_odd"]
			Expect(math.Abs(even - odd)).To(BeNumerically("<=", 1e-3))
			Expect(even).To(BeNumerically("~", 5.0, 0.1))

			// the stop sits just before a period boundary
			frac := res.Ts/opts.Period - math.Floor(res.Ts/opts.Period)
			Expect(frac).To(BeNumerically(">", 0.9))
		})
	})

	Context("validation", func() {
		It("rejects a mismatched x0", func() {
			_, err := sim.Simulate(ctx, models.NewOscillator(), dynamo.State{1}, []float64{1, 1, 1}, withStop(stop.TempsFinal(1)))
			Expect(errors.Is(err, dynamo.ErrDimensionMismatch)).To(BeTrue())
		})

		It("rejects a threshold on an unknown variable", func() {
			_, err := sim.Simulate(ctx, models.NewDecay(), dynamo.State{1}, []float64{1}, withStop(stop.Seuil("y", 0)))
			Expect(errors.Is(err, dynamo.ErrUnknownVariable)).To(BeTrue())
		})

		It("rejects an unknown stop kind", func() {
			_, err := sim.Simulate(ctx, models.NewDecay(), dynamo.State{1}, []float64{1}, withStop(stop.Condition{Kind: stop.Kind(9)}))
			Expect(errors.Is(err, dynamo.ErrUnknownStop)).To(BeTrue())
		})

		It("rejects constraints on unknown variables", func() {
			opts := withStop(stop.TempsFinal(1))
			opts.Constraints = constraint.Set{"bad": constraint.Max("nope")}
			_, err := sim.Simulate(ctx, models.NewDecay(), dynamo.State{1}, []float64{1}, opts)
			Expect(errors.Is(err, dynamo.ErrUnknownVariable)).To(BeTrue())
		})

		It("requires a period for run-period windows", func() {
			opts := withStop(stop.TempsFinal(1))
			opts.Constraints = constraint.Set{"avg": constraint.MoyT("x")}
			_, err := sim.Simulate(ctx, models.NewDecay(), dynamo.State{1}, []float64{1}, opts)
			Expect(errors.Is(err, dynamo.ErrBadConstraint)).To(BeTrue())
		})

		It("rejects non-positive h0 and tolerance", func() {
			opts := withStop(stop.TempsFinal(1))
			opts.H0 = 0
			_, err := sim.Simulate(ctx, models.NewDecay(), dynamo.State{1}, []float64{1}, opts)
			Expect(err).To(HaveOccurred())

			opts = withStop(stop.TempsFinal(1))
			opts.Tol = -1
			_, err = sim.Simulate(ctx, models.NewDecay(), dynamo.State{1}, []float64{1}, opts)
			Expect(err).To(HaveOccurred())
		})
	})

	Context("guards", func() {
		It("gives up after MaxSteps when the threshold is never crossed", func() {
			opts := withStop(stop.Seuil("x", -1))
			opts.MaxSteps = 50
			_, err := sim.Simulate(ctx, models.NewDecay(), dynamo.State{1}, []float64{1}, opts)
			Expect(errors.Is(err, dynamo.ErrStepLimit)).To(BeTrue())

			var simErr *dynamo.SimulationError
			Expect(errors.As(err, &simErr)).To(BeTrue())
			Expect(simErr.Step).To(Equal(50))
		})

		It("honours cancellation", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := sim.Simulate(cctx, models.NewDecay(), dynamo.State{1}, []float64{1}, withStop(stop.TempsFinal(1)))
			Expect(errors.Is(err, dynamo.ErrContextCanceled)).To(BeTrue())
		})

		It("flags non-finite states when asked", func() {
			opts := withStop(stop.TempsFinal(1))
			opts.ValidateState = true
			_, err := sim.Simulate(ctx, models.NewDecay(), dynamo.State{math.NaN()}, []float64{1}, opts)
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("SimulateWithTangent", func() {
	It("matches the primal run bit for bit", func() {
		m := models.NewOscillator()
		opts := withStop(stop.Seuil("x", 0))
		opts.Constraints = constraint.Set{"peak": constraint.Max("v")}

		p, err := sim.Simulate(ctx, m, m.DefaultState(), m.DefaultParams(), opts)
		Expect(err).NotTo(HaveOccurred())
		tr, err := sim.SimulateWithTangent(ctx, m, m.DefaultState(), dynamo.State{1, 0.3}, m.DefaultParams(), []float64{0.1, 0.2, 0.3}, 0, opts)
		Expect(err).NotTo(HaveOccurred())

		Expect(tr.Ts).To(Equal(p.Ts))
		Expect(tr.X).To(Equal(p.X))
		Expect(tr.Y).To(Equal(p.Y))
		Expect(tr.Constraints).To(Equal(p.Constraints))
		Expect(tr.Steps).To(Equal(p.Steps))
	})

	Context("decay with closed-form sensitivities", func() {
		It("differentiates the threshold stop time", func() {
			opts := withStop(stop.Seuil("x", 0.5))

			byX0, err := sim.SimulateWithTangent(ctx, models.NewDecay(), dynamo.State{1}, dynamo.State{1}, []float64{1}, nil, 0, opts)
			Expect(err).NotTo(HaveOccurred())
			// ts = ln(x0 / 0.5) / k
			Expect(byX0.DTs).To(BeNumerically("~", 1.0, 1e-5))
			Expect(byX0.DX[0]).To(BeNumerically("~", 0, 1e-12))

			byK, err := sim.SimulateWithTangent(ctx, models.NewDecay(), dynamo.State{1}, dynamo.State{0}, []float64{1}, []float64{1}, 0, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(byK.DTs).To(BeNumerically("~", -math.Ln2, 1e-5))
		})

		It("differentiates the final state and average", func() {
			const T, k = 2.0, 0.7
			opts := withStop(stop.TempsFinal(T))
			opts.MaxStep = 1e-3
			opts.Constraints = constraint.Set{"avg": constraint.Moy("x")}

			res, err := sim.SimulateWithTangent(ctx, models.NewDecay(), dynamo.State{1}, dynamo.State{0}, []float64{k}, []float64{1}, 0, opts)
			Expect(err).NotTo(HaveOccurred())
			e := math.Exp(-k * T)
			Expect(res.DTs).To(BeZero())
			Expect(res.DX[0]).To(BeNumerically("~", -T*e, 1e-7))

			// avg = (1 - e^{-kT}) / (kT)
			dAvg := (T*e*k*T - (1-e)*T) / (k * T * k * T)
			Expect(res.DConstraints["avg"]).To(BeNumerically("~", dAvg, 1e-6))
		})
	})

	DescribeTable("agrees with central finite differences",
		func(stepper integrators.Stepper, c stop.Condition, tol float64) {
			m := models.NewOscillator()
			x0 := m.DefaultState()
			p := m.DefaultParams()
			dx0 := dynamo.State{0.5, -0.2}
			dp := []float64{0.3, 0.1, -0.2}

			opts := withStop(c)
			opts.Stepper = stepper
			opts.H0 = 1e-4
			opts.MaxStep = 1e-4
			opts.Constraints = constraint.Set{
				"avg": constraint.Moy("v"),
				"rms": constraint.Eff("x"),
				"high": constraint.Max("x"),
			}

			tr, err := sim.SimulateWithTangent(ctx, m, x0, dx0, p, dp, 0, opts)
			Expect(err).NotTo(HaveOccurred())

			const eps = 1e-6
			shift := func(s float64) *dynamo.Result {
				xs := x0.AddScaled(s, dx0)
				ps := dynamo.State(p).AddScaled(s, dp)
				res, err := sim.Simulate(ctx, m, xs, ps, opts)
				Expect(err).NotTo(HaveOccurred())
				return res
			}
			plus, minus := shift(eps), shift(-eps)
			fd := func(a, b float64) float64 { return (a - b) / (2 * eps) }

			Expect(tr.DTs).To(BeNumerically("~", fd(plus.Ts, minus.Ts), tol))
			for i := range tr.X {
				Expect(tr.DX[i]).To(BeNumerically("~", fd(plus.X[i], minus.X[i]), tol), "dx[%d]", i)
				Expect(tr.DY[i]).To(BeNumerically("~", fd(plus.Y[i], minus.Y[i]), tol), "dy[%d]", i)
			}
			for name, d := range tr.DConstraints {
				Expect(d).To(BeNumerically("~", fd(plus.Constraints[name], minus.Constraints[name]), tol), name)
			}
		},
		Entry("rk4, final time", integrators.NewRK4(), stop.TempsFinal(1.2), 1e-6),
		Entry("rk4, threshold", integrators.NewRK4(), stop.Seuil("x", 0), 1e-3),
		Entry("rk45, final time", integrators.NewRK45(), stop.TempsFinal(1.2), 1e-5),
		Entry("rk45, threshold", integrators.NewRK45(), stop.Seuil("x", 0), 1e-3),
	)

	It("retimes the tangent onto the phase variable at a steady-state stop", func() {
		m := models.NewBuck()
		cond, set, err := constraint.RegPerm(0.1, 4, []string{"v"}, 1e-3)
		Expect(err).NotTo(HaveOccurred())
		opts := withStop(cond)
		opts.Constraints = set
		opts.Period = 0.1
		opts.MaxStep = opts.Period / 200

		// d/dR
		dp := []float64{0, 0, 0, 1}
		p, err := sim.Simulate(ctx, m, m.DefaultState(), m.DefaultParams(), opts)
		Expect(err).NotTo(HaveOccurred())
		tr, err := sim.SimulateWithTangent(ctx, m, m.DefaultState(), dynamo.State{0, 0}, m.DefaultParams(), dp, 0, opts)
		Expect(err).NotTo(HaveOccurred())

		Expect(tr.Ts).To(Equal(p.Ts))
		Expect(tr.X).To(Equal(p.X))
		Expect(tr.Constraints).To(Equal(p.Constraints))

		// v is the last state, so its total derivative vanishes after retiming
		Expect(math.IsNaN(tr.DTs) || math.IsInf(tr.DTs, 0)).To(BeFalse())
		Expect(tr.DX[1]).To(BeNumerically("~", 0, 1e-9))
		Expect(tr.DConstraints).To(HaveKey("v_even"))
		Expect(tr.DConstraints).To(HaveKey("v_odd"))
	})

	It("falls back to numeric JVPs", func() {
		opts := withStop(stop.TempsFinal(1))
		res, err := sim.SimulateWithTangent(ctx, plainDecay{}, dynamo.State{1}, dynamo.State{0}, []float64{2}, []float64{1}, 0, opts)
		Expect(err).NotTo(HaveOccurred())
		// x = e^{-k}, y = 2x
		Expect(res.DX[0]).To(BeNumerically("~", -math.Exp(-2), 1e-6))
		Expect(res.DY[0]).To(BeNumerically("~", -2*math.Exp(-2), 1e-6))
	})

	It("propagates the period tangent into run-period windows", func() {
		opts := withStop(stop.TempsFinal(2.5))
		opts.Period = 1
		opts.MaxStep = 1e-3
		opts.Constraints = constraint.Set{"avg": constraint.MoyT("x")}

		res, err := sim.SimulateWithTangent(ctx, models.NewRamp(), dynamo.State{0}, dynamo.State{0}, []float64{1}, nil, 1, opts)
		Expect(err).NotTo(HaveOccurred())
		// window [2, 2.5] of x = t: acc = 1.125 less the dropped crossing step
		v := res.Constraints["avg"]
		Expect(v).To(BeNumerically("~", 1.125, 1e-2))
		Expect(res.DConstraints["avg"]).To(BeNumerically("~", res.X[0]-v, 1e-12))
	})

	It("rejects mismatched tangent shapes", func() {
		opts := withStop(stop.TempsFinal(1))
		_, err := sim.SimulateWithTangent(ctx, models.NewDecay(), dynamo.State{1}, dynamo.State{1, 0}, []float64{1}, nil, 0, opts)
		Expect(errors.Is(err, dynamo.ErrDimensionMismatch)).To(BeTrue())

		_, err = sim.SimulateWithTangent(ctx, models.NewDecay(), dynamo.State{1}, dynamo.State{1}, []float64{1}, []float64{1, 2}, 0, opts)
		Expect(errors.Is(err, dynamo.ErrDimensionMismatch)).To(BeTrue())
	})
})
