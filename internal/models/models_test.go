package models_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/dynsens/internal/dynamo"
	"github.com/san-kum/dynsens/internal/models"
	"github.com/san-kum/dynsens/internal/sim"
	"github.com/san-kum/dynsens/internal/stop"
)

// samplePoint returns a generic point and direction sized for m.
func samplePoint(m models.Model) (dynamo.State, dynamo.State, []float64) {
	n := len(m.Names())
	x, dx := make(dynamo.State, n), make(dynamo.State, n)
	for i := range x {
		x[i] = 0.3 + 0.7*float64(i)
		dx[i] = 1 - 0.4*float64(i)
	}
	dp := make([]float64, len(m.DefaultParams()))
	for i := range dp {
		dp[i] = 0.5 + 0.25*float64(i)
	}
	return x, dx, dp
}

func expectClose(got, want dynamo.State) {
	Expect(got).To(HaveLen(len(want)))
	for i := range want {
		Expect(got[i]).To(BeNumerically("~", want[i], 1e-5*(1+math.Abs(want[i]))), "component %d", i)
	}
}

var _ = Describe("Models", func() {
	DescribeTable("analytic JVPs agree with finite differences",
		func(m models.Model) {
			x, dx, dp := samplePoint(m)
			env := dynamo.Env{Params: m.DefaultParams(), Period: 1, Command: 1}
			const t = 0.7

			wantF := sim.DirectionalJVP(func(x dynamo.State, p []float64) dynamo.State {
				e := env
				e.Params = p
				return m.Derivative(x, t, e)
			}, x, dx, env.Params, dp)
			expectClose(m.DerivativeJVP(x, dx, t, env, dp), wantF)

			wantY := sim.DirectionalJVP(func(x dynamo.State, p []float64) dynamo.State {
				e := env
				e.Params = p
				return m.Output(x, t, e)
			}, x, dx, env.Params, dp)
			expectClose(m.OutputJVP(x, dx, t, env, dp), wantY)
		},
		Entry("decay", models.NewDecay()),
		Entry("ramp", models.NewRamp()),
		Entry("oscillator", models.NewOscillator()),
		Entry("van der pol", models.NewVanDerPol()),
		Entry("duffing", models.NewDuffing()),
		Entry("lorenz", models.NewLorenz()),
		Entry("buck", models.NewBuck()),
	)

	DescribeTable("shapes are consistent",
		func(m models.Model) {
			Expect(m.DefaultState()).To(HaveLen(len(m.Names())))
			Expect(m.DefaultParams()).To(HaveLen(len(m.ParamNames())))
			env := dynamo.Env{Params: m.DefaultParams(), Period: 1}
			Expect(m.Derivative(m.DefaultState(), 0, env)).To(HaveLen(len(m.Names())))
		},
		Entry("decay", models.NewDecay()),
		Entry("ramp", models.NewRamp()),
		Entry("oscillator", models.NewOscillator()),
		Entry("van der pol", models.NewVanDerPol()),
		Entry("duffing", models.NewDuffing()),
		Entry("lorenz", models.NewLorenz()),
		Entry("buck", models.NewBuck()),
	)

	Describe("Params", func() {
		It("applies overrides on top of defaults", func() {
			p, err := models.Params(models.NewOscillator(), map[string]float64{"c": 0})
			Expect(err).NotTo(HaveOccurred())
			Expect(p).To(Equal([]float64{10, 0, 1}))
			Expect(models.ParamMap(models.NewOscillator(), p)).To(HaveKeyWithValue("k", 10.0))
		})

		It("rejects unknown names", func() {
			_, err := models.Params(models.NewDecay(), map[string]float64{"tau": 2})
			Expect(err).To(MatchError(ContainSubstring("tau")))
		})
	})

	Describe("Oscillator", func() {
		It("conserves energy without damping", func() {
			m := models.NewOscillator()
			p, _ := models.Params(m, map[string]float64{"c": 0})
			opts := sim.DefaultOptions()
			opts.Stop = stop.TempsFinal(3)

			res, err := sim.Simulate(context.Background(), m, m.DefaultState(), p, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Y[1]).To(BeNumerically("~", 5.0, 1e-5))
		})

		It("loses energy with damping", func() {
			m := models.NewOscillator()
			opts := sim.DefaultOptions()
			opts.Stop = stop.TempsFinal(3)

			res, err := sim.Simulate(context.Background(), m, m.DefaultState(), m.DefaultParams(), opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Y[1]).To(BeNumerically("<", 5.0))
		})
	})

	Describe("Buck", func() {
		It("switches on the duty fraction of each period", func() {
			b := models.NewBuck()
			b.Duty = 0.3
			mode, u := b.Command(0.1, 1, models.BuckOff)
			Expect(mode).To(Equal(models.BuckOn))
			Expect(u).To(Equal(1.0))

			mode, u = b.Command(2.5, 1, mode)
			Expect(mode).To(Equal(models.BuckOff))
			Expect(u).To(Equal(0.0))
		})

		It("holds its mode without a period", func() {
			mode, u := models.NewBuck().Command(3, 0, models.BuckOn)
			Expect(mode).To(Equal(models.BuckOn))
			Expect(u).To(Equal(1.0))
		})

		It("settles near duty times vin", func() {
			m := models.NewBuck()
			opts := sim.DefaultOptions()
			opts.Period = 0.1
			opts.MaxStep = opts.Period / 200
			opts.Stop = stop.TempsFinal(12)

			res, err := sim.Simulate(context.Background(), m, m.DefaultState(), m.DefaultParams(), opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.X[1]).To(BeNumerically("~", 5.0, 0.1))
		})
	})
})
