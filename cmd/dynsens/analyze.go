package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/san-kum/dynsens/internal/analysis"
	"github.com/san-kum/dynsens/internal/automation"
	"github.com/san-kum/dynsens/internal/experiment"
	"github.com/san-kum/dynsens/internal/optim"
	"github.com/san-kum/dynsens/internal/storage"
	"github.com/san-kum/dynsens/internal/viz"
	"github.com/spf13/cobra"
)

var (
	lyapSegment   float64
	lyapSegments  int
	lyapTransient int
	lyapSpectrum  bool

	objective string
	target    float64
	maxMove   float64
	maxIters  int
	grid      []string

	mcPerturb float64
	mcTrials  int
	mcSeed    int64
)

func analysisCommands() []*cobra.Command {
	lyapunovCmd := &cobra.Command{
		Use:   "lyapunov [model]",
		Short: "estimate the largest Lyapunov exponent from renormalized tangents",
		Args:  cobra.MaximumNArgs(1),
		RunE:  lyapunov,
	}
	addSimFlags(lyapunovCmd)
	def := analysis.DefaultLyapunov()
	lyapunovCmd.Flags().Float64Var(&lyapSegment, "segment", def.Segment, "time between renormalizations")
	lyapunovCmd.Flags().IntVar(&lyapSegments, "segments", def.Segments, "segments averaged")
	lyapunovCmd.Flags().IntVar(&lyapTransient, "transient", def.Transient, "leading segments discarded")
	lyapunovCmd.Flags().BoolVar(&lyapSpectrum, "spectrum", false, "report one growth rate per state direction")

	shootCmd := &cobra.Command{
		Use:   "shoot [model]",
		Short: "tune one parameter until an objective hits a target (Newton on tangents)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  shoot,
	}
	addSimFlags(shootCmd)
	shootCmd.Flags().StringVar(&sweepParam, "param", "", "parameter to tune, or period")
	shootCmd.Flags().StringVar(&objective, "objective", "ts", "ts or a constraint name")
	shootCmd.Flags().Float64Var(&target, "target", 0, "objective target")
	shootCmd.Flags().Float64Var(&maxMove, "max-move", 0, "largest parameter change per iteration, 0 for none")
	shootCmd.Flags().IntVar(&maxIters, "iters", 20, "iteration budget")
	_ = shootCmd.MarkFlagRequired("param")
	_ = shootCmd.MarkFlagRequired("target")

	gridCmd := &cobra.Command{
		Use:   "grid [model]",
		Short: "minimize an objective over a parameter grid",
		Args:  cobra.MaximumNArgs(1),
		RunE:  gridSearch,
	}
	addSimFlags(gridCmd)
	gridCmd.Flags().StringVar(&objective, "objective", "ts", "ts or a constraint name")
	gridCmd.Flags().StringArrayVar(&grid, "grid", nil, "name=v1,v2,... (repeatable)")
	_ = gridCmd.MarkFlagRequired("grid")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a scripted sequence of simulations",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	mcCmd := &cobra.Command{
		Use:   "montecarlo [model]",
		Short: "compare random initial state spread with the tangent prediction",
		Args:  cobra.MaximumNArgs(1),
		RunE:  monteCarlo,
	}
	addSimFlags(mcCmd)
	mcCmd.Flags().Float64Var(&mcPerturb, "perturb", 1e-3, "half-width of the uniform perturbation")
	mcCmd.Flags().IntVar(&mcTrials, "trials", 100, "number of trials")
	mcCmd.Flags().Int64Var(&mcSeed, "seed", 0, "random seed, 0 for time based")

	return []*cobra.Command{lyapunovCmd, shootCmd, gridCmd, scenarioCmd, mcCmd}
}

func lyapunov(cmd *cobra.Command, args []string) error {
	_, exp, err := newExperiment(cmd, args)
	if err != nil {
		return err
	}
	l := analysis.Lyapunov{Segment: lyapSegment, Segments: lyapSegments, Transient: lyapTransient}
	if lyapSpectrum {
		rates, err := analysis.Spectrum(cmd.Context(), exp.Model, exp.X0, exp.Params, exp.Options, l)
		if err != nil {
			return err
		}
		for i, name := range exp.Model.Names() {
			fmt.Printf("%-8s %.6g\n", name, rates[i])
		}
		return nil
	}
	lambda, err := analysis.LargestExponent(cmd.Context(), exp.Model, exp.X0, exp.Params, exp.Options, l)
	if err != nil {
		return err
	}
	verdict := viz.SparkLow.Render("not chaotic")
	if lambda > 0 {
		verdict = viz.SparkHigh.Render("chaotic")
	}
	fmt.Printf("largest exponent %s  %s\n", viz.MetricValue.Render(fmt.Sprintf("%.6g", lambda)), verdict)
	return nil
}

func shoot(cmd *cobra.Command, args []string) error {
	_, exp, err := newExperiment(cmd, args)
	if err != nil {
		return err
	}
	opts := optim.DefaultShootOptions(target)
	opts.MaxMove = maxMove
	opts.MaxIters = maxIters
	res, err := optim.Shoot(cmd.Context(), exp, sweepParam, objective, opts)
	if res != nil {
		fmt.Printf("%s = %.10g  %s = %.10g  d%s/d%s = %.6g  (%d iterations)\n",
			sweepParam, res.Param, objective, res.Value, objective, sweepParam, res.Derivative, res.Iterations)
	}
	return err
}

func parseGrid(items []string) ([]string, [][]float64, error) {
	names := make([]string, 0, len(items))
	ranges := make([][]float64, 0, len(items))
	for _, item := range items {
		name, list, ok := strings.Cut(item, "=")
		if !ok {
			return nil, nil, fmt.Errorf("expected name=v1,v2,..., got %q", item)
		}
		var values []float64
		for _, field := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: %w", name, err)
			}
			values = append(values, v)
		}
		names = append(names, strings.TrimSpace(name))
		ranges = append(ranges, values)
	}
	return names, ranges, nil
}

func gridSearch(cmd *cobra.Command, args []string) error {
	base, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	names, ranges, err := parseGrid(grid)
	if err != nil {
		return err
	}
	reg := experiment.NewRegistry()
	build := func(params map[string]float64) (*experiment.Experiment, error) {
		cfg := base.Clone()
		if cfg.Params == nil {
			cfg.Params = make(map[string]float64, len(params))
		}
		for k, v := range params {
			cfg.Params[k] = v
		}
		return experiment.New(cfg, reg)
	}

	best, n, err := optim.NewGridSearch(names, ranges).Search(cmd.Context(), build, objective)
	if err != nil {
		return err
	}
	fmt.Printf("best of %d: %s = %.8g at %v\n", n, objective, best.Value, best.Params)
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	results, err := automation.RunScenario(cmd.Context(), sc, experiment.NewRegistry(), st)
	for _, r := range results {
		fmt.Println(viz.Report(r))
	}
	return err
}

func monteCarlo(cmd *cobra.Command, args []string) error {
	_, exp, err := newExperiment(cmd, args)
	if err != nil {
		return err
	}
	stats, err := automation.RunMonteCarlo(cmd.Context(), exp, automation.MonteCarloConfig{
		Perturbation: mcPerturb,
		NumTrials:    mcTrials,
		Seed:         mcSeed,
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "OUTPUT\tNOMINAL\tMEAN\tSTD\tPREDICTED")
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%.6g\t%.6g\t%.3e\t%.3e\n", s.Label, s.Nominal, s.Mean, s.StdDev, s.Predicted)
	}
	return w.Flush()
}
