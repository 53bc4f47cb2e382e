package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/san-kum/dynsens/internal/config"
	"github.com/san-kum/dynsens/internal/experiment"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	dataDir  string
	logLevel string

	configFile string
	preset     string
	integrator string
	h0         float64
	tol        float64
	maxStep    float64
	maxSteps   int
	period     float64
	mode       int
	x0         []float64
	sets       []string

	stopKind  string
	stopVar   string
	stopLevel float64
	stopFinal float64

	dx0     []float64
	dsets   []string
	dperiod float64

	withTangent bool
	save        bool
	jsonOut     bool
	plotSeries  []string
	pngFile     string
	traceEvery  int

	fdStep   float64
	checkTol float64

	sweepParam string
	sweepFrom  float64
	sweepTo    float64
	sweepN     int
	noTUI      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "dynsens",
		Short:         "differentiable ODE simulation with stop events and constraint functionals",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logrus.SetLevel(level)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".dynsens", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "simulate until the stop condition fires",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addSimFlags(runCmd)
	addTangentFlags(runCmd)
	runCmd.Flags().BoolVar(&withTangent, "tangent", false, "propagate the tangent direction")
	runCmd.Flags().BoolVar(&save, "save", false, "store the run summary")
	runCmd.Flags().BoolVar(&jsonOut, "json", false, "print the summary as JSON")
	runCmd.Flags().StringSliceVar(&plotSeries, "plot", nil, "chart these states or outputs (y[i])")
	runCmd.Flags().StringVar(&pngFile, "png", "", "write the charted series to an image")
	runCmd.Flags().IntVar(&traceEvery, "every", 1, "keep one sample in every n for charts")

	checkCmd := &cobra.Command{
		Use:   "check [model]",
		Short: "compare tangents with central finite differences",
		Args:  cobra.MaximumNArgs(1),
		RunE:  checkTangent,
	}
	addSimFlags(checkCmd)
	addTangentFlags(checkCmd)
	checkCmd.Flags().Float64Var(&fdStep, "h", 1e-6, "finite difference step")
	checkCmd.Flags().Float64Var(&checkTol, "rtol", 1e-3, "relative tolerance |tangent-fd|/(1+|fd|)")

	sensCmd := &cobra.Command{
		Use:   "sens [model]",
		Short: "sensitivity of every output to every initial state and parameter",
		Args:  cobra.MaximumNArgs(1),
		RunE:  sensitivity,
	}
	addSimFlags(sensCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep [model]",
		Short: "run one tangent simulation per parameter value",
		Args:  cobra.MaximumNArgs(1),
		RunE:  sweepParameter,
	}
	addSimFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepParam, "param", "", "parameter to sweep, or period")
	sweepCmd.Flags().Float64Var(&sweepFrom, "from", 0, "first value")
	sweepCmd.Flags().Float64Var(&sweepTo, "to", 1, "last value")
	sweepCmd.Flags().IntVar(&sweepN, "n", 11, "number of values")
	sweepCmd.Flags().BoolVar(&save, "save", false, "store the sweep table")
	sweepCmd.Flags().StringSliceVar(&plotSeries, "plot", nil, "chart these columns against the swept value")
	sweepCmd.Flags().StringVar(&pngFile, "png", "", "write the charted columns to an image")
	sweepCmd.Flags().BoolVar(&noTUI, "no-tui", false, "do not show the progress view")
	_ = sweepCmd.MarkFlagRequired("param")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs and sweeps",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show a stored run or sweep",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}
	showCmd.Flags().BoolVar(&jsonOut, "json", false, "print the summary as JSON")

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for model: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list models and integrators",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := experiment.NewRegistry()
			for _, name := range reg.ListModels() {
				m, _ := reg.GetModel(name)
				fmt.Printf("%-10s states %v params %v\n", name, m.Names(), m.ParamNames())
			}
			fmt.Printf("integrators: %s\n", strings.Join(reg.ListIntegrators(), ", "))
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, checkCmd, sensCmd, sweepCmd, listCmd, showCmd, presetsCmd, modelsCmd)
	rootCmd.AddCommand(analysisCommands()...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func addSimFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.StringVar(&integrator, "integrator", config.DefaultIntegrator, "integrator")
	f.Float64Var(&h0, "h0", config.DefaultH0, "initial step")
	f.Float64Var(&tol, "tol", config.DefaultTol, "local error tolerance")
	f.Float64Var(&maxStep, "max-step", 0, "largest step, 0 for none")
	f.IntVar(&maxSteps, "max-steps", config.DefaultMaxSteps, "step budget, 0 for none")
	f.Float64Var(&period, "period", 0, "period of the periodic constraints and commands")
	f.IntVar(&mode, "mode", 0, "initial discrete mode")
	f.Float64SliceVar(&x0, "x0", nil, "initial state")
	f.StringArrayVar(&sets, "set", nil, "parameter override name=value")
	f.StringVar(&stopKind, "stop", "", "stop kind: seuil, temps_final or rp")
	f.StringVar(&stopVar, "var", "", "threshold variable")
	f.Float64Var(&stopLevel, "level", 0, "threshold level")
	f.Float64Var(&stopFinal, "final", config.DefaultFinal, "final time")
}

func addTangentFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64SliceVar(&dx0, "dx0", nil, "tangent of the initial state")
	f.StringArrayVar(&dsets, "dparam", nil, "parameter tangent name=value")
	f.Float64Var(&dperiod, "dperiod", 0, "tangent of the period")
}

func parseAssignments(items []string) (map[string]float64, error) {
	out := make(map[string]float64, len(items))
	for _, item := range items {
		name, value, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("expected name=value, got %q", item)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[strings.TrimSpace(name)] = v
	}
	return out, nil
}

// buildConfig layers defaults, a preset, a config file and explicitly set
// flags, in that order.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	model := ""
	if len(args) > 0 {
		model = args[0]
		cfg.Model = model
	}

	if preset != "" {
		if model == "" {
			return nil, fmt.Errorf("--preset needs a model")
		}
		p := config.GetPreset(model, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(model))
		}
		cfg = p
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if model != "" && loaded.Model != model {
			return nil, fmt.Errorf("config %s is for model %s, not %s", configFile, loaded.Model, model)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	changed := flags.Changed
	if changed("integrator") {
		cfg.Integrator = integrator
	}
	if changed("h0") {
		cfg.H0 = h0
	}
	if changed("tol") {
		cfg.Tol = tol
	}
	if changed("max-step") {
		cfg.MaxStep = maxStep
	}
	if changed("max-steps") {
		cfg.MaxSteps = maxSteps
	}
	if changed("period") {
		cfg.Period = period
	}
	if changed("mode") {
		cfg.Mode = mode
	}
	if changed("x0") {
		cfg.X0 = x0
	}
	if len(sets) > 0 {
		overrides, err := parseAssignments(sets)
		if err != nil {
			return nil, err
		}
		if cfg.Params == nil {
			cfg.Params = make(map[string]float64, len(overrides))
		}
		for k, v := range overrides {
			cfg.Params[k] = v
		}
	}

	if changed("stop") {
		cfg.Stop.Kind = stopKind
	}
	if changed("var") {
		cfg.Stop.Var = stopVar
	}
	if changed("level") {
		cfg.Stop.Level = stopLevel
	}
	if changed("final") {
		cfg.Stop.Final = stopFinal
	}

	if flags.Lookup("dx0") != nil {
		if changed("dx0") {
			cfg.Tangent.DX0 = dx0
		}
		if len(dsets) > 0 {
			d, err := parseAssignments(dsets)
			if err != nil {
				return nil, err
			}
			cfg.Tangent.DParams = d
		}
		if changed("dperiod") {
			cfg.Tangent.DPeriod = dperiod
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logrus.Debugf("config: %+v", *cfg)
	return cfg, nil
}

func newExperiment(cmd *cobra.Command, args []string) (*config.Config, *experiment.Experiment, error) {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return nil, nil, err
	}
	exp, err := experiment.New(cfg, experiment.NewRegistry())
	if err != nil {
		return nil, nil, err
	}
	return cfg, exp, nil
}
