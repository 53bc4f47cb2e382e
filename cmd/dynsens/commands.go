package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/san-kum/dynsens/internal/models"
	"github.com/san-kum/dynsens/internal/sens"
	"github.com/san-kum/dynsens/internal/sim"
	"github.com/san-kum/dynsens/internal/storage"
	"github.com/san-kum/dynsens/internal/viz"
	"github.com/spf13/cobra"
)

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, exp, err := newExperiment(cmd, args)
	if err != nil {
		return err
	}
	names := exp.Model.Names()

	var trace *viz.Trace
	if len(plotSeries) > 0 {
		trace = viz.NewTrace(names, traceEvery)
		exp.Options.Observer = trace.Record
	}

	ctx := cmd.Context()
	params := models.ParamMap(exp.Model, exp.Params)
	var summary storage.RunSummary
	if withTangent {
		tr, err := exp.RunTangent(ctx)
		if err != nil {
			return err
		}
		summary = storage.Summarize(cfg.Model, cfg.Integrator, names, params, exp.Options.Stop.String(), exp.Options.Period, &tr.Result).
			WithTangent(names, tr, exp.DX0, models.ParamMap(exp.Model, exp.DParams), exp.DPeriod)
	} else {
		res, err := exp.Run(ctx)
		if err != nil {
			return err
		}
		summary = storage.Summarize(cfg.Model, cfg.Integrator, names, params, exp.Options.Stop.String(), exp.Options.Period, res)
	}

	if save {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		id, err := st.Save(summary)
		if err != nil {
			return err
		}
		summary.ID = id
	}

	if jsonOut {
		return storage.WriteJSON(os.Stdout, summary)
	}
	fmt.Println(viz.Report(summary))

	if trace != nil {
		chart, err := viz.TraceChart(trace, plotSeries...)
		if err != nil {
			return err
		}
		fmt.Println(chart)
		if pngFile != "" {
			lines, err := viz.TraceLines(trace, plotSeries...)
			if err != nil {
				return err
			}
			if err := viz.SavePNG(pngFile, cfg.Model, "t", strings.Join(plotSeries, ", "), lines...); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", pngFile)
		}
	}
	return nil
}

func checkTangent(cmd *cobra.Command, args []string) error {
	_, exp, err := newExperiment(cmd, args)
	if err != nil {
		return err
	}
	report, err := sens.Check(cmd.Context(), exp.Problem(), exp.Direction(), fdStep)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "OUTPUT\tTANGENT\tFD\tABS ERR")
	for i, label := range report.Labels {
		fmt.Fprintf(w, "%s\t%.8g\t%.8g\t%.2e\n", label, report.Tangent[i], report.FD[i], report.AbsErr[i])
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if !report.OK(checkTol) {
		return fmt.Errorf("tangent check failed: %s off by %.2e relative (tolerance %.2e)", report.Worst, report.MaxRel, checkTol)
	}
	fmt.Println(viz.SparkHigh.Render(fmt.Sprintf("ok: worst %s at %.2e relative", report.Worst, report.MaxRel)))
	return nil
}

func sensitivity(cmd *cobra.Command, args []string) error {
	_, exp, err := newExperiment(cmd, args)
	if err != nil {
		return err
	}
	jac, rows, cols, err := sens.Jacobian(cmd.Context(), exp.Problem())
	if err != nil {
		return err
	}
	paramNames := exp.Model.ParamNames()
	for j := range cols {
		if j >= len(exp.X0) {
			cols[j] = "p." + paramNames[j-len(exp.X0)]
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "\t%s\t\n", strings.Join(cols, "\t"))
	for i, label := range rows {
		cells := make([]string, len(cols))
		for j := range cols {
			cells[j] = fmt.Sprintf("%.6g", jac.At(i, j))
		}
		fmt.Fprintf(w, "%s\t%s\t\n", label, strings.Join(cells, "\t"))
	}
	return w.Flush()
}

func sweepParameter(cmd *cobra.Command, args []string) error {
	cfg, exp, err := newExperiment(cmd, args)
	if err != nil {
		return err
	}
	values := sim.Linspace(sweepFrom, sweepTo, sweepN)
	if len(values) == 0 {
		return fmt.Errorf("sweep needs at least one value, got n=%d", sweepN)
	}
	if _, err := exp.ParamIndex(sweepParam); err != nil {
		return err
	}

	var points []sim.SweepPoint
	title := fmt.Sprintf("%s: %s in [%g, %g]", cfg.Model, sweepParam, sweepFrom, sweepTo)
	if noTUI {
		points, err = exp.Sweep(cmd.Context(), sweepParam, values, nil)
	} else {
		err = viz.RunProgress(cmd.Context(), title, len(values), func(ctx context.Context, progress func(done, total int)) error {
			var werr error
			points, werr = exp.Sweep(ctx, sweepParam, values, progress)
			return werr
		})
	}
	if err != nil {
		return err
	}

	table := storage.NewSweepTable(points)
	fmt.Println(viz.SweepReport(title, table))

	if save {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		summary := storage.RunSummary{
			Model:      cfg.Model,
			Integrator: cfg.Integrator,
			Stop:       exp.Options.Stop.String(),
			Period:     exp.Options.Period,
			Params:     models.ParamMap(exp.Model, exp.Params),
			SweepParam: sweepParam,
		}
		id, err := st.SaveSweep(summary, table)
		if err != nil {
			return err
		}
		fmt.Printf("saved %s\n", id)
	}
	return plotSweep(table, sweepParam)
}

func plotSweep(table *storage.SweepTable, param string) error {
	if len(plotSeries) == 0 {
		return nil
	}
	xs := table.Column("value")
	series := make([][]float64, 0, len(plotSeries))
	lines := make([]viz.Line, 0, len(plotSeries))
	for _, name := range plotSeries {
		col := table.Column(name)
		if col == nil {
			return fmt.Errorf("no column %q (have %v)", name, table.Columns)
		}
		series = append(series, col)
		lines = append(lines, viz.Line{Name: name, X: xs, Y: col})
	}
	chart, err := viz.Chart(fmt.Sprintf("%v against %s", plotSeries, param), series...)
	if err != nil {
		return err
	}
	fmt.Println(chart)
	if pngFile != "" {
		if err := viz.SavePNG(pngFile, "sweep", param, strings.Join(plotSeries, ", "), lines...); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", pngFile)
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tMODEL\tTIME\tSTOP\tTS\tINTEG")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.6g\t%s\n",
			run.ID,
			run.Kind,
			run.Model,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Stop,
			run.Ts,
			run.Integrator,
		)
	}
	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	if jsonOut {
		return storage.WriteJSON(os.Stdout, meta)
	}
	if meta.Kind != storage.KindSweep {
		fmt.Println(viz.Report(*meta))
		return nil
	}
	table, err := st.LoadSweep(meta.ID)
	if err != nil {
		return err
	}
	fmt.Println(viz.SweepReport(fmt.Sprintf("%s: %s sweep (%s)", meta.Model, meta.SweepParam, meta.ID), table))
	return nil
}
