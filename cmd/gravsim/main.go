package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/log"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/gravsim/internal/analysis"
	"github.com/san-kum/gravsim/internal/automation"
	"github.com/san-kum/gravsim/internal/body"
	"github.com/san-kum/gravsim/internal/config"
	"github.com/san-kum/gravsim/internal/experiment"
	"github.com/san-kum/gravsim/internal/optim"
	"github.com/san-kum/gravsim/internal/sim"
	"github.com/san-kum/gravsim/internal/storage"
)

var (
	dataDir  string
	logLevel string
	logger   *log.Logger

	configFile     string
	preset         string
	runName        string
	steps          int
	dt             float64
	theta          float64
	softening      float64
	leafCapacity   int
	numBodies      int
	integrator     string
	method         string
	forceModel     string
	seed           int64
	snapshotEvery  int
	snapshotFormat string
	ensemble       int

	sweepParam  string
	sweepValues string
	benchSizes  string
	benchSteps  int
	tuneGrid    []string
	tuneMetric  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "gravsim",
		Short:         "barnes-hut n-body simulation lab",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogger()
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".gravsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run simulation",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addConfigFlags(runCmd)
	runCmd.Flags().IntVar(&ensemble, "ensemble", 1, "number of seeds to run concurrently (not persisted)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show run metadata and diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return storage.New(dataDir).ExportJSON(os.Stdout, args[0])
		},
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "sweep one parameter and tabulate accuracy or drift",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addConfigFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepParam, "param", "theta", "parameter to sweep ("+strings.Join(automation.SweepParams(), ", ")+")")
	sweepCmd.Flags().StringVar(&sweepValues, "values", "0,0.25,0.5,0.75,1,1.5", "comma-separated values")

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "compare barnes-hut and direct summation across body counts",
		Args:  cobra.NoArgs,
		RunE:  benchMethods,
	}
	addConfigFlags(benchCmd)
	benchCmd.Flags().StringVar(&benchSizes, "sizes", "250,1000,4000", "comma-separated body counts")
	benchCmd.Flags().IntVar(&benchSteps, "bench-steps", 5, "steps per measurement")

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid search parameters minimizing a run metric",
		Args:  cobra.NoArgs,
		RunE:  tuneParams,
	}
	addConfigFlags(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&tuneGrid, "grid", []string{"theta=0.3,0.5,0.8", "leaf_capacity=1,4,16"}, "param=v1,v2,... (repeatable)")
	tuneCmd.Flags().StringVar(&tuneMetric, "metric", "ms_per_step", "metric to minimize (ms_per_step, energy_drift, momentum_drift)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a yaml scenario",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	rootCmd.AddCommand(runCmd, listCmd, showCmd, exportCmd, sweepCmd, benchCmd, tuneCmd, presetsCmd, scenarioCmd)

	if err := rootCmd.Execute(); err != nil {
		if logger == nil {
			logger = log.New(os.Stderr)
		}
		logger.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func setupLogger() error {
	logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "gravsim",
	})
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	logger.SetLevel(level)
	return nil
}

func addConfigFlags(cmd *cobra.Command) {
	def := config.DefaultConfig()
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.StringVar(&runName, "name", def.Name, "run name")
	f.IntVar(&steps, "steps", def.Steps, "number of timesteps")
	f.Float64Var(&dt, "dt", def.Dt, "timestep")
	f.Float64Var(&theta, "theta", def.Theta, "opening angle")
	f.Float64Var(&softening, "softening", def.Softening, "softening length")
	f.IntVar(&leafCapacity, "leaf-capacity", def.LeafCapacity, "bodies per leaf")
	f.IntVar(&numBodies, "bodies", def.Init.NumBodies, "number of bodies")
	f.StringVar(&integrator, "integrator", def.Integrator, "integrator (rk4, leapfrog, euler)")
	f.StringVar(&method, "method", def.Method, "force method (barnes-hut, direct)")
	f.StringVar(&forceModel, "force-model", def.ForceModel, "force model (newton, mond-simple, mond-standard)")
	f.Int64Var(&seed, "seed", def.Seed, "random seed")
	f.IntVar(&snapshotEvery, "snapshot-every", def.Snapshot.Every, "steps between position snapshots, 0 disables")
	f.StringVar(&snapshotFormat, "snapshot-format", def.Snapshot.Format, "snapshot format (csv, sqlite)")
}

// buildConfig layers defaults, preset, config file and explicitly set flags.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.LoadOver(configFile, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("name") {
		cfg.Name = runName
	}
	if flags.Changed("steps") {
		cfg.Steps = steps
	}
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("theta") {
		cfg.Theta = theta
	}
	if flags.Changed("softening") {
		cfg.Softening = softening
	}
	if flags.Changed("leaf-capacity") {
		cfg.LeafCapacity = leafCapacity
	}
	if flags.Changed("bodies") {
		cfg.Init.NumBodies = numBodies
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("method") {
		cfg.Method = method
	}
	if flags.Changed("force-model") {
		cfg.ForceModel = forceModel
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("snapshot-every") {
		cfg.Snapshot.Every = snapshotEvery
	}
	if flags.Changed("snapshot-format") {
		cfg.Snapshot.Format = snapshotFormat
	}
	return cfg, cfg.Validate()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	if ensemble > 1 {
		return runEnsemble(ctx, cfg)
	}

	exp, err := experiment.New(cfg, logger)
	if err != nil {
		return err
	}
	st := storage.New(dataDir)
	if err := exp.Attach(st); err != nil {
		return err
	}

	logger.Info("running", "name", cfg.Name, "bodies", exp.Set().Len(), "steps", cfg.Steps, "method", cfg.Method, "integrator", cfg.Integrator)
	result, runErr := exp.Run(ctx)
	if result == nil {
		return runErr
	}

	rows := []row{
		kv("run id", "%s", exp.RunID()),
		kv("bodies", "%d", exp.Set().Len()),
		kv("steps", "%d", result.StepsTaken),
		kv("elapsed", "%v", result.Elapsed.Round(time.Millisecond)),
		kv("ms/step", "%.3f", result.MsPerStep()),
	}
	if result.StepsSkipped > 0 {
		rows = append(rows, kv("skipped", "%d", result.StepsSkipped))
	}
	for _, name := range []string{"energy", "energy_drift", "momentum_drift", "stability"} {
		if v, ok := result.Metrics[name]; ok {
			rows = append(rows, kv(name, "%.6g", v))
		}
	}
	if diags, err := st.LoadDiagnostics(exp.RunID()); err == nil && len(diags) > 1 {
		rows = append(rows, row{key: "energy trend", val: sparkline(diagEnergy(diags), 40)})
	}
	fmt.Println(summary(cfg.Name, rows))

	if runErr != nil {
		fmt.Println(failed.Render("run failed: " + runErr.Error()))
	}
	return runErr
}

func runEnsemble(ctx context.Context, cfg *config.Config) error {
	build := func(s int64) (*sim.Simulator, *body.Set, error) {
		c := cfg.Clone()
		c.Seed = s
		exp, err := experiment.New(c, logger.With("seed", s))
		if err != nil {
			return nil, nil, err
		}
		return exp.Simulator(), exp.Set(), nil
	}

	logger.Info("running ensemble", "members", ensemble, "seed", cfg.Seed)
	results, err := sim.NewEnsemble(build, ensemble, cfg.Seed).Run(ctx, cfg.SimConfig())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEED\tSTEPS\tMS/STEP\tENERGY DRIFT\tMOMENTUM DRIFT\tSTABILITY")
	for i, r := range results {
		fmt.Fprintf(w, "%d\t%d\t%.3f\t%.3e\t%.3e\t%.2f\n",
			cfg.Seed+int64(i),
			r.StepsTaken,
			r.MsPerStep(),
			r.Metrics["energy_drift"],
			r.Metrics["momentum_drift"],
			r.Metrics["stability"],
		)
	}
	return w.Flush()
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
	fmt.Fprintln(w, "ID\tNAME\tTIME\tBODIES\tSTEPS\tMS/STEP\tDRIFT\tSTATUS")

	for _, run := range runs {
		status := "ok"
		if run.Error != "" {
			status = "failed"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.3f\t%.2e\t%s\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.NumBodies,
			run.StepsTaken,
			run.MsPerStep,
			run.Metrics["energy_drift"],
			status,
		)
	}

	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)

	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	rows := []row{
		kv("name", "%s", meta.Name),
		kv("time", "%s", meta.Timestamp.Format(time.RFC3339)),
		kv("bodies", "%d", meta.NumBodies),
		kv("steps", "%d", meta.StepsTaken),
		kv("ms/step", "%.3f", meta.MsPerStep),
	}
	if meta.Config != nil {
		rows = append(rows,
			kv("method", "%s θ=%g", meta.Config.Method, meta.Config.Theta),
			kv("integrator", "%s dt=%g", meta.Config.Integrator, meta.Config.Dt),
			kv("force model", "%s", meta.Config.ForceModel),
		)
	}
	names := make([]string, 0, len(meta.Metrics))
	for name := range meta.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rows = append(rows, kv(name, "%.6g", meta.Metrics[name]))
	}
	fmt.Println(summary(meta.ID, rows))
	if meta.Error != "" {
		fmt.Println(failed.Render("error: " + meta.Error))
	}

	diags, err := st.LoadDiagnostics(runID)
	if err != nil {
		return err
	}
	if len(diags) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(diagEnergy(diags),
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption("total energy"),
		))
	}

	frame, err := st.LoadFrame(runID, -1)
	if errors.Is(err, storage.ErrNoFrame) {
		fmt.Println(subtle.Render("\nno snapshots stored"))
		return nil
	}
	if err != nil {
		return err
	}
	set := frame.Set()
	profile := analysis.RadialMassProfile(set, set.CenterOfMass(), analysis.SamplePoints)
	if len(profile) > 1 {
		data := make([]float64, len(profile))
		for i, p := range profile {
			data[i] = p.Value
		}
		fmt.Println()
		fmt.Println(asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("radial mass profile at step %d (r ≤ %.3g)", frame.Step, profile[len(profile)-1].R)),
		))
	}
	return nil
}

func diagEnergy(diags []storage.Diagnostic) []float64 {
	out := make([]float64, len(diags))
	for i, d := range diags {
		out[i] = d.Energy
	}
	return out
}

func parseFloats(s string) ([]float64, error) {
	var out []float64
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", field, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	values, err := parseFloats(sweepValues)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	if sweepParam == "theta" {
		set, err := experiment.Bodies(cfg)
		if err != nil {
			return err
		}
		params, err := cfg.GravityParams()
		if err != nil {
			return err
		}
		logger.Info("theta sweep", "bodies", set.Len(), "points", len(values))
		points, err := analysis.ThetaSweep(ctx, set, values, params, cfg.LeafCapacity)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "THETA\tRMS ERROR\tMAX ERROR\tFRONTIER\tELAPSED")
		for _, p := range points {
			fmt.Fprintf(w, "%.3f\t%.3e\t%.3e\t%.1f\t%v\n", p.Theta, p.RMSError, p.MaxError, p.MeanFrontier, p.Elapsed.Round(time.Microsecond))
		}
		return w.Flush()
	}

	cfg.Snapshot.Every = 0
	results, err := automation.RunSweep(ctx, automation.ParameterSweep{
		Base:   cfg,
		Param:  sweepParam,
		Values: values,
	}, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s\tENERGY DRIFT\tMOMENTUM DRIFT\tMS/STEP\n", strings.ToUpper(sweepParam))
	for _, r := range results {
		fmt.Fprintf(w, "%g\t%.3e\t%.3e\t%.3f\n", r.Value, r.EnergyDrift, r.Metrics["momentum_drift"], r.MsPerStep)
	}
	return w.Flush()
}

func benchMethods(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	sizes, err := parseFloats(benchSizes)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BODIES\tBARNES-HUT MS/STEP\tDIRECT MS/STEP\tSPEEDUP")

	for _, n := range sizes {
		perMethod := map[string]float64{}
		for _, m := range []string{"barnes-hut", "direct"} {
			c := cfg.Clone()
			c.Init.NumBodies = int(n)
			c.Steps = benchSteps
			c.Method = m
			c.Snapshot.Every = 0

			exp, err := experiment.New(c, logger)
			if err != nil {
				return err
			}
			result, err := exp.Run(ctx)
			if err != nil {
				return err
			}
			perMethod[m] = result.MsPerStep()
			logger.Debug("bench", "bodies", int(n), "method", m, "ms_per_step", perMethod[m])
		}

		speedup := 0.0
		if perMethod["barnes-hut"] > 0 {
			speedup = perMethod["direct"] / perMethod["barnes-hut"]
		}
		fmt.Fprintf(w, "%d\t%.3f\t%.3f\t%.2fx\n", int(n), perMethod["barnes-hut"], perMethod["direct"], speedup)
	}
	return w.Flush()
}

func tuneParams(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Snapshot.Every = 0

	var names []string
	var ranges [][]float64
	for _, entry := range tuneGrid {
		name, list, ok := strings.Cut(entry, "=")
		if !ok {
			return fmt.Errorf("invalid --grid %q, want param=v1,v2", entry)
		}
		values, err := parseFloats(list)
		if err != nil {
			return err
		}
		names = append(names, strings.TrimSpace(name))
		ranges = append(ranges, values)
	}
	search, err := optim.NewGridSearch(names, ranges)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	logger.Info("grid search", "combinations", search.Size(), "metric", tuneMetric)
	best, trials, err := search.Search(ctx, optim.MetricObjective(cfg, tuneMetric, logger))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\n", strings.ToUpper(strings.Join(names, "\t")), strings.ToUpper(tuneMetric))
	for _, tr := range trials {
		cols := make([]string, len(names))
		for i, name := range names {
			cols[i] = strconv.FormatFloat(tr.Params[name], 'g', -1, 64)
		}
		fmt.Fprintf(w, "%s\t%.4g\n", strings.Join(cols, "\t"), tr.Score)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	rows := make([]row, 0, len(names)+1)
	for _, name := range names {
		rows = append(rows, kv(name, "%g", best.Params[name]))
	}
	rows = append(rows, kv(tuneMetric, "%.4g", best.Score))
	fmt.Println(summary("best", rows))
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tINIT\tBODIES\tSTEPS\tDT\tFORCE MODEL")
	for _, name := range config.ListPresets() {
		p := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%g\t%s\n", name, p.Init.Kind, p.Init.NumBodies, p.Steps, p.Dt, p.ForceModel)
	}
	return w.Flush()
}

func runScenario(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	logger.Info("scenario", "name", scenario.Name, "runs", len(scenario.Runs))
	results, err := automation.RunScenario(ctx, scenario, storage.New(dataDir), logger)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tRUN ID\tSTEPS\tMS/STEP\tENERGY DRIFT")
	for _, r := range results {
		id := r.RunID
		if id == "" {
			id = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%.3f\t%.3e\n", r.Name, id, r.Result.StepsTaken, r.Result.MsPerStep(), r.Result.EnergyDrift)
	}
	if flushErr := w.Flush(); err == nil {
		err = flushErr
	}
	return err
}
