package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/ising/internal/analysis"
	"github.com/san-kum/ising/internal/automation"
	"github.com/san-kum/ising/internal/config"
	"github.com/san-kum/ising/internal/dynamo"
	"github.com/san-kum/ising/internal/export"
	"github.com/san-kum/ising/internal/lattice"
	"github.com/san-kum/ising/internal/logging"
	"github.com/san-kum/ising/internal/metrics"
	"github.com/san-kum/ising/internal/server"
	"github.com/san-kum/ising/internal/storage"
	"github.com/san-kum/ising/internal/viz"
)

var (
	configFile string
	preset     string
	dataDir    string
	logLevel   string
	logFormat  string
	seed       int64
	// Lattice
	rows     int
	cols     int
	coupling float64
	initMode string
	// Single run
	temperature float64
	steps       int
	frames      int
	gifPath     string
	gifScale    int
	// Sweep
	workers     int
	simulations int
	tMin        float64
	tMax        float64
	noSave      bool
	timeout     time.Duration
	// Analysis
	window  int
	order   int
	svgPath string
	// Live view
	speed     int
	themeName string
	// Server
	addr string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "ising",
		Short:         "2D Ising model Metropolis simulation and critical temperature study",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file path (yaml)")
	pf.StringVar(&preset, "preset", "", "start from a named preset")
	pf.StringVar(&dataDir, "data", config.DefaultDataDir, "data directory")
	pf.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "", "log format (console, json)")
	pf.Int64Var(&seed, "seed", 0, "random seed")

	latticeFlags := func(cmd *cobra.Command) {
		cmd.Flags().IntVar(&rows, "rows", config.DefaultRows, "lattice rows")
		cmd.Flags().IntVar(&cols, "cols", config.DefaultCols, "lattice columns")
		cmd.Flags().Float64Var(&coupling, "coupling", 1, "coupling constant J")
		cmd.Flags().StringVar(&initMode, "init", "", "initial spins (up, down, random)")
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run one simulation and show the final lattice",
		Args:  cobra.NoArgs,
		RunE:  runSingle,
	}
	latticeFlags(runCmd)
	runCmd.Flags().Float64Var(&temperature, "temperature", config.DefaultRunTemperature, "temperature")
	runCmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "Metropolis steps")
	runCmd.Flags().IntVar(&frames, "frames", config.DefaultFrames, "snapshots to capture")
	runCmd.Flags().StringVar(&gifPath, "gif", "", "write the snapshots as an animated gif")
	runCmd.Flags().IntVar(&gifScale, "scale", 4, "gif pixels per site")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "simulate a range of temperatures in parallel and estimate Tc",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	latticeFlags(sweepCmd)
	sweepCmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "Metropolis steps per temperature")
	sweepCmd.Flags().IntVar(&workers, "workers", config.DefaultWorkers, "concurrent simulations")
	sweepCmd.Flags().IntVar(&simulations, "simulations", config.DefaultSimulations, "number of temperatures")
	sweepCmd.Flags().Float64Var(&tMin, "tmin", config.DefaultMinTemperature, "lowest temperature")
	sweepCmd.Flags().Float64Var(&tMax, "tmax", config.DefaultMaxTemperature, "highest temperature")
	sweepCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the series")
	sweepCmd.Flags().DurationVar(&timeout, "timeout", 0, "abort the sweep after this long")
	sweepCmd.Flags().IntVar(&window, "window", analysis.DefaultWindow, "smoothing window")
	sweepCmd.Flags().IntVar(&order, "order", analysis.DefaultOrder, "smoothing polynomial order")
	sweepCmd.Flags().StringVar(&svgPath, "svg", "", "write the magnetization plot as svg")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id|file.tsv]",
		Short: "estimate Tc from a stored run or a tab-separated file",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().IntVar(&window, "window", analysis.DefaultWindow, "smoothing window")
	analyzeCmd.Flags().IntVar(&order, "order", analysis.DefaultOrder, "smoothing polynomial order")
	analyzeCmd.Flags().StringVar(&svgPath, "svg", "", "write the magnetization plot as svg")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored sweeps",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run a simulation with live terminal visualization",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	latticeFlags(liveCmd)
	liveCmd.Flags().Float64Var(&temperature, "temperature", config.DefaultRunTemperature, "temperature")
	liveCmd.Flags().IntVar(&speed, "speed", 2000, "Metropolis steps per frame")
	liveCmd.Flags().StringVar(&themeName, "theme", viz.ThemeMono.Name, "color theme ("+strings.Join(viz.ThemeNames(), ", ")+")")
	liveCmd.Flags().StringVar(&gifPath, "gif", "ising.gif", "recording output path")

	scenarioCmd := &cobra.Command{
		Use:   "scenario <file.yaml>",
		Short: "run a scripted sequence of sweeps and compare their Tc",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	scenarioCmd.Flags().IntVar(&workers, "workers", config.DefaultWorkers, "concurrent simulations")
	scenarioCmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "Metropolis steps per temperature")
	scenarioCmd.Flags().DurationVar(&timeout, "timeout", 0, "abort the scenario after this long")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "serve sweeps over HTTP",
		Args:  cobra.NoArgs,
		RunE:  serve,
	}
	serveCmd.Flags().StringVar(&addr, "addr", config.DefaultAddr, "listen address")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tLATTICE\tSTEPS\tTEMPS\tRANGE\tWORKERS")
			for _, name := range config.ListPresets() {
				c := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%dx%d\t%d\t%d\t[%.2f, %.2f]\t%d\n",
					name, c.Lattice.Rows, c.Lattice.Cols, c.Sweep.Steps, c.Sweep.Simulations,
					c.Sweep.MinTemperature, c.Sweep.MaxTemperature, c.Sweep.Workers)
			}
			return w.Flush()
		},
	}

	rootCmd.AddCommand(runCmd, sweepCmd, analyzeCmd, listCmd, liveCmd, scenarioCmd, serveCmd, presetsCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig layers defaults or a preset, the config file, the environment
// and finally any flag set on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	base := config.DefaultConfig()
	if preset != "" {
		base = config.GetPreset(preset)
		if base == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	cfg, err := config.LoadOver(base, configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	changed := cmd.Flags().Changed
	if changed("data") {
		cfg.DataDir = dataDir
	}
	if changed("seed") {
		cfg.Seed = seed
	}
	if changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = logFormat
	}
	if changed("rows") {
		cfg.Lattice.Rows = rows
	}
	if changed("cols") {
		cfg.Lattice.Cols = cols
	}
	if changed("coupling") {
		cfg.Lattice.Coupling = coupling
	}
	if changed("init") {
		cfg.Sweep.Init = initMode
		cfg.Run.Init = initMode
	}
	if changed("temperature") {
		cfg.Run.Temperature = temperature
	}
	if changed("steps") {
		cfg.Run.Steps = steps
		cfg.Sweep.Steps = steps
	}
	if changed("frames") {
		cfg.Run.Frames = frames
	}
	if changed("workers") {
		cfg.Sweep.Workers = workers
	}
	if changed("simulations") {
		cfg.Sweep.Simulations = simulations
	}
	if changed("tmin") {
		cfg.Sweep.MinTemperature = tMin
	}
	if changed("tmax") {
		cfg.Sweep.MaxTemperature = tMax
	}
	if changed("window") {
		cfg.Estimator.Window = window
	}
	if changed("order") {
		cfg.Estimator.Order = order
	}
	if changed("addr") {
		cfg.Server.Addr = addr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func runSingle(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	runCfg, err := cfg.SingleRun()
	if err != nil {
		return err
	}
	if gifPath == "" {
		runCfg.Snapshots = 0
	}

	start := time.Now()
	out, err := dynamo.Simulate(cmd.Context(), runCfg, dynamo.WithLogger(log))
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	fmt.Println(viz.RenderLattice(out.Lattice.Snapshot(), viz.ThemeMono, 48, 96))
	fmt.Println()

	energy, mag := out.Result.PerSite()
	fmt.Printf("temperature:    %.4f\n", out.Result.Temperature)
	fmt.Printf("energy/site:    %.4f\n", energy)
	fmt.Printf("|M|/site:       %.4f (onsager %.4f)\n", mag, analysis.Onsager(analysis.OnsagerTc, out.Result.Temperature))
	fmt.Printf("acceptance:     %.2f%%\n", 100*out.Result.AcceptanceRatio())
	fmt.Printf("steps:          %d in %v\n", out.Result.Steps, elapsed.Round(time.Millisecond))

	if gifPath != "" {
		if err := writeGIF(gifPath, out.Snapshots); err != nil {
			return err
		}
		fmt.Printf("gif:            %s (%d frames)\n", gifPath, len(out.Snapshots))
	}
	return nil
}

func writeGIF(path string, snaps []lattice.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.SnapshotsToGIF(f, snaps, gifScale, config.DefaultFrameDelay); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	temps, err := cfg.Temperatures()
	if err != nil {
		return err
	}
	base, err := cfg.SweepBase()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	summary := metrics.NewSummary()
	sweep := dynamo.NewSweep(base, cfg.Sweep.Workers,
		dynamo.WithObserver(summary),
		dynamo.WithSweepLogger(log),
	)

	fmt.Printf("sweeping %d temperatures in [%.3f, %.3f] on a %dx%d lattice, %d steps each, %d workers\n",
		len(temps), temps[0], temps[len(temps)-1], cfg.Lattice.Rows, cfg.Lattice.Cols, cfg.Sweep.Steps, cfg.Sweep.Workers)

	start := time.Now()
	series, err := sweep.Run(ctx, temps)
	if err != nil {
		var wf *dynamo.WorkerFailure
		if errors.As(err, &wf) {
			return fmt.Errorf("sweep failed at T=%g: %w", wf.Temperature, wf.Err)
		}
		return err
	}
	elapsed := time.Since(start)

	stats := summary.Value()
	fmt.Printf("done in %v (%d runs, %d steps, %.1f%% accepted)\n\n",
		elapsed.Round(time.Millisecond), stats.Runs, stats.Steps, 100*stats.Acceptance)

	est, estErr := cfg.NewEstimator().Estimate(series)
	printSeries(series)
	fmt.Println()
	fmt.Println(viz.PlotSweep(series, est, analysis.OnsagerTc, 80, 15))
	fmt.Println()
	fmt.Println(viz.PlotEnergy(series, 80, 10))
	fmt.Println()
	reportEstimate(est, estErr)

	if !noSave {
		st := storage.New(cfg.DataDir)
		if err := st.Init(); err != nil {
			return err
		}
		meta := storage.RunMetadata{
			Rows:           cfg.Lattice.Rows,
			Cols:           cfg.Lattice.Cols,
			Steps:          cfg.Sweep.Steps,
			Workers:        cfg.Sweep.Workers,
			Seed:           cfg.Seed,
			Coupling:       cfg.Lattice.Coupling,
			Boltzmann:      cfg.Lattice.Boltzmann,
			Init:           cfg.Sweep.Init,
			ElapsedSeconds: elapsed.Seconds(),
		}
		if est != nil {
			tc := est.CriticalTemperature
			meta.CriticalTemperature = &tc
		}
		id, err := st.Save(meta, series)
		if err != nil {
			return err
		}
		fmt.Printf("saved: %s\n", filepath.Join(cfg.DataDir, id))
	}

	return writeSVG(est)
}

func printSeries(series dynamo.Series) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TEMPERATURE\tENERGY\tMAGNETIZATION")
	for _, p := range series {
		fmt.Fprintf(w, "%.4f\t%.4f\t%.4f\n", p.Temperature, p.Energy, p.Magnetization)
	}
	w.Flush()
}

func reportEstimate(est *analysis.Estimate, err error) {
	if err != nil {
		fmt.Printf("critical temperature: not estimated (%v)\n", err)
		return
	}
	diff := (est.CriticalTemperature - analysis.OnsagerTc) / analysis.OnsagerTc
	fmt.Printf("critical temperature: %.4f (onsager %.4f, %+.2f%%)\n",
		est.CriticalTemperature, analysis.OnsagerTc, 100*diff)
}

func writeSVG(est *analysis.Estimate) error {
	if svgPath == "" || est == nil {
		return nil
	}
	if err := os.WriteFile(svgPath, []byte(export.EstimateToSVG(est, analysis.OnsagerTc, 800, 480)), 0644); err != nil {
		return err
	}
	fmt.Printf("svg: %s\n", svgPath)
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	series, err := loadSeries(cfg, args[0])
	if err != nil {
		return err
	}
	log.Debug("series loaded", zap.String("source", args[0]), zap.Int("points", len(series)))

	est, err := cfg.NewEstimator().Estimate(series)
	fmt.Println(viz.PlotSweep(series, est, analysis.OnsagerTc, 80, 15))
	fmt.Println()
	reportEstimate(est, err)
	if err != nil {
		return err
	}
	return writeSVG(est)
}

// loadSeries reads arg as a tab-separated file if it exists on disk and as a
// stored run id otherwise.
func loadSeries(cfg *config.Config, arg string) (dynamo.Series, error) {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		f, err := os.Open(arg)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return storage.ReadSeriesTSV(f)
	}
	return storage.New(cfg.DataDir).LoadSeries(arg)
}

func listRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	runs, err := storage.New(cfg.DataDir).List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tLATTICE\tSTEPS\tTEMPS\tRANGE\tTC")

	for _, run := range runs {
		tc := "-"
		if run.CriticalTemperature != nil {
			tc = fmt.Sprintf("%.4f", *run.CriticalTemperature)
		}
		fmt.Fprintf(w, "%s\t%s\t%dx%d\t%d\t%d\t[%.2f, %.2f]\t%s\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Rows, run.Cols,
			run.Steps,
			run.Points,
			run.MinTemperature, run.MaxTemperature,
			tc,
		)
	}

	return w.Flush()
}

func runScenario(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	st := storage.New(cfg.DataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runner := &automation.Runner{Base: cfg, Store: st, Log: log}

	fmt.Printf("scenario %s: %d steps\n", scenario.Name, len(scenario.Steps))
	if scenario.Description != "" {
		fmt.Println(scenario.Description)
	}
	results, runErr := runner.RunScenario(ctx, scenario)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tLATTICE\tTEMPS\tTC\tONSAGER DIFF\tELAPSED\tRUN")
	for _, res := range results {
		tc, diff := "-", "-"
		if res.Estimate != nil {
			tc = fmt.Sprintf("%.4f", res.Estimate.CriticalTemperature)
			diff = fmt.Sprintf("%+.4f", res.Estimate.CriticalTemperature-analysis.OnsagerTc)
		}
		run := res.RunID
		if run == "" {
			run = "-"
		}
		fmt.Fprintf(w, "%s\t%dx%d\t%d\t%s\t%s\t%v\t%s\n",
			res.Name, res.Rows, res.Cols, len(res.Series), tc, diff,
			res.Elapsed.Round(time.Millisecond), run)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return runErr
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	runCfg, err := cfg.SingleRun()
	if err != nil {
		return err
	}
	runCfg.Snapshots = 0

	player, err := viz.NewPlayer(runCfg, speed)
	if err != nil {
		return err
	}
	player = player.WithTheme(viz.GetTheme(themeName)).WithGIFPath(gifPath)

	_, err = tea.NewProgram(player, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
	if errors.Is(err, tea.ErrProgramKilled) && cmd.Context().Err() != nil {
		return nil
	}
	return err
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	st := storage.New(cfg.DataDir)
	if err := st.Init(); err != nil {
		return err
	}
	srv, err := server.New(cfg, log, st)
	if err != nil {
		return err
	}
	return srv.ListenAndServe(cmd.Context())
}
