package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/nloc/internal/config"
	"github.com/san-kum/nloc/internal/cost"
	"github.com/san-kum/nloc/internal/dynamo"
	"github.com/san-kum/nloc/internal/integrators"
	"github.com/san-kum/nloc/internal/metrics"
	"github.com/san-kum/nloc/internal/models"
	"github.com/san-kum/nloc/internal/mpc"
	"github.com/san-kum/nloc/internal/solver"
	"github.com/san-kum/nloc/internal/storage"
	"github.com/san-kum/nloc/internal/tui"
)

var (
	configFile string
	modelName  string
	dt         float64
	horizon    int
	workers    int
	maxIters   int
	dataDir    string
	showPlot   bool
	ticks      int
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
)

func main() {
	root := &cobra.Command{
		Use:   "nloc",
		Short: "Receding-horizon nonlinear optimal control",
		Long:  "nloc solves finite-horizon trajectory optimization problems with an iterative LQ solver and re-solves them online as an MPC controller.",
	}

	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML problem/solver config")
	root.PersistentFlags().StringVar(&modelName, "model", "", "model override: double_integrator, pendulum, cartpole")
	root.PersistentFlags().Float64Var(&dt, "dt", 0, "timestep override")
	root.PersistentFlags().IntVar(&horizon, "horizon", 0, "horizon length override")
	root.PersistentFlags().IntVar(&workers, "workers", 0, "worker pool size override")
	root.PersistentFlags().IntVar(&maxIters, "iters", 0, "max iterations override")

	solveCmd := &cobra.Command{
		Use:   "solve",
		Short: "Run one trajectory optimization",
		RunE:  runSolve,
	}
	solveCmd.Flags().BoolVar(&showPlot, "plot", false, "plot convergence and trajectory")
	solveCmd.Flags().StringVar(&dataDir, "out", "", "store the run under this directory")

	mpcCmd := &cobra.Command{
		Use:   "mpc",
		Short: "Simulate the closed loop under the MPC controller",
		RunE:  runMPC,
	}
	mpcCmd.Flags().IntVar(&ticks, "ticks", 100, "number of control ticks to simulate")
	mpcCmd.Flags().BoolVar(&showPlot, "plot", false, "plot the closed-loop error")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "Live terminal view of the MPC loop",
		RunE:  runLive,
	}

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs",
		RunE:  runRuns,
	}
	runsCmd.Flags().StringVar(&dataDir, "out", "runs", "run directory")

	root.AddCommand(solveCmd, mpcCmd, liveCmd, runsCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, failStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return nil, err
		}
	}
	if modelName != "" {
		cfg.Model = modelName
		// Model overrides without a config file fall back to that
		// model's stock problem.
		if configFile == "" {
			applyPreset(cfg)
		}
	}
	if dt > 0 {
		cfg.Dt = dt
	}
	if horizon > 0 {
		cfg.Horizon = horizon
	}
	if workers > 0 {
		cfg.Solver.NumWorkers = workers
	}
	if maxIters > 0 {
		cfg.Solver.MaxIterations = maxIters
	}
	return cfg, nil
}

func applyPreset(cfg *config.Config) {
	switch cfg.Model {
	case "pendulum":
		cfg.Init = []float64{0, 0}
		cfg.Goal = []float64{3.14159265358979, 0}
		cfg.Weights = config.WeightConfig{
			State:    []float64{10, 1},
			Control:  []float64{0.1},
			Terminal: []float64{100, 10},
		}
		cfg.Horizon = 100
	case "cartpole":
		cfg.Init = []float64{0, 0, 0.2, 0}
		cfg.Goal = []float64{0, 0, 0, 0}
		cfg.Weights = config.WeightConfig{
			State:    []float64{1, 0.1, 10, 0.1},
			Control:  []float64{0.01},
			Terminal: []float64{10, 1, 100, 1},
		}
		cfg.Horizon = 100
	}
}

func buildProblem(cfg *config.Config) (dynamo.System, dynamo.Cost, dynamo.State, error) {
	var sys dynamo.System
	switch cfg.Model {
	case "double_integrator":
		sys = models.NewDoubleIntegrator(cfg.Dt)
	case "pendulum":
		sys = models.Discretize(models.NewPendulum(), integrators.NewRK4(), cfg.Dt)
	case "cartpole":
		sys = models.Discretize(models.NewCartPole(), integrators.NewRK4(), cfg.Dt)
	default:
		return nil, nil, nil, fmt.Errorf("unknown model %q", cfg.Model)
	}

	if len(cfg.Init) != sys.StateDim() || len(cfg.Goal) != sys.StateDim() {
		return nil, nil, nil, fmt.Errorf("model %s needs %d-dim init/goal states", cfg.Model, sys.StateDim())
	}
	if len(cfg.Weights.State) != sys.StateDim() ||
		len(cfg.Weights.Terminal) != sys.StateDim() ||
		len(cfg.Weights.Control) != sys.ControlDim() {
		return nil, nil, nil, fmt.Errorf("model %s needs %d state and %d control weights",
			cfg.Model, sys.StateDim(), sys.ControlDim())
	}

	costModel, err := cost.NewDiagonal(cfg.Weights.State, cfg.Weights.Control, cfg.Weights.Terminal, cfg.Goal)
	if err != nil {
		return nil, nil, nil, err
	}
	return sys, costModel, dynamo.State(cfg.Init), nil
}

func runSolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sys, costModel, x0, err := buildProblem(cfg)
	if err != nil {
		return err
	}

	sol, err := solver.New(sys, costModel, cfg.Settings())
	if err != nil {
		return err
	}
	defer sol.Close()

	progress := metrics.NewProgress()
	sol.AddObserver(progress)

	guess := dynamo.NewTrajectory(cfg.Horizon, sys.StateDim(), sys.ControlDim())
	start := time.Now()
	res, err := sol.Solve(x0, guess)
	elapsed := time.Since(start)
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render("nloc solve · " + cfg.Model))
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "status\t%s\n", styleStatus(res.Status))
	fmt.Fprintf(w, "iterations\t%d\n", res.Iterations)
	fmt.Fprintf(w, "final cost\t%.6g\n", res.Cost)
	fmt.Fprintf(w, "control effort\t%.4g\n", metrics.Effort(res.Trajectory))
	fmt.Fprintf(w, "curvature warnings\t%d\n", res.CurvatureWarnings)
	fmt.Fprintf(w, "wall time\t%s\n", elapsed.Round(time.Microsecond))
	w.Flush()

	if showPlot {
		if len(res.CostHistory) > 1 {
			fmt.Println()
			fmt.Println(asciigraph.Plot(res.CostHistory,
				asciigraph.Height(10), asciigraph.Width(60),
				asciigraph.Caption("cost per iteration")))
		}
		series := make([]float64, len(res.Trajectory.States))
		for i, x := range res.Trajectory.States {
			series[i] = x[0]
		}
		fmt.Println()
		fmt.Println(asciigraph.Plot(series,
			asciigraph.Height(10), asciigraph.Width(60),
			asciigraph.Caption("x0 over horizon")))
	}

	if dataDir != "" {
		store := storage.New(dataDir)
		if err := store.Init(); err != nil {
			return err
		}
		id, err := store.SaveRun(storage.RunMetadata{
			Model:      cfg.Model,
			Timestamp:  time.Now(),
			Dt:         cfg.Dt,
			Horizon:    cfg.Horizon,
			Iterations: res.Iterations,
			Cost:       res.Cost,
			Status:     res.Status.String(),
		}, res.Trajectory)
		if err != nil {
			return err
		}
		fmt.Println("saved run", id)
	}
	return nil
}

func runMPC(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sys, costModel, x0, err := buildProblem(cfg)
	if err != nil {
		return err
	}

	sol, err := solver.New(sys, costModel, cfg.Settings())
	if err != nil {
		return err
	}
	defer sol.Close()

	guess := dynamo.NewTrajectory(cfg.Horizon, sys.StateDim(), sys.ControlDim())
	ctrl, err := mpc.New(sol, sys, cfg.Dt, guess, mpc.WithFixedHorizon(cfg.Horizon))
	if err != nil {
		return err
	}

	goal := dynamo.State(cfg.Goal)
	x := x0.Clone()
	errs := make([]float64, 0, ticks)
	for k := 0; k < ticks; k++ {
		elapsed := cfg.Dt
		if k == 0 {
			elapsed = 0
		}
		command, err := ctrl.Tick(x, elapsed)
		if err != nil {
			return fmt.Errorf("tick %d: %w", k, err)
		}
		u := command.Apply(x)
		x, err = sys.Propagate(x, u, k)
		if err != nil {
			return fmt.Errorf("plant step %d: %w", k, err)
		}
		errs = append(errs, x.Sub(goal).Norm())
	}

	fmt.Println(titleStyle.Render("nloc mpc · " + cfg.Model))
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "ticks\t%d\n", ticks)
	fmt.Fprintf(w, "final error\t%.6g\n", errs[len(errs)-1])
	if res := ctrl.LastResult(); res != nil {
		fmt.Fprintf(w, "last solve\t%s in %d iters\n", res.Status, res.Iterations)
	}
	w.Flush()

	if showPlot && len(errs) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(errs,
			asciigraph.Height(10), asciigraph.Width(60),
			asciigraph.Caption("closed-loop error")))
	}
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sys, costModel, x0, err := buildProblem(cfg)
	if err != nil {
		return err
	}

	sol, err := solver.New(sys, costModel, cfg.Settings())
	if err != nil {
		return err
	}
	defer sol.Close()

	guess := dynamo.NewTrajectory(cfg.Horizon, sys.StateDim(), sys.ControlDim())
	ctrl, err := mpc.New(sol, sys, cfg.Dt, guess, mpc.WithFixedHorizon(cfg.Horizon))
	if err != nil {
		return err
	}

	model := tui.NewModel(ctrl, sys, x0, dynamo.State(cfg.Goal), cfg.Dt)
	_, err = tea.NewProgram(model).Run()
	return err
}

func runRuns(cmd *cobra.Command, args []string) error {
	store := storage.New(dataDir)
	runs, err := store.ListRuns()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no stored runs")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tHORIZON\tITERS\tCOST\tSTATUS")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.4g\t%s\n",
			r.ID, r.Model, r.Horizon, r.Iterations, r.Cost, r.Status)
	}
	return w.Flush()
}

func styleStatus(s solver.Status) string {
	switch s {
	case solver.StatusConverged:
		return okStyle.Render(s.String())
	case solver.StatusMaxIterations:
		return warnStyle.Render(s.String())
	default:
		return failStyle.Render(s.String())
	}
}
