package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"otsim/internal/admin"
	"otsim/internal/config"
	"otsim/internal/logging"
	"otsim/internal/model"
	"otsim/internal/sim"
	"otsim/internal/store"
	"otsim/internal/telemetry"
	"otsim/internal/tui"
)

var (
	runConfigPath string
	runSchemaPath string
	runModelPath  string
	runMethod     string
	runDt         float64
	runDuration   float64
	runTick       string
	runSeed       int64
	runAdminAddr  string
	runExport     string
	runExportCSV  string
	runJSONOut    bool
	runWatch      bool
	runLogLevel   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation",
	Long: "run loads a model (directly or via a scenario file), registers any\n" +
		"scheduled attacks, and streams per-step telemetry until the run ends.",
	RunE: runSimulation,
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "scenario file (yaml)")
	runCmd.Flags().StringVar(&runSchemaPath, "schema", "", "CUE schema overriding the embedded one")
	runCmd.Flags().StringVar(&runModelPath, "model", "", "model file (json)")
	runCmd.Flags().StringVar(&runMethod, "method", "", "solver method override (euler|rk4)")
	runCmd.Flags().Float64Var(&runDt, "dt", 0, "timestep override")
	runCmd.Flags().Float64Var(&runDuration, "duration", 0, "max duration override")
	runCmd.Flags().StringVar(&runTick, "tick", "", "wall-clock pacing per step (e.g. 50ms); empty runs flat out")
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "random seed for noise attacks")
	runCmd.Flags().StringVar(&runAdminAddr, "admin", "", "management interface listen address (e.g. :8080)")
	runCmd.Flags().StringVar(&runExport, "export", "", "write the finished run as JSON")
	runCmd.Flags().StringVar(&runExportCSV, "export-csv", "", "write the finished run as CSV")
	runCmd.Flags().BoolVar(&runJSONOut, "json", false, "stream frames as JSON lines on stdout")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "show the live terminal view")
	runCmd.Flags().StringVar(&runLogLevel, "log-level", "", "debug|info|warn|error")
}

func loadScenario() (*config.Scenario, error) {
	cfg := config.Default()
	if runConfigPath != "" {
		var err error
		cfg, err = config.Load(runConfigPath, runSchemaPath)
		if err != nil {
			return nil, err
		}
	}
	// Flags win over the scenario file.
	if runModelPath != "" {
		cfg.Model = runModelPath
	}
	if runTick != "" {
		cfg.Tick = runTick
	}
	if runSeed != 0 {
		cfg.Seed = runSeed
	}
	if runAdminAddr != "" {
		cfg.AdminAddr = runAdminAddr
	}
	if runExport != "" {
		cfg.Export = runExport
	}
	if runLogLevel != "" {
		cfg.LogLevel = runLogLevel
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("no model given: use --model or a scenario file")
	}
	return cfg, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenario()
	if err != nil {
		return err
	}
	log := logging.New(logging.ParseLevel(cfg.LogLevel))

	m, err := model.Load(cfg.Model)
	if err != nil {
		return err
	}
	if cfg.Solver != nil {
		if cfg.Solver.Method != "" {
			m.Solver.Method = cfg.Solver.Method
		}
		if cfg.Solver.Dt > 0 {
			m.Solver.Dt = cfg.Solver.Dt
		}
		if cfg.Solver.MaxDuration > 0 {
			m.Solver.MaxDuration = cfg.Solver.MaxDuration
		}
	}
	if runMethod != "" {
		m.Solver.Method = runMethod
	}
	if runDt > 0 {
		m.Solver.Dt = runDt
	}
	if runDuration > 0 {
		m.Solver.MaxDuration = runDuration
	}
	if err := m.Validate(); err != nil {
		return err
	}

	tick, err := cfg.TickDuration()
	if err != nil {
		return err
	}

	engine, err := sim.New(m, sim.Options{
		Seed:            cfg.Seed,
		Tick:            tick,
		TelemetryBuffer: cfg.TelemetryBuffer,
		Logger:          log,
	})
	if err != nil {
		return err
	}

	for _, ac := range cfg.Attacks {
		spec, err := engine.RegisterAttack(ac.Request())
		if err != nil {
			return fmt.Errorf("scenario attack: %w", err)
		}
		log.Info("scheduled attack", "attack_id", spec.ID, "kind", spec.Kind)
	}

	var writers []telemetry.Writer
	if runJSONOut && !runWatch {
		writers = append(writers, telemetry.NewJSONStdoutWriter())
	}
	var recorder *store.Recorder
	if cfg.Export != "" || runExportCSV != "" {
		recorder = store.NewRecorder()
		writers = append(writers, recorder)
	}

	pumpDone := make(chan struct{})
	if len(writers) > 0 {
		out := telemetry.NewMultiWriter(writers...)
		frames, cancelSub := engine.Subscribe()
		defer cancelSub()
		go func() {
			defer close(pumpDone)
			for f := range frames {
				if err := out.Write(f); err != nil {
					log.Error("telemetry write failed", "err", err)
					return
				}
			}
		}()
	} else {
		close(pumpDone)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logging.NewContext(ctx, log)

	if cfg.AdminAddr != "" {
		srv := admin.NewServer(engine, log)
		go func() {
			if err := srv.Start(ctx, cfg.AdminAddr); err != nil {
				log.Error("admin server exited", "err", err)
			}
		}()
	}

	var final sim.RunState
	done := make(chan sim.RunState, 1)
	go func() { done <- engine.Run(ctx) }()

	if runWatch {
		if err := tui.Run(engine); err != nil {
			return err
		}
		engine.Stop()
		final = <-done
	} else {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		select {
		case final = <-done:
		case <-sigs:
			engine.Stop()
			final = <-done
		}
	}
	<-pumpDone

	if recorder != nil {
		if cfg.Export != "" {
			exp := store.Export{
				Model:      m.Name,
				Method:     m.Solver.Method,
				Dt:         m.Solver.Dt,
				FinalState: string(final),
				Frames:     recorder.Frames(),
			}
			if err := store.ExportJSON(cfg.Export, exp); err != nil {
				return err
			}
			log.Info("run exported", "path", cfg.Export, "frames", recorder.Len())
		}
		if runExportCSV != "" {
			if err := store.ExportCSV(runExportCSV, recorder.Frames()); err != nil {
				return err
			}
		}
	}

	log.Info("run finished", "state", final, "t", engine.Time())
	if final == sim.StateFailed {
		return engine.Err()
	}
	return nil
}
