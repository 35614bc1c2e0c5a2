package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/trackday/vehsim/internal/config"
	"github.com/trackday/vehsim/internal/monitor"
	"github.com/trackday/vehsim/internal/telemetry"
	"github.com/trackday/vehsim/internal/world"
)

func runCommand(args []string) error {
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	fs.Duration("duration", 30*time.Second, "simulated time to run")
	fs.String("telemetry", "none", "telemetry backend: none|memory|sqlite|postgres|influx|websocket")
	fs.Int("sample-every", 6, "record every Nth tick")
	vehicles := fs.StringSlice("vehicle", nil, "vehicle to spawn as id=preset (repeatable)")
	scriptName := fs.String("script", "launch", "driver script")
	sessionName := fs.String("name", "", "telemetry session name")
	realtime := fs.Bool("realtime", false, "pace ticks to wall-clock time")
	quiet := fs.Bool("quiet", false, "hide the progress bar")
	statusPath := fs.String("status", "", "keep a status file at this path while running")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "scripts: %v\n", scriptNames())
			return nil
		}
		return err
	}

	bindings := map[string]string{
		"sim.duration":          "duration",
		"telemetry.type":        "telemetry",
		"telemetry.sampleEvery": "sample-every",
	}
	for key, name := range bindings {
		if err := viper.BindPFlag(key, fs.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	script, err := scriptByName(*scriptName)
	if err != nil {
		return err
	}
	specs, err := parseVehicles(*vehicles)
	if err != nil {
		return err
	}

	simCfg := config.GetSimConfig()
	telCfg := config.GetTelemetryConfig()
	if simCfg.TickRate <= 0 {
		return fmt.Errorf("sim.tickRate must be positive, got %d", simCfg.TickRate)
	}

	presets, err := loadPresets()
	if err != nil {
		return err
	}

	backend, err := telemetry.NewBackend(telCfg, telemetry.Dependencies{Logger: Logger, ZLogger: ZLogger})
	if err != nil {
		return err
	}
	if backend != nil {
		if err := backend.Init(); err != nil {
			return fmt.Errorf("failed to initialize telemetry backend: %w", err)
		}
		defer func() {
			if err := backend.Close(); err != nil {
				Logger.Error("Failed to close telemetry backend", "error", err)
			}
		}()
		Logger.Info("Telemetry backend initialized", "type", telCfg.Type)
	}

	w, err := world.New(world.Dependencies{
		Presets: presets,
		Backend: backend,
		Logger:  Logger,
	}, world.OptionsFromConfig(simCfg, telCfg))
	if err != nil {
		return err
	}

	// Re-setup logging so every record carries the world tick
	if err := setupLogging(w.TickCounter()); err != nil {
		return err
	}
	w.SetLogger(Logger)

	for _, s := range specs {
		if err := w.Spawn(s.id, s.preset); err != nil {
			return err
		}
	}

	name := *sessionName
	if name == "" {
		name = fmt.Sprintf("%s %s", *scriptName, SessionStartTime.Format("2006-01-02 15:04:05"))
	}
	session, err := w.StartRecording(name)
	if err != nil {
		return err
	}

	if *statusPath != "" {
		mon := monitor.NewService(monitor.Dependencies{
			World:      w,
			Logger:     Logger,
			StatusPath: *statusPath,
		})
		if err := mon.Start(); err != nil {
			Logger.Error("Failed to start status monitor", "error", err)
		} else {
			defer mon.Stop()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dt := 1 / float64(simCfg.TickRate)
	total := int64(simCfg.Duration.Seconds() * float64(simCfg.TickRate))

	var bar *progressbar.ProgressBar
	if !*quiet {
		bar = progressbar.Default(total, "Simulating")
	}
	var pace <-chan time.Time
	if *realtime {
		ticker := time.NewTicker(time.Duration(dt * float64(time.Second)))
		defer ticker.Stop()
		pace = ticker.C
	}

	Logger.Info("Simulation started",
		"vehicles", len(specs),
		"script", *scriptName,
		"ticks", total,
		"tickRate", simCfg.TickRate,
	)
	started := time.Now()
	runErr := drive(ctx, w, script, dt, total, bar, pace)
	if bar != nil {
		_ = bar.Finish()
	}

	if session != nil {
		if err := w.StopRecording(); err != nil {
			Logger.Error("Failed to end recording", "error", err)
			runErr = errors.Join(runErr, err)
		} else if exp, ok := backend.(telemetry.Exporter); ok {
			Logger.Info("Recording exported", "path", exp.GetExportedFilePath())
			fmt.Println("recording:", exp.GetExportedFilePath())
		}
	}

	stats := w.Stats()
	Logger.Info("Simulation finished",
		"ticks", stats.Tick,
		"simTime", stats.SimTime,
		"wallTime", time.Since(started),
		"samples", stats.Samples,
		"recordErrors", stats.RecordErrors,
	)
	if muted := SlogManager.MutedSinks(); len(muted) > 0 {
		Logger.Warn("Log sinks muted during run", "sinks", muted)
	}
	printSummary(w)

	if errors.Is(runErr, context.Canceled) {
		Logger.Warn("Simulation interrupted", "tick", stats.Tick)
		return nil
	}
	return runErr
}

// drive feeds scripted inputs and steps the world total times.
func drive(ctx context.Context, w *world.World, script Script, dt float64, total int64,
	bar *progressbar.ProgressBar, pace <-chan time.Time) error {
	ids := w.IDs()
	for i := int64(0); i < total; i++ {
		t := float64(i) * dt
		for idx, id := range ids {
			if err := w.SetInput(id, script(t, idx)); err != nil {
				return err
			}
		}
		if err := w.Step(ctx, dt); err != nil {
			return err
		}
		if bar != nil {
			_ = bar.Add(1)
		}
		if pace != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-pace:
			}
		}
	}
	return nil
}

func printSummary(w *world.World) {
	for _, id := range w.IDs() {
		snap, err := w.Snapshot(id)
		if err != nil {
			continue
		}
		v := snap.Vehicle
		fmt.Printf("%-12s speed %6.1f km/h  gear %2d  rpm %5.0f  pos (%8.1f, %8.1f)  heading %5.1f°\n",
			id, v.Speed*3.6, v.Gear, v.EngineRPM, v.Position.X(), v.Position.Y(), mgl64.RadToDeg(v.Heading))
	}
}
