package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	gazecapture "github.com/pperle/gaze-data-collection"
)

// version is set via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	basePath := flag.String("base-path", "./data/p00", "Session directory for data.csv and captured frames")
	device := flag.String("device", "/dev/video0", "V4L2 camera device")
	resolution := flag.String("resolution", "720p", "Capture resolution: 480p, 720p, 1080p")
	fps := flag.Int("fps", 30, "Camera frame rate (1-120)")
	monitorMM := flag.String("monitor-mm", "", "Physical monitor size WxH in millimeters (overrides detection)")
	monitorPx := flag.String("monitor-px", "", "Monitor mode WxH in pixels (overrides detection)")
	trials := flag.Int("trials", 0, "Number of trials to run (0 = until quit key)")
	triggerPort := flag.String("trigger-port", "", "DLP-IO8-G serial device for hardware sync (optional)")
	triggerBaud := flag.Int("trigger-baud", gazecapture.DefaultTriggerBaud, "Trigger box baud rate")
	skipWarmup := flag.Bool("skip-warmup", false, "Skip the camera stability warmup")
	warmup := flag.Duration("warmup", 5*time.Second, "Camera warmup duration")
	jpegQuality := flag.Int("jpeg-quality", gazecapture.DefaultJPEGQuality, "JPEG quality for captured frames (1-100)")
	configPath := flag.String("config", "", "YAML config file (explicit flags win over file values)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("gaze-data-collection %s\n", version)
		os.Exit(0)
	}

	// Config file first, then explicitly set flags on top.
	cfg := gazecapture.DefaultConfig()
	if *configPath != "" {
		loaded, err := gazecapture.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "base-path":
			cfg.BasePath = *basePath
		case "device":
			cfg.Device = *device
		case "resolution":
			cfg.Resolution = *resolution
		case "fps":
			cfg.FPS = *fps
		case "monitor-mm":
			cfg.MonitorMM = *monitorMM
		case "monitor-px":
			cfg.MonitorPx = *monitorPx
		case "trials":
			cfg.Trials = *trials
		case "trigger-port":
			cfg.TriggerPort = *triggerPort
		case "trigger-baud":
			cfg.TriggerBaud = *triggerBaud
		case "skip-warmup":
			cfg.SkipWarmup = *skipWarmup
		case "warmup":
			cfg.WarmupDurationS = int(*warmup / time.Second)
			if cfg.WarmupDurationS < 1 {
				cfg.WarmupDurationS = 1
			}
		case "jpeg-quality":
			cfg.JPEGQuality = *jpegQuality
		case "debug":
			cfg.Debug = *debug
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Set up logging
	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SIGINT/SIGTERM end the session between trials; the quit key inside a
	// trial has its own exit path.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("Signal received, ending session after the current trial", "signal", sig.String())
		cancel()
	}()

	// Monitor geometry: explicit override or xrandr detection.
	monitor, overridden, err := cfg.MonitorOverride()
	if err != nil {
		log.Fatalf("Invalid monitor override: %v", err)
	}
	if !overridden {
		monitor, err = gazecapture.DetectMonitor(ctx)
		if err != nil {
			log.Fatalf("Monitor detection failed (%v); supply --monitor-mm and --monitor-px manually", err)
		}
	}

	// Print banner
	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║              Gaze Data Collection %-8s                ║\n", version)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
	fmt.Printf("Configuration:\n")
	fmt.Printf("  Base Path:     %s\n", cfg.BasePath)
	fmt.Printf("  Camera:        %s (%s @ %d fps)\n", cfg.Device, cfg.Resolution, cfg.FPS)
	fmt.Printf("  Monitor:       %s\n", monitor.String())
	if cfg.Trials > 0 {
		fmt.Printf("  Trials:        %d\n", cfg.Trials)
	} else {
		fmt.Printf("  Trials:        until quit (press 'q')\n")
	}
	if cfg.TriggerPort != "" {
		fmt.Printf("  Trigger Box:   %s @ %d baud\n", cfg.TriggerPort, cfg.TriggerBaud)
	}
	fmt.Printf("\n")

	// Session storage: captures and data.csv share the base path.
	store, err := gazecapture.NewCaptureStore(cfg.BasePath, cfg.JPEGQuality)
	if err != nil {
		log.Fatalf("Failed to create capture store: %v", err)
	}
	recorder, err := gazecapture.NewRecorder(filepath.Join(cfg.BasePath, "data.csv"))
	if err != nil {
		log.Fatalf("Failed to open dataset: %v", err)
	}

	// Camera
	res, err := gazecapture.ParseResolution(cfg.Resolution)
	if err != nil {
		log.Fatalf("%v", err)
	}
	stream, err := gazecapture.NewWebcamStream(gazecapture.WebcamConfig{
		Device:     cfg.Device,
		Resolution: res,
		FPS:        cfg.FPS,
	})
	if err != nil {
		log.Fatalf("Failed to create webcam stream: %v", err)
	}

	slog.Info("Starting camera...")
	if err := stream.Start(ctx); err != nil {
		log.Fatalf("Failed to start camera: %v", err)
	}

	if !cfg.SkipWarmup {
		fmt.Printf("Running warmup (%s) to measure camera stability...\n", cfg.WarmupDuration())
		warmupStats, err := stream.Warmup(ctx, cfg.WarmupDuration())
		if err != nil {
			log.Fatalf("Warmup failed: %v", err)
		}

		fmt.Printf("\n")
		fmt.Printf("╭─────────────────────────────────────────────────────────╮\n")
		fmt.Printf("│ Warmup Complete\n")
		fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
		fmt.Printf("│ Frames Received:    %6d frames\n", warmupStats.FramesReceived)
		fmt.Printf("│ Duration:           %6.1f seconds\n", warmupStats.Duration.Seconds())
		fmt.Printf("│ FPS Mean:           %6.2f fps\n", warmupStats.FPSMean)
		fmt.Printf("│ FPS StdDev:         %6.2f fps\n", warmupStats.FPSStdDev)
		fmt.Printf("│ FPS Range:          %6.1f - %.1f fps\n", warmupStats.FPSMin, warmupStats.FPSMax)
		fmt.Printf("│ Jitter Mean:        %6.3f s\n", warmupStats.JitterMean)
		fmt.Printf("│ Jitter Max:         %6.3f s\n", warmupStats.JitterMax)
		fmt.Printf("│ Stable:             %6v\n", warmupStats.IsStable)
		fmt.Printf("╰─────────────────────────────────────────────────────────╯\n")
		fmt.Printf("\n")
	}

	// Trigger box (optional hardware sync)
	var trigger *gazecapture.TriggerBox
	if cfg.TriggerPort != "" {
		trigger, err = gazecapture.NewTriggerBox(cfg.TriggerPort, cfg.TriggerBaud)
		if err != nil {
			log.Fatalf("Failed to open trigger box: %v", err)
		}
	}

	fmt.Printf("Starting collection...\n")
	fmt.Printf("Look at the shrinking target; when it turns orange press the\n")
	fmt.Printf("arrow key matching the letter's direction. Press 'q' to stop.\n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n\n")

	startTime := time.Now()
	display := gazecapture.NewFullscreenDisplay("data collection")

	// Declared ahead of the trial runner so the quit-key hook can report
	// session counts; it is always set before the first trial runs.
	var session *gazecapture.Session

	shutdown := func() {
		display.Close()
		if trigger != nil {
			if err := trigger.Close(); err != nil {
				slog.Error("Error closing trigger box", "error", err)
			}
		}
		if err := stream.Stop(); err != nil {
			slog.Error("Error stopping camera", "error", err)
		}
		if err := recorder.Close(); err != nil {
			slog.Error("Error closing dataset", "error", err)
		}
	}

	printFinalStats := func(captured, expired int) {
		stats := stream.Stats()
		saved, failed := store.Stats()
		uptime := time.Since(startTime)

		fmt.Printf("\n")
		fmt.Printf("═══════════════════════════════════════════════════════════\n")
		fmt.Printf("                     Final Statistics                      \n")
		fmt.Printf("═══════════════════════════════════════════════════════════\n")
		fmt.Printf("  Session Uptime:     %s\n", uptime.Round(time.Second))
		fmt.Printf("  Trials Run:         %d\n", captured+expired)
		fmt.Printf("  Captured:           %d\n", captured)
		fmt.Printf("  Expired:            %d\n", expired)
		fmt.Printf("  Rows Appended:      %d\n", recorder.Rows())
		fmt.Printf("  Frames Saved:       %d\n", saved)
		if failed > 0 {
			fmt.Printf("  Saves Failed:       %d\n", failed)
		}
		fmt.Printf("  Camera Frames:      %d\n", stats.FrameCount)
		fmt.Printf("  Dropped:            %d (%.1f%%)\n", stats.FramesDropped, stats.DropRate)
		fmt.Printf("  Buffer Clears:      %d\n", stats.BufferClears)
		fmt.Printf("  Real FPS:           %.2f\n", stats.FPSReal)
		fmt.Printf("  Bytes Read:         %.2f MB\n", float64(stats.BytesRead)/1024/1024)
		fmt.Printf("═══════════════════════════════════════════════════════════\n")
		fmt.Printf("\n")
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	runner, err := gazecapture.NewTrialRunner(gazecapture.TrialConfig{
		Surface: display,
		Source:  stream,
		Store:   store,
		Trigger: trigger,
		Screen:  image.Pt(monitor.WidthPx, monitor.HeightPx),
		Rng:     rng,
		Exit: func() {
			shutdown()
			printFinalStats(session.Captured(), session.Expired())
			os.Exit(0)
		},
	})
	if err != nil {
		log.Fatalf("Failed to wire trial runner: %v", err)
	}

	session, err = gazecapture.NewSession(gazecapture.SessionConfig{
		Runner:    runner,
		Recorder:  recorder,
		Surface:   display,
		Source:    stream,
		Monitor:   monitor,
		MaxTrials: cfg.Trials,
	})
	if err != nil {
		log.Fatalf("Failed to wire session: %v", err)
	}

	runErr := session.Run(ctx)

	shutdown()
	printFinalStats(session.Captured(), session.Expired())

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("Session ended with error", "error", runErr)
		os.Exit(1)
	}

	slog.Info("Collection completed", "dataset", recorder.Path())
}
