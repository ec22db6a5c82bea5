package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"go.bug.st/serial"

	"github.com/cjeanneret/PanTurret/internal/config"
	"github.com/cjeanneret/PanTurret/internal/debug"
	"github.com/cjeanneret/PanTurret/internal/harness"
	"github.com/cjeanneret/PanTurret/internal/logic/encoder"
	"github.com/cjeanneret/PanTurret/internal/logic/motion"
	"github.com/cjeanneret/PanTurret/internal/ticks"
	"github.com/cjeanneret/PanTurret/internal/web"
)

const (
	modeRun          = "run"
	modeStepResponse = "stepresponse"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	mode := flag.String("mode", modeRun, "run (engagement tasks) or stepresponse (harness session)")
	serialPort := flag.String("serial", "", "serial port of the harness link (default harness.port in stepresponse mode)")
	refire := flag.Int("refire", -1, "override the number of additional shots (>= 0)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if err := validateCLIOverrides(*mode, *refire); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, *refire, *serialPort)

	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.Value("Mode", *mode)
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)

	r, err := newRig(ctx, cfg, ticks.NewMonotonic())
	if err != nil {
		log.Fatalf("init hardware failed: %v", err)
	}
	defer func() {
		r.rest(cfg)
		if err := r.Close(); err != nil {
			log.Printf("closing hardware failed: %v", err)
		}
	}()

	var link serial.Port
	if *mode == modeStepResponse || *serialPort != "" {
		link, err = openLink(cfg)
		if err != nil {
			log.Fatalf("open serial link failed: %v", err)
		}
		go func() {
			<-ctx.Done()
			link.Close() // unblocks pending reads
		}()
	}

	if *mode == modeStepResponse {
		runStepResponse(ctx, cfg, r, link)
		return
	}

	restart := make(chan struct{}, 1)
	requestRestart := func() {
		select {
		case restart <- struct{}{}:
		default:
		}
	}
	if link != nil {
		go watchLink(link, requestRestart)
	}

	var telemetry *web.Telemetry
	if port := webPort.port(); port > 0 {
		logs := web.NewLogBroadcaster(200)
		debug.SetOutput(io.MultiWriter(os.Stdout, logs.Writer()))
		telemetry = web.NewTelemetry()
		static, err := web.StaticFS()
		if err != nil {
			log.Fatalf("web: %v", err)
		}
		h := web.NewHandlers(logs, telemetry, r.soft.Press, requestRestart, web.ConfigViewFrom(cfg), static)
		srv := web.NewServer(fmt.Sprintf(":%d", port), h)
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Printf("web server: %v", err)
				cancel()
			}
		}()
	}

	if err := runTasks(ctx, cfg, r, telemetry, restart); err != nil {
		log.Fatalf("run failed: %v", err)
	}
}

// runTasks dispatches the tasks until ctx is done. Each restart request
// stops dispatch, rests the actuators and starts a fresh generation of tasks.
func runTasks(ctx context.Context, cfg *config.Config, r *rig, telemetry *web.Telemetry, restart <-chan struct{}) error {
	for generation := 1; ; generation++ {
		t, err := newTasks(cfg, r, telemetry)
		if err != nil {
			return err
		}
		debug.Section(fmt.Sprintf("Dispatch (generation %d)", generation))

		runCtx, stop := context.WithCancel(ctx)
		go func() {
			select {
			case <-restart:
				debug.Info("Soft restart requested")
				stop()
			case <-runCtx.Done():
			}
		}()
		t.sched.Run(runCtx, r.clk)
		stop()
		t.sched.PrintStats()
		r.rest(cfg)

		if ctx.Err() != nil {
			debug.Section("Shutdown")
			return nil
		}
	}
}

// runStepResponse serves harness sessions on the link until ctx is done.
// A restart from the host aborts the session in progress and starts over.
func runStepResponse(ctx context.Context, cfg *config.Config, r *rig, link io.ReadWriter) {
	dev := harness.NewDevice(link, link)
	axis := motion.NewController(r.drive, encoder.NewTracker(r.counter, cfg.Encoder.CPR))
	sr := harness.NewStepResponse(dev, axis, r.clk, harness.WallSleep, harness.StepConfigFromConfig(cfg))
	for ctx.Err() == nil {
		_, err := sr.Run(ctx)
		switch {
		case err == nil:
		case errors.Is(err, harness.ErrAborted):
			debug.Info("Harness restart, new session")
		case ctx.Err() != nil:
			return
		default:
			log.Printf("harness session failed: %v", err)
			return
		}
	}
}

func openLink(cfg *config.Config) (serial.Port, error) {
	port, err := serial.Open(cfg.Harness.Port, &serial.Mode{BaudRate: cfg.Harness.Baud})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Harness.Port, err)
	}
	if err := port.SetReadTimeout(serial.NoTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("%s: %w", cfg.Harness.Port, err)
	}
	debug.Info("Harness link on %s at %d baud", cfg.Harness.Port, cfg.Harness.Baud)
	return port, nil
}

// watchLink discards link input, requesting a restart for every restart
// sequence, until the link is closed.
func watchLink(link io.Reader, requestRestart func()) {
	w := harness.NewRestartWatcher(link)
	buf := make([]byte, 64)
	for {
		_, err := w.Read(buf)
		switch {
		case errors.Is(err, harness.ErrRestart):
			requestRestart()
		case err != nil:
			return
		}
	}
}

// validateCLIOverrides checks flag values. -1 for refire means "use config".
func validateCLIOverrides(mode string, refire int) error {
	if mode != modeRun && mode != modeStepResponse {
		return fmt.Errorf("mode must be %s or %s, got %q", modeRun, modeStepResponse, mode)
	}
	if refire < -1 {
		return fmt.Errorf("refire must be >= 0, got %d", refire)
	}
	return nil
}

// applyOverrides mutates cfg with the flag values that were set.
func applyOverrides(cfg *config.Config, refire int, serialPort string) {
	if refire >= 0 {
		cfg.Fire.Refire = refire
	}
	if serialPort != "" {
		cfg.Harness.Port = serialPort
	}
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
