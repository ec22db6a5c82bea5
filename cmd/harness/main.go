// Command harness drives a step-response session on a turret over its
// serial link and writes the recorded responses as CSV.
package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/cjeanneret/PanTurret/internal/config"
	"github.com/cjeanneret/PanTurret/internal/debug"
	"github.com/cjeanneret/PanTurret/internal/harness"
)

// readTimeout bounds the wait for any single line from the device.
const readTimeout = 10 * time.Second

var errTimeout = errors.New("read timeout")

func main() {
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	port := flag.String("port", "", "serial port (default harness.port)")
	baud := flag.Int("baud", 0, "baud rate (default harness.baud)")
	setpoints := flag.String("setpoints", "4000,-8000", "comma separated setpoints in counts, one per run")
	gains := flag.String("kp", "0.05,0.1", "comma separated proportional gains, one per run")
	out := flag.String("out", "", "CSV output file (default stdout)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if *port != "" {
		cfg.Harness.Port = *port
	}
	if *baud > 0 {
		cfg.Harness.Baud = *baud
	}
	debug.Init(cfg.Defaults.DebugLevel)

	sp, err := splitValues(*setpoints, cfg.Harness.Runs)
	if err != nil {
		log.Fatalf("invalid -setpoints: %v", err)
	}
	kp, err := splitValues(*gains, cfg.Harness.Runs)
	if err != nil {
		log.Fatalf("invalid -kp: %v", err)
	}

	link, err := serial.Open(cfg.Harness.Port, &serial.Mode{BaudRate: cfg.Harness.Baud})
	if err != nil {
		log.Fatalf("open %s failed: %v", cfg.Harness.Port, err)
	}
	defer link.Close()
	if err := link.SetReadTimeout(readTimeout); err != nil {
		log.Fatalf("set read timeout: %v", err)
	}

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("create %s: %v", *out, err)
		}
		defer f.Close()
		w = f
	}

	host := harness.NewHost(timeoutReader{link}, link)
	runs, err := session(host, sp, kp)
	if err != nil {
		log.Fatalf("session failed: %v", err)
	}
	if err := writeCSV(w, runs); err != nil {
		log.Fatalf("write CSV: %v", err)
	}
	debug.Info("Recorded %d runs", len(runs))
}

// session restarts the device, answers every prompt in order and collects
// one response per run.
func session(host *harness.Host, setpoints, gains []string) ([][]harness.Point, error) {
	if err := host.Restart(); err != nil {
		return nil, fmt.Errorf("restart: %w", err)
	}
	for _, v := range append(append([]string{}, setpoints...), gains...) {
		if err := host.Answer(v); err != nil {
			return nil, err
		}
	}
	runs := make([][]harness.Point, 0, len(setpoints))
	for i := range setpoints {
		pts, err := host.Collect()
		if err != nil {
			return nil, fmt.Errorf("run %d: %w", i+1, err)
		}
		debug.Verbose("Run %d: %d samples", i+1, len(pts))
		runs = append(runs, pts)
	}
	return runs, nil
}

// splitValues splits a comma separated list of numbers, requiring exactly
// n of them.
func splitValues(s string, n int) ([]string, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d values, got %d", n, len(parts))
	}
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if _, err := strconv.ParseFloat(p, 64); err != nil {
			return nil, fmt.Errorf("value %d: %q is not a number", i+1, p)
		}
		parts[i] = p
	}
	return parts, nil
}

func writeCSV(w io.Writer, runs [][]harness.Point) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"run", "ms", "counts"}); err != nil {
		return err
	}
	for i, pts := range runs {
		run := strconv.Itoa(i + 1)
		for _, p := range pts {
			rec := []string{
				run,
				strconv.FormatFloat(p.X, 'f', -1, 64),
				strconv.FormatFloat(p.Y, 'f', -1, 64),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// timeoutReader turns the empty read a serial port returns on timeout
// into an error.
type timeoutReader struct {
	r io.Reader
}

func (t timeoutReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n == 0 && err == nil {
		return 0, errTimeout
	}
	return n, err
}
