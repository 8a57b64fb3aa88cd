// Command valvesim runs the valve controller on simulated hardware and
// serves its line protocol on stdio or a serial port.
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/itohio/govalve/pkg/client"
	"github.com/itohio/govalve/pkg/config"
	"github.com/itohio/govalve/pkg/sim"
)

func main() {
	var (
		configFlag  = flag.String("config", "config.yaml", "Configuration file path")
		serialFlag  = flag.String("serial", "", "Serve on this serial port instead of stdio (e.g. one end of a virtual null modem)")
		verboseFlag = flag.Bool("v", false, "Verbose logging")
	)
	flag.Parse()

	log.SetOutput(os.Stderr)
	if *verboseFlag {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	var (
		in  io.Reader = os.Stdin
		out io.Writer = os.Stdout
	)
	if *serialFlag != "" {
		port, err := client.OpenSerial(*serialFlag, cfg.Serial.Baud)
		if err != nil {
			log.Fatalf("Failed to open %s: %v", *serialFlag, err)
		}
		defer port.Close()
		in, out = port, port
		log.Infof("serving on %s at %d baud", *serialFlag, cfg.Serial.Baud)
	}

	bench, err := sim.NewBench(cfg, out, log.StandardLogger())
	if err != nil {
		log.Fatalf("Failed to build simulator: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := bench.Feed(ctx, in); err != nil && ctx.Err() == nil {
			log.Errorf("command stream: %v", err)
		}
		log.Debug("command stream closed")
	}()

	if err := bench.Run(ctx); err != nil {
		log.Errorf("controller stopped: %v", err)
		os.Exit(1)
	}
}
