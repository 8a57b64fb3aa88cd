// Command valvectl controls a valve controller from the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/itohio/govalve/pkg/client"
	"github.com/itohio/govalve/pkg/config"
)

const usage = `Usage: valvectl [flags] <command> [args]

Commands:
  move <axis> <position> <limit>   Drive axis to position (%%) with current limit (0.1 mA)
  home <axis> <limit>              Reference axis against its end stop
  status                           Positions, current and status flags
  setpos                           Setpoints of all axes
  limits                           Current limits of all axes
  version                          Firmware version
  errors                           Latched fault flags
  watch                            Stream status changes until interrupted
  trace <axis> <position> <limit>  Move and print the recorded travel
  ports                            List serial ports
  write-config                     Write the default configuration to -config

Flags:
`

func main() {
	var (
		portFlag    = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		configFlag  = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag    = flag.Bool("mock", false, "Use the in-process simulator instead of a serial port")
		averageFlag = flag.Int("average-samples", -1, "Number of samples to average in watch (0 = disabled, overrides config)")
		verboseFlag = flag.Bool("v", false, "Verbose logging")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *verboseFlag {
		log.SetLevel(log.DebugLevel)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *averageFlag >= 0 {
		cfg.Client.AverageSamples = *averageFlag
	}

	switch args[0] {
	case "ports":
		if err := listPorts(); err != nil {
			log.Fatal(err)
		}
		return
	case "write-config":
		if err := cfg.Save(*configFlag); err != nil {
			log.Fatal(err)
		}
		return
	}

	var dev client.Device
	if *mockFlag {
		dev = client.NewLoopback(cfg)
	} else {
		dev = client.NewSerial(cfg.Serial.Port, cfg.Serial.Baud, nil)
	}
	if err := dev.Connect(); err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer dev.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &app{cfg: cfg, client: client.New(dev, cfg.Client.Timeout)}
	if err := app.run(ctx, args[0], args[1:]); err != nil {
		log.Error(err)
		dev.Close()
		os.Exit(1)
	}
}

func listPorts() error {
	ports, err := client.Ports()
	if err != nil {
		return err
	}
	for _, p := range ports {
		fmt.Println(p.Name)
	}
	return nil
}

// ints parses exactly n integer arguments.
func ints(args []string, n int) ([]int, error) {
	if len(args) != n {
		return nil, fmt.Errorf("expected %d arguments, got %d", n, len(args))
	}
	out := make([]int, n)
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("invalid argument %q: %w", a, err)
		}
		out[i] = v
	}
	return out, nil
}
