//go:build tinygo

//go:generate tinygo flash -target=pico

package main

import (
	"context"
	"fmt"
	"machine"
	"time"

	"github.com/itohio/govalve/pkg/sensor"
	"github.com/itohio/govalve/pkg/valve"
)

var uart = machine.UART0

type printLogger struct{}

func (printLogger) Printf(format string, args ...interface{}) {
	println(fmt.Sprintf(format, args...))
}

// sleepTicker calls fn every period, catching up on late wakeups.
type sleepTicker struct{}

func (sleepTicker) Every(ctx context.Context, period time.Duration, fn func()) {
	next := time.Now()
	for {
		next = next.Add(period)
		time.Sleep(time.Until(next))
		select {
		case <-ctx.Done():
			return
		default:
		}
		fn()
	}
}

func main() {
	uart.Configure(machine.UARTConfig{BaudRate: UART_BAUD_RATE})

	machine.I2C0.Configure(machine.I2CConfig{
		Frequency: I2C_FREQUENCY,
		SDA:       PIN_SDA,
		SCL:       PIN_SCL,
	})

	machine.InitADC()
	var adcs [4]sensor.ADC
	for i, pin := range PIN_BEMF {
		adc := machine.ADC{Pin: pin}
		adc.Configure(machine.ADCConfig{})
		adcs[i] = adc
	}

	scfg := sensor.DefaultConfig()
	current := sensor.NewINA219(machine.I2C0, scfg)
	if err := current.Configure(); err != nil {
		println("ina219:", err.Error())
	}
	bemf := sensor.NewBackEmf(scfg, adcs[:]...)

	br := newBridge(PIN_BRIDGE)
	ctrl := valve.New(valve.DefaultConfig(), valve.Hardware{
		Current: current,
		BackEmf: bemf,
		Pwm:     br,
	}, uart, printLogger{})

	PIN_AXIS_SELECT.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	if err := PIN_AXIS_SELECT.SetInterrupt(machine.PinFalling, func(machine.Pin) {
		ctrl.OnAxisEdge()
	}); err != nil {
		ctrl.OnUnexpectedInterrupt()
	}

	ctx := context.Background()
	ctrl.StartTimebase(ctx, sleepTicker{})
	go br.run(ctrl)
	go receive(ctrl)

	ctrl.Run(ctx, LOOP_INTERVAL)
}

// receive pumps UART bytes into the line receiver. A byte refused while a
// line waits for its answer is held and offered again.
func receive(ctrl *valve.Controller) {
	var (
		pending byte
		held    bool
	)
	for {
		if !held {
			if uart.Buffered() == 0 {
				time.Sleep(100 * time.Microsecond)
				continue
			}
			b, err := uart.ReadByte()
			if err != nil {
				continue
			}
			pending, held = b, true
		}
		if ctrl.RxByte(pending) {
			held = false
			continue
		}
		time.Sleep(100 * time.Microsecond)
	}
}
