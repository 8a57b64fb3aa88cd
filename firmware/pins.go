//go:build tinygo

package main

import (
	"machine"
	"time"
)

const (
	// PWM shared by all bridges. The current sample is taken near the end
	// of the on phase, the back-EMF sample after the bridge is off and the
	// winding has settled.
	PWM_PERIOD    = 8 * time.Millisecond
	PWM_ON_TIME   = 6 * time.Millisecond
	BEMF_SETTLE   = 500 * time.Microsecond
	LOOP_INTERVAL = 500 * time.Microsecond

	UART_BAUD_RATE = 115200
	I2C_FREQUENCY  = 400 * machine.KHz
)

var (
	// Bridge inputs per axis: open, close.
	PIN_BRIDGE = [4][2]machine.Pin{
		{machine.GPIO6, machine.GPIO7},
		{machine.GPIO8, machine.GPIO9},
		{machine.GPIO10, machine.GPIO11},
		{machine.GPIO12, machine.GPIO13},
	}

	// Back-EMF dividers, one per axis. GPIO29 is VSYS/3 on the stock
	// Pico, the valve board routes it to axis 4 instead.
	PIN_BEMF = [4]machine.Pin{
		machine.ADC0,
		machine.ADC1,
		machine.ADC2,
		machine.GPIO29,
	}

	PIN_SDA = machine.GPIO4
	PIN_SCL = machine.GPIO5

	// Pulled low by the axis selector switch on the front panel.
	PIN_AXIS_SELECT = machine.GPIO15
)
