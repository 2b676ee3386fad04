package main

import (
	"context"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/openaqua/tdslink/cmd/tdslink/subcmd"
	"github.com/openaqua/tdslink/internal/i2c"
	"github.com/openaqua/tdslink/internal/node"
	"github.com/openaqua/tdslink/internal/radio"
	"github.com/openaqua/tdslink/internal/sensor"
	"github.com/openaqua/tdslink/internal/state"
	"github.com/openaqua/tdslink/log2"
)

var nodeMod = subcmd.Mod{Name: "node", Main: nodeMain}

// One activation of the battery transmitter. The launch timer unit is
// responsible for the next activation, this process only suspends.
func nodeMain(ctx context.Context, config *state.Config, log *log2.Log) error {
	bus := i2c.NewBus(byte(config.Sensor.I2CBus))
	adc := sensor.NewADS1115(bus, byte(config.Sensor.I2CAddr))
	unit := sensor.NewUnit(config.Sensor, adc, log)

	r, err := radio.New(config.Radio, log)
	if err != nil {
		return errors.Annotate(err, "node radio")
	}

	ctl := node.NewController(config.Node, config.Radio, r, unit, node.RtcWake{Log: log}, log)
	subcmd.SdNotify(daemon.SdNotifyReady)
	ctl.Run()
	return nil
}
