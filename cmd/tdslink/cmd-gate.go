package main

import (
	"context"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/openaqua/tdslink/cmd/tdslink/subcmd"
	"github.com/openaqua/tdslink/internal/forward"
	"github.com/openaqua/tdslink/internal/gate"
	"github.com/openaqua/tdslink/internal/link"
	"github.com/openaqua/tdslink/internal/radio"
	"github.com/openaqua/tdslink/internal/state"
	"github.com/openaqua/tdslink/log2"
	"github.com/temoto/alive/v2"
)

var gateMod = subcmd.Mod{Name: "gate", Main: gateMain}

func gateMain(ctx context.Context, config *state.Config, log *log2.Log) error {
	a := alive.NewAlive()

	r, err := radio.New(config.Radio, log)
	if err != nil {
		return errors.Annotate(err, "gate radio")
	}

	var fwd forward.Forwarder
	var provider link.Provider
	switch config.Forward.Driver {
	case "http":
		fwd = forward.NewHTTP(config.Forward, log)
		if config.Link.ProbeAddr == "" {
			config.Link.ProbeAddr, err = probeAddr(config.Forward.URL)
			if err != nil {
				return errors.Annotate(err, "gate link probe")
			}
		}
		p, perr := link.NewProbe(config.Link, log)
		if perr != nil {
			return errors.Annotate(perr, "gate link probe")
		}
		p.Start(a)
		provider = p

	case "mqtt":
		m := forward.NewMQTT(config.Forward, log)
		fwd = m
		provider = m

	default:
		return errors.NotValidf("forward driver=%s", config.Forward.Driver)
	}

	lm := link.NewManager(config.Link, provider, log)
	lm.Start(a)

	restart := func(reason string) {
		log.Infof("restart: %s", reason)
		subcmd.SdNotify(daemon.SdNotifyStopping)
		a.Stop()
		// supervisor relaunches a clean process
		os.Exit(1)
	}

	g := gate.NewGate(config.Gate, config.Radio, r, fwd, lm, restart, log)
	if err := g.Run(a); err != nil {
		a.Stop()
		a.Wait()
		return err
	}
	subcmd.SdNotify(daemon.SdNotifyReady)
	log.Infof("gate running")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigs:
		log.Infof("signal=%v", sig)
		subcmd.SdNotify(daemon.SdNotifyStopping)
		a.Stop()
	case <-a.StopChan():
	}
	a.Wait()
	return nil
}

// probeAddr derives the reachability probe target from the collector URL.
func probeAddr(collector string) (string, error) {
	u, err := url.Parse(collector)
	if err != nil {
		return "", errors.Annotatef(err, "collector url=%s", collector)
	}
	host := u.Hostname()
	if host == "" {
		return "", errors.NotValidf("collector url=%s", collector)
	}
	port := u.Port()
	if port == "" {
		if u.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}
	return host + ":" + port, nil
}
