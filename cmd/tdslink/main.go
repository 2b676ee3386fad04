package main

import (
	"context"
	"flag"
	"os"

	"github.com/juju/errors"
	"github.com/mattn/go-isatty"
	"github.com/openaqua/tdslink/cmd/tdslink/subcmd"
	"github.com/openaqua/tdslink/internal/state"
	"github.com/openaqua/tdslink/log2"
)

var log = log2.NewStderr(log2.LDebug)

var modules = []subcmd.Mod{
	nodeMod,
	gateMod,
}

func main() {
	flagConfig := flag.String("config", "tdslink.hcl", "")
	flag.Parse()

	mod, err := subcmd.Parse(flag.Arg(0), modules)
	if err != nil {
		log.Fatalf("command line: %v\nusage: tdslink [flags] node|gate", err)
	}

	if subcmd.SdNotify("start") {
		// under systemd, journal adds timestamps
		log.SetFlags(log2.LServiceFlags)
	} else if isatty.IsTerminal(os.Stderr.Fd()) {
		log.SetFlags(log2.LInteractiveFlags)
	} else {
		log.SetFlags(log2.LStdFlags)
	}
	log.SetPrefix(mod.Name + " ")

	config := state.MustReadConfig(log, state.NewOsFullReader(), *flagConfig)
	log.Debugf("config=%+v", config)

	ctx := context.Background()
	if err := mod.Main(ctx, config, log); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
}
