package cli

import (
	"fmt"

	"github.com/jmaddaus/sprintlens/internal/report"
	"github.com/jmaddaus/sprintlens/internal/server"
)

const serveUsage = `Usage:
  lens serve <snapshot.json> [--listen addr]

Serves the snapshot read-only until interrupted.`

func runServe(args []string, e *env) error {
	fs := newFlagSet("serve", serveUsage)
	listen := fs.String("listen", "", "Listen address (default: listen_addr from config)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("serve requires a snapshot path\n%s", serveUsage)
	}

	snap, err := report.Load(fs.Arg(0))
	if err != nil {
		return err
	}

	cfg := *e.cfg
	if *listen != "" {
		cfg.ListenAddr = *listen
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	ctx, stop := signalContext()
	defer stop()
	return server.New(snap, &cfg, e.log).Run(ctx)
}
