package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/jmaddaus/sprintlens/internal/config"
	"github.com/jmaddaus/sprintlens/internal/logging"
)

const usage = `lens - sprint report generator

Usage:
  lens [global flags] <command> [flags]

Commands:
  generate   Build the snapshot document (JSON or HTML) from a CSV export
  export     Write a generation to a SQLite database
  filter     Re-aggregate a snapshot under sprint/type/priority/status selections
  summary    Print the KPIs and recommendations of a snapshot
  serve      Serve a snapshot over HTTP
  config     Show or write the configuration (show, init)
  db         Database tools (version, check, downgrade, trend, count)
  help       Show this help
  version    Show version

Global Flags:
  --config PATH       Config file (default: $LENS_CONFIG or ./sprintlens.yaml)
  --log-level LEVEL   debug, info, warn or error (default: from config)
  --pretty            Use pretty-printed output instead of JSON

Run 'lens <command> --help' for more information on a command.`

// globalFlags holds flags that are available to all subcommands.
type globalFlags struct {
	config   string
	logLevel string
	pretty   bool
}

// parseGlobalFlags extracts global flags from the front of the argument list
// and returns the remaining args. Global flags must come before the subcommand.
func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	var gf globalFlags
	fs := flag.NewFlagSet("lens", flag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.Usage = func() {}
	fs.StringVar(&gf.config, "config", "", "config file")
	fs.StringVar(&gf.logLevel, "log-level", "", "log level")
	fs.BoolVar(&gf.pretty, "pretty", false, "pretty output")

	if err := fs.Parse(args); err != nil {
		return gf, nil, err
	}
	return gf, fs.Args(), nil
}

// env is what every command runs with: the loaded configuration, the
// logger built from it and the output mode.
type env struct {
	cfg    *config.Config
	log    zerolog.Logger
	pretty bool
	// configPath is the --config value, empty when none was given.
	configPath string
}

// newEnv loads the configuration and builds the logger.
func newEnv(gf globalFlags) (*env, error) {
	cfg, err := config.Load(gf.config)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if gf.logLevel != "" {
		cfg.LogLevel = gf.logLevel
	}
	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log, pretty: gf.pretty, configPath: gf.config}, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newFlagSet returns a sub-command flag set that reports errors instead of
// exiting.
func newFlagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SortFlags = false
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, usage)
		fs.PrintDefaults()
	}
	return fs
}

// Run dispatches the CLI based on the provided arguments.
func Run(args []string, version string) error {
	gf, remaining, err := parseGlobalFlags(args)
	if err != nil {
		return fmt.Errorf("%w\nRun 'lens help' for usage", err)
	}

	if len(remaining) == 0 {
		fmt.Println(usage)
		return nil
	}

	cmd := remaining[0]
	subArgs := remaining[1:]

	switch cmd {
	case "help", "--help", "-h":
		fmt.Println(usage)
		return nil
	case "version", "--version", "-v":
		fmt.Printf("lens version %s\n", version)
		return nil
	case "db":
		// The db tools work on raw files and need no configuration.
		return runDB(subArgs, gf)
	}

	e, err := newEnv(gf)
	if err != nil {
		return err
	}

	switch cmd {
	case "generate":
		return runGenerate(subArgs, e)
	case "export":
		return runExport(subArgs, e)
	case "filter":
		return runFilter(subArgs, e)
	case "summary":
		return runSummary(subArgs, e)
	case "serve":
		return runServe(subArgs, e)
	case "config":
		return runConfig(subArgs, e)
	default:
		return fmt.Errorf("unknown command: %s\nRun 'lens help' for usage", strings.TrimSpace(cmd))
	}
}
