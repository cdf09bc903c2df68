package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jmaddaus/sprintlens/internal/config"
)

const configUsage = `Usage:
  lens config show          Print the effective configuration as YAML
  lens config init [path]   Write the default configuration (default: ./sprintlens.yaml)`

func runConfig(args []string, e *env) error {
	if len(args) == 0 {
		return fmt.Errorf("%s", configUsage)
	}

	switch args[0] {
	case "show":
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		return enc.Encode(e.cfg)
	case "init":
		return runConfigInit(args[1:])
	default:
		return fmt.Errorf("unknown config subcommand: %s\n%s", args[0], configUsage)
	}
}

func runConfigInit(args []string) error {
	path := config.DefaultFileName
	if len(args) > 0 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := config.Save(config.DefaultConfig(), path); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}
