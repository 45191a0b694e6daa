package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kstaniek/go-tcan-bench/internal/config"
)

// stdin is a hook for tests.
var stdin io.Reader = os.Stdin

// runConfig prints or writes a configuration: the -config file re-serialized,
// or an example profile.
func runConfig(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(stderr)
	example := fs.Bool("example", false, "Emit an example configuration")
	profile := fs.String("profile", "teleo", "Example profile: "+strings.Join(config.Profiles(), "|"))
	output := fs.String("o", "", "Output path (default stdout)")
	force := fs.Bool("force", false, "Overwrite an existing output file without asking")
	configPath := fs.String("config", "", "bench-cfg-v1 YAML configuration file")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	var cfg *config.Config
	var err error
	switch {
	case *example:
		cfg, err = config.Example(*profile)
	case *configPath != "":
		cfg, err = config.Load(*configPath)
	default:
		cfg = config.NewBuilder().Build()
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	data, err := cfg.Format("yaml")
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	if *output == "" {
		_, _ = stdout.Write(data)
		return 0
	}
	if _, err := os.Stat(*output); err == nil && !*force {
		fmt.Fprintf(stderr, "warning: File '%s' already exists. Overwrite? [y/N] ", *output)
		answer, _ := bufio.NewReader(stdin).ReadString('\n')
		if strings.TrimSpace(answer) != "y" {
			fmt.Fprintln(stderr, "Aborted.")
			return 1
		}
	}
	if err := os.WriteFile(*output, data, 0o644); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
