package main

import (
	"fmt"
	"io"
	"os"
	"sort"
)

type subcommand struct {
	run  func(args []string, stdout, stderr io.Writer) int
	help string
}

func commands() map[string]subcommand {
	return map[string]subcommand{
		"serve":        {runServe, "Run the control server (heartbeat, dispatcher, HTTP API)"},
		"enter-remote": {runEnterRemote, "Switch the device into remote mode"},
		"set":          {runSet, "Set mode and/or steering"},
		"autocal":      {runAutocal, "Queue an autocalibration"},
		"state":        {runState, "Print the server's current state"},
		"monitor":      {runMonitor, "Stream frames written to the bus"},
		"shell":        {runShell, "Interactive operator shell"},
		"config":       {runConfig, "Print or write a configuration file"},
		"version":      {runVersion, "Print version information"},
	}
}

func usage(w io.Writer) {
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for n := range cmds {
		names = append(names, n)
	}
	sort.Strings(names)
	fmt.Fprintln(w, "Usage: tcan-bench <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, n := range names {
		fmt.Fprintf(w, "  %-13s %s\n", n, cmds[n].help)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'tcan-bench <command> -h' for command flags.")
}

func runVersion(_ []string, stdout, _ io.Writer) int {
	fmt.Fprintf(stdout, "tcan-bench %s (commit %s, built %s)\n", version, commit, date)
	return 0
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	switch args[0] {
	case "-h", "-help", "--help", "help":
		usage(stdout)
		return 0
	case "-version", "--version":
		return runVersion(nil, stdout, stderr)
	}
	cmd, ok := commands()[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}
	return cmd.run(args[1:], stdout, stderr)
}

func main() { os.Exit(run(os.Args[1:], os.Stdout, os.Stderr)) }
