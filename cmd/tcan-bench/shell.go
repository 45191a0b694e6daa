package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell/v2"

	"github.com/kstaniek/go-tcan-bench/internal/client"
	"github.com/kstaniek/go-tcan-bench/internal/command"
	"github.com/kstaniek/go-tcan-bench/internal/control"
	"github.com/kstaniek/go-tcan-bench/internal/device"
)

// runShell starts an interactive operator shell against a running server.
func runShell(args []string, _, stderr io.Writer) int {
	fs, rf := newRemoteFlagSet("shell", stderr)
	c, code, ok := parseRemote(fs, rf, args, stderr)
	if !ok {
		return code
	}
	sh := ishell.New()
	sh.SetPrompt("tcan> ")
	addr, _ := rf.addr()
	sh.Println("tcan-bench shell, server " + addr + " (type help)")
	for _, cmd := range shellCommands(c) {
		sh.AddCmd(cmd)
	}
	sh.Run()
	return 0
}

func shellCommands(c *client.Client) []*ishell.Cmd {
	modes := make([]string, 0, len(device.Modes()))
	for _, m := range device.Modes() {
		modes = append(modes, m.String())
	}
	tokens := make([]string, 0)
	for _, tok := range control.Commands() {
		tokens = append(tokens, string(tok))
	}
	return []*ishell.Cmd{
		{
			Name:      "mode",
			Help:      "mode <" + strings.Join(modes, "|") + "|0..3>",
			Completer: func([]string) []string { return modes },
			Func: func(ctx *ishell.Context) {
				if len(ctx.Args) != 1 {
					ctx.Err(errors.New("usage: mode <name|number>"))
					return
				}
				m, err := parseShellMode(ctx.Args[0])
				if err != nil {
					ctx.Err(err)
					return
				}
				report(ctx, c.EnterMode(context.Background(), m), "mode "+m.String())
			},
		},
		{
			Name: "steering",
			Help: "steering <-1000..1000>",
			Func: func(ctx *ishell.Context) {
				if len(ctx.Args) != 1 {
					ctx.Err(errors.New("usage: steering <value>"))
					return
				}
				v, err := strconv.Atoi(ctx.Args[0])
				if err != nil {
					ctx.Err(err)
					return
				}
				report(ctx, c.SetSteering(context.Background(), v), fmt.Sprintf("steering %d", v))
			},
		},
		{
			Name: "axis",
			Help: "axis <b0> [b1 ... b7]  raw axis bytes (decimal or 0x hex)",
			Func: func(ctx *ishell.Context) {
				axis, err := parseAxisArgs(ctx.Args)
				if err != nil {
					ctx.Err(err)
					return
				}
				report(ctx, c.SetAxis(context.Background(), axis), fmt.Sprintf("axis % X", axis))
			},
		},
		{
			Name: "autocal",
			Help: "start autocalibration",
			Func: func(ctx *ishell.Context) {
				report(ctx, c.Autocal(context.Background()), "autocal queued")
			},
		},
		{
			Name:      "command",
			Help:      "command <token>  queue an arbitrary command",
			Completer: func([]string) []string { return tokens },
			Func: func(ctx *ishell.Context) {
				if len(ctx.Args) != 1 {
					ctx.Err(errors.New("usage: command <token>"))
					return
				}
				report(ctx, c.Command(context.Background(), command.Token(ctx.Args[0])), ctx.Args[0]+" queued")
			},
		},
		{
			Name: "state",
			Help: "show mode, axis and queue depth",
			Func: func(ctx *ishell.Context) {
				st, err := c.State(context.Background())
				if err != nil {
					ctx.Err(err)
					return
				}
				ctx.Printf("mode=%s(%d) axis=%v queued=%d\n", st.ModeName, st.Mode, st.Axis, st.QueueDepth)
			},
		},
	}
}

func report(ctx *ishell.Context, err error, ok string) {
	if err != nil {
		ctx.Err(err)
		return
	}
	ctx.Println(ok)
}

// parseShellMode accepts a mode name or its number.
func parseShellMode(s string) (device.Mode, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return device.ModeFromInt(n)
	}
	return device.ParseMode(s)
}

func parseAxisArgs(args []string) ([]byte, error) {
	if len(args) == 0 || len(args) > 8 {
		return nil, errors.New("usage: axis <b0> [b1 ... b7]")
	}
	out := make([]byte, len(args))
	for i, a := range args {
		v, err := strconv.ParseUint(a, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("axis byte %d: %w", i, err)
		}
		out[i] = byte(v)
	}
	return out, nil
}
