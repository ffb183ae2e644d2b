// Package cli implements crease-tool, the offline companion of the service:
// rate and pick a team from a history table or a ball-by-ball ledger, and
// generate simulated matches.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/okian/crease/internal/domain/model"
	"github.com/okian/crease/pkg/logger"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

type command struct {
	name, summary string
	run           func(ctx context.Context, env *Env, args []string) error
}

// Env is where a command reads files from and writes to.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer
	// Open and Create default to the os package; tests swap them.
	Open   func(name string) (io.ReadCloser, error)
	Create func(name string) (io.WriteCloser, error)
}

func commands() []command {
	return []command{
		{"rate", "rate players and print the rating table", runRate},
		{"team", "select the playing XI", runTeam},
		{"history", "fold a ball-by-ball ledger into a history table", runHistory},
		{"simulate", "generate matches as a ledger and roster, or score them against a server", runSimulate},
	}
}

// Run executes one crease-tool invocation and returns its exit code.
func Run(ctx context.Context, env *Env, args []string) int {
	env.defaults()
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		usage(env.Stderr)
		return ExitUsage
	}
	for _, c := range commands() {
		if c.name != args[0] {
			continue
		}
		err := c.run(ctx, env, args[1:])
		switch {
		case err == nil:
			return ExitOK
		case errors.Is(err, flag.ErrHelp):
			return ExitUsage
		case errors.Is(err, ErrUsage), errors.Is(err, ErrMissingFlag):
			fmt.Fprintf(env.Stderr, "%s: %v\n", c.name, err)
			return ExitUsage
		}
		report(env.Stderr, c.name, err)
		return ExitError
	}
	fmt.Fprintf(env.Stderr, "%v: %q\n", ErrUnknownCmd, args[0])
	usage(env.Stderr)
	return ExitUsage
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: crease-tool <command> [flags]")
	fmt.Fprintln(w)
	for _, c := range commands() {
		fmt.Fprintf(w, "  %-9s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "run crease-tool <command> -h for the flags of a command")
}

// report prints schema errors with their location so the input can be fixed.
func report(w io.Writer, cmd string, err error) {
	var se *model.SchemaError
	if errors.As(err, &se) {
		fmt.Fprintf(w, "%s: schema error: %v\n", cmd, se)
		return
	}
	fmt.Fprintf(w, "%s: %v\n", cmd, err)
}

// setupLogging sends logs to stderr so stdout carries only the table.
func setupLogging(env *Env, level, format string) error {
	if err := logger.Init(logger.WithOutput(env.Stderr), logger.WithFormat(format)); err != nil {
		return err
	}
	return logger.SetLevelString(level)
}
