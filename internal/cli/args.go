// ABOUTME: Subcommand and flag helpers shared by the kbchat binaries
// ABOUTME: Usage errors map to exit status 2, already-reported failures to 1

package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
)

var (
	// ErrUsage means the arguments were wrong and usage has been printed.
	ErrUsage = errors.New("usage")
	// ErrReported means the failure has already been shown to the user.
	ErrReported = errors.New("reported")
)

// Split returns the subcommand and its arguments, or "" when none was given.
func Split(args []string) (string, []string) {
	if len(args) == 0 {
		return "", nil
	}
	return args[0], args[1:]
}

// Command parses one subcommand's flags and positional arguments.
type Command struct {
	*flag.FlagSet
	prog  string
	usage string
	out   io.Writer
}

// NewCommand builds a flag set for "prog usage" that reports errors instead
// of exiting.
func NewCommand(prog, usage string, out io.Writer) *Command {
	fs := flag.NewFlagSet(usage, flag.ContinueOnError)
	fs.SetOutput(out)
	c := &Command{FlagSet: fs, prog: prog, usage: usage, out: out}
	fs.Usage = c.printUsage
	return c
}

// Parse parses args and checks that at least min positional arguments remain.
func (c *Command) Parse(args []string, min int) error {
	if err := c.FlagSet.Parse(args); err != nil {
		return ErrUsage
	}
	if c.NArg() < min {
		c.printUsage()
		return ErrUsage
	}
	return nil
}

// Usagef prints a problem with the arguments and returns ErrUsage.
func (c *Command) Usagef(format string, args ...any) error {
	fmt.Fprintf(c.out, format+"\n", args...)
	c.printUsage()
	return ErrUsage
}

// Set reports whether the named flag was given on the command line.
func (c *Command) Set(name string) bool {
	found := false
	c.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func (c *Command) printUsage() {
	fmt.Fprintf(c.out, "Usage: %s %s\n", c.prog, c.usage)
	c.PrintDefaults()
}

// Unknown reports a missing or unrecognised subcommand of group.
func Unknown(out io.Writer, prog, group, sub string) error {
	if sub == "" {
		fmt.Fprintf(out, "Usage: %s %s <command>. Run `%s help` for the list.\n", prog, group, prog)
	} else {
		fmt.Fprintf(out, "Unknown %s command: %s\n", group, sub)
	}
	return ErrUsage
}

// ExitCode maps a command result to a process exit status, reporting
// unexpected errors through a.
func (a *App) ExitCode(err error) int {
	switch {
	case errors.Is(err, ErrUsage):
		return 2
	case errors.Is(err, ErrReported):
		return 1
	}
	return a.Fail(err)
}
