// Package cli is a small command tree on top of pflag.
package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// ErrHelp is returned after help was printed on request.
var ErrHelp = errors.New("help requested")

type Command struct {
	Name    string
	Summary string
	// Usage is the argument synopsis shown after the command path, e.g. "<id> [flags]".
	Usage string

	// Flags is called once per invocation to build the command's flag set.
	Flags func(fs *pflag.FlagSet)

	// Persistent flags are accepted by c and every command below it, before
	// or after the subcommand name. Defaults must be the current values,
	// since the flags are bound again at each level.
	Persistent func(fs *pflag.FlagSet)

	Subcommands []*Command

	// Run receives the positional arguments left after flag parsing.
	Run func(fs *pflag.FlagSet, args []string) error

	parent *Command
}

// Execute dispatches args to the matching subcommand, or parses flags and runs c.
func (c *Command) Execute(w io.Writer, args []string) error {
	if len(args) > 0 && isHelp(args[0]) {
		c.PrintHelp(w)
		return ErrHelp
	}

	if c.Persistent != nil && len(c.Subcommands) > 0 && len(args) > 0 && strings.HasPrefix(args[0], "-") {
		fs := pflag.NewFlagSet(c.Path(), pflag.ContinueOnError)
		fs.SetOutput(io.Discard)
		fs.SetInterspersed(false)
		c.Persistent(fs)
		if err := fs.Parse(args); err != nil {
			if errors.Is(err, pflag.ErrHelp) {
				c.PrintHelp(w)
				return ErrHelp
			}
			return fmt.Errorf("%w; run '%s --help' for usage", err, c.Path())
		}
		args = fs.Args()
		if len(args) > 0 && isHelp(args[0]) {
			c.PrintHelp(w)
			return ErrHelp
		}
	}

	if len(c.Subcommands) > 0 {
		if len(args) == 0 || strings.HasPrefix(args[0], "-") {
			if c.Run == nil {
				c.PrintHelp(w)
				return fmt.Errorf("%s: subcommand required", c.Path())
			}
		} else {
			for _, sub := range c.Subcommands {
				if sub.Name == args[0] {
					sub.parent = c
					return sub.Execute(w, args[1:])
				}
			}
			if c.Run == nil {
				return fmt.Errorf("unknown command %q; run '%s --help' for usage", args[0], c.Path())
			}
		}
	}

	fs := c.flagSet()
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			c.PrintHelp(w)
			return ErrHelp
		}
		return fmt.Errorf("%w; run '%s --help' for usage", err, c.Path())
	}

	if c.Run == nil {
		c.PrintHelp(w)
		return fmt.Errorf("%s: nothing to run", c.Path())
	}
	return c.Run(fs, fs.Args())
}

// Path is the space-separated command path from the root.
func (c *Command) Path() string {
	if c.parent == nil {
		return c.Name
	}
	return c.parent.Path() + " " + c.Name
}

func (c *Command) PrintHelp(w io.Writer) {
	if c.Summary != "" {
		fmt.Fprintf(w, "%s\n\n", c.Summary)
	}

	usage := c.Usage
	if usage == "" {
		if len(c.Subcommands) > 0 {
			usage = "<command> [flags]"
		} else {
			usage = "[flags]"
		}
	}
	fmt.Fprintf(w, "Usage:\n  %s %s\n", c.Path(), usage)

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nCommands:\n")
		tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
		for _, sub := range c.Subcommands {
			fmt.Fprintf(tw, "  %s\t%s\n", sub.Name, sub.Summary)
		}
		tw.Flush()
	}

	if usages := c.flagSet().FlagUsages(); usages != "" {
		fmt.Fprintf(w, "\nFlags:\n%s", usages)
	}
}

// flagSet holds c's own flags plus the persistent flags of c and its ancestors.
func (c *Command) flagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(c.Path(), pflag.ContinueOnError)
	if c.Flags != nil {
		c.Flags(fs)
	}
	for p := c; p != nil; p = p.parent {
		if p.Persistent != nil {
			p.Persistent(fs)
		}
	}
	return fs
}

// ExactArgs returns an error unless args has n elements.
func ExactArgs(args []string, n int, names ...string) error {
	if len(args) == n {
		return nil
	}
	if len(names) > 0 {
		return fmt.Errorf("expected %d argument(s): %s", n, strings.Join(names, " "))
	}
	return fmt.Errorf("expected %d argument(s), got %d", n, len(args))
}

func isHelp(arg string) bool {
	return arg == "-h" || arg == "--help" || arg == "help"
}
