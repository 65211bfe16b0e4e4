package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/codemonument/sftpc/internal/output"
	"github.com/codemonument/sftpc/pkg/logging"
	"github.com/codemonument/sftpc/pkg/session"
)

// verbosityEnv overrides the default verbosity when --verbosity is not given.
const verbosityEnv = "SFTPC_VERBOSITY"

// verbosityFlag is a logging.Mode that remembers whether it was set.
type verbosityFlag struct {
	mode logging.Mode
	set  bool
}

func (v *verbosityFlag) String() string { return v.mode.String() }

func (v *verbosityFlag) Set(s string) error {
	if err := v.mode.Set(s); err != nil {
		return err
	}
	v.set = true
	return nil
}

func (v *verbosityFlag) Type() string { return v.mode.Type() }

var _ pflag.Value = (*verbosityFlag)(nil)

// loadEnv applies environment defaults and checks global flags.
func loadEnv(cmd *cobra.Command, args []string) error {
	if env := os.Getenv(verbosityEnv); env != "" && !verbosity.set {
		if err := verbosity.Set(env); err != nil {
			return fmt.Errorf("%s: %w", verbosityEnv, err)
		}
	}

	switch logFormat {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("unknown log format %q (must be text or json)", logFormat)
	}
}

// newOutput returns the console writer. Color is only used on a terminal.
func newOutput() *output.Output {
	out := output.New(os.Stdout)
	out.SetColor(!noColor && term.IsTerminal(int(os.Stdout.Fd())))
	out.SetDebug(debug)
	return out
}

// newLogger returns the session logger for --log-format, or nil to log
// through the console writer.
func newLogger() logging.Logger {
	if logFormat != "json" {
		return nil
	}

	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(logrus.DebugLevel)
	return logging.NewLogrus(l)
}

// sessionFlags holds the flags of the ad hoc session commands.
type sessionFlags struct {
	cwd       string
	label     string
	binary    string
	container string
	pty       bool
	args      []string
}

func (f *sessionFlags) flagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("session", pflag.ContinueOnError)
	fs.StringVarP(&f.cwd, "cwd", "C", "", "Local working directory of sftp")
	fs.StringVar(&f.label, "label", "", "Prefix for session log lines")
	fs.StringVar(&f.binary, "sftp", "sftp", "sftp executable")
	fs.StringVar(&f.container, "container", "", "Run sftp inside this docker container")
	fs.BoolVar(&f.pty, "pty", false, "Run sftp on a pseudo-terminal")
	fs.StringArrayVarP(&f.args, "sftp-arg", "o", nil, "Extra argument passed to sftp (repeatable)")
	return fs
}

// options builds session options from the flags.
func (f *sessionFlags) options(log logging.Logger) []session.Option {
	opts := []session.Option{
		session.WithLogger(log),
		session.WithVerbosity(verbosity.mode),
		session.WithBinary(f.binary),
	}
	if f.cwd != "" {
		opts = append(opts, session.WithCwd(f.cwd))
	}
	if f.label != "" {
		opts = append(opts, session.WithLabel(f.label))
	}
	if len(f.args) > 0 {
		opts = append(opts, session.WithArgs(f.args...))
	}
	if f.pty {
		opts = append(opts, session.WithPTY())
	}
	if f.container != "" {
		opts = append(opts, session.WithContainer(f.container))
	}
	return opts
}
