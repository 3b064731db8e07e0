// Package cmd wires the scan/parse/resolve/interpret pipeline in package lox
// up to a command-line surface: a REPL when invoked with no script, or a
// one-shot file run when given a path. It is the "driver" that spec.md
// treats as an external collaborator of the interpreter core.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/chzyer/readline"
	"github.com/hashicorp/go-multierror"
	"github.com/rami3l/golox/lox"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	easy "github.com/t-tomalak/logrus-easy-formatter"
)

// Exit codes, per spec.md §6.2.
const (
	ExitOK      = 0
	ExitUsage   = 64
	ExitSyntax  = 65
	ExitRuntime = 70
)

func App() (app *cobra.Command) {
	app = &cobra.Command{
		Use:   "golox [script]",
		Short: "Launch the `golox` interpreter",
		// Arg-count validation is appMain's job, not cobra's: spec.md §6.2
		// wants "more than one script" handled as a usage error printed and
		// exited by the interpreter itself (ExitUsage), not by cobra bailing
		// out of Execute() before Run is ever called.
		Args: cobra.ArbitraryArgs,
	}

	app.Flags().SortFlags = true
	defaultVerbosityStr := "INFO"
	verbosity := app.Flags().StringP("verbosity", "v", defaultVerbosityStr, "Logging verbosity")

	app.Run = func(_ *cobra.Command, args []string) {
		verbosityLvl, err := logrus.ParseLevel(*verbosity)
		if err != nil {
			verbosityLvl, _ = logrus.ParseLevel(defaultVerbosityStr)
		}
		logrus.SetLevel(verbosityLvl)
		logrus.SetFormatter(&easy.Formatter{LogFormat: "//DBG// %msg%\n"})

		os.Exit(appMain(args))
	}
	return
}

func appMain(args []string) int {
	switch len(args) {
	case 0:
		if err := runPrompt(); err != nil {
			logrus.Fatal(err)
		}
		return ExitOK
	case 1:
		return runFile(args[0])
	default:
		fmt.Println("Usage: golox [script]")
		return ExitUsage
	}
}

func runFile(path string) int {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitRuntime
	}

	in := lox.NewInterpreter()
	_, err = run(in, string(src), false)
	switch e := err.(type) {
	case nil:
		return ExitOK
	case syntaxError:
		fmt.Fprintln(os.Stderr, e.error)
		return ExitSyntax
	default:
		fmt.Fprintln(os.Stderr, err)
		return ExitRuntime
	}
}

func runPrompt() error {
	rl, err := readline.New(">> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	in := lox.NewInterpreter()
	for {
		line, err := rl.Readline()
		switch {
		case err == readline.ErrInterrupt:
			continue
		case err == io.EOF:
			return nil
		case err != nil:
			return err
		}

		if val, err := run(in, line, true); err != nil {
			fmt.Fprintln(os.Stderr, unwrapTagged(err))
		} else if val != nil {
			fmt.Println(lox.Display(val))
		}
	}
}

// syntaxError tags a scan/parse/resolution failure so the driver can map it
// to exit code 65 instead of 70, per spec.md §6.2's exit-code table.
type syntaxError struct{ error }

func unwrapTagged(err error) error {
	if se, ok := err.(syntaxError); ok {
		return se.error
	}
	return err
}

// run scans, parses, resolves, and interprets src against in, returning the
// value of the last expression statement for REPL echoing. A failure
// during scanning, parsing, or resolution is wrapped in syntaxError so
// callers can distinguish it from a runtime error.
func run(in *lox.Interpreter, src string, isREPL bool) (lox.Value, error) {
	scanner := lox.NewScanner(src)
	tokens, scanErrs := scanner.ScanTokens()
	if len(scanErrs) > 0 {
		return nil, syntaxError{joinErrs(scanErrs)}
	}

	stmts, err := lox.NewParser(tokens).Parse()
	if err != nil {
		return nil, syntaxError{err}
	}

	if err := lox.NewResolver().Resolve(stmts); err != nil {
		return nil, syntaxError{err}
	}

	val, err := in.Interpret(stmts)
	if err != nil {
		return nil, err
	}
	if !isREPL {
		return nil, nil
	}
	return val, nil
}

func joinErrs(errs []error) error {
	var merr *multierror.Error
	for _, e := range errs {
		merr = multierror.Append(merr, e)
	}
	return merr.ErrorOrNil()
}
