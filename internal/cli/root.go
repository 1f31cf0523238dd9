// Package cli implements the mailcheck command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dalemusser/mailcheck/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitInvalid = 1
	ExitUsage   = 2
)

// ExitError carries a process exit code out of a command. A nil Err means
// the code is the whole message and nothing is printed.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func usageError(format string, args ...any) error {
	return &ExitError{Code: ExitUsage, Err: fmt.Errorf(format, args...)}
}

// NewRootCmd builds the command tree. I/O goes through the given streams so
// tests can drive it.
func NewRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "mailcheck",
		Short:         "Check email address syntax",
		Long:          "mailcheck validates email addresses against a simplified syntax: ASCII local parts of letters, digits, dot, underscore and hyphen, and a dotted domain with an alphabetic TLD.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")

	// The CLI logger is built after flags are parsed.
	logger := func() *zap.Logger { return logging.CLILogger(verbose) }

	root.AddCommand(
		newCheckCmd(logger),
		newServeCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command tree with args and returns the process exit code.
func Execute(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	root := NewRootCmd(in, out, errOut)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintln(errOut, "mailcheck:", exitErr.Err)
		}
		return exitErr.Code
	}

	// Unknown commands and flag parse failures.
	fmt.Fprintln(errOut, "mailcheck:", err)
	return ExitUsage
}
