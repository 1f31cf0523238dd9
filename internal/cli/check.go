package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dalemusser/mailcheck/emailsyntax"
	"github.com/dalemusser/mailcheck/validate"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// maxLineBytes bounds a single stdin line.
const maxLineBytes = 1 << 20

type checkOptions struct {
	Format  string `validate:"required,oneof=text json yaml"`
	Explain bool
	Quiet   bool
}

type result struct {
	Email  string             `json:"email" yaml:"email"`
	Valid  bool               `json:"valid" yaml:"valid"`
	Reason emailsyntax.Reason `json:"reason" yaml:"reason"`
}

func newCheckCmd(logger func() *zap.Logger) *cobra.Command {
	opts := checkOptions{}

	cmd := &cobra.Command{
		Use:   "check [address...]",
		Short: "Check addresses given as arguments or one per line on stdin",
		Long: `Check each address and print one result per line.

With no arguments, addresses are read from stdin one per line; surrounding
whitespace is trimmed and blank lines are skipped.

Exit status is 0 when every address is valid, 1 when any is invalid, and 2 on
usage or input errors.`,
		Example: `  mailcheck check user@example.com
  mailcheck check --explain a..b@example.com
  cat list.txt | mailcheck check --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validate.Struct(opts); err != nil {
				return usageError("invalid --format %q: must be text, json or yaml", opts.Format)
			}
			return runCheck(cmd.InOrStdin(), cmd.OutOrStdout(), logger(), args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "text", "output format: text, json or yaml")
	cmd.Flags().BoolVarP(&opts.Explain, "explain", "e", false, "include the failing check in text output")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "print nothing; report through the exit status only")
	return cmd
}

func runCheck(in io.Reader, out io.Writer, logger *zap.Logger, args []string, opts checkOptions) error {
	candidates := args
	if len(candidates) == 0 {
		var err error
		candidates, err = readCandidates(in)
		if err != nil {
			return &ExitError{Code: ExitUsage, Err: fmt.Errorf("read stdin: %w", err)}
		}
		logger.Debug("read candidates from stdin", zap.Int("count", len(candidates)))
	}
	if len(candidates) == 0 {
		return usageError("no addresses given")
	}

	results := make([]result, len(candidates))
	invalid := 0
	for i, c := range candidates {
		reason := emailsyntax.Check(c)
		results[i] = result{Email: c, Valid: reason == emailsyntax.OK, Reason: reason}
		if reason != emailsyntax.OK {
			invalid++
			logger.Debug("invalid address", zap.String("email", c), zap.Stringer("reason", reason))
		}
	}

	if !opts.Quiet {
		if err := writeResults(out, results, opts); err != nil {
			return &ExitError{Code: ExitUsage, Err: fmt.Errorf("write output: %w", err)}
		}
	}

	if invalid > 0 {
		return &ExitError{Code: ExitInvalid}
	}
	return nil
}

func readCandidates(in io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 4096), maxLineBytes)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

func writeResults(w io.Writer, results []result, opts checkOptions) error {
	switch opts.Format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)

	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(results); err != nil {
			return err
		}
		return enc.Close()

	default:
		bw := bufio.NewWriter(w)
		for _, r := range results {
			status := "valid"
			if !r.Valid {
				status = "invalid"
			}
			if opts.Explain {
				fmt.Fprintf(bw, "%s\t%s\t%s\n", status, r.Email, r.Reason)
			} else {
				fmt.Fprintf(bw, "%s\t%s\n", status, r.Email)
			}
		}
		return bw.Flush()
	}
}
