// cclc is the offline rule compiler. It checks rule packs for parse and
// validation errors and prints the canonical form of conditions.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cloudassure/engine/internal/app/ruleload"
	"github.com/cloudassure/engine/internal/infra/rulesource"
	"github.com/cloudassure/engine/pkg/ccl"
	"github.com/cloudassure/engine/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cclc",
		Short:         "Compile and format cloud condition language rule packs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCheckCmd())
	root.AddCommand(newFmtCmd())
	return root
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <dir>",
		Short: "Check every rule pack in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := ruleload.New(rulesource.NewFSSource(args[0]), logger.NewNop())
			issues, err := loader.Lint(cmd.Context())
			if err != nil {
				return err
			}

			for _, issue := range issues {
				if issue.Rule != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: rule %q: %v\n", issue.Path, issue.Rule, issue.Err)
				} else {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", issue.Path, issue.Err)
				}
			}
			if len(issues) > 0 {
				return fmt.Errorf("%d problem(s) found", len(issues))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "all rule packs compile")
			return nil
		},
	}
}

func newFmtCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fmt [condition]",
		Short: "Print the canonical form of a condition (reads stdin without an argument)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return formatLine(cmd, args[0])
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if err := formatLine(cmd, line); err != nil {
					return err
				}
			}
			return scanner.Err()
		},
	}
}

func formatLine(cmd *cobra.Command, source string) error {
	cond, err := ccl.Parse(source)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), cond.String())
	return nil
}
