// autofinctl is the operator CLI for AutoFinance: a local chat REPL, a loan
// quote calculator, and an application status lookup.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	exitSuccess = 0
	exitError   = 1
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitError)
	}
	os.Exit(exitSuccess)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "autofinctl",
		Short:         "Operate and explore the AutoFinance intake assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newChatCmd(), newQuoteCmd(), newStatusCmd())
	return root
}
