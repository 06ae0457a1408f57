package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ssvm/ssvm/pkg/vm"
)

func newReplCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "read-eval-print loop over stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := newMachine(vm.TypecheckOn, vm.DefaultStackSize, cmd.OutOrStdout())
			scanner := bufio.NewScanner(cmd.InOrStdin())
			var buf strings.Builder
			depth := 0
			fmt.Fprint(cmd.OutOrStdout(), "> ")
			for scanner.Scan() {
				line := scanner.Text()
				depth += parenDepth(line)
				buf.WriteString(line)
				buf.WriteByte('\n')
				if depth > 0 {
					fmt.Fprint(cmd.OutOrStdout(), "... ")
					continue
				}
				src := buf.String()
				buf.Reset()
				depth = 0
				if strings.TrimSpace(src) != "" {
					results, err := m.evalSource(src)
					if err != nil {
						fmt.Fprintln(cmd.OutOrStdout(), asReport(err))
					}
					for _, r := range results {
						fmt.Fprintln(cmd.OutOrStdout(), m.render(r.Value))
					}
				}
				fmt.Fprint(cmd.OutOrStdout(), "> ")
			}
			return scanner.Err()
		},
	}
	return cmd
}

// parenDepth is a naive paren-balance counter so the REPL can accept a
// form spanning several lines; it does not understand string literals
// or comments, matching this CLI's minimal reader's own scope.
func parenDepth(line string) int {
	depth := 0
	for _, ch := range line {
		switch ch {
		case '(':
			depth++
		case ')':
			depth--
		}
	}
	return depth
}
