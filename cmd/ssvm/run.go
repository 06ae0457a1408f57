package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ssvm/ssvm/internal/dump"
	"github.com/ssvm/ssvm/pkg/vm"
)

func newRunCmd() *cobra.Command {
	var typecheck string
	var stackSize int
	var verbose bool

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "compile and execute a source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseTypecheck(typecheck)
			if err != nil {
				return err
			}
			logger := newLogger(verbose)
			defer logger.Sync()

			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			m := newMachine(level, stackSize, cmd.OutOrStdout())
			results, err := m.evalSource(string(src))
			if err != nil {
				return err
			}
			for _, r := range results {
				logger.Debug("evaluated top-level form", zap.String("value", m.render(r.Value)))
			}
			if len(results) > 0 {
				last := results[len(results)-1]
				cmd.Println(m.render(last.Value))
			}
			if verbose {
				dump.Trace(cmd.OutOrStdout(), m.thread, m.heap, m.symbols)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&typecheck, "typecheck", "on", "enable (\"on\") or disable (\"off\") per-instruction dynamic typechecks")
	cmd.Flags().IntVar(&stackSize, "stack-size", vm.DefaultStackSize, "VThread stack capacity, in OBJECT slots")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "trace every top-level form's result")
	return cmd
}

func parseTypecheck(s string) (vm.TypecheckLevel, error) {
	switch s {
	case "on", "":
		return vm.TypecheckOn, nil
	case "off":
		return vm.TypecheckOff, nil
	default:
		return vm.TypecheckOn, fmt.Errorf("--typecheck must be \"on\" or \"off\", got %q", s)
	}
}
