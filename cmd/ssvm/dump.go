package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ssvm/ssvm/pkg/vm"
)

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <file>",
		Short: "compile a source file and print its instruction pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			m := newMachine(vm.TypecheckOn, vm.DefaultStackSize, cmd.OutOrStdout())
			subr, err := m.compileSource(string(src))
			if err != nil {
				return err
			}
			m.code.Dump(cmd.OutOrStdout(), m.symbols)
			cmd.Printf("; %d top-level entries\n", len(subr.EntryIDs))
			return nil
		},
	}
	return cmd
}
