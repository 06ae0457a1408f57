// Command ssvm is the CLI front end spec.md §6 describes "for
// completeness": construct a VM, compile a source file, run it, and
// optionally dump its state. The teacher wires its three binaries with
// flag+log; this one roots on Cobra, with go.uber.org/zap in place of
// the teacher's bare log.Printf for leveled, structured diagnostics.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds a zap.Logger with no timestamp/caller noise, close
// in spirit to the teacher's log.SetFlags(0) ("no timestamp, no
// file/line prefix") — just the level and message.
func newLogger(verbose bool) *zap.Logger {
	level := zap.WarnLevel
	if verbose {
		level = zap.DebugLevel
	}
	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      false,
		Encoding:         "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:       "msg",
			LevelKey:         "level",
			EncodeLevel:      zapcore.CapitalLevelEncoder,
			LineEnding:       zapcore.DefaultLineEnding,
			ConsoleSeparator: " ",
		},
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ssvm",
		Short:         "compile and run a CPS Scheme virtual machine",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newDumpCmd())
	root.AddCommand(newReplCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, asReport(err))
		os.Exit(1)
	}
}
