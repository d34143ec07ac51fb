// Command recovery recovers HiTag2 register states from known keystream.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mahdiidarabi/hitag2-gnd/internal/bitlayout"
	"github.com/mahdiidarabi/hitag2-gnd/internal/logging"
)

const version = "0.3.0"

type rootOptions struct {
	logLevel  string
	logFormat string
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "recovery",
		Short:        "Guess-and-determine state recovery for HiTag2",
		Version:      version,
		SilenceUsage: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "log format (text, json)")

	root.AddCommand(
		newCrackCmd(opts),
		newGenerateCmd(opts),
		newMasksCmd(),
	)
	return root
}

func (o *rootOptions) logger(cmd *cobra.Command) (*slog.Logger, error) {
	level, err := logging.ParseLevel(o.logLevel)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(o.logFormat)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Config{Level: level, Format: format, Output: cmd.ErrOrStderr()}), nil
}

func parseHex(name, s string) (uint64, error) {
	v, err := bitlayout.ParseHex(s)
	if err != nil {
		return 0, fmt.Errorf("--%s: %w", name, err)
	}
	return v, nil
}

func parseHex32(name, s string) (uint32, error) {
	v, err := parseHex(name, s)
	if err != nil {
		return 0, err
	}
	if v > 0xffffffff {
		return 0, fmt.Errorf("--%s %q does not fit in 32 bits", name, s)
	}
	return uint32(v), nil
}
