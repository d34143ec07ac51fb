package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mahdiidarabi/hitag2-gnd/internal/parser"
	"github.com/mahdiidarabi/hitag2-gnd/internal/scenario"
	"github.com/mahdiidarabi/hitag2-gnd/internal/schedule"
	"github.com/mahdiidarabi/hitag2-gnd/pkg/hitag2"
)

type generateOptions struct {
	key       string
	uid       string
	nonce     string
	seed      string
	bits      int
	threshold int
	layers    int
	out       string
}

func newGenerateCmd(root *rootOptions) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Derive a register state and keystream from key material",
		Example: `  recovery generate --key 414141414141 --uid 42424242 --nonce 43434343
  recovery generate --seed trial-7 --bits 40 --out job.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := root.logger(cmd)
			if err != nil {
				return err
			}
			return runGenerate(cmd, opts, logger)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.key, "key", "", "48-bit key (hex)")
	f.StringVar(&opts.uid, "uid", "", "tag serial number (hex)")
	f.StringVar(&opts.nonce, "nonce", "", "reader nonce (hex)")
	f.StringVar(&opts.seed, "seed", "", "derive key, uid and nonce from this seed instead")
	f.IntVar(&opts.bits, "bits", 32, "keystream length in bits (1-64)")
	f.IntVar(&opts.threshold, "threshold", schedule.DefaultThreshold, "schedule threshold written to the job file")
	f.IntVar(&opts.layers, "layers", schedule.DefaultLayers, "schedule layers written to the job file")
	f.StringVar(&opts.out, "out", "", "write a job file pinned to the generated state")
	return cmd
}

func (o *generateOptions) scenario() (scenario.Scenario, error) {
	if o.seed != "" {
		if o.key != "" || o.uid != "" || o.nonce != "" {
			return scenario.Scenario{}, errors.New("--seed excludes --key, --uid and --nonce")
		}
		return scenario.FromSeed([]byte(o.seed)), nil
	}

	key, err := parseHex("key", o.key)
	if err != nil {
		return scenario.Scenario{}, err
	}
	uid, err := parseHex32("uid", o.uid)
	if err != nil {
		return scenario.Scenario{}, err
	}
	nonce, err := parseHex32("nonce", o.nonce)
	if err != nil {
		return scenario.Scenario{}, err
	}
	return scenario.New(key, uid, nonce), nil
}

func runGenerate(cmd *cobra.Command, opts *generateOptions, logger *slog.Logger) error {
	if opts.bits < 1 || opts.bits > 64 {
		return fmt.Errorf("%w: got %d", parser.ErrBits, opts.bits)
	}
	sc, err := opts.scenario()
	if err != nil {
		return err
	}

	state := sc.State()
	ks := sc.Keystream(opts.bits)

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "key:       %012x\n", sc.Key)
	fmt.Fprintf(w, "uid:       %08x\n", sc.UID)
	fmt.Fprintf(w, "nonce:     %08x\n", sc.Nonce)
	fmt.Fprintf(w, "state:     %012x\n", state)
	fmt.Fprintf(w, "keystream: %0*x (%d bits)\n", (opts.bits+3)/4, ks.Uint(), opts.bits)

	if opts.out == "" {
		return nil
	}

	sched, err := schedule.Generate(hitag2.FilterTaps(), opts.threshold, opts.layers)
	if err != nil {
		return err
	}
	ref := sc.Debug(sched.Len(), hitag2.FilterMask)
	job := &parser.Job{
		Keystream: ks,
		Schedule:  &sched,
		Debug:     &parser.Debug{Mask: ref.Mask, Reference: ref.Reference},
		Expect:    &state,
	}

	file, err := os.Create(opts.out)
	if err != nil {
		return fmt.Errorf("failed to create job file: %w", err)
	}
	defer file.Close()

	if err := parser.WriteJob(file, job); err != nil {
		return err
	}
	logger.Info("job written", slog.String("path", opts.out), slog.Int("layers", sched.Len()))
	return nil
}
