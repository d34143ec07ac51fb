package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/mahdiidarabi/hitag2-gnd/internal/metrics"
	"github.com/mahdiidarabi/hitag2-gnd/internal/schedule"
	"github.com/mahdiidarabi/hitag2-gnd/pkg/hitag2"
	"github.com/mahdiidarabi/hitag2-gnd/pkg/hitag2gnd"
)

type crackOptions struct {
	job            string
	keystream      string
	bits           int
	threshold      int
	layers         int
	debugState     string
	debugKey       string
	debugUID       string
	debugNonce     string
	debugMask      string
	validationBits int
	trace          bool
	metricsAddr    string
}

func newCrackCmd(root *rootOptions) *cobra.Command {
	opts := &crackOptions{}
	cmd := &cobra.Command{
		Use:   "crack",
		Short: "Recover register states from a keystream or a job file",
		Example: `  recovery crack --job fixtures/job_fixed_key.yaml
  recovery crack --keystream a79d82d0 --bits 32 --debug-state b43281238282`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := root.logger(cmd)
			if err != nil {
				return err
			}
			return runCrack(cmd, opts, logger)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.job, "job", "", "job file (YAML or JSON)")
	f.StringVar(&opts.keystream, "keystream", "", "keystream in hex, first bit most significant")
	f.IntVar(&opts.bits, "bits", 32, "keystream length in bits")
	f.IntVar(&opts.threshold, "threshold", schedule.DefaultThreshold, "layer from which the register is fully determined")
	f.IntVar(&opts.layers, "layers", schedule.DefaultLayers, "number of search layers")
	f.StringVar(&opts.debugState, "debug-state", "", "pin the search to the trajectory of this state (hex)")
	f.StringVar(&opts.debugKey, "debug-key", "", "pin the search to the state derived from this key (hex, needs --debug-uid and --debug-nonce)")
	f.StringVar(&opts.debugUID, "debug-uid", "", "tag serial number for --debug-key (hex)")
	f.StringVar(&opts.debugNonce, "debug-nonce", "", "reader nonce for --debug-key (hex)")
	f.StringVar(&opts.debugMask, "debug-mask", fmt.Sprintf("%012x", hitag2.FilterMask), "positions compared against the pinned trajectory (hex)")
	f.IntVar(&opts.validationBits, "validation-bits", hitag2gnd.DefaultMinValidationBits, "keystream bits past the last layer every solution must also match (negative for none)")
	f.BoolVar(&opts.trace, "trace", false, "log every surviving fill at debug level")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while searching")
	return cmd
}

func runCrack(cmd *cobra.Command, opts *crackOptions, logger *slog.Logger) error {
	if opts.job == "" && opts.keystream == "" {
		return errors.New("one of --job or --keystream is required")
	}
	if opts.job != "" && opts.keystream != "" {
		return errors.New("--job and --keystream are exclusive")
	}

	cfg, err := opts.config()
	if err != nil {
		return err
	}

	client := hitag2gnd.NewClient().WithConfig(cfg).WithLogger(logger)
	if opts.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		rec, err := metrics.NewRecorder(reg)
		if err != nil {
			return err
		}
		client = client.WithObserver(rec)
		stop := serveMetrics(opts.metricsAddr, reg, logger)
		defer stop()
	}

	var result *hitag2gnd.RecoveryResult
	if opts.job != "" {
		result, err = client.RecoverJob(opts.job)
	} else {
		var ks hitag2gnd.Keystream
		ks, err = hitag2gnd.ParseKeystream(opts.keystream, opts.bits)
		if err != nil {
			return err
		}
		result, err = client.Recover(ks)
	}
	if err != nil {
		return err
	}

	for _, s := range result.States() {
		fmt.Fprintf(cmd.OutOrStdout(), "%012x\n", s)
	}
	if result.Expected != nil {
		logger.Info("expected state",
			slog.String("state", fmt.Sprintf("%012x", *result.Expected)),
			slog.Bool("recovered", result.Hit()),
		)
	}
	return nil
}

func (o *crackOptions) config() (hitag2gnd.Config, error) {
	cfg := hitag2gnd.DefaultConfig()
	cfg.Trace = o.trace
	cfg.MinValidationBits = o.validationBits

	if o.threshold != schedule.DefaultThreshold || o.layers != schedule.DefaultLayers {
		s, err := schedule.Generate(hitag2.FilterTaps(), o.threshold, o.layers)
		if err != nil {
			return cfg, err
		}
		cfg.Schedule = &s
	}

	mask, err := parseHex("debug-mask", o.debugMask)
	if err != nil {
		return cfg, err
	}
	switch {
	case o.debugState != "" && o.debugKey != "":
		return cfg, errors.New("--debug-state and --debug-key are exclusive")
	case o.debugState != "":
		state, err := parseHex("debug-state", o.debugState)
		if err != nil {
			return cfg, err
		}
		cfg.Debug = &hitag2gnd.DebugConfig{Mask: mask, State: state & hitag2.StateMask}
	case o.debugKey != "":
		key, err := parseHex("debug-key", o.debugKey)
		if err != nil {
			return cfg, err
		}
		uid, err := parseHex32("debug-uid", o.debugUID)
		if err != nil {
			return cfg, err
		}
		nonce, err := parseHex32("debug-nonce", o.debugNonce)
		if err != nil {
			return cfg, err
		}
		cfg.Debug = &hitag2gnd.DebugConfig{Mask: mask, State: hitag2.Init(key&hitag2.StateMask, uid, nonce)}
	}
	return cfg, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", slog.String("addr", addr), slog.Any("error", err))
		}
	}()
	logger.Info("serving metrics", slog.String("addr", addr))
	return func() { _ = srv.Close() }
}
