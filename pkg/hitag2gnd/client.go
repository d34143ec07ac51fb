package hitag2gnd

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mahdiidarabi/hitag2-gnd/internal/logging"
	"github.com/mahdiidarabi/hitag2-gnd/internal/parser"
	"github.com/mahdiidarabi/hitag2-gnd/internal/scenario"
	"github.com/mahdiidarabi/hitag2-gnd/internal/schedule"
	"github.com/mahdiidarabi/hitag2-gnd/internal/search"
	"github.com/mahdiidarabi/hitag2-gnd/pkg/hitag2"
)

var (
	ErrShortKeystream = errors.New("keystream shorter than schedule plus validation window")
	ErrReference      = errors.New("debug reference shorter than schedule")
)

// Client provides a high-level API for state recovery.
type Client struct {
	cfg      Config
	cipher   Cipher
	logger   *slog.Logger
	observer Observer
}

// NewClient creates a client searching the HiTag2 schedule without
// restriction.
func NewClient() *Client {
	return &Client{
		cfg:    DefaultConfig(),
		cipher: hitag2.Cipher{},
		logger: logging.Discard(),
	}
}

// WithConfig sets the search configuration.
func (c *Client) WithConfig(cfg Config) *Client {
	c.cfg = cfg
	return c
}

// WithCipher replaces the HiTag2 primitives.
func (c *Client) WithCipher(cipher Cipher) *Client {
	c.cipher = cipher
	return c
}

// WithLogger sets the logger. A nil logger discards.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.Discard()
	}
	c.logger = logger
	return c
}

// WithObserver sets a receiver for the counters of every search.
func (c *Client) WithObserver(o Observer) *Client {
	c.observer = o
	return c
}

// ParseKeystream parses a hex keystream of the given bit length, first bit
// most significant.
func ParseKeystream(s string, bits int) (Keystream, error) {
	return parser.ParseKeystream(s, bits)
}

// Recover searches for every register state consistent with ks. Emissions
// that do not reproduce all of ks are counted in Discarded and left out of
// Solutions.
//
// Args:
//   - ks: Observed keystream, one bit per layer plus the configured
//     validation window
//
// Returns:
//   - RecoveryResult, possibly with no solutions; error if the schedule,
//     keystream or debug reference cannot be used
func (c *Client) Recover(ks Keystream) (*RecoveryResult, error) {
	sched := c.cfg.schedule()
	if err := schedule.Check(sched); err != nil {
		return nil, fmt.Errorf("invalid schedule: %w", err)
	}
	window := c.cfg.minValidationBits()
	if len(ks) < sched.Len()+window {
		return nil, fmt.Errorf("%w: %d bits for %d layers and %d validation bits",
			ErrShortKeystream, len(ks), sched.Len(), window)
	}

	var debug *search.Debug
	if c.cfg.Debug != nil {
		ref := c.cfg.Debug.reference(sched.Len())
		if len(ref) < sched.Len() {
			return nil, fmt.Errorf("%w: %d states for %d layers", ErrReference, len(ref), sched.Len())
		}
		debug = &search.Debug{Reference: ref, Mask: c.cfg.Debug.Mask}
	}

	runID := uuid.NewString()
	logger := c.logger.With(slog.String("run_id", runID))

	result := &RecoveryResult{RunID: runID, Keystream: ks}
	cfg := search.Config{
		Cipher:    c.cipher,
		Schedule:  sched,
		Keystream: ks,
		Debug:     debug,
		Logger:    logger,
	}
	if c.cfg.Trace {
		cfg.Trace = func(layer int, candidate uint64) {
			logger.Debug("survivor", slog.Int("layer", layer), slog.String("candidate", fmt.Sprintf("%012x", candidate)))
		}
	}

	logger.Info("search started",
		slog.Int("layers", sched.Len()),
		slog.Int("threshold", sched.Threshold),
		slog.Int("keystream_bits", len(ks)),
		slog.Bool("debug", debug != nil),
	)

	start := time.Now()
	result.Stats = search.Run(cfg, func(sol Solution) {
		if !search.Consistent(c.cipher, sol.State, ks) {
			result.Discarded++
			logger.Debug("inconsistent solution", slog.String("state", fmt.Sprintf("%012x", sol.State)))
			return
		}
		result.Solutions = append(result.Solutions, sol)
		logger.Debug("solution", slog.String("state", fmt.Sprintf("%012x", sol.State)))
	})
	result.Duration = time.Since(start)

	if c.observer != nil {
		c.observer.Observe(result.Stats, result.Duration)
	}

	logger.Info("search finished",
		slog.Uint64("fills", result.Stats.Fills()),
		slog.Uint64("candidates", result.Stats.Candidates),
		slog.Uint64("solutions", result.Stats.Solutions),
		slog.Int("discarded", result.Discarded),
		slog.Int("distinct", len(result.States())),
		slog.Duration("elapsed", result.Duration),
	)
	return result, nil
}

// RecoverJob runs the job described by a YAML or JSON file. The job's
// schedule and debug reference override the client configuration.
func (c *Client) RecoverJob(path string) (*RecoveryResult, error) {
	job, err := parser.ParseJobFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse job: %w", err)
	}

	cfg := c.cfg
	if job.Schedule != nil {
		cfg.Schedule = job.Schedule
	}
	if job.Debug != nil {
		cfg.Debug = &DebugConfig{Mask: job.Debug.Mask, Reference: job.Debug.Reference}
		if job.Debug.State != nil {
			cfg.Debug.State = *job.Debug.State
		}
	}

	result, err := c.clone(cfg).Recover(job.Keystream)
	if err != nil {
		return nil, err
	}
	result.Expected = job.Expect
	return result, nil
}

// RecoverKnownKey derives the keystream from key material and searches it,
// pinned to the known trajectory unless the configuration already restricts
// the search. It checks a setup end to end against a known answer.
//
// Args:
//   - key: 48-bit key
//   - uid: Tag serial number
//   - nonce: Reader nonce
//   - bits: Keystream length to generate
//
// Returns:
//   - RecoveryResult with Expected set to the true state
func (c *Client) RecoverKnownKey(key uint64, uid, nonce uint32, bits int) (*RecoveryResult, error) {
	sc := scenario.New(key, uid, nonce)
	state := sc.State()

	cfg := c.cfg
	if cfg.Debug == nil {
		cfg.Debug = DefaultDebugConfig(state)
	}

	result, err := c.clone(cfg).Recover(sc.Keystream(bits))
	if err != nil {
		return nil, err
	}
	result.Expected = &state
	return result, nil
}

func (c *Client) clone(cfg Config) *Client {
	cp := *c
	cp.cfg = cfg
	return &cp
}
