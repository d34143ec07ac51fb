package parser

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mahdiidarabi/hitag2-gnd/internal/bitlayout"
	"github.com/mahdiidarabi/hitag2-gnd/internal/schedule"
	"github.com/mahdiidarabi/hitag2-gnd/internal/search"
	"github.com/mahdiidarabi/hitag2-gnd/pkg/hitag2"
)

var (
	ErrBits      = errors.New("keystream bit length must be between 1 and 64")
	ErrKeystream = errors.New("invalid keystream")
	ErrDebug     = errors.New("invalid debug reference")
)

// Job is one attack read from a job file.
type Job struct {
	Keystream search.Keystream
	// Schedule is nil when the file does not pin one.
	Schedule *schedule.Schedule
	Debug    *Debug
	// Expect is the state the job is known to recover, if any.
	Expect *uint64
}

// Debug pins a job to a known trajectory. Exactly one of State and Reference
// is set; a State is expanded to whatever schedule the job finally runs with.
type Debug struct {
	Mask      uint64
	State     *uint64
	Reference []uint64
}

type rawDebug struct {
	Mask      string   `yaml:"mask"`
	State     string   `yaml:"state,omitempty"`
	Reference []string `yaml:"reference,omitempty"`
}

type rawJob struct {
	Keystream string             `yaml:"keystream"`
	Bits      int                `yaml:"bits"`
	Schedule  *schedule.Schedule `yaml:"schedule,omitempty"`
	Debug     *rawDebug          `yaml:"debug,omitempty"`
	Expect    string             `yaml:"expect,omitempty"`
}

// ParseJobFile reads a job from a YAML or JSON file.
//
// Expected format:
//
//	keystream: "a79d82d0"
//	bits: 32
//	schedule:                  # optional
//	  threshold: 8
//	  masks: ["5806b4a2d16c", ...]
//	debug:                     # optional
//	  mask: "5806b4a2d16c"
//	  state: "b43281238282"    # or reference: [...], one per layer
//	expect: "b43281238282"     # optional
func ParseJobFile(path string) (*Job, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	defer file.Close()

	return DecodeJob(file)
}

// DecodeJob reads a job from r.
func DecodeJob(r io.Reader) (*Job, error) {
	var raw rawJob
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse job: %w", err)
	}

	ks, err := ParseKeystream(raw.Keystream, raw.Bits)
	if err != nil {
		return nil, err
	}
	job := &Job{Keystream: ks, Schedule: raw.Schedule}

	if raw.Expect != "" {
		v, err := bitlayout.ParseHex(raw.Expect)
		if err != nil {
			return nil, fmt.Errorf("failed to parse expect: %w", err)
		}
		job.Expect = &v
	}

	if raw.Debug != nil {
		job.Debug, err = parseDebug(raw.Debug, raw.Schedule)
		if err != nil {
			return nil, err
		}
	}
	return job, nil
}

// parseDebug checks a reference list against sched when the job carries one;
// otherwise the length is checked by whoever picks the schedule.
func parseDebug(raw *rawDebug, sched *schedule.Schedule) (*Debug, error) {
	mask := hitag2.FilterMask
	if raw.Mask != "" {
		m, err := bitlayout.ParseHex(raw.Mask)
		if err != nil {
			return nil, fmt.Errorf("%w: mask: %v", ErrDebug, err)
		}
		mask = m
	}

	switch {
	case raw.State != "" && len(raw.Reference) > 0:
		return nil, fmt.Errorf("%w: state and reference are exclusive", ErrDebug)
	case raw.State != "":
		s, err := bitlayout.ParseHex(raw.State)
		if err != nil {
			return nil, fmt.Errorf("%w: state: %v", ErrDebug, err)
		}
		return &Debug{Mask: mask, State: &s}, nil
	case len(raw.Reference) > 0:
		if sched != nil && len(raw.Reference) < sched.Len() {
			return nil, fmt.Errorf("%w: %d reference states for %d layers", ErrDebug, len(raw.Reference), sched.Len())
		}
		ref := make([]uint64, len(raw.Reference))
		for i, str := range raw.Reference {
			v, err := bitlayout.ParseHex(str)
			if err != nil {
				return nil, fmt.Errorf("%w: reference %d: %v", ErrDebug, i, err)
			}
			ref[i] = v
		}
		return &Debug{Mask: mask, Reference: ref}, nil
	}
	return nil, fmt.Errorf("%w: need state or reference", ErrDebug)
}

// ParseKeystream parses a hex keystream of the given bit length. The first
// keystream bit is the most significant of the bits.
func ParseKeystream(s string, bits int) (search.Keystream, error) {
	if bits < 1 || bits > 64 {
		return nil, fmt.Errorf("%w: got %d", ErrBits, bits)
	}
	v, err := bitlayout.ParseHex(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeystream, err)
	}
	if bits < 64 && v>>uint(bits) != 0 {
		return nil, fmt.Errorf("%w: %s does not fit in %d bits", ErrKeystream, s, bits)
	}
	return search.KeystreamFromUint(v, bits), nil
}

// WriteJob writes job in the format read by DecodeJob.
func WriteJob(w io.Writer, job *Job) error {
	n := len(job.Keystream)
	if n < 1 || n > 64 {
		return fmt.Errorf("%w: got %d", ErrBits, n)
	}
	raw := rawJob{
		Keystream: fmt.Sprintf("%0*x", (n+3)/4, job.Keystream.Uint()),
		Bits:      n,
		Schedule:  job.Schedule,
	}
	if job.Expect != nil {
		raw.Expect = formatState(*job.Expect)
	}
	if job.Debug != nil {
		raw.Debug = &rawDebug{Mask: formatState(job.Debug.Mask)}
		if job.Debug.State != nil {
			raw.Debug.State = formatState(*job.Debug.State)
		}
		for _, s := range job.Debug.Reference {
			raw.Debug.Reference = append(raw.Debug.Reference, formatState(s))
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(raw); err != nil {
		return fmt.Errorf("failed to write job: %w", err)
	}
	return enc.Close()
}

func formatState(v uint64) string {
	return fmt.Sprintf("%012x", v)
}
