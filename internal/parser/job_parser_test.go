package parser

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahdiidarabi/hitag2-gnd/internal/schedule"
	"github.com/mahdiidarabi/hitag2-gnd/internal/search"
	"github.com/mahdiidarabi/hitag2-gnd/pkg/hitag2"
)

const fixedState uint64 = 0xb43281238282

func TestParseJobFile_YAML(t *testing.T) {
	job, err := ParseJobFile("../../fixtures/job_fixed_key.yaml")
	require.NoError(t, err)

	assert.Equal(t, uint64(0xa79d82d0), job.Keystream.Uint())
	assert.Len(t, job.Keystream, 32)
	assert.Nil(t, job.Schedule)
	require.NotNil(t, job.Expect)
	assert.Equal(t, fixedState, *job.Expect)

	require.NotNil(t, job.Debug)
	assert.Equal(t, hitag2.FilterMask, job.Debug.Mask)
	require.NotNil(t, job.Debug.State)
	assert.Equal(t, fixedState, *job.Debug.State)
	assert.Empty(t, job.Debug.Reference, "a state is expanded by the caller, not the parser")
}

func TestParseJobFile_JSON(t *testing.T) {
	job, err := ParseJobFile("../../fixtures/job_reference.json")
	require.NoError(t, err)

	require.NotNil(t, job.Schedule)
	assert.Equal(t, schedule.HiTag2(), *job.Schedule)
	require.NotNil(t, job.Debug)
	assert.Equal(t, uint64(0x5806b4a2d000), job.Debug.Mask)
	assert.Equal(t, hitag2.Trajectory(fixedState, 9), job.Debug.Reference)
	assert.Nil(t, job.Debug.State)
}

func TestDecodeJob_ReferenceWithoutSchedule(t *testing.T) {
	job, err := DecodeJob(strings.NewReader("keystream: ff\nbits: 8\ndebug:\n  reference: [\"1\", \"2\"]\n"))
	require.NoError(t, err)
	require.NotNil(t, job.Debug)
	assert.Equal(t, []uint64{1, 2}, job.Debug.Reference)
}

func TestParseJobFile_Missing(t *testing.T) {
	_, err := ParseJobFile("../../fixtures/does_not_exist.yaml")
	assert.Error(t, err)
}

func TestDecodeJob_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"zero bits", "keystream: ff\nbits: 0\n", ErrBits},
		{"too many bits", "keystream: ff\nbits: 65\n", ErrBits},
		{"bad hex", "keystream: xyz\nbits: 8\n", ErrKeystream},
		{"too wide", "keystream: \"1ff\"\nbits: 8\n", ErrKeystream},
		{"debug without state", "keystream: ff\nbits: 8\ndebug:\n  mask: \"ff\"\n", ErrDebug},
		{"debug both", "keystream: ff\nbits: 8\ndebug:\n  state: \"1\"\n  reference: [\"1\"]\n", ErrDebug},
		{"short reference", "keystream: ff\nbits: 8\nschedule:\n  threshold: 1\n  masks: [\"1\", \"2\", \"4\"]\ndebug:\n  reference: [\"1\", \"2\"]\n", ErrDebug},
		{"blank reference entry", "keystream: ff\nbits: 8\ndebug:\n  reference: [\"1\", \" \"]\n", ErrDebug},
		{"empty keystream", "keystream: \"\"\nbits: 8\n", ErrKeystream},
		{"bad debug mask", "keystream: ff\nbits: 8\ndebug:\n  mask: \"q\"\n  state: \"1\"\n", ErrDebug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeJob(strings.NewReader(tt.in))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := DecodeJob(strings.NewReader("keystream: [1, 2\n"))
	assert.Error(t, err)

	_, err = DecodeJob(strings.NewReader("keystream: ff\nbits: 8\nexpect: zz\n"))
	assert.Error(t, err)
}

func TestParseKeystream(t *testing.T) {
	ks, err := ParseKeystream("0xA79D82D0", 32)
	require.NoError(t, err)
	assert.Equal(t, search.KeystreamFromUint(0xa79d82d0, 32), ks)

	ks, err = ParseKeystream("1", 4)
	require.NoError(t, err)
	assert.Equal(t, search.Keystream{0, 0, 0, 1}, ks)

	ks, err = ParseKeystream("ffffffffffffffff", 64)
	require.NoError(t, err)
	assert.Len(t, ks, 64)
}

func TestWriteJob_RoundTrip(t *testing.T) {
	sched := schedule.HiTag2()
	expect := fixedState
	job := &Job{
		Keystream: search.Keystream(hitag2.KeystreamBits(fixedState, 40)),
		Schedule:  &sched,
		Debug:     &Debug{Mask: hitag2.FilterMask, Reference: hitag2.Trajectory(fixedState, 9)},
		Expect:    &expect,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteJob(&buf, job))
	assert.Contains(t, buf.String(), "bits: 40")

	got, err := DecodeJob(&buf)
	require.NoError(t, err)
	assert.Equal(t, job, got)
}

func TestWriteJob_State(t *testing.T) {
	state := fixedState
	job := &Job{
		Keystream: search.Keystream(hitag2.KeystreamBits(fixedState, 32)),
		Debug:     &Debug{Mask: hitag2.FilterMask, State: &state},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteJob(&buf, job))
	assert.Contains(t, buf.String(), "state: b43281238282")
	assert.NotContains(t, buf.String(), "reference")

	got, err := DecodeJob(&buf)
	require.NoError(t, err)
	assert.Equal(t, job, got)
}

func TestWriteJob_Empty(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, WriteJob(&buf, &Job{}), ErrBits)
}
