// ABOUTME: Encode jobs and their results
// ABOUTME: A job concatenates one or more sources into a single output file
package job

import (
	"time"

	"github.com/Resonate-Protocol/pcmenc/pkg/pump"
	"github.com/google/uuid"
)

// Job describes one output file built from Sources, each pass over
// Sources repeated Repeat times
type Job struct {
	ID         uuid.UUID
	OutputPath string // empty picks a temp file in the output dir
	Sources    []string
	Repeat     int
}

// New creates a job with a fresh ID
func New(sources []string, repeat int, outputPath string) Job {
	return Job{
		ID:         uuid.New(),
		OutputPath: outputPath,
		Sources:    sources,
		Repeat:     repeat,
	}
}

// passes returns the expanded source list
func (j Job) passes() []string {
	repeat := j.Repeat
	if repeat < 1 {
		repeat = 1
	}
	out := make([]string, 0, repeat*len(j.Sources))
	for i := 0; i < repeat; i++ {
		out = append(out, j.Sources...)
	}
	return out
}

// Result is reported exactly once per job
type Result struct {
	JobID      uuid.UUID
	OutputPath string
	State      pump.State
	Elapsed    time.Duration
	Err        error
}

// Duration is the audio length implied by the bytes fed
func (r Result) Duration() time.Duration {
	return time.Duration(r.State.PresentationTimeUs) * time.Microsecond
}

// Event reports job progress
type Event struct {
	JobID       uuid.UUID
	Source      string
	SourceIndex int // zero-based, into the expanded source list
	SourceCount int
	State       pump.State
	Done        bool
	Err         error
}
