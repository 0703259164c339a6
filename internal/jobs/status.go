// Package jobs runs background work in goroutines and tracks each job's
// progress in a status record that pollers read as snapshots.
package jobs

import (
	"slices"
	"sync"

	"github.com/mesh-intelligence/breaklinks/pkg/types"
)

var _ types.ProgressReporter = (*Status)(nil)

// Status is the live, mutex-guarded status record of a job. The running job
// writes it; pollers read it through Snapshot.
type Status struct {
	mu sync.Mutex
	s  types.JobStatus
}

func newStatus() *Status {
	return &Status{s: types.JobStatus{State: types.JobQueued}}
}

// Snapshot returns a copy of the current status.
func (st *Status) Snapshot() types.JobStatus {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := st.s
	out.Messages = slices.Clone(st.s.Messages)
	return out
}

// SetTotal records the number of units the job will process.
func (st *Status) SetTotal(n int) {
	st.mu.Lock()
	st.s.Total = n
	st.mu.Unlock()
}

// IncProcessed advances the processed counter by one.
func (st *Status) IncProcessed() {
	st.mu.Lock()
	st.s.Processed++
	st.mu.Unlock()
}

// Fail marks the job failed and appends msg to its messages.
func (st *Status) Fail(msg string) {
	st.mu.Lock()
	st.s.Failed = true
	st.s.Messages = append(st.s.Messages, msg)
	st.mu.Unlock()
}

// AddMessage appends msg without changing the failed flag.
func (st *Status) AddMessage(msg string) {
	st.mu.Lock()
	st.s.Messages = append(st.s.Messages, msg)
	st.mu.Unlock()
}

// Finish moves the job to the finished state. Calling it again is a no-op.
func (st *Status) Finish() {
	st.setState(types.JobFinished)
}

func (st *Status) setState(state types.JobState) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.s.State == types.JobFinished {
		return
	}
	st.s.State = state
}
