package types

// Mode selects what the remediation worker does with each referrer.
type Mode string

// Remediation modes.
const (
	ModeRemove Mode = "remove"
	ModeRelink Mode = "relink"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeRemove || m == ModeRelink
}

// JobState is the lifecycle state of a background job.
type JobState string

// Job lifecycle states.
const (
	JobQueued   JobState = "queued"
	JobRunning  JobState = "running"
	JobFinished JobState = "finished"
)

// JobStatus is a point-in-time snapshot of a job's progress.
type JobStatus struct {
	Processed int      `json:"processed"` // Top-level targets processed so far.
	Total     int      `json:"total"`     // Number of targets in the job.
	Failed    bool     `json:"failed"`    // Set when the run aborted on an error.
	Messages  []string `json:"messages"`  // Failure messages, in the order recorded.
	State     JobState `json:"state"`     // Lifecycle state.
}

// Done reports whether the job has finished, successfully or not.
func (s JobStatus) Done() bool {
	return s.State == JobFinished
}

// ProgressReporter is written by a running job and read by pollers.
type ProgressReporter interface {
	SetTotal(n int)
	IncProcessed()
	Fail(msg string)
}
