package remediation

import (
	"context"
	"slices"

	"github.com/mesh-intelligence/breaklinks/internal/jobs"
	"github.com/mesh-intelligence/breaklinks/pkg/types"
)

// Job names as they appear in the job list.
const (
	JobRemoveLinks = "RemoveLinks"
	JobRelink      = "Relink"
)

// JobCategory groups remediation jobs in logs.
const JobCategory = "LinkRemediation"

// OptionIgnoreClones is the job option key set to "1" when clone links are
// skipped.
const OptionIgnoreClones = "ignoreclones"

// JobName returns the job name for mode.
func JobName(mode types.Mode) string {
	if mode == types.ModeRelink {
		return JobRelink
	}
	return JobRemoveLinks
}

// Starter starts remediation runs as background jobs.
type Starter interface {
	Start(opts Options) (*jobs.Job, error)
}

// JobStarter runs a Worker through a jobs.Manager.
type JobStarter struct {
	Worker  *Worker
	Manager *jobs.Manager
}

var _ Starter = (*JobStarter)(nil)

// Start validates opts and queues the run. The target list is copied so later
// changes by the caller do not reach the job.
func (s *JobStarter) Start(opts Options) (*jobs.Job, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts.Targets = slices.Clone(opts.Targets)
	if opts.Replacement != nil {
		opts.Replacement = opts.Replacement.Clone()
	}

	custom := map[string]string{}
	if opts.IgnoreClones {
		custom[OptionIgnoreClones] = "1"
	}
	job := s.Manager.Start(jobs.Options{
		Name:     JobName(opts.Mode),
		Category: JobCategory,
		Actor:    opts.Actor,
		Custom:   custom,
	}, func(ctx context.Context, st *jobs.Status) {
		s.Worker.Run(ctx, st, opts)
	})
	return job, nil
}
