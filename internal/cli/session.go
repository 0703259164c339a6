package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/mesh-intelligence/breaklinks/internal/audit"
	"github.com/mesh-intelligence/breaklinks/internal/dialog"
	"github.com/mesh-intelligence/breaklinks/internal/fields"
	"github.com/mesh-intelligence/breaklinks/internal/jobs"
	"github.com/mesh-intelligence/breaklinks/internal/paths"
	"github.com/mesh-intelligence/breaklinks/internal/remediation"
	"github.com/mesh-intelligence/breaklinks/pkg/sqlite"
	"github.com/mesh-intelligence/breaklinks/pkg/types"
)

// session is an attached backend plus the services built on it.
type session struct {
	backend *sqlite.Backend
	manager *jobs.Manager
	audit   *audit.Logger
	starter *remediation.JobStarter
}

func (a *app) resolveDataDir() (string, error) {
	return paths.ResolveDataDir(a.flags.dataDir, a.v.GetString(cfgKeyDataDir))
}

// openSession attaches the configured backend. The caller must Close it.
func (a *app) openSession(ctx context.Context) (*session, error) {
	dataDir, err := a.resolveDataDir()
	if err != nil {
		return nil, sysError(fmt.Errorf("resolving data dir: %w", err))
	}
	cfg := types.Config{Backend: a.v.GetString(cfgKeyBackend), DataDir: dataDir}
	if err := cfg.Validate(); err != nil {
		return nil, userError(fmt.Errorf("config: %w", err))
	}

	registry := fields.NewRegistry()
	backend := sqlite.NewBackendWithRegistry(registry)
	if err := backend.Attach(cfg); err != nil {
		return nil, sysError(fmt.Errorf("attaching %s: %w", dataDir, err))
	}
	a.logger.Debug("backend attached", "backend", cfg.Backend, "data_dir", dataDir)

	sink := audit.New(a.logger, filepath.Join(dataDir, audit.FileName))
	manager := jobs.NewManager(ctx, jobs.Config{
		MaxConcurrent: a.v.GetInt(cfgKeyMaxConcurrent),
		AfterLife:     a.v.GetDuration(cfgKeyAfterLife),
	}, a.logger)
	worker := remediation.NewWorker(backend, backend, registry, sink, a.logger)

	return &session{
		backend: backend,
		manager: manager,
		audit:   sink,
		starter: &remediation.JobStarter{Worker: worker, Manager: manager},
	}, nil
}

// Close waits for running jobs and detaches the backend.
func (s *session) Close() error {
	s.manager.Wait()
	return s.backend.Detach()
}

// controller returns a dialog controller over targets.
func (a *app) controller(s *session, targets []string, ignoreClones bool) *dialog.Controller {
	return dialog.New(dialog.Deps{
		Store:   s.backend,
		Links:   s.backend,
		Starter: s.starter,
		Jobs:    s.manager,
		Audit:   s.audit,
		Logger:  a.logger,
	}, dialog.Options{
		Targets:      targets,
		IgnoreClones: ignoreClones,
		Actor:        a.flags.actor,
		PollInterval: a.v.GetDuration(cfgKeyPollInterval),
	})
}

// parseTargets splits every argument as a |-delimited list.
func parseTargets(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		out = append(out, types.ParseList(arg)...)
	}
	if len(out) == 0 {
		return nil, userError(types.ErrNoTargets)
	}
	return out, nil
}

// lookupError classifies a store error for the exit code.
func lookupError(err error) error {
	if errors.Is(err, types.ErrNotFound) || errors.Is(err, types.ErrInvalidID) || errors.Is(err, types.ErrAccessDenied) {
		return userError(err)
	}
	return sysError(err)
}
