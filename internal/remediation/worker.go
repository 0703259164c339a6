// Package remediation removes or repoints the links that refer to a set of
// target items and their descendants.
package remediation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/mesh-intelligence/breaklinks/internal/audit"
	"github.com/mesh-intelligence/breaklinks/pkg/types"
)

// Reporter receives progress from a run. *jobs.Status satisfies it.
type Reporter interface {
	types.ProgressReporter
	Finish()
}

// Options describe one remediation run.
type Options struct {
	// Targets are the IDs of the items whose incoming links are remediated.
	Targets []string

	// Mode selects remove or relink.
	Mode types.Mode

	// Replacement is the new link target. Required for ModeRelink.
	Replacement *types.Item

	// IgnoreClones skips links held by clone-source fields.
	IgnoreClones bool

	// Actor is recorded on every edit and audit entry.
	Actor string
}

// Validate checks opts before a run is started.
func (o Options) Validate() error {
	if !o.Mode.Valid() {
		return fmt.Errorf("%w: %q", types.ErrInvalidMode, o.Mode)
	}
	if len(o.Targets) == 0 {
		return types.ErrNoTargets
	}
	if o.Mode == types.ModeRelink && o.Replacement == nil {
		return types.ErrNoReplacement
	}
	return nil
}

// Outcome summarizes a finished run.
type Outcome struct {
	Processed int   // Top-level targets resolved and traversed.
	Visited   int   // Items visited, targets included.
	Removed   int   // Links removed.
	Relinked  int   // Links repointed.
	Skipped   int   // Links skipped by the clone filter or as unresolvable.
	Err       error // The error that aborted the run, if any.
}

// Worker walks target subtrees and rewrites referring fields.
type Worker struct {
	store    types.ContentStore
	links    types.LinkIndex
	registry types.FieldRegistry
	audit    types.AuditSink
	logger   *slog.Logger
}

// NewWorker returns a Worker. A nil logger uses slog.Default.
func NewWorker(store types.ContentStore, links types.LinkIndex, registry types.FieldRegistry, sink types.AuditSink, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: store, links: links, registry: registry, audit: sink, logger: logger}
}

// Run remediates every target in opts and reports through status. It always
// finishes status. The first unexpected error, or a panic, marks the run
// failed and stops it; edits already committed stay.
func (w *Worker) Run(ctx context.Context, status Reporter, opts Options) (out Outcome) {
	defer status.Finish()
	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("remediation panic: %v", r)
			status.Fail(out.Err.Error())
			w.logger.Error("remediation panicked", "mode", opts.Mode, "panic", r)
		}
	}()

	r := &run{Worker: w, ctx: ctx, opts: opts, out: &out}
	targets := slices.Clone(opts.Targets)
	status.SetTotal(len(targets))

	if err := opts.Validate(); err != nil {
		out.Err = err
		status.Fail(err.Error())
		return out
	}

	for _, id := range targets {
		if err := ctx.Err(); err != nil {
			out.Err = err
			break
		}
		item, err := w.store.GetItem(ctx, id)
		if errors.Is(err, types.ErrNotFound) || errors.Is(err, types.ErrInvalidID) {
			w.logger.Debug("target not found", "target", id)
			continue
		}
		if err != nil {
			out.Err = fmt.Errorf("resolving target %s: %w", id, err)
			break
		}
		status.IncProcessed()
		out.Processed++
		if err := r.visit(item); err != nil {
			out.Err = err
			break
		}
	}

	if out.Err != nil {
		status.Fail(out.Err.Error())
		w.logger.Error("remediation failed", "mode", opts.Mode, "error", out.Err)
		return out
	}
	w.logger.Info("remediation finished", "mode", opts.Mode,
		"processed", out.Processed, "visited", out.Visited,
		"removed", out.Removed, "relinked", out.Relinked, "skipped", out.Skipped)
	return out
}

type run struct {
	*Worker
	ctx  context.Context
	opts Options
	out  *Outcome
}

// visit remediates item and then each of its descendants.
func (r *run) visit(item *types.Item) error {
	if err := r.remediate(item); err != nil {
		return err
	}
	children, err := r.store.Children(r.ctx, item.ItemID)
	if err != nil {
		return fmt.Errorf("listing children of %s: %w", item.ItemID, err)
	}
	for _, child := range children {
		if err := r.visit(child); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) remediate(item *types.Item) error {
	r.out.Visited++
	links, err := r.links.GetReferrers(r.ctx, item)
	if err != nil {
		return fmt.Errorf("getting referrers of %s: %w", item.ItemID, err)
	}

	for _, link := range links {
		if r.opts.IgnoreClones && link.IsCloneLink() {
			r.out.Skipped++
			continue
		}
		if link.SourceFieldID == "" {
			r.out.Skipped++
			continue
		}
		source, err := r.store.GetItem(r.ctx, link.SourceItemID)
		if errors.Is(err, types.ErrNotFound) || errors.Is(err, types.ErrInvalidID) {
			r.out.Skipped++
			continue
		}
		if err != nil {
			return fmt.Errorf("resolving referrer %s: %w", link.SourceItemID, err)
		}

		switch r.opts.Mode {
		case types.ModeRemove:
			err = r.removeLink(source, link)
		case types.ModeRelink:
			err = r.relink(source, link)
		}
		if err != nil {
			return err
		}
	}

	if r.opts.Mode == types.ModeRemove {
		r.audit.Record(r.opts.Actor, "Remove link: %s", audit.FormatItem(item))
	}
	return nil
}

func (r *run) removeLink(source *types.Item, link *types.Link) error {
	applied, err := r.edit(source, link, func(h types.FieldHandler, f *types.Field) error {
		return h.RemoveLink(f, link)
	})
	if applied {
		r.out.Removed++
	}
	return err
}

func (r *run) relink(source *types.Item, link *types.Link) error {
	applied, err := r.edit(source, link, func(h types.FieldHandler, f *types.Field) error {
		if err := h.Relink(f, link, r.opts.Replacement); err != nil {
			return err
		}
		r.audit.Record(r.opts.Actor, "Relink: %s, ReferrerItem: %s",
			audit.FormatItem(r.opts.Replacement), audit.FormatItem(source))
		return nil
	})
	if applied {
		r.out.Relinked++
	}
	return err
}

// edit applies change to the referring field of source inside its own edit
// transaction. A field that is gone or has no handler is skipped without
// opening an edit. Reports whether a change was committed.
func (r *run) edit(source *types.Item, link *types.Link, change func(types.FieldHandler, *types.Field) error) (bool, error) {
	field := source.Field(link.SourceFieldID)
	if field == nil {
		r.out.Skipped++
		return false, nil
	}
	handler, ok := r.registry.Resolve(field)
	if !ok {
		r.logger.Debug("no field handler", "item", source.ItemID, "field", field.FieldID, "type", field.Type)
		r.out.Skipped++
		return false, nil
	}

	ed, err := r.store.BeginEdit(r.ctx, source.ItemID, types.EditOptions{Actor: r.opts.Actor, Unrestricted: true})
	if errors.Is(err, types.ErrNotFound) {
		r.out.Skipped++
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("editing %s: %w", source.ItemID, err)
	}
	defer ed.Rollback()

	f := ed.Item().Field(link.SourceFieldID)
	if f == nil {
		r.out.Skipped++
		return false, nil
	}
	if err := change(handler, f); err != nil {
		return false, fmt.Errorf("updating field %s on %s: %w", link.SourceFieldID, source.ItemID, err)
	}
	if err := ed.Commit(); err != nil {
		return false, fmt.Errorf("committing %s: %w", source.ItemID, err)
	}
	return true, nil
}
