// Package dialog implements the breaking-links wizard shown before items
// with incoming links are deleted. The Controller is a state machine driven
// by UI events (OK, Back, Cancel, status polls); rendering is left to the
// caller, which reads the current View after every event.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mesh-intelligence/breaklinks/internal/jobs"
	"github.com/mesh-intelligence/breaklinks/internal/remediation"
	"github.com/mesh-intelligence/breaklinks/pkg/types"
)

// Page names a wizard page. Exactly one page is visible at a time.
type Page string

// Wizard pages.
const (
	PageAction               Page = "Action"
	PageItem                 Page = "Item"
	PageExecuting            Page = "Executing"
	PageFailed               Page = "Failed"
	PageLinksBrokenOrRemoved Page = "LinksBrokenOrRemoved"
)

// Action is the option picked on the Action page.
type Action string

// Wizard actions.
const (
	ActionRemove Action = "Remove"
	ActionRelink Action = "Relink"
	ActionBreak  Action = "Break"
)

// Dialog results.
const (
	ResultYes = "yes"
	ResultNo  = "no"
)

// DefaultPollInterval is the delay between status polls while a job runs.
const DefaultPollInterval = 500 * time.Millisecond

// User-facing texts.
const (
	AlertSelectItem = "Select an item."
	StatusQueued    = "Queued."

	removeImpactFormat = "If you delete this item, you will permanently remove every link to it. Number of links to this item: %d"
	breakImpactFormat  = "If you delete this item, you will leave broken links. Number of links to this item: %d"
	processedFormat    = "Processed %d items. "

	cancelAuditMessage = "The RemoveLinks job was cancelled by the user. The target item will therefore not be deleted.  Some or all of the referring links have already been removed or updated."
)

// Dialog errors.
var (
	ErrInvalidAction = errors.New("unknown action")
	ErrDialogClosed  = errors.New("dialog is closed")
	ErrNotAvailable  = errors.New("button is not available on this page")
	ErrNoJob         = errors.New("no job has been started")
	ErrJobExpired    = errors.New("job is no longer available")
)

// JobLookup finds started jobs by handle. *jobs.Manager satisfies it.
type JobLookup interface {
	Get(handle string) (*jobs.Job, bool)
}

// Deps are the services the Controller calls.
type Deps struct {
	Store   types.ContentStore
	Links   types.LinkIndex
	Starter remediation.Starter
	Jobs    JobLookup
	Audit   types.AuditSink
	Logger  *slog.Logger
}

// Options configure one dialog instance.
type Options struct {
	// Targets are the IDs of the items about to be deleted.
	Targets []string

	// IgnoreClones exempts clone-source links from remediation.
	IgnoreClones bool

	// Actor is the user driving the dialog.
	Actor string

	// PollInterval overrides DefaultPollInterval when positive.
	PollInterval time.Duration
}

// View is what the UI renders after an event.
type View struct {
	Page        Page
	BackVisible bool
	OKVisible   bool

	ImpactText string // LinksBrokenOrRemoved page
	ErrorText  string // Failed page
	StatusText string // Executing page
	Alert      string // One-shot message box, cleared by the next event

	// NextPoll is the delay before the UI should call CheckStatus. Zero
	// means no poll is scheduled.
	NextPoll time.Duration

	Closed bool
	Result string
}

// ItemSummary describes one item listed as about to be deleted.
type ItemSummary struct {
	ItemID      string
	DisplayName string
	Icon        string
	Path        string
}

// Controller drives one dialog. It is not safe for concurrent use; the UI
// delivers events one at a time.
type Controller struct {
	deps Deps
	opts Options

	page        Page
	replacement *types.Item
	handle      string

	impactText string
	errorText  string
	statusText string
	alert      string
	nextPoll   time.Duration

	closed bool
	result string
}

// New returns a Controller showing the Action page.
func New(deps Deps, opts Options) *Controller {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Controller{deps: deps, opts: opts, page: PageAction}
}

// View returns the current view.
func (c *Controller) View() View {
	return View{
		Page:        c.page,
		BackVisible: c.page != PageAction && c.page != PageExecuting,
		OKVisible:   c.page != PageExecuting,
		ImpactText:  c.impactText,
		ErrorText:   c.errorText,
		StatusText:  c.statusText,
		Alert:       c.alert,
		NextPoll:    c.nextPoll,
		Closed:      c.closed,
		Result:      c.result,
	}
}

// Page returns the visible page.
func (c *Controller) Page() Page { return c.page }

// Handle returns the handle of the started job, or "" if none was started.
func (c *Controller) Handle() string { return c.handle }

// Result returns the dialog result once closed.
func (c *Controller) Result() string { return c.result }

// Replacement returns the selected relink target, if any.
func (c *Controller) Replacement() *types.Item { return c.replacement }

// OK handles the OK button with the action currently selected on the
// Action page. On the Action page it advances to the impact or item page;
// on later pages it starts the job or, for Break, closes with "yes".
func (c *Controller) OK(ctx context.Context, action Action) (View, error) {
	if err := c.beginEvent(); err != nil {
		return c.View(), err
	}
	if c.page == PageExecuting {
		return c.View(), ErrNotAvailable
	}

	switch action {
	case ActionRemove:
		if c.page == PageAction {
			return c.showImpact(ctx, action)
		}
		return c.start(types.ModeRemove)
	case ActionRelink:
		if c.page == PageAction {
			c.showPage(PageItem)
			return c.View(), nil
		}
		if c.replacement == nil {
			c.alert = AlertSelectItem
			return c.View(), nil
		}
		return c.start(types.ModeRelink)
	case ActionBreak:
		if c.page == PageAction {
			return c.showImpact(ctx, action)
		}
		c.close(ResultYes)
		return c.View(), nil
	default:
		return c.View(), fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
}

// SelectReplacement sets the relink target picked on the Item page. An
// empty id clears the selection.
func (c *Controller) SelectReplacement(ctx context.Context, id string) error {
	if err := c.beginEvent(); err != nil {
		return err
	}
	if id == "" {
		c.replacement = nil
		return nil
	}
	item, err := c.deps.Store.GetItem(ctx, id)
	if err != nil {
		return fmt.Errorf("selecting replacement %s: %w", id, err)
	}
	c.replacement = item
	return nil
}

// Back returns to the Action page.
func (c *Controller) Back() (View, error) {
	if err := c.beginEvent(); err != nil {
		return c.View(), err
	}
	if !c.View().BackVisible {
		return c.View(), ErrNotAvailable
	}
	c.showPage(PageAction)
	return c.View(), nil
}

// Cancel closes the dialog with "no". A job that was already started keeps
// running; the interruption is audited.
func (c *Controller) Cancel() View {
	if c.closed {
		return c.View()
	}
	c.alert = ""
	if c.handle != "" {
		c.deps.Audit.Record(c.opts.Actor, cancelAuditMessage)
	}
	c.close(ResultNo)
	return c.View()
}

// CheckStatus polls the running job. A failed job shows the Failed page, a
// finished job closes the dialog with "yes", and anything else updates the
// status text and schedules the next poll.
func (c *Controller) CheckStatus() (View, error) {
	if err := c.beginEvent(); err != nil {
		return c.View(), err
	}
	if c.handle == "" {
		return c.View(), ErrNoJob
	}
	job, ok := c.deps.Jobs.Get(c.handle)
	if !ok {
		c.nextPoll = 0
		return c.View(), fmt.Errorf("%w: %s", ErrJobExpired, c.handle)
	}

	st := job.Status()
	if st.Failed {
		c.errorText = strings.Join(st.Messages, "\n")
		c.showPage(PageFailed)
		return c.View(), nil
	}
	if st.Done() {
		c.close(ResultYes)
		return c.View(), nil
	}
	if st.State == types.JobRunning {
		c.statusText = fmt.Sprintf(processedFormat, st.Processed)
	} else {
		c.statusText = StatusQueued
	}
	c.nextPoll = c.opts.PollInterval
	return c.View(), nil
}

// Await polls CheckStatus at the scheduled interval until no further poll
// is scheduled or ctx is done. onPoll, when non-nil, sees every view.
func (c *Controller) Await(ctx context.Context, onPoll func(View)) (View, error) {
	v := c.View()
	for v.NextPoll > 0 && !v.Closed {
		timer := time.NewTimer(v.NextPoll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return v, ctx.Err()
		case <-timer.C:
		}
		var err error
		if v, err = c.CheckStatus(); err != nil {
			return v, err
		}
		if onPoll != nil {
			onPoll(v)
		}
	}
	return v, nil
}

// ImpactCount sums the referrer counts of every target and all of its
// descendants. A target that does not resolve is an error.
func (c *Controller) ImpactCount(ctx context.Context) (int, error) {
	total := 0
	for _, id := range c.opts.Targets {
		item, err := c.deps.Store.GetItem(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("counting links to %s: %w", id, err)
		}
		n, err := c.countReferrers(ctx, item)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func (c *Controller) countReferrers(ctx context.Context, item *types.Item) (int, error) {
	n, err := c.deps.Links.GetReferrerCount(ctx, item)
	if err != nil {
		return 0, fmt.Errorf("counting referrers of %s: %w", item.ItemID, err)
	}
	children, err := c.deps.Store.Children(ctx, item.ItemID)
	if err != nil {
		return 0, fmt.Errorf("listing children of %s: %w", item.ItemID, err)
	}
	for _, child := range children {
		m, err := c.countReferrers(ctx, child)
		if err != nil {
			return 0, err
		}
		n += m
	}
	return n, nil
}

// ItemsToDelete lists the targets that resolve, in target order.
func (c *Controller) ItemsToDelete(ctx context.Context) ([]ItemSummary, error) {
	var out []ItemSummary
	for _, id := range c.opts.Targets {
		item, err := c.deps.Store.GetItem(ctx, id)
		if errors.Is(err, types.ErrNotFound) || errors.Is(err, types.ErrInvalidID) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", id, err)
		}
		out = append(out, ItemSummary{
			ItemID:      item.ItemID,
			DisplayName: item.DisplayName(),
			Icon:        item.Icon,
			Path:        item.Path,
		})
	}
	return out, nil
}

func (c *Controller) showImpact(ctx context.Context, action Action) (View, error) {
	n, err := c.ImpactCount(ctx)
	if err != nil {
		return c.View(), err
	}
	if action == ActionRemove {
		c.impactText = fmt.Sprintf(removeImpactFormat, n)
	} else {
		c.impactText = fmt.Sprintf(breakImpactFormat, n)
	}
	c.showPage(PageLinksBrokenOrRemoved)
	return c.View(), nil
}

func (c *Controller) start(mode types.Mode) (View, error) {
	job, err := c.deps.Starter.Start(remediation.Options{
		Targets:      c.opts.Targets,
		Mode:         mode,
		Replacement:  c.replacement,
		IgnoreClones: c.opts.IgnoreClones,
		Actor:        c.opts.Actor,
	})
	if err != nil {
		return c.View(), fmt.Errorf("starting %s job: %w", remediation.JobName(mode), err)
	}
	c.handle = job.Handle
	c.statusText = StatusQueued
	c.showPage(PageExecuting)
	c.nextPoll = c.opts.PollInterval
	c.deps.Logger.Info("remediation job started", "job", job.Options.Name, "handle", job.Handle, "targets", len(c.opts.Targets))
	return c.View(), nil
}

func (c *Controller) beginEvent() error {
	if c.closed {
		return ErrDialogClosed
	}
	c.alert = ""
	return nil
}

func (c *Controller) showPage(p Page) {
	c.page = p
	c.nextPoll = 0
}

func (c *Controller) close(result string) {
	c.closed = true
	c.result = result
	c.nextPoll = 0
}
