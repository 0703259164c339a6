package dialog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/breaklinks/internal/fields"
	"github.com/mesh-intelligence/breaklinks/internal/jobs"
	"github.com/mesh-intelligence/breaklinks/internal/memory"
	"github.com/mesh-intelligence/breaklinks/internal/remediation"
	"github.com/mesh-intelligence/breaklinks/pkg/types"
)

type recorder struct {
	mu      sync.Mutex
	entries []string
}

func (r *recorder) Record(actor, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, fmt.Sprintf(format, args...))
}

func (r *recorder) Entries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.entries...)
}

type fixture struct {
	store   *memory.Store
	links   types.LinkIndex
	manager *jobs.Manager
	audit   *recorder
}

// newFixture seeds T (child C) with a clone and a plain referrer to T, one
// referrer to C, and a spare item N.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := fields.NewRegistry()
	s := memory.New(reg)
	items := []*types.Item{
		{ItemID: "t", ParentID: types.RootItemID, Name: "T", Icon: "icons/doc.png"},
		{ItemID: "c", ParentID: "t", Name: "C"},
		{ItemID: "n", ParentID: types.RootItemID, Name: "N"},
		{ItemID: "r1", ParentID: types.RootItemID, Name: "R1", Fields: []types.Field{
			{FieldID: "Target", Type: types.FieldTypeDroplink, Value: "t"},
		}},
		{ItemID: "clone", ParentID: types.RootItemID, Name: "Clone", Fields: []types.Field{
			{FieldID: types.FieldSource, Type: types.FieldTypeCloneSource, Value: "t"},
		}},
		{ItemID: "r2", ParentID: types.RootItemID, Name: "R2", Fields: []types.Field{
			{FieldID: "Related", Type: types.FieldTypeMultilist, Value: "c"},
		}},
	}
	for _, item := range items {
		_, err := s.Add(item)
		require.NoError(t, err)
	}
	return &fixture{
		store:   s,
		links:   s,
		manager: jobs.NewManager(context.Background(), jobs.Config{}, nil),
		audit:   &recorder{},
	}
}

func (f *fixture) controller(opts Options) *Controller {
	reg := fields.NewRegistry()
	w := remediation.NewWorker(f.store, f.links, reg, f.audit, nil)
	if opts.PollInterval == 0 {
		opts.PollInterval = time.Millisecond
	}
	return New(Deps{
		Store:   f.store,
		Links:   f.links,
		Starter: &remediation.JobStarter{Worker: w, Manager: f.manager},
		Jobs:    f.manager,
		Audit:   f.audit,
	}, opts)
}

func referrerCount(t *testing.T, idx types.LinkIndex, id string) int {
	t.Helper()
	n, err := idx.GetReferrerCount(context.Background(), &types.Item{ItemID: id})
	require.NoError(t, err)
	return n
}

func await(t *testing.T, c *Controller) View {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v, err := c.Await(ctx, nil)
	require.NoError(t, err)
	return v
}

func TestInitialView(t *testing.T) {
	c := newFixture(t).controller(Options{Targets: []string{"t"}})
	v := c.View()
	assert.Equal(t, PageAction, v.Page)
	assert.False(t, v.BackVisible)
	assert.True(t, v.OKVisible)
	assert.False(t, v.Closed)
}

func TestRemoveFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.controller(Options{Targets: []string{"t"}, IgnoreClones: true, Actor: "editor"})

	v, err := c.OK(ctx, ActionRemove)
	require.NoError(t, err)
	assert.Equal(t, PageLinksBrokenOrRemoved, v.Page)
	assert.True(t, v.BackVisible)
	assert.Equal(t, "If you delete this item, you will permanently remove every link to it. Number of links to this item: 3", v.ImpactText)

	v, err = c.OK(ctx, ActionRemove)
	require.NoError(t, err)
	assert.Equal(t, PageExecuting, v.Page)
	assert.False(t, v.OKVisible)
	assert.False(t, v.BackVisible)
	assert.Equal(t, time.Millisecond, v.NextPoll)
	require.NotEmpty(t, c.Handle())

	job, ok := f.manager.Get(c.Handle())
	require.True(t, ok)
	assert.Equal(t, remediation.JobRemoveLinks, job.Options.Name)
	assert.Equal(t, "1", job.Options.Custom[remediation.OptionIgnoreClones])

	v = await(t, c)
	assert.True(t, v.Closed)
	assert.Equal(t, ResultYes, v.Result)

	assert.Equal(t, 1, referrerCount(t, f.links, "t"), "clone link survives")
	assert.Zero(t, referrerCount(t, f.links, "c"))
	st := job.Status()
	assert.Equal(t, 1, st.Processed)
	assert.Equal(t, 1, st.Total)

	_, err = c.OK(ctx, ActionRemove)
	assert.ErrorIs(t, err, ErrDialogClosed)
}

func TestBreakFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.controller(Options{Targets: []string{"t"}})

	v, err := c.OK(ctx, ActionBreak)
	require.NoError(t, err)
	assert.Equal(t, "If you delete this item, you will leave broken links. Number of links to this item: 3", v.ImpactText)

	v, err = c.OK(ctx, ActionBreak)
	require.NoError(t, err)
	assert.True(t, v.Closed)
	assert.Equal(t, ResultYes, v.Result)
	assert.Empty(t, c.Handle(), "break starts no job")
	assert.Equal(t, 2, referrerCount(t, f.links, "t"))
}

func TestRelinkFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.controller(Options{Targets: []string{"t"}})

	v, err := c.OK(ctx, ActionRelink)
	require.NoError(t, err)
	assert.Equal(t, PageItem, v.Page)
	assert.True(t, v.BackVisible)

	v, err = c.OK(ctx, ActionRelink)
	require.NoError(t, err)
	assert.Equal(t, PageItem, v.Page, "no selection keeps the item page")
	assert.Equal(t, AlertSelectItem, v.Alert)

	require.NoError(t, c.SelectReplacement(ctx, "n"))
	assert.Equal(t, "n", c.Replacement().ItemID)
	assert.Empty(t, c.View().Alert)

	v, err = c.OK(ctx, ActionRelink)
	require.NoError(t, err)
	assert.Equal(t, PageExecuting, v.Page)
	job, ok := f.manager.Get(c.Handle())
	require.True(t, ok)
	assert.Equal(t, remediation.JobRelink, job.Options.Name)

	v = await(t, c)
	assert.Equal(t, ResultYes, v.Result)
	assert.Zero(t, referrerCount(t, f.links, "t"))
	assert.Zero(t, referrerCount(t, f.links, "c"))
	assert.Equal(t, 3, referrerCount(t, f.links, "n"))
}

func TestSelectReplacementErrors(t *testing.T) {
	ctx := context.Background()
	c := newFixture(t).controller(Options{Targets: []string{"t"}})
	assert.ErrorIs(t, c.SelectReplacement(ctx, "nope"), types.ErrNotFound)
	require.NoError(t, c.SelectReplacement(ctx, "n"))
	require.NoError(t, c.SelectReplacement(ctx, ""))
	assert.Nil(t, c.Replacement())
}

func TestBack(t *testing.T) {
	ctx := context.Background()
	c := newFixture(t).controller(Options{Targets: []string{"t"}})

	_, err := c.Back()
	assert.ErrorIs(t, err, ErrNotAvailable, "back is hidden on the action page")

	_, err = c.OK(ctx, ActionRelink)
	require.NoError(t, err)
	v, err := c.Back()
	require.NoError(t, err)
	assert.Equal(t, PageAction, v.Page)

	_, err = c.OK(ctx, ActionRemove)
	require.NoError(t, err)
	_, err = c.OK(ctx, ActionRemove)
	require.NoError(t, err)
	_, err = c.Back()
	assert.ErrorIs(t, err, ErrNotAvailable, "back is hidden while executing")
	_, err = c.OK(ctx, ActionRemove)
	assert.ErrorIs(t, err, ErrNotAvailable, "ok is hidden while executing")
}

func TestUnknownAction(t *testing.T) {
	c := newFixture(t).controller(Options{Targets: []string{"t"}})
	_, err := c.OK(context.Background(), "Purge")
	assert.ErrorIs(t, err, ErrInvalidAction)
	assert.Equal(t, PageAction, c.Page())
}

func TestImpactCount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name    string
		targets []string
		want    int
		wantErr error
	}{
		{name: "target with child", targets: []string{"t"}, want: 3},
		{name: "child only", targets: []string{"c"}, want: 1},
		{name: "several targets", targets: []string{"c", "n"}, want: 1},
		{name: "missing target", targets: []string{"t", "missing"}, wantErr: types.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := f.controller(Options{Targets: tt.targets}).ImpactCount(ctx)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestItemsToDelete(t *testing.T) {
	c := newFixture(t).controller(Options{Targets: []string{"missing", "t", "c"}})
	items, err := c.ItemsToDelete(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []ItemSummary{
		{ItemID: "t", DisplayName: "T", Icon: "icons/doc.png", Path: "/content/T"},
		{ItemID: "c", DisplayName: "C", Path: "/content/T/C"},
	}, items)
}

func TestCancelBeforeJob(t *testing.T) {
	f := newFixture(t)
	c := f.controller(Options{Targets: []string{"t"}})
	v := c.Cancel()
	assert.True(t, v.Closed)
	assert.Equal(t, ResultNo, v.Result)
	assert.Empty(t, f.audit.Entries())
}

// gatedIndex blocks GetReferrers for one item until the gate is closed.
type gatedIndex struct {
	types.LinkIndex
	on      string
	reached chan struct{}
	gate    chan struct{}
	once    sync.Once
}

func (g *gatedIndex) GetReferrers(ctx context.Context, item *types.Item) ([]*types.Link, error) {
	if item.ItemID == g.on {
		g.once.Do(func() { close(g.reached) })
		<-g.gate
	}
	return g.LinkIndex.GetReferrers(ctx, item)
}

func TestCancelMidRunLeavesPartialStateAndJobRuns(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	gated := &gatedIndex{LinkIndex: f.store, on: "c", reached: make(chan struct{}), gate: make(chan struct{})}
	f.links = gated
	c := f.controller(Options{Targets: []string{"t"}, Actor: "editor"})

	_, err := c.OK(ctx, ActionRemove)
	require.NoError(t, err)
	_, err = c.OK(ctx, ActionRemove)
	require.NoError(t, err)

	select {
	case <-gated.reached:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not reach the child")
	}

	v, err := c.CheckStatus()
	require.NoError(t, err)
	assert.Equal(t, "Processed 1 items. ", v.StatusText)
	assert.Equal(t, time.Millisecond, v.NextPoll)

	v = c.Cancel()
	assert.Equal(t, ResultNo, v.Result)
	assert.Contains(t, f.audit.Entries(), "The RemoveLinks job was cancelled by the user. The target item will therefore not be deleted.  Some or all of the referring links have already been removed or updated.")
	assert.Zero(t, referrerCount(t, f.store, "t"), "T's referrers were already removed")
	assert.Equal(t, 1, referrerCount(t, f.store, "c"), "C not reached yet")

	close(gated.gate)
	job, ok := f.manager.Get(c.Handle())
	require.True(t, ok)
	select {
	case <-job.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("job did not finish")
	}
	assert.Zero(t, referrerCount(t, f.store, "c"), "cancel does not stop the job")
}

// failingIndex fails every GetReferrers call.
type failingIndex struct {
	types.LinkIndex
}

func (failingIndex) GetReferrers(context.Context, *types.Item) ([]*types.Link, error) {
	return nil, errors.New("index offline")
}

func TestFailedJobShowsFailedPage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.links = failingIndex{LinkIndex: f.store}
	c := f.controller(Options{Targets: []string{"t"}})

	_, err := c.OK(ctx, ActionRemove)
	require.NoError(t, err)
	_, err = c.OK(ctx, ActionRemove)
	require.NoError(t, err)

	v := await(t, c)
	assert.Equal(t, PageFailed, v.Page)
	assert.False(t, v.Closed)
	assert.Contains(t, v.ErrorText, "index offline")
	assert.True(t, v.BackVisible)
	assert.True(t, v.OKVisible)
}

func TestCheckStatusWithoutJob(t *testing.T) {
	c := newFixture(t).controller(Options{Targets: []string{"t"}})
	_, err := c.CheckStatus()
	assert.ErrorIs(t, err, ErrNoJob)
}
