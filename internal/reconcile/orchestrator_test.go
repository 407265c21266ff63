package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gridsync/internal/dataset"
	"github.com/roach88/gridsync/internal/fault"
	"github.com/roach88/gridsync/internal/persist"
	"github.com/roach88/gridsync/internal/record"
	"github.com/roach88/gridsync/internal/session"
	"github.com/roach88/gridsync/internal/store"
	"github.com/roach88/gridsync/internal/testutil"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fixture struct {
	ds      *dataset.Dataset
	session *session.Store
	backend *testutil.FakeBackend
	orch    *Orchestrator
}

func movieRows() []record.Record {
	return []record.Record{
		{"id": record.Int(1), "title": record.String("A"), "year": record.Int(2000),
			"votes": record.Int(10), "rating": record.Float(7.5), "genres": record.String("Drama")},
		{"id": record.Int(2), "title": record.String("B"), "year": record.Int(2001),
			"votes": record.Int(20), "rating": record.Float(6), "genres": record.String("Comedy")},
	}
}

func newFixture(t *testing.T, rows []record.Record, opts ...Option) *fixture {
	t.Helper()
	ds := dataset.Movies()
	be := testutil.NewFakeBackend(ds.Name, ds.Identity, rows...)
	s := testutil.NewSession("sess-1")
	gw := persist.NewGateway(be, ds.Identity, persist.WithLogger(discard))
	opts = append([]Option{WithLogger(discard)}, opts...)
	return &fixture{
		ds:      ds,
		session: s,
		backend: be,
		orch:    New(ds, s, be, gw, opts...),
	}
}

func (f *fixture) edit(t *testing.T, buf record.EditBuffer) session.Key {
	t.Helper()
	key := f.orch.EditorKey()
	require.NoError(t, f.session.WriteBuffer(key, buf))
	return key
}

func TestLoadCachesSnapshot(t *testing.T) {
	f := newFixture(t, movieRows())
	ctx := context.Background()

	snap, err := f.orch.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Len())
	assert.Equal(t, f.ds.Fields(), snap.Columns)

	_, err = f.orch.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, f.backend.Calls(), 1, "second load is served from the session")
}

func TestLoadNoDataIsEmptyAndUncached(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	snap, err := f.orch.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Len())
	assert.Equal(t, f.ds.Fields(), snap.Columns)

	_, ok := f.session.Snapshot(f.ds.Name)
	assert.False(t, ok)
}

func TestLoadBackendError(t *testing.T) {
	f := newFixture(t, movieRows())
	f.backend.FailWith("fetch", 503, "unavailable")

	_, err := f.orch.Load(context.Background())
	require.Error(t, err)
	assert.True(t, fault.IsBackend(err))
}

func TestCycleEmptyBufferStaysIdle(t *testing.T) {
	f := newFixture(t, movieRows())

	preview, err := f.orch.Cycle(context.Background())
	require.NoError(t, err)
	assert.Nil(t, preview)
	assert.Equal(t, Idle, f.orch.State())
}

func TestCycleStagesDiff(t *testing.T) {
	f := newFixture(t, movieRows())
	key := f.edit(t, record.EditBuffer{
		Updated: map[int]record.Record{0: {"title": record.String("A2")}},
		Deleted: []int{1},
	})

	preview, err := f.orch.Cycle(context.Background())
	require.NoError(t, err)
	require.NotNil(t, preview)

	assert.Equal(t, DiffComputed, f.orch.State())
	assert.Equal(t, key.String(), preview.EditorKey)
	assert.Equal(t, 1, preview.Counts.Updated)
	assert.Equal(t, 1, preview.Counts.Deleted)
	assert.Same(t, preview.Diff, f.orch.Staged())
}

func TestCycleRecomputesFromCurrentBuffer(t *testing.T) {
	f := newFixture(t, movieRows())
	ctx := context.Background()

	f.edit(t, record.EditBuffer{Deleted: []int{0}})
	_, err := f.orch.Cycle(ctx)
	require.NoError(t, err)

	f.edit(t, record.EditBuffer{})
	preview, err := f.orch.Cycle(ctx)
	require.NoError(t, err)
	assert.Nil(t, preview)
	assert.Equal(t, Idle, f.orch.State())
	assert.Nil(t, f.orch.Staged())
}

func TestCycleOutOfRangeDiscardsBuffer(t *testing.T) {
	f := newFixture(t, movieRows())
	before := f.edit(t, record.EditBuffer{Deleted: []int{7}})

	preview, err := f.orch.Cycle(context.Background())
	assert.Nil(t, preview)
	assert.True(t, fault.IsIndexOutOfRange(err))

	assert.Equal(t, Idle, f.orch.State())
	assert.NotEqual(t, before, f.orch.EditorKey())
	assert.True(t, f.session.Buffer(f.ds.Name).Empty())
}

func TestApplySuccess(t *testing.T) {
	j := &memJournal{}
	f := newFixture(t, movieRows(), WithJournal(j))
	ctx := context.Background()

	before := f.edit(t, record.EditBuffer{
		Created: []record.Record{{"title": record.String("C"), "year": record.Int(2020)}},
		Updated: map[int]record.Record{1: {"rating": record.Float(8)}},
		Deleted: []int{0},
	})
	_, err := f.orch.Cycle(ctx)
	require.NoError(t, err)

	out, err := f.orch.Apply(ctx)
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Empty(t, out.Failures)

	assert.Equal(t, Idle, f.orch.State())
	assert.NotEqual(t, before, f.orch.EditorKey())
	assert.Equal(t, f.orch.EditorKey().String(), out.EditorKey)
	_, cached := f.session.Snapshot(f.ds.Name)
	assert.False(t, cached, "snapshot is invalidated after apply")

	rows := f.backend.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, record.Float(8), rows[0]["rating"])
	assert.Equal(t, record.String("C"), rows[1]["title"])
	assert.Equal(t, record.Int(3), rows[1]["id"])

	snap, err := f.orch.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Len())

	require.Len(t, j.cycles, 1)
	c := j.cycles[0]
	assert.Equal(t, store.OutcomeApplied, c.Outcome)
	assert.Equal(t, before.String(), c.EditorKey)
	assert.Equal(t, "sess-1", c.SessionID)
	require.Len(t, c.Operations, 3)
	for _, op := range c.Operations {
		assert.Equal(t, store.StatusOK, op.Status)
	}
}

func TestApplyFailureRollsBack(t *testing.T) {
	for _, op := range []string{"create", "update", "delete"} {
		t.Run(op, func(t *testing.T) {
			f := newFixture(t, movieRows())
			f.backend.FailWith(op, 422, "rejected")
			ctx := context.Background()

			before := f.edit(t, record.EditBuffer{
				Created: []record.Record{{"title": record.String("C")}},
				Updated: map[int]record.Record{0: {"title": record.String("A2")}},
				Deleted: []int{1},
			})
			_, err := f.orch.Cycle(ctx)
			require.NoError(t, err)

			out, err := f.orch.Apply(ctx)
			require.Error(t, err)

			var ae *ApplyError
			require.ErrorAs(t, err, &ae)
			require.Len(t, ae.Failures, 1)
			assert.Equal(t, persist.Operation(op), ae.Failures[0].Operation)
			assert.Contains(t, ae.Failures[0].Reason, "rejected")
			assert.False(t, out.Applied)

			assert.Equal(t, Idle, f.orch.State())
			assert.Nil(t, f.orch.Staged())
			assert.NotEqual(t, before, f.orch.EditorKey())
			assert.True(t, f.session.Buffer(f.ds.Name).Empty())

			// Every batch is still issued.
			var issued []string
			for _, c := range f.backend.Calls() {
				issued = append(issued, c.Operation)
			}
			assert.Equal(t, []string{"fetch", "create", "update", "delete"}, issued)
		})
	}
}

func TestApplyErrorNamesOperations(t *testing.T) {
	f := newFixture(t, movieRows())
	f.backend.FailWith("create", 500, "boom")
	f.backend.FailWith("delete", 404, "gone")
	ctx := context.Background()

	f.edit(t, record.EditBuffer{
		Created: []record.Record{{"title": record.String("C")}},
		Deleted: []int{0},
	})
	_, err := f.orch.Cycle(ctx)
	require.NoError(t, err)

	_, err = f.orch.Apply(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Created failed: boom")
	assert.Contains(t, err.Error(), "Deleted failed: gone")
	assert.True(t, fault.IsBackend(err))

	// Nothing succeeded, so the snapshot is still good.
	_, cached := f.session.Snapshot(f.ds.Name)
	assert.True(t, cached)
}

func TestApplyPartialFailureInvalidatesSnapshot(t *testing.T) {
	f := newFixture(t, movieRows())
	f.backend.FailWith("delete", 500, "boom")
	ctx := context.Background()

	f.edit(t, record.EditBuffer{
		Created: []record.Record{{"title": record.String("C")}},
		Deleted: []int{0},
	})
	_, err := f.orch.Cycle(ctx)
	require.NoError(t, err)

	_, err = f.orch.Apply(ctx)
	require.Error(t, err)

	_, cached := f.session.Snapshot(f.ds.Name)
	assert.False(t, cached)
}

func TestDiscard(t *testing.T) {
	j := &memJournal{}
	f := newFixture(t, movieRows(), WithJournal(j))
	ctx := context.Background()

	before := f.edit(t, record.EditBuffer{Deleted: []int{0}})
	_, err := f.orch.Cycle(ctx)
	require.NoError(t, err)

	require.NoError(t, f.orch.Discard(ctx))
	assert.Equal(t, Idle, f.orch.State())
	assert.NotEqual(t, before, f.orch.EditorKey())
	assert.Len(t, f.backend.Rows(), 2)

	_, cached := f.session.Snapshot(f.ds.Name)
	assert.True(t, cached, "discard keeps the snapshot")

	require.Len(t, j.cycles, 1)
	assert.Equal(t, store.OutcomeDiscarded, j.cycles[0].Outcome)
	assert.Equal(t, store.StatusSkipped, j.cycles[0].Operations[0].Status)
}

func TestNoStagedDiff(t *testing.T) {
	f := newFixture(t, movieRows())
	ctx := context.Background()

	_, err := f.orch.Apply(ctx)
	assert.ErrorIs(t, err, ErrNoStagedDiff)
	assert.ErrorIs(t, f.orch.Discard(ctx), ErrNoStagedDiff)
}

func TestBootstrapFromEmptyDataset(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.edit(t, record.EditBuffer{Created: []record.Record{{"title": record.String("First")}}})
	preview, err := f.orch.Cycle(ctx)
	require.NoError(t, err)
	require.NotNil(t, preview)
	assert.Equal(t, 1, preview.Counts.Created)

	_, err = f.orch.Apply(ctx)
	require.NoError(t, err)

	rows := f.backend.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, record.Int(1), rows[0]["id"])
}

func TestAudit(t *testing.T) {
	f := newFixture(t, movieRows())
	f.backend.SetAudit(record.Int(1),
		record.Record{"id": record.Int(1), "title": record.String("A"), "version": record.Int(1), "operation": record.String("INSERT")},
	)

	snap, err := f.orch.Audit(context.Background(), record.Int(1))
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Len())
	assert.Equal(t, f.ds.AuditFields(), snap.Columns)

	v, ok := f.session.Get(f.ds.Name, session.AuditData)
	require.True(t, ok)
	assert.Equal(t, snap, v)

	empty, err := f.orch.Audit(context.Background(), record.Int(2))
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
}

func TestJournalFailureDoesNotFailApply(t *testing.T) {
	f := newFixture(t, movieRows(), WithJournal(&memJournal{err: errors.New("disk full")}))
	ctx := context.Background()

	f.edit(t, record.EditBuffer{Deleted: []int{0}})
	_, err := f.orch.Cycle(ctx)
	require.NoError(t, err)

	out, err := f.orch.Apply(ctx)
	require.NoError(t, err)
	assert.True(t, out.Applied)
}

func TestJournalToSQLite(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	f := newFixture(t, movieRows(), WithJournal(st))
	f.backend.FailWith("update", 400, "bad year")
	ctx := context.Background()

	f.edit(t, record.EditBuffer{
		Updated: map[int]record.Record{0: {"year": record.Int(1800)}},
		Deleted: []int{1},
	})
	_, err = f.orch.Cycle(ctx)
	require.NoError(t, err)
	_, err = f.orch.Apply(ctx)
	require.Error(t, err)

	cycles, err := st.ReadCycles(ctx, store.Filter{Dataset: "movies"})
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	assert.Equal(t, store.OutcomeFailed, cycles[0].Outcome)
	require.Len(t, cycles[0].Operations, 2)
	assert.Equal(t, "update", cycles[0].Operations[0].Operation)
	assert.Equal(t, store.StatusFailed, cycles[0].Operations[0].Status)
	assert.Equal(t, "bad year", cycles[0].Operations[0].Message)
	assert.Equal(t, store.StatusOK, cycles[0].Operations[1].Status)
	assert.Equal(t, `[2]`, cycles[0].Operations[1].Payload)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "diff_computed", DiffComputed.String())
	assert.Equal(t, "applying", Applying.String())
}

type memJournal struct {
	cycles []store.Cycle
	err    error
}

func (m *memJournal) AppendCycle(_ context.Context, c store.Cycle) (store.Cycle, error) {
	if m.err != nil {
		return store.Cycle{}, m.err
	}
	c.Seq = int64(len(m.cycles) + 1)
	m.cycles = append(m.cycles, c)
	return c, nil
}

func TestFailureString(t *testing.T) {
	tests := []struct {
		op   persist.Operation
		want string
	}{
		{persist.OpCreate, "Created failed: 409 Client Error: duplicate"},
		{persist.OpUpdate, "Updated failed: 409 Client Error: duplicate"},
		{persist.OpDelete, "Deleted failed: 409 Client Error: duplicate"},
	}

	for _, tt := range tests {
		f := Failure{Operation: tt.op, Reason: "409 Client Error: duplicate"}
		assert.Equal(t, tt.want, f.String())
	}
}
