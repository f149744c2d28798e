package schedule

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cadence/internal/eventbus"
	"cadence/internal/storage"
	logx "cadence/pkg/logx"
)

type fakeReg struct {
	every time.Duration
	job   func(ctx context.Context) error
}

type fakeTimers struct {
	mu             sync.Mutex
	regs           map[string]fakeReg
	registers      int
	failRegister   map[string]error
	failUnregister map[string]error
}

func newFakeTimers() *fakeTimers {
	return &fakeTimers{
		regs:           map[string]fakeReg{},
		failRegister:   map[string]error{},
		failUnregister: map[string]error{},
	}
}

func (f *fakeTimers) Register(key string, every time.Duration, job func(ctx context.Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failRegister[key]; err != nil {
		return err
	}
	f.registers++
	f.regs[key] = fakeReg{every: every, job: job}
	return nil
}

func (f *fakeTimers) Unregister(key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failUnregister[key]; err != nil {
		return false, err
	}
	_, ok := f.regs[key]
	delete(f.regs, key)
	return ok, nil
}

func (f *fakeTimers) Next(key string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.regs[key]
	if !ok {
		return time.Time{}, false
	}
	return time.Now().Add(r.every), true
}

func (f *fakeTimers) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.regs))
	for k := range f.regs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f *fakeTimers) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.regs[key]
	return ok
}

func (f *fakeTimers) fire(t *testing.T, key string) error {
	t.Helper()
	f.mu.Lock()
	r, ok := f.regs[key]
	f.mu.Unlock()
	require.True(t, ok, "no timer %s", key)
	return r.job(context.Background())
}

type fakeActions struct {
	mu    sync.Mutex
	calls []string
	fail  map[Kind]error
	// during runs after the call is recorded, outside mu.
	during func(k Kind)
}

func (f *fakeActions) record(k Kind) error {
	f.mu.Lock()
	f.calls = append(f.calls, string(k))
	err, during := f.fail[k], f.during
	f.mu.Unlock()
	if during != nil {
		during(k)
	}
	return err
}

func (f *fakeActions) PlayAlert(context.Context, int64) error       { return f.record(KindSound) }
func (f *fakeActions) OpenForm(context.Context, int64, string) error { return f.record(KindForm) }
func (f *fakeActions) OpenFile(context.Context, int64, string) error { return f.record(KindFile) }

func (f *fakeActions) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// faultyStore injects commit and history failures into a real store.
type faultyStore struct {
	storage.Store
	commitErr  error
	historyErr error
}

func (s *faultyStore) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &faultyTx{Tx: tx, commitErr: s.commitErr}, nil
}

func (s *faultyStore) AppendHistory(ctx context.Context, e storage.HistoryEntry) (storage.HistoryEntry, error) {
	if s.historyErr != nil {
		return storage.HistoryEntry{}, s.historyErr
	}
	return s.Store.AppendHistory(ctx, e)
}

type faultyTx struct {
	storage.Tx
	commitErr error
}

func (t *faultyTx) Commit() error {
	if t.commitErr != nil {
		_ = t.Tx.Rollback()
		return t.commitErr
	}
	return t.Tx.Commit()
}

type harness struct {
	m       *Manager
	store   *faultyStore
	timers  *fakeTimers
	actions *fakeActions
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st, err := storage.Open(storage.Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "cadence.db")}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	h := &harness{
		store:   &faultyStore{Store: st},
		timers:  newFakeTimers(),
		actions: &fakeActions{fail: map[Kind]error{}},
	}
	h.m = New(h.store, h.timers, h.actions, logx.Nop(), eventbus.New())
	return h
}

func (h *harness) historyLen(t *testing.T) int {
	t.Helper()
	hist, err := h.m.History(context.Background(), 0)
	require.NoError(t, err)
	return len(hist)
}

func ptr[T any](v T) *T { return &v }

func TestCreateArmsEligibleTimers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	v, err := h.m.Create(ctx, Input{
		Description:     "Daily check",
		IntervalMinutes: 30,
		IsActive:        ptr(true),
		GoogleFormURL:   "https://example.com/f",
	})
	require.NoError(t, err)

	assert.True(t, h.timers.has(TimerKey(v.ID, KindSound)))
	assert.True(t, h.timers.has(TimerKey(v.ID, KindForm)))
	assert.False(t, h.timers.has(TimerKey(v.ID, KindFile)))
	assert.Equal(t, 30*time.Minute, h.timers.regs[TimerKey(v.ID, KindForm)].every)

	list, err := h.m.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotNil(t, list[0].NextRunAt)
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cases := []Input{
		{Description: "  ", IntervalMinutes: 5},
		{Description: "x", IntervalMinutes: 0},
		{Description: "x", IntervalMinutes: -3},
		{Description: "x", IntervalMinutes: 5, GoogleFormURL: "not-a-url"},
	}
	for _, in := range cases {
		_, err := h.m.Create(ctx, in)
		assert.ErrorIs(t, err, ErrValidation, "%+v", in)
	}
	list, err := h.m.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, h.timers.Keys())
}

func TestInactiveScheduleHasNoTimers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	v, err := h.m.Create(ctx, Input{Description: "paused", IntervalMinutes: 10, IsActive: ptr(false), ExcelPath: "a.xlsx"})
	require.NoError(t, err)
	assert.Empty(t, h.timers.Keys())
	assert.Nil(t, v.NextRunAt)

	// Persisted rows with a non-positive interval are never armed either.
	tx, err := h.store.Begin(ctx)
	require.NoError(t, err)
	zero := storage.Schedule{Description: "x", IntervalMinutes: 0, IsActive: true, ExcelPath: "a.xlsx"}
	require.NoError(t, tx.CreateSchedule(ctx, &zero))
	require.NoError(t, tx.Commit())

	require.NoError(t, h.m.Reconcile(ctx, zero.ID))
	assert.Empty(t, h.timers.Keys())
}

func TestReconcileIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	v, err := h.m.Create(ctx, Input{Description: "x", IntervalMinutes: 5, ExcelPath: "a.xlsx", GoogleFormURL: "https://example.com"})
	require.NoError(t, err)

	require.NoError(t, h.m.Reconcile(ctx, v.ID))
	require.NoError(t, h.m.Reconcile(ctx, v.ID))
	assert.Equal(t, []string{
		TimerKey(v.ID, KindFile),
		TimerKey(v.ID, KindForm),
		TimerKey(v.ID, KindSound),
	}, h.timers.Keys())
}

func TestReconcileMissingRowDropsTimers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.timers.Register(TimerKey(42, KindSound), time.Minute, func(context.Context) error { return nil }))
	require.NoError(t, h.m.Reconcile(ctx, 42))
	assert.Empty(t, h.timers.Keys())
}

// gatedStore parks the first CreateSchedule after its insert until release
// is closed, leaving the creating transaction open.
type gatedStore struct {
	storage.Store
	once     sync.Once
	inserted chan struct{}
	release  chan struct{}
}

func (s *gatedStore) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &gatedTx{Tx: tx, s: s}, nil
}

type gatedTx struct {
	storage.Tx
	s *gatedStore
}

func (t *gatedTx) CreateSchedule(ctx context.Context, sc *storage.Schedule) error {
	if err := t.Tx.CreateSchedule(ctx, sc); err != nil {
		return err
	}
	t.s.once.Do(func() {
		close(t.s.inserted)
		<-t.s.release
	})
	return nil
}

func TestMutationsRacingCreateOnSameID(t *testing.T) {
	cases := []struct {
		name  string
		op    func(ctx context.Context, m *Manager, id int64) error
		check func(t *testing.T, h *harness, id int64)
	}{
		{
			name: "update",
			op: func(ctx context.Context, m *Manager, id int64) error {
				_, err := m.Update(ctx, id, storage.Patch{GoogleFormURL: ptr("https://example.com")})
				return err
			},
			check: func(t *testing.T, h *harness, id int64) {
				assert.Equal(t, []string{TimerKey(id, KindForm), TimerKey(id, KindSound)}, h.timers.Keys())
			},
		},
		{
			name: "delete",
			op: func(ctx context.Context, m *Manager, id int64) error {
				return m.Delete(ctx, id)
			},
			check: func(t *testing.T, h *harness, id int64) {
				assert.Empty(t, h.timers.Keys())
				_, err := h.m.Get(context.Background(), id)
				assert.ErrorIs(t, err, ErrNotFound)
			},
		},
		{
			name: "reconcile",
			op: func(ctx context.Context, m *Manager, id int64) error {
				return m.Reconcile(ctx, id)
			},
			check: func(t *testing.T, h *harness, id int64) {
				assert.Equal(t, []string{TimerKey(id, KindSound)}, h.timers.Keys())
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			gated := &gatedStore{Store: h.store, inserted: make(chan struct{}), release: make(chan struct{})}
			h.m.store = gated

			created := make(chan error, 1)
			go func() {
				_, err := h.m.Create(context.Background(), Input{Description: "x", IntervalMinutes: 5})
				created <- err
			}()
			select {
			case <-gated.inserted:
			case <-time.After(3 * time.Second):
				t.Fatal("create never inserted")
			}

			// The first row of a fresh database gets id 1.
			const id = int64(1)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			opDone := make(chan error, 1)
			go func() { opDone <- tc.op(ctx, h.m, id) }()

			time.Sleep(20 * time.Millisecond)
			close(gated.release)

			for _, ch := range []chan error{created, opDone} {
				select {
				case err := <-ch:
					require.NoError(t, err)
				case <-time.After(3 * time.Second):
					t.Fatal("deadlock between create and a concurrent mutation")
				}
			}
			tc.check(t, h, id)
		})
	}
}

func TestClearingExcelPathRemovesOnlyFileTimer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	v, err := h.m.Create(ctx, Input{Description: "x", IntervalMinutes: 5, ExcelPath: "a.xlsx", GoogleFormURL: "https://example.com"})
	require.NoError(t, err)
	require.Len(t, h.timers.Keys(), 3)

	_, err = h.m.Update(ctx, v.ID, storage.Patch{ExcelPath: ptr("")})
	require.NoError(t, err)
	assert.False(t, h.timers.has(TimerKey(v.ID, KindFile)))
	assert.True(t, h.timers.has(TimerKey(v.ID, KindSound)))
	assert.True(t, h.timers.has(TimerKey(v.ID, KindForm)))
}

func TestUpdateDeactivateAndReactivate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	v, err := h.m.Create(ctx, Input{Description: "x", IntervalMinutes: 5, GoogleFormURL: "https://example.com"})
	require.NoError(t, err)

	_, err = h.m.Update(ctx, v.ID, storage.Patch{IsActive: ptr(false)})
	require.NoError(t, err)
	assert.Empty(t, h.timers.Keys())

	got, err := h.m.Update(ctx, v.ID, storage.Patch{IsActive: ptr(true), IntervalMinutes: ptr(15)})
	require.NoError(t, err)
	assert.Len(t, h.timers.Keys(), 2)
	assert.Equal(t, 15*time.Minute, h.timers.regs[TimerKey(v.ID, KindSound)].every)
	assert.Equal(t, 15, got.IntervalMinutes)
}

func TestUpdateErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.m.Update(ctx, 404, storage.Patch{Description: ptr("x")})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = h.m.Update(ctx, 1, storage.Patch{})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.m.Update(ctx, 1, storage.Patch{IntervalMinutes: ptr(0)})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRegistrationFailureRollsBackCreate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	// The first schedule gets id 1.
	h.timers.failRegister["1:form"] = errors.New("boom")

	_, err := h.m.Create(ctx, Input{Description: "x", IntervalMinutes: 5, GoogleFormURL: "https://example.com"})
	require.ErrorIs(t, err, ErrTimerRegistration)

	list, err := h.m.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, h.timers.Keys(), "sound timer armed before the failure must be removed")
}

func TestRegistrationFailureRollsBackUpdate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	v, err := h.m.Create(ctx, Input{Description: "before", IntervalMinutes: 5})
	require.NoError(t, err)

	key := TimerKey(v.ID, KindFile)
	h.timers.failRegister[key] = errors.New("boom")
	_, err = h.m.Update(ctx, v.ID, storage.Patch{Description: ptr("after"), ExcelPath: ptr("a.xlsx")})
	require.ErrorIs(t, err, ErrTimerRegistration)

	got, err := h.m.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "before", got.Description)
	assert.Empty(t, got.ExcelPath)
	assert.Equal(t, []string{TimerKey(v.ID, KindSound)}, h.timers.Keys())
}

func TestCommitFailureRestoresTimers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	v, err := h.m.Create(ctx, Input{Description: "x", IntervalMinutes: 5, GoogleFormURL: "https://example.com"})
	require.NoError(t, err)

	h.store.commitErr = errors.New("disk full")
	_, err = h.m.Update(ctx, v.ID, storage.Patch{IsActive: ptr(false)})
	require.ErrorIs(t, err, ErrPersistence)
	assert.Len(t, h.timers.Keys(), 2, "timers of the unchanged schedule are restored")

	_, err = h.m.Create(ctx, Input{Description: "y", IntervalMinutes: 5})
	require.ErrorIs(t, err, ErrPersistence)
	assert.Len(t, h.timers.Keys(), 2)

	err = h.m.Delete(ctx, v.ID)
	require.ErrorIs(t, err, ErrPersistence)
	assert.Len(t, h.timers.Keys(), 2)
	h.store.commitErr = nil

	_, err = h.m.Get(ctx, v.ID)
	assert.NoError(t, err)
}

func TestDeleteRemovesAllTimers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	v, err := h.m.Create(ctx, Input{Description: "x", IntervalMinutes: 5, ExcelPath: "a.xlsx", GoogleFormURL: "https://example.com"})
	require.NoError(t, err)
	require.NoError(t, h.m.Delete(ctx, v.ID))

	for _, k := range Kinds {
		assert.False(t, h.timers.has(TimerKey(v.ID, k)))
	}
	list, err := h.m.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.ErrorIs(t, h.m.Delete(ctx, v.ID), ErrNotFound)
}

func TestDeleteUnregisterFailureKeepsRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	v, err := h.m.Create(ctx, Input{Description: "x", IntervalMinutes: 5})
	require.NoError(t, err)
	h.timers.failUnregister[TimerKey(v.ID, KindForm)] = errors.New("boom")

	require.ErrorIs(t, h.m.Delete(ctx, v.ID), ErrTimerRegistration)
	_, err = h.m.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.True(t, h.timers.has(TimerKey(v.ID, KindSound)))
}

func TestRunNowInactiveIsRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	v, err := h.m.Create(ctx, Input{Description: "x", IntervalMinutes: 5, IsActive: ptr(false), ExcelPath: "a.xlsx"})
	require.NoError(t, err)

	_, err = h.m.RunNow(ctx, v.ID)
	require.ErrorIs(t, err, ErrInactive)
	assert.Zero(t, h.actions.count())
	assert.Zero(t, h.historyLen(t))

	_, err = h.m.RunNow(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRunNowRunsAllActionsAndRecordsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	v, err := h.m.Create(ctx, Input{Description: "x", IntervalMinutes: 5, ExcelPath: "a.xlsx", GoogleFormURL: "https://example.com"})
	require.NoError(t, err)

	rep, err := h.m.RunNow(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"sound", "form", "file"}, h.actions.calls)
	require.NotNil(t, rep.History)
	assert.Equal(t, storage.SourceRunNow, rep.History.Source)
	assert.Equal(t, 1, h.historyLen(t))

	got, err := h.m.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastRunAt)
}

func TestRunNowAggregatesActionFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	v, err := h.m.Create(ctx, Input{Description: "x", IntervalMinutes: 5, ExcelPath: "a.xlsx", GoogleFormURL: "https://example.com"})
	require.NoError(t, err)
	h.actions.fail[KindForm] = errors.New("no browser")

	rep, err := h.m.RunNow(ctx, v.ID)
	require.ErrorIs(t, err, ErrActionExecution)
	assert.NotErrorIs(t, err, ErrHistoryRecording)
	assert.Len(t, h.actions.calls, 3, "file still runs after form fails")
	require.Len(t, rep.Actions, 3)
	assert.False(t, rep.Actions[1].OK)
	assert.Contains(t, rep.Actions[1].Error, "no browser")
	assert.Equal(t, 1, h.historyLen(t))
}

func TestRunNowHistoryFailureIsDistinct(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	v, err := h.m.Create(ctx, Input{Description: "x", IntervalMinutes: 5})
	require.NoError(t, err)
	h.store.historyErr = errors.New("locked")

	rep, err := h.m.RunNow(ctx, v.ID)
	require.ErrorIs(t, err, ErrHistoryRecording)
	assert.NotErrorIs(t, err, ErrActionExecution)
	assert.Nil(t, rep.History)
	assert.Equal(t, 1, h.actions.count())
}

func TestRunNowRacingDeleteRecordsNoHistory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	v, err := h.m.Create(ctx, Input{Description: "x", IntervalMinutes: 5, GoogleFormURL: "https://example.com"})
	require.NoError(t, err)
	h.actions.during = func(k Kind) {
		if k == KindSound {
			require.NoError(t, h.m.Delete(ctx, v.ID))
		}
	}

	rep, err := h.m.RunNow(ctx, v.ID)
	require.ErrorIs(t, err, ErrHistoryRecording)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, rep.History)
	assert.Equal(t, 2, h.actions.count(), "actions already started still run")
	assert.Zero(t, h.historyLen(t))
	assert.Empty(t, h.timers.Keys())
}

func TestAnchorFireRecordsHistory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	v, err := h.m.Create(ctx, Input{Description: "x", IntervalMinutes: 5, GoogleFormURL: "https://example.com"})
	require.NoError(t, err)

	require.NoError(t, h.timers.fire(t, TimerKey(v.ID, KindForm)))
	assert.Zero(t, h.historyLen(t))

	h.actions.fail[KindSound] = errors.New("muted")
	assert.Error(t, h.timers.fire(t, TimerKey(v.ID, KindSound)))
	hist, err := h.m.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, storage.SourceTimer, hist[0].Source)
	assert.Equal(t, "x", hist[0].Description)
}

func TestReconcileAllArmsActiveAndPrunesOrphans(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a, err := h.m.Create(ctx, Input{Description: "a", IntervalMinutes: 5})
	require.NoError(t, err)
	_, err = h.m.Create(ctx, Input{Description: "b", IntervalMinutes: 5, IsActive: ptr(false)})
	require.NoError(t, err)

	// A fresh timer engine after restart, plus a stale timer for a gone schedule.
	h.timers = newFakeTimers()
	h.m.timers = h.timers
	require.NoError(t, h.timers.Register("99:sound", time.Minute, func(context.Context) error { return nil }))

	ok, failed, err := h.m.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, ok)
	assert.Zero(t, failed)
	assert.Equal(t, []string{TimerKey(a.ID, KindSound)}, h.timers.Keys())
}

func TestReconcileAllCountsFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a, err := h.m.Create(ctx, Input{Description: "a", IntervalMinutes: 5})
	require.NoError(t, err)
	_, err = h.m.Create(ctx, Input{Description: "b", IntervalMinutes: 5})
	require.NoError(t, err)

	h.timers.failRegister[TimerKey(a.ID, KindSound)] = errors.New("boom")
	ok, failed, err := h.m.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, failed)
}

func TestParseTimerKey(t *testing.T) {
	t.Parallel()
	id, k, ok := parseTimerKey(TimerKey(12, KindForm))
	assert.True(t, ok)
	assert.Equal(t, int64(12), id)
	assert.Equal(t, KindForm, k)

	for _, bad := range []string{"", "12", "x:sound", "12:other", "report:daily"} {
		_, _, ok := parseTimerKey(bad)
		assert.False(t, ok, bad)
	}
}

func TestKeyLocksSerializeSameID(t *testing.T) {
	t.Parallel()
	kl := newKeyLocks()
	unlock := kl.lock(1)

	acquired := make(chan struct{})
	released := make(chan struct{})
	go func() {
		u := kl.lock(1)
		close(acquired)
		u()
		close(released)
	}()

	other := kl.lock(2)
	other()

	select {
	case <-acquired:
		t.Fatal("second lock on the same id must wait")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	<-acquired
	<-released

	kl.mu.Lock()
	defer kl.mu.Unlock()
	assert.Empty(t, kl.locks)
}
