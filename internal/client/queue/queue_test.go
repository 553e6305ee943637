package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/parcelsync/internal/client/api"
	"github.com/dmitrijs2005/parcelsync/internal/client/connectivity"
	"github.com/dmitrijs2005/parcelsync/internal/client/models"
	"github.com/dmitrijs2005/parcelsync/internal/client/store"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2026, 10, 5, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped atomic.Bool
}

func (t *fakeTimer) Stop() bool { return !t.stopped.Swap(true) }

type timers struct {
	mu   sync.Mutex
	list []*fakeTimer
}

func (ts *timers) AfterFunc(d time.Duration, f func()) interface{ Stop() bool } {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	ts.list = append(ts.list, t)
	return t
}

func (ts *timers) Active() []*fakeTimer {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	var out []*fakeTimer
	for _, t := range ts.list {
		if !t.stopped.Load() {
			out = append(out, t)
		}
	}
	return out
}

// deliverer answers per item id from a script; ids without a script
// succeed. It tracks concurrency.
type deliverer struct {
	mu       sync.Mutex
	script   map[string][]error
	calls    []string
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	block    map[string]chan struct{}
	entered  chan string
}

func newDeliverer() *deliverer {
	return &deliverer{script: map[string][]error{}, block: map[string]chan struct{}{}, entered: make(chan string, 64)}
}

func (d *deliverer) Deliver(ctx context.Context, item models.Item) (models.Record, error) {
	n := d.inFlight.Add(1)
	defer d.inFlight.Add(-1)
	for {
		m := d.maxSeen.Load()
		if n <= m || d.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}

	d.mu.Lock()
	d.calls = append(d.calls, item.ID)
	var err error
	if s := d.script[item.ID]; len(s) > 0 {
		err = s[0]
		d.script[item.ID] = s[1:]
	}
	gate := d.block[item.ID]
	d.mu.Unlock()

	d.entered <- item.ID
	if gate != nil {
		<-gate
	}
	if err != nil {
		return models.Record{}, err
	}
	return models.Record{ID: "rec-" + item.ID, ClientItemID: item.ID}, nil
}

func (d *deliverer) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

type event struct {
	kind string
	id   string
	err  error
}

type observer struct {
	mu     sync.Mutex
	events []event
	onDone func(models.Item)
}

func (o *observer) Delivered(item models.Item, _ models.Record) {
	if o.onDone != nil {
		o.onDone(item)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event{kind: "delivered", id: item.ID})
}

func (o *observer) Failed(item models.Item, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event{kind: "failed", id: item.ID, err: err})
}

func (o *observer) Events() []event {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]event(nil), o.events...)
}

type harness struct {
	q      *Queue
	store  *store.MemoryStore
	del    *deliverer
	obs    *observer
	clock  *clock
	timers *timers
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:  store.NewMemoryStore(),
		del:    newDeliverer(),
		obs:    &observer{},
		clock:  newClock(),
		timers: &timers{},
	}
	var seq atomic.Int32
	h.q = New(h.store, h.del,
		WithObserver(h.obs),
		WithClock(h.clock.Now),
		WithAfterFunc(h.timers.AfterFunc),
		WithIDGenerator(func() string { return fmt.Sprintf("item-%d", seq.Add(1)) }),
	)
	t.Cleanup(h.q.Close)
	return h
}

// onlineQuiet flips the queue online without starting a background pass,
// so tests can drive passes with Drain.
func (h *harness) onlineQuiet() {
	h.q.mu.Lock()
	h.q.online = true
	h.q.mu.Unlock()
}

func (h *harness) idle() bool {
	h.q.mu.Lock()
	defer h.q.mu.Unlock()
	return !h.q.draining
}

func (h *harness) snapshot(t *testing.T) []models.Item {
	t.Helper()
	raw, ok, err := h.store.Get(context.Background(), store.KeyQueueSnapshot)
	require.NoError(t, err)
	if !ok {
		return nil
	}
	var items []models.Item
	require.NoError(t, json.Unmarshal([]byte(raw), &items))
	return items
}

func capture(ref string) models.Capture {
	return models.Capture{PayloadRef: ref, TargetCollectionID: "property-7", Metadata: models.Metadata{Remarks: "front desk"}}
}

var errNetwork = &api.Error{Kind: api.KindNetworkUnreachable, Message: "network unreachable"}

func TestEnqueue_Validates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.q.Enqueue(ctx, models.Capture{TargetCollectionID: "p"})
	require.ErrorIs(t, err, ErrInvalidCapture)
	_, err = h.q.Enqueue(ctx, models.Capture{PayloadRef: "/a.jpg"})
	require.ErrorIs(t, err, ErrInvalidCapture)
	assert.Empty(t, h.q.List())
}

func TestEnqueue_BuildsAndPersistsItem(t *testing.T) {
	h := newHarness(t)

	item, err := h.q.Enqueue(context.Background(), capture("/photos/a.jpg"))
	require.NoError(t, err)

	assert.Equal(t, "item-1", item.ID)
	assert.Equal(t, models.StatusQueued, item.Status)
	assert.Zero(t, item.Attempts)
	assert.Nil(t, item.LastAttemptAt)
	assert.Nil(t, item.LastError)
	assert.Equal(t, h.clock.Now(), item.CreatedAt)
	assert.Equal(t, h.clock.Now(), item.CollectedAt, "collectedAt defaults to enqueue time")
	assert.Equal(t, "front desk", item.Metadata.Remarks)

	assert.Equal(t, []models.Item{item}, h.snapshot(t))
}

func TestEnqueue_OfflineMakesNoDeliveryCalls(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := h.q.Enqueue(ctx, capture(fmt.Sprintf("/p/%d.jpg", i)))
		require.NoError(t, err)
	}
	h.q.Trigger()
	assert.False(t, h.q.Drain(ctx))

	assert.Empty(t, h.del.Calls())
	for _, it := range h.q.List() {
		assert.Equal(t, models.StatusQueued, it.Status)
	}
	assert.Equal(t, Stats{Queued: 5}, h.q.Stats())
}

type failingStore struct{ store.Store }

func (failingStore) Set(context.Context, string, string) error { return errors.New("disk full") }

func TestEnqueue_PersistFailureRollsBack(t *testing.T) {
	q := New(failingStore{store.NewMemoryStore()}, newDeliverer())
	t.Cleanup(q.Close)

	_, err := q.Enqueue(context.Background(), capture("/a.jpg"))
	require.ErrorContains(t, err, "disk full")
	assert.Empty(t, q.List())
}

// Scenario A: enqueue offline, come online, delivered on the first attempt.
func TestScenario_OfflineThenOnlineDelivers(t *testing.T) {
	h := newHarness(t)

	x, err := h.q.Enqueue(context.Background(), capture("/x.jpg"))
	require.NoError(t, err)

	h.q.SetOnline(true)

	require.Eventually(t, func() bool { return len(h.q.List()) == 0 && h.idle() }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []event{{kind: "delivered", id: x.ID}}, h.obs.Events())
	assert.Equal(t, []string{x.ID}, h.del.Calls())
	assert.Empty(t, h.snapshot(t))
}

func TestDelivered_FiresAfterRemovalIsPersisted(t *testing.T) {
	h := newHarness(t)
	var persistedWithout atomic.Bool
	h.obs.onDone = func(item models.Item) {
		for _, it := range h.snapshot(t) {
			if it.ID == item.ID {
				return
			}
		}
		persistedWithout.Store(true)
	}

	_, err := h.q.Enqueue(context.Background(), capture("/x.jpg"))
	require.NoError(t, err)
	h.onlineQuiet()
	require.True(t, h.q.Drain(context.Background()))

	assert.True(t, persistedWithout.Load())
}

// switchStore fails every Set while broken is true.
type switchStore struct {
	store.Store
	broken atomic.Bool
}

func (s *switchStore) Set(ctx context.Context, key, value string) error {
	if s.broken.Load() {
		return errors.New("disk full")
	}
	return s.Store.Set(ctx, key, value)
}

func TestDelivered_HeldUntilRemovalIsPersisted(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	st := &switchStore{Store: mem}
	obs := &observer{}
	d := DelivererFunc(func(_ context.Context, item models.Item) (models.Record, error) {
		st.broken.Store(true)
		return models.Record{ID: "rec-" + item.ID, ClientItemID: item.ID}, nil
	})
	q := New(st, d, WithObserver(obs), WithIDGenerator(func() string { return "item-1" }))
	t.Cleanup(q.Close)

	_, err := q.Enqueue(ctx, capture("/x.jpg"))
	require.NoError(t, err)
	q.mu.Lock()
	q.online = true
	q.mu.Unlock()

	require.True(t, q.Drain(ctx))

	assert.Empty(t, obs.Events(), "no success signal while the removal is unwritten")
	assert.Empty(t, q.List())
	raw, ok, err := mem.Get(ctx, store.KeyQueueSnapshot)
	require.NoError(t, err)
	require.True(t, ok)
	var stored []models.Item
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	require.Len(t, stored, 1)
	assert.Equal(t, models.StatusUploading, stored[0].Status)
	assert.Equal(t, 1, stored[0].Attempts)

	st.broken.Store(false)
	require.True(t, q.Drain(ctx))

	assert.Equal(t, []event{{kind: "delivered", id: "item-1"}}, obs.Events())
	raw, _, err = mem.Get(ctx, store.KeyQueueSnapshot)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, raw)
}

func TestDelivered_HeldSignalReleasedByLaterWrite(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	st := &switchStore{Store: mem}
	obs := &observer{}
	d := DelivererFunc(func(_ context.Context, item models.Item) (models.Record, error) {
		st.broken.Store(true)
		return models.Record{ID: "rec-" + item.ID}, nil
	})
	var seq atomic.Int32
	q := New(st, d, WithObserver(obs), WithIDGenerator(func() string { return fmt.Sprintf("item-%d", seq.Add(1)) }))
	t.Cleanup(q.Close)

	_, err := q.Enqueue(ctx, capture("/x.jpg"))
	require.NoError(t, err)
	q.mu.Lock()
	q.online = true
	q.mu.Unlock()
	require.True(t, q.Drain(ctx))
	require.Empty(t, obs.Events())

	// back offline so the enqueue below writes without starting a pass
	q.SetOnline(false)
	st.broken.Store(false)
	_, err = q.Enqueue(ctx, capture("/y.jpg"))
	require.NoError(t, err)

	assert.Equal(t, []event{{kind: "delivered", id: "item-1"}}, obs.Events())
	raw, _, err := mem.Get(ctx, store.KeyQueueSnapshot)
	require.NoError(t, err)
	var stored []models.Item
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, []string{"item-2"}, ids(stored))
}

func TestDrain_FailureMarksItemAndArmsTimer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	item, err := h.q.Enqueue(ctx, capture("/y.jpg"))
	require.NoError(t, err)
	h.del.script[item.ID] = []error{errNetwork}

	h.onlineQuiet()
	require.True(t, h.q.Drain(ctx))

	got := h.q.List()
	require.Len(t, got, 1)
	assert.Equal(t, models.StatusFailed, got[0].Status)
	assert.Equal(t, 1, got[0].Attempts)
	require.NotNil(t, got[0].LastAttemptAt)
	assert.Equal(t, h.clock.Now(), *got[0].LastAttemptAt)
	require.NotNil(t, got[0].LastError)
	assert.Equal(t, "network unreachable", *got[0].LastError)
	assert.Equal(t, got, h.snapshot(t))

	active := h.timers.Active()
	require.Len(t, active, 1)
	assert.Equal(t, Backoff(1), active[0].d)

	// Not eligible before the window has elapsed.
	h.clock.Advance(Backoff(1) - time.Millisecond)
	require.True(t, h.q.Drain(ctx))
	assert.Len(t, h.del.Calls(), 1)

	// that pass replaced the timer with one aimed at the same deadline
	active = h.timers.Active()
	require.Len(t, active, 1)
	assert.Equal(t, time.Millisecond, active[0].d)

	h.clock.Advance(time.Millisecond)
	active[0].f()
	require.Eventually(t, func() bool { return len(h.q.List()) == 0 && h.idle() }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{item.ID, item.ID}, h.del.Calls())
}

func TestDrain_FailureWhileOfflineArmsNoTimer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	item, err := h.q.Enqueue(ctx, capture("/y.jpg"))
	require.NoError(t, err)
	h.del.block[item.ID] = make(chan struct{})
	h.del.script[item.ID] = []error{errNetwork}

	h.onlineQuiet()
	done := make(chan struct{})
	go func() {
		h.q.Drain(ctx)
		close(done)
	}()
	<-h.del.entered
	h.q.SetOnline(false)
	close(h.del.block[item.ID])
	<-done

	assert.Empty(t, h.timers.Active())
	assert.Equal(t, models.StatusFailed, h.q.List()[0].Status)
}

func TestDrain_SingleTimerAtEarliestDeadline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a, _ := h.q.Enqueue(ctx, capture("/a.jpg"))
	b, _ := h.q.Enqueue(ctx, capture("/b.jpg"))
	h.del.script[a.ID] = []error{errNetwork, errNetwork, errNetwork}
	h.del.script[b.ID] = []error{errNetwork}
	h.onlineQuiet()

	// a: 1 attempt, b: 1 attempt
	require.True(t, h.q.Drain(ctx))
	require.Len(t, h.timers.Active(), 1)

	// a: 2 attempts (4s window), b delivered
	h.clock.Advance(2 * time.Second)
	require.True(t, h.q.Drain(ctx))
	active := h.timers.Active()
	require.Len(t, active, 1)
	assert.Equal(t, Backoff(2), active[0].d)
	assert.Equal(t, []string{a.ID}, ids(h.q.List()))
}

func TestDrain_SessionExpiredAbortsPass(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a, _ := h.q.Enqueue(ctx, capture("/a.jpg"))
	b, _ := h.q.Enqueue(ctx, capture("/b.jpg"))
	h.del.script[a.ID] = []error{&api.Error{Kind: api.KindSessionExpired, Message: "Session expired, please log in again", Err: api.ErrSessionExpired}}
	h.onlineQuiet()

	require.True(t, h.q.Drain(ctx))

	assert.Equal(t, []string{a.ID}, h.del.Calls(), "remaining items wait for a new session")
	assert.Empty(t, h.timers.Active())
	items := h.q.List()
	assert.Equal(t, models.StatusFailed, items[0].Status)
	assert.Equal(t, "Session expired, please log in again", *items[0].LastError)
	assert.Equal(t, models.StatusQueued, items[1].Status)

	// after login the host triggers a drain
	require.True(t, h.q.Drain(ctx))
	assert.Equal(t, []string{a.ID, b.ID}, h.del.Calls())
	assert.Equal(t, []string{a.ID}, ids(h.q.List()))
}

func TestDrain_FailuresAreIsolatedPerItem(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a, _ := h.q.Enqueue(ctx, capture("/a.jpg"))
	b, _ := h.q.Enqueue(ctx, capture("/b.jpg"))
	c, _ := h.q.Enqueue(ctx, capture("/c.jpg"))
	h.del.script[b.ID] = []error{&api.Error{Kind: api.KindServerError, Status: 500, Message: "boom"}}
	h.onlineQuiet()

	require.True(t, h.q.Drain(ctx))

	assert.Equal(t, []string{a.ID, b.ID, c.ID}, h.del.Calls(), "FIFO order")
	assert.Equal(t, []string{b.ID}, ids(h.q.List()))
	assert.Equal(t, "boom", *h.q.List()[0].LastError)
}

func TestDrain_NonAPIErrorReason(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a, _ := h.q.Enqueue(ctx, capture("/a.jpg"))
	h.del.script[a.ID] = []error{errors.New("open /a.jpg: no such file or directory")}
	h.onlineQuiet()
	require.True(t, h.q.Drain(ctx))

	assert.Equal(t, "open /a.jpg: no such file or directory", *h.q.List()[0].LastError)
	assert.Equal(t, defaultFailureReason, failureReason(nil))
}

func TestTriggersDuringPassCoalesce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a, _ := h.q.Enqueue(ctx, capture("/a.jpg"))
	gate := make(chan struct{})
	h.del.block[a.ID] = gate

	h.q.SetOnline(true)
	require.Equal(t, a.ID, <-h.del.entered)

	// arrives mid-pass: enqueue triggers and explicit triggers
	b, err := h.q.Enqueue(ctx, capture("/b.jpg"))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		h.q.Trigger()
	}
	assert.False(t, h.q.Drain(ctx), "second concurrent pass must not start")

	close(gate)
	require.Eventually(t, func() bool { return len(h.q.List()) == 0 && h.idle() }, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{a.ID, b.ID}, h.del.Calls())
	assert.Equal(t, int32(1), h.del.maxSeen.Load())
}

func TestAtMostOneAttemptInFlight(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := h.q.Enqueue(ctx, capture(fmt.Sprintf("/%d.jpg", i)))
		require.NoError(t, err)
	}
	h.q.SetOnline(true)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.q.Trigger()
			h.q.Drain(ctx)
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool { return len(h.q.List()) == 0 && h.idle() }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), h.del.maxSeen.Load())
	assert.Len(t, h.del.Calls(), 10, "every item delivered exactly once")
}

func TestRetry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a, _ := h.q.Enqueue(ctx, capture("/a.jpg"))
	h.del.script[a.ID] = []error{errNetwork, errNetwork}
	h.onlineQuiet()
	require.True(t, h.q.Drain(ctx))
	h.clock.Advance(Backoff(1))
	require.True(t, h.q.Drain(ctx))
	require.Equal(t, 2, h.q.List()[0].Attempts)

	h.q.SetOnline(false)
	require.NoError(t, h.q.Retry(ctx, a.ID))

	got := h.q.List()
	require.Len(t, got, 1)
	assert.Equal(t, models.StatusQueued, got[0].Status)
	assert.Zero(t, got[0].Attempts)
	assert.Nil(t, got[0].LastError)
	assert.Nil(t, got[0].LastAttemptAt)
	assert.Equal(t, got, h.snapshot(t))

	// retrying a queued item is harmless and creates nothing new
	require.NoError(t, h.q.Retry(ctx, a.ID))
	assert.Len(t, h.q.List(), 1)

	require.NoError(t, h.q.Retry(ctx, "missing"))
	assert.Len(t, h.q.List(), 1)
}

func TestRetry_TriggersDrainWhenOnline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a, _ := h.q.Enqueue(ctx, capture("/a.jpg"))
	h.del.script[a.ID] = []error{errNetwork}
	h.onlineQuiet()
	require.True(t, h.q.Drain(ctx))

	require.NoError(t, h.q.Retry(ctx, a.ID))
	require.Eventually(t, func() bool { return len(h.q.List()) == 0 && h.idle() }, 2*time.Second, 5*time.Millisecond)
}

func TestRetry_UploadingItemIsLeftAlone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a, _ := h.q.Enqueue(ctx, capture("/a.jpg"))
	gate := make(chan struct{})
	h.del.block[a.ID] = gate
	h.del.script[a.ID] = []error{errNetwork}
	h.onlineQuiet()

	done := make(chan struct{})
	go func() {
		h.q.Drain(ctx)
		close(done)
	}()
	<-h.del.entered

	require.NoError(t, h.q.Retry(ctx, a.ID))
	it := h.q.List()[0]
	assert.Equal(t, models.StatusUploading, it.Status)
	assert.Equal(t, 1, it.Attempts)

	close(gate)
	<-done
	assert.Equal(t, models.StatusFailed, h.q.List()[0].Status)
	assert.Equal(t, []string{a.ID}, h.del.Calls())
}

func TestLoad_RestoresAndRequeuesUploading(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	ts := time.Date(2026, 10, 4, 18, 0, 0, 0, time.UTC)
	msg := "network unreachable"
	stored := []models.Item{
		{ID: "a", PayloadRef: "/a.jpg", TargetCollectionID: "p", Status: models.StatusUploading, Attempts: 1, LastAttemptAt: &ts},
		{ID: "b", PayloadRef: "/b.jpg", TargetCollectionID: "p", Status: models.StatusFailed, Attempts: 3, LastAttemptAt: &ts, LastError: &msg},
		{ID: "", PayloadRef: "/junk.jpg"},
		{ID: "c", PayloadRef: "/c.jpg", TargetCollectionID: "p", Status: models.StatusQueued},
	}
	raw, err := json.Marshal(stored)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, store.KeyQueueSnapshot, string(raw)))

	q := New(s, newDeliverer())
	t.Cleanup(q.Close)
	require.NoError(t, q.Load(ctx))

	got := q.List()
	assert.Equal(t, []string{"a", "b", "c"}, ids(got))
	assert.Equal(t, models.StatusQueued, got[0].Status)
	assert.Equal(t, 1, got[0].Attempts)
	assert.Equal(t, models.StatusFailed, got[1].Status)
	assert.Equal(t, msg, *got[1].LastError)

	// the re-queued state was written back
	var persisted []models.Item
	raw2, _, _ := s.Get(ctx, store.KeyQueueSnapshot)
	require.NoError(t, json.Unmarshal([]byte(raw2), &persisted))
	assert.Equal(t, models.StatusQueued, persisted[0].Status)
}

func TestLoad_CorruptOrMissingSnapshotIsEmpty(t *testing.T) {
	ctx := context.Background()

	s := store.NewMemoryStore()
	q := New(s, newDeliverer())
	t.Cleanup(q.Close)
	require.NoError(t, q.Load(ctx))
	assert.Empty(t, q.List())

	require.NoError(t, s.Set(ctx, store.KeyQueueSnapshot, "{not json"))
	require.NoError(t, q.Load(ctx))
	assert.Empty(t, q.List())
}

func TestLoad_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	first := New(s, newDeliverer())
	a, err := first.Enqueue(ctx, capture("/a.jpg"))
	require.NoError(t, err)
	first.Close()

	second := New(s, newDeliverer())
	t.Cleanup(second.Close)
	require.NoError(t, second.Load(ctx))
	require.Len(t, second.List(), 1)
	assert.Equal(t, a.ID, second.List()[0].ID)
}

func TestList_IsACopy(t *testing.T) {
	h := newHarness(t)
	_, err := h.q.Enqueue(context.Background(), capture("/a.jpg"))
	require.NoError(t, err)

	l := h.q.List()
	l[0].Status = models.StatusFailed
	assert.Equal(t, models.StatusQueued, h.q.List()[0].Status)
}

func TestRun_FollowsConnectivity(t *testing.T) {
	h := newHarness(t)
	a, err := h.q.Enqueue(context.Background(), capture("/a.jpg"))
	require.NoError(t, err)

	states := make(chan connectivity.State, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.q.Run(ctx, states)
		close(done)
	}()

	states <- connectivity.State{Connected: true, InternetReachable: connectivity.Unreachable}
	require.Never(t, func() bool { return len(h.del.Calls()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	states <- connectivity.State{Connected: true, InternetReachable: connectivity.Reachable}
	require.Eventually(t, func() bool { return len(h.q.List()) == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{a.ID}, h.del.Calls())

	cancel()
	<-done
}

func TestClose_StopsTimerAndRefusesPasses(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a, _ := h.q.Enqueue(ctx, capture("/a.jpg"))
	h.del.script[a.ID] = []error{errNetwork}
	h.onlineQuiet()
	require.True(t, h.q.Drain(ctx))
	require.Len(t, h.timers.Active(), 1)

	h.q.Close()
	assert.Empty(t, h.timers.Active())
	assert.False(t, h.q.Drain(ctx))
}

func ids(items []models.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
