// Package queue is the offline upload queue: an ordered, persisted list of
// captured items drained one at a time through a Deliverer, with
// exponential backoff for failures and connectivity-driven triggering.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/parcelsync/internal/client/api"
	"github.com/dmitrijs2005/parcelsync/internal/client/connectivity"
	"github.com/dmitrijs2005/parcelsync/internal/client/models"
	"github.com/dmitrijs2005/parcelsync/internal/client/store"
	"github.com/dmitrijs2005/parcelsync/internal/logging"
)

var ErrInvalidCapture = errors.New("invalid capture: payload reference and target collection are required")

const defaultFailureReason = "Failed to sync parcel."

type stopper interface {
	Stop() bool
}

type Stats struct {
	Queued    int
	Uploading int
	Failed    int
}

type Queue struct {
	store     store.Store
	deliverer Deliverer
	observer  Observer
	log       logging.Logger

	now       func() time.Time
	afterFunc func(d time.Duration, f func()) stopper
	newID     func() string

	// ctx is used by passes started in the background.
	ctx context.Context
	wg  sync.WaitGroup

	mu       sync.Mutex
	items    []models.Item
	version  uint64
	online   bool
	draining bool
	pending  bool
	closed   bool
	timer    stopper
	timerAt  time.Time
	timerGen uint64

	persistMu sync.Mutex
	persisted uint64
	// held are delivery signals waiting for their removal to be written.
	held []heldDelivery
}

type heldDelivery struct {
	version uint64
	item    models.Item
	record  models.Record
}

type Option func(*Queue)

func WithObserver(o Observer) Option {
	return func(q *Queue) { q.observer = o }
}

func WithLogger(l logging.Logger) Option {
	return func(q *Queue) { q.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithAfterFunc replaces time.AfterFunc for the backoff timer.
func WithAfterFunc(fn func(d time.Duration, f func()) interface{ Stop() bool }) Option {
	return func(q *Queue) {
		q.afterFunc = func(d time.Duration, f func()) stopper { return fn(d, f) }
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(q *Queue) { q.newID = fn }
}

// New creates an empty, offline queue. Call Load to restore persisted
// items before going online.
func New(s store.Store, d Deliverer, opts ...Option) *Queue {
	q := &Queue{
		store:     s,
		deliverer: d,
		observer:  nopObserver{},
		log:       logging.Nop(),
		now:       time.Now,
		afterFunc: func(d time.Duration, f func()) stopper { return time.AfterFunc(d, f) },
		newID:     uuid.NewString,
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.log = q.log.With("module", "queue")
	return q
}

// Load restores the persisted snapshot. Items a previous run left
// uploading are re-queued. An unreadable snapshot loads as empty.
func (q *Queue) Load(ctx context.Context) error {
	raw, ok, err := q.store.Get(ctx, store.KeyQueueSnapshot)
	if err != nil {
		return fmt.Errorf("load queue: %w", err)
	}

	var items []models.Item
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			q.log.Warn(ctx, "discarding unreadable queue snapshot", "error", err)
			items = nil
		}
	}

	requeued := 0
	valid := items[:0]
	for _, it := range items {
		if it.ID == "" {
			continue
		}
		if it.Status == models.StatusUploading {
			it.Status = models.StatusQueued
			requeued++
		}
		valid = append(valid, it)
	}

	q.mu.Lock()
	q.items = valid
	q.version++
	q.mu.Unlock()

	q.log.Info(ctx, "queue loaded", "items", len(valid), "requeued", requeued)
	if requeued > 0 {
		return q.persist(ctx)
	}
	return nil
}

// Enqueue appends a new item for capture and persists the list. When
// online a drain starts in the background; Enqueue never waits for it.
func (q *Queue) Enqueue(ctx context.Context, c models.Capture) (models.Item, error) {
	if c.PayloadRef == "" || c.TargetCollectionID == "" {
		return models.Item{}, ErrInvalidCapture
	}

	now := q.now()
	collected := c.CollectedAt
	if collected.IsZero() {
		collected = now
	}
	item := models.Item{
		ID:                 q.newID(),
		PayloadRef:         c.PayloadRef,
		TargetCollectionID: c.TargetCollectionID,
		Metadata:           c.Metadata,
		CollectedAt:        collected,
		CreatedAt:          now,
		Status:             models.StatusQueued,
	}

	q.mu.Lock()
	q.items = append(q.items, item)
	q.version++
	q.mu.Unlock()

	if err := q.persist(ctx); err != nil {
		q.mu.Lock()
		q.removeLocked(item.ID)
		q.version++
		q.mu.Unlock()
		return models.Item{}, err
	}

	q.log.Info(ctx, "item enqueued", "id", item.ID, "collection", item.TargetCollectionID)
	q.Trigger()
	return item.Clone(), nil
}

// Retry resets an item to queued with a clean attempt history. Unknown ids
// are ignored. An item whose attempt is in flight is left alone until the
// attempt resolves.
func (q *Queue) Retry(ctx context.Context, id string) error {
	q.mu.Lock()
	idx := q.indexLocked(id)
	if idx < 0 {
		q.mu.Unlock()
		return nil
	}
	it := &q.items[idx]
	if it.Status == models.StatusUploading {
		q.mu.Unlock()
		q.log.Debug(ctx, "retry ignored, attempt in flight", "id", id)
		return nil
	}
	it.Status = models.StatusQueued
	it.Attempts = 0
	it.LastError = nil
	it.LastAttemptAt = nil
	q.version++
	q.mu.Unlock()

	if err := q.persist(ctx); err != nil {
		return err
	}

	q.Trigger()
	return nil
}

// List returns a copy of the items in insertion order.
func (q *Queue) List() []models.Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.Item, len(q.items))
	for i, it := range q.items {
		out[i] = it.Clone()
	}
	return out
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	var s Stats
	for _, it := range q.items {
		switch it.Status {
		case models.StatusQueued:
			s.Queued++
		case models.StatusUploading:
			s.Uploading++
		case models.StatusFailed:
			s.Failed++
		}
	}
	return s
}

func (q *Queue) Online() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.online
}

// SetOnline records connectivity. Going online starts a drain; going
// offline leaves in-flight work to fail on its own.
func (q *Queue) SetOnline(online bool) {
	q.mu.Lock()
	was := q.online
	q.online = online
	q.mu.Unlock()

	if was == online {
		return
	}
	q.log.Info(q.ctx, "connectivity", "online", online)
	if online {
		q.Trigger()
	}
}

// Run feeds connectivity states into the queue until ctx is done or the
// channel is closed.
func (q *Queue) Run(ctx context.Context, states <-chan connectivity.State) {
	for {
		select {
		case s, ok := <-states:
			if !ok {
				return
			}
			q.SetOnline(s.Online())
		case <-ctx.Done():
			return
		}
	}
}

// Trigger requests a drain pass in the background. If a pass is running
// the request is folded into one follow-up pass.
func (q *Queue) Trigger() {
	q.mu.Lock()
	ok := q.beginLocked()
	if ok {
		q.wg.Add(1)
	}
	q.mu.Unlock()

	if !ok {
		return
	}
	go func() {
		defer q.wg.Done()
		q.drainLoop(q.ctx)
	}()
}

// Drain runs a pass on the calling goroutine. It returns false without
// doing anything when offline or when another pass is running.
func (q *Queue) Drain(ctx context.Context) bool {
	q.mu.Lock()
	ok := q.beginLocked()
	q.mu.Unlock()

	if !ok {
		return false
	}
	q.drainLoop(ctx)
	return true
}

// Close stops the backoff timer, refuses new passes and waits for the
// running one to finish its current item.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.stopTimerLocked()
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *Queue) beginLocked() bool {
	if q.closed || !q.online {
		return false
	}
	if q.draining {
		q.pending = true
		return false
	}
	q.draining = true
	q.pending = false
	q.stopTimerLocked()
	return true
}

func (q *Queue) drainLoop(ctx context.Context) {
	for {
		expired := q.pass(ctx)
		if q.hasHeld() {
			if err := q.persist(ctx); err != nil {
				q.log.Error(ctx, "queue snapshot still not persisted, delivery signals held", "error", err)
			}
		}

		q.mu.Lock()
		if !expired {
			q.armTimerLocked()
		}
		if q.pending && q.online && !q.closed {
			q.pending = false
			q.mu.Unlock()
			continue
		}
		q.pending = false
		q.draining = false
		q.mu.Unlock()
		return
	}
}

// pass walks the items present at its start in order. It reports whether
// it stopped early because the session expired.
func (q *Queue) pass(ctx context.Context) bool {
	q.mu.Lock()
	ids := make([]string, len(q.items))
	for i, it := range q.items {
		ids[i] = it.ID
	}
	q.mu.Unlock()

	for _, id := range ids {
		attempt, ok := q.startAttempt(id)
		if !ok {
			continue
		}
		// Delivery proceeds even if this write fails.
		if err := q.persist(ctx); err != nil {
			q.log.Warn(ctx, "persisting attempt start failed", "id", id, "error", err)
		}

		record, err := q.deliverer.Deliver(ctx, attempt)
		if err == nil {
			q.finishDelivered(ctx, attempt, record)
			continue
		}

		q.finishFailed(ctx, attempt, err)
		if api.IsKind(err, api.KindSessionExpired) {
			q.log.Warn(ctx, "session expired, pausing queue until next login", "id", id)
			return true
		}
	}
	return false
}

func (q *Queue) startAttempt(id string) (models.Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return models.Item{}, false
	}
	idx := q.indexLocked(id)
	if idx < 0 {
		return models.Item{}, false
	}
	it := &q.items[idx]
	now := q.now()
	if !ShouldAttempt(*it, now) {
		return models.Item{}, false
	}

	it.Status = models.StatusUploading
	it.Attempts++
	it.LastAttemptAt = &now
	it.LastError = nil
	q.version++
	return it.Clone(), true
}

// finishDelivered removes the item. The Delivered signal is released by
// the first successful write that covers the removal.
func (q *Queue) finishDelivered(ctx context.Context, item models.Item, record models.Record) {
	q.mu.Lock()
	q.removeLocked(item.ID)
	q.version++
	version := q.version
	q.mu.Unlock()

	q.persistMu.Lock()
	q.held = append(q.held, heldDelivery{version: version, item: item, record: record})
	q.persistMu.Unlock()

	q.log.Info(ctx, "item delivered", "id", item.ID, "record", record.ID, "attempts", item.Attempts)
	if err := q.persist(ctx); err != nil {
		q.log.Error(ctx, "persisting delivered item removal failed", "id", item.ID, "error", err)
	}
}

func (q *Queue) finishFailed(ctx context.Context, item models.Item, cause error) {
	reason := failureReason(cause)

	q.mu.Lock()
	if idx := q.indexLocked(item.ID); idx >= 0 {
		it := &q.items[idx]
		it.Status = models.StatusFailed
		it.LastError = &reason
		item = it.Clone()
		q.version++
	}
	q.mu.Unlock()

	if err := q.persist(ctx); err != nil {
		q.log.Warn(ctx, "persisting failed item failed", "id", item.ID, "error", err)
	}
	q.log.Warn(ctx, "delivery failed", "id", item.ID, "attempts", item.Attempts,
		"kind", string(api.KindOf(cause)), "error", cause)
	q.observer.Failed(item, cause)
}

// armTimerLocked keeps a single backoff timer aimed at the earliest moment
// a failed item becomes eligible. No timer is kept while offline.
func (q *Queue) armTimerLocked() {
	if q.closed || !q.online {
		return
	}

	var earliest time.Time
	for _, it := range q.items {
		at, ok := nextAttemptAt(it)
		if !ok {
			continue
		}
		if earliest.IsZero() || at.Before(earliest) {
			earliest = at
		}
	}
	if earliest.IsZero() {
		return
	}
	if q.timer != nil && !q.timerAt.After(earliest) {
		return
	}

	q.stopTimerLocked()
	delay := earliest.Sub(q.now())
	if delay < 0 {
		delay = 0
	}
	q.timerGen++
	gen := q.timerGen
	q.timerAt = earliest
	q.timer = q.afterFunc(delay, func() { q.onTimer(gen) })
}

func (q *Queue) onTimer(gen uint64) {
	q.mu.Lock()
	if gen != q.timerGen || q.timer == nil {
		q.mu.Unlock()
		return
	}
	q.timer = nil
	q.timerAt = time.Time{}
	q.mu.Unlock()

	q.Trigger()
}

func (q *Queue) stopTimerLocked() {
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
		q.timerAt = time.Time{}
	}
	q.timerGen++
}

func (q *Queue) indexLocked(id string) int {
	for i := range q.items {
		if q.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (q *Queue) removeLocked(id string) {
	if idx := q.indexLocked(id); idx >= 0 {
		q.items = append(q.items[:idx], q.items[idx+1:]...)
	}
}

// persist writes the current list and then emits every held delivery the
// write covers. Writers are serialized and a snapshot older than the last
// one written is dropped, so the store never goes backwards.
func (q *Queue) persist(ctx context.Context) error {
	released, err := q.write(ctx)
	for _, d := range released {
		q.observer.Delivered(d.item, d.record)
	}
	return err
}

func (q *Queue) write(ctx context.Context) ([]heldDelivery, error) {
	q.mu.Lock()
	snapshot := make([]models.Item, len(q.items))
	copy(snapshot, q.items)
	version := q.version
	q.mu.Unlock()

	q.persistMu.Lock()
	defer q.persistMu.Unlock()

	if version > q.persisted {
		data, err := json.Marshal(snapshot)
		if err != nil {
			return nil, fmt.Errorf("encode queue: %w", err)
		}
		if err := q.store.Set(ctx, store.KeyQueueSnapshot, string(data)); err != nil {
			return nil, fmt.Errorf("persist queue: %w", err)
		}
		q.persisted = version
	}
	return q.releaseLocked(), nil
}

func (q *Queue) releaseLocked() []heldDelivery {
	var released, kept []heldDelivery
	for _, d := range q.held {
		if d.version <= q.persisted {
			released = append(released, d)
		} else {
			kept = append(kept, d)
		}
	}
	q.held = kept
	return released
}

func (q *Queue) hasHeld() bool {
	q.persistMu.Lock()
	defer q.persistMu.Unlock()
	return len(q.held) > 0
}

func failureReason(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return defaultFailureReason
}
