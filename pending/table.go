package pending

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Key is the constraint satisfied by correlation keys. Valid reports whether
// the key may be registered at all.
type Key interface {
	comparable
	Valid() bool
}

// Callback receives the response matched to a registered key, or the error
// that terminated the command. It is invoked at most once per registration.
type Callback[R any] func(response R, err error)

// entry is the table-owned state for one outstanding command.
type entry[R any] struct {
	callback Callback[R]
	deadline time.Time // zero means no deadline
	accept   func(R) bool
}

// options holds Table configuration shared by every instantiation.
type options struct {
	timeout      time.Duration
	timeProvider TimeProvider
	metrics      *Metrics
}

// Option configures a Table.
type Option func(*options)

// WithTimeout sets the default deadline applied by TryRegister. Zero, the
// default, means entries never expire on their own.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithTimeProvider injects the clock used for deadlines and the sweep loop.
func WithTimeProvider(tp TimeProvider) Option {
	return func(o *options) {
		o.timeProvider = tp
	}
}

// WithMetrics attaches Prometheus metrics. A nil *Metrics disables them.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// Table correlates outstanding commands with their completion callbacks.
// It is safe for concurrent use by any number of registering and resolving
// goroutines.
type Table[K Key, R any] struct {
	name         string
	timeout      time.Duration
	timeProvider TimeProvider
	metrics      *Metrics

	mu      sync.Mutex
	entries map[K]*entry[R]
	closed  bool
}

// NewTable creates an empty table. The name labels log lines and metrics.
func NewTable[K Key, R any](name string, opts ...Option) *Table[K, R] {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	return &Table[K, R]{
		name:         name,
		timeout:      o.timeout,
		timeProvider: clockOrDefault(o.timeProvider),
		metrics:      o.metrics,
		entries:      make(map[K]*entry[R]),
	}
}

// Name returns the table name.
func (t *Table[K, R]) Name() string {
	return t.name
}

// TryRegister stores cb under key using the table's default timeout.
// Ownership of cb passes to the table on success.
func (t *Table[K, R]) TryRegister(key K, cb Callback[R]) error {
	return t.TryRegisterWithTimeout(key, cb, t.timeout)
}

// TryRegisterWithTimeout stores cb under key with its own deadline. A
// non-positive timeout registers the entry without a deadline.
//
// On ErrDuplicateKey the existing registration is left untouched and keeps
// receiving responses for key.
func (t *Table[K, R]) TryRegisterWithTimeout(key K, cb Callback[R], timeout time.Duration) error {
	return t.TryRegisterMatching(key, cb, timeout, nil)
}

// TryRegisterMatching is TryRegisterWithTimeout with a response filter.
// Resolve only completes the entry when accept reports true for the
// response; anything else is counted as unmatched and the entry stays
// pending. accept runs under the table lock and must not call back into
// the table. A nil accept takes every response.
func (t *Table[K, R]) TryRegisterMatching(key K, cb Callback[R], timeout time.Duration, accept func(R) bool) error {
	if !key.Valid() {
		return fmt.Errorf("%w: %v", ErrInvalidKey, key)
	}
	if cb == nil {
		return ErrNilCallback
	}

	e := &entry[R]{callback: cb, accept: accept}
	if timeout > 0 {
		e.deadline = t.timeProvider.Now().Add(timeout)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTableClosed
	}
	if _, exists := t.entries[key]; exists {
		t.mu.Unlock()
		t.metrics.record(t.name, OutcomeDuplicate)
		return fmt.Errorf("%w: %v", ErrDuplicateKey, key)
	}
	t.entries[key] = e
	t.metrics.setOutstanding(t.name, len(t.entries))
	t.mu.Unlock()

	t.metrics.record(t.name, OutcomeRegistered)
	return nil
}

// take removes and returns the entry for key, or nil.
func (t *Table[K, R]) take(key K) *entry[R] {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, exists := t.entries[key]
	if !exists {
		return nil
	}
	delete(t.entries, key)
	t.metrics.setOutstanding(t.name, len(t.entries))
	return e
}

// takeAccepted is take restricted to entries whose filter accepts response.
func (t *Table[K, R]) takeAccepted(key K, response R) *entry[R] {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, exists := t.entries[key]
	if !exists || (e.accept != nil && !e.accept(response)) {
		return nil
	}
	delete(t.entries, key)
	t.metrics.setOutstanding(t.name, len(t.entries))
	return e
}

// Resolve delivers response and err to the callback registered under key
// and forgets the key. The callback runs on the calling goroutine after the
// lock is released. Resolve returns false, and does nothing else, when key
// is not pending or its filter rejects response.
func (t *Table[K, R]) Resolve(key K, response R, err error) bool {
	e := t.takeAccepted(key, response)
	if e == nil {
		t.metrics.record(t.name, OutcomeUnmatched)
		logrus.WithFields(logrus.Fields{
			"function": "Table.Resolve",
			"table":    t.name,
			"key":      fmt.Sprint(key),
		}).Debug("Dropping response with no matching pending command")
		return false
	}

	t.metrics.record(t.name, OutcomeResolved)
	t.invoke(key, e.callback, response, err)
	return true
}

// Cancel forgets key without invoking its callback. It is the rollback for
// a registration whose send failed.
func (t *Table[K, R]) Cancel(key K) bool {
	if t.take(key) == nil {
		return false
	}
	t.metrics.record(t.name, OutcomeCancelled)
	return true
}

// Extend moves the deadline of a pending key to now+d. A non-positive d
// clears the deadline. It returns false when key is not pending.
func (t *Table[K, R]) Extend(key K, d time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, exists := t.entries[key]
	if !exists {
		return false
	}
	if d > 0 {
		e.deadline = t.timeProvider.Now().Add(d)
	} else {
		e.deadline = time.Time{}
	}
	return true
}

// expired is a key/callback pair removed by Expire.
type expired[K Key, R any] struct {
	key      K
	callback Callback[R]
}

// Expire removes every entry whose deadline is at or before now and invokes
// each callback with ErrTimeout. It returns the number of expired entries.
func (t *Table[K, R]) Expire(now time.Time) int {
	var due []expired[K, R]

	t.mu.Lock()
	for key, e := range t.entries {
		if e.deadline.IsZero() || e.deadline.After(now) {
			continue
		}
		due = append(due, expired[K, R]{key: key, callback: e.callback})
		delete(t.entries, key)
	}
	if len(due) > 0 {
		t.metrics.setOutstanding(t.name, len(t.entries))
	}
	t.mu.Unlock()

	if len(due) == 0 {
		return 0
	}

	t.metrics.recordN(t.name, OutcomeExpired, len(due))
	logrus.WithFields(logrus.Fields{
		"function": "Table.Expire",
		"table":    t.name,
		"expired":  len(due),
	}).Debug("Expiring commands past their deadline")

	var zero R
	for _, d := range due {
		t.invoke(d.key, d.callback, zero, ErrTimeout)
	}
	return len(due)
}

// Run sweeps expired entries every interval until ctx is done. It returns
// immediately when interval is not positive.
func (t *Table[K, R]) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := t.timeProvider.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Expire(t.timeProvider.Now())
		}
	}
}

// Close tears the table down. Outstanding entries are dropped without their
// callbacks being invoked, and later registrations fail with ErrTableClosed.
// It returns the number of abandoned entries; calling it again returns 0.
func (t *Table[K, R]) Close() int {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0
	}
	t.closed = true
	abandoned := len(t.entries)
	t.entries = make(map[K]*entry[R])
	t.metrics.setOutstanding(t.name, 0)
	t.mu.Unlock()

	t.metrics.recordN(t.name, OutcomeAbandoned, abandoned)
	if abandoned > 0 {
		logrus.WithFields(logrus.Fields{
			"function":  "Table.Close",
			"table":     t.name,
			"abandoned": abandoned,
		}).Info("Abandoning outstanding commands at teardown")
	}
	return abandoned
}

// Len returns the number of outstanding entries.
func (t *Table[K, R]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Contains reports whether key is pending.
func (t *Table[K, R]) Contains(key K) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, exists := t.entries[key]
	return exists
}

// invoke calls cb, recovering and logging a panic so that a faulty
// callback cannot take down the receive goroutine.
func (t *Table[K, R]) invoke(key K, cb Callback[R], response R, err error) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Table.invoke",
				"table":    t.name,
				"key":      fmt.Sprint(key),
				"panic":    r,
			}).Warn("Recovered panic in completion callback")
		}
	}()

	cb(response, err)
}
