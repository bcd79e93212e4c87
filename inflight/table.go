// Package inflight implements the bounded request-id -> pending-request
// correlator at the heart of the shadow protocol engine. It tracks requests
// from publish until exactly one of a matching reply or a timeout frees
// them.
package inflight

import (
	"strings"
	"sync"
	"time"

	"github.com/baidu-iot/shadow-go/topic"
)

// Status is the outcome delivered to a Callback.
type Status int

const (
	Accepted Status = iota
	Rejected
	Timeout
)

// Ack is the result handed to a request's callback. Document is set only
// for Accepted, Code/Message only for Rejected.
type Ack struct {
	Status   Status
	Document []byte
	Code     string
	Message  string
}

// Callback is invoked exactly once per published request, either on reply
// arrival or on reap. It is invoked with the table's mutex held — see the
// Table doc comment for the restriction this places on what a callback may do.
type Callback func(verb topic.Verb, ack Ack, callbackContext any)

type entry struct {
	requestID       string
	verb            topic.Verb
	callback        Callback
	callbackContext any
	createdAt       time.Time
	timeout         time.Duration
	occupied        bool
}

// ErrFull is returned by Insert when the table is at capacity.
type ErrFull struct{}

func (ErrFull) Error() string { return "TOO_MANY_IN_FLIGHT_MESSAGE" }

// Table is a fixed-capacity, mutex-guarded correlator. The zero value is not
// usable; construct with New.
//
// Callbacks run while Table's mutex is held. This is deliberate: it is what
// makes "exactly one of accepted/rejected/timeout" a property of the lock
// rather than of careful bookkeeping across two code paths (Complete and
// Reap) that could otherwise race on the same entry. Callbacks must
// therefore be cheap, must not block, and must never call back into this
// Table or any API that itself locks this Table — doing so deadlocks.
type Table struct {
	mu       sync.Mutex
	entries  map[string]*entry
	capacity int
}

// New creates a Table that admits at most capacity concurrent requests.
func New(capacity int) *Table {
	return &Table{
		entries:  make(map[string]*entry, capacity),
		capacity: capacity,
	}
}

// Insert registers a pending request. It returns ErrFull if the table is
// already at capacity; the caller must not publish in that case.
func (t *Table) Insert(requestID string, verb topic.Verb, cb Callback, callbackContext any, timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.entries) >= t.capacity {
		return ErrFull{}
	}

	key := normalize(requestID)
	if _, dup := t.entries[key]; dup {
		// Request-ids are UUID v4; a collision is a programming error, not
		// a runtime condition we try to recover gracefully from.
		panic("inflight: duplicate request id " + requestID)
	}

	t.entries[key] = &entry{
		requestID:       requestID,
		verb:            verb,
		callback:        cb,
		callbackContext: callbackContext,
		createdAt:       time.Now(),
		timeout:         timeout,
		occupied:        true,
	}
	return nil
}

// Complete matches requestID against an occupied slot, invokes its
// callback with ack, and frees the slot. It reports whether a match was
// found; a missing match is a caller-side warning, not an error.
func (t *Table) Complete(requestID string, ack Ack) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := normalize(requestID)
	e, ok := t.entries[key]
	if !ok {
		return false
	}
	delete(t.entries, key)

	if e.callback != nil {
		e.callback(e.verb, ack, e.callbackContext)
	}
	return true
}

// Reap invokes the Timeout callback for every entry whose deadline has
// passed as of now, and frees those slots. It returns the count reaped.
func (t *Table) Reap(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	count := 0
	for key, e := range t.entries {
		if now.Sub(e.createdAt) <= e.timeout {
			continue
		}
		delete(t.entries, key)
		count++
		if e.callback != nil {
			e.callback(e.verb, Ack{Status: Timeout}, e.callbackContext)
		}
	}
	return count
}

// Len reports the number of occupied slots. Used for introspection and the
// TOO_MANY_IN_FLIGHT_MESSAGE testable property, not on any hot path.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// normalize bounds and case-folds a request id the way the source's
// strncasecmp(..., MAX_REQUEST_ID_LENGTH) comparison effectively did.
func normalize(requestID string) string {
	const maxLen = 64
	if len(requestID) > maxLen {
		requestID = requestID[:maxLen]
	}
	return strings.ToLower(requestID)
}
