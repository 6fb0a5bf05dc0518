// Package notify holds short-lived, user-facing notices.
package notify

import (
	"sync"
	"time"
)

// DefaultTTL is how long a notification stays visible
const DefaultTTL = 5 * time.Second

// Type is the severity of a notification
type Type string

const (
	Info    Type = "info"
	Warning Type = "warning"
	Success Type = "success"
	Error   Type = "error"
)

// Notification is a single notice
type Notification struct {
	ID      int64
	Type    Type
	Message string
	Created time.Time
}

// Queue is an ordered list of notifications that expire on their own
type Queue struct {
	mu        sync.Mutex
	ttl       time.Duration
	nextID    int64
	items     []Notification
	timers    map[int64]*time.Timer
	observers []func([]Notification)
	closed    bool
}

// NewQueue constructs a Queue; a ttl of zero uses DefaultTTL
func NewQueue(ttl time.Duration) *Queue {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Queue{
		ttl:    ttl,
		items:  []Notification{},
		timers: map[int64]*time.Timer{},
	}
}

// Subscribe registers fn to receive the list after every change
func (q *Queue) Subscribe(fn func([]Notification)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.observers = append(q.observers, fn)
}

// Push appends a notification and schedules its removal
func (q *Queue) Push(typ Type, message string) int64 {
	q.mu.Lock()
	q.nextID++
	id := q.nextID
	q.items = append(q.items, Notification{ID: id, Type: typ, Message: message, Created: time.Now()})
	if !q.closed {
		q.timers[id] = time.AfterFunc(q.ttl, func() { q.expire(id) })
	}
	q.mu.Unlock()

	q.notify()
	return id
}

// Dismiss removes a notification early. Unknown ids are ignored.
func (q *Queue) Dismiss(id int64) {
	if q.remove(id) {
		q.notify()
	}
}

func (q *Queue) expire(id int64) {
	if q.remove(id) {
		q.notify()
	}
}

func (q *Queue) remove(id int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if t, ok := q.timers[id]; ok {
		t.Stop()
		delete(q.timers, id)
	}
	for i, n := range q.items {
		if n.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// List returns the current notifications, oldest first
func (q *Queue) List() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Notification{}, q.items...)
}

// Clear removes every notification
func (q *Queue) Clear() {
	q.mu.Lock()
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
	changed := len(q.items) > 0
	q.items = []Notification{}
	q.mu.Unlock()

	if changed {
		q.notify()
	}
}

// Close stops all pending expiry timers. Notifications pushed after
// Close never expire on their own.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
}

func (q *Queue) notify() {
	q.mu.Lock()
	list := append([]Notification{}, q.items...)
	observers := append([]func([]Notification){}, q.observers...)
	q.mu.Unlock()

	for _, o := range observers {
		o(list)
	}
}
