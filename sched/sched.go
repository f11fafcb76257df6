// Package sched runs periodic callbacks behind a cancellable handle.
//
// The sequencer clock and the level meter each own one registration; neither
// knows about the other.
package sched

import (
	"sort"
	"sync"
	"time"
)

// Scheduler calls fn every period until the returned cancel func is invoked.
// Cancel is idempotent and does not wait for a callback that is already running.
type Scheduler interface {
	Every(period time.Duration, fn func()) (cancel func())
}

// Ticker schedules on wall-clock time, one goroutine per registration.
type Ticker struct{}

func (Ticker) Every(period time.Duration, fn func()) func() {
	stop := make(chan struct{})
	t := time.NewTicker(period)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				select {
				case <-stop:
					return
				default:
				}
				fn()
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(stop) }) }
}

// Manual is a Scheduler driven by Advance. Callbacks run on the caller's goroutine.
type Manual struct {
	mu    sync.Mutex
	now   time.Duration
	next  int
	tasks map[int]*manualTask
}

type manualTask struct {
	id     int
	period time.Duration
	due    time.Duration
	fn     func()
}

// NewManual returns a scheduler at virtual time zero.
func NewManual() *Manual {
	return &Manual{tasks: make(map[int]*manualTask)}
}

func (m *Manual) Every(period time.Duration, fn func()) func() {
	if period <= 0 {
		panic("sched: non-positive period")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.next
	m.next++
	m.tasks[id] = &manualTask{id: id, period: period, due: m.now + period, fn: fn}
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.tasks, id)
		})
	}
}

// Advance moves virtual time forward by d and fires every callback that
// falls due, in time order.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()
	for {
		m.mu.Lock()
		t := m.earliestLocked()
		if t == nil || t.due > target {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = t.due
		t.due += t.period
		fn := t.fn
		m.mu.Unlock()
		fn()
	}
}

func (m *Manual) earliestLocked() *manualTask {
	if len(m.tasks) == 0 {
		return nil
	}
	tasks := make([]*manualTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].due != tasks[j].due {
			return tasks[i].due < tasks[j].due
		}
		return tasks[i].id < tasks[j].id
	})
	return tasks[0]
}

// Now returns the virtual time.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending returns the number of live registrations.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}
