// Package clock provides an injectable time source with cancellable
// repeating tasks.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Clock reads the current time and schedules repeating work.
type Clock interface {
	Now() time.Time
	// Every runs fn every d until the returned Ticker is stopped.
	Every(d time.Duration, fn func()) Ticker
}

// Ticker cancels a repeating task. Stop is idempotent and never blocks on a
// running fn.
type Ticker interface {
	Stop()
}

// Real returns the wall clock.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Every(d time.Duration, fn func()) Ticker {
	t := &realTicker{
		ticker: time.NewTicker(d),
		done:   make(chan struct{}),
	}
	go t.run(fn)
	return t
}

type realTicker struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func (t *realTicker) run(fn func()) {
	for {
		select {
		case <-t.done:
			return
		case <-t.ticker.C:
			select {
			case <-t.done:
				return
			default:
			}
			fn()
		}
	}
}

func (t *realTicker) Stop() {
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.done)
	})
}

// Manual is a clock that only moves when Advance is called.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	tasks  map[int]*manualTask
	nextID int
}

type manualTask struct {
	id     int
	every  time.Duration
	next   time.Time
	fn     func()
	parent *Manual
}

// NewManual returns a manual clock starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start, tasks: make(map[int]*manualTask)}
}

// Now returns the manual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Every registers a repeating task on the manual clock.
func (m *Manual) Every(d time.Duration, fn func()) Ticker {
	if d <= 0 {
		d = time.Nanosecond
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	task := &manualTask{id: m.nextID, every: d, next: m.now.Add(d), fn: fn, parent: m}
	m.tasks[task.id] = task
	return task
}

// Pending reports how many repeating tasks are registered.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Advance moves time forward by d, firing every due tick in time order. Tasks
// run without the clock lock held, so they may stop themselves or others.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()
	for {
		m.mu.Lock()
		task := m.nextDueLocked(target)
		if task == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = task.next
		task.next = task.next.Add(task.every)
		fn := task.fn
		m.mu.Unlock()
		fn()
	}
}

func (m *Manual) nextDueLocked(target time.Time) *manualTask {
	due := make([]*manualTask, 0, len(m.tasks))
	for _, task := range m.tasks {
		if !task.next.After(target) {
			due = append(due, task)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].next.Equal(due[j].next) {
			return due[i].id < due[j].id
		}
		return due[i].next.Before(due[j].next)
	})
	return due[0]
}

func (t *manualTask) Stop() {
	t.parent.mu.Lock()
	defer t.parent.mu.Unlock()
	delete(t.parent.tasks, t.id)
}
