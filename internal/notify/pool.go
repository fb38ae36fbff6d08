// Package notify runs listener notifications off the caller's goroutine.
package notify

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
)

// backlogWarn is the lane length at which, and at every multiple of which,
// a growing backlog is logged.
const backlogWarn = 1024

// Pool runs tasks on per-key lanes. Tasks sharing a key run one at a time in
// submission order; lanes never wait on each other, so a blocked task only
// holds back its own key. Lanes are unbounded and Execute never blocks or
// drops an accepted task. A lane's goroutine exits once the lane is empty.
type Pool struct {
	logger *slog.Logger

	mu      sync.Mutex
	lanes   map[any]*lane
	queued  int
	stopped bool
	wg      sync.WaitGroup

	rejected  atomic.Uint64
	discarded atomic.Uint64
	panics    atomic.Uint64
	completed atomic.Uint64
}

type lane struct {
	tasks []func()
}

func NewPool(logger *slog.Logger) *Pool {
	return &Pool{
		logger: logger.With("component", "notify"),
		lanes:  make(map[any]*lane),
	}
}

// laneKey maps keys that cannot index a map onto the shared nil lane.
func laneKey(key any) any {
	if key != nil && !reflect.TypeOf(key).Comparable() {
		return nil
	}
	return key
}

// Execute queues task on the lane for key. Tasks submitted after Stop are
// rejected.
func (p *Pool) Execute(key any, task func()) {
	key = laneKey(key)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		p.rejected.Add(1)
		return
	}
	l, running := p.lanes[key]
	if !running {
		l = &lane{}
		p.lanes[key] = l
	}
	l.tasks = append(l.tasks, task)
	p.queued++
	if n := len(l.tasks); n%backlogWarn == 0 {
		p.logger.Warn("notification backlog growing", "lane", fmt.Sprintf("%T", key), "queued", n)
	}
	if !running {
		p.wg.Add(1)
		go p.drain(key, l)
	}
}

func (p *Pool) drain(key any, l *lane) {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		if p.stopped || len(l.tasks) == 0 {
			if n := len(l.tasks); n > 0 {
				p.queued -= n
				p.discarded.Add(uint64(n))
			}
			delete(p.lanes, key)
			p.mu.Unlock()
			return
		}
		task := l.tasks[0]
		l.tasks[0] = nil
		l.tasks = l.tasks[1:]
		p.queued--
		p.mu.Unlock()

		p.run(task)
	}
}

func (p *Pool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			p.logger.Error("notification task panic", "panic", r)
		}
	}()
	task()
	p.completed.Add(1)
}

// Stop rejects further tasks, discards queued ones and waits for the tasks
// already running. Safe to call more than once.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	queued := p.queued
	p.mu.Unlock()

	p.wg.Wait()
	if queued > 0 {
		p.logger.Warn("notification pool stopped with queued tasks", "discarded", queued)
	}
}

// Stats reports counters since the pool was created.
type Stats struct {
	Completed uint64 `json:"completed"`
	Panics    uint64 `json:"panics"`
	Rejected  uint64 `json:"rejected"`
	Discarded uint64 `json:"discarded"`
	Queued    int    `json:"queued"`
	Lanes     int    `json:"lanes"`
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	queued, lanes := p.queued, len(p.lanes)
	p.mu.Unlock()
	return Stats{
		Completed: p.completed.Load(),
		Panics:    p.panics.Load(),
		Rejected:  p.rejected.Load(),
		Discarded: p.discarded.Load(),
		Queued:    queued,
		Lanes:     lanes,
	}
}
