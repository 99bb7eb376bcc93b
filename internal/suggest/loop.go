package suggest

import "sync"

// Loop executes deferred work in submission order on a single goroutine.
// A task posted after an earlier one never observes the earlier task half
// done; that ordering is what the engine's correctness leans on.
type Loop struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
}

// NewLoop starts the loop goroutine.
func NewLoop() *Loop {
	l := &Loop{
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

// Post queues fn for execution. Never blocks. Returns false if the loop
// is closed, in which case fn is dropped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Sync blocks until every task posted before it has run.
func (l *Loop) Sync() {
	ran := make(chan struct{})
	if !l.Post(func() { close(ran) }) {
		return
	}
	<-ran
}

// Close stops the loop after the tasks already queued have run.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	close(l.quit)
	<-l.done
}

func (l *Loop) run() {
	defer close(l.done)

	for {
		for {
			l.mu.Lock()
			if len(l.tasks) == 0 {
				l.mu.Unlock()
				break
			}
			fn := l.tasks[0]
			l.tasks = l.tasks[1:]
			l.mu.Unlock()

			fn()
		}

		select {
		case <-l.wake:
		case <-l.quit:
			// Drain what was queued before Close.
			l.mu.Lock()
			rest := l.tasks
			l.tasks = nil
			l.mu.Unlock()
			for _, fn := range rest {
				fn()
			}
			return
		}
	}
}
