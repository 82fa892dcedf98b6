package spot

import (
	"context"
	"sync"
)

// Queue is an unbounded FIFO of commands awaiting live delivery. Any number
// of goroutines may enqueue; a single consumer peeks the head, transmits it,
// and pops it afterwards so a failed transmission leaves it in place.
type Queue struct {
	mu      sync.Mutex
	items   []Command
	changed chan struct{}
}

// NewQueue returns an empty queue. The zero value is also usable.
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends a command.
func (q *Queue) Enqueue(cmd Command) {
	q.mu.Lock()
	q.items = append(q.items, cmd)
	q.notifyLocked()
	q.mu.Unlock()
}

// Peek blocks until the queue is non-empty and returns the oldest command
// without removing it.
func (q *Queue) Peek(ctx context.Context) (Command, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			cmd := q.items[0]
			q.mu.Unlock()
			return cmd, nil
		}
		changed := q.signalLocked()
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Command{}, ctx.Err()
		case <-changed:
		}
	}
}

// Pop removes the oldest command. It reports false when the queue is empty.
func (q *Queue) Pop() (Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Command{}, false
	}
	cmd := q.items[0]
	q.items[0] = Command{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	q.notifyLocked()
	return cmd, true
}

// TryDequeue is Pop under the name used by non-transmitting consumers.
func (q *Queue) TryDequeue() (Command, bool) {
	return q.Pop()
}

// WaitEmpty blocks until the queue holds no commands. It returns at once if
// the queue is already empty.
func (q *Queue) WaitEmpty(ctx context.Context) error {
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.mu.Unlock()
			return nil
		}
		changed := q.signalLocked()
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// Len returns the number of queued commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot returns the queued commands oldest first.
func (q *Queue) Snapshot() []Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Command, len(q.items))
	copy(out, q.items)
	return out
}

func (q *Queue) signalLocked() chan struct{} {
	if q.changed == nil {
		q.changed = make(chan struct{})
	}
	return q.changed
}

// notifyLocked wakes every waiter; callers hold q.mu.
func (q *Queue) notifyLocked() {
	if q.changed != nil {
		close(q.changed)
	}
	q.changed = make(chan struct{})
}
