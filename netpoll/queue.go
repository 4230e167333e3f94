package netpoll

import "sync"

// Task is a single posted job run by the poller's owning goroutine
// the next time it wakes from EpollWait.
type Task func() error

// taskQueue is a mutex-protected FIFO of posted tasks, woken via the
// poller's eventfd. A lock-free queue is unnecessary at this scale;
// the teacher pack's shangxiaomi-shpnetpoll/internal/netpoll/queue
// uses one, but a short critical section here is simpler and the
// queue is drained in bulk on every wakeup.
type taskQueue struct {
	mu    sync.Mutex
	tasks []Task
}

func (q *taskQueue) enqueue(t Task) {
	q.mu.Lock()
	q.tasks = append(q.tasks, t)
	q.mu.Unlock()
}

func (q *taskQueue) drain() []Task {
	q.mu.Lock()
	tasks := q.tasks
	q.tasks = nil
	q.mu.Unlock()
	return tasks
}

func (q *taskQueue) empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks) == 0
}
