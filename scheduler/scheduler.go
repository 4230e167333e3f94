// Package scheduler implements pion's shared worker-thread pool and
// asynchronous I/O reactor (spec §4.1), grounded on
// s00inx-goserver/server/engine/pool.go's worker-pool shape but
// backed by github.com/panjf2000/ants/v2 for task dispatch and by
// netpoll.Poller for the shared epoll reactor, per
// shangxiaomi-shpnetpoll's dependency stack.
package scheduler

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/avgx/pion/netpoll"
)

// idlePark is how long a worker sleeps once after its poll loop has
// returned during shutdown, before the worker exits. Workers block in
// EpollWait while idle, so there is no sleep between polls.
const idlePark = 500 * time.Microsecond

// Scheduler owns the worker pool and the shared I/O reactor. Its
// lifetime is extended by "active users" (TcpServer instances,
// reactors with pending completions) past any shutdown() call until
// every active user releases it, per spec §3.
type Scheduler struct {
	mu          sync.Mutex
	running     bool
	threadCount int
	activeUsers int32
	noUsers     *sync.Cond
	poller      *netpoll.Poller
	pool        *ants.Pool
	wg          sync.WaitGroup
	log         *zap.SugaredLogger

	handlers sync.Map // fd (int) -> netpoll.Callback
}

// New constructs a Scheduler with n worker threads (n<=0 selects
// runtime.NumCPU() at startup). Descriptors are routed to
// handlers registered via Register; this lets several TcpServer
// instances share one Scheduler, per spec §2's "Scheduler is started
// on demand when the first TcpServer begins listening".
func New(n int, log *zap.SugaredLogger) (*Scheduler, error) {
	poller, err := netpoll.Open()
	if err != nil {
		return nil, err
	}
	pool, err := ants.NewPool(4096, ants.WithNonblocking(false))
	if err != nil {
		_ = poller.Close()
		return nil, err
	}
	s := &Scheduler{
		threadCount: n,
		poller:      poller,
		pool:        pool,
		log:         log,
	}
	s.noUsers = sync.NewCond(&s.mu)
	return s, nil
}

// Register associates fd with a callback invoked for every ready
// event on that descriptor until Unregister is called.
func (s *Scheduler) Register(fd int, cb netpoll.Callback) {
	s.handlers.Store(fd, cb)
}

// Unregister removes fd's callback. Safe to call even if fd was
// never registered.
func (s *Scheduler) Unregister(fd int) {
	s.handlers.Delete(fd)
}

// IOHandle exposes the shared poller so TcpServer/TcpConnection can
// register descriptors and post tasks onto it (spec §4.1 io_handle()).
func (s *Scheduler) IOHandle() *netpoll.Poller { return s.poller }

// SetNumThreads sets the worker thread count used by the next Startup.
// It has no effect on workers already running, and a Scheduler that
// has been shut down cannot be started again (its poller is closed).
func (s *Scheduler) SetNumThreads(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threadCount = n
}

// Startup is idempotent: calling it while already running is a no-op.
func (s *Scheduler) Startup() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	n := s.threadCount
	if n <= 0 {
		n = runtime.NumCPU()
	}
	s.mu.Unlock()

	for i := 0; i < n; i++ {
		s.wg.Add(1)
		go s.runWorker()
	}
}

func (s *Scheduler) runWorker() {
	defer s.wg.Done()
	err := s.poller.Polling(func(fd int, events uint32) error {
		if !s.Running() {
			return netpoll.ErrStop
		}
		v, ok := s.handlers.Load(fd)
		if !ok {
			return nil
		}
		cb := v.(netpoll.Callback)
		submitErr := s.pool.Submit(func() {
			_ = cb(fd, events)
		})
		if submitErr != nil && s.log != nil {
			s.log.Warnw("scheduler: dispatch dropped", "fd", fd, "err", submitErr)
		}
		return nil
	})
	if err != nil && err != netpoll.ErrStop && s.log != nil {
		s.log.Infow("scheduler: worker exiting", "err", err)
	}
	if !s.Running() {
		// Park once before exiting when the loop ended because of
		// shutdown.
		time.Sleep(idlePark)
	}
}

// Running reports whether the scheduler has not yet been asked to
// shut down.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Post enqueues a single-shot, non-returning task onto the I/O
// reactor (spec §4.1 post(task)). Task failures are the task's
// responsibility; the scheduler does not retry or report them.
func (s *Scheduler) Post(task func()) error {
	return s.poller.Post(func() error {
		task()
		return nil
	})
}

// AddActiveUser registers one more component that must be released
// before Shutdown can complete.
func (s *Scheduler) AddActiveUser() {
	atomic.AddInt32(&s.activeUsers, 1)
}

// RemoveActiveUser releases one active-user reference. When the count
// reaches zero it signals any goroutine blocked in Shutdown.
func (s *Scheduler) RemoveActiveUser() {
	if atomic.AddInt32(&s.activeUsers, -1) == 0 {
		s.mu.Lock()
		s.noUsers.Broadcast()
		s.mu.Unlock()
	}
}

// Shutdown clears running, stops the I/O reactor, waits until
// active_users reaches zero, then joins every worker thread. It
// returns only once all of that has happened (spec §3 invariant).
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	// Closing the epoll fd does not wake workers blocked in EpollWait,
	// so stop them through the task queue: each worker that runs the
	// stop task re-posts it for the next one before returning ErrStop.
	var stop netpoll.Task
	stop = func() error {
		_ = s.poller.Post(stop)
		return netpoll.ErrStop
	}
	_ = s.poller.Post(stop)

	s.mu.Lock()
	for atomic.LoadInt32(&s.activeUsers) != 0 {
		s.noUsers.Wait()
	}
	s.mu.Unlock()

	s.wg.Wait()
	_ = s.poller.Close()
	s.pool.Release()
}

// Join blocks until every worker thread has exited, without itself
// requesting shutdown (used by callers that triggered shutdown
// elsewhere and only need to wait).
func (s *Scheduler) Join() {
	s.wg.Wait()
}
