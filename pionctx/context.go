// Package pionctx threads the shared scheduler and shutdown signal
// handling that pion's daemon wiring needs through an explicit value
// instead of a package-level singleton, grounded on
// _examples/original_source/src/PionNetEngine.cpp: the original
// engine keeps a map of TcpServers keyed by port and a single
// asio_service shared by all of them, with startup/shutdown/join
// operating on the whole set at once. Context reproduces that
// multi-server lifecycle without PionNetEngine's
// create-once-per-process singleton, so an embedding application can
// construct more than one independently.
package pionctx

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/avgx/pion/scheduler"
)

// Server is the subset of *tcp.Server's lifecycle Context drives.
type Server interface {
	Start(network, address string, reusePort bool) error
	Stop() error
}

// Context owns one Scheduler and every TcpServer registered against
// it, mirroring PionNetEngine::startup/shutdown/join's "start every
// server, stop every server" semantics.
type Context struct {
	log   *zap.SugaredLogger
	sched *scheduler.Scheduler

	mu      sync.Mutex
	servers map[string]Server
}

// New constructs a Context around sched. The Scheduler is started on
// demand by the first Server registered, matching spec §2's "the
// Scheduler is started on demand when the first TcpServer begins
// listening".
func New(sched *scheduler.Scheduler, log *zap.SugaredLogger) *Context {
	return &Context{sched: sched, log: log, servers: make(map[string]Server)}
}

// Scheduler exposes the shared scheduler so callers can construct
// tcp.Server, reactor engines, or dbreactor writer loops against it
// before registering them with AddServer.
func (c *Context) Scheduler() *scheduler.Scheduler { return c.sched }

// AddServer registers srv under name and starts it immediately
// (PionNetEngine::addServer inserts into a map under lock;
// Context starts eagerly since, unlike the original, nothing else
// depends on deferring accept until a later Startup call).
func (c *Context) AddServer(name string, srv Server, network, address string, reusePort bool) error {
	c.mu.Lock()
	if _, exists := c.servers[name]; exists {
		c.mu.Unlock()
		return fmt.Errorf("server %q already registered", name)
	}
	c.servers[name] = srv
	c.mu.Unlock()

	if err := srv.Start(network, address, reusePort); err != nil {
		c.mu.Lock()
		delete(c.servers, name)
		c.mu.Unlock()
		return err
	}
	return nil
}

// Shutdown stops every registered server, then shuts the Scheduler
// down (PionNetEngine::shutdown: "stop listening... Stop the service
// to make sure no more events are pending... wait until all threads
// in the pool have stopped").
func (c *Context) Shutdown() {
	c.mu.Lock()
	servers := make([]Server, 0, len(c.servers))
	for _, s := range c.servers {
		servers = append(servers, s)
	}
	c.servers = make(map[string]Server)
	c.mu.Unlock()

	for _, s := range servers {
		if err := s.Stop(); err != nil && c.log != nil {
			c.log.Warnw("error stopping server", "err", err)
		}
	}
	c.sched.Shutdown()
}

// Join blocks until the Scheduler's worker threads have exited,
// mirroring PionNetEngine::join's wait on "engine_has_stopped".
func (c *Context) Join() { c.sched.Join() }

// WaitForShutdownSignal ignores SIGPIPE/SIGCHLD/SIGHUP (spec §6) and
// blocks until SIGINT or SIGTERM arrives, returning the signal that
// triggered the return. Call Shutdown afterward to drain the
// registered servers and the scheduler.
func (c *Context) WaitForShutdownSignal() os.Signal {
	signal.Ignore(syscall.SIGPIPE, syscall.SIGCHLD, syscall.SIGHUP)

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(ch)

	return <-ch
}
