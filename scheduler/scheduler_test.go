package scheduler

import (
	"testing"
	"time"
)

func TestStartupShutdownIdempotent(t *testing.T) {
	s, err := New(2, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Startup()
	s.Startup() // second call is a no-op
	if !s.Running() {
		t.Fatal("expected scheduler to be running")
	}

	s.Shutdown()
	if s.Running() {
		t.Error("expected scheduler to report stopped after Shutdown")
	}
	s.Shutdown() // second call is a no-op, must not hang or panic
}

func TestPostRunsTaskOnWorker(t *testing.T) {
	s, err := New(1, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Startup()
	defer s.Shutdown()

	done := make(chan struct{})
	if err := s.Post(func() { close(done) }); err != nil {
		t.Fatalf("Post: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("posted task never ran")
	}
}

func TestActiveUserBlocksShutdownUntilReleased(t *testing.T) {
	s, err := New(1, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Startup()
	s.AddActiveUser()

	shutdownDone := make(chan struct{})
	go func() {
		s.Shutdown()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		t.Fatal("Shutdown returned before the active user was released")
	case <-time.After(100 * time.Millisecond):
	}

	s.RemoveActiveUser()

	select {
	case <-shutdownDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown never returned after the active user was released")
	}
}

func TestJoinReturnsAfterShutdown(t *testing.T) {
	s, err := New(2, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Startup()
	s.Shutdown()

	done := make(chan struct{})
	go func() {
		s.Join()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Join never returned once every worker had exited")
	}
}
