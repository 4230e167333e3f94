package pionctx

import (
	"errors"
	"testing"
)

type fakeServer struct {
	started, stopped bool
	startErr         error
}

func (f *fakeServer) Start(network, address string, reusePort bool) error {
	f.started = true
	return f.startErr
}

func (f *fakeServer) Stop() error {
	f.stopped = true
	return nil
}

func TestAddServerRejectsDuplicateName(t *testing.T) {
	c := &Context{servers: make(map[string]Server)}
	a, b := &fakeServer{}, &fakeServer{}

	if err := c.AddServer("web", a, "tcp4", ":0", false); err != nil {
		t.Fatalf("first AddServer: %v", err)
	}
	if err := c.AddServer("web", b, "tcp4", ":0", false); err == nil {
		t.Fatal("expected error registering a duplicate server name")
	}
	if !a.started {
		t.Error("expected first server to be started")
	}
	if b.started {
		t.Error("did not expect duplicate registration to start the second server")
	}
}

func TestAddServerRollsBackOnStartFailure(t *testing.T) {
	c := &Context{servers: make(map[string]Server)}
	failing := &fakeServer{startErr: errors.New("bind failed")}

	if err := c.AddServer("web", failing, "tcp4", ":0", false); err == nil {
		t.Fatal("expected Start's error to propagate")
	}
	c.mu.Lock()
	_, stillRegistered := c.servers["web"]
	c.mu.Unlock()
	if stillRegistered {
		t.Error("expected a failed Start to remove its registration")
	}
}
