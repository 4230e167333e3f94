package httpserver

import (
	"github.com/avgx/pion/httpmsg"
	"github.com/avgx/pion/tcp"
)

// WebService is the callback a resource handler implements (spec
// §4.5): it must write a response onto conn itself and report whether
// it did so.
type WebService interface {
	Handle(req *httpmsg.Request, conn *tcp.Connection) bool
}

// OptionSetter is implemented by services that accept configuration
// directives after being registered (spec §4.5's set_service_option).
type OptionSetter interface {
	SetOption(name, value string) error
}

// ServiceFunc adapts a plain function to WebService, mirroring how
// s00inx-goserver/server/router's Handler is a bare func type rather
// than requiring an interface for simple routes.
type ServiceFunc func(req *httpmsg.Request, conn *tcp.Connection) bool

func (f ServiceFunc) Handle(req *httpmsg.Request, conn *tcp.Connection) bool { return f(req, conn) }
