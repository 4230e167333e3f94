package httpserver

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/avgx/pion/httpmsg"
	"github.com/avgx/pion/pluginmgr"
	"github.com/avgx/pion/tcp"
)

// ErrorHandler writes a response for a request the router could not
// satisfy normally: either no service matched (NotFoundHandler) or a
// service failed to produce a response (ServerErrorHandler).
type ErrorHandler func(req *httpmsg.Request, conn *tcp.Connection, message string)

// Server is pion's HttpServer (spec §4.5): a resource-prefix-routed
// table of WebServices, grounded on s00inx-goserver/server/router's
// trie-backed dispatch, generalized to the longest-prefix rule and to
// plugin-backed services via pluginmgr.
type Server struct {
	router  *router
	plugins *pluginmgr.Manager
	log     *zap.SugaredLogger

	notFound    ErrorHandler
	serverError ErrorHandler

	auth Authenticator
}

// Authenticator gates Dispatch the way auth.CookieAuth and
// auth.BasicAuth do: it writes its own response when denying a
// request, matching the contract both implementations share (spec
// §4.6's authenticate(request, connection) -> Allow | Deny).
type Authenticator interface {
	Authenticate(req *httpmsg.Request, conn *tcp.Connection) (allow, wrote bool)
}

// SetAuthenticator installs a (spec §4.6/SPEC_FULL.md §3) auth gate
// checked before every Dispatch; pass nil to disable authentication.
func (s *Server) SetAuthenticator(a Authenticator) { s.auth = a }

// New constructs a Server with pion's default 404/500 handlers,
// which may be overridden via SetNotFoundHandler/SetServerErrorHandler.
func New(plugins *pluginmgr.Manager, log *zap.SugaredLogger) *Server {
	s := &Server{
		router:  newRouter(),
		plugins: plugins,
		log:     log,
	}
	s.notFound = s.defaultNotFound
	s.serverError = s.defaultServerError
	return s
}

// AddService registers svc directly at resource (spec §4.5 add_service).
func (s *Server) AddService(resource string, svc WebService) {
	s.router.insert(resource, svc)
}

// LoadService loads a plugin named name under id via the Server's
// pluginmgr.Manager and registers its instance at resource (spec §4.5
// load_service, §4.7).
func (s *Server) LoadService(resource, id, name string) error {
	if err := s.plugins.Load(id, name); err != nil {
		return err
	}
	instance, _ := s.plugins.Instance(id)
	s.AddService(resource, instance)
	return nil
}

// SetServiceOption forwards a configuration directive to the service
// registered at resource, if it implements OptionSetter (spec §4.5
// set_service_option).
func (s *Server) SetServiceOption(resource, name, value string) error {
	svc, _, ok := s.router.match(resource)
	if !ok {
		return fmt.Errorf("no service registered at %q", resource)
	}
	setter, ok := svc.(OptionSetter)
	if !ok {
		return fmt.Errorf("service at %q does not accept options", resource)
	}
	return setter.SetOption(name, value)
}

// ClearServices removes every registered service (spec §4.5
// clear_services).
func (s *Server) ClearServices() {
	s.router.clear()
	s.plugins.Clear()
}

// SetNotFoundHandler overrides the handler invoked when no service
// matches a request's resource.
func (s *Server) SetNotFoundHandler(h ErrorHandler) { s.notFound = h }

// SetServerErrorHandler overrides the handler invoked when a service
// returns false or panics.
func (s *Server) SetServerErrorHandler(h ErrorHandler) { s.serverError = h }

// Dispatch routes req to the service registered at the longest
// matching resource prefix of req.Resource, recovering any panic
// raised by the service into a 500 response the way a thread-local
// exception boundary would (spec §4.5: "Exceptions raised by services
// are caught by a thread-local boundary and converted to 500
// responses with the exception message").
func (s *Server) Dispatch(req *httpmsg.Request, conn *tcp.Connection) {
	if s.auth != nil {
		allow, wrote := s.auth.Authenticate(req, conn)
		if !allow {
			if !wrote {
				s.notFound(req, conn, "authentication required")
			}
			return
		}
	}

	svc, resource, ok := s.router.match(req.Resource)
	if !ok {
		s.notFound(req, conn, "no service registered for "+req.Resource)
		return
	}

	wrote := s.invoke(svc, req, conn, resource)
	if !wrote {
		s.serverError(req, conn, "service produced no response")
	}
}

// invoke calls svc.Handle. A panic is recovered and reported through
// serverError with the panic message, and invoke then returns true so
// Dispatch does not write a second error response.
func (s *Server) invoke(svc WebService, req *httpmsg.Request, conn *tcp.Connection, resource string) (wrote bool) {
	defer func() {
		if r := recover(); r != nil {
			if s.log != nil {
				s.log.Errorw("service panicked", "resource", resource, "panic", r)
			}
			s.serverError(req, conn, fmt.Sprintf("%v", r))
			wrote = true
		}
	}()
	return svc.Handle(req, conn)
}

func (s *Server) defaultNotFound(req *httpmsg.Request, conn *tcp.Connection, message string) {
	resp := &httpmsg.Response{
		StatusCode:    404,
		StatusMessage: "Not Found",
	}
	resp.Major, resp.Minor = req.Major, req.Minor
	resp.RequestMethodHead = req.Method == "HEAD"
	resp.Content = []byte(message)
	resp.Headers.Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = httpmsg.SendResponse(conn, resp)
}

func (s *Server) defaultServerError(req *httpmsg.Request, conn *tcp.Connection, message string) {
	resp := &httpmsg.Response{
		StatusCode:    500,
		StatusMessage: "Internal Server Error",
	}
	resp.Major, resp.Minor = req.Major, req.Minor
	resp.RequestMethodHead = req.Method == "HEAD"
	resp.Content = []byte(message)
	resp.Headers.Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = httpmsg.SendResponse(conn, resp)
}
