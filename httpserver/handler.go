package httpserver

import (
	"github.com/avgx/pion/httpmsg"
	"github.com/avgx/pion/pionerr"
	"github.com/avgx/pion/tcp"
)

// ConnectionHandler returns a tcp.Handler that drives
// httpmsg.ReceiveRequest and Dispatch against every connection the
// tcp.Server hands it, then applies whatever lifecycle ReceiveRequest
// already recorded on conn (spec §4.2/§4.4's handle_connection loop).
func (s *Server) ConnectionHandler() tcp.Handler {
	return func(conn *tcp.Connection) {
		req, _, err := httpmsg.ReceiveRequest(conn)
		if err != nil {
			if s.log != nil && !pionerr.IsErrIncomplete(err) {
				s.log.Debugw("receive failed", "remote", conn.RemoteAddr(), "err", err)
			}
			conn.SetLifecycle(tcp.Close)
			conn.Finish()
			return
		}
		req.RemoteIP = remoteIP(conn)
		s.Dispatch(req, conn)
		conn.Finish()
	}
}

func remoteIP(conn *tcp.Connection) string {
	addr := conn.RemoteAddr()
	if addr == nil {
		return ""
	}
	return addr.String()
}
