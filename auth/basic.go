package auth

import (
	"encoding/base64"
	"strings"

	"github.com/avgx/pion/httpmsg"
	"github.com/avgx/pion/tcp"
)

// BasicAuth is the HTTP Basic counterpart to CookieAuth, supplementing
// spec §4.6 with RFC 7617 credential checking against the same
// UserManager collaborator, for services that want stateless auth
// instead of a session cache.
type BasicAuth struct {
	users UserManager
	realm string
}

// NewBasicAuth constructs a BasicAuth challenging with realm.
func NewBasicAuth(users UserManager, realm string) *BasicAuth {
	return &BasicAuth{users: users, realm: realm}
}

// Authenticate validates the request's Authorization header. On
// failure it writes a 401 with a WWW-Authenticate challenge itself,
// mirroring CookieAuth.Authenticate's "writes its own response"
// contract.
func (a *BasicAuth) Authenticate(req *httpmsg.Request, conn *tcp.Connection) (allow bool, wrote bool) {
	header, ok := req.Headers.Get("Authorization")
	if !ok {
		a.challenge(req, conn)
		return false, true
	}

	user, pass, ok := parseBasicCredentials(header)
	if !ok || !a.users.Validate(user, pass) {
		a.challenge(req, conn)
		return false, true
	}
	return true, false
}

func (a *BasicAuth) challenge(req *httpmsg.Request, conn *tcp.Connection) {
	resp := baseResponse(req)
	resp.StatusCode, resp.StatusMessage = 401, "Unauthorized"
	resp.Headers.Set("WWW-Authenticate", `Basic realm="`+a.realm+`"`)
	_, _ = httpmsg.SendResponse(conn, resp)
}

func parseBasicCredentials(header string) (user, pass string, ok bool) {
	const prefix = "Basic "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(header[len(prefix):])
	if err != nil {
		return "", "", false
	}
	name, pw, found := strings.Cut(string(decoded), ":")
	if !found {
		return "", "", false
	}
	return name, pw, true
}
