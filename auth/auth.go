// Package auth implements pion's cookie-based session authentication
// (spec §4.6) plus an HTTP Basic variant layered on the same
// UserManager collaborator. The cache shape and PRNG warm-up are
// grounded on the specification directly (no example repo in the
// retrieval pack implements session auth); the cookie encode/decode
// reuses httpmsg.ParseCookieHeader and httpmsg.SetCookie, and the
// cache is a plain map guarded by a sync.Mutex.
package auth

import (
	"encoding/base64"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/avgx/pion/httpmsg"
	"github.com/avgx/pion/pionerr"
	"github.com/avgx/pion/tcp"
)

// SessionCookieName is the cookie pion issues on a successful login
// (spec §6: "Name pion_session_id").
const SessionCookieName = "pion_session_id"

// DefaultCacheExpiration is the TTL applied to a cached session when
// none is configured explicitly.
const DefaultCacheExpiration = 30 * time.Minute

// UserManager validates credentials for the login resource. It is an
// external collaborator the same way vocabulary.Vocabulary is;
// implementations are supplied by the embedding application.
type UserManager interface {
	Validate(user, pass string) bool
}

type sessionEntry struct {
	lastAccess time.Time
	user       string
}

// CookieAuth is pion's cookie-based HttpAuth (spec §4.6).
type CookieAuth struct {
	users       UserManager
	expiration  time.Duration
	loginPath   string
	logoutPath  string
	exempt      map[string]bool
	redirectURL string

	mu          sync.Mutex
	cache       map[string]sessionEntry
	cleanupTime time.Time

	prngOnce sync.Once
	prng     *mathrand.Rand
}

// NewCookieAuth constructs a CookieAuth with the given login/logout
// resource names (commonly "login"/"logout" per spec §4.6) and the
// UserManager that validates submitted credentials.
func NewCookieAuth(users UserManager, loginPath, logoutPath string) *CookieAuth {
	return &CookieAuth{
		users:      users,
		expiration: DefaultCacheExpiration,
		loginPath:  loginPath,
		logoutPath: logoutPath,
		exempt:     make(map[string]bool),
		cache:      make(map[string]sessionEntry),
	}
}

// SetExpiration overrides DefaultCacheExpiration.
func (a *CookieAuth) SetExpiration(d time.Duration) { a.expiration = d }

// SetRedirectURL sets the Location used for login/logout redirects;
// when empty, 204 No Content is returned instead (spec §4.6 steps 1-2).
func (a *CookieAuth) SetRedirectURL(url string) { a.redirectURL = url }

// Exempt marks resource as not requiring authentication, e.g. an
// explicit redirect/landing page (spec §4.6 step 3).
func (a *CookieAuth) Exempt(resource string) { a.exempt[resource] = true }

// warmPRNG seeds a PRNG from the wall clock and discards one hundred
// values, per spec §4.6's warm-up rule.
func (a *CookieAuth) warmPRNG() {
	a.prngOnce.Do(func() {
		a.prng = mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
		for i := 0; i < 100; i++ {
			_ = a.prng.Uint64()
		}
	})
}

// newSessionToken draws 20 random bytes from the warmed PRNG and
// base64-encodes them (spec §6: "Value is base64 of 20 random bytes").
func (a *CookieAuth) newSessionToken() (string, error) {
	a.warmPRNG()

	var buf [20]byte
	a.mu.Lock()
	_, err := a.prng.Read(buf[:])
	a.mu.Unlock()
	if err != nil {
		return "", pionerr.AuthError("prng", err)
	}
	return base64.StdEncoding.EncodeToString(buf[:]), nil
}

// evictExpired drops cache entries whose last access predates the
// cache's expiration, applying the cleanup-time throttle of spec
// §4.6's cache-eviction rule: it scans at most once per expiration
// window rather than on every call.
func (a *CookieAuth) evictExpired(now time.Time) {
	if now.Before(a.cleanupTime.Add(a.expiration)) {
		return
	}
	for cookie, entry := range a.cache {
		if entry.lastAccess.Add(a.expiration).Before(now) {
			delete(a.cache, cookie)
		}
	}
	a.cleanupTime = now
}

// Authenticate implements spec §4.6's authenticate(request,
// connection) -> Allow | Deny, writing any redirect/login/logout
// response itself, and a 401 when the session cookie is missing or
// unknown, and reporting whether a response was written.
func (a *CookieAuth) Authenticate(req *httpmsg.Request, conn *tcp.Connection) (allow bool, wrote bool) {
	a.warmPRNG()

	switch req.Resource {
	case a.loginPath:
		return a.handleLogin(req, conn)
	case a.logoutPath:
		return a.handleLogout(req, conn)
	}

	if a.exempt[req.Resource] {
		return true, false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	a.evictExpired(now)

	cookies := make(map[string]string)
	httpmsg.ParseCookieHeader(req.Headers, cookies)
	token, ok := cookies[SessionCookieName]
	if !ok {
		writeStatus(conn, req, 401, "Unauthorized")
		return false, true
	}
	entry, ok := a.cache[token]
	if !ok {
		writeStatus(conn, req, 401, "Unauthorized")
		return false, true
	}
	entry.lastAccess = now
	a.cache[token] = entry
	return true, false
}

func (a *CookieAuth) handleLogin(req *httpmsg.Request, conn *tcp.Connection) (allow bool, wrote bool) {
	user, pass := queryParam(req.QueryString, "user"), queryParam(req.QueryString, "pass")
	if !a.users.Validate(user, pass) {
		writeStatus(conn, req, 401, "Unauthorized")
		return false, true
	}

	token, err := a.newSessionToken()
	if err != nil {
		writeStatus(conn, req, 500, "Internal Server Error")
		return false, true
	}

	a.mu.Lock()
	a.cache[token] = sessionEntry{lastAccess: time.Now(), user: user}
	a.mu.Unlock()

	resp := baseResponse(req)
	resp.AddSetCookie(httpmsg.SetCookie{Name: SessionCookieName, Value: token})
	a.writeLoginOutcome(resp, conn)
	return true, true
}

func (a *CookieAuth) handleLogout(req *httpmsg.Request, conn *tcp.Connection) (allow bool, wrote bool) {
	cookies := make(map[string]string)
	httpmsg.ParseCookieHeader(req.Headers, cookies)
	if token, ok := cookies[SessionCookieName]; ok {
		a.mu.Lock()
		delete(a.cache, token)
		a.mu.Unlock()
	}

	resp := baseResponse(req)
	resp.AddSetCookie(httpmsg.SetCookie{Name: SessionCookieName, Value: "", MaxAge: 0, HasMax: true})
	a.writeLoginOutcome(resp, conn)
	return true, true
}

func (a *CookieAuth) writeLoginOutcome(resp *httpmsg.Response, conn *tcp.Connection) {
	if a.redirectURL != "" {
		resp.StatusCode, resp.StatusMessage = 302, "Found"
		resp.Headers.Set("Location", a.redirectURL)
	} else {
		resp.StatusCode, resp.StatusMessage = 204, "No Content"
	}
	_, _ = httpmsg.SendResponse(conn, resp)
}

func baseResponse(req *httpmsg.Request) *httpmsg.Response {
	resp := &httpmsg.Response{}
	resp.Major, resp.Minor = req.Major, req.Minor
	resp.RequestMethodHead = req.Method == "HEAD"
	return resp
}

func writeStatus(conn *tcp.Connection, req *httpmsg.Request, code int, message string) {
	resp := baseResponse(req)
	resp.StatusCode, resp.StatusMessage = code, message
	_, _ = httpmsg.SendResponse(conn, resp)
}

// queryParam extracts the first value of key from a raw query
// string, generalizing the &-split/=-split logic used by
// s00inx-goserver/server/router's Context.QueryGet to a plain string.
func queryParam(query, key string) string {
	for _, pair := range splitAny(query, '&') {
		name, value, ok := cut(pair, '=')
		if ok && name == key {
			return value
		}
	}
	return ""
}

func splitAny(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func cut(s string, sep byte) (before, after string, found bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}
