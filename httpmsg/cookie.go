package httpmsg

import (
	"strconv"
	"strings"
	"time"
)

// ParseCookieHeader extracts name=value pairs from a request's Cookie
// header(s) into dst, per spec §3 ("cookies: mapping name -> value
// parsed from Cookie headers on request").
func ParseCookieHeader(headers HeaderList, dst map[string]string) {
	for _, raw := range headers.Values("Cookie") {
		for _, pair := range strings.Split(raw, ";") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			name, value, ok := strings.Cut(pair, "=")
			if !ok {
				continue
			}
			dst[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
	}
}

// SetCookie describes one Set-Cookie directive, per RFC 2109 syntax
// named in spec §6: "Name=Value[; Path=...][; Max-Age=N][; Expires=...]".
type SetCookie struct {
	Name    string
	Value   string
	Path    string
	MaxAge  int
	HasMax  bool
	Expires time.Time
	HasExp  bool
}

// String renders the Set-Cookie header value.
func (c SetCookie) String() string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteByte('=')
	b.WriteString(c.Value)
	if c.Path != "" {
		b.WriteString("; Path=")
		b.WriteString(c.Path)
	}
	if c.HasMax {
		b.WriteString("; Max-Age=")
		b.WriteString(strconv.Itoa(c.MaxAge))
	}
	if c.HasExp {
		b.WriteString("; Expires=")
		b.WriteString(c.Expires.UTC().Format(time.RFC1123))
	}
	return b.String()
}

// AddSetCookie appends a Set-Cookie header to a response.
func (r *Response) AddSetCookie(c SetCookie) {
	r.Headers.Add("Set-Cookie", c.String())
}
