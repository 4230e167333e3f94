// Package httpmsg implements pion's HTTP/1.1 message model and
// incremental parser (spec §4.3, §4.4): Request and Response share a
// Message base with an ordered, case-insensitive header multimap, a
// cookie jar, and a transfer-encoding flag. The parsing logic is
// grounded on s00inx-goserver/server/protocol/parser.go's zero-alloc
// shape, extended to headers-as-multimap, chunked bodies, and header
// folding (none of which the teacher's toy parser implements), plus
// Sharpe-x-httpd/httpd/chunk.go for the chunk-reader algorithm.
package httpmsg

import "strings"

// TransferEncoding selects how a message body is framed on the wire.
type TransferEncoding int

const (
	Identity TransferEncoding = iota
	Chunked
)

// Header is one name/value pair as it appeared on the wire; order is
// preserved because HeaderList is itself the ordered multimap.
type Header struct {
	Name  string
	Value string
}

// HeaderList is an ordered multimap of case-insensitive name->value,
// per spec §3.
type HeaderList []Header

// Add appends a header, preserving any existing entries with the same name.
func (h *HeaderList) Add(name, value string) {
	*h = append(*h, Header{Name: name, Value: value})
}

// Set removes any existing entries named name and appends one new entry.
func (h *HeaderList) Set(name, value string) {
	h.Del(name)
	h.Add(name, value)
}

// Del removes all entries named name.
func (h *HeaderList) Del(name string) {
	out := (*h)[:0]
	for _, kv := range *h {
		if !strings.EqualFold(kv.Name, name) {
			out = append(out, kv)
		}
	}
	*h = out
}

// Get returns the first value for name, if present.
func (h HeaderList) Get(name string) (string, bool) {
	for _, kv := range h {
		if strings.EqualFold(kv.Name, name) {
			return kv.Value, true
		}
	}
	return "", false
}

// Values returns every value for name, in wire order.
func (h HeaderList) Values(name string) []string {
	var out []string
	for _, kv := range h {
		if strings.EqualFold(kv.Name, name) {
			out = append(out, kv.Value)
		}
	}
	return out
}

// Has reports whether name is present at all.
func (h HeaderList) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// HasToken reports whether the (possibly comma-joined) values of
// name contain token, matched case-insensitively, as used for
// Connection and Transfer-Encoding per spec §4.3/§4.4.
func (h HeaderList) HasToken(name, token string) bool {
	for _, v := range h.Values(name) {
		for _, part := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(part), token) {
				return true
			}
		}
	}
	return false
}

// Message is the common base of Request and Response (spec §3).
type Message struct {
	Headers          HeaderList
	Cookies          map[string]string
	Content          []byte
	ChunksSupported  bool
	Major, Minor     int
	IsValid          bool
	TransferEncoding TransferEncoding
}

// Version returns the message's HTTP version as (major, minor).
func (m *Message) Version() (int, int) { return m.Major, m.Minor }

// ContentLength returns len(Content); provided for symmetry with the
// Content-Length header pion emits on Send.
func (m *Message) ContentLength() int { return len(m.Content) }

// Request adds method/resource/query/raw-line/remote-IP to Message
// (spec §3).
type Request struct {
	Message
	Method      string
	Resource    string
	QueryString string
	RawLine     string
	RemoteIP    string
}

// Response adds status and the request-version mirror used to decide
// chunking support (spec §3).
type Response struct {
	Message
	StatusCode    int
	StatusMessage string

	// RequestMajor/RequestMinor mirror the paired request's version so
	// the response writer can decide whether the peer supports chunked
	// encoding (spec §4.9: "update response parser's context with the
	// request").
	RequestMajor, RequestMinor int
	// RequestMethodHead records whether the paired request was a HEAD,
	// which forces a bodyless response regardless of status.
	RequestMethodHead bool
	// ContentLengthUnknown marks a HEAD response whose handler did not
	// materialize Content to learn its length (e.g. to avoid reading a
	// file body it is not going to send). SendResponse cannot frame
	// such a response with Content-Length or chunking, so per spec
	// §9's design note it closes the connection after sending instead.
	ContentLengthUnknown bool
}

// impliedEmptyStatus reports whether status implies a bodyless
// response regardless of any Content-Length (spec §4.3 bit-exact rule).
func impliedEmptyStatus(status int) bool {
	if status >= 100 && status <= 199 {
		return true
	}
	return status == 204 || status == 304
}

// HasImpliedEmptyBody reports whether status alone implies a bodyless
// response with no framing header at all (1xx/204/304). A HEAD
// response is handled separately by SendResponse, since it still
// frames a Content-Length when one is known (spec §4.3).
func (r *Response) HasImpliedEmptyBody() bool {
	return impliedEmptyStatus(r.StatusCode)
}

// SuppressesBody reports whether body bytes must be omitted from the
// wire regardless of any computed framing: 1xx/204/304, or any
// response to a HEAD request (spec §4.3).
func (r *Response) SuppressesBody() bool {
	return impliedEmptyStatus(r.StatusCode) || r.RequestMethodHead
}
