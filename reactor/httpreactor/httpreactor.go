// Package httpreactor implements pion's HTTP protocol reactor (spec
// §4.9): it pairs a request parser with a response parser and emits
// one reactor.Event per completed exchange. It is grounded on
// httpmsg's receive-side parsing functions, reused here directly
// against raw tagged buffers instead of a live tcp.Connection.
package httpreactor

import (
	"regexp"

	"github.com/avgx/pion/httpmsg"
	"github.com/avgx/pion/pionerr"
	"github.com/avgx/pion/reactor"
	"github.com/avgx/pion/vocabulary"
)

// Direction tags which side of the connection a buffer came from.
type Direction int

const (
	ClientToServer Direction = iota
	ServerToClient
)

// FieldNames are the term names the reactor resolves against the
// Vocabulary; spec §4.9's Event field list.
var FieldNames = []string{
	"cs-bytes", "sc-bytes", "bytes", "status", "method", "uri",
	"uri-stem", "uri-query", "request", "host", "referer",
	"useragent", "cached", "cs-content", "sc-content",
}

// ContentRule configures when a request/response body is captured
// into the Event instead of discarded (spec §4.9: "Content fields
// populated only when a configured extraction rule matches by
// Content-Type regex and the payload size is <= max_size").
type ContentRule struct {
	ContentType *regexp.Regexp
	MaxSize     int
}

func (r ContentRule) matches(contentType string, size int) bool {
	if r.ContentType == nil {
		return false
	}
	return size <= r.MaxSize && r.ContentType.MatchString(contentType)
}

// Reactor is pion's ProtocolReactor (spec §4.9). It implements
// reactor.Reactor so it can sit in the graph as an ordinary node, but
// bytes are fed to it directly via ReadNext rather than via Process
// (the reactor it feeds into receives the finished Event).
type Reactor struct {
	engine *reactor.Engine
	selfID string
	rule   ContentRule

	requestBuf  []byte
	responseBuf []byte

	currentRequest *httpmsg.Request
	csBytes        int

	terms map[string]int
	vocab vocabulary.Vocabulary
}

// New constructs a Reactor that, once wired into engine as selfID,
// delivers one Event downstream per completed request/response pair.
func New(engine *reactor.Engine, selfID string, rule ContentRule) *Reactor {
	return &Reactor{engine: engine, selfID: selfID, rule: rule, terms: make(map[string]int)}
}

// UpdateVocabulary resolves FieldNames against v, caching whichever
// ids it defines; fields the Vocabulary doesn't know are omitted from
// emitted Events rather than causing an error (spec lists vocabulary
// as an external collaborator outside this component's control).
func (r *Reactor) UpdateVocabulary(v vocabulary.Vocabulary) {
	r.vocab = v
	if v == nil {
		return
	}
	for _, name := range FieldNames {
		if id, ok := v.FindTerm(name); ok {
			r.terms[name] = id
		}
	}
}

// Process satisfies reactor.Reactor for a ProtocolReactor that is
// itself a delivery target; pion's protocol reactors sit at the top
// of a graph and don't normally receive events, so this is a no-op.
func (r *Reactor) Process(ev *reactor.Event) {}

// ReadNext feeds bytes arriving in direction to the matching parser
// (spec §4.9's read_next). Once both the request and its paired
// response have been parsed, it builds and delivers one Event.
func (r *Reactor) ReadNext(dir Direction, data []byte) error {
	switch dir {
	case ClientToServer:
		return r.readRequest(data)
	case ServerToClient:
		return r.readResponse(data)
	default:
		return pionerr.ProtocolError("unknown direction", nil)
	}
}

func (r *Reactor) readRequest(data []byte) error {
	r.requestBuf = append(r.requestBuf, data...)
	req, n, err := parseRequest(r.requestBuf)
	if pionerr.IsErrIncomplete(err) {
		return nil
	}
	if err != nil {
		r.requestBuf = nil
		return err
	}
	r.currentRequest = req
	r.csBytes = n
	r.requestBuf = r.requestBuf[n:]
	return nil
}

func (r *Reactor) readResponse(data []byte) error {
	r.responseBuf = append(r.responseBuf, data...)
	if r.currentRequest == nil {
		// No paired request yet; hold the bytes until one arrives.
		return nil
	}

	ctx := httpmsg.ResponseContext{
		RequestMajor:      r.currentRequest.Major,
		RequestMinor:      r.currentRequest.Minor,
		RequestMethodHead: r.currentRequest.Method == "HEAD",
	}
	resp, n, err := parseResponse(r.responseBuf, ctx)
	if pionerr.IsErrIncomplete(err) {
		return nil
	}
	if err != nil {
		r.responseBuf = nil
		return err
	}

	r.emit(r.currentRequest, resp, r.csBytes, n)

	r.responseBuf = r.responseBuf[n:]
	r.currentRequest = nil
	r.csBytes = 0
	return nil
}

func (r *Reactor) termID(name string) (int, bool) {
	id, ok := r.terms[name]
	return id, ok
}

func (r *Reactor) set(ev *reactor.Event, name string, value interface{}) {
	if id, ok := r.termID(name); ok {
		ev.Set(id, value)
	}
}

func (r *Reactor) emit(req *httpmsg.Request, resp *httpmsg.Response, csBytes, scBytes int) {
	ev := reactor.NewEvent()
	defer ev.Release()

	r.set(ev, "cs-bytes", csBytes)
	r.set(ev, "sc-bytes", scBytes)
	r.set(ev, "bytes", csBytes+scBytes)
	r.set(ev, "status", resp.StatusCode)
	r.set(ev, "method", req.Method)
	r.set(ev, "uri", req.Resource+queryJoiner(req.QueryString))
	r.set(ev, "uri-stem", req.Resource)
	r.set(ev, "uri-query", req.QueryString)
	r.set(ev, "request", req.RawLine)
	r.set(ev, "cached", resp.StatusCode == 304)

	if host, ok := req.Headers.Get("Host"); ok {
		r.set(ev, "host", host)
	}
	if referer, ok := req.Headers.Get("Referer"); ok {
		r.set(ev, "referer", referer)
	}
	if ua, ok := req.Headers.Get("User-Agent"); ok {
		r.set(ev, "useragent", ua)
	}

	if ct, ok := req.Headers.Get("Content-Type"); ok && r.rule.matches(ct, len(req.Content)) {
		r.set(ev, "cs-content", req.Content)
	}
	if ct, ok := resp.Headers.Get("Content-Type"); ok && r.rule.matches(ct, len(resp.Content)) {
		r.set(ev, "sc-content", resp.Content)
	}

	r.engine.Deliver(r.selfID, ev)
}

func queryJoiner(query string) string {
	if query == "" {
		return ""
	}
	return "?" + query
}

func parseRequest(raw []byte) (*httpmsg.Request, int, error) {
	return httpmsg.ParseFullRequest(raw)
}

func parseResponse(raw []byte, ctx httpmsg.ResponseContext) (*httpmsg.Response, int, error) {
	return httpmsg.ParseFullResponse(raw, ctx)
}
