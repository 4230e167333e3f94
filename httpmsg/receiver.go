package httpmsg

import (
	"io"

	"github.com/avgx/pion/pionerr"
	"github.com/avgx/pion/tcp"
)

const readChunkSize = 4096

// parseRequestHead parses a request's first line plus headers,
// returning the offset at which the body (if any) begins.
func parseRequestHead(raw []byte) (*Request, int, error) {
	method, resource, query, rawLine, major, minor, n1, err := ParseRequestLine(raw)
	if err != nil {
		return nil, 0, err
	}
	headers, n2, err := ParseHeaders(raw, n1)
	if err != nil {
		return nil, 0, err
	}
	req := &Request{
		Method:      method,
		Resource:    resource,
		QueryString: query,
		RawLine:     rawLine,
	}
	req.Major, req.Minor = major, minor
	req.Headers = headers
	return req, n1 + n2, nil
}

// parseRequestFull parses a complete request, including its body,
// from the start of raw. Returns pionerr.ErrIncomplete if raw does
// not yet hold the whole message.
func parseRequestFull(raw []byte) (*Request, int, error) {
	req, headEnd, err := parseRequestHead(raw)
	if err != nil {
		return nil, 0, err
	}

	strategy, length, err := DetermineBodyStrategy(req.Headers, false, false)
	if err != nil {
		return nil, 0, err
	}

	switch strategy {
	case BodyNone:
		req.IsValid = true
		return req, headEnd, nil
	case BodyFixed:
		content, n, err := ParseFixedBody(raw, headEnd, length)
		if err != nil {
			return nil, 0, err
		}
		req.Content = content
		req.IsValid = true
		return req, headEnd + n, nil
	case BodyChunked:
		content, trailers, n, err := ParseChunkedBody(raw, headEnd)
		if err != nil {
			return nil, 0, err
		}
		req.Content = content
		req.Headers = append(req.Headers, trailers...)
		req.TransferEncoding = Chunked
		req.ChunksSupported = true
		req.IsValid = true
		return req, headEnd + n, nil
	default:
		return nil, 0, pionerr.ParseError("unexpected body strategy", nil)
	}
}

// ParseFullRequest parses one complete request, including its body,
// from the start of raw, for callers that already have a whole
// buffer in hand (e.g. reactor/httpreactor) rather than a live
// tcp.Connection to read from incrementally.
func ParseFullRequest(raw []byte) (*Request, int, error) {
	return parseRequestFull(raw)
}

// ParseFullResponse is ParseFullRequest's response-side counterpart.
func ParseFullResponse(raw []byte, ctx ResponseContext) (*Response, int, error) {
	return parseResponseFull(raw, ctx)
}

// keepAlive applies spec §4.4 step 5's keep-alive rule.
func keepAlive(major, minor int, headers HeaderList) bool {
	isHTTP11OrNewer := major > 1 || (major == 1 && minor >= 1)
	if isHTTP11OrNewer {
		return !headers.HasToken("Connection", "close")
	}
	return headers.HasToken("Connection", "keep-alive")
}

// ReceiveRequest drives parseRequestFull against conn, reading more
// bytes as needed, then applies the lifecycle decision of spec §4.4
// step 5 to conn. If conn is already in the Pipelined state with a
// saved bookmark, the buffered slice is reused as the parser's first
// input instead of issuing a read (spec §4.4 step 1).
func ReceiveRequest(conn *tcp.Connection) (*Request, int, error) {
	buf := conn.Buffer()

	if start, end, ok := conn.LoadReadPosition(); ok && conn.Pipelined() {
		leftover := append([]byte(nil), buf.B[start:end]...)
		buf.Reset()
		_, _ = buf.Write(leftover)
		conn.SaveReadPosition(0, 0)
	}

	for {
		req, n, err := parseRequestFull(buf.B)
		if err == nil {
			applyRequestLifecycle(conn, req, buf.B, n)
			return req, n, nil
		}
		if !pionerr.IsErrIncomplete(err) {
			conn.SetLifecycle(tcp.Close)
			return nil, 0, err
		}

		chunk := make([]byte, readChunkSize)
		rn, rerr := conn.ReadSome(chunk)
		if rn > 0 {
			_, _ = buf.Write(chunk[:rn])
		}
		if rerr != nil {
			conn.SetLifecycle(tcp.Close)
			return nil, 0, rerr
		}
	}
}

func applyRequestLifecycle(conn *tcp.Connection, req *Request, raw []byte, consumed int) {
	if !keepAlive(req.Major, req.Minor, req.Headers) {
		conn.SetLifecycle(tcp.Close)
		return
	}
	if consumed >= len(raw) {
		conn.Buffer().Reset()
		conn.SetLifecycle(tcp.KeepAlive)
		return
	}
	conn.SaveReadPosition(consumed, len(raw))
	conn.SetLifecycle(tcp.Pipelined)
}

// ResponseContext carries the paired request's facts a response
// parser needs in order to apply the implied-empty-body rule and the
// chunked-support check (spec §4.9's "update response parser's
// context with the request").
type ResponseContext struct {
	RequestMajor, RequestMinor int
	RequestMethodHead          bool
}

// parseResponseFull mirrors parseRequestFull for responses, applying
// ctx to resolve the implied-empty-body and EOF-framed-body rules.
func parseResponseFull(raw []byte, ctx ResponseContext) (*Response, int, error) {
	major, minor, status, message, n1, err := ParseStatusLine(raw)
	if err != nil {
		return nil, 0, err
	}
	headers, n2, err := ParseHeaders(raw, n1)
	if err != nil {
		return nil, 0, err
	}
	headEnd := n1 + n2

	resp := &Response{
		StatusCode:         status,
		StatusMessage:      message,
		RequestMajor:       ctx.RequestMajor,
		RequestMinor:       ctx.RequestMinor,
		RequestMethodHead:  ctx.RequestMethodHead,
	}
	resp.Major, resp.Minor = major, minor
	resp.Headers = headers

	impliedEmpty := resp.SuppressesBody()
	strategy, length, err := DetermineBodyStrategy(headers, impliedEmpty, true)
	if err != nil {
		return nil, 0, err
	}

	switch strategy {
	case BodyNone:
		resp.IsValid = true
		return resp, headEnd, nil
	case BodyFixed:
		content, n, err := ParseFixedBody(raw, headEnd, length)
		if err != nil {
			return nil, 0, err
		}
		resp.Content = content
		resp.IsValid = true
		return resp, headEnd + n, nil
	case BodyChunked:
		content, trailers, n, err := ParseChunkedBody(raw, headEnd)
		if err != nil {
			return nil, 0, err
		}
		resp.Content = content
		resp.Headers = append(resp.Headers, trailers...)
		resp.TransferEncoding = Chunked
		resp.ChunksSupported = true
		resp.IsValid = true
		return resp, headEnd + n, nil
	case BodyEOF:
		// Caller must read to EOF before reparsing; signal Continue
		// until ReceiveResponse has observed the peer's close.
		return nil, 0, pionerr.ErrIncomplete
	default:
		return nil, 0, pionerr.ParseError("unexpected body strategy", nil)
	}
}

// ReceiveResponse drives parseResponseFull against conn. When no
// Content-Length or chunked framing is present, the body is collected
// by reading until the peer closes the connection (spec §4.3's
// EOF-terminated response body strategy).
func ReceiveResponse(conn *tcp.Connection, ctx ResponseContext) (*Response, int, error) {
	buf := conn.Buffer()
	eofSeen := false

	for {
		resp, n, err := parseResponseFull(buf.B, ctx)
		if err == nil {
			return resp, n, nil
		}
		if !pionerr.IsErrIncomplete(err) {
			return nil, 0, err
		}
		if eofSeen {
			// EOF already observed and the head still won't parse as
			// complete: treat everything after the header block as an
			// EOF-framed body and finish manually.
			return finishEOFBody(buf.B, ctx)
		}

		chunk := make([]byte, readChunkSize)
		rn, rerr := conn.ReadSome(chunk)
		if rn > 0 {
			_, _ = buf.Write(chunk[:rn])
		}
		if rerr == io.EOF {
			eofSeen = true
			continue
		}
		if rerr != nil {
			return nil, 0, rerr
		}
	}
}

func finishEOFBody(raw []byte, ctx ResponseContext) (*Response, int, error) {
	major, minor, status, message, n1, err := ParseStatusLine(raw)
	if err != nil {
		return nil, 0, err
	}
	headers, n2, err := ParseHeaders(raw, n1)
	if err != nil {
		return nil, 0, err
	}
	headEnd := n1 + n2

	resp := &Response{
		StatusCode:        status,
		StatusMessage:     message,
		RequestMajor:      ctx.RequestMajor,
		RequestMinor:      ctx.RequestMinor,
		RequestMethodHead: ctx.RequestMethodHead,
	}
	resp.Major, resp.Minor = major, minor
	resp.Headers = headers
	resp.Content = append([]byte(nil), raw[headEnd:]...)
	resp.IsValid = true
	return resp, len(raw), nil
}
