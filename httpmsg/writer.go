package httpmsg

import (
	"strconv"

	"github.com/avgx/pion/tcp"
)

// Sender is the minimal surface httpmsg needs to emit a message;
// tcp.Connection satisfies it via its WriteSome.
type Sender interface {
	WriteSome(bufs ...[]byte) (int, error)
}

// lifecycleSetter is the extra capability tcp.Connection provides
// alongside Sender. SendResponse uses it to force a connection close
// when a HEAD response has no Content-Length to frame (spec §9's
// design note), without requiring every Sender to implement connection
// lifecycle at all.
type lifecycleSetter interface {
	SetLifecycle(tcp.Lifecycle)
}

// buildHead assembles the first line and header block shared by
// requests and responses: "LINE CRLF" then "Name: Value CRLF" for
// each header, then a blank CRLF (spec §4.4 step for send).
func buildHead(firstLine string, headers HeaderList) []byte {
	n := len(firstLine) + 2 + 2
	for _, h := range headers {
		n += len(h.Name) + len(h.Value) + 4
	}
	buf := make([]byte, 0, n)
	buf = append(buf, firstLine...)
	buf = append(buf, '\r', '\n')
	for _, h := range headers {
		buf = append(buf, h.Name...)
		buf = append(buf, ':', ' ')
		buf = append(buf, h.Value...)
		buf = append(buf, '\r', '\n')
	}
	buf = append(buf, '\r', '\n')
	return buf
}

// WrapChunk frames data as one chunk: "size(hex) CRLF data CRLF".
func WrapChunk(data []byte) []byte {
	size := strconv.FormatInt(int64(len(data)), 16)
	buf := make([]byte, 0, len(size)+2+len(data)+2)
	buf = append(buf, size...)
	buf = append(buf, '\r', '\n')
	buf = append(buf, data...)
	buf = append(buf, '\r', '\n')
	return buf
}

// FinalChunk is the terminating "0 CRLF CRLF" chunk, with no trailers.
func FinalChunk() []byte { return []byte("0\r\n\r\n") }

// prepareSend finalizes the framing headers for body before assembling
// the wire buffers: sets Content-Length for identity bodies, or
// Transfer-Encoding: chunked for chunked ones, unless the body is
// implied-empty, in which case no framing header is added at all.
func prepareSend(headers *HeaderList, content []byte, chunked, impliedEmpty bool) {
	headers.Del("Content-Length")
	headers.Del("Transfer-Encoding")
	if impliedEmpty {
		return
	}
	if chunked {
		headers.Add("Transfer-Encoding", "chunked")
		return
	}
	headers.Add("Content-Length", strconv.Itoa(len(content)))
}

// SendResponse assembles and vector-writes resp per spec §4.4's send
// algorithm, returning the number of bytes written.
//
// A HEAD response whose handler never materialized Content
// (ContentLengthUnknown) cannot be framed with either Content-Length
// or chunking; per spec §9's design note on that open question,
// SendResponse instead closes the connection after writing the
// headers, forcing the lifecycle to tcp.Close via w's lifecycleSetter
// capability regardless of what the request side already decided.
func SendResponse(w Sender, resp *Response) (int, error) {
	statusEmpty := resp.HasImpliedEmptyBody()
	suppressBody := resp.SuppressesBody()
	closeUnknownLength := resp.RequestMethodHead && !statusEmpty &&
		resp.TransferEncoding != Chunked && resp.ContentLengthUnknown
	chunked := !statusEmpty && !closeUnknownLength && resp.TransferEncoding == Chunked

	switch {
	case closeUnknownLength:
		resp.Headers.Del("Content-Length")
		resp.Headers.Del("Transfer-Encoding")
		resp.Headers.Set("Connection", "close")
	default:
		prepareSend(&resp.Headers, resp.Content, chunked, statusEmpty)
	}

	first := "HTTP/" + strconv.Itoa(resp.Major) + "." + strconv.Itoa(resp.Minor) +
		" " + strconv.Itoa(resp.StatusCode) + " " + resp.StatusMessage
	head := buildHead(first, resp.Headers)

	if closeUnknownLength {
		if setter, ok := w.(lifecycleSetter); ok {
			setter.SetLifecycle(tcp.Close)
		}
		return w.WriteSome(head)
	}
	if suppressBody {
		return w.WriteSome(head)
	}
	if chunked {
		return w.WriteSome(head, WrapChunk(resp.Content), FinalChunk())
	}
	return w.WriteSome(head, resp.Content)
}

// SendRequest assembles and vector-writes req; it is the request-side
// counterpart of SendResponse.
func SendRequest(w Sender, req *Request) (int, error) {
	chunked := req.TransferEncoding == Chunked
	prepareSend(&req.Headers, req.Content, chunked, false)

	target := req.Resource
	if req.QueryString != "" {
		target += "?" + req.QueryString
	}
	first := req.Method + " " + target + " HTTP/" +
		strconv.Itoa(req.Major) + "." + strconv.Itoa(req.Minor)
	head := buildHead(first, req.Headers)

	if chunked {
		return w.WriteSome(head, WrapChunk(req.Content), FinalChunk())
	}
	return w.WriteSome(head, req.Content)
}
