package httpmsg

import (
	"bytes"
	"testing"

	"github.com/avgx/pion/tcp"
)

type bufSender struct {
	buf       bytes.Buffer
	lifecycle tcp.Lifecycle
	set       bool
}

func (b *bufSender) WriteSome(bufs ...[]byte) (int, error) {
	total := 0
	for _, buf := range bufs {
		n, err := b.buf.Write(buf)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (b *bufSender) SetLifecycle(l tcp.Lifecycle) {
	b.lifecycle = l
	b.set = true
}

func TestSendResponseFixedBody(t *testing.T) {
	resp := &Response{StatusCode: 200, StatusMessage: "OK"}
	resp.Major, resp.Minor = 1, 1
	resp.Content = []byte("hello")

	s := &bufSender{}
	if _, err := SendResponse(s, resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := s.buf.String()
	if !bytes.HasPrefix([]byte(out), []byte("HTTP/1.1 200 OK\r\n")) {
		t.Fatalf("bad status line in %q", out)
	}
	if !bytes.Contains([]byte(out), []byte("Content-Length: 5\r\n")) {
		t.Errorf("missing Content-Length in %q", out)
	}
	if !bytes.HasSuffix([]byte(out), []byte("hello")) {
		t.Errorf("missing body in %q", out)
	}
}

func TestSendResponseImpliedEmptyOmitsFraming(t *testing.T) {
	resp := &Response{StatusCode: 204, StatusMessage: "No Content"}
	resp.Major, resp.Minor = 1, 1
	resp.Content = []byte("ignored")

	s := &bufSender{}
	if _, err := SendResponse(s, resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := s.buf.String()
	if bytes.Contains([]byte(out), []byte("Content-Length")) {
		t.Errorf("implied-empty response should not carry Content-Length: %q", out)
	}
	if bytes.Contains([]byte(out), []byte("ignored")) {
		t.Errorf("implied-empty response should not carry a body: %q", out)
	}
}

func TestSendResponseHeadSuppressesBody(t *testing.T) {
	resp := &Response{StatusCode: 200, StatusMessage: "OK", RequestMethodHead: true}
	resp.Major, resp.Minor = 1, 1
	resp.Content = []byte("should not appear")

	s := &bufSender{}
	if _, err := SendResponse(s, resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := s.buf.String()
	if bytes.Contains([]byte(out), []byte("should not appear")) {
		t.Errorf("HEAD response should not carry a body: %q", out)
	}
}

func TestSendResponseHeadWithKnownLengthSendsContentLength(t *testing.T) {
	resp := &Response{StatusCode: 200, StatusMessage: "OK", RequestMethodHead: true}
	resp.Major, resp.Minor = 1, 1
	resp.Content = []byte("twelve bytes")

	s := &bufSender{}
	if _, err := SendResponse(s, resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := s.buf.String()
	if !bytes.Contains([]byte(out), []byte("Content-Length: 12\r\n")) {
		t.Errorf("expected Content-Length reflecting known body size, got %q", out)
	}
	if s.set {
		t.Error("did not expect a known-length HEAD response to force a close")
	}
}

func TestSendResponseHeadWithUnknownLengthClosesConnection(t *testing.T) {
	resp := &Response{StatusCode: 200, StatusMessage: "OK", RequestMethodHead: true, ContentLengthUnknown: true}
	resp.Major, resp.Minor = 1, 1

	s := &bufSender{}
	if _, err := SendResponse(s, resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := s.buf.String()
	if bytes.Contains([]byte(out), []byte("Content-Length")) {
		t.Errorf("unknown-length HEAD response must not claim a Content-Length: %q", out)
	}
	if !bytes.Contains([]byte(out), []byte("Connection: close\r\n")) {
		t.Errorf("expected Connection: close header, got %q", out)
	}
	if !s.set || s.lifecycle != tcp.Close {
		t.Error("expected SendResponse to force the connection lifecycle to Close")
	}
}

func TestSendResponseChunked(t *testing.T) {
	resp := &Response{StatusCode: 200, StatusMessage: "OK"}
	resp.TransferEncoding = Chunked
	resp.Major, resp.Minor = 1, 1
	resp.Content = []byte("hello")

	s := &bufSender{}
	if _, err := SendResponse(s, resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := s.buf.String()
	if !bytes.Contains([]byte(out), []byte("Transfer-Encoding: chunked\r\n")) {
		t.Errorf("missing Transfer-Encoding in %q", out)
	}
	if !bytes.Contains([]byte(out), []byte("5\r\nhello\r\n0\r\n\r\n")) {
		t.Errorf("missing chunk framing in %q", out)
	}
}

func TestSendRequest(t *testing.T) {
	req := &Request{Method: "GET", Resource: "/foo", QueryString: "a=1"}
	req.Major, req.Minor = 1, 1

	s := &bufSender{}
	if _, err := SendRequest(s, req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := s.buf.String()
	if !bytes.HasPrefix([]byte(out), []byte("GET /foo?a=1 HTTP/1.1\r\n")) {
		t.Fatalf("bad request line in %q", out)
	}
}

func TestWrapChunkAndFinalChunk(t *testing.T) {
	got := WrapChunk([]byte("abc"))
	want := "3\r\nabc\r\n"
	if string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if string(FinalChunk()) != "0\r\n\r\n" {
		t.Errorf("FinalChunk = %q", FinalChunk())
	}
}
