package httpmsg

import (
	"testing"

	"github.com/avgx/pion/pionerr"
)

func TestParseRequestLine(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantMethod string
		wantRes    string
		wantQuery  string
		wantMajor  int
		wantMinor  int
		wantErr    bool
	}{
		{"simple get", "GET /foo HTTP/1.1\r\n", "GET", "/foo", "", 1, 1, false},
		{"with query", "GET /foo?a=1&b=2 HTTP/1.0\r\n", "GET", "/foo", "a=1&b=2", 1, 0, false},
		{"root", "POST / HTTP/1.1\r\n", "POST", "/", "", 1, 1, false},
		{"malformed no version", "GET /foo\r\n", "", "", "", 0, 0, true},
		{"malformed no target", "GET\r\n", "", "", "", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method, resource, query, _, major, minor, _, err := ParseRequestLine([]byte(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if method != tt.wantMethod || resource != tt.wantRes || query != tt.wantQuery ||
				major != tt.wantMajor || minor != tt.wantMinor {
				t.Errorf("got (%q,%q,%q,%d,%d), want (%q,%q,%q,%d,%d)",
					method, resource, query, major, minor,
					tt.wantMethod, tt.wantRes, tt.wantQuery, tt.wantMajor, tt.wantMinor)
			}
		})
	}
}

func TestParseRequestLineIncomplete(t *testing.T) {
	_, _, _, _, _, _, _, err := ParseRequestLine([]byte("GET /foo HTTP/1.1"))
	if !pionerr.IsErrIncomplete(err) {
		t.Fatalf("want Continue, got %v", err)
	}
}

func TestParseStatusLine(t *testing.T) {
	major, minor, status, message, _, err := ParseStatusLine([]byte("HTTP/1.1 404 Not Found\r\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if major != 1 || minor != 1 || status != 404 || message != "Not Found" {
		t.Errorf("got (%d,%d,%d,%q)", major, minor, status, message)
	}
}

func TestParseStatusLineNoMessage(t *testing.T) {
	_, _, status, message, _, err := ParseStatusLine([]byte("HTTP/1.1 204\r\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != 204 || message != "" {
		t.Errorf("got (%d,%q)", status, message)
	}
}

func TestParseHeaders(t *testing.T) {
	raw := []byte("Host: example.com\r\nX-Multi: one\r\nX-Multi: two\r\n\r\n")
	headers, consumed, err := ParseHeaders(raw, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if consumed != len(raw) {
		t.Errorf("consumed = %d, want %d", consumed, len(raw))
	}
	if v, ok := headers.Get("Host"); !ok || v != "example.com" {
		t.Errorf("Host = %q, %v", v, ok)
	}
	vals := headers.Values("X-Multi")
	if len(vals) != 2 || vals[0] != "one" || vals[1] != "two" {
		t.Errorf("X-Multi values = %v", vals)
	}
}

func TestParseHeadersFolding(t *testing.T) {
	raw := []byte("X-Long: part1\r\n part2\r\n\tpart3\r\n\r\n")
	headers, _, err := ParseHeaders(raw, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, ok := headers.Get("X-Long")
	if !ok {
		t.Fatal("X-Long not found")
	}
	if v != "part1 part2 part3" {
		t.Errorf("folded value = %q", v)
	}
}

func TestParseHeadersBareLF(t *testing.T) {
	raw := []byte("Host: example.com\n\n")
	headers, consumed, err := ParseHeaders(raw, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if consumed != len(raw) {
		t.Errorf("consumed = %d, want %d", consumed, len(raw))
	}
	if v, _ := headers.Get("Host"); v != "example.com" {
		t.Errorf("Host = %q", v)
	}
}

func TestParseHeadersIncomplete(t *testing.T) {
	_, _, err := ParseHeaders([]byte("Host: example.com\r\n"), 0)
	if !pionerr.IsErrIncomplete(err) {
		t.Fatalf("want Continue, got %v", err)
	}
}

func TestParseHeadersOversizeLine(t *testing.T) {
	long := make([]byte, maxHeaderLineBytes+100)
	for i := range long {
		long[i] = 'a'
	}
	raw := append([]byte("X-Long: "), long...)
	raw = append(raw, '\r', '\n', '\r', '\n')
	_, _, err := ParseHeaders(raw, 0)
	if err == nil || pionerr.IsErrIncomplete(err) {
		t.Fatalf("want oversize parse error, got %v", err)
	}
}

func TestDetermineBodyStrategy(t *testing.T) {
	tests := []struct {
		name         string
		headers      HeaderList
		impliedEmpty bool
		isResponse   bool
		want         BodyStrategy
		wantLen      int
	}{
		{"implied empty wins", HeaderList{{"Content-Length", "10"}}, true, false, BodyNone, 0},
		{"chunked", HeaderList{{"Transfer-Encoding", "chunked"}}, false, false, BodyChunked, 0},
		{"fixed", HeaderList{{"Content-Length", "42"}}, false, false, BodyFixed, 42},
		{"response eof", nil, false, true, BodyEOF, 0},
		{"request none", nil, false, false, BodyNone, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strategy, length, err := DetermineBodyStrategy(tt.headers, tt.impliedEmpty, tt.isResponse)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if strategy != tt.want || length != tt.wantLen {
				t.Errorf("got (%v,%d), want (%v,%d)", strategy, length, tt.want, tt.wantLen)
			}
		})
	}
}

func TestParseFixedBody(t *testing.T) {
	raw := []byte("hello world, extra")
	content, n, err := ParseFixedBody(raw, 0, 11)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 11 || string(content) != "hello world" {
		t.Errorf("got (%q,%d)", content, n)
	}
}

func TestParseFixedBodyIncomplete(t *testing.T) {
	_, _, err := ParseFixedBody([]byte("short"), 0, 100)
	if !pionerr.IsErrIncomplete(err) {
		t.Fatalf("want Continue, got %v", err)
	}
}

func TestParseChunkedBody(t *testing.T) {
	raw := []byte("5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n")
	content, trailers, consumed, err := ParseChunkedBody(raw, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(content) != "hello world" {
		t.Errorf("content = %q", content)
	}
	if len(trailers) != 0 {
		t.Errorf("trailers = %v", trailers)
	}
	if consumed != len(raw) {
		t.Errorf("consumed = %d, want %d", consumed, len(raw))
	}
}

func TestParseChunkedBodyWithExtensionAndTrailer(t *testing.T) {
	raw := []byte("3;foo=bar\r\nabc\r\n0\r\nX-Trailer: done\r\n\r\n")
	content, trailers, _, err := ParseChunkedBody(raw, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(content) != "abc" {
		t.Errorf("content = %q", content)
	}
	if v, ok := trailers.Get("X-Trailer"); !ok || v != "done" {
		t.Errorf("trailer = %q, %v", v, ok)
	}
}

func TestParseChunkedBodyIncomplete(t *testing.T) {
	_, _, _, err := ParseChunkedBody([]byte("5\r\nhel"), 0)
	if !pionerr.IsErrIncomplete(err) {
		t.Fatalf("want Continue, got %v", err)
	}
}

func TestParseChunkedBodyBadCRLF(t *testing.T) {
	_, _, _, err := ParseChunkedBody([]byte("3\r\nabcXX"), 0)
	if err == nil || pionerr.IsErrIncomplete(err) {
		t.Fatalf("want parse error, got %v", err)
	}
}
