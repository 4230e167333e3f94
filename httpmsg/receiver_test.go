package httpmsg

import "testing"

func TestKeepAlive(t *testing.T) {
	tests := []struct {
		name    string
		major   int
		minor   int
		headers HeaderList
		want    bool
	}{
		{"1.1 default", 1, 1, nil, true},
		{"1.1 connection close", 1, 1, HeaderList{{Name: "Connection", Value: "close"}}, false},
		{"1.0 default", 1, 0, nil, false},
		{"1.0 keep-alive", 1, 0, HeaderList{{Name: "Connection", Value: "keep-alive"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := keepAlive(tt.major, tt.minor, tt.headers); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseRequestFullFixedBody(t *testing.T) {
	raw := []byte("POST /echo HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\n\r\nhello")
	req, n, err := parseRequestFull(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != len(raw) {
		t.Errorf("consumed = %d, want %d", n, len(raw))
	}
	if req.Method != "POST" || req.Resource != "/echo" || string(req.Content) != "hello" {
		t.Errorf("got method=%q resource=%q content=%q", req.Method, req.Resource, req.Content)
	}
}

func TestParseRequestFullPipelinedLeavesRemainder(t *testing.T) {
	raw := []byte("GET /a HTTP/1.1\r\n\r\nGET /b HTTP/1.1\r\n\r\n")
	req, n, err := parseRequestFull(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Resource != "/a" {
		t.Errorf("resource = %q", req.Resource)
	}
	if n >= len(raw) {
		t.Fatalf("expected leftover bytes for pipelined request, consumed everything")
	}
	second, _, err := parseRequestFull(raw[n:])
	if err != nil {
		t.Fatalf("unexpected error parsing remainder: %v", err)
	}
	if second.Resource != "/b" {
		t.Errorf("resource = %q", second.Resource)
	}
}

func TestParseResponseFullImpliedEmpty(t *testing.T) {
	raw := []byte("HTTP/1.1 204 No Content\r\n\r\n")
	resp, n, err := parseResponseFull(raw, ResponseContext{RequestMajor: 1, RequestMinor: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != len(raw) || len(resp.Content) != 0 {
		t.Errorf("n=%d content=%q", n, resp.Content)
	}
}

func TestParseResponseFullHeadSuppressesBody(t *testing.T) {
	raw := []byte("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\n")
	resp, n, err := parseResponseFull(raw, ResponseContext{RequestMajor: 1, RequestMinor: 1, RequestMethodHead: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != len(raw) {
		t.Errorf("n = %d, want %d", n, len(raw))
	}
	if len(resp.Content) != 0 {
		t.Errorf("expected no body for HEAD response, got %q", resp.Content)
	}
}

func TestFinishEOFBody(t *testing.T) {
	raw := []byte("HTTP/1.0 200 OK\r\nContent-Type: text/plain\r\n\r\nhello world")
	resp, n, err := finishEOFBody(raw, ResponseContext{RequestMajor: 1, RequestMinor: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != len(raw) {
		t.Errorf("n = %d, want %d", n, len(raw))
	}
	if string(resp.Content) != "hello world" {
		t.Errorf("content = %q", resp.Content)
	}
}
