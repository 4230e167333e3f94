package httpmsg

import "testing"

func TestParseCookieHeader(t *testing.T) {
	headers := HeaderList{{Name: "Cookie", Value: "a=1; b=2"}, {Name: "Cookie", Value: "c=3"}}
	dst := make(map[string]string)
	ParseCookieHeader(headers, dst)
	want := map[string]string{"a": "1", "b": "2", "c": "3"}
	for k, v := range want {
		if dst[k] != v {
			t.Errorf("dst[%q] = %q, want %q", k, dst[k], v)
		}
	}
}

func TestSetCookieStringOmitsEmptyPath(t *testing.T) {
	c := SetCookie{Name: "sid", Value: "abc"}
	if got := c.String(); got != "sid=abc" {
		t.Errorf("got %q, want %q", got, "sid=abc")
	}
}

func TestSetCookieStringWithAttributes(t *testing.T) {
	c := SetCookie{Name: "sid", Value: "abc", Path: "/app", HasMax: true, MaxAge: 60}
	got := c.String()
	want := "sid=abc; Path=/app; Max-Age=60"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestAddSetCookie(t *testing.T) {
	r := &Response{}
	r.AddSetCookie(SetCookie{Name: "sid", Value: "abc"})
	v, ok := r.Headers.Get("Set-Cookie")
	if !ok || v != "sid=abc" {
		t.Errorf("Set-Cookie = %q, %v", v, ok)
	}
}
