package httpmsg

import (
	"bytes"
	"strconv"

	"github.com/avgx/pion/pionerr"
)

// Open question (spec §9): header lines, chunk-size lines and trailer
// lines are all read by readLine and accept either CRLF or a bare LF.
// The line end that follows each chunk's data must be CRLF exactly.
const (
	maxHeaderLineBytes = 8192
	maxHeaderBytes     = 64 << 10
)

// indexByte finds sep in raw starting at start, or -1.
func indexByte(raw []byte, start int, sep byte) int {
	idx := bytes.IndexByte(raw[start:], sep)
	if idx == -1 {
		return -1
	}
	return start + idx
}

// readLine returns the line starting at start up to (not including) a
// terminating LF, with a CR just before the LF trimmed, and the offset
// just past the LF. Returns ok=false if no LF has arrived yet
// (Continue).
func readLine(raw []byte, start int) (line []byte, next int, ok bool) {
	lf := indexByte(raw, start, '\n')
	if lf == -1 {
		return nil, 0, false
	}
	end := lf
	if end > start && raw[end-1] == '\r' {
		end--
	}
	return raw[start:end], lf + 1, true
}

func isSP(b byte) bool { return b == ' ' || b == '\t' }

// parseVersion parses "HTTP/major.minor".
func parseVersion(tok []byte) (major, minor int, err error) {
	const prefix = "HTTP/"
	if len(tok) < len(prefix)+3 || string(tok[:len(prefix)]) != prefix {
		return 0, 0, pionerr.ParseError("malformed first line", nil)
	}
	rest := tok[len(prefix):]
	dot := bytes.IndexByte(rest, '.')
	if dot <= 0 || dot >= len(rest)-1 {
		return 0, 0, pionerr.ParseError("malformed first line", nil)
	}
	maj, err1 := strconv.Atoi(string(rest[:dot]))
	min, err2 := strconv.Atoi(string(rest[dot+1:]))
	if err1 != nil || err2 != nil {
		return 0, 0, pionerr.ParseError("malformed first line", nil)
	}
	return maj, min, nil
}

// ParseRequestLine parses the request line at the start of raw.
// Returns Continue (pionerr.ErrIncomplete) if no LF has arrived yet.
func ParseRequestLine(raw []byte) (method, resource, query, rawLine string, major, minor, consumed int, err error) {
	line, next, ok := readLine(raw, 0)
	if !ok {
		return "", "", "", "", 0, 0, 0, pionerr.ErrIncomplete
	}
	rawLine = string(line)

	sp1 := bytes.IndexByte(line, ' ')
	if sp1 <= 0 {
		return "", "", "", "", 0, 0, 0, pionerr.ParseError("malformed first line", nil)
	}
	rest := line[sp1+1:]
	sp2 := bytes.IndexByte(rest, ' ')
	if sp2 <= 0 {
		return "", "", "", "", 0, 0, 0, pionerr.ParseError("malformed first line", nil)
	}

	method = string(line[:sp1])
	target := rest[:sp2]
	if q := bytes.IndexByte(target, '?'); q >= 0 {
		resource = string(target[:q])
		query = string(target[q+1:])
	} else {
		resource = string(target)
	}

	maj, min, verr := parseVersion(rest[sp2+1:])
	if verr != nil {
		return "", "", "", "", 0, 0, 0, verr
	}
	return method, resource, query, rawLine, maj, min, next, nil
}

// ParseStatusLine parses the status line at the start of raw.
func ParseStatusLine(raw []byte) (major, minor, status int, message string, consumed int, err error) {
	line, next, ok := readLine(raw, 0)
	if !ok {
		return 0, 0, 0, "", 0, pionerr.ErrIncomplete
	}
	sp1 := bytes.IndexByte(line, ' ')
	if sp1 <= 0 {
		return 0, 0, 0, "", 0, pionerr.ParseError("malformed first line", nil)
	}
	maj, min, verr := parseVersion(line[:sp1])
	if verr != nil {
		return 0, 0, 0, "", 0, verr
	}
	rest := line[sp1+1:]
	sp2 := bytes.IndexByte(rest, ' ')
	var codeTok []byte
	if sp2 < 0 {
		codeTok = rest
		message = ""
	} else {
		codeTok = rest[:sp2]
		message = string(rest[sp2+1:])
	}
	code, aerr := strconv.Atoi(string(codeTok))
	if aerr != nil {
		return 0, 0, 0, "", 0, pionerr.ParseError("malformed first line", nil)
	}
	return maj, min, code, message, next, nil
}

// ParseHeaders parses header lines starting at raw[start:] up to and
// including the blank-line terminator, applying folding (a
// continuation line starting with SP/HT is appended to the previous
// header's value with a single space) and the size caps from spec
// §4.3. Returns Continue if the blank line hasn't arrived yet.
func ParseHeaders(raw []byte, start int) (headers HeaderList, consumed int, err error) {
	pos := start
	sectionStart := start
	for {
		if pos+1 < len(raw) && raw[pos] == '\r' && raw[pos+1] == '\n' {
			pos += 2
			return headers, pos - start, nil
		}
		if pos < len(raw) && raw[pos] == '\n' {
			pos++
			return headers, pos - start, nil
		}

		line, next, ok := readLine(raw, pos)
		if !ok {
			if len(raw)-pos > maxHeaderLineBytes {
				return nil, 0, pionerr.ParseError("oversize", nil)
			}
			return nil, 0, pionerr.ErrIncomplete
		}
		if len(line) > maxHeaderLineBytes {
			return nil, 0, pionerr.ParseError("oversize", nil)
		}
		if next-sectionStart > maxHeaderBytes {
			return nil, 0, pionerr.ParseError("oversize", nil)
		}

		if len(line) > 0 && isSP(line[0]) && len(headers) > 0 {
			// Continuation line: fold into the previous header's value.
			last := &headers[len(headers)-1]
			last.Value += " " + string(bytes.TrimSpace(line))
			pos = next
			continue
		}

		colon := bytes.IndexByte(line, ':')
		if colon <= 0 {
			return nil, 0, pionerr.ParseError("bad header", nil)
		}
		name := string(bytes.TrimSpace(line[:colon]))
		value := string(bytes.TrimSpace(line[colon+1:]))
		headers = append(headers, Header{Name: name, Value: value})
		pos = next
	}
}

// BodyStrategy names which of spec §4.3's body strategies applies.
type BodyStrategy int

const (
	BodyNone BodyStrategy = iota
	BodyFixed
	BodyChunked
	BodyEOF
)

// DetermineBodyStrategy applies spec §4.3's body-strategy rules given
// the parsed headers and whether the message is implied-empty.
func DetermineBodyStrategy(headers HeaderList, impliedEmpty bool, isResponse bool) (BodyStrategy, int, error) {
	if impliedEmpty {
		return BodyNone, 0, nil
	}
	if headers.HasToken("Transfer-Encoding", "chunked") {
		return BodyChunked, 0, nil
	}
	if cl, ok := headers.Get("Content-Length"); ok {
		n, err := strconv.Atoi(cl)
		if err != nil || n < 0 {
			return BodyNone, 0, pionerr.ParseError("bad content-length", err)
		}
		return BodyFixed, n, nil
	}
	if isResponse {
		return BodyEOF, 0, nil
	}
	return BodyNone, 0, nil
}

// ParseFixedBody extracts exactly n bytes of body starting at
// raw[start:], or Continue if they haven't all arrived.
func ParseFixedBody(raw []byte, start, n int) (content []byte, consumed int, err error) {
	if start+n > len(raw) {
		return nil, 0, pionerr.ErrIncomplete
	}
	content = make([]byte, n)
	copy(content, raw[start:start+n])
	return content, n, nil
}

// ParseChunkedBody parses a full chunked body (spec §4.3's
// CHUNK_SIZE -> CHUNK_DATA -> CHUNK_TRAILER loop), grounded on
// Sharpe-x-httpd/httpd/chunk.go's chunk reader, generalized from a
// streaming io.Reader to pion's whole-buffer re-parse style. Chunk
// extensions after the size (";...") are ignored through the next
// CRLF, and a non-empty trailer section is parsed as ordinary
// headers and merged into trailers.
func ParseChunkedBody(raw []byte, start int) (content []byte, trailers HeaderList, consumed int, err error) {
	pos := start
	var body []byte
	for {
		line, next, ok := readLine(raw, pos)
		if !ok {
			return nil, nil, 0, pionerr.ErrIncomplete
		}
		sizeTok := line
		if semi := bytes.IndexByte(line, ';'); semi >= 0 {
			sizeTok = line[:semi]
		}
		sizeTok = bytes.TrimSpace(sizeTok)
		size, perr := strconv.ParseInt(string(sizeTok), 16, 64)
		if perr != nil || size < 0 {
			return nil, nil, 0, pionerr.ParseError("bad chunk", perr)
		}
		pos = next

		if size == 0 {
			trailers, tn, terr := ParseHeaders(raw, pos)
			if terr != nil {
				return nil, nil, 0, terr
			}
			pos += tn
			return body, trailers, pos - start, nil
		}

		end := pos + int(size)
		if end+2 > len(raw) {
			return nil, nil, 0, pionerr.ErrIncomplete
		}
		if raw[end] != '\r' || raw[end+1] != '\n' {
			return nil, nil, 0, pionerr.ParseError("bad chunk", nil)
		}
		body = append(body, raw[pos:end]...)
		pos = end + 2
	}
}
