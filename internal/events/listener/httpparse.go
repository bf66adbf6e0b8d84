package listener

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// ProtocolError describes an inbound request that violates the minimal HTTP
// contract. Status is the response code the connection should be rejected
// with.
type ProtocolError struct {
	Status int
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Reason)
}

// maxLineBytes bounds a single request or header line so a connection that
// never sends CRLF cannot grow the buffer without limit.
const maxLineBytes = 8192

// Request is a parsed inbound HTTP request. Header keys are lower-cased.
type Request struct {
	Method  string
	Target  string
	Proto   string
	Headers map[string]string
	Body    []byte
}

// Header returns the value for the lower-cased key, or "".
func (r *Request) Header(key string) string {
	return r.Headers[strings.ToLower(key)]
}

type parserState int

const (
	stateRequestLine parserState = iota
	stateHeaders
	stateBody
	stateChunkSize
	stateChunkData
	stateChunkDataEnd
	stateTrailer
	stateDone
)

// RequestParser is an incremental HTTP/1.1 request parser. The connection
// may deliver bytes at arbitrary fragment boundaries, so Feed accepts any
// chunk size and the parser resumes exactly where the previous call left
// off. It supports Content-Length and chunked bodies.
type RequestParser struct {
	state          parserState
	buf            []byte
	req            Request
	contentLength  int
	chunked        bool
	chunkRemaining int
	maxBody        int
	err            error
}

// NewRequestParser creates a parser that rejects bodies larger than maxBody
// bytes.
func NewRequestParser(maxBody int) *RequestParser {
	return &RequestParser{
		maxBody: maxBody,
		req:     Request{Headers: make(map[string]string)},
	}
}

// Request returns the parsed request. Only valid once Feed reported done.
func (p *RequestParser) Request() *Request {
	return &p.req
}

// Feed consumes the next fragment of bytes from the connection. It returns
// done=true once a complete request has been parsed. A returned error is
// terminal for the parser.
func (p *RequestParser) Feed(data []byte) (done bool, err error) {
	if p.err != nil {
		return false, p.err
	}
	p.buf = append(p.buf, data...)

	for {
		switch p.state {
		case stateRequestLine:
			line, ok, err := p.takeLine()
			if err != nil {
				return false, p.fail(err)
			}
			if !ok {
				return false, nil
			}
			if len(line) == 0 {
				// Tolerate a leading empty line, some stacks emit one
				// between keep-alive requests.
				continue
			}
			if err := p.parseRequestLine(line); err != nil {
				return false, p.fail(err)
			}
			p.state = stateHeaders

		case stateHeaders:
			line, ok, err := p.takeLine()
			if err != nil {
				return false, p.fail(err)
			}
			if !ok {
				return false, nil
			}
			if len(line) == 0 {
				if err := p.endOfHeaders(); err != nil {
					return false, p.fail(err)
				}
				if p.state == stateDone {
					return true, nil
				}
				continue
			}
			if err := p.parseHeaderLine(line); err != nil {
				return false, p.fail(err)
			}

		case stateBody:
			need := p.contentLength - len(p.req.Body)
			take := need
			if take > len(p.buf) {
				take = len(p.buf)
			}
			p.req.Body = append(p.req.Body, p.buf[:take]...)
			p.buf = p.buf[take:]
			if len(p.req.Body) == p.contentLength {
				p.state = stateDone
				return true, nil
			}
			return false, nil

		case stateChunkSize:
			line, ok, err := p.takeLine()
			if err != nil {
				return false, p.fail(err)
			}
			if !ok {
				return false, nil
			}
			size, err := parseChunkSize(line)
			if err != nil {
				return false, p.fail(err)
			}
			if size == 0 {
				p.state = stateTrailer
				continue
			}
			if len(p.req.Body)+size > p.maxBody {
				return false, p.fail(&ProtocolError{Status: 413, Reason: "body exceeds limit"})
			}
			p.chunkRemaining = size
			p.state = stateChunkData

		case stateChunkData:
			take := p.chunkRemaining
			if take > len(p.buf) {
				take = len(p.buf)
			}
			p.req.Body = append(p.req.Body, p.buf[:take]...)
			p.buf = p.buf[take:]
			p.chunkRemaining -= take
			if p.chunkRemaining == 0 {
				p.state = stateChunkDataEnd
				continue
			}
			return false, nil

		case stateChunkDataEnd:
			if len(p.buf) < 2 {
				return false, nil
			}
			if !bytes.Equal(p.buf[:2], []byte("\r\n")) {
				return false, p.fail(&ProtocolError{Status: 400, Reason: "missing chunk terminator"})
			}
			p.buf = p.buf[2:]
			p.state = stateChunkSize

		case stateTrailer:
			line, ok, err := p.takeLine()
			if err != nil {
				return false, p.fail(err)
			}
			if !ok {
				return false, nil
			}
			if len(line) == 0 {
				p.state = stateDone
				return true, nil
			}
			// Trailer headers are ignored.

		case stateDone:
			return true, nil
		}
	}
}

func (p *RequestParser) fail(err error) error {
	p.err = err
	return err
}

// takeLine consumes one CRLF-terminated line from the buffer. ok is false
// when the line is still incomplete.
func (p *RequestParser) takeLine() (line []byte, ok bool, err error) {
	idx := bytes.Index(p.buf, []byte("\r\n"))
	if idx < 0 {
		if len(p.buf) > maxLineBytes {
			return nil, false, &ProtocolError{Status: 400, Reason: "line too long"}
		}
		return nil, false, nil
	}
	if idx > maxLineBytes {
		return nil, false, &ProtocolError{Status: 400, Reason: "line too long"}
	}
	line = p.buf[:idx]
	p.buf = p.buf[idx+2:]
	return line, true, nil
}

func (p *RequestParser) parseRequestLine(line []byte) error {
	parts := strings.Split(string(line), " ")
	if len(parts) != 3 {
		return &ProtocolError{Status: 400, Reason: "malformed request line"}
	}
	if !strings.HasPrefix(parts[2], "HTTP/1.") {
		return &ProtocolError{Status: 400, Reason: "unsupported protocol"}
	}
	p.req.Method = parts[0]
	p.req.Target = parts[1]
	p.req.Proto = parts[2]
	return nil
}

func (p *RequestParser) parseHeaderLine(line []byte) error {
	idx := bytes.IndexByte(line, ':')
	if idx <= 0 {
		return &ProtocolError{Status: 400, Reason: "malformed header line"}
	}
	key := strings.ToLower(strings.TrimSpace(string(line[:idx])))
	value := strings.TrimSpace(string(line[idx+1:]))
	p.req.Headers[key] = value
	return nil
}

// endOfHeaders decides the body framing once the blank line arrives.
func (p *RequestParser) endOfHeaders() error {
	if te := p.req.Headers["transfer-encoding"]; te != "" {
		if !strings.EqualFold(te, "chunked") {
			return &ProtocolError{Status: 400, Reason: "unsupported transfer encoding"}
		}
		p.chunked = true
		p.state = stateChunkSize
		return nil
	}

	cl := p.req.Headers["content-length"]
	if cl == "" {
		p.state = stateDone
		return nil
	}
	length, err := strconv.Atoi(cl)
	if err != nil || length < 0 {
		return &ProtocolError{Status: 400, Reason: "invalid content-length"}
	}
	if length > p.maxBody {
		return &ProtocolError{Status: 413, Reason: "body exceeds limit"}
	}
	p.contentLength = length
	if length == 0 {
		p.state = stateDone
		return nil
	}
	p.state = stateBody
	return nil
}

func parseChunkSize(line []byte) (int, error) {
	s := string(line)
	// Chunk extensions after ';' are legal, drop them.
	if idx := strings.IndexByte(s, ';'); idx >= 0 {
		s = s[:idx]
	}
	size, err := strconv.ParseInt(strings.TrimSpace(s), 16, 32)
	if err != nil || size < 0 {
		return 0, &ProtocolError{Status: 400, Reason: "invalid chunk size"}
	}
	return int(size), nil
}
