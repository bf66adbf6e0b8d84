package listener

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleNotify = "NOTIFY /notify/abc HTTP/1.1\r\n" +
	"HOST: 192.168.1.50:3400\r\n" +
	"CONTENT-TYPE: text/xml; charset=\"utf-8\"\r\n" +
	"NT: upnp:event\r\n" +
	"NTS: upnp:propchange\r\n" +
	"SID: uuid:RINCON_0001\r\n" +
	"SEQ: 7\r\n" +
	"CONTENT-LENGTH: 11\r\n" +
	"\r\n" +
	"hello world"

func requireSampleRequest(t *testing.T, req *Request) {
	t.Helper()
	require.Equal(t, "NOTIFY", req.Method)
	require.Equal(t, "/notify/abc", req.Target)
	require.Equal(t, "HTTP/1.1", req.Proto)
	require.Equal(t, "uuid:RINCON_0001", req.Header("SID"))
	require.Equal(t, "7", req.Header("seq"))
	require.Equal(t, "hello world", string(req.Body))
}

func TestRequestParser_SingleFeed(t *testing.T) {
	parser := NewRequestParser(1 << 20)

	done, err := parser.Feed([]byte(sampleNotify))

	require.NoError(t, err)
	require.True(t, done)
	requireSampleRequest(t, parser.Request())
}

func TestRequestParser_ByteAtATime(t *testing.T) {
	parser := NewRequestParser(1 << 20)

	var done bool
	var err error
	for i := 0; i < len(sampleNotify); i++ {
		done, err = parser.Feed([]byte{sampleNotify[i]})
		require.NoError(t, err)
		if i < len(sampleNotify)-1 {
			require.False(t, done, "done early at byte %d", i)
		}
	}

	require.True(t, done)
	requireSampleRequest(t, parser.Request())
}

func TestRequestParser_SplitAcrossArbitraryBoundaries(t *testing.T) {
	// Boundaries chosen to land mid request-line, mid header value, right
	// after the blank line, and mid body.
	for _, cut := range []int{3, 40, len(sampleNotify) - 11, len(sampleNotify) - 5} {
		parser := NewRequestParser(1 << 20)

		done, err := parser.Feed([]byte(sampleNotify[:cut]))
		require.NoError(t, err)
		require.False(t, done, "cut at %d", cut)

		done, err = parser.Feed([]byte(sampleNotify[cut:]))
		require.NoError(t, err)
		require.True(t, done, "cut at %d", cut)
		requireSampleRequest(t, parser.Request())
	}
}

func TestRequestParser_ChunkedBody(t *testing.T) {
	raw := "NOTIFY /notify/abc HTTP/1.1\r\n" +
		"TRANSFER-ENCODING: chunked\r\n" +
		"\r\n" +
		"5\r\nhello\r\n" +
		"6;ext=1\r\n world\r\n" +
		"0\r\n\r\n"
	parser := NewRequestParser(1 << 20)

	// Split mid-chunk to exercise resumption inside chunk data.
	done, err := parser.Feed([]byte(raw[:64]))
	require.NoError(t, err)
	require.False(t, done)

	done, err = parser.Feed([]byte(raw[64:]))
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, "hello world", string(parser.Request().Body))
}

func TestRequestParser_NoBody(t *testing.T) {
	parser := NewRequestParser(1 << 20)

	done, err := parser.Feed([]byte("GET /health HTTP/1.1\r\nHOST: x\r\n\r\n"))

	require.NoError(t, err)
	require.True(t, done)
	require.Empty(t, parser.Request().Body)
}

func TestRequestParser_BodyTooLarge(t *testing.T) {
	parser := NewRequestParser(16)

	_, err := parser.Feed([]byte("NOTIFY / HTTP/1.1\r\nCONTENT-LENGTH: 17\r\n\r\n"))

	protoErr, ok := err.(*ProtocolError)
	require.True(t, ok, "expected *ProtocolError, got %T: %v", err, err)
	require.Equal(t, 413, protoErr.Status)
}

func TestRequestParser_ChunkedBodyTooLarge(t *testing.T) {
	parser := NewRequestParser(8)

	_, err := parser.Feed([]byte("NOTIFY / HTTP/1.1\r\nTRANSFER-ENCODING: chunked\r\n\r\n9\r\n"))

	protoErr, ok := err.(*ProtocolError)
	require.True(t, ok)
	require.Equal(t, 413, protoErr.Status)
}

func TestRequestParser_MalformedInput(t *testing.T) {
	cases := map[string]string{
		"bad request line":   "NOTIFY HTTP/1.1\r\n",
		"bad protocol":       "NOTIFY / SPDY/3\r\n",
		"bad header":         "NOTIFY / HTTP/1.1\r\nno-colon-here\r\n",
		"bad content length": "NOTIFY / HTTP/1.1\r\nCONTENT-LENGTH: abc\r\n\r\n",
		"bad chunk size":     "NOTIFY / HTTP/1.1\r\nTRANSFER-ENCODING: chunked\r\n\r\nzz\r\n",
		"bad transfer enc":   "NOTIFY / HTTP/1.1\r\nTRANSFER-ENCODING: gzip\r\n\r\n",
	}

	for name, raw := range cases {
		parser := NewRequestParser(1 << 20)
		_, err := parser.Feed([]byte(raw))
		protoErr, ok := err.(*ProtocolError)
		require.True(t, ok, "case %q: expected *ProtocolError, got %T: %v", name, err, err)
		require.Equal(t, 400, protoErr.Status, "case %q", name)
	}
}

func TestRequestParser_LineTooLong(t *testing.T) {
	parser := NewRequestParser(1 << 20)

	_, err := parser.Feed([]byte("NOTIFY /" + strings.Repeat("a", maxLineBytes+1)))

	protoErr, ok := err.(*ProtocolError)
	require.True(t, ok)
	require.Equal(t, 400, protoErr.Status)
}

func TestRequestParser_CompleteLineTooLong(t *testing.T) {
	parser := NewRequestParser(1 << 20)

	// The whole over-long line arrives in one feed, terminator included.
	// The cap applies even though a CRLF is in the buffer.
	raw := "NOTIFY /" + strings.Repeat("a", maxLineBytes+1) + " HTTP/1.1\r\n"
	_, err := parser.Feed([]byte(raw))

	protoErr, ok := err.(*ProtocolError)
	require.True(t, ok, "expected *ProtocolError, got %T: %v", err, err)
	require.Equal(t, 400, protoErr.Status)
}

func TestRequestParser_ErrorIsTerminal(t *testing.T) {
	parser := NewRequestParser(1 << 20)

	_, first := parser.Feed([]byte("garbage line\r\n"))
	require.Error(t, first)

	_, second := parser.Feed([]byte(sampleNotify))
	require.Equal(t, first, second)
}
