package listener

import (
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"time"
)

// Notification is a validated NOTIFY request, ready for dispatch.
type Notification struct {
	SID  string
	Seq  uint32
	Path string
	Body []byte
}

// NotifyFunc receives validated notifications. It is called after the
// acknowledgement has been written, on the connection's own goroutine.
type NotifyFunc func(Notification)

const (
	readTimeout     = 30 * time.Second
	readbufferBytes = 4096
)

// Listener is the embedded callback server for UPnP NOTIFY requests. It
// reads raw connections through the incremental request parser rather than
// an HTTP framework: devices fragment requests arbitrarily and we only need
// this one method.
type Listener struct {
	ln      net.Listener
	maxBody int
	notify  NotifyFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// Listen binds addr and starts accepting connections. The bound address is
// held until Close.
func Listen(addr string, maxBody int, notify NotifyFunc) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind callback listener: %w", err)
	}

	l := &Listener{
		ln:      ln,
		maxBody: maxBody,
		notify:  notify,
	}

	l.wg.Add(1)
	go l.acceptLoop()

	log.Printf("LISTENER: Accepting NOTIFY callbacks on %s", ln.Addr())
	return l, nil
}

// Addr returns the actual bound address, useful when addr requested port 0.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close releases the bound address and waits for in-flight connections.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	err := l.ln.Close()
	l.wg.Wait()
	return err
}

func (l *Listener) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *Listener) acceptLoop() {
	defer l.wg.Done()
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if l.isClosed() {
				return
			}
			log.Printf("LISTENER: Accept error: %v", err)
			return
		}
		// Each connection gets its own goroutine so one slow device cannot
		// serialize the others behind it.
		l.wg.Add(1)
		go l.serveConn(conn)
	}
}

func (l *Listener) serveConn(conn net.Conn) {
	defer l.wg.Done()
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(readTimeout))

	parser := NewRequestParser(l.maxBody)
	buf := make([]byte, readbufferBytes)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			done, perr := parser.Feed(buf[:n])
			if perr != nil {
				status := 400
				if pe, ok := perr.(*ProtocolError); ok {
					status = pe.Status
				}
				log.Printf("LISTENER: Rejecting connection from %s: %v", conn.RemoteAddr(), perr)
				writeResponse(conn, status)
				return
			}
			if done {
				l.handleRequest(conn, parser.Request())
				return
			}
		}
		if err != nil {
			// Connection dropped mid-request. Nothing to answer.
			return
		}
	}
}

// handleRequest validates the parsed request, acknowledges it, and hands the
// notification off. Validation order: method, then required headers, then
// body presence.
func (l *Listener) handleRequest(conn net.Conn, req *Request) {
	if req.Method != "NOTIFY" {
		writeResponse(conn, 405)
		return
	}

	sid := req.Header("SID")
	seqHeader := req.Header("SEQ")
	if req.Header("NT") != "upnp:event" || req.Header("NTS") != "upnp:propchange" {
		writeResponse(conn, 400)
		return
	}
	if sid == "" || seqHeader == "" {
		writeResponse(conn, 400)
		return
	}
	seq, err := strconv.ParseUint(seqHeader, 10, 32)
	if err != nil {
		writeResponse(conn, 400)
		return
	}
	if len(req.Body) == 0 {
		writeResponse(conn, 400)
		return
	}

	// The device only wants an acknowledgement; send it before dispatch so
	// decode problems downstream never stall the device's event queue.
	writeResponse(conn, 200)

	if l.notify != nil {
		l.notify(Notification{
			SID:  sid,
			Seq:  uint32(seq),
			Path: req.Target,
			Body: req.Body,
		})
	}
}

var statusReasons = map[int]string{
	200: "OK",
	400: "Bad Request",
	405: "Method Not Allowed",
	413: "Payload Too Large",
}

func writeResponse(conn net.Conn, status int) {
	reason := statusReasons[status]
	if reason == "" {
		reason = "Error"
	}
	fmt.Fprintf(conn, "HTTP/1.1 %d %s\r\nContent-Length: 0\r\nConnection: close\r\n\r\n", status, reason)
}
