// Package transport defines the narrow interface the mesh engine needs
// from whatever radio/stream library actually moves bytes between
// paired devices. Pairing, device enumeration, and the physical link
// are all external concerns; this package only describes the shape a
// plug-in adapter must have, plus a TCP-backed reference
// implementation used by tests and the local dev CLI.
package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

// ServiceID identifies the chat service on whatever transport carries
// it. Every node must advertise and dial the same id.
const ServiceID = "a1b2c3d4-e5f6-7890-abcd-ef1234567890"

// dialTimeout bounds outbound connect attempts.
const dialTimeout = 5 * time.Second

// PairedDevice is one entry from the transport's device enumeration.
type PairedDevice struct {
	Name    string
	Address string
}

// Stream is a bidirectional byte stream to one remote node. The
// transport is responsible for reporting the peer's *stable* device
// address — a radio library knows it from pairing; the TCP stand-in
// learns it through an identity exchange on connect.
type Stream interface {
	io.ReadWriteCloser
	RemoteAddress() string
	RemoteName() string
}

// Transport is the full set of services this engine requires from the
// plug-in radio/networking layer. Accept and Dial both yield a Stream
// once a connection is established; admission/deduplication of
// concurrent inbound and outbound streams to the same address is the
// connection manager's job (internal/link), not the transport's.
type Transport interface {
	// Accept blocks until an inbound stream arrives or ctx is done.
	Accept(ctx context.Context) (Stream, error)

	// Dial opens an outbound stream to addr. Implementations should
	// apply a short connect timeout.
	Dial(ctx context.Context, addr string) (Stream, error)

	// PairedDevices enumerates devices available to connect to.
	PairedDevices(ctx context.Context) ([]PairedDevice, error)

	// LocalIdentity returns this node's own device name and address as
	// reported by the transport, before normalization.
	LocalIdentity() (name, address string, err error)

	// Close shuts down the listener side of the transport.
	Close() error
}

// tcpStream adapts a net.Conn to Stream. remoteName/remoteAddr come
// from the identity exchange, not from the socket: an inbound TCP
// connection's RemoteAddr is an ephemeral client port, useless as a
// node identity.
type tcpStream struct {
	net.Conn
	remoteName string
	remoteAddr string
}

func (s *tcpStream) RemoteAddress() string { return s.remoteAddr }
func (s *tcpStream) RemoteName() string    { return s.remoteName }

// TCP is a reference Transport over plain TCP, standing in for the
// real paired-device radio library in tests and local multi-process
// runs.
type TCP struct {
	listenAddr string
	localName  string

	ln net.Listener
}

// NewTCP constructs a TCP transport that will listen on listenAddr
// (host:port) once Listen is called.
func NewTCP(listenAddr, localName string) *TCP {
	return &TCP{listenAddr: listenAddr, localName: localName}
}

// Listen opens the accept socket. Must be called before Accept.
func (t *TCP) Listen() error {
	ln, err := net.Listen("tcp", t.listenAddr)
	if err != nil {
		return err
	}
	t.ln = ln
	return nil
}

func (t *TCP) Accept(ctx context.Context) (Stream, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := t.ln.Accept()
		ch <- result{c, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		return t.exchangeIdentity(r.conn)
	}
}

func (t *TCP) Dial(ctx context.Context, addr string) (Stream, error) {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return t.exchangeIdentity(conn)
}

// exchangeIdentity runs the mutual hello both sides perform as soon as
// a TCP connection is up: each writes "<name>|<listenAddr>\n" and reads
// the peer's line. It gives inbound streams the same stable address the
// dialer would see, which is what the connection manager keys on.
func (t *TCP) exchangeIdentity(conn net.Conn) (Stream, error) {
	name, addr, _ := t.LocalIdentity()
	_ = conn.SetDeadline(time.Now().Add(dialTimeout))
	if _, err := fmt.Fprintf(conn, "%s|%s\n", name, addr); err != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: send identity: %w", err)
	}
	line, err := readIdentityLine(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: read identity: %w", err)
	}
	_ = conn.SetDeadline(time.Time{})

	remoteName, remoteAddr, ok := strings.Cut(line, "|")
	if !ok || remoteAddr == "" {
		conn.Close()
		return nil, fmt.Errorf("transport: malformed identity line %q", line)
	}
	return &tcpStream{Conn: conn, remoteName: remoteName, remoteAddr: remoteAddr}, nil
}

// maxIdentityLine bounds the hello so a garbage peer can't make us
// buffer forever.
const maxIdentityLine = 512

// readIdentityLine reads exactly one '\n'-terminated line, one byte at
// a time so nothing past the hello is consumed from the stream.
func readIdentityLine(conn net.Conn) (string, error) {
	var line []byte
	buf := make([]byte, 1)
	for len(line) < maxIdentityLine {
		if _, err := io.ReadFull(conn, buf); err != nil {
			return "", err
		}
		if buf[0] == '\n' {
			return string(line), nil
		}
		line = append(line, buf[0])
	}
	return "", fmt.Errorf("identity line exceeds %d bytes", maxIdentityLine)
}

func (t *TCP) PairedDevices(ctx context.Context) ([]PairedDevice, error) {
	// The TCP stand-in has no pairing database; callers connect by
	// address directly via Dial or the command surface's /connect.
	return nil, nil
}

func (t *TCP) LocalIdentity() (name, address string, err error) {
	addr := t.listenAddr
	if t.ln != nil {
		addr = t.ln.Addr().String()
	}
	return t.localName, addr, nil
}

func (t *TCP) Close() error {
	if t.ln == nil {
		return nil
	}
	return t.ln.Close()
}
