// Package node ties every component together into the per-process
// mesh participant: the identity, the connection manager, the
// seen-id/known-peers/incoming-transfer tables, and the read loops
// and command handlers that drive them.
package node

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chatmesh/internal/address"
	"chatmesh/internal/events"
	"chatmesh/internal/filetransfer"
	"chatmesh/internal/frame"
	"chatmesh/internal/gossip"
	"chatmesh/internal/link"
	"chatmesh/internal/mesh"
	"chatmesh/internal/transport"
)

// readBufSize bounds one Stream.Read call. File chunk lines run up to
// roughly 22KB (base64 of a 16KB chunk plus header); this leaves
// ample room without imposing a frame-length cap of its own.
const readBufSize = 64 * 1024

// Node is one mesh participant: simultaneously a server (accepting
// inbound streams) and a client (dialing outbound streams).
type Node struct {
	localAddress string

	nickMu   sync.Mutex
	localNick string

	transport   transport.Transport
	links       *link.Manager
	seen        *mesh.SeenSet
	peers       *gossip.Table
	rx          *filetransfer.Table
	downloadDir string

	nicknamesMu sync.Mutex
	nicknames   map[string]string // remote_address -> last announced NICK

	typingMu     sync.Mutex
	typingTimers map[string]*time.Timer

	contactsMu sync.Mutex
	contacts   map[string]*Contact

	log     zerolog.Logger
	handler events.Handler

	cancel context.CancelFunc
}

// New constructs a Node around t. t.LocalIdentity supplies the local
// device name/address; localNick is the initial nickname, defaulting
// to the device-reported name when empty.
func New(t transport.Transport, localNick, downloadDir string, log zerolog.Logger, handler events.Handler) (*Node, error) {
	deviceName, rawAddr, err := t.LocalIdentity()
	if err != nil {
		return nil, fmt.Errorf("node: local identity: %w", err)
	}
	if localNick == "" {
		localNick = deviceName
	}
	if handler == nil {
		handler = events.Noop
	}
	return &Node{
		localAddress: address.Normalize(rawAddr),
		localNick:    localNick,
		transport:    t,
		links:        link.NewManager(),
		seen:         mesh.NewSeenSet(),
		peers:        gossip.NewTable(),
		rx:           filetransfer.NewTable(),
		downloadDir:  downloadDir,
		nicknames:    make(map[string]string),
		typingTimers: make(map[string]*time.Timer),
		contacts:     make(map[string]*Contact),
		log:          log,
		handler:      handler,
	}, nil
}

// LocalAddress returns this node's own normalized address.
func (n *Node) LocalAddress() string { return n.localAddress }

// LocalNickname returns the current local nickname.
func (n *Node) LocalNickname() string {
	n.nickMu.Lock()
	defer n.nickMu.Unlock()
	return n.localNick
}

// SetEventHandler installs the callback that receives every UI-facing
// signal the core produces. Safe to call once, before Run.
func (n *Node) SetEventHandler(handler events.Handler) {
	if handler == nil {
		handler = events.Noop
	}
	n.handler = handler
}

func (n *Node) emit(typ events.Type, data interface{}) {
	n.handler(typ, data)
}

// Run starts the accept loop and the gossip ticker; it blocks until
// ctx is cancelled.
func (n *Node) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	defer cancel()

	go gossip.Run(ctx, n.gossipTick)

	for {
		stream, err := n.transport.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			n.log.Error().Err(err).Msg("accept failed")
			continue
		}
		go n.admit(stream, link.Inbound)
	}
}

// Shutdown cancels the accept loop and gossip ticker, then tears down
// every active link.
func (n *Node) Shutdown() {
	if n.cancel != nil {
		n.cancel()
	}
	for _, l := range n.links.All() {
		n.teardown(l)
	}
	_ = n.transport.Close()
}

// Connect dials addr and admits the resulting stream as an outbound
// link.
func (n *Node) Connect(ctx context.Context, addr string) error {
	stream, err := n.transport.Dial(ctx, addr)
	if err != nil {
		n.emit(events.Error, events.ErrorEvent{Err: fmt.Errorf("connect %s: %w", addr, err)})
		return err
	}
	n.admit(stream, link.Outbound)
	return nil
}

// admit runs the two-step admission commit and, on success, announces
// the local nickname to the new link and starts its read loop.
func (n *Node) admit(stream transport.Stream, dir link.Direction) {
	addr := address.Normalize(stream.RemoteAddress())
	if addr == n.localAddress || addr == "" {
		_ = stream.Close()
		return
	}

	l := &link.Link{
		RemoteAddress:    addr,
		RemoteDeviceName: stream.RemoteName(),
		Direction:        dir,
		Stream:           stream,
	}

	if !n.links.Admit(addr, l) {
		_ = stream.Close()
		n.log.Info().Str("addr", addr).Msg("duplicate connection, closing")
		n.emit(events.System, events.SystemEvent{Text: "[LINK] Duplicate connection"})
		return
	}

	n.touchContact(addr, stream.RemoteName())
	n.log.Info().Str("addr", addr).Str("dir", dir.String()).Msg("link up")
	n.emit(events.LinkUp, events.LinkEvent{Address: addr, Direction: dir.String(), ActiveLinks: n.links.Count()})

	_ = l.Send(frame.Encode(frame.TagNick, n.LocalNickname()))

	go n.readLoop(l)
}

// teardown removes the link from the connection manager, forgets its
// announced nickname, and closes its stream.
func (n *Node) teardown(l *link.Link) {
	if _, ok := n.links.Remove(l.RemoteAddress); !ok {
		return
	}
	n.nicknamesMu.Lock()
	delete(n.nicknames, l.RemoteAddress)
	n.nicknamesMu.Unlock()
	_ = l.Stream.Close()
	n.log.Info().Str("addr", l.RemoteAddress).Msg("link down")
	n.emit(events.LinkDown, events.LinkEvent{Address: l.RemoteAddress, Direction: l.Direction.String(), ActiveLinks: n.links.Count()})
}

// readLoop owns l's decode buffer exclusively and dispatches every
// frame it decodes until the stream errors or hits EOF, which tears
// down that link only.
func (n *Node) readLoop(l *link.Link) {
	buf := make([]byte, readBufSize)
	for {
		nr, err := l.Stream.Read(buf)
		if nr > 0 {
			for _, f := range l.Decoder.Feed(buf[:nr]) {
				n.dispatch(l, f)
			}
		}
		if err != nil {
			n.teardown(l)
			return
		}
	}
}

// displayName resolves the peer's current nickname, falling back to
// the transport-reported device name.
func (n *Node) displayName(l *link.Link) string {
	n.nicknamesMu.Lock()
	defer n.nicknamesMu.Unlock()
	if nick, ok := n.nicknames[l.RemoteAddress]; ok && nick != "" {
		return nick
	}
	return l.RemoteDeviceName
}
