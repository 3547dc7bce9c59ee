package node

import (
	"strings"
	"time"

	"chatmesh/internal/events"
	"chatmesh/internal/frame"
	"chatmesh/internal/gossip"
	"chatmesh/internal/link"
	"chatmesh/internal/mesh"
)

// typingClearDelay is how long a TYPING:1 signal stays raised before
// this node auto-lowers it locally.
const typingClearDelay = 3 * time.Second

// dispatch routes one decoded frame to its handler.
func (n *Node) dispatch(l *link.Link, f frame.Frame) {
	switch f.Tag {
	case frame.TagMsg:
		n.handleMsg(l, f.Payload)
	case frame.TagRelay:
		n.handleRelayFrame(l, f.Payload)
	case frame.TagPeers:
		n.handlePeers(l, f.Payload)
	case frame.TagTyping:
		n.handleTyping(l, f.Payload)
	case frame.TagNick:
		n.handleNick(l, f.Payload)
	case frame.TagFStart:
		n.handleFStart(l, f.Payload)
	case frame.TagFChunk:
		n.handleFChunk(l, f.Payload)
	case frame.TagFEnd:
		n.handleFEnd(l, f.Payload)
	case frame.TagRaw:
		// Legacy fallback: surface as raw text under the peer's
		// display name.
		n.emit(events.Chat, events.ChatEvent{
			DisplayName: n.displayName(l),
			Content:     f.Payload,
			Timestamp:   time.Now(),
		})
	}
}

// handleMsg renders a direct chat line locally, then re-emits it with
// fresh relay metadata to every link but the source.
func (n *Node) handleMsg(l *link.Link, content string) {
	display := n.displayName(l)
	n.emit(events.Chat, events.ChatEvent{DisplayName: display, Content: content, Timestamp: time.Now()})

	rec := mesh.UpgradeToRelay(mesh.NewMessageID(), l.RemoteAddress, display, content)
	n.links.BroadcastExcept(l.RemoteAddress, frame.Encode(frame.TagRelay, rec.Encode()))
}

// handleRelayFrame parses and evaluates a RELAY: frame.
func (n *Node) handleRelayFrame(l *link.Link, payload string) {
	rec, ok := mesh.ParseRelay(payload)
	if !ok {
		n.log.Debug().Str("addr", l.RemoteAddress).Msg("relay parse error")
		n.emit(events.System, events.SystemEvent{Text: "[ERROR] Relay parse error:"})
		return
	}

	d := mesh.Evaluate(n.seen, rec, n.localAddress, l.RemoteAddress, time.Now())
	if d.Drop {
		return
	}
	if d.Deliver {
		n.emit(events.Chat, events.ChatEvent{
			DisplayName: rec.FromNick,
			Content:     rec.Content,
			ViaMesh:     d.ViaMesh,
			Timestamp:   time.Now(),
		})
	}
	if d.Forward {
		n.links.BroadcastExcept(l.RemoteAddress, frame.Encode(frame.TagRelay, d.Forwarded.Encode()))
	}
}

// handlePeers ingests one PEERS: line.
func (n *Node) handlePeers(l *link.Link, payload string) {
	now := time.Now()
	sourceNick := n.displayName(l)
	for _, entry := range strings.Split(payload, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if nick, addr, ok := gossip.ParsePeerEntry(entry); ok && addr != n.localAddress {
			n.touchContact(addr, nick)
		}
		gossip.Ingest(n.peers, entry, n.localAddress, n.links.IsConnected, l.RemoteAddress, sourceNick, now)
	}
}

// handleTyping raises/lowers the transient typing signal for l,
// scheduling the auto-clear.
func (n *Node) handleTyping(l *link.Link, payload string) {
	isTyping := payload == "1"
	n.emit(events.Typing, events.TypingEvent{PeerAddress: l.RemoteAddress, IsTyping: isTyping})

	n.typingMu.Lock()
	defer n.typingMu.Unlock()
	if t, ok := n.typingTimers[l.RemoteAddress]; ok {
		t.Stop()
		delete(n.typingTimers, l.RemoteAddress)
	}
	if isTyping {
		n.typingTimers[l.RemoteAddress] = time.AfterFunc(typingClearDelay, func() {
			n.emit(events.Typing, events.TypingEvent{PeerAddress: l.RemoteAddress, IsTyping: false})
			n.typingMu.Lock()
			delete(n.typingTimers, l.RemoteAddress)
			n.typingMu.Unlock()
		})
	}
}

// handleNick updates the remote nickname table.
func (n *Node) handleNick(l *link.Link, nickname string) {
	n.nicknamesMu.Lock()
	n.nicknames[l.RemoteAddress] = nickname
	n.nicknamesMu.Unlock()
	n.touchContact(l.RemoteAddress, nickname)
	n.emit(events.Nick, events.NickEvent{PeerAddress: l.RemoteAddress, Nickname: nickname})
	n.emit(events.System, events.SystemEvent{Text: "[NICK] " + l.RemoteAddress + " is now " + nickname})
}
