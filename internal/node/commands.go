// Command-surface methods and the plain-text send path.
package node

import (
	"net/url"
	"sort"
	"time"

	"chatmesh/internal/events"
	"chatmesh/internal/frame"
)

// SendGlobal sends text to every active link as a plain MSG: frame —
// the sender assigns no relay id; direct recipients mint one when they
// re-broadcast — and renders it locally under the node's own nickname,
// so the originator sees its own line without any frame round-tripping
// back to it.
func (n *Node) SendGlobal(text string) {
	n.emit(events.Chat, events.ChatEvent{DisplayName: n.LocalNickname(), Content: text})
	n.links.BroadcastExcept("", frame.Encode(frame.TagMsg, text))
}

// SetTyping broadcasts a TYPING: signal to every active link.
func (n *Node) SetTyping(isTyping bool) {
	payload := "0"
	if isTyping {
		payload = "1"
	}
	n.links.BroadcastExcept("", frame.Encode(frame.TagTyping, payload))
}

// SetNick implements /nick: set the local nickname, broadcast it, and
// trigger an immediate gossip tick so peers learn the new name without
// waiting for the next 30s cycle.
func (n *Node) SetNick(nick string) {
	n.nickMu.Lock()
	n.localNick = nick
	n.nickMu.Unlock()
	n.links.BroadcastExcept("", frame.Encode(frame.TagNick, nick))
	n.gossipTick()
}

// DirectPeer is one entry in the /peers "direct links" section.
type DirectPeer struct {
	Address     string
	DisplayName string
	Direction   string
}

// PeersView is the full /peers output: direct links with direction,
// and mesh peers with their via-nickname.
type PeersView struct {
	Direct []DirectPeer
	Mesh   []MeshPeerView
}

type MeshPeerView struct {
	Address     string
	Nickname    string
	ViaNickname string
	ViaAddress  string
}

// Peers builds the /peers view.
func (n *Node) Peers() PeersView {
	var v PeersView
	for _, l := range n.links.All() {
		v.Direct = append(v.Direct, DirectPeer{
			Address:     l.RemoteAddress,
			DisplayName: n.displayName(l),
			Direction:   l.Direction.String(),
		})
	}
	sort.Slice(v.Direct, func(i, j int) bool { return v.Direct[i].Address < v.Direct[j].Address })

	for addr, p := range n.peers.All() {
		v.Mesh = append(v.Mesh, MeshPeerView{
			Address:     addr,
			Nickname:    p.Nickname,
			ViaNickname: p.ViaNickname,
			ViaAddress:  p.ViaAddress,
		})
	}
	sort.Slice(v.Mesh, func(i, j int) bool { return v.Mesh[i].Address < v.Mesh[j].Address })
	return v
}

// Contact is one address this node has ever seen — through a direct
// link, a NICK announcement, or gossip — with the last nickname and
// last-seen time. Unlike the live /peers view, entries here survive
// disconnects.
type Contact struct {
	Address  string
	Nickname string
	LastSeen time.Time
}

// touchContact upserts addr's contact entry, keeping the newest
// non-empty nickname.
func (n *Node) touchContact(addr, nick string) {
	n.contactsMu.Lock()
	defer n.contactsMu.Unlock()
	c := n.contacts[addr]
	if c == nil {
		c = &Contact{Address: addr}
		n.contacts[addr] = c
	}
	if nick != "" {
		c.Nickname = nick
	}
	c.LastSeen = time.Now()
}

// Contacts returns every contact ever recorded, sorted by address.
func (n *Node) Contacts() []Contact {
	n.contactsMu.Lock()
	defer n.contactsMu.Unlock()
	out := make([]Contact, 0, len(n.contacts))
	for _, c := range n.contacts {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// Link builds the shareable "chatmesh://<address>?nick=<nick>" URI a
// peer can copy to connect to this node directly.
func (n *Node) Link() string {
	u := &url.URL{Scheme: "chatmesh", Host: n.localAddress}
	q := url.Values{}
	q.Set("nick", n.LocalNickname())
	u.RawQuery = q.Encode()
	return u.String()
}
