// Package gossip maintains each node's view of indirectly reachable
// peers and drives the periodic PEERS: announcement.
package gossip

import (
	"strings"
	"sync"
	"time"
)

// MeshPeer is one entry in the known-peers table. IsDirect is always
// false for anything stored here; a directly-connected address is
// never allowed into this table.
type MeshPeer struct {
	Nickname    string
	ViaAddress  string
	ViaNickname string
	LastSeen    time.Time
	IsDirect    bool
}

// Table is the address -> MeshPeer map, mutated only through its
// methods so concurrent readers and the gossip tick never race.
type Table struct {
	mu    sync.Mutex
	peers map[string]MeshPeer
}

func NewTable() *Table {
	return &Table{peers: make(map[string]MeshPeer)}
}

// Upsert inserts or overwrites the entry for addr. Callers are
// expected to have already excluded the local address and any
// directly-connected address; Upsert itself does not re-check those
// conditions, since it is also used to build test fixtures with fixed
// peers.
func (t *Table) Upsert(addr string, p MeshPeer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peers[addr] = p
}

// Get returns the entry for addr, if present.
func (t *Table) Get(addr string) (MeshPeer, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.peers[addr]
	return p, ok
}

// All returns a snapshot copy of the table (safe to range over while
// the table keeps mutating concurrently).
func (t *Table) All() map[string]MeshPeer {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]MeshPeer, len(t.peers))
	for k, v := range t.peers {
		out[k] = v
	}
	return out
}

// PruneDirect removes any entry whose address isConnected now reports
// as directly connected, run once per gossip tick. An address is
// never simultaneously a direct link and a mesh peer; direct presence
// shadows the indirect record.
func (t *Table) PruneDirect(isConnected func(addr string) bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for addr := range t.peers {
		if isConnected(addr) {
			delete(t.peers, addr)
		}
	}
}

// Ingest applies one "<nick>@<addr>" entry from a received PEERS:
// line, skipping the local address and anything directly connected.
// sourceAddr/sourceNick identify the direct peer the gossip line
// arrived from, used as the via-fields for a freshly-learned peer.
func Ingest(t *Table, entry, localAddr string, isConnected func(addr string) bool, sourceAddr, sourceNick string, now time.Time) {
	nick, addr, ok := ParsePeerEntry(entry)
	if !ok {
		return
	}
	if addr == localAddr {
		return
	}
	if isConnected(addr) {
		return
	}
	t.Upsert(addr, MeshPeer{
		Nickname:    nick,
		ViaAddress:  sourceAddr,
		ViaNickname: sourceNick,
		LastSeen:    now,
		IsDirect:    false,
	})
}

// ParsePeerEntry splits one "<nick>@<addr>" gossip entry on its last
// '@', so nicknames containing '@' still parse.
func ParsePeerEntry(entry string) (nick, addr string, ok bool) {
	at := strings.LastIndex(entry, "@")
	if at < 0 {
		return "", "", false
	}
	nick = entry[:at]
	addr = entry[at+1:]
	if addr == "" {
		return "", "", false
	}
	return nick, addr, true
}

// DirectEntry is one directly-connected peer as seen by the gossip
// broadcaster — just enough to render a "<nick>@<addr>" token.
type DirectEntry struct {
	Nickname string
	Address  string
}

// BuildBroadcast assembles the comma-separated PEERS: payload: the
// local identity, every direct link, and every known indirect peer.
// Duplicates across these groups are fine since recipients dedupe by
// address.
func (t *Table) BuildBroadcast(localNick, localAddr string, direct []DirectEntry) string {
	var parts []string
	parts = append(parts, localNick+"@"+localAddr)
	for _, d := range direct {
		parts = append(parts, d.Nickname+"@"+d.Address)
	}
	for addr, p := range t.All() {
		parts = append(parts, p.Nickname+"@"+addr)
	}
	return strings.Join(parts, ",")
}
