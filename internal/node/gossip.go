package node

import (
	"chatmesh/internal/frame"
	"chatmesh/internal/gossip"
)

// gossipTick runs one announcement cycle: prune any known-peer
// address that is now directly connected, then broadcast a fresh
// PEERS: line.
func (n *Node) gossipTick() {
	n.peers.PruneDirect(n.links.IsConnected)

	links := n.links.All()
	direct := make([]gossip.DirectEntry, 0, len(links))
	for _, l := range links {
		direct = append(direct, gossip.DirectEntry{Nickname: n.displayName(l), Address: l.RemoteAddress})
	}

	payload := n.peers.BuildBroadcast(n.LocalNickname(), n.localAddress, direct)
	n.links.BroadcastExcept("", frame.Encode(frame.TagPeers, payload))
	n.log.Debug().Int("known_peers", len(n.peers.All())).Msg("gossip tick")
}

// KnownPeers returns a snapshot of the indirect-peer table.
func (n *Node) KnownPeers() map[string]gossip.MeshPeer {
	return n.peers.All()
}
