// Package mesh implements the loop-free forwarding engine: a seen-id
// set with lazy TTL eviction, hop-count decay, and the
// parse/delivery/forward decision for each RELAY frame. The logic here
// is pure and table-driven so it can be tested without any network
// I/O; internal/node wires it to the link manager and the dispatcher.
package mesh

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MaxHopCount bounds the total traversal of any relay frame.
const MaxHopCount = 7

// SeenTTL is how long a message id is remembered before it is eligible
// for lazy eviction. The TTL only frees memory; the hop bound keeps
// forwarding finite on its own.
const SeenTTL = 5 * time.Minute

// RelayRecord is a parsed RELAY: payload. HopCount is kept as
// received; Evaluate interprets it after the loop guard has run, so
// even a record with a garbage hop count gets its id marked seen.
type RelayRecord struct {
	MessageID string
	FromAddr  string
	FromNick  string
	ToAddr    string // "*" for broadcast
	HopCount  string
	Content   string
}

// relayFields is the split limit: only the first five '|' separators
// are structural, so content may itself contain '|'.
const relayFields = 6

// ParseRelay parses a RELAY: payload. ok is false only when the
// payload has fewer than 6 fields; every other malformation (a hop
// count that isn't a number, say) is Evaluate's to judge, so the
// record still reaches the loop guard first.
func ParseRelay(payload string) (RelayRecord, bool) {
	parts := strings.SplitN(payload, "|", relayFields)
	if len(parts) < relayFields {
		return RelayRecord{}, false
	}
	return RelayRecord{
		MessageID: parts[0],
		FromAddr:  parts[1],
		FromNick:  parts[2],
		ToAddr:    parts[3],
		HopCount:  parts[4],
		Content:   parts[5],
	}, true
}

// Encode renders r back onto the wire (without the RELAY: tag or
// trailing newline; callers use frame.Encode for that).
func (r RelayRecord) Encode() string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s", r.MessageID, r.FromAddr, r.FromNick, r.ToAddr, r.HopCount, r.Content)
}

// IsBroadcast reports whether this record targets every node ("*").
func (r RelayRecord) IsBroadcast() bool {
	return r.ToAddr == "*"
}

// DeliversTo reports whether r should be rendered locally for a node
// whose own normalized address is localAddr.
func (r RelayRecord) DeliversTo(localAddr string) bool {
	return r.IsBroadcast() || r.ToAddr == localAddr
}

// SeenSet memoizes message ids to guarantee each node forwards any
// given id at most once. Zero value is not usable; construct with
// NewSeenSet.
type SeenSet struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func NewSeenSet() *SeenSet {
	return &SeenSet{seen: make(map[string]time.Time)}
}

// InsertIfAbsent records id as seen at now and reports true if it was
// new. If id was already present, it reports false and leaves the
// original timestamp untouched: re-seeing an id never resets its TTL
// clock.
func (s *SeenSet) InsertIfAbsent(id string, now time.Time) (inserted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = now
	return true
}

// GC evicts every id whose timestamp is older than now-SeenTTL.
// Evaluate runs it for every record that passes the loop guard, so
// eviction is lazy but regular.
func (s *SeenSet) GC(now time.Time) {
	cutoff := now.Add(-SeenTTL)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.seen {
		if t.Before(cutoff) {
			delete(s.seen, id)
		}
	}
}

// Len reports how many ids are currently memoized (test/diagnostic use).
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// Decision is the outcome of evaluating one inbound RELAY frame
// against the mesh relay rules.
type Decision struct {
	Drop      bool // loop/hop/self-origin guard tripped
	Deliver   bool // render locally
	ViaMesh   bool // append "[via mesh]" when rendering
	Forward   bool // re-emit to every link but the arrival link
	Forwarded RelayRecord
}

// Evaluate runs the guard pipeline for one already-parsed RELAY
// record arriving on arrivalPeerAddr (the normalized address of the
// link it was read from — NOT necessarily r.FromAddr, since a relayed
// message's original sender and the node that handed it to us may
// differ).
func Evaluate(seen *SeenSet, r RelayRecord, localAddr, arrivalPeerAddr string, now time.Time) Decision {
	// Loop guard: first insertion is the one chance to process this
	// id. Runs before the hop count is even parsed — any relay record
	// marks its id seen on first sighting.
	if !seen.InsertIfAbsent(r.MessageID, now) {
		return Decision{Drop: true}
	}
	// GC runs for every record that passes the loop guard, whatever the
	// later guards decide.
	seen.GC(now)

	// Hop guard: the count must parse to a positive integer; anything
	// else is treated as expired.
	hop, err := strconv.Atoi(r.HopCount)
	if err != nil || hop <= 0 {
		return Decision{Drop: true}
	}

	// Self-origin guard: our own message came back around.
	if r.FromAddr == localAddr {
		return Decision{Drop: true}
	}

	d := Decision{}
	if r.DeliversTo(localAddr) {
		d.Deliver = true
		d.ViaMesh = arrivalPeerAddr != r.FromAddr
	}

	newHop := hop - 1
	if newHop > 0 {
		fwd := r
		fwd.HopCount = strconv.Itoa(newHop)
		d.Forward = true
		d.Forwarded = fwd
	}
	return d
}

// UpgradeToRelay synthesizes a brand-new relay id and record for a
// direct MSG: frame entering the mesh for the first time; this is how
// a plain chat line from a neighbor acquires relay metadata. Hop count
// starts at MaxHopCount-1 since the first hop (originator -> direct
// neighbor) already happened over plain MSG:.
func UpgradeToRelay(newID, fromAddr, fromNick, content string) RelayRecord {
	return RelayRecord{
		MessageID: newID,
		FromAddr:  fromAddr,
		FromNick:  fromNick,
		ToAddr:    "*",
		HopCount:  strconv.Itoa(MaxHopCount - 1),
		Content:   content,
	}
}
