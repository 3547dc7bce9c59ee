package link

import (
	"sync"
	"testing"
)

// fakeStream is a minimal transport.Stream double for admission/send
// tests; it records writes instead of touching a real socket.
type fakeStream struct {
	remote string
	mu     sync.Mutex
	writes []string
	closed bool
}

func (s *fakeStream) Read(p []byte) (int, error) { return 0, nil }

func (s *fakeStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, string(p))
	return len(p), nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStream) RemoteAddress() string { return s.remote }

func (s *fakeStream) RemoteName() string { return s.remote }

func newLink(addr string, dir Direction) *Link {
	return &Link{RemoteAddress: addr, RemoteDeviceName: addr, Direction: dir, Stream: &fakeStream{remote: addr}}
}

func TestAdmitFirstComerWins(t *testing.T) {
	m := NewManager()
	l := newLink("AAAA", Inbound)
	if !m.Admit("AAAA", l) {
		t.Fatal("first admission should succeed")
	}
	if m.Count() != 1 {
		t.Fatalf("expected 1 active link, got %d", m.Count())
	}
	if !m.IsConnected("AAAA") {
		t.Error("expected AAAA to be marked connected")
	}
}

func TestAdmitRejectsDuplicateAddress(t *testing.T) {
	m := NewManager()
	first := newLink("AAAA", Inbound)
	second := newLink("AAAA", Outbound)

	if !m.Admit("AAAA", first) {
		t.Fatal("first admission should succeed")
	}
	if m.Admit("AAAA", second) {
		t.Fatal("second admission to the same address must be rejected")
	}
	got, ok := m.Get("AAAA")
	if !ok || got != first {
		t.Fatal("the surviving link must be the first admitted one")
	}
}

func TestAdmitRaceConvergesOnOneSurvivor(t *testing.T) {
	m := NewManager()
	const attempts = 50
	var wg sync.WaitGroup
	admitted := make([]bool, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			admitted[i] = m.Admit("RACE", newLink("RACE", Inbound))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, ok := range admitted {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one admission to win a concurrent race, got %d", wins)
	}
	if m.Count() != 1 {
		t.Fatalf("expected exactly one active link after the race, got %d", m.Count())
	}
}

func TestRemoveClearsBothTables(t *testing.T) {
	m := NewManager()
	l := newLink("AAAA", Inbound)
	m.Admit("AAAA", l)

	removed, ok := m.Remove("AAAA")
	if !ok || removed != l {
		t.Fatal("expected Remove to return the admitted link")
	}
	if m.IsConnected("AAAA") {
		t.Error("address should no longer be connected after Remove")
	}
	if _, ok := m.Get("AAAA"); ok {
		t.Error("link should no longer be active after Remove")
	}

	// The address can now be re-admitted.
	if !m.Admit("AAAA", newLink("AAAA", Outbound)) {
		t.Error("expected re-admission to succeed after Remove")
	}
}

func TestBroadcastExceptSkipsSource(t *testing.T) {
	m := NewManager()
	a := newLink("AAAA", Inbound)
	b := newLink("BBBB", Inbound)
	m.Admit("AAAA", a)
	m.Admit("BBBB", b)

	m.BroadcastExcept("AAAA", "hello\n")

	aStream := a.Stream.(*fakeStream)
	bStream := b.Stream.(*fakeStream)
	if len(aStream.writes) != 0 {
		t.Error("the excepted link should not receive the broadcast")
	}
	if len(bStream.writes) != 1 || bStream.writes[0] != "hello\n" {
		t.Errorf("expected BBBB to receive the broadcast once, got %+v", bStream.writes)
	}
}

func TestSendSerializesConcurrentWriters(t *testing.T) {
	l := newLink("AAAA", Inbound)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Send("frame\n")
		}()
	}
	wg.Wait()
	s := l.Stream.(*fakeStream)
	if len(s.writes) != 20 {
		t.Fatalf("expected all 20 writes to land, got %d", len(s.writes))
	}
}
