package filetransfer

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"chatmesh/internal/frame"
)

// recordingSink captures every frame sent to it, in order, so tests can
// feed them straight into a receiver Table without any network I/O.
type recordingSink struct {
	addr   string
	frames []string
}

func (s *recordingSink) Address() string { return s.addr }
func (s *recordingSink) Send(wire string) error {
	s.frames = append(s.frames, wire)
	return nil
}

func TestChecksumStable(t *testing.T) {
	data := []byte("hello mesh world")
	if Checksum(data) != Checksum(data) {
		t.Fatal("checksum must be deterministic")
	}
	if len(Checksum(data)) != 8 {
		t.Fatalf("expected an 8 character checksum, got %q", Checksum(data))
	}
}

func TestTotalChunks(t *testing.T) {
	cases := []struct {
		n    int
		want int
	}{
		{0, 0},
		{1, 1},
		{ChunkSize, 1},
		{ChunkSize + 1, 2},
		{ChunkSize * 3, 3},
	}
	for _, c := range cases {
		if got := TotalChunks(c.n); got != c.want {
			t.Errorf("TotalChunks(%d) = %d, want %d", c.n, got, c.want)
		}
	}
}

// feedIntoReceiver replays every wire frame a sink recorded through a
// fresh decoder and the receiver Table, as the real read loop would.
func feedIntoReceiver(t *testing.T, sink *recordingSink, rx *Table, peerAddr string) (fileName string, plaintext []byte, err error) {
	t.Helper()
	var d frame.Decoder
	var fend error
	var name string
	var data []byte
	for _, wire := range sink.frames {
		for _, f := range d.Feed([]byte(wire)) {
			switch f.Tag {
			case frame.TagFStart:
				if serr := rx.Start(peerAddr, f.Payload); serr != nil {
					t.Fatalf("unexpected FSTART error: %v", serr)
				}
			case frame.TagFChunk:
				if _, _, ok, cerr := rx.Chunk(peerAddr, f.Payload); cerr != nil || !ok {
					t.Fatalf("unexpected FCHUNK error: ok=%v err=%v", ok, cerr)
				}
			case frame.TagFEnd:
				name, data, fend = rx.End(peerAddr, f.Payload)
			}
		}
	}
	return name, data, fend
}

func TestSendToReceiverRoundTrip(t *testing.T) {
	original := make([]byte, 50000)
	rand.New(rand.NewSource(1)).Read(original) // incompressible, so the gzip output spans several chunks

	compressed, checksum, err := Compress(original)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}

	sink := &recordingSink{addr: "PEER1"}
	if err := SendTo(sink, "report.txt", len(original), compressed, checksum, nil); err != nil {
		t.Fatalf("SendTo: %v", err)
	}

	rx := NewTable()
	name, plaintext, err := feedIntoReceiver(t, sink, rx, "PEER1")
	if err != nil {
		t.Fatalf("receive failed: %v", err)
	}
	if name != "report.txt" {
		t.Errorf("got filename %q", name)
	}
	if !bytes.Equal(plaintext, original) {
		t.Fatal("round-tripped bytes do not match the original")
	}
}

func TestSendToSmallFileSingleChunk(t *testing.T) {
	original := []byte("tiny")
	compressed, checksum, err := Compress(original)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}

	sink := &recordingSink{addr: "PEER1"}
	if err := SendTo(sink, "tiny.txt", len(original), compressed, checksum, nil); err != nil {
		t.Fatalf("SendTo: %v", err)
	}

	rx := NewTable()
	_, plaintext, err := feedIntoReceiver(t, sink, rx, "PEER1")
	if err != nil {
		t.Fatalf("receive failed: %v", err)
	}
	if !bytes.Equal(plaintext, original) {
		t.Fatal("round-tripped bytes do not match the original")
	}
}

func TestReceiverRejectsCorruptedChecksum(t *testing.T) {
	original := []byte("some file contents")
	compressed, checksum, _ := Compress(original)

	sink := &recordingSink{addr: "PEER1"}
	_ = SendTo(sink, "f.txt", len(original), compressed, checksum, nil)

	// Tamper with the FEND frame's checksum.
	for i, wire := range sink.frames {
		if strings.HasPrefix(wire, frame.TagFEnd) {
			sink.frames[i] = frame.Encode(frame.TagFEnd, "success|WRONGSUM")
		}
	}

	rx := NewTable()
	_, _, err := feedIntoReceiver(t, sink, rx, "PEER1")
	if err == nil {
		t.Fatal("expected a checksum mismatch error")
	}
}

func TestSecondFStartReplacesInProgressTransfer(t *testing.T) {
	rx := NewTable()
	if err := rx.Start("PEER1", "a.txt|100|50|4|AAAAAAAA"); err != nil {
		t.Fatalf("first start: %v", err)
	}
	rx.Chunk("PEER1", "0|"+"aGVsbG8=")

	if err := rx.Start("PEER1", "b.txt|200|80|2|BBBBBBBB"); err != nil {
		t.Fatalf("second start: %v", err)
	}
	received, total, ok := rx.Progress("PEER1")
	if !ok || received != 0 || total != 2 {
		t.Fatalf("expected the second FSTART to fully replace transfer state, got received=%d total=%d ok=%v", received, total, ok)
	}
}

func TestChunkDroppedWithoutActiveTransfer(t *testing.T) {
	rx := NewTable()
	_, _, ok, err := rx.Chunk("NOBODY", "0|aGVsbG8=")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if ok {
		t.Fatal("expected a chunk with no matching FSTART to be silently dropped")
	}
}

func TestEndFailsOnMissingChunks(t *testing.T) {
	rx := NewTable()
	rx.Start("PEER1", "a.txt|100|50|3|AAAAAAAA")
	rx.Chunk("PEER1", "0|aGVsbG8=")
	// chunk 1 never arrives
	rx.Chunk("PEER1", "2|d29ybGQ=")

	_, _, err := rx.End("PEER1", "success|AAAAAAAA")
	if err == nil {
		t.Fatal("expected End to fail when a chunk slot is missing")
	}
}

func TestSendToAllIsBestEffortAcrossFailingSinks(t *testing.T) {
	good := &recordingSink{addr: "GOOD"}
	failing := failingSink{addr: "BAD"}

	err := SendToAll([]Sink{failing, good}, "f.txt", []byte("payload"), nil)
	if err != nil {
		t.Fatalf("SendToAll should not abort on a failing recipient, got %v", err)
	}
	if len(good.frames) == 0 {
		t.Error("expected the working sink to still receive its frames")
	}
}

type failingSink struct{ addr string }

func (f failingSink) Address() string       { return f.addr }
func (f failingSink) Send(wire string) error { return bytes.ErrTooLarge }
