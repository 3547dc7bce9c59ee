package filetransfer

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Rx is one in-progress or completed inbound transfer. At most one
// lives per peer address at a time.
type Rx struct {
	FileName       string
	OriginalSize   int
	CompressedSize int
	TotalChunks    int
	Checksum       string
	Chunks         [][]byte // sparse: index i implies 0 <= i < TotalChunks
	ChunksReceived int
	StartTime      time.Time
}

// Table is the peer-address-keyed incoming-transfer table.
type Table struct {
	mu  sync.Mutex
	rx  map[string]*Rx
}

func NewTable() *Table {
	return &Table{rx: make(map[string]*Rx)}
}

// Start handles an FSTART: payload: allocate a fresh Rx for peerAddr,
// replacing any prior transfer from that peer. A second FSTART
// mid-transfer always wins.
func (t *Table) Start(peerAddr, payload string) error {
	parts := strings.SplitN(payload, "|", 5)
	if len(parts) != 5 {
		return fmt.Errorf("filetransfer: malformed FSTART payload")
	}
	origSize, err := strconv.Atoi(parts[1])
	if err != nil {
		return fmt.Errorf("filetransfer: bad original size: %w", err)
	}
	compSize, err := strconv.Atoi(parts[2])
	if err != nil {
		return fmt.Errorf("filetransfer: bad compressed size: %w", err)
	}
	total, err := strconv.Atoi(parts[3])
	if err != nil {
		return fmt.Errorf("filetransfer: bad chunk count: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.rx[peerAddr] = &Rx{
		FileName:       parts[0],
		OriginalSize:   origSize,
		CompressedSize: compSize,
		TotalChunks:    total,
		Checksum:       parts[4],
		Chunks:         make([][]byte, total),
		StartTime:      time.Now(),
	}
	return nil
}

// Chunk handles an FCHUNK: payload. If there is no in-progress
// transfer for peerAddr it is dropped (ok=false, err=nil). An
// out-of-range index is also dropped rather than surfaced as a
// protocol error.
func (t *Table) Chunk(peerAddr, payload string) (received, total int, ok bool, err error) {
	idx, b64, found := strings.Cut(payload, "|")
	if !found {
		return 0, 0, false, fmt.Errorf("filetransfer: malformed FCHUNK payload")
	}
	index, err := strconv.Atoi(idx)
	if err != nil {
		return 0, 0, false, fmt.Errorf("filetransfer: bad chunk index: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	rx, exists := t.rx[peerAddr]
	if !exists {
		return 0, 0, false, nil
	}
	if index < 0 || index >= rx.TotalChunks {
		return rx.ChunksReceived, rx.TotalChunks, false, nil
	}
	data, decErr := base64.StdEncoding.DecodeString(b64)
	if decErr != nil {
		return 0, 0, false, fmt.Errorf("filetransfer: bad chunk base64: %w", decErr)
	}
	if rx.Chunks[index] == nil {
		rx.ChunksReceived++
	}
	rx.Chunks[index] = data // re-writes tolerated, last writer wins
	return rx.ChunksReceived, rx.TotalChunks, true, nil
}

// End handles an FEND: payload: concatenate every chunk slot in
// order, gzip-decompress, and verify the plaintext checksum against
// both the FSTART and FEND values. The transfer state for peerAddr is
// dropped regardless of outcome.
func (t *Table) End(peerAddr, payload string) (fileName string, plaintext []byte, err error) {
	t.mu.Lock()
	rx, exists := t.rx[peerAddr]
	delete(t.rx, peerAddr)
	t.mu.Unlock()

	if !exists {
		return "", nil, fmt.Errorf("filetransfer: FEND with no active transfer")
	}

	status, wireChecksum, _ := strings.Cut(payload, "|")
	if status != "success" {
		return "", nil, fmt.Errorf("filetransfer: sender reported failure")
	}

	var buf bytes.Buffer
	for i, chunk := range rx.Chunks {
		if chunk == nil {
			return "", nil, fmt.Errorf("filetransfer: missing chunk %d of %d", i, rx.TotalChunks)
		}
		buf.Write(chunk)
	}

	gz, err := gzip.NewReader(&buf)
	if err != nil {
		return "", nil, fmt.Errorf("filetransfer: decompress: %w", err)
	}
	defer gz.Close()
	plaintext, err = io.ReadAll(gz)
	if err != nil {
		return "", nil, fmt.Errorf("filetransfer: decompress: %w", err)
	}

	checksum := Checksum(plaintext)
	if checksum != rx.Checksum || checksum != wireChecksum {
		return "", nil, fmt.Errorf("filetransfer: checksum mismatch")
	}

	return rx.FileName, plaintext, nil
}

// Progress returns the receive progress for peerAddr, if a transfer
// is in flight.
func (t *Table) Progress(peerAddr string) (received, total int, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rx, exists := t.rx[peerAddr]
	if !exists {
		return 0, 0, false
	}
	return rx.ChunksReceived, rx.TotalChunks, true
}
