// Package filetransfer implements the chunked file transfer state
// machine: compress -> split -> sequenced emission on the sender
// side, and buffer -> reassemble -> decompress -> verify on the
// receiver side.
package filetransfer

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"chatmesh/internal/frame"
)

// ChunkSize is the fixed pre-base64 chunk size.
const ChunkSize = 16 * 1024

// Pacing delays between sends, to avoid swamping a slow link.
const (
	fstartPace = 50 * time.Millisecond
	chunkPace  = 10 * time.Millisecond
)

// progressEvery controls how often SendTo reports percent-complete.
const progressEvery = 10

// Compress gzips data at the strongest level and computes the
// transfer checksum: SHA-256 of the *uncompressed* bytes, base64,
// first 8 characters.
func Compress(data []byte) (compressed []byte, checksum string, err error) {
	checksum = Checksum(data)
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, "", err
	}
	if _, err := w.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), checksum, nil
}

// Checksum computes the transfer checksum over plaintext.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return base64.StdEncoding.EncodeToString(sum[:])[:8]
}

// TotalChunks is ceil(len/ChunkSize).
func TotalChunks(compressedLen int) int {
	if compressedLen == 0 {
		return 0
	}
	return (compressedLen + ChunkSize - 1) / ChunkSize
}

// Sink is the destination for one recipient's outbound frames — the
// link manager satisfies this for real sends, tests can stub it.
type Sink interface {
	Address() string
	Send(wire string) error
}

// ProgressFunc reports sender-side progress for one recipient.
type ProgressFunc func(addr string, sentChunks, totalChunks int)

// SendTo runs the full sender sequence (FSTART, paced FCHUNKs, FEND)
// against a single recipient. The pacing sleeps are real wall-clock
// waits and are not cancellable mid-transfer.
func SendTo(sink Sink, fileName string, originalSize int, compressed []byte, checksum string, onProgress ProgressFunc) error {
	total := TotalChunks(len(compressed))
	fstart := frame.Encode(frame.TagFStart, fmt.Sprintf("%s|%d|%d|%d|%s", fileName, originalSize, len(compressed), total, checksum))
	if err := sink.Send(fstart); err != nil {
		return err
	}
	time.Sleep(fstartPace)

	for i := 0; i < total; i++ {
		start := i * ChunkSize
		end := start + ChunkSize
		if end > len(compressed) {
			end = len(compressed)
		}
		b64 := base64.StdEncoding.EncodeToString(compressed[start:end])
		wire := frame.Encode(frame.TagFChunk, fmt.Sprintf("%d|%s", i, b64))
		if err := sink.Send(wire); err != nil {
			return err
		}
		if onProgress != nil && (i%progressEvery == 0 || i == total-1) {
			onProgress(sink.Address(), i+1, total)
		}
		time.Sleep(chunkPace)
	}

	fend := frame.Encode(frame.TagFEnd, fmt.Sprintf("success|%s", checksum))
	return sink.Send(fend)
}

// SendToAll compresses data once and runs SendTo against every sink
// in sequence. A failing recipient does not abort the rest; delivery
// is best-effort and nothing is retried.
func SendToAll(sinks []Sink, fileName string, data []byte, onProgress ProgressFunc) error {
	compressed, checksum, err := Compress(data)
	if err != nil {
		return err
	}
	for _, s := range sinks {
		_ = SendTo(s, fileName, len(data), compressed, checksum, onProgress)
	}
	return nil
}
