package node

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"chatmesh/internal/events"
	"chatmesh/internal/filetransfer"
	"chatmesh/internal/link"
)

// linkSink adapts a link.Link to filetransfer.Sink.
type linkSink struct{ l *link.Link }

func (s linkSink) Address() string        { return s.l.RemoteAddress }
func (s linkSink) Send(wire string) error { return s.l.Send(wire) }

// handleFStart, handleFChunk, handleFEnd implement the receiver side
// of a transfer, keyed by the sending peer's address.

func (n *Node) handleFStart(l *link.Link, payload string) {
	if err := n.rx.Start(l.RemoteAddress, payload); err != nil {
		n.log.Debug().Err(err).Str("addr", l.RemoteAddress).Msg("fstart parse error")
		n.emit(events.Error, events.ErrorEvent{Err: err})
	}
}

func (n *Node) handleFChunk(l *link.Link, payload string) {
	received, total, ok, err := n.rx.Chunk(l.RemoteAddress, payload)
	if err != nil {
		n.log.Debug().Err(err).Str("addr", l.RemoteAddress).Msg("fchunk parse error")
		n.emit(events.Error, events.ErrorEvent{Err: err})
		return
	}
	if !ok {
		return
	}
	n.emit(events.FileProgress, events.FileProgressEvent{
		PeerAddress: l.RemoteAddress,
		Percent:     100 * float64(received) / float64(total),
	})
}

func (n *Node) handleFEnd(l *link.Link, payload string) {
	fileName, plaintext, err := n.rx.End(l.RemoteAddress, payload)
	if err != nil {
		n.log.Error().Err(err).Str("addr", l.RemoteAddress).Msg("file assembly failed")
		n.emit(events.Error, events.ErrorEvent{Err: fmt.Errorf("File assembly failed: %w", err)})
		return
	}

	savedPath, err := n.saveDownload(fileName, plaintext)
	if err != nil {
		n.log.Error().Err(err).Msg("file save failed")
		n.emit(events.Error, events.ErrorEvent{Err: fmt.Errorf("File assembly failed: %w", err)})
		return
	}

	n.emit(events.FileComplete, events.FileCompleteEvent{
		PeerAddress: l.RemoteAddress,
		FileName:    fileName,
		SavedPath:   savedPath,
	})
}

// saveDownload writes plaintext to the downloads directory as
// "OffGrid_<filename>".
func (n *Node) saveDownload(fileName string, plaintext []byte) (string, error) {
	if err := os.MkdirAll(n.downloadDir, 0o755); err != nil {
		return "", err
	}
	dest := filepath.Join(n.downloadDir, "OffGrid_"+filepath.Base(fileName))
	if err := os.WriteFile(dest, plaintext, 0o644); err != nil {
		return "", err
	}
	return dest, nil
}

// SendFile runs the transfer sender sequence against every active
// link, one recipient at a time, reporting per-recipient progress
// through the event handler.
func (n *Node) SendFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("sendfile: %w", err)
	}

	sinks := make([]filetransfer.Sink, 0, n.links.Count())
	for _, l := range n.links.All() {
		sinks = append(sinks, linkSink{l})
	}

	name := filepath.Base(path)
	return filetransfer.SendToAll(sinks, name, data, func(addr string, sent, total int) {
		n.emit(events.FileProgress, events.FileProgressEvent{
			PeerAddress: addr,
			FileName:    name,
			Percent:     100 * float64(sent) / float64(total),
		})
	})
}
