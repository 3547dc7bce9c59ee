// Package logging provides the internal diagnostic logger: link
// lifecycle, protocol parse errors, gossip ticks. It is deliberately
// separate from internal/events, which carries the user-facing
// transcript — this stream is for operators, not chat participants.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New builds a console-friendly zerolog.Logger writing to w (typically
// os.Stderr). Kept as a thin constructor so cmd/chatmesh can swap in a
// JSON writer for production use without touching any caller.
func New(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	return zerolog.New(console).With().Timestamp().Logger()
}

// Discard is used by tests that don't want log noise.
func Discard() zerolog.Logger {
	return zerolog.New(io.Discard)
}
