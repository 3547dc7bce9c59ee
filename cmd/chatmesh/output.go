package main

import (
	"fmt"
	"time"

	"chatmesh/internal/events"
	"chatmesh/internal/node"
)

// newPrinter builds the events.Handler that renders the transcript:
// timestamped, bracketed peer names, a trailing "[via mesh]" tag when
// a line arrived through a relay rather than its original sender.
func newPrinter(n *node.Node) events.Handler {
	return func(typ events.Type, data interface{}) {
		switch typ {
		case events.Chat:
			e := data.(events.ChatEvent)
			viaMesh := ""
			if e.ViaMesh {
				viaMesh = " [via mesh]"
			}
			fmt.Printf("[%s] [%s]%s: %s\n", stamp(e.Timestamp), e.DisplayName, viaMesh, e.Content)

		case events.Typing:
			e := data.(events.TypingEvent)
			if e.IsTyping {
				fmt.Printf("[%s] is typing...\n", e.PeerAddress)
			}

		case events.Nick:
			// Rendered via the System event the node also emits.

		case events.LinkUp:
			e := data.(events.LinkEvent)
			fmt.Printf("[LINK] %s connected (%s), %d active\n", e.Address, e.Direction, e.ActiveLinks)

		case events.LinkDown:
			e := data.(events.LinkEvent)
			fmt.Printf("[LINK] %s disconnected, %d active\n", e.Address, e.ActiveLinks)

		case events.FileProgress:
			e := data.(events.FileProgressEvent)
			fmt.Printf("\r[file] %s %.0f%%", e.PeerAddress, e.Percent)

		case events.FileComplete:
			e := data.(events.FileCompleteEvent)
			fmt.Printf("\n[file] saved %s from %s to %s\n", e.FileName, e.PeerAddress, e.SavedPath)

		case events.System:
			e := data.(events.SystemEvent)
			fmt.Println(e.Text)

		case events.Error:
			e := data.(events.ErrorEvent)
			fmt.Println("[ERROR]", e.Err)
		}
	}
}

func stamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.Format("15:04:05")
}
