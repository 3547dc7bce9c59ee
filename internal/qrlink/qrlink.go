// Package qrlink renders a node's shareable link as a terminal QR
// code. A pairing convenience, not a protocol feature.
package qrlink

import (
	"io"

	qrterminal "github.com/mdp/qrterminal/v3"
)

// Print writes link as a low-density QR code to w, suitable for most
// terminal fonts.
func Print(w io.Writer, link string) {
	qrterminal.GenerateWithConfig(link, qrterminal.Config{
		Level:     qrterminal.L,
		Writer:    w,
		BlackChar: qrterminal.BLACK,
		WhiteChar: qrterminal.WHITE,
		QuietZone: 1,
	})
}
