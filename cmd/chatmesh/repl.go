package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"chatmesh/internal/config"
	"chatmesh/internal/node"
	"chatmesh/internal/qrlink"
)

// repl reads lines from stdin until EOF, handling slash commands and
// forwarding everything else as a chat message. ctx is checked after
// each line, so a cancellation ends the loop once the pending read
// returns.
func repl(ctx context.Context, n *node.Node, cfgPath string, cfg config.Config) {
	in := bufio.NewReader(os.Stdin)
	for {
		fmt.Printf("[%s] > ", n.LocalNickname())
		line, err := in.ReadString('\n')
		line = strings.TrimSpace(line)
		if line != "" {
			handleLine(ctx, n, cfgPath, cfg, line)
		}
		if err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func handleLine(ctx context.Context, n *node.Node, cfgPath string, cfg config.Config, line string) {
	if !strings.HasPrefix(line, "/") {
		n.SendGlobal(line)
		return
	}

	fields := strings.Fields(line)
	cmd := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	args := fields[1:]

	switch cmd {
	case "clear":
		fmt.Print("\033[H\033[2J")

	case "nick":
		if len(args) < 1 {
			fmt.Println("usage: /nick <name>")
			return
		}
		n.SetNick(strings.Join(args, " "))
		cfg.Nickname = n.LocalNickname()
		_ = config.Save(cfgPath, cfg)

	case "sendfile":
		if len(args) < 1 {
			fmt.Println("usage: /sendfile <path>")
			return
		}
		if err := n.SendFile(ctx, args[0]); err != nil {
			fmt.Println("[ERROR]", err)
		}

	case "peers":
		printPeers(n)

	case "contacts":
		printContacts(n)

	case "link":
		fmt.Println(n.Link())

	case "qr":
		qrlink.Print(os.Stdout, n.Link())

	case "connect":
		if len(args) < 1 {
			fmt.Println("usage: /connect <address>")
			return
		}
		if err := n.Connect(ctx, args[0]); err != nil {
			fmt.Println("[ERROR] Connection failed:", err)
		}

	case "help":
		printHelp()

	default:
		fmt.Printf("unknown command: /%s (try /help)\n", cmd)
	}
}

func printPeers(n *node.Node) {
	view := n.Peers()
	fmt.Println("direct:")
	for _, d := range view.Direct {
		fmt.Printf("  %s (%s) [%s]\n", d.DisplayName, d.Address, d.Direction)
	}
	fmt.Println("mesh:")
	for _, m := range view.Mesh {
		fmt.Printf("  %s (%s) via %s (%s)\n", m.Nickname, m.Address, m.ViaNickname, m.ViaAddress)
	}
}

func printContacts(n *node.Node) {
	contacts := n.Contacts()
	if len(contacts) == 0 {
		fmt.Println("no contacts yet")
		return
	}
	for _, c := range contacts {
		name := c.Nickname
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("  %s (%s) last seen %s\n", name, c.Address, c.LastSeen.Format("15:04:05"))
	}
}

func printHelp() {
	fmt.Print(`Commands:
  /clear                  clear the local transcript
  /nick <name>            set your nickname
  /sendfile <path>        send a file to every connected peer
  /peers                  list direct links and known mesh peers
  /contacts               list every peer ever seen, with last-seen time
  /connect <address>      dial a peer directly
  /link                   print your shareable chatmesh:// link
  /qr                     print your link as a terminal QR code
  /help                   show this message
`)
}
