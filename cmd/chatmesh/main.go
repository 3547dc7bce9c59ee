// Command chatmesh is the reference CLI client for the core engine in
// internal/node: it drives a transport.TCP stand-in for the real
// paired-device radio library, prints the event stream to stdout, and
// reads slash commands plus plain chat text from stdin.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"chatmesh/internal/config"
	"chatmesh/internal/logging"
	"chatmesh/internal/node"
	"chatmesh/internal/transport"
)

const version = "0.1.0"

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		listen  string
		nick    string
		connect []string
		dataDir string
	)

	root := &cobra.Command{
		Use:   "chatmesh",
		Short: "Serverless peer-to-peer mesh chat node",
		// Bare "chatmesh" serves too, so the common case needs no
		// subcommand.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(listen, nick, connect, dataDir)
		},
	}
	root.PersistentFlags().StringVar(&listen, "listen", "0.0.0.0:7734", "address to accept inbound links on")
	root.PersistentFlags().StringVar(&nick, "nick", "", "nickname (default: device name)")
	root.PersistentFlags().StringSliceVar(&connect, "connect", nil, "peer address(es) to dial on startup")
	root.PersistentFlags().StringVar(&dataDir, "data-dir", "./chatmesh-data", "directory for config and downloads")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the node and its interactive REPL",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(listen, nick, connect, dataDir)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the chatmesh version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("chatmesh", version)
		},
	})

	return root
}

func runServe(listen, nick string, connect []string, dataDir string) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("data dir: %w", err)
	}
	cfgPath := filepath.Join(dataDir, "chatmesh.json")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if nick == "" {
		nick = cfg.Nickname
	}
	if len(connect) == 0 {
		connect = cfg.BootstrapPeers
	}

	log := logging.New(os.Stderr)

	t := transport.NewTCP(listen, hostname())
	if err := t.Listen(); err != nil {
		fmt.Println("[ERROR]", err)
		fmt.Println("status: NO BLUETOOTH")
		return err
	}

	downloadDir := filepath.Join(dataDir, "downloads")
	n, err := node.New(t, nick, downloadDir, log, nil)
	if err != nil {
		return fmt.Errorf("new node: %w", err)
	}
	n.SetEventHandler(newPrinter(n))

	cfg.Nickname = n.LocalNickname()
	_ = config.Save(cfgPath, cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := n.Run(ctx); err != nil {
			fmt.Println("[ERROR] server error:", err)
		}
	}()

	for _, addr := range connect {
		go func(a string) {
			if err := n.Connect(ctx, a); err != nil {
				fmt.Println("[ERROR] Connection failed:", err)
			}
		}(addr)
	}

	fmt.Printf("chatmesh v%s | nick=%q | addr=%s\n", version, n.LocalNickname(), n.LocalAddress())
	fmt.Printf("Listening on %s. Type /help for commands.\n", listen)

	repl(ctx, n, cfgPath, cfg)

	n.Shutdown()
	fmt.Println("\nshutting down...")
	return nil
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "chatmesh-node"
	}
	return h
}
