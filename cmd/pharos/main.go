package main

import (
	"crypto/rand"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pharos-net/pharos/internal/config"
	"github.com/pharos-net/pharos/internal/log"
	"github.com/pharos-net/pharos/internal/node"
	"github.com/pharos-net/pharos/internal/output"
	"github.com/pharos-net/pharos/internal/peer"
	"github.com/pharos-net/pharos/internal/transport"
	"github.com/pharos-net/pharos/internal/wire"
)

// version is stamped by the build.
var version = "0.1.0-dev"

var rootCmd = &cobra.Command{
	Use:   "pharos",
	Short: "Peer discovery and messaging over a shared broadcast channel",
	Long: `Pharos runs a mesh node on a shared broadcast channel.

Nodes announce themselves, learn each other automatically, and exchange
small fixed-size frames with per-session delivery statistics. On a
development host the channel is emulated over broadcast UDP.`,
}

// localAddr resolves the node's link address: the configured one, the first
// hardware interface's MAC, or a random locally-administered fallback.
func localAddr(cfg *config.Config) (wire.Addr, error) {
	if cfg.Address != "" {
		return wire.ParseAddr(cfg.Address)
	}
	ifaces, err := net.Interfaces()
	if err == nil {
		for _, ifc := range ifaces {
			if ifc.Flags&net.FlagLoopback != 0 || len(ifc.HardwareAddr) != wire.AddrLen {
				continue
			}
			var a wire.Addr
			copy(a[:], ifc.HardwareAddr)
			return a, nil
		}
	}
	return randomAddr()
}

// randomAddr generates a locally-administered unicast address.
func randomAddr() (wire.Addr, error) {
	var a wire.Addr
	if _, err := rand.Read(a[:]); err != nil {
		return a, fmt.Errorf("generate address: %w", err)
	}
	a[0] = a[0]&^0x01 | 0x02
	return a, nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.UDPPort = port
	}
	if addr, _ := cmd.Flags().GetString("address"); addr != "" {
		cfg.Address = addr
	}
	if data, _ := cmd.Flags().GetString("data"); data != "" {
		cfg.DataDir = data
	}
	return cfg, nil
}

// ─── up ──────────────────────────────────────────────────────────────────────

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Run the node daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := log.Init(cfg.Log); err != nil {
			return err
		}

		addr, err := localAddr(cfg)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return err
		}
		store, err := peer.OpenStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("open peer store: %w", err)
		}
		defer store.Close()

		n, err := node.New(node.Config{
			Transport:         transport.NewUDP(addr, cfg.UDPPort),
			Channel:           cfg.Channel,
			QueueDepth:        cfg.Node.QueueDepth,
			SendTimeout:       cfg.Node.SendTimeout,
			DiscoveryInterval: cfg.Node.DiscoveryInterval,
			PeerSoftLimit:     cfg.Node.PeerSoftLimit,
			Store:             store,
		})
		if err != nil {
			return err
		}
		if err := n.Start(); err != nil {
			return err
		}
		defer n.Stop()

		n.OnPeerDiscovered(func(p peer.Peer) {
			log.L().Infof("discovered peer %s", p.Addr)
		})
		if err := n.StartDiscovery(0); err != nil {
			return err
		}

		stop := make(chan struct{})
		defer close(stop)
		go reapStalePeers(n, cfg.Reaper, stop)

		fmt.Printf("\n  Address : %s\n", addr)
		fmt.Printf("  Channel : %d\n", cfg.Channel)
		fmt.Printf("  UDP port: %d\n", cfg.UDPPort)
		fmt.Printf("  Data    : %s\n\n", cfg.DataDir)

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		s := n.Stats()
		log.L().Infof("session: sent=%d received=%d lost=%d peers=%d",
			s.Sent, s.Received, s.Lost, n.PeerCount())
		return nil
	},
}

// reapStalePeers evicts peers that stayed silent past the timeout. The
// table itself never expires entries; eviction policy lives here.
func reapStalePeers(n *node.Node, cfg config.Reaper, stop <-chan struct{}) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			for _, p := range n.Peers() {
				if time.Since(p.LastSeen) <= cfg.PeerTimeout {
					continue
				}
				if err := n.RemovePeer(p.Addr); err == nil {
					log.L().Infof("reaped stale peer %s (silent for %s)",
						p.Addr, time.Since(p.LastSeen).Round(time.Second))
				}
			}
			s := n.Stats()
			log.L().Debugf("stats: sent=%d received=%d lost=%d bytes_tx=%d bytes_rx=%d",
				s.Sent, s.Received, s.Lost, s.BytesSent, s.BytesReceived)
		}
	}
}

// ─── ping ────────────────────────────────────────────────────────────────────

var pingCmd = &cobra.Command{
	Use:   "ping <addr>",
	Short: "Probe a node and report round-trip times",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := log.Init(cfg.Log); err != nil {
			return err
		}
		target, err := wire.ParseAddr(args[0])
		if err != nil {
			return err
		}

		addr, err := randomAddr()
		if err != nil {
			return err
		}
		n, err := node.New(node.Config{
			Transport: transport.NewUDP(addr, cfg.UDPPort),
			Channel:   cfg.Channel,
		})
		if err != nil {
			return err
		}
		if err := n.Start(); err != nil {
			return err
		}
		defer n.Stop()

		pongs := make(chan struct{}, 16)
		n.OnReceive(func(src wire.Addr, f *wire.Frame) {
			if src == target && f.Type == wire.TypePong {
				select {
				case pongs <- struct{}{}:
				default:
				}
			}
		})

		count, _ := cmd.Flags().GetInt("count")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		received := 0
		for i := 0; i < count; i++ {
			start := time.Now()
			if err := n.Ping(target); err != nil {
				return err
			}
			select {
			case <-pongs:
				received++
				fmt.Printf("pong from %s: seq=%d time=%s\n", target, i, time.Since(start).Round(time.Microsecond))
			case <-time.After(timeout):
				fmt.Printf("timeout waiting for %s: seq=%d\n", target, i)
			}
			if i < count-1 {
				time.Sleep(time.Second)
			}
		}

		fmt.Printf("\n%d probes, %d replies, %.0f%% loss\n",
			count, received, 100*float64(count-received)/float64(count))
		if received == 0 {
			return fmt.Errorf("no reply from %s", target)
		}
		return nil
	},
}

// ─── peers ───────────────────────────────────────────────────────────────────

var peersCmd = &cobra.Command{
	Use:   "peers",
	Short: "List peers persisted by the daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := peer.OpenStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("open peer store (is the daemon running?): %w", err)
		}
		defer store.Close()

		records, err := store.Records()
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("output")
		rows := make([][]string, len(records))
		for i, r := range records {
			rows[i] = []string{r.Addr, r.LastSeen.Format(time.RFC3339)}
		}
		return output.Render(os.Stdout, format, records, []string{"ADDRESS", "LAST SEEN"}, rows)
	},
}

// ─── version ─────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pharos %s\n", version)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{upCmd, pingCmd, peersCmd} {
		cmd.Flags().String("config", "", "Config file (YAML)")
		cmd.Flags().Int("port", 0, "UDP port override")
		cmd.Flags().String("address", "", "Link address override (aa:bb:cc:dd:ee:ff)")
		cmd.Flags().String("data", "", "Data directory override")
	}

	pingCmd.Flags().Int("count", 4, "Number of probes")
	pingCmd.Flags().Duration("timeout", 2*time.Second, "Per-probe reply timeout")
	peersCmd.Flags().String("output", "table", "Output format: table, json, yaml")

	rootCmd.AddCommand(upCmd, pingCmd, peersCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
