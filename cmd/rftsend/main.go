// Command rftsend transfers a file to an rftrecv listener, grounded on
// cn_lab2/client/client.cpp's main: parse args, handshake, send, print a
// transmission summary.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/kasader/rft/pkg/rft"
)

func main() {
	var (
		serverAddr = flag.String("server", "127.0.0.1", "receiver host")
		useRouter  = flag.Bool("router", false, "target Config.RouterPort instead of Config.ServerPort, for testing through a packet-impairment simulator")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <file>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}
	filePath := flag.Arg(0)

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	cfg := rft.DefaultConfig()
	port := cfg.ServerPort
	if *useRouter {
		port = cfg.RouterPort
	}
	remote := fmt.Sprintf("%s:%d", *serverAddr, port)

	file, err := os.Open(filePath)
	if err != nil {
		log.Error("open file failed", "error", err)
		os.Exit(1)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		log.Error("stat file failed", "error", err)
		os.Exit(1)
	}

	sender, err := rft.NewSender(remote, cfg, log)
	if err != nil {
		log.Error("failed to create sender", "error", err)
		os.Exit(1)
	}
	defer sender.Close()

	log.Info("connecting", "remote", remote)
	if err := sender.Connect(); err != nil {
		log.Error("handshake failed", "error", err)
		os.Exit(1)
	}

	stats, err := sender.Send(file, info.Size())
	if err != nil {
		log.Error("transfer failed", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("--- Transmission Summary ---")
	fmt.Printf("Total time: %.3f seconds\n", stats.Elapsed().Seconds())
	fmt.Printf("File size: %.2f KB\n", float64(info.Size())/1024)
	fmt.Printf("Average throughput: %.2f Kbps\n", stats.ThroughputKbps())
	fmt.Printf("Total packets sent: %d\n", stats.TotalPacketsSent.Load())
	fmt.Printf("Total retransmissions: %d\n", stats.TotalRetransmissions.Load())
	fmt.Printf("Total ACKs received: %d\n", stats.TotalAcksReceived.Load())
	fmt.Printf("Packet loss rate: %.2f%%\n", stats.LossRatePercent())
}
