// Command rftrecv accepts a single rftsend transfer and writes it to a
// file, grounded on cn_lab2/server/server.cpp's main: bind, accept,
// receive-to-file, print a reception summary.
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
		useRouter = flag.Bool("router", false, "bind Config.RouterPort instead of Config.ServerPort")
		debug     = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <output-file>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}
	outPath := flag.Arg(0)

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
	listenAddr := fmt.Sprintf(":%d", port)

	out, err := os.Create(outPath)
	if err != nil {
		log.Error("create output file failed", "error", err)
		os.Exit(1)
	}
	defer out.Close()

	receiver, err := rft.NewReceiver(listenAddr, cfg, log)
	if err != nil {
		log.Error("failed to create receiver", "error", err)
		os.Exit(1)
	}
	defer receiver.Close()

	log.Info("listening", "addr", listenAddr)
	if err := receiver.Accept(); err != nil {
		log.Error("handshake failed", "error", err)
		os.Exit(1)
	}

	stats, err := receiver.Receive(out)
	if err != nil {
		log.Error("transfer failed", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("--- Reception Summary ---")
	fmt.Printf("Total time: %.3f seconds\n", stats.Elapsed().Seconds())
	fmt.Printf("Bytes received: %d\n", stats.BytesTransferred.Load())
	fmt.Printf("ACKs sent: %d\n", stats.TotalAcksReceived.Load())
	fmt.Printf("Out-of-order packets buffered: %d\n", stats.OutOfOrderPackets.Load())
}
