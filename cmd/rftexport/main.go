// Command rftexport runs an rftrecv-style listener and exposes its transfer
// statistics as Prometheus metrics, grounded on
// rbott-tcp-stream-exporter/main.go's collector-registration and
// promhttp.Handler wiring.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kasader/rft/pkg/rft"
)

func initLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func main() {
	var (
		metricsAddr = flag.String("metrics-addr", ":9101", "address to serve /metrics on")
		useRouter   = flag.Bool("router", false, "bind Config.RouterPort instead of Config.ServerPort")
		outPath     = flag.String("out", os.DevNull, "path to write the received file")
		debug       = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	logger := initLogger(*debug)
	slog.SetDefault(logger)

	cfg := rft.DefaultConfig()
	port := cfg.ServerPort
	if *useRouter {
		port = cfg.RouterPort
	}
	listenAddr := fmt.Sprintf(":%d", port)

	receiver, err := rft.NewReceiver(listenAddr, cfg, logger)
	if err != nil {
		logger.Error("failed to create receiver", "error", err)
		os.Exit(1)
	}
	defer receiver.Close()

	collector := rft.NewStatsCollector(listenAddr, rft.NewStats())
	prometheus.MustRegister(collector)

	go func() {
		out, err := os.Create(*outPath)
		if err != nil {
			logger.Error("create output file failed", "error", err)
			return
		}
		defer out.Close()

		for {
			logger.Info("waiting for connection", "addr", listenAddr)
			if err := receiver.Accept(); err != nil {
				logger.Error("handshake failed", "error", err)
				continue
			}
			stats, err := receiver.Receive(out)
			collector.SetStats(stats)
			if err != nil {
				logger.Error("transfer failed", "error", err)
			} else {
				logger.Info("transfer complete", "bytes", stats.BytesTransferred.Load(), "elapsed", stats.Elapsed())
			}
		}
	}()

	http.Handle("/metrics", promhttp.Handler())
	logger.Info("serving metrics", "addr", *metricsAddr)
	if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
		logger.Error("metrics server failed", "error", err)
		os.Exit(1)
	}
}
