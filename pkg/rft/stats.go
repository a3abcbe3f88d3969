package rft

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats accumulates the transfer statistics spec.md §7 says are returned to
// the caller on completion: packets sent, retransmissions, ACKs received,
// loss rate, out-of-order count, and elapsed time. Fields are atomics so
// the sender's main loop and its AckReceiverTask can both update them
// without holding the protocol mutex just for bookkeeping.
type Stats struct {
	TotalPacketsSent      atomic.Uint64
	TotalRetransmissions  atomic.Uint64
	TotalAcksReceived     atomic.Uint64
	OutOfOrderPackets     atomic.Uint64
	BytesTransferred      atomic.Uint64

	start time.Time
	end   atomic.Int64 // UnixNano; 0 until MarkDone
}

// NewStats returns a Stats with its start time set to now.
func NewStats() *Stats {
	return &Stats{start: time.Now()}
}

// MarkDone records the completion time used by Elapsed.
func (s *Stats) MarkDone() { s.end.Store(time.Now().UnixNano()) }

// Elapsed returns the time between NewStats and MarkDone, or time-since-start
// if the transfer has not completed yet.
func (s *Stats) Elapsed() time.Duration {
	end := s.end.Load()
	if end == 0 {
		return time.Since(s.start)
	}
	return time.Unix(0, end).Sub(s.start)
}

// LossRatePercent reproduces cn_lab2/client/client.cpp's end-of-run
// statistic: retransmissions as a percentage of packets sent.
func (s *Stats) LossRatePercent() float64 {
	sent := s.TotalPacketsSent.Load()
	if sent == 0 {
		return 0
	}
	return float64(s.TotalRetransmissions.Load()) / float64(sent) * 100
}

// ThroughputKbps reproduces cn_lab2/client/client.cpp's throughput
// statistic: bits transferred per second, in Kbps.
func (s *Stats) ThroughputKbps() float64 {
	secs := s.Elapsed().Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.BytesTransferred.Load()) * 8 / (secs * 1024)
}

// StatsCollector adapts a Stats to a prometheus.Collector, grounded on
// rbott-tcp-stream-exporter/prom/collector.go's Desc/Describe/Collect
// shape, applied here to a single transfer's counters instead of a table of
// sniffed TCP streams.
type StatsCollector struct {
	mu    sync.RWMutex
	label string
	stats *Stats

	packetsSent     *prometheus.Desc
	retransmissions *prometheus.Desc
	acksReceived    *prometheus.Desc
	outOfOrder      *prometheus.Desc
	bytesTotal      *prometheus.Desc
	lossRate        *prometheus.Desc
	elapsedSeconds  *prometheus.Desc
}

// NewStatsCollector returns a collector reporting stats under the given
// label (e.g. a peer address), suitable for prometheus.Register.
func NewStatsCollector(label string, stats *Stats) *StatsCollector {
	labels := []string{"peer"}
	return &StatsCollector{
		label: label,
		stats: stats,
		packetsSent: prometheus.NewDesc(
			"rft_packets_sent_total", "Total data packets sent, not counting retransmissions", labels, nil),
		retransmissions: prometheus.NewDesc(
			"rft_retransmissions_total", "Total packet retransmissions", labels, nil),
		acksReceived: prometheus.NewDesc(
			"rft_acks_received_total", "Total ACK packets received by a sender, or sent by a receiver", labels, nil),
		outOfOrder: prometheus.NewDesc(
			"rft_out_of_order_packets_total", "Total out-of-order packets buffered by the receiver", labels, nil),
		bytesTotal: prometheus.NewDesc(
			"rft_bytes_transferred_total", "Total payload bytes transferred", labels, nil),
		lossRate: prometheus.NewDesc(
			"rft_loss_rate_percent", "Retransmissions as a percentage of packets sent", labels, nil),
		elapsedSeconds: prometheus.NewDesc(
			"rft_elapsed_seconds", "Elapsed time of the transfer", labels, nil),
	}
}

func (c *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.packetsSent
	ch <- c.retransmissions
	ch <- c.acksReceived
	ch <- c.outOfOrder
	ch <- c.bytesTotal
	ch <- c.lossRate
	ch <- c.elapsedSeconds
}

func (c *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	stats := c.stats
	label := c.label
	c.mu.RUnlock()
	if stats == nil {
		return
	}

	ch <- prometheus.MustNewConstMetric(c.packetsSent, prometheus.CounterValue, float64(stats.TotalPacketsSent.Load()), label)
	ch <- prometheus.MustNewConstMetric(c.retransmissions, prometheus.CounterValue, float64(stats.TotalRetransmissions.Load()), label)
	ch <- prometheus.MustNewConstMetric(c.acksReceived, prometheus.CounterValue, float64(stats.TotalAcksReceived.Load()), label)
	ch <- prometheus.MustNewConstMetric(c.outOfOrder, prometheus.CounterValue, float64(stats.OutOfOrderPackets.Load()), label)
	ch <- prometheus.MustNewConstMetric(c.bytesTotal, prometheus.CounterValue, float64(stats.BytesTransferred.Load()), label)
	ch <- prometheus.MustNewConstMetric(c.lossRate, prometheus.GaugeValue, stats.LossRatePercent(), label)
	ch <- prometheus.MustNewConstMetric(c.elapsedSeconds, prometheus.GaugeValue, stats.Elapsed().Seconds(), label)
}

// SetStats swaps the Stats a running collector reports on, letting
// cmd/rftexport register one collector before a transfer starts.
func (c *StatsCollector) SetStats(stats *Stats) {
	c.mu.Lock()
	c.stats = stats
	c.mu.Unlock()
}
