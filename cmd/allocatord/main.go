// Command allocatord hosts one process-wide Allocator alongside its
// telemetry sidecar: a durable outbox, a Kafka broadcaster draining it,
// a sampled-stats publisher, and a diagnostics gRPC endpoint. Wiring
// follows the same construct-everything-in-main, background-ticker,
// blocking-Serve-at-the-end shape the engine's own cmd/server/main.go
// uses.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"strings"
	"time"

	"google.golang.org/grpc"

	"vaultmem/alloc"
	"vaultmem/telemetry/broadcaster"
	"vaultmem/telemetry/events"
	"vaultmem/telemetry/outbox"
	"vaultmem/telemetry/rpc"
)

const eventKindStatsSample uint8 = 1

func main() {
	outboxDir := flag.String("outbox-dir", "./telemetry_outbox", "durable telemetry event store directory")
	brokersFlag := flag.String("brokers", "localhost:9092", "comma-separated Kafka broker addresses")
	eventTopic := flag.String("event-topic", "vaultmem.events", "outbox event publish topic")
	statsTopic := flag.String("stats-topic", "vaultmem.stats", "sampled stats publish topic")
	listenAddr := flag.String("listen", ":50061", "diagnostics gRPC listen address")
	flag.Parse()
	brokers := strings.Split(*brokersFlag, ",")

	// ---------------- Allocator ----------------

	allocator, err := alloc.New(alloc.DefaultConfig())
	if err != nil {
		log.Fatalf("allocator init failed: %v", err)
	}
	defer allocator.Close()

	// ---------------- Telemetry outbox ----------------

	box, err := outbox.Open(*outboxDir)
	if err != nil {
		log.Fatalf("outbox init failed: %v", err)
	}
	defer box.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---------------- Background jobs ----------------

	bc, err := broadcaster.New(box, brokers, *eventTopic)
	if err != nil {
		log.Fatalf("broadcaster init failed: %v", err)
	}
	defer bc.Close()
	bc.Start(ctx)

	statsProducer := events.NewProducer(brokers, *statsTopic)
	defer statsProducer.Close()

	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			st := allocator.Stats()
			if err := statsProducer.SendStats(ctx, nil, st); err != nil {
				log.Printf("[telemetry] stats publish failed: %v", err)
			}
			if _, err := box.Append(eventKindStatsSample, 0, nil); err != nil {
				log.Printf("[telemetry] outbox write failed: %v", err)
			}
		}
	}()

	// ---------------- Diagnostics gRPC ----------------

	lis, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		log.Fatalf("listen failed: %v", err)
	}

	grpcSrv := grpc.NewServer()
	rpc.RegisterDiagnosticsServer(grpcSrv, rpc.NewServer(allocator))

	log.Printf("vaultmem allocator daemon running on %s", *listenAddr)
	if err := grpcSrv.Serve(lis); err != nil {
		log.Fatalf("gRPC server exited: %v", err)
	}
}
