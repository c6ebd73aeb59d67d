// Command hostwatch-agent wires the network observation pipeline's
// threads together: ingestion, the signal handler registry, both
// trackers, the scrape ingester, the periodic reporter, the gRPC
// transport's control loop, and the diag server. Grounded on
// cmd/ns-engine/main.go's load-config/construct/Start/wait-for-signal/
// Stop shape.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cilium/ebpf"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/hostwatch/agent/internal/config"
	"github.com/hostwatch/agent/internal/diag"
	"github.com/hostwatch/agent/internal/event"
	"github.com/hostwatch/agent/internal/ingest/ringbuf"
	"github.com/hostwatch/agent/internal/ingest/scrape"
	"github.com/hostwatch/agent/internal/metrics"
	"github.com/hostwatch/agent/internal/registry"
	"github.com/hostwatch/agent/internal/reporter"
	endpointhandler "github.com/hostwatch/agent/internal/signalhandler/endpoint"
	"github.com/hostwatch/agent/internal/signalhandler/network"
	"github.com/hostwatch/agent/internal/signalhandler/selfcheck"
	"github.com/hostwatch/agent/internal/transport"
	"github.com/hostwatch/agent/internal/transport/grpcstream"
	"github.com/hostwatch/agent/internal/tracker/connection"
	"github.com/hostwatch/agent/internal/tracker/endpoint"
)

// eventSource is the minimal pull contract both ringbuf.Source (a live
// map) and ringbuf.Fixture (tests, or no driver attached) satisfy.
type eventSource interface {
	Next(ctx context.Context) (event.RawEvent, error)
}

func main() {
	hostID := flag.String("host-id", "", "identifier this agent reports under; defaults to the hostname")
	configPath := flag.String("config", "", "bootstrap YAML config path; defaults are used if empty")
	collectorTarget := flag.String("collector", "127.0.0.1:9443", "address of the remote collector's gRPC endpoint")
	ringbufMapPin := flag.String("ringbuf-map", "", "bpffs pin path of the already-loaded ring buffer map")
	natsURL := flag.String("nats-url", "nats://127.0.0.1:4222", "NATS server URL for scrape snapshots")
	scrapeSubject := flag.String("scrape-subject", "hostwatch.scrape", "NATS subject scrape snapshots are published on")
	diagAddr := flag.String("diag-addr", "127.0.0.1:9090", "address the introspection HTTP server listens on")
	selfCheckName := flag.String("self-check-name", "", "process name of the self-check probe; self-check skipped if empty")
	selfCheckExe := flag.String("self-check-exe", "", "process exe path of the self-check probe")
	selfCheckTimeout := flag.Duration("self-check-timeout", 10*time.Second, "how long to wait for the self-check probe's events")
	flag.Parse()

	id := resolveHostID(*hostID)
	log.Printf("hostwatch-agent starting, host_id=%s", id)

	snap := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("loading config %s: %v", *configPath, err)
		}
		snap = loaded
	}
	mgr := config.NewManager(snap)
	m := metrics.New()

	connTracker := connection.New(connection.DefaultHardCap, m.EvictionCounterFor("connection"))
	endpTracker := endpoint.New(endpoint.DefaultHardCap, m.EvictionCounterFor("endpoint"))

	src, closeSrc := openEventSource(*ringbufMapPin)
	defer closeSrc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *selfCheckName != "" {
		identity := selfcheck.Identity{Name: *selfCheckName, Exe: *selfCheckExe}
		if err := selfcheck.Run(ctx, src, identity, *selfCheckTimeout); err != nil {
			log.Fatalf("self-check failed, aborting startup: %v", err)
		}
		log.Println("self-check passed")
	}

	reg := registry.Build([]registry.Handler{
		network.New(connTracker, mgr.FilterSource()),
		endpointhandler.New(endpTracker),
	})

	xport := grpcstream.New(*collectorTarget, grpc.WithTransportCredentials(insecure.NewCredentials()))
	go xport.Run(ctx)

	sub, err := scrape.NewSubscriber(*natsURL, *scrapeSubject)
	if err != nil {
		log.Fatalf("connecting scrape subscriber: %v", err)
	}
	defer sub.Close()
	ingester := scrape.New(sub, endpTracker, mgr)
	ingester.Start(ctx)
	defer ingester.Stop()

	rep := reporter.New(id, connTracker, endpTracker, mgr, xport)
	rep.Start(ctx)
	defer rep.Stop()

	go transport.RunControlLoop(ctx, xport, mgr, func() { m.ConfigRejected.Inc() })

	diagSrv := diag.New(*diagAddr, diag.Status{
		ConnectionTableSize: connTracker.Len,
		EndpointTableSize:   endpTracker.Len,
		TransportReady:      xport.Ready,
	}, m)
	diagSrv.Start()
	defer diagSrv.Stop()

	go runIngestion(ctx, src, reg)

	waitForShutdown()
	log.Println("shutdown signal received, stopping")
	cancel()
}

// runIngestion is the driver thread: pull raw events from src and
// dispatch them until ctx is cancelled (spec.md §5's push-for-ingestion
// control flow).
func runIngestion(ctx context.Context, src eventSource, reg *registry.Registry) {
	for {
		e, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("ingestion: read error: %v", err)
			continue
		}
		reg.Dispatch(e)
	}
}

func resolveHostID(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	h, err := os.Hostname()
	if err != nil {
		return "unknown-host"
	}
	return h
}

// openEventSource opens the ring buffer map pinned at mapPin, or falls
// back to an empty in-memory fixture when no pin path is given — e.g.
// running off Linux, or in an environment without the driver attached.
func openEventSource(mapPin string) (eventSource, func()) {
	if mapPin == "" {
		log.Println("no -ringbuf-map given; running without a live event source")
		fx := ringbuf.NewFixture()
		return fx, func() { fx.Close() }
	}

	m, err := ebpf.LoadPinnedMap(mapPin, nil)
	if err != nil {
		log.Fatalf("loading pinned ring buffer map %s: %v", mapPin, err)
	}
	src, err := ringbuf.Open(m)
	if err != nil {
		log.Fatalf("opening ring buffer reader: %v", err)
	}
	return src, func() { src.Close() }
}

func waitForShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
}
