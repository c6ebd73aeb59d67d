package transport

import (
	"context"
	"log"
	"time"

	"github.com/hostwatch/agent/internal/config"
	"github.com/hostwatch/agent/internal/transport/wire"
)

// RejectedConfigCounter is notified once per runtime_filtering_configuration
// publish that Validate rejected, so the caller can surface spec §7
// taxonomy item 4 as a metric without this package depending on
// internal/metrics directly.
type RejectedConfigCounter func()

// recvRetryBackoff is how long RunControlLoop waits before retrying
// Recv after a transport-level error, mirroring
// runtime-control/Service.cpp's SessionLoop Sleep(1s) reconnect idiom.
const recvRetryBackoff = time.Second

// RunControlLoop is the "config thread" spec §5 describes: it blocks
// on Recv, publishes each inbound runtime_filtering_configuration to
// mgr, and acknowledges it, mirroring
// runtime_control::Service::Receive's switch-on-message-case shape. A
// Recv error is transient, not terminal — the underlying Transport
// reconnects in the background (grpcstream.Client.Run), so this loop
// keeps retrying Recv against it rather than exiting, the same
// keep-blocking-until-ctx-says-stop discipline the ingestion and
// reporter threads follow. It returns only when ctx is cancelled.
func RunControlLoop(ctx context.Context, xport Transport, mgr *config.Manager, onRejected RejectedConfigCounter) {
	for {
		msg, err := xport.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("transport: control stream recv error: %v", err)
			select {
			case <-time.After(recvRetryBackoff):
			case <-ctx.Done():
				return
			}
			continue
		}

		snap := applyRuntimeFilterConfig(mgr.Load(), msg.RuntimeFilteringConfiguration)
		publishErr := mgr.Publish(snap)
		if publishErr != nil {
			log.Printf("transport: rejected runtime_filtering_configuration: %v", publishErr)
			if onRejected != nil {
				onRejected()
			}
		}

		if err := xport.Ack(ctx, publishErr); err != nil {
			log.Printf("transport: failed to ack runtime_filtering_configuration: %v", err)
		}
	}
}

// applyRuntimeFilterConfig overlays an inbound RuntimeFilterConfig
// onto the current snapshot's mutable fields, leaving
// bootstrap-only fields (LogLevel) untouched — spec §6 draws that line
// between the YAML-seeded snapshot and what the collector can push.
func applyRuntimeFilterConfig(current config.Snapshot, rfc wire.RuntimeFilterConfig) config.Snapshot {
	next := current
	next.TurnOffScrape = rfc.TurnOffScrape
	if rfc.ScrapeIntervalSeconds != 0 {
		next.ScrapeInterval = time.Duration(rfc.ScrapeIntervalSeconds) * time.Second
	}
	next.AfterglowPeriodMicros = rfc.AfterglowPeriodMicros
	next.EnableAfterglow = rfc.EnableAfterglow
	next.ProcessesListeningOnPort = rfc.ProcessesListeningOnPort
	next.Filter = rfc.Filter
	return next
}
