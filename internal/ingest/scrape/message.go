// Package scrape subscribes to process-listening-on-port scrape
// snapshots published on NATS and feeds them into the endpoint
// tracker's merge rule, binding spec.md §4.5's abstract "scraper" to a
// concrete transport, grounded on the teacher's internal/probe
// subscriber (itself a NATS subscriber decoding protobuf packet
// captures into the tracker's input shape).
package scrape

import "github.com/hostwatch/agent/internal/model"

// Snapshot is one scrape cycle's complete set of listening endpoints
// for a single container, as published by the (out-of-scope, external)
// process-listening-on-port scraper.
type Snapshot struct {
	ContainerID      string
	ScrapeTimeMicros uint64
	Endpoints        []model.ListeningEndpoint
}

// seen converts a Snapshot's flat endpoint list into the
// map[EndpointKey]ProcessInfo shape endpoint.Tracker.ApplyScrape
// consumes.
func (s Snapshot) seen() map[model.EndpointKey]model.ProcessInfo {
	out := make(map[model.EndpointKey]model.ProcessInfo, len(s.Endpoints))
	for _, le := range s.Endpoints {
		key := model.EndpointKey{
			ContainerID: le.ContainerID,
			Endpoint:    le.Endpoint,
			Proto:       le.Proto,
		}
		out[key] = le.Originator
	}
	return out
}
