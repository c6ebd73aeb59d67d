package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/hostwatch/agent/internal/signalhandler/network"
	"gopkg.in/yaml.v3"
)

// document is the bootstrap YAML shape, one field per recognized
// option from spec §6. Grounded on the teacher's Config/LoadConfig
// shape (internal/config/config.go): a plain struct decoded with
// yaml.v3 tags, nothing fancier.
type document struct {
	LogLevel                 string          `yaml:"log_level"`
	TurnOffScrape            bool            `yaml:"turn_off_scrape"`
	ScrapeIntervalSeconds    uint32          `yaml:"scrape_interval_seconds"`
	AfterglowPeriodMicros    *uint64         `yaml:"afterglow_period_micros"`
	EnableAfterglow          *bool           `yaml:"enable_afterglow"`
	ProcessesListeningOnPort bool            `yaml:"processes_listening_on_port"`
	IgnoredCIDRs             []cidrYAML      `yaml:"ignored_cidrs"`
	IgnoredClientPorts       []portRangeYAML `yaml:"ignored_client_ports"`
	IgnoreLocalhost          bool            `yaml:"ignore_localhost"`
	PrivilegedOnly           bool            `yaml:"privileged_only"`
}

// Load reads and validates the bootstrap configuration file at path.
// Unknown keys are rejected (error taxonomy item 4, "unknown option")
// via strict decoding rather than silently ignored.
func Load(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return Snapshot{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	snap := Default()
	if doc.LogLevel != "" {
		snap.LogLevel = LogLevel(doc.LogLevel)
	}
	snap.TurnOffScrape = doc.TurnOffScrape
	if doc.ScrapeIntervalSeconds != 0 {
		snap.ScrapeInterval = time.Duration(doc.ScrapeIntervalSeconds) * time.Second
	}
	if doc.AfterglowPeriodMicros != nil {
		snap.AfterglowPeriodMicros = *doc.AfterglowPeriodMicros
	}
	if doc.EnableAfterglow != nil {
		snap.EnableAfterglow = *doc.EnableAfterglow
	}
	snap.ProcessesListeningOnPort = doc.ProcessesListeningOnPort

	filter := network.FilterConfig{
		IgnoreLocalhost: doc.IgnoreLocalhost,
		PrivilegedOnly:  doc.PrivilegedOnly,
	}
	for _, c := range doc.IgnoredCIDRs {
		filter.IgnoredCIDRs = append(filter.IgnoredCIDRs, c.toPrefix())
	}
	for _, r := range doc.IgnoredClientPorts {
		filter.IgnoredClientPorts = append(filter.IgnoredClientPorts, network.PortRange(r))
	}
	snap.Filter = filter

	if err := Validate(snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
