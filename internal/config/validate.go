package config

import (
	"fmt"
	"time"
)

// Validate checks a candidate Snapshot against spec §6's declared
// ranges, implementing error taxonomy item 4 ("out-of-range value:
// rejected at publish time").
func Validate(s Snapshot) error {
	switch s.LogLevel {
	case LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return fmt.Errorf("config: unrecognized log_level %q", s.LogLevel)
	}

	if s.ScrapeInterval < time.Second || s.ScrapeInterval > 3600*time.Second {
		return fmt.Errorf("config: scrape_interval_seconds out of range [1, 3600]: %s", s.ScrapeInterval)
	}

	for _, r := range s.Filter.IgnoredClientPorts {
		if r.Low > r.High {
			return fmt.Errorf("config: ignored_client_ports range %d-%d has low > high", r.Low, r.High)
		}
	}

	for _, c := range s.Filter.IgnoredCIDRs {
		if !c.IsValid() {
			return fmt.Errorf("config: ignored_cidrs entry is not a valid CIDR")
		}
	}

	return nil
}
