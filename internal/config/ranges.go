package config

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/hostwatch/agent/internal/signalhandler/network"
	"gopkg.in/yaml.v3"
)

// portRangeYAML unmarshals a "low-high" or "port" YAML scalar into a
// network.PortRange.
type portRangeYAML network.PortRange

func (p *portRangeYAML) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	low, high, found := strings.Cut(s, "-")
	if !found {
		v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
		if err != nil {
			return fmt.Errorf("invalid port range %q: %w", s, err)
		}
		p.Low, p.High = uint16(v), uint16(v)
		return nil
	}
	lo, err := strconv.ParseUint(strings.TrimSpace(low), 10, 16)
	if err != nil {
		return fmt.Errorf("invalid port range %q: %w", s, err)
	}
	hi, err := strconv.ParseUint(strings.TrimSpace(high), 10, 16)
	if err != nil {
		return fmt.Errorf("invalid port range %q: %w", s, err)
	}
	p.Low, p.High = uint16(lo), uint16(hi)
	return nil
}

// cidrYAML unmarshals a CIDR string into a netip.Prefix.
type cidrYAML netip.Prefix

func (c cidrYAML) toPrefix() netip.Prefix {
	return netip.Prefix(c)
}

func (c *cidrYAML) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	p, err := netip.ParsePrefix(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid CIDR %q: %w", s, err)
	}
	*c = cidrYAML(p)
	return nil
}
