// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package netprobe

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"slices"
	"time"
)

// Mode selects the probing technique.
type Mode string

// Mode constants for the prober.
const (
	// ModeICMP probes with ICMP echo requests. This is the default and
	// matches what routers along the path most commonly answer to.
	ModeICMP Mode = "icmp"
	// ModeTCP probes with TCP SYN segments. Useful when ICMP is
	// filtered between here and the target.
	ModeTCP Mode = "tcp"
)

func (m Mode) String() string {
	switch m {
	case ModeICMP, ModeTCP:
		return string(m)
	default:
		return "unknown"
	}
}

func (m Mode) IsValid() bool {
	valid := []Mode{ModeICMP, ModeTCP}
	return slices.Contains(valid, m)
}

// Kind classifies the terminal outcome of a single probe.
type Kind string

const (
	// KindReply means the destination itself answered.
	KindReply Kind = "reply"
	// KindTimeExceeded means an intermediate router reported the probe's
	// distance budget as exhausted. This is the expected answer from
	// every hop before the destination.
	KindTimeExceeded Kind = "time_exceeded"
	// KindUnreachable means a router reported the destination as
	// unreachable.
	KindUnreachable Kind = "unreachable"
	// KindTimeout means nothing came back within the probe's timeout.
	KindTimeout Kind = "timeout"
)

func (k Kind) String() string {
	switch k {
	case KindReply, KindTimeExceeded, KindUnreachable, KindTimeout:
		return string(k)
	default:
		return "unknown"
	}
}

// Request describes a single probe to send.
type Request struct {
	// Target is the resolved address of the destination.
	Target net.IP `json:"target" yaml:"target"`
	// Port is the destination port for TCP probes. Ignored for ICMP.
	Port int `json:"port,omitempty" yaml:"port,omitempty"`
	// Distance is the IP TTL to send the probe with, i.e. the number of
	// hops the probe may travel before a router discards it and
	// answers with a time-exceeded notice. Must be >= 1.
	Distance int `json:"distance" yaml:"distance"`
	// Timeout is how long to wait for any answer before giving up.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

func (r Request) Validate() error {
	if len(r.Target) == 0 {
		return errors.New("probe target cannot be empty")
	}
	if r.Target.To4() == nil {
		return fmt.Errorf("probe target must be an IPv4 address, got %s", r.Target)
	}
	if r.Distance < 1 || r.Distance > 255 {
		return fmt.Errorf("invalid probe distance: %d, must be between 1 and 255", r.Distance)
	}
	if r.Port < 0 || r.Port > 65535 {
		return fmt.Errorf("invalid probe port: %d, must be between 0 and 65535", r.Port)
	}
	if r.Timeout <= 0 {
		return fmt.Errorf("invalid probe timeout: %s, must be positive", r.Timeout)
	}
	return nil
}

func (r Request) String() string {
	return fmt.Sprintf("%s@%d", r.Target, r.Distance)
}

// Outcome is the terminal result of a single probe. Exactly one
// outcome is produced per probe; there are no retries at this layer.
type Outcome struct {
	// RTT is the round trip time between sending the probe and
	// receiving the answer. Zero for timeouts.
	RTT time.Duration `json:"-" yaml:"-"`
	// From is the address of the device that answered. The destination
	// itself for [KindReply], an intermediate router otherwise. Zero
	// for timeouts.
	From HopAddress `json:"from" yaml:"from"`
	// Kind classifies what came back.
	Kind Kind `json:"kind" yaml:"kind"`
	// Distance is the TTL the probe was sent with.
	Distance int `json:"distance" yaml:"distance"`
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	type alias Outcome
	return json.Marshal(&struct {
		RTT string `json:"rtt"`
		alias
	}{
		RTT:   o.RTT.String(),
		alias: alias(o),
	})
}

func (o Outcome) String() string {
	if o.Kind == KindTimeout {
		return fmt.Sprintf("%-2d  %-45.45s  *", o.Distance, "?")
	}
	return fmt.Sprintf("%-2d  %-45.45s  %s  (%s)",
		o.Distance, o.From.String(), o.RTT.String(), o.Kind)
}

// HopAddress is the network address of a device that answered a probe.
type HopAddress struct {
	IP   string `json:"ip" yaml:"ip"`
	Port int    `json:"port,omitempty" yaml:"port,omitempty"`
}

func newHopAddress(addr net.Addr) HopAddress {
	ip := ipFromAddr(addr)
	if ip == nil {
		return HopAddress{}
	}
	ha := HopAddress{IP: ip.String()}
	if a, ok := addr.(*net.TCPAddr); ok {
		ha.Port = a.Port
	}
	return ha
}

func (a HopAddress) String() string {
	if a.Port != 0 {
		return fmt.Sprintf("%s:%d", a.IP, a.Port)
	}
	return a.IP
}

// IsZero reports whether no address is set.
func (a HopAddress) IsZero() bool {
	return a.IP == "" && a.Port == 0
}
