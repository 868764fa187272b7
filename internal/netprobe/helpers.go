// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package netprobe

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sys/unix"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/telekom/sandpiper/internal/logger"
)

const (
	// basePort is the starting port for TCP probe source ports
	basePort = 30000
	// portRange is the range of ports to generate a random port from
	portRange = 10000
)

// randomPort returns a random port in the interval [30000, 40000)
func randomPort() int {
	return rand.N(portRange) + basePort // #nosec G404 // math.rand is fine here, we're not doing encryption
}

// ResolveTarget resolves a hostname to its first IPv4 address.
// Plain IPv4 literals pass through without a lookup.
func ResolveTarget(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if ip.To4() == nil {
			return nil, fmt.Errorf("target %s is not an IPv4 address", host)
		}
		return ip.To4(), nil
	}

	addrs, err := net.DefaultResolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve target %q: %w", host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("target %q has no IPv4 addresses", host)
	}
	return addrs[0].To4(), nil
}

// ResolveName performs a reverse DNS lookup for the given IP address.
// If the lookup fails or returns no names, it returns an empty string.
func ResolveName(addr string) string {
	if addr == "" {
		return ""
	}

	names, err := net.LookupAddr(addr)
	if err != nil || len(names) == 0 {
		return ""
	}
	return names[0]
}

// ipFromAddr extracts the IP address from a [net.Addr].
func ipFromAddr(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP
	case *net.TCPAddr:
		return a.IP
	case *net.IPAddr:
		return a.IP
	}
	return nil
}

// addrFromSocket converts a [unix.Sockaddr] into a [net.Addr].
func addrFromSocket(sa unix.Sockaddr) net.Addr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.IPAddr{IP: net.IPv4(a.Addr[0], a.Addr[1], a.Addr[2], a.Addr[3])}
	case *unix.SockaddrInet6:
		return &net.IPAddr{IP: net.IP(a.Addr[:])}
	}
	return nil
}

// wrapError wraps an error with a message and logs it.
// It also records the error in the current OpenTelemetry span.
func wrapError(ctx context.Context, err error, msg string, args ...any) error {
	if err == nil {
		return nil
	}
	log := logger.FromContext(ctx)
	span := trace.SpanFromContext(ctx)
	caser := cases.Title(language.English)

	log.ErrorContext(ctx, caser.String(msg), append([]any{"error", err}, args...)...)
	span.SetStatus(codes.Error, fmt.Sprintf(msg+": %v", args...))
	span.RecordError(err)
	return fmt.Errorf("%s: %w", fmt.Sprintf(msg, args...), err)
}
