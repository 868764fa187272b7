// Package netprobe provides the low-level probing primitives for
// measuring network paths hop by hop.
//
// It exposes a [Prober] that sends a single probe with a capped
// distance (IP TTL) and reports the terminal [Outcome]: a reply from
// the destination, a time-exceeded notice from an intermediate router,
// a destination-unreachable notice, or a timeout. Probes never retry;
// correlation of replies to probes is done per probe via the ICMP echo
// sequence number or, for TCP probes, the ephemeral source port.
//
// Key features:
//   - Persistent ICMP echo engine sharing one socket across all probes,
//     with a raw socket when NET_RAW capabilities are available and an
//     unprivileged datagram ping socket (IP_RECVERR error queue) as
//     fallback
//   - TCP SYN probing with IP_TTL control via x/sys/unix for paths
//     where ICMP is filtered
//   - Concurrency-safe: any number of goroutines may probe through the
//     same engine, each blocking only on its own outcome
//   - Fully mockable ([Prober] has a generated mock) for unit testing
//
// Typical usage:
//
//	prober, err := netprobe.New(ctx, netprobe.ModeICMP)
//	out, err := prober.Probe(ctx, netprobe.Request{Target: ip, Distance: 4, Timeout: time.Second})
//	// out.Kind tells what came back, out.From who sent it, out.RTT how long it took
//
// See each type for more detailed documentation.
package netprobe
