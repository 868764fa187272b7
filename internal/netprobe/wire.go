// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package netprobe

import (
	"encoding/binary"
	"fmt"
	"net"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

const (
	// protocolICMP is the IANA protocol number for ICMPv4.
	protocolICMP = 1
	// mtuSize is the buffer size for reading ICMP messages off the wire.
	mtuSize = 1500
	// echoHeaderLen is the length of an ICMP echo header:
	// type, code, checksum, identifier and sequence number.
	echoHeaderLen = 8
	// ipHeaderLengthMask extracts the IHL field from the first byte
	// of an IPv4 header.
	ipHeaderLengthMask = 0x0F
	// byteMultiplier converts the IHL field from 4-byte words to bytes.
	byteMultiplier = 4
)

// echoPayload is the fixed payload carried by every echo request.
// Correlation never depends on it: routers are only required to quote
// the original IP header plus the first 8 bytes, which is exactly the
// echo header with identity and sequence number.
var echoPayload = []byte("sandpiper")

// marshalEcho builds the wire form of an ICMP echo request with the
// given identity and sequence number.
func marshalEcho(id int, seq uint16) ([]byte, error) {
	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   id,
			Seq:  int(seq),
			Data: echoPayload,
		},
	}
	return msg.Marshal(nil)
}

// echoReply is the parsed, correlated form of an ICMP message that
// answers one of our probes.
type echoReply struct {
	// from is the address of the device that sent the message: the
	// destination for echo replies, a router for the error notices.
	from net.Addr
	// kind classifies the message.
	kind Kind
	// id is the echo identity the message correlates to.
	id int
	// seq is the echo sequence number the message correlates to.
	seq uint16
}

// parseEchoReply parses a received ICMP message and correlates it back
// to the probe it answers. For echo replies the identity and sequence
// are taken from the message itself; for time-exceeded and unreachable
// notices they are recovered from the quoted original packet.
func parseEchoReply(src net.Addr, b []byte) (*echoReply, error) {
	msg, err := icmp.ParseMessage(protocolICMP, b)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ICMP message: %w", err)
	}

	switch body := msg.Body.(type) {
	case *icmp.Echo:
		if msg.Type != ipv4.ICMPTypeEchoReply {
			return nil, fmt.Errorf("unexpected echo message type: %v", msg.Type)
		}
		return &echoReply{
			from: src,
			kind: KindReply,
			id:   body.ID,
			seq:  uint16(body.Seq), // #nosec G115 // sequence numbers are 16 bit on the wire
		}, nil

	case *icmp.TimeExceeded:
		id, seq, err := parseQuotedEcho(body.Data)
		if err != nil {
			return nil, err
		}
		return &echoReply{from: src, kind: KindTimeExceeded, id: id, seq: seq}, nil

	case *icmp.DstUnreach:
		id, seq, err := parseQuotedEcho(body.Data)
		if err != nil {
			return nil, err
		}
		return &echoReply{from: src, kind: KindUnreachable, id: id, seq: seq}, nil

	default:
		return nil, fmt.Errorf("unexpected ICMP message type: %v", msg.Type)
	}
}

// parseQuotedEcho extracts the echo identity and sequence number from
// the quoted original packet inside a time-exceeded or unreachable
// notice. The quote starts with the original IPv4 header, followed by
// at least the first 8 bytes of our echo request.
func parseQuotedEcho(data []byte) (id int, seq uint16, err error) {
	if len(data) < 1 {
		return 0, 0, fmt.Errorf("quoted packet is empty")
	}

	headerLen := int(data[0]&ipHeaderLengthMask) * byteMultiplier
	if headerLen < ipv4.HeaderLen || len(data) < headerLen+echoHeaderLen {
		return 0, 0, fmt.Errorf("quoted packet too short: %d bytes", len(data))
	}

	inner := data[headerLen:]
	if inner[0] != uint8(ipv4.ICMPTypeEcho) {
		return 0, 0, fmt.Errorf("quoted packet is not an echo request: type %d", inner[0])
	}

	id = int(binary.BigEndian.Uint16(inner[4:6]))
	seq = binary.BigEndian.Uint16(inner[6:8])
	return id, seq, nil
}
