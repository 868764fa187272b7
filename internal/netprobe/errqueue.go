// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package netprobe

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
)

const (
	// oobBufSize is the size of the out-of-band buffer used for receiving extended error messages.
	oobBufSize = 512
	// dataBufSize is the size of the data buffer used for receiving messages.
	dataBufSize = 64
)

// errQueueMsg is one message read from the socket error queue.
type errQueueMsg struct {
	// dst is the original destination of the errored probe.
	dst net.Addr
	// data is the original outgoing packet the error refers to. On a
	// datagram ICMP socket it starts at the echo header we wrote.
	data []byte
	// oob is the out-of-band data received with the message.
	// This contains the extended error information from the kernel.
	oob []byte
}

// errIndication is a probe answer recovered from the socket error queue.
type errIndication struct {
	// offender is the device that generated the ICMP error, i.e. the
	// hop the probe died at.
	offender net.Addr
	kind     Kind
	seq      uint16
}

// unixRecvmsg is a wrapper around the [unix.Recvmsg] function.
// It allows us to mock the function in tests.
var unixRecvmsg = unix.Recvmsg

// recvErrMsg receives a single message from the socket error queue.
var recvErrMsg = func(fd uintptr, oob []byte) (*errQueueMsg, error) {
	dataBuf := make([]byte, dataBufSize)
	n, oobn, _, from, err := unixRecvmsg(int(fd), dataBuf, oob, unix.MSG_ERRQUEUE)
	if err != nil {
		return nil, fmt.Errorf("failed to receive message: %w", err)
	}

	return &errQueueMsg{
		dst:  addrFromSocket(from),
		data: dataBuf[:n],
		oob:  oob[:oobn],
	}, nil
}

// parseErrQueueMsg decodes SOL_IP / IP_RECVERR control messages into the
// probe answer they carry: what kind of ICMP error, which hop sent it,
// and the sequence number of the probe it refers to.
var parseErrQueueMsg = func(msg *errQueueMsg) (*errIndication, error) {
	if len(msg.data) < echoHeaderLen {
		return nil, fmt.Errorf("original packet too short: %d bytes", len(msg.data))
	}
	seq := binary.BigEndian.Uint16(msg.data[6:8])

	cms, err := unix.ParseSocketControlMessage(msg.oob)
	if err != nil {
		return nil, fmt.Errorf("failed to parse control messages: %w", err)
	}

	for _, cm := range cms {
		if cm.Header.Level != unix.SOL_IP || cm.Header.Type != unix.IP_RECVERR {
			continue
		}

		ee, err := newSockExtendedErr(cm.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode extended error: %w", err)
		}

		var kind Kind
		switch ee.Type {
		case uint8(ipv4.ICMPTypeTimeExceeded):
			kind = KindTimeExceeded
		case uint8(ipv4.ICMPTypeDestinationUnreachable):
			kind = KindUnreachable
		default:
			return nil, fmt.Errorf("unexpected ICMP type %d with code %d", ee.Type, ee.Code)
		}

		return &errIndication{
			offender: offenderAddr(cm.Data),
			kind:     kind,
			seq:      seq,
		}, nil
	}

	return nil, errors.New("no SOL_IP/IP_RECVERR message found")
}

// minExtendedErrSize is the minimum size of the extended error structure
// as defined in the Linux kernel documentation:
// https://man7.org/linux/man-pages/man7/ip.7.html
const minExtendedErrSize = 16

// newSockExtendedErr converts the first 16 bytes of a control message
// payload into a [unix.SockExtendedErr].
func newSockExtendedErr(data []byte) (unix.SockExtendedErr, error) {
	if len(data) < minExtendedErrSize {
		return unix.SockExtendedErr{}, fmt.Errorf("extended error too short: %d bytes", len(data))
	}

	return unix.SockExtendedErr{
		Errno:  binary.LittleEndian.Uint32(data[0:4]),
		Origin: data[4],
		Type:   data[5],
		Code:   data[6],
		Info:   binary.LittleEndian.Uint32(data[8:12]),
		Data:   binary.LittleEndian.Uint32(data[12:16]),
	}, nil
}

// offenderAddr extracts the address of the device that generated the
// error from the sockaddr the kernel appends right after the extended
// error structure (SO_EE_OFFENDER). Returns nil when the kernel did not
// record an offender.
func offenderAddr(data []byte) net.Addr {
	const sockaddrInSize = 8 // family, port and address of a sockaddr_in
	if len(data) < minExtendedErrSize+sockaddrInSize {
		return nil
	}

	sa := data[minExtendedErrSize:]
	if binary.LittleEndian.Uint16(sa[0:2]) != unix.AF_INET {
		return nil
	}
	return &net.IPAddr{IP: net.IPv4(sa[4], sa[5], sa[6], sa[7])}
}
