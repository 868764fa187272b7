// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package netprobe

import (
	"encoding/binary"
	"errors"
	"net"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
)

// echoData builds the original-packet bytes the kernel returns for an
// errored probe on a datagram ICMP socket: our echo message, starting
// at its header.
func echoData(t *testing.T, seq uint16) []byte {
	t.Helper()
	b, err := marshalEcho(0, seq)
	require.NoError(t, err)
	return b
}

// newExtendedErrOOB creates OOB data with an IP_RECVERR control message
// carrying the extended error, optionally followed by the offender.
func newExtendedErrOOB(icmpType, icmpCode uint8, offender net.IP) []byte {
	payload := make([]byte, minExtendedErrSize)
	payload[5] = icmpType
	payload[6] = icmpCode

	if offender != nil {
		sa := make([]byte, 16)
		binary.LittleEndian.PutUint16(sa[0:2], unix.AF_INET)
		copy(sa[4:8], offender.To4())
		payload = append(payload, sa...)
	}
	return newControlMessage(unix.SOL_IP, unix.IP_RECVERR, payload)
}

// newControlMessage creates a control message with given level, type and data
func newControlMessage(level, msgType int, data []byte) []byte {
	cmsgLen := unix.CmsgLen(len(data))
	buf := make([]byte, cmsgLen)

	hdr := (*unix.Cmsghdr)(unsafe.Pointer(&buf[0]))
	hdr.SetLen(cmsgLen)
	hdr.Level = int32(level)
	hdr.Type = int32(msgType)

	copy(buf[unix.CmsgSpace(0):], data)
	return buf
}

func Test_parseErrQueueMsg(t *testing.T) {
	offender := net.IPv4(192, 168, 1, 1)

	tests := []struct {
		name     string
		icmpType uint8
		icmpCode uint8
		wantKind Kind
		wantErr  bool
	}{
		{
			name:     "time exceeded",
			icmpType: uint8(ipv4.ICMPTypeTimeExceeded),
			icmpCode: 0,
			wantKind: KindTimeExceeded,
		},
		{
			name:     "destination unreachable",
			icmpType: uint8(ipv4.ICMPTypeDestinationUnreachable),
			icmpCode: 1,
			wantKind: KindUnreachable,
		},
		{
			name:     "unexpected ICMP type",
			icmpType: 99,
			icmpCode: 0,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := &errQueueMsg{
				dst:  &net.IPAddr{IP: net.ParseIP("198.51.100.9")},
				data: echoData(t, 271),
				oob:  newExtendedErrOOB(tt.icmpType, tt.icmpCode, offender),
			}

			got, err := parseErrQueueMsg(msg)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, got.kind)
			assert.Equal(t, uint16(271), got.seq)
			assert.Equal(t, &net.IPAddr{IP: offender}, got.offender)
		})
	}
}

func Test_parseErrQueueMsg_Errors(t *testing.T) {
	t.Run("original packet too short for an echo header", func(t *testing.T) {
		msg := &errQueueMsg{
			data: []byte{0x08, 0x00, 0x00},
			oob:  newExtendedErrOOB(uint8(ipv4.ICMPTypeTimeExceeded), 0, nil),
		}

		_, err := parseErrQueueMsg(msg)
		assert.Error(t, err)
	})

	t.Run("short extended error data", func(t *testing.T) {
		msg := &errQueueMsg{
			data: echoData(t, 3),
			oob:  newControlMessage(unix.SOL_IP, unix.IP_RECVERR, []byte{0x01, 0x02, 0x03}),
		}

		_, err := parseErrQueueMsg(msg)
		assert.Error(t, err)
	})

	t.Run("no IP_RECVERR message", func(t *testing.T) {
		msg := &errQueueMsg{
			data: echoData(t, 3),
			oob:  newControlMessage(unix.SOL_SOCKET, unix.SO_TIMESTAMP, make([]byte, 16)),
		}

		_, err := parseErrQueueMsg(msg)
		assert.Error(t, err)
	})

	t.Run("empty OOB data", func(t *testing.T) {
		msg := &errQueueMsg{data: echoData(t, 3), oob: []byte{}}

		_, err := parseErrQueueMsg(msg)
		assert.Error(t, err)
	})
}

func Test_newSockExtendedErr(t *testing.T) {
	t.Run("valid data", func(t *testing.T) {
		data := []byte{
			0x01, 0x00, 0x00, 0x00, // Errno: 1
			0x02,                   // Origin: 2
			0x0b,                   // Type: 11
			0x03,                   // Code: 3
			0x00,                   // Pad
			0x34, 0x12, 0x00, 0x00, // Info: 0x1234
			0x78, 0x56, 0x00, 0x00, // Data: 0x5678
		}

		got, err := newSockExtendedErr(data)

		assert.NoError(t, err)
		assert.Equal(t, unix.SockExtendedErr{
			Errno:  1,
			Origin: 2,
			Type:   11,
			Code:   3,
			Info:   0x1234,
			Data:   0x5678,
		}, got)
	})

	t.Run("data too short (only 3 bytes)", func(t *testing.T) {
		data := []byte{0x01, 0x02, 0x03}
		_, err := newSockExtendedErr(data)

		assert.Error(t, err)
	})

	t.Run("minimum size with all zeros", func(t *testing.T) {
		data := make([]byte, minExtendedErrSize)

		got, err := newSockExtendedErr(data)

		assert.NoError(t, err)
		assert.Equal(t, unix.SockExtendedErr{}, got)
	})
}

func Test_offenderAddr(t *testing.T) {
	t.Run("IPv4 offender present", func(t *testing.T) {
		data := make([]byte, minExtendedErrSize+16)
		binary.LittleEndian.PutUint16(data[minExtendedErrSize:], unix.AF_INET)
		copy(data[minExtendedErrSize+4:], net.IPv4(10, 1, 2, 3).To4())

		got := offenderAddr(data)

		assert.Equal(t, &net.IPAddr{IP: net.IPv4(10, 1, 2, 3)}, got)
	})

	t.Run("no offender recorded", func(t *testing.T) {
		assert.Nil(t, offenderAddr(make([]byte, minExtendedErrSize)))
	})

	t.Run("non-IPv4 offender", func(t *testing.T) {
		data := make([]byte, minExtendedErrSize+16)
		binary.LittleEndian.PutUint16(data[minExtendedErrSize:], unix.AF_INET6)

		assert.Nil(t, offenderAddr(data))
	})
}

func Test_recvErrMsg(t *testing.T) {
	// Store the original function to restore after tests
	origUnixRecvmsg := unixRecvmsg
	defer func() { unixRecvmsg = origUnixRecvmsg }()

	t.Run("successful reception", func(t *testing.T) {
		wantData := echoData(t, 99)
		wantOob := []byte{0x01, 0x02, 0x03, 0x04}
		mockFrom := &unix.SockaddrInet4{
			Port: 0,
			Addr: [4]byte{192, 168, 1, 1},
		}

		unixRecvmsg = func(fd int, p, oob []byte, flags int) (n, oobn, recvflags int, from unix.Sockaddr, err error) {
			assert.Equal(t, unix.MSG_ERRQUEUE, flags)
			copy(p, wantData)
			copy(oob, wantOob)
			return len(wantData), len(wantOob), 0, mockFrom, nil
		}

		result, err := recvErrMsg(123, make([]byte, oobBufSize))

		assert.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, wantData, result.data)
		assert.Equal(t, wantOob, result.oob)
		assert.Equal(t, &net.IPAddr{IP: net.IPv4(192, 168, 1, 1)}, result.dst)
	})

	t.Run("unix.Recvmsg returns error", func(t *testing.T) {
		unixRecvmsg = func(fd int, p, oob []byte, flags int) (n, oobn, recvflags int, from unix.Sockaddr, err error) {
			return 0, 0, 0, nil, errors.New("socket error")
		}

		result, err := recvErrMsg(456, make([]byte, oobBufSize))

		assert.Error(t, err)
		assert.Nil(t, result)
	})

	t.Run("empty queue surfaces EAGAIN", func(t *testing.T) {
		unixRecvmsg = func(fd int, p, oob []byte, flags int) (n, oobn, recvflags int, from unix.Sockaddr, err error) {
			return 0, 0, 0, nil, unix.EAGAIN
		}

		_, err := recvErrMsg(789, make([]byte, oobBufSize))

		assert.ErrorIs(t, err, unix.EAGAIN)
	})
}
