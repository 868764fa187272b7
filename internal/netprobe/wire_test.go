// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package netprobe

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// mustMarshal builds the wire form of an ICMP message for test input.
func mustMarshal(t *testing.T, msg icmp.Message) []byte {
	t.Helper()
	b, err := msg.Marshal(nil)
	require.NoError(t, err)
	return b
}

// quotedEcho builds the quoted original packet a router embeds in its
// error notices: the original IPv4 header followed by our echo header.
func quotedEcho(t *testing.T, id int, seq uint16) []byte {
	t.Helper()
	echo := mustMarshal(t, icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{ID: id, Seq: int(seq), Data: echoPayload},
	})

	hdr := make([]byte, ipv4.HeaderLen)
	hdr[0] = 0x45 // version 4, IHL 5
	return append(hdr, echo...)
}

func Test_marshalEcho(t *testing.T) {
	b, err := marshalEcho(0x1234, 42)
	require.NoError(t, err)

	msg, err := icmp.ParseMessage(protocolICMP, b)
	require.NoError(t, err)
	require.Equal(t, ipv4.ICMPTypeEcho, msg.Type)

	echo, ok := msg.Body.(*icmp.Echo)
	require.True(t, ok, "expected an echo body, got %T", msg.Body)
	assert.Equal(t, 0x1234, echo.ID)
	assert.Equal(t, 42, echo.Seq)
	assert.Equal(t, echoPayload, echo.Data)
}

func Test_parseEchoReply(t *testing.T) {
	src := &net.IPAddr{IP: net.ParseIP("192.0.2.1")}

	tests := []struct {
		name     string
		raw      []byte
		wantKind Kind
		wantID   int
		wantSeq  uint16
		wantErr  bool
	}{
		{
			name: "echo reply",
			raw: mustMarshal(t, icmp.Message{
				Type: ipv4.ICMPTypeEchoReply,
				Body: &icmp.Echo{ID: 0x0B0B, Seq: 7, Data: echoPayload},
			}),
			wantKind: KindReply,
			wantID:   0x0B0B,
			wantSeq:  7,
		},
		{
			name: "time exceeded quoting our probe",
			raw: mustMarshal(t, icmp.Message{
				Type: ipv4.ICMPTypeTimeExceeded,
				Body: &icmp.TimeExceeded{Data: quotedEcho(t, 0x0B0B, 511)},
			}),
			wantKind: KindTimeExceeded,
			wantID:   0x0B0B,
			wantSeq:  511,
		},
		{
			name: "destination unreachable quoting our probe",
			raw: mustMarshal(t, icmp.Message{
				Type: ipv4.ICMPTypeDestinationUnreachable,
				Code: 1,
				Body: &icmp.DstUnreach{Data: quotedEcho(t, 3, 9)},
			}),
			wantKind: KindUnreachable,
			wantID:   3,
			wantSeq:  9,
		},
		{
			name: "echo request is not an answer",
			raw: mustMarshal(t, icmp.Message{
				Type: ipv4.ICMPTypeEcho,
				Body: &icmp.Echo{ID: 1, Seq: 1},
			}),
			wantErr: true,
		},
		{
			name: "time exceeded quoting someone else's TCP segment",
			raw: mustMarshal(t, icmp.Message{
				Type: ipv4.ICMPTypeTimeExceeded,
				Body: &icmp.TimeExceeded{Data: func() []byte {
					quoted := quotedEcho(t, 1, 1)
					quoted[ipv4.HeaderLen] = 6 // inner protocol byte says TCP, not echo
					return quoted
				}()},
			}),
			wantErr: true,
		},
		{
			name:    "garbage bytes",
			raw:     []byte{0xde, 0xad},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseEchoReply(src, tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, tt.wantKind, got.kind)
			assert.Equal(t, tt.wantID, got.id)
			assert.Equal(t, tt.wantSeq, got.seq)
			assert.Equal(t, src, got.from)
		})
	}
}

func Test_parseQuotedEcho(t *testing.T) {
	t.Run("recovers identity and sequence", func(t *testing.T) {
		id, seq, err := parseQuotedEcho(quotedEcho(t, 0x7F01, 65535))

		require.NoError(t, err)
		assert.Equal(t, 0x7F01, id)
		assert.Equal(t, uint16(65535), seq)
	})

	t.Run("IP header with options", func(t *testing.T) {
		quoted := quotedEcho(t, 77, 8)
		// Grow the header by one 4-byte option word.
		withOpts := make([]byte, 0, len(quoted)+4)
		withOpts = append(withOpts, 0x46)
		withOpts = append(withOpts, quoted[1:ipv4.HeaderLen]...)
		withOpts = append(withOpts, 0, 0, 0, 0)
		withOpts = append(withOpts, quoted[ipv4.HeaderLen:]...)

		id, seq, err := parseQuotedEcho(withOpts)

		require.NoError(t, err)
		assert.Equal(t, 77, id)
		assert.Equal(t, uint16(8), seq)
	})

	t.Run("empty quote", func(t *testing.T) {
		_, _, err := parseQuotedEcho(nil)
		assert.Error(t, err)
	})

	t.Run("quote shorter than the echo header", func(t *testing.T) {
		quoted := quotedEcho(t, 1, 1)
		_, _, err := parseQuotedEcho(quoted[:ipv4.HeaderLen+4])
		assert.Error(t, err)
	})

	t.Run("bogus IHL below minimum", func(t *testing.T) {
		quoted := quotedEcho(t, 1, 1)
		quoted[0] = 0x42 // IHL 2, below the 20 byte minimum
		_, _, err := parseQuotedEcho(quoted)
		assert.Error(t, err)
	})
}
