// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package netprobe

import (
	"os"

	"github.com/syndtr/gocapability/capability"
)

// HasRawCapability reports whether the process may open raw sockets,
// either by running as root or by holding an effective CAP_NET_RAW.
// It errs on the side of false: if capabilities cannot be inspected,
// the caller should expect the datagram fallback.
func HasRawCapability() bool {
	if os.Geteuid() == 0 {
		return true
	}

	caps, err := capability.NewPid2(0)
	if err != nil {
		return false
	}
	if err := caps.Load(); err != nil {
		return false
	}
	return caps.Get(capability.EFFECTIVE, capability.CAP_NET_RAW)
}

// CapabilityHint names the command that grants the binary raw socket
// access, for wiring into log lines and CLI output when probing runs
// degraded.
func CapabilityHint() string {
	exe, err := os.Executable()
	if err != nil {
		exe = "sandpiper"
	}
	return "grant raw socket access with: sudo setcap cap_net_raw+ep " + exe
}
