// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

// Package pkg contains metadata about the sandpiper.
package pkg

// Version is the current version of sandpiper.
// It is set at build time by using
// -ldflags "-X github.com/telekom/sandpiper/pkg.Version=x.x.x".
var Version = "0.1.0"
