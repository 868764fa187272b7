// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package session

import "fmt"

// ErrInvalidConfig is returned when a session configuration is invalid.
type ErrInvalidConfig struct {
	Field  string
	Reason string
}

func (e ErrInvalidConfig) Error() string {
	return fmt.Sprintf("invalid session configuration field %q: %s", e.Field, e.Reason)
}

// ErrTargetResolution is returned by Start when the target cannot be
// resolved to an address. No session state is created in that case.
type ErrTargetResolution struct {
	Target string
	Err    error
}

func (e ErrTargetResolution) Error() string {
	return fmt.Sprintf("cannot resolve target %q: %v", e.Target, e.Err)
}

func (e ErrTargetResolution) Unwrap() error {
	return e.Err
}

// ErrInvalidTransition is returned when a lifecycle operation is not
// allowed in the session's current state, for example starting a
// session that is already running. The session state is unchanged.
type ErrInvalidTransition struct {
	From State
	To   State
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid session state transition from %q to %q", e.From, e.To)
}

// ErrTargetMismatch is returned by UpdateConfig when the update points
// the session at a different destination. The target, probe mode and
// port are fixed for the lifetime of a session.
type ErrTargetMismatch struct {
	Current string
	Updated string
}

func (e ErrTargetMismatch) Error() string {
	return fmt.Sprintf("session is bound to %q and cannot be reconfigured for %q", e.Current, e.Updated)
}
