// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

// Package test provides fs.FS fakes for the config loader tests.
package test

import (
	"io"
	"io/fs"
)

// MockFS is an fs.FS whose Open behavior is supplied by the test.
type MockFS struct {
	OpenFunc func(name string) (fs.File, error)
}

func (m *MockFS) Open(name string) (fs.File, error) {
	return m.OpenFunc(name)
}

// MockFile is an in-memory fs.File. Reads drain Content; Close calls
// CloseFunc when set, so tests can exercise a failing close path.
type MockFile struct {
	Content   []byte
	CloseFunc func() error

	readPos int
}

func (mf *MockFile) Read(b []byte) (int, error) {
	if mf.readPos >= len(mf.Content) {
		return 0, io.EOF
	}
	n := copy(b, mf.Content[mf.readPos:])
	mf.readPos += n
	return n, nil
}

func (mf *MockFile) Close() error {
	if mf.CloseFunc != nil {
		return mf.CloseFunc()
	}
	return nil
}

func (mf *MockFile) Stat() (fs.FileInfo, error) {
	return nil, nil
}
