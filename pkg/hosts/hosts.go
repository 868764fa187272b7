// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

// Package hosts persists the history of diagnosed targets. The store
// is a small YAML file used only by the CLI; the measurement engine
// never reads or writes it.
package hosts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

const fileMode = 0o600

// Store is a host history backed by a single YAML file.
type Store struct {
	path  string
	hosts []string
}

// New creates a store reading from and writing to the given path.
func New(path string) *Store {
	return &Store{path: path}
}

// DefaultPath returns the host history location in the user's home
// directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}
	return filepath.Join(home, ".sandpiper.hosts.yaml"), nil
}

// Load reads the history from disk. A missing file is not an error, it
// leaves the store empty.
func (s *Store) Load() error {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.hosts = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read host history: %w", err)
	}

	var f hostsFile
	if uErr := yaml.Unmarshal(b, &f); uErr != nil {
		return fmt.Errorf("failed to parse host history: %w", uErr)
	}
	s.hosts = normalize(f.Hosts)
	return nil
}

// Add records a target and reports whether it was new. Empty targets
// are ignored.
func (s *Store) Add(target string) bool {
	if target == "" || slices.Contains(s.hosts, target) {
		return false
	}
	s.hosts = normalize(append(s.hosts, target))
	return true
}

// Save writes the history back to disk, sorted and deduplicated.
func (s *Store) Save() error {
	b, err := yaml.Marshal(hostsFile{Hosts: normalize(s.hosts)})
	if err != nil {
		return fmt.Errorf("failed to marshal host history: %w", err)
	}
	if err := os.WriteFile(s.path, b, fileMode); err != nil {
		return fmt.Errorf("failed to write host history: %w", err)
	}
	return nil
}

// Hosts returns a copy of the recorded targets, sorted.
func (s *Store) Hosts() []string {
	return slices.Clone(s.hosts)
}

type hostsFile struct {
	Hosts []string `yaml:"hosts"`
}

func normalize(hosts []string) []string {
	out := slices.DeleteFunc(slices.Clone(hosts), func(h string) bool { return h == "" })
	slices.Sort(out)
	return slices.Compact(out)
}
