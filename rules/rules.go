// Package rules implements the small YAML rule set used by the shipped
// example agents: path prefixes, host names, and methods to block. It is
// deliberately simple — real deployments replace it with their own
// capability logic.
package rules

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Spec is the raw rule file layout.
type Spec struct {
	BlockedPathPrefixes []string `yaml:"blocked_path_prefixes"`
	BlockedHosts        []string `yaml:"blocked_hosts"`
	BlockedMethods      []string `yaml:"blocked_methods"`
	Status              int      `yaml:"status"`
	Body                string   `yaml:"body"`
}

// Set holds a compiled rule set. Safe for concurrent Match and Reload;
// the hot-reloader swaps the spec atomically under the lock.
type Set struct {
	mu   sync.RWMutex
	spec Spec
	path string
}

// Load reads a rule file. A missing path yields an empty (allow-all)
// set so agents start cleanly before their rules are provisioned.
func Load(path string) (*Set, error) {
	s := &Set{path: path}
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("rules: read %s: %w", path, err)
	}
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("rules: parse %s: %w", path, err)
	}
	s.spec = spec
	return s, nil
}

// Reload re-reads the rule file and swaps the spec in place.
func (s *Set) Reload() error {
	fresh, err := Load(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.spec = fresh.spec
	s.mu.Unlock()
	return nil
}

// Status returns the configured block status, defaulting to 403.
func (s *Set) Status() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.spec.Status == 0 {
		return 403
	}
	return s.spec.Status
}

// Body returns the configured block body.
func (s *Set) Body() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.spec.Body
}

// Match reports whether the request described by method, host, and path
// hits a rule, and which rule it was.
func (s *Set) Match(method, host, path string) (bool, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.spec.BlockedMethods {
		if strings.EqualFold(m, method) {
			return true, "method:" + m
		}
	}
	lowerHost := strings.ToLower(host)
	for _, h := range s.spec.BlockedHosts {
		if strings.ToLower(h) == lowerHost {
			return true, "host:" + h
		}
	}
	for _, p := range s.spec.BlockedPathPrefixes {
		if strings.HasPrefix(path, p) {
			return true, "path:" + p
		}
	}
	return false, ""
}
