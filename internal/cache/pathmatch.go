// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package cache

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// PathMatcher decides whether a request path is excluded from caching.
//
// Plain patterns match as substrings and are compiled into one Aho-Corasick
// automaton, so a path is scanned once regardless of how many patterns are
// configured. Patterns containing a glob metacharacter are matched with
// doublestar against the whole path, so ** spans segments and {a,b} picks
// alternatives. Malformed globs are dropped. Matching is case-sensitive,
// like URL paths.
//
// A PathMatcher is immutable after construction and safe for concurrent use.
type PathMatcher struct {
	root  *acNode
	globs []string
	n     int
}

type acNode struct {
	children map[byte]*acNode
	failure  *acNode
	terminal bool // some pattern ends here or at a failure ancestor
}

func newACNode() *acNode {
	return &acNode{children: make(map[byte]*acNode)}
}

// NewPathMatcher compiles patterns. Empty patterns are ignored.
func NewPathMatcher(patterns []string) *PathMatcher {
	m := &PathMatcher{root: newACNode()}
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.ContainsAny(p, "*?[{") {
			if doublestar.ValidatePattern(p) {
				m.globs = append(m.globs, p)
				m.n++
			}
			continue
		}
		m.insert(p)
		m.n++
	}
	m.buildFailureLinks()
	return m
}

func (m *PathMatcher) insert(pattern string) {
	node := m.root
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		if node.children[ch] == nil {
			node.children[ch] = newACNode()
		}
		node = node.children[ch]
	}
	node.terminal = true
}

// buildFailureLinks wires failure links breadth-first and propagates
// terminal flags along them.
func (m *PathMatcher) buildFailureLinks() {
	queue := make([]*acNode, 0, len(m.root.children))
	for _, child := range m.root.children {
		child.failure = m.root
		queue = append(queue, child)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for ch, child := range current.children {
			queue = append(queue, child)

			fail := current.failure
			for fail != nil && fail.children[ch] == nil {
				fail = fail.failure
			}
			if fail == nil {
				child.failure = m.root
			} else {
				child.failure = fail.children[ch]
				child.terminal = child.terminal || child.failure.terminal
			}
		}
	}
}

// Match reports whether p matches any pattern.
func (m *PathMatcher) Match(p string) bool {
	if m == nil {
		return false
	}
	if m.containsSubstring(p) {
		return true
	}
	for _, g := range m.globs {
		if ok, err := doublestar.Match(g, p); err == nil && ok {
			return true
		}
	}
	return false
}

func (m *PathMatcher) containsSubstring(text string) bool {
	node := m.root
	for i := 0; i < len(text); i++ {
		ch := text[i]
		for node != m.root && node.children[ch] == nil {
			node = node.failure
		}
		if next := node.children[ch]; next != nil {
			node = next
		}
		if node.terminal {
			return true
		}
	}
	return false
}

// Len returns the number of compiled patterns.
func (m *PathMatcher) Len() int {
	if m == nil {
		return 0
	}
	return m.n
}
