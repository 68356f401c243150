// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package cache

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// keyParams is the hashed part of a cache key. Maps marshal with sorted keys,
// and values are sorted before hashing, so the hash ignores query order.
type keyParams struct {
	Query map[string][]string `json:"q"`
	Extra []string            `json:"x,omitempty"`
}

// BuildKey returns the cache key for one request of one user:
//
//	{prefix}:{userID}:{METHOD}:{path}:{hash}
//
// The method and path stay readable so keys can be inspected and matched by
// pattern; the query and extra values are reduced to a content hash.
func BuildKey(prefix, userID, method, path string, query url.Values, extra ...string) string {
	params := keyParams{Query: make(map[string][]string, len(query))}
	for k, vs := range query {
		sorted := append([]string(nil), vs...)
		sort.Strings(sorted)
		params.Query[k] = sorted
	}
	if len(extra) > 0 {
		params.Extra = extra
	}

	data, err := json.Marshal(params)
	if err != nil {
		// map[string][]string and []string always marshal
		data = []byte(fmt.Sprint(params))
	}
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s:%s:%s:%x", prefix, userID, strings.ToUpper(method), path, hash[:16])
}

// UserPattern matches every cache key of one user.
func UserPattern(prefix, userID string) string {
	return prefix + ":" + userID + ":*"
}

// ElementKey returns the index set key for one element.
func ElementKey(elementType, id string) string {
	return "element:" + elementType + ":" + id
}

// ElementTypePattern matches every index set of one element type.
func ElementTypePattern(elementType string) string {
	return "element:" + elementType + ":*"
}

// parseElementKey is the inverse of ElementKey. Ids may contain ':'.
func parseElementKey(key string) (elementType, id string, ok bool) {
	rest, found := strings.CutPrefix(key, "element:")
	if !found {
		return "", "", false
	}
	elementType, id, ok = strings.Cut(rest, ":")
	if !ok || elementType == "" || id == "" {
		return "", "", false
	}
	return elementType, id, true
}
