// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package cache

import (
	"bytes"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tenantcore/internal/models"
)

// DocumentKind is the shape of a JSON:API document's primary data.
type DocumentKind int

const (
	// DocumentNone covers null or absent data and any non-document payload.
	DocumentNone DocumentKind = iota
	// DocumentSingle has a single resource object as data.
	DocumentSingle
	// DocumentCollection has an array of resource objects as data.
	DocumentCollection
)

func (k DocumentKind) String() string {
	switch k {
	case DocumentSingle:
		return "single"
	case DocumentCollection:
		return "collection"
	default:
		return "none"
	}
}

// Document is the part of a JSON:API document the cache indexes on:
// resource identifiers of the primary data and of included resources.
type Document struct {
	Kind     DocumentKind
	Primary  []models.Element
	Included []models.Element
}

type rawDocument struct {
	Data     json.RawMessage   `json:"data"`
	Included []json.RawMessage `json:"included"`
}

type rawResource struct {
	Type string          `json:"type"`
	ID   json.RawMessage `json:"id"`
}

// ParseDocument extracts resource identifiers from a serialized response.
// Anything that is not a JSON object yields a DocumentNone with no elements;
// resource objects without both type and id are skipped.
func ParseDocument(raw []byte) Document {
	var doc rawDocument
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Document{Kind: DocumentNone}
	}
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return Document{Kind: DocumentNone}
	}

	var out Document
	data := bytes.TrimSpace(doc.Data)
	switch {
	case len(data) > 0 && data[0] == '{':
		out.Kind = DocumentSingle
		if el, ok := parseResource(data); ok {
			out.Primary = append(out.Primary, el)
		}
	case len(data) > 0 && data[0] == '[':
		out.Kind = DocumentCollection
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err == nil {
			out.Primary = parseResources(items)
		}
	default:
		out.Kind = DocumentNone
	}

	out.Included = parseResources(doc.Included)
	return out
}

func parseResources(items []json.RawMessage) []models.Element {
	var out []models.Element
	for _, item := range items {
		if el, ok := parseResource(item); ok {
			out = append(out, el)
		}
	}
	return out
}

func parseResource(raw json.RawMessage) (models.Element, bool) {
	var res rawResource
	if err := json.Unmarshal(raw, &res); err != nil {
		return models.Element{}, false
	}
	id := resourceID(res.ID)
	if res.Type == "" || id == "" {
		return models.Element{}, false
	}
	return models.Element{Type: res.Type, ID: id}, true
}

// resourceID accepts string ids and, leniently, numeric ids.
func resourceID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		if _, err := strconv.ParseFloat(string(raw), 64); err != nil {
			return ""
		}
		return string(raw)
	default:
		return ""
	}
}

// Elements returns the distinct elements of the document, primary data first.
func (d Document) Elements() []models.Element {
	var primary []models.Element
	switch d.Kind {
	case DocumentSingle, DocumentCollection:
		primary = d.Primary
	case DocumentNone:
	}

	seen := make(map[models.Element]struct{}, len(primary)+len(d.Included))
	out := make([]models.Element, 0, len(primary)+len(d.Included))
	for _, group := range [][]models.Element{primary, d.Included} {
		for _, el := range group {
			if _, dup := seen[el]; dup {
				continue
			}
			seen[el] = struct{}{}
			out = append(out, el)
		}
	}
	return out
}
