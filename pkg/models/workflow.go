// Package models defines the domain models for the workflow catalog.
package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Complexity is the tier a workflow falls into based on its node count.
type Complexity string

const (
	ComplexityEasy     Complexity = "Easy"
	ComplexityMedium   Complexity = "Medium"
	ComplexityAdvanced Complexity = "Advanced"
)

// CatalogEntry is one discovered workflow definition and its derived metadata.
type CatalogEntry struct {
	ID             string     `json:"id" db:"id"`
	Slug           string     `json:"slug" db:"slug"` // Stable upsert key
	Name           string     `json:"name" db:"name"`
	Path           string     `json:"path" db:"path"`
	RawURL         string     `json:"raw_url" db:"raw_url"`
	SizeBytes      int64      `json:"size_bytes" db:"size_bytes"`
	Category       string     `json:"category" db:"category"`
	Tags           []string   `json:"tags" db:"tags"`
	NodeCount      int        `json:"node_count" db:"node_count"`
	HasCredentials bool       `json:"has_credentials" db:"has_credentials"`
	Complexity     Complexity `json:"complexity" db:"complexity"`
	SourceSHA      string     `json:"source_sha,omitempty" db:"source_sha"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// WorkflowDefinition is the node/connection graph of a workflow file as it is
// published in the source repository.
type WorkflowDefinition struct {
	Name        string                            `json:"name,omitempty"`
	Nodes       []Node                            `json:"nodes"`
	Connections map[string]map[string][][]NodeRef `json:"connections,omitempty"`
}

// Node is a single step in a workflow graph.
type Node struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Credentials map[string]any `json:"credentials,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Position    []float64      `json:"position,omitempty"`
}

// UnmarshalJSON decodes a node leniently. Fields holding a value of an
// unexpected type are left empty rather than rejecting the whole workflow;
// numeric identifiers and types are kept as their literal text.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          json.RawMessage `json:"id"`
		Name        json.RawMessage `json:"name"`
		Type        json.RawMessage `json:"type"`
		Credentials json.RawMessage `json:"credentials"`
		Parameters  json.RawMessage `json:"parameters"`
		Position    json.RawMessage `json:"position"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*n = Node{
		ID:   scalarText(raw.ID),
		Name: scalarText(raw.Name),
		Type: scalarText(raw.Type),
	}
	var credentials, parameters map[string]any
	if json.Unmarshal(raw.Credentials, &credentials) == nil {
		n.Credentials = credentials
	}
	if json.Unmarshal(raw.Parameters, &parameters) == nil {
		n.Parameters = parameters
	}
	var position []float64
	if json.Unmarshal(raw.Position, &position) == nil {
		n.Position = position
	}
	return nil
}

// scalarText returns a JSON string's value or a number's literal text, and ""
// for anything else.
func scalarText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch {
	case raw[0] == '"':
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s
		}
	case raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9'):
		var num json.Number
		if json.Unmarshal(raw, &num) == nil {
			return num.String()
		}
	}
	return ""
}

// NodeRef is the target of a connection: the node name and the input index
// on that node.
type NodeRef struct {
	Node  string `json:"node"`
	Type  string `json:"type,omitempty"`
	Index int    `json:"index"`
}

// WorkflowDetail is a catalog entry together with whichever artifacts have
// been generated for it.
type WorkflowDetail struct {
	CatalogEntry
	Description  *DescriptionArtifact `json:"description,omitempty"`
	SEO          *SEOArtifact         `json:"seo,omitempty"`
	HasEmbedding bool                 `json:"has_embedding"`
}
