// Package classify parses workflow definition files and derives catalog
// metadata from them: category, tags, complexity and credential needs.
package classify

import (
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/1weso1/aw-nexus-folio-sub001/pkg/models"
)

// Complexity thresholds. Node counts up to and including the bound fall in
// the lower tier.
const (
	EasyMaxNodes   = 8
	MediumMaxNodes = 20
)

// Source describes where a definition came from.
type Source struct {
	Path   string
	RawURL string
	Size   int64
	SHA    string
}

// Classifier derives catalog entries from parsed definitions.
type Classifier struct {
	rules      []CategoryRule
	resolution Resolution
}

// New creates a Classifier over the default rule tables.
func New(res Resolution) *Classifier {
	return &Classifier{rules: CategoryRules, resolution: res}
}

// Classify builds the catalog entry for a parsed definition. The returned
// entry has no ID or timestamps; those belong to the store.
func (c *Classifier) Classify(src Source, def *models.WorkflowDefinition) models.CatalogEntry {
	return models.CatalogEntry{
		Slug:           Slug(src.Path),
		Name:           displayName(src.Path, def),
		Path:           src.Path,
		RawURL:         src.RawURL,
		SizeBytes:      src.Size,
		Category:       ResolveCategory(containingFolder(src.Path), c.rules, c.resolution),
		Tags:           Tags(src.Path, def.Nodes),
		NodeCount:      len(def.Nodes),
		HasCredentials: HasCredentials(def.Nodes),
		Complexity:     ComplexityFor(len(def.Nodes)),
		SourceSHA:      src.SHA,
	}
}

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]`)

// Slug replaces every non-alphanumeric character of path with a hyphen and
// lower-cases the result. The same path always yields the same slug.
func Slug(p string) string {
	return strings.ToLower(nonAlphanumeric.ReplaceAllString(p, "-"))
}

// ComplexityFor maps a node count to its tier.
func ComplexityFor(nodeCount int) models.Complexity {
	switch {
	case nodeCount <= EasyMaxNodes:
		return models.ComplexityEasy
	case nodeCount <= MediumMaxNodes:
		return models.ComplexityMedium
	default:
		return models.ComplexityAdvanced
	}
}

// Tags returns the sorted, de-duplicated tag set for a workflow.
func Tags(p string, nodes []models.Node) []string {
	set := make(map[string]struct{})

	for _, n := range nodes {
		nodeType := strings.ToLower(n.Type)
		for _, svc := range ServiceTags {
			if strings.Contains(nodeType, svc) {
				set[svc] = struct{}{}
			}
		}
		for _, rule := range CapabilityRules {
			for _, sub := range rule.Substrings {
				if strings.Contains(nodeType, sub) {
					set[rule.Tag] = struct{}{}
					break
				}
			}
		}
	}

	folder := strings.ToLower(path.Dir(p))
	if folder != "." {
		for _, kw := range PathKeywords {
			if strings.Contains(folder, kw) {
				set[kw] = struct{}{}
			}
		}
	}

	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// HasCredentials reports whether any node trips a credential signal.
func HasCredentials(nodes []models.Node) bool {
	for _, n := range nodes {
		for _, sig := range CredentialSignals {
			if sig.Match(n) {
				return true
			}
		}
	}
	return false
}

// containingFolder returns the second-to-last path segment, or "" for a file
// at the repository root.
func containingFolder(p string) string {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	if len(segments) < 2 {
		return ""
	}
	return segments[len(segments)-2]
}

func displayName(p string, def *models.WorkflowDefinition) string {
	if name := strings.TrimSpace(def.Name); name != "" {
		return name
	}
	return strings.TrimSuffix(path.Base(p), path.Ext(p))
}
