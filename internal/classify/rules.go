package classify

import (
	"strings"

	"github.com/1weso1/aw-nexus-folio-sub001/pkg/models"
)

// DefaultCategory is used when no category rule matches the folder name.
const DefaultCategory = "General"

// CategoryRule maps a provider key, matched as a case-insensitive substring
// of the containing folder name, to a catalog category.
type CategoryRule struct {
	Key      string
	Category string
}

// CategoryRules is evaluated in declared order. Keys that contain other keys
// ("googlesheets" contains "google") are listed first so first-match and
// longest-match agree on the shipped table.
var CategoryRules = []CategoryRule{
	{"hubspot", "CRM & Sales"},
	{"salesforce", "CRM & Sales"},
	{"pipedrive", "CRM & Sales"},
	{"zoho", "CRM & Sales"},
	{"mailchimp", "Marketing"},
	{"activecampaign", "Marketing"},
	{"sendgrid", "Marketing"},
	{"convertkit", "Marketing"},
	{"slack", "Communication"},
	{"discord", "Communication"},
	{"telegram", "Communication"},
	{"whatsapp", "Communication"},
	{"twilio", "Communication"},
	{"gmail", "Communication"},
	{"googlesheets", "Productivity"},
	{"googledrive", "Productivity"},
	{"googlecalendar", "Productivity"},
	{"googleanalytics", "Analytics"},
	{"airtable", "Productivity"},
	{"notion", "Productivity"},
	{"postgres", "Data & Storage"},
	{"mysql", "Data & Storage"},
	{"mongodb", "Data & Storage"},
	{"supabase", "Data & Storage"},
	{"dropbox", "Data & Storage"},
	{"github", "Development"},
	{"gitlab", "Development"},
	{"openai", "AI & ML"},
	{"anthropic", "AI & ML"},
	{"shopify", "E-commerce"},
	{"woocommerce", "E-commerce"},
	{"stripe", "Finance"},
	{"quickbooks", "Finance"},
	{"paypal", "Finance"},
	{"twitter", "Social Media"},
	{"linkedin", "Social Media"},
	{"facebook", "Social Media"},
	{"instagram", "Social Media"},
	{"asana", "Project Management"},
	{"trello", "Project Management"},
	{"clickup", "Project Management"},
	{"jira", "Project Management"},
	{"google", "Productivity"},
}

// Resolution decides which rule wins when several keys match one folder.
type Resolution int

const (
	// FirstMatch picks the first matching rule in declared order.
	FirstMatch Resolution = iota
	// LongestMatch picks the matching rule with the longest key; ties go to
	// the earlier rule.
	LongestMatch
)

// ParseResolution maps a configuration value to a Resolution.
func ParseResolution(s string) Resolution {
	if strings.EqualFold(s, "longest") {
		return LongestMatch
	}
	return FirstMatch
}

// ResolveCategory returns the category for a folder name, or DefaultCategory.
func ResolveCategory(folder string, rules []CategoryRule, res Resolution) string {
	folder = strings.ToLower(folder)
	if folder == "" {
		return DefaultCategory
	}

	best := -1
	for i, r := range rules {
		if !strings.Contains(folder, r.Key) {
			continue
		}
		if res == FirstMatch {
			return r.Category
		}
		if best < 0 || len(r.Key) > len(rules[best].Key) {
			best = i
		}
	}
	if best < 0 {
		return DefaultCategory
	}
	return rules[best].Category
}

// ServiceTags are provider names that become a tag when they appear in any
// node type string.
var ServiceTags = []string{
	"slack", "gmail", "hubspot", "salesforce", "pipedrive", "airtable",
	"notion", "googlesheets", "googledrive", "telegram", "discord",
	"twilio", "mailchimp", "shopify", "stripe", "github", "gitlab", "jira",
	"trello", "asana", "openai", "postgres", "mysql", "mongodb", "twitter",
	"linkedin", "dropbox",
}

// CapabilityRule adds Tag when any of Substrings appears in a node type.
type CapabilityRule struct {
	Substrings []string
	Tag        string
}

// CapabilityRules infer coarse capability tags from node types.
var CapabilityRules = []CapabilityRule{
	{Substrings: []string{"http", "webhook"}, Tag: "api"},
	{Substrings: []string{"email"}, Tag: "email"},
	{Substrings: []string{"schedule"}, Tag: "scheduling"},
	{Substrings: []string{"code", "function"}, Tag: "custom-code"},
}

// PathKeywords become tags when they appear in the folder part of the path.
var PathKeywords = []string{"automation", "crm", "lead", "marketing", "social"}

// CredentialSignal is one heuristic that marks a node as needing credentials.
type CredentialSignal struct {
	Name  string
	Match func(n models.Node) bool
}

// CredentialSignals are checked against every node; any hit sets
// hasCredentials. False negatives are accepted.
var CredentialSignals = []CredentialSignal{
	{
		Name:  "credentials block",
		Match: func(n models.Node) bool { return len(n.Credentials) > 0 },
	},
	{
		Name:  "auth node type",
		Match: func(n models.Node) bool { return strings.Contains(strings.ToLower(n.Type), "auth") },
	},
	{
		Name: "authentication parameter",
		Match: func(n models.Node) bool {
			_, ok := n.Parameters["authentication"]
			return ok
		},
	},
}
