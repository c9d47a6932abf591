package classify

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1weso1/aw-nexus-folio-sub001/pkg/models"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"hubspot/sync.json", "hubspot-sync-json"},
		{"Slack/Daily Standup.json", "slack-daily-standup-json"},
		{"a_b/c.d.json", "a-b-c-d-json"},
		{"plain.json", "plain-json"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Slug(tt.path))
			assert.Equal(t, Slug(tt.path), Slug(tt.path), "slug must be stable")
		})
	}
}

func TestSlug_DistinctPaths(t *testing.T) {
	paths := []string{
		"hubspot/sync.json",
		"hubspot/sync-contacts.json",
		"salesforce/sync.json",
		"Hubspot/Sync2.json",
	}
	seen := map[string]string{}
	for _, p := range paths {
		s := Slug(p)
		prev, dup := seen[s]
		assert.False(t, dup, "%q and %q collide on %q", p, prev, s)
		seen[s] = p
	}
}

func TestComplexityFor_Boundaries(t *testing.T) {
	tests := []struct {
		nodes int
		want  models.Complexity
	}{
		{0, models.ComplexityEasy},
		{8, models.ComplexityEasy},
		{9, models.ComplexityMedium},
		{20, models.ComplexityMedium},
		{21, models.ComplexityAdvanced},
		{150, models.ComplexityAdvanced},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.nodes), func(t *testing.T) {
			assert.Equal(t, tt.want, ComplexityFor(tt.nodes))
		})
	}
}

func TestResolveCategory(t *testing.T) {
	tests := []struct {
		folder string
		res    Resolution
		want   string
	}{
		{"hubspot", FirstMatch, "CRM & Sales"},
		{"HubSpot-Integrations", FirstMatch, "CRM & Sales"},
		{"GoogleSheets", FirstMatch, "Productivity"},
		{"googleanalytics", FirstMatch, "Analytics"},
		{"googleanalytics", LongestMatch, "Analytics"},
		{"misc", FirstMatch, DefaultCategory},
		{"", FirstMatch, DefaultCategory},
	}
	for _, tt := range tests {
		t.Run(tt.folder, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveCategory(tt.folder, CategoryRules, tt.res))
		})
	}
}

func TestResolveCategory_OverlappingKeys(t *testing.T) {
	// Declared order puts the short key first so the two rules disagree.
	rules := []CategoryRule{
		{"google", "Productivity"},
		{"googleanalytics", "Analytics"},
	}
	assert.Equal(t, "Productivity", ResolveCategory("googleanalytics", rules, FirstMatch))
	assert.Equal(t, "Analytics", ResolveCategory("googleanalytics", rules, LongestMatch))
}

func TestResolveCategory_EveryRule(t *testing.T) {
	for _, r := range CategoryRules {
		t.Run(r.Key, func(t *testing.T) {
			assert.Equal(t, r.Category, ResolveCategory(r.Key, CategoryRules, LongestMatch))
		})
	}
}

func TestParseResolution(t *testing.T) {
	assert.Equal(t, LongestMatch, ParseResolution("longest"))
	assert.Equal(t, FirstMatch, ParseResolution("first"))
	assert.Equal(t, FirstMatch, ParseResolution(""))
}

func TestTags_IsASet(t *testing.T) {
	nodes := make([]models.Node, 0, 5)
	for i := 0; i < 5; i++ {
		nodes = append(nodes, models.Node{Name: fmt.Sprintf("Slack %d", i), Type: "n8n-nodes-base.slack"})
	}
	tags := Tags("misc/notify.json", nodes)
	assert.Equal(t, []string{"slack"}, tags)
}

func TestTags_Sources(t *testing.T) {
	nodes := []models.Node{
		{Name: "Hook", Type: "n8n-nodes-base.webhook"},
		{Name: "Fetch", Type: "n8n-nodes-base.httpRequest"},
		{Name: "Mail", Type: "n8n-nodes-base.emailSend"},
		{Name: "Cron", Type: "n8n-nodes-base.scheduleTrigger"},
		{Name: "JS", Type: "n8n-nodes-base.code"},
		{Name: "Sheet", Type: "n8n-nodes-base.googleSheets"},
	}
	tags := Tags("marketing/lead-automation/flow.json", nodes)
	assert.ElementsMatch(t, []string{
		"api", "email", "scheduling", "custom-code", "googlesheets",
		"marketing", "lead", "automation",
	}, tags)
}

func TestTags_RootFileHasNoPathTags(t *testing.T) {
	assert.Empty(t, Tags("automation.json", nil))
}

func TestHasCredentials(t *testing.T) {
	tests := []struct {
		name string
		node models.Node
		want bool
	}{
		{"credentials block", models.Node{Type: "n8n-nodes-base.hubspot", Credentials: map[string]any{"hubspotApi": map[string]any{"id": "1"}}}, true},
		{"empty credentials", models.Node{Type: "n8n-nodes-base.set", Credentials: map[string]any{}}, false},
		{"auth type", models.Node{Type: "n8n-nodes-base.oAuth2Api"}, true},
		{"authentication parameter", models.Node{Type: "n8n-nodes-base.httpRequest", Parameters: map[string]any{"authentication": "genericCredentialType"}}, true},
		{"plain", models.Node{Type: "n8n-nodes-base.set", Parameters: map[string]any{"values": 1}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasCredentials([]models.Node{tt.node}))
		})
	}
}

func TestParse_NotAWorkflow(t *testing.T) {
	inputs := map[string]string{
		"no nodes":      `{"foo": "bar"}`,
		"nodes object":  `{"nodes": {"a": 1}}`,
		"nodes null":    `{"nodes": null}`,
		"top array":     `[1, 2, 3]`,
		"truncated":     `{"nodes": [{"name": "a"`,
		"not json":      `hello world`,
		"node string":   `{"nodes": ["Start"]}`,
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			def, err := Parse([]byte(in))
			assert.Nil(t, def)
			assert.ErrorIs(t, err, ErrNotWorkflow)
		})
	}
}

func TestParse_Workflow(t *testing.T) {
	raw := `{
		"name": "Sync contacts",
		"nodes": [
			{"id": "1", "name": "Start", "type": "n8n-nodes-base.manualTrigger", "position": [250, 300]},
			{"id": "2", "name": "HubSpot", "type": "n8n-nodes-base.hubspot", "credentials": {"hubspotApi": {"id": "7", "name": "prod"}}}
		],
		"connections": {
			"Start": {"main": [[{"node": "HubSpot", "type": "main", "index": 0}]]}
		}
	}`
	def, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "Sync contacts", def.Name)
	require.Len(t, def.Nodes, 2)
	assert.Equal(t, []float64{250, 300}, def.Nodes[0].Position)
	assert.Equal(t, "HubSpot", def.Connections["Start"]["main"][0][0].Node)
	assert.Empty(t, DanglingConnections(def))
}

func TestParse_ToleratesOddNodeFields(t *testing.T) {
	raw := `{
		"nodes": [
			{"id": 1, "name": "Start", "type": "n8n-nodes-base.manualTrigger", "position": ["a", 1]},
			{"id": "2", "name": "HubSpot", "type": "n8n-nodes-base.hubspot", "credentials": "hubspotApi", "parameters": [1, 2]},
			{"id": "3", "name": "Fetch", "type": "n8n-nodes-base.httpRequest", "parameters": {"authentication": "genericCredentialType"}, "position": {"x": 1}}
		],
		"connections": {}
	}`
	def, err := Parse([]byte(raw))
	require.NoError(t, err)
	require.Len(t, def.Nodes, 3)

	start := def.Nodes[0]
	assert.Equal(t, "1", start.ID)
	assert.Equal(t, "Start", start.Name)
	assert.Nil(t, start.Position)

	hubspot := def.Nodes[1]
	assert.Equal(t, "n8n-nodes-base.hubspot", hubspot.Type)
	assert.Nil(t, hubspot.Credentials)
	assert.Nil(t, hubspot.Parameters)

	fetch := def.Nodes[2]
	assert.Equal(t, "genericCredentialType", fetch.Parameters["authentication"])
	assert.Nil(t, fetch.Position)

	entry := New(FirstMatch).Classify(Source{Path: "crm/mixed.json"}, def)
	assert.Equal(t, 3, entry.NodeCount)
	assert.True(t, entry.HasCredentials)
	assert.Contains(t, entry.Tags, "hubspot")
}

func TestDanglingConnections(t *testing.T) {
	def := &models.WorkflowDefinition{
		Nodes: []models.Node{{Name: "A"}},
		Connections: map[string]map[string][][]models.NodeRef{
			"A":    {"main": {{{Node: "Gone"}}}},
			"Lost": {"main": {{{Node: "A"}}}},
		},
	}
	assert.Equal(t, []string{"Gone", "Lost"}, DanglingConnections(def))
}

func TestClassify_HubspotScenario(t *testing.T) {
	nodes := make([]map[string]any, 0, 12)
	for i := 0; i < 12; i++ {
		n := map[string]any{"id": fmt.Sprint(i), "name": fmt.Sprintf("Step %d", i), "type": "n8n-nodes-base.set"}
		if i == 3 {
			n["type"] = "n8n-nodes-base.hubspot"
			n["credentials"] = map[string]any{"hubspotApi": map[string]any{"id": "1"}}
		}
		nodes = append(nodes, n)
	}
	raw, err := json.Marshal(map[string]any{"nodes": nodes, "connections": map[string]any{}})
	require.NoError(t, err)

	def, err := Parse(raw)
	require.NoError(t, err)

	entry := New(FirstMatch).Classify(Source{
		Path:   "hubspot/sync.json",
		RawURL: "https://raw.example/hubspot/sync.json",
		Size:   int64(len(raw)),
		SHA:    "abc",
	}, def)

	assert.Equal(t, "hubspot-sync-json", entry.Slug)
	assert.Equal(t, "sync", entry.Name)
	assert.Equal(t, "CRM & Sales", entry.Category)
	assert.Equal(t, models.ComplexityMedium, entry.Complexity)
	assert.Equal(t, 12, entry.NodeCount)
	assert.True(t, entry.HasCredentials)
	assert.Contains(t, entry.Tags, "hubspot")
	assert.Equal(t, "abc", entry.SourceSHA)
	assert.Equal(t, int64(len(raw)), entry.SizeBytes)
}

func TestClassify_RootFileIsGeneral(t *testing.T) {
	def := &models.WorkflowDefinition{Nodes: []models.Node{{Name: "a", Type: "n8n-nodes-base.set"}}}
	entry := New(FirstMatch).Classify(Source{Path: "hubspot.json"}, def)
	assert.Equal(t, DefaultCategory, entry.Category)
	assert.Equal(t, "hubspot", entry.Name)
}
