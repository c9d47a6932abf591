package classify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/1weso1/aw-nexus-folio-sub001/pkg/models"
)

// ErrNotWorkflow signals that a file is not a workflow definition. Callers
// skip such files; it is not a failure.
var ErrNotWorkflow = errors.New("not a workflow")

// Parse decodes raw file bytes as a workflow definition. Anything that is not
// a JSON object with a nodes array yields an error wrapping ErrNotWorkflow.
// Node fields of an unexpected type are dropped, not fatal.
func Parse(data []byte) (*models.WorkflowDefinition, error) {
	var shape struct {
		Nodes json.RawMessage `json:"nodes"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return nil, fmt.Errorf("%w: invalid json: %v", ErrNotWorkflow, err)
	}
	nodes := bytes.TrimSpace(shape.Nodes)
	if len(nodes) == 0 || nodes[0] != '[' {
		return nil, fmt.Errorf("%w: no nodes array", ErrNotWorkflow)
	}

	var def models.WorkflowDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: malformed graph: %v", ErrNotWorkflow, err)
	}
	return &def, nil
}

// DanglingConnections returns, sorted, the node names referenced by the
// connection map that do not exist in the node list.
func DanglingConnections(def *models.WorkflowDefinition) []string {
	known := make(map[string]struct{}, len(def.Nodes))
	for _, n := range def.Nodes {
		known[n.Name] = struct{}{}
	}

	missing := make(map[string]struct{})
	check := func(name string) {
		if _, ok := known[name]; !ok {
			missing[name] = struct{}{}
		}
	}
	for source, outputs := range def.Connections {
		check(source)
		for _, byIndex := range outputs {
			for _, targets := range byIndex {
				for _, t := range targets {
					check(t.Node)
				}
			}
		}
	}

	out := make([]string, 0, len(missing))
	for name := range missing {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
