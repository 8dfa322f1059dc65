package engine

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/relplan/internal/dag"
	"github.com/leapstack-labs/relplan/internal/nodes"
	"github.com/leapstack-labs/relplan/pkg/relation"
)

// buildGraph adds every model of the project, keyed by schema.name with the
// default schema filled in. Dependencies on names outside the project, such
// as sources, are not edges.
func (e *Engine) buildGraph(project *nodes.Project) (*dag.Graph[relation.NodeDescription], error) {
	defaultSchema := e.adapter.DefaultSchema()
	g := dag.New[relation.NodeDescription]()
	for _, m := range project.Models {
		if m.Schema == "" {
			m.Schema = defaultSchema
		}
		if _, exists := g.Node(m.Key()); exists {
			return nil, fmt.Errorf("duplicate model %s", m.Key())
		}
		g.AddNode(m.Key(), m)
	}

	for _, id := range g.IDs() {
		node, _ := g.Node(id)
		for _, dep := range node.DependsOn {
			key := dep
			if !strings.Contains(dep, ".") {
				key = defaultSchema + "." + dep
			}
			if _, ok := g.Node(key); !ok {
				e.logger.Debug("dependency outside the project", slog.String("node", id), slog.String("depends_on", dep))
				continue
			}
			if err := g.AddEdge(key, id); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

// selectNodes narrows g to the selected keys, plus everything downstream of
// them when downstream is set.
func selectNodes(g *dag.Graph[relation.NodeDescription], selected []string, downstream bool) (*dag.Graph[relation.NodeDescription], error) {
	if len(selected) == 0 {
		return g, nil
	}
	for _, key := range selected {
		if _, ok := g.Node(key); !ok {
			return nil, fmt.Errorf("unknown node %s", key)
		}
	}
	ids := selected
	if downstream {
		ids = append(append([]string{}, selected...), g.Downstream(selected...)...)
	}
	return g.Subgraph(ids), nil
}
