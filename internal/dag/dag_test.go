package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// diamond builds a -> b, a -> c, b -> d, c -> d.
func diamond(t *testing.T) *Graph[string] {
	t.Helper()
	g := New[string]()
	for _, id := range []string{"a", "b", "c", "d"} {
		g.AddNode(id, "node "+id)
	}
	for _, e := range [][2]string{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}} {
		require.NoError(t, g.AddEdge(e[0], e[1]))
	}
	return g
}

func TestGraph_AddEdge(t *testing.T) {
	tests := []struct {
		name      string
		parent    string
		child     string
		expectErr string
	}{
		{name: "valid", parent: "a", child: "b"},
		{name: "duplicate is ignored", parent: "a", child: "b"},
		{name: "unknown child", parent: "a", child: "zzz", expectErr: "child node"},
		{name: "unknown parent", parent: "zzz", child: "a", expectErr: "parent node"},
		{name: "self loop", parent: "a", child: "a", expectErr: "self-loop"},
	}

	g := New[int]()
	g.AddNode("a", 1)
	g.AddNode("b", 2)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.AddEdge(tt.parent, tt.child)
			if tt.expectErr != "" {
				assert.ErrorContains(t, err, tt.expectErr)
				return
			}
			require.NoError(t, err)
		})
	}
	assert.Equal(t, []string{"b"}, g.Children("a"))
	assert.Equal(t, []string{"a"}, g.Parents("b"))
}

func TestGraph_AddNodeReplacesData(t *testing.T) {
	g := New[string]()
	g.AddNode("a", "first")
	g.AddNode("a", "second")

	data, ok := g.Node("a")
	require.True(t, ok)
	assert.Equal(t, "second", data)
	assert.Equal(t, 1, g.Len())

	_, ok = g.Node("missing")
	assert.False(t, ok)
}

func TestGraph_Levels(t *testing.T) {
	levels, err := diamond(t).Levels()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}, {"b", "c"}, {"d"}}, levels)

	empty, err := New[string]().Levels()
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGraph_Cycle(t *testing.T) {
	g := New[string]()
	g.AddNode("a", "")
	g.AddNode("b", "")
	g.AddNode("c", "")
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "c"))

	hasCycle, _ := g.HasCycle()
	assert.False(t, hasCycle)

	require.NoError(t, g.AddEdge("c", "a"))
	hasCycle, path := g.HasCycle()
	assert.True(t, hasCycle)
	assert.Len(t, path, 4)
	assert.Equal(t, path[0], path[len(path)-1])

	_, err := g.Levels()
	assert.ErrorContains(t, err, "cycle detected")
}

func TestGraph_UpstreamDownstream(t *testing.T) {
	g := diamond(t)

	tests := []struct {
		name string
		got  []string
		want []string
	}{
		{name: "downstream of root", got: g.Downstream("a"), want: []string{"b", "c", "d"}},
		{name: "downstream of middle", got: g.Downstream("b"), want: []string{"d"}},
		{name: "downstream of leaf", got: g.Downstream("d"), want: []string{}},
		{name: "downstream of several excludes them", got: g.Downstream("b", "c"), want: []string{"d"}},
		{name: "upstream of leaf", got: g.Upstream("d"), want: []string{"a", "b", "c"}},
		{name: "upstream of root", got: g.Upstream("a"), want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestGraph_Subgraph(t *testing.T) {
	sub := diamond(t).Subgraph([]string{"b", "d", "unknown"})

	assert.Equal(t, []string{"b", "d"}, sub.IDs())
	assert.Equal(t, []string{"d"}, sub.Children("b"))
	assert.Empty(t, sub.Parents("b"))

	levels, err := sub.Levels()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"b"}, {"d"}}, levels)
}
