package relgraph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodeAt(id string, t time.Time) Node {
	tt := t
	return Node{ID: id, Features: Features{Timestamp: &tt}}
}

func TestTemporalWeightBoundaryValues(t *testing.T) {
	p := NewTemporalProcessor(24 * time.Hour)
	assert.InDelta(t, 1.0, p.Weight(0), 1e-9)
	assert.InDelta(t, 0.5, p.Weight(24*time.Hour), 1e-6)
}

func TestTemporalWeightStrictlyDecreasing(t *testing.T) {
	p := NewTemporalProcessor(24 * time.Hour)
	prev := p.Weight(0)
	for _, h := range []time.Duration{1 * time.Hour, 6 * time.Hour, 24 * time.Hour, 72 * time.Hour, 240 * time.Hour} {
		w := p.Weight(h)
		assert.Less(t, w, prev)
		prev = w
	}
}

func TestInsertTemporalNodeFirstEverHasNoEdges(t *testing.T) {
	g := New(TemporalDimension)
	p := NewTemporalProcessor(0)
	n := nodeAt("n1", time.Unix(100, 0))
	require.NoError(t, p.InsertTemporalNode(g, n))
	assert.Len(t, g.Edges, 0)
	assert.True(t, g.HasNode("n1"))
}

func TestInsertTemporalNodeSingleChainScenario3(t *testing.T) {
	g := New(TemporalDimension)
	p := NewTemporalProcessor(24 * time.Hour)

	base := time.Unix(0, 0)
	require.NoError(t, p.InsertTemporalNode(g, nodeAt("t10", base.Add(10*time.Second))))
	require.NoError(t, p.InsertTemporalNode(g, nodeAt("t30", base.Add(30*time.Second))))
	require.NoError(t, p.InsertTemporalNode(g, nodeAt("t20", base.Add(20*time.Second))))

	_, hasDirect := g.EdgeBetween("t10", "t30")
	assert.False(t, hasDirect, "t10->t30 must be removed once t20 is inserted between them")

	e1, ok := g.EdgeBetween("t10", "t20")
	require.True(t, ok)
	e2, ok := g.EdgeBetween("t20", "t30")
	require.True(t, ok)

	assert.Greater(t, e1.Weight, 0.0)
	assert.Less(t, e1.Weight, 1.0)
	assert.Greater(t, e2.Weight, 0.0)
	assert.Less(t, e2.Weight, 1.0)
	assert.Greater(t, p.Weight(10*time.Second), p.Weight(20*time.Second))
}

func TestInsertTemporalNodeRequiresTimestamp(t *testing.T) {
	g := New(TemporalDimension)
	p := NewTemporalProcessor(24 * time.Hour)
	err := p.InsertTemporalNode(g, Node{ID: "no-ts"})
	require.Error(t, err)
}

func TestTemporalBeforeAfterWalk(t *testing.T) {
	g := New(TemporalDimension)
	p := NewTemporalProcessor(24 * time.Hour)
	base := time.Unix(0, 0)
	require.NoError(t, p.InsertTemporalNode(g, nodeAt("a", base)))
	require.NoError(t, p.InsertTemporalNode(g, nodeAt("b", base.Add(time.Minute))))
	require.NoError(t, p.InsertTemporalNode(g, nodeAt("c", base.Add(2*time.Minute))))

	assert.Equal(t, []string{"b", "c"}, TemporalAfter(g, "a", 2))
	assert.Equal(t, []string{"b", "a"}, TemporalBefore(g, "c", 2))
}
