package relgraph

import (
	"fmt"
	"math"
	"time"

	"github.com/memochater/core/internal/kind"
)

// TemporalDimension is the dimension name of the temporal dimension processor.
const TemporalDimension = "temporal"

// TemporalProcessor implements the single-chain temporal dimension.
// Raw AddEdge on this dimension is for restore-from-disk only; application
// code must go through InsertTemporalNode to preserve the single-chain
// invariant.
type TemporalProcessor struct {
	// HalfLife is T_half; default 24h per spec.
	HalfLife time.Duration
}

// NewTemporalProcessor returns a processor with the given half-life, or the
// 24h default if halfLife <= 0.
func NewTemporalProcessor(halfLife time.Duration) *TemporalProcessor {
	if halfLife <= 0 {
		halfLife = 24 * time.Hour
	}
	return &TemporalProcessor{HalfLife: halfLife}
}

// RequiredFeature is the node feature this dimension depends on.
func (p *TemporalProcessor) RequiredFeature() string { return "features.timestamp" }

// Weight computes w(delta) = 2 / (1 + exp(k*delta)) with k = ln(3)/T_half,
// delta expressed in the same units as HalfLife (seconds).
func (p *TemporalProcessor) Weight(delta time.Duration) float64 {
	halfLifeSeconds := p.HalfLife.Seconds()
	if halfLifeSeconds <= 0 {
		halfLifeSeconds = (24 * time.Hour).Seconds()
	}
	kCoef := math.Log(3) / halfLifeSeconds
	d := delta.Seconds()
	if d < 0 {
		d = -d
	}
	return 2 / (1 + math.Exp(kCoef*d))
}

// InsertTemporalNode inserts node n into the single temporal chain ordered by
// n.Features.Timestamp, first adding n to g via AddNode if it is absent.
func (p *TemporalProcessor) InsertTemporalNode(g *DimensionGraph, n Node) error {
	ts := n.Features.Timestamp
	if ts == nil {
		return kind.New(kind.Graph, "InsertTemporalNode", errMissingTimestamp)
	}
	if !g.HasNode(n.ID) {
		g.AddNode(n)
	}

	pred, succ := p.findNeighbors(g, n.ID, *ts)

	if pred != nil && succ != nil {
		g.RemoveEdge(pred.ID, succ.ID)
	}
	if pred != nil {
		w := p.Weight(ts.Sub(*pred.Features.Timestamp))
		if err := g.AddEdge(Edge{
			Source: pred.ID, Target: n.ID, Weight: w,
			Reason:    fmt.Sprintf("时间距离: %s", ts.Sub(*pred.Features.Timestamp)),
			CreatedAt: time.Now(), AutoGenerated: true,
		}); err != nil {
			return kind.New(kind.Graph, "InsertTemporalNode", err)
		}
	}
	if succ != nil {
		w := p.Weight(succ.Features.Timestamp.Sub(*ts))
		if err := g.AddEdge(Edge{
			Source: n.ID, Target: succ.ID, Weight: w,
			Reason:    fmt.Sprintf("时间距离: %s", succ.Features.Timestamp.Sub(*ts)),
			CreatedAt: time.Now(), AutoGenerated: true,
		}); err != nil {
			return kind.New(kind.Graph, "InsertTemporalNode", err)
		}
	}
	return nil
}

// findNeighbors finds, among all other timestamped nodes, the one with the
// greatest timestamp < t (predecessor) and the one with the smallest
// timestamp > t (successor). Equal timestamps are ignored for linking.
func (p *TemporalProcessor) findNeighbors(g *DimensionGraph, selfID string, t time.Time) (pred, succ *Node) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for i := range g.Nodes {
		node := g.Nodes[i]
		if node.ID == selfID || node.Features.Timestamp == nil {
			continue
		}
		nt := *node.Features.Timestamp
		if nt.Equal(t) {
			continue
		}
		if nt.Before(t) {
			if pred == nil || nt.After(*pred.Features.Timestamp) {
				pred = &g.Nodes[i]
			}
		} else {
			if succ == nil || nt.Before(*succ.Features.Timestamp) {
				succ = &g.Nodes[i]
			}
		}
	}
	return pred, succ
}

// TemporalBefore walks incoming single-chain edges up to n hops.
func TemporalBefore(g *DimensionGraph, id string, n int) []string {
	return walkChain(g, id, n, false)
}

// TemporalAfter walks outgoing single-chain edges up to n hops.
func TemporalAfter(g *DimensionGraph, id string, n int) []string {
	return walkChain(g, id, n, true)
}

func walkChain(g *DimensionGraph, id string, hops int, forward bool) []string {
	var out []string
	cur := id
	for i := 0; i < hops; i++ {
		var next []RelatedNode
		if forward {
			next = g.ForwardNeighbors(cur)
		} else {
			next = g.BackwardNeighbors(cur)
		}
		if len(next) == 0 {
			break
		}
		cur = next[0].ID
		out = append(out, cur)
	}
	return out
}

var errMissingTimestamp = missingTimestampError{}

type missingTimestampError struct{}

func (missingTimestampError) Error() string { return "node missing required features.timestamp" }
