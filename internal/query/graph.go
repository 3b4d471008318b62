package query

import (
	"context"

	"github.com/bombeindex/bombe/internal/store"
	"github.com/bombeindex/bombe/internal/types"
)

// visitedNode tracks the BFS frontier's per-node bookkeeping shared by the
// reference/blast-radius/flow engines. ParentID and the edge fields
// describe the single hop that first reached this node; they are zero
// for the root.
type visitedNode struct {
	id           int64
	depth        int
	parentID     int64
	relationship types.Relationship
	filePath     string
	lineNumber   int
	confidence   float64
}

// bfsDirection selects which edge direction to walk.
type bfsDirection int

const (
	dirOutbound bfsDirection = iota
	dirInbound
)

// boundedBFS walks relationships from root up to maxDepth hops (in the
// given direction), never visiting more than MaxVisitedNodes nodes nor
// collecting more than MaxCollectedEdges edges.
func boundedBFS(ctx context.Context, st *store.Store, root int64, direction bfsDirection, relationships []types.Relationship, maxDepth int) ([]visitedNode, error) {
	visited := map[int64]bool{root: true}
	order := []visitedNode{{id: root, depth: 0}}
	queue := []visitedNode{{id: root, depth: 0}}
	edgesCollected := 0

	for len(queue) > 0 && len(visited) < MaxVisitedNodes {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}

		var neighbors []store.EdgeNeighbor
		var err error
		if direction == dirOutbound {
			neighbors, err = st.OutboundEdges(ctx, cur.id, relationships)
		} else {
			neighbors, err = st.InboundEdges(ctx, cur.id, relationships)
		}
		if err != nil {
			return nil, err
		}

		for _, n := range neighbors {
			if edgesCollected >= MaxCollectedEdges {
				break
			}
			edgesCollected++
			if visited[n.NeighborID] {
				continue
			}
			visited[n.NeighborID] = true
			node := visitedNode{
				id: n.NeighborID, depth: cur.depth + 1, parentID: cur.id,
				relationship: n.Relationship, filePath: n.FilePath, lineNumber: n.LineNumber, confidence: n.Confidence,
			}
			order = append(order, node)
			queue = append(queue, node)
			if len(visited) >= MaxVisitedNodes {
				break
			}
		}
	}
	return order, nil
}
