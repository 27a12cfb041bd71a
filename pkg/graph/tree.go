package graph

import (
	"math"

	"github.com/txgnn-explorer/backend/pkg/common"
)

// PruneTree returns a copy of node keeping only children scoring at least
// threshold, at most maxChildren per level (maxChildren <= 0 keeps all).
func PruneTree(node *common.AttentionTree, threshold float64, maxChildren int) *common.AttentionTree {
	if node == nil {
		return nil
	}
	out := *node
	out.Children = make([]*common.AttentionTree, 0, len(node.Children))
	for _, child := range node.Children {
		if child.Score < threshold {
			continue
		}
		out.Children = append(out.Children, PruneTree(child, threshold, maxChildren))
		if maxChildren > 0 && len(out.Children) == maxChildren {
			break
		}
	}
	return &out
}

// FlattenTree lists node ids in pre-order.
func FlattenTree(node *common.AttentionTree) []string {
	if node == nil {
		return nil
	}
	res := []string{node.NodeID}
	for _, child := range node.Children {
		res = append(res, FlattenTree(child)...)
	}
	return res
}

func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
