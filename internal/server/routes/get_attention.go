package routes

import (
	"context"
	"errors"
	"net/http"

	"github.com/txgnn-explorer/backend/pkg/cache"
	"github.com/txgnn-explorer/backend/pkg/common"
	"github.com/txgnn-explorer/backend/pkg/graph"
	"github.com/txgnn-explorer/backend/pkg/logger"
	"github.com/txgnn-explorer/backend/pkg/store"

	"github.com/labstack/echo/v4"
)

type attentionResponse struct {
	Paths []common.AttentionPath `json:"paths"`
	Tree  *common.AttentionTree  `json:"tree"`
}

type attentionTreesResponse struct {
	Attention map[string]*common.AttentionTree `json:"attention"`
}

// GetAttentionHandler answers the attention neighbourhood of one node
// (node, type) or the attention trees of both ends of a pair (disease,
// drug). threshold and children prune the returned trees.
func GetAttentionHandler(c echo.Context) error {
	type getAttentionParams struct {
		Node      string  `query:"node"`
		Type      string  `query:"type"`
		Disease   string  `query:"disease"`
		Drug      string  `query:"drug"`
		Threshold float64 `query:"threshold" validate:"gte=0"`
		Children  int     `query:"children" validate:"gte=0"`
	}

	params := new(getAttentionParams)
	if err := c.Bind(params); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid request params")
	}
	if err := c.Validate(params); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid request params")
	}

	app := appFrom(c)
	ctx := c.Request().Context()

	if params.Node != "" {
		paths, tree, err := attentionTree(ctx, app.Graph, params.Node, params.Type)
		if err != nil {
			logger.Error("Failed to query attention", "node", params.Node, "err", err)
			return jsonError(c, http.StatusInternalServerError, "Internal server error")
		}
		return c.JSON(http.StatusOK, attentionResponse{
			Paths: paths,
			Tree:  graph.PruneTree(tree, params.Threshold, params.Children),
		})
	}

	if params.Disease == "" && params.Drug == "" {
		return jsonError(c, http.StatusBadRequest, "node or disease and drug are required")
	}

	res := attentionTreesResponse{Attention: map[string]*common.AttentionTree{}}
	for _, q := range []struct{ id, nodeType string }{
		{params.Disease, common.NodeTypeDisease},
		{params.Drug, common.NodeTypeDrug},
	} {
		if q.id == "" {
			continue
		}
		_, tree, err := attentionTree(ctx, app.Graph, q.id, q.nodeType)
		if err != nil {
			logger.Error("Failed to query attention", "node", q.id, "err", err)
			return jsonError(c, http.StatusInternalServerError, "Internal server error")
		}
		if tree != nil {
			res.Attention[q.id] = graph.PruneTree(tree, params.Threshold, params.Children)
		}
	}

	return c.JSON(http.StatusOK, res)
}

// attentionTree returns the attention paths of id and their tree. A node
// missing from the graph has neither.
func attentionTree(ctx context.Context, db store.GraphDatabase, id, nodeType string) ([]common.AttentionPath, *common.AttentionTree, error) {
	paths, err := db.QueryAttention(ctx, id, nodeType)
	if errors.Is(err, store.ErrNodeNotFound) {
		return []common.AttentionPath{}, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if paths == nil {
		paths = []common.AttentionPath{}
	}

	if nodeType == "" && len(paths) > 0 && len(paths[0]) > 0 && len(paths[0][0].Node.Labels) > 0 {
		nodeType = paths[0][0].Node.Labels[0]
	}
	return paths, graph.BuildTree(paths, nodeType, id), nil
}

// GetAttentionPairHandler explains a predicted disease/drug pair. Results
// are cached unpruned; threshold and children prune per request.
func GetAttentionPairHandler(c echo.Context) error {
	type getAttentionPairParams struct {
		Disease   string  `query:"disease" validate:"required"`
		Drug      string  `query:"drug" validate:"required"`
		Threshold float64 `query:"threshold" validate:"gte=0"`
		Children  int     `query:"children" validate:"gte=0"`
	}

	params := new(getAttentionPairParams)
	if err := c.Bind(params); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid request params")
	}
	if err := c.Validate(params); err != nil {
		return jsonError(c, http.StatusBadRequest, "disease and drug are required")
	}

	app := appFrom(c)
	ctx := c.Request().Context()

	key := cache.Key("attention_pair", params.Disease, params.Drug)
	pair, err := cache.Remember(ctx, app.Cache, key, app.CacheTTL,
		func(ctx context.Context) (*common.AttentionPair, error) {
			return app.Graph.QueryAttentionPair(ctx, params.Disease, params.Drug)
		})
	if errors.Is(err, store.ErrEmptyID) {
		return jsonError(c, http.StatusBadRequest, "disease and drug are required")
	}
	if err != nil {
		logger.Error("Failed to query attention pair", "disease", params.Disease, "drug", params.Drug, "err", err)
		return jsonError(c, http.StatusInternalServerError, "Internal server error")
	}
	if pair == nil {
		pair = &common.AttentionPair{}
	}

	res := common.AttentionPair{
		Attention: make(map[string]*common.AttentionTree, len(pair.Attention)),
		Paths:     pair.Paths,
	}
	for id, tree := range pair.Attention {
		res.Attention[id] = graph.PruneTree(tree, params.Threshold, params.Children)
	}
	if res.Paths == nil {
		res.Paths = []common.MetaPath{}
	}

	return c.JSON(http.StatusOK, res)
}
