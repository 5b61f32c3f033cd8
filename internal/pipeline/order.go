package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"assetgraph/internal/apperrors"
	"assetgraph/internal/asset"
)

// upstreamer is implemented by assets that declare upstream dependencies.
type upstreamer interface {
	UpstreamIDs() []asset.ID
}

// Order returns the registered assets so that every asset follows its upstream
// assets. Among assets whose dependencies are satisfied, lower ids come first.
func Order(registry *asset.Registry) ([]asset.Asset, error) {
	assets := registry.Assets()
	indegree := make(map[asset.ID]int, len(assets))
	dependents := make(map[asset.ID][]asset.ID, len(assets))
	byID := make(map[asset.ID]asset.Asset, len(assets))

	for _, a := range assets {
		byID[a.ID()] = a
		u, ok := a.(upstreamer)
		if !ok {
			continue
		}
		for _, up := range u.UpstreamIDs() {
			if _, found := registry.Get(up); !found {
				return nil, apperrors.Configuration("pipeline.order", fmt.Sprintf("asset %s depends on unregistered asset %s", a.ID(), up))
			}
			indegree[a.ID()]++
			dependents[up] = append(dependents[up], a.ID())
		}
	}

	var ready []asset.ID
	for _, a := range assets {
		if indegree[a.ID()] == 0 {
			ready = append(ready, a.ID())
		}
	}

	ordered := make([]asset.Asset, 0, len(assets))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })
		id := ready[0]
		ready = ready[1:]
		ordered = append(ordered, byID[id])
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(ordered) != len(assets) {
		var cyclic []string
		for _, a := range assets {
			if indegree[a.ID()] > 0 {
				cyclic = append(cyclic, string(a.ID()))
			}
		}
		return nil, apperrors.Configuration("pipeline.order", "dependency cycle between "+strings.Join(cyclic, ", "))
	}
	return ordered, nil
}
