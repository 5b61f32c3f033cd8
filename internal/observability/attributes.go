// Package observability provides the service metrics.
package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"assetgraph/internal/asset"
)

// Attribute keys
const (
	attrMethod    = "method"
	attrRoute     = "route"
	attrStatus    = "status"
	attrAsset     = "asset"
	attrLifecycle = "lifecycle"
	attrEligible  = "eligible"
	attrOutcome   = "outcome"
)

func methodAttr(method string) attribute.KeyValue {
	return attribute.String(attrMethod, method)
}

// routeAttr takes a mux pattern such as /v1/assets/{assetId}, never a raw path.
func routeAttr(route string) attribute.KeyValue {
	return attribute.String(attrRoute, route)
}

func statusAttr(code int) attribute.KeyValue {
	// 200-299 -> 2xx, 400-499 -> 4xx, 500-599 -> 5xx
	return attribute.String(attrStatus, fmt.Sprintf("%dxx", code/100))
}

// assetAttr uses the asset id directly. Registries are small and fixed at startup.
func assetAttr(id string) attribute.KeyValue {
	return attribute.String(attrAsset, id)
}

func lifecycleAttr(s asset.Status) attribute.KeyValue {
	return attribute.String(attrLifecycle, string(s))
}

func eligibleAttr(eligible bool) attribute.KeyValue {
	return attribute.Bool(attrEligible, eligible)
}

func outcomeAttr(outcome string) attribute.KeyValue {
	return attribute.String(attrOutcome, outcome)
}
