package asset

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"assetgraph/internal/apperrors"
)

// DownstreamMeta extends the lifecycle record with the declared upstream ids and the
// refresh method, both fixed when the asset is created.
type DownstreamMeta struct {
	Meta
	Upstream      []ID          `json:"upstream"`
	RefreshMethod RefreshMethod `json:"refresh_method"`
}

// DownstreamConfig declares a downstream asset.
type DownstreamConfig[T any] struct {
	ID ID
	// Registry resolves Upstream into live assets.
	Registry *Registry
	// Upstream lists the dependencies in the order Transform receives them.
	Upstream  []ID
	Transform Transform[T]
	// RefreshMethod defaults to AllUpstreamRefreshed.
	RefreshMethod RefreshMethod
}

// Downstream is an asset computed from upstream assets.
type Downstream[T any] struct {
	*Base[*DownstreamMeta, T]

	registry      *Registry
	upstream      []ID
	transform     Transform[T]
	refreshMethod RefreshMethod
}

// NewDownstream creates a downstream asset. Upstream ids are resolved lazily against
// the registry, so assets may be registered in any order during bootstrap.
func NewDownstream[T any](cfg DownstreamConfig[T]) *Downstream[T] {
	method := cfg.RefreshMethod
	if method == "" {
		method = AllUpstreamRefreshed
	}
	d := &Downstream[T]{
		registry:      cfg.Registry,
		upstream:      append([]ID(nil), cfg.Upstream...),
		transform:     cfg.Transform,
		refreshMethod: method,
	}
	d.Base = newBase[*DownstreamMeta, T](cfg.ID, d.SetDefaultMeta)
	d.Base.onDecode = d.restampDeclaration
	return d
}

// restampDeclaration keeps the stored upstream list and refresh method in line
// with the declaration. A document written under an older declaration is
// corrected here and saved with the next SaveMeta.
func (d *Downstream[T]) restampDeclaration(doc *DownstreamMeta) {
	if slices.Equal(doc.Upstream, d.upstream) && doc.RefreshMethod == d.refreshMethod {
		return
	}
	d.logger().Info("Stored dependencies differ from declaration, using declared",
		"storedUpstream", doc.Upstream,
		"storedRefreshMethod", doc.RefreshMethod,
		"upstream", d.upstream,
		"refreshMethod", d.refreshMethod)
	doc.Upstream = d.UpstreamIDs()
	doc.RefreshMethod = d.refreshMethod
}

// UpstreamIDs returns the declared upstream ids in declaration order.
func (d *Downstream[T]) UpstreamIDs() []ID {
	return append([]ID(nil), d.upstream...)
}

// RefreshMethod returns the configured refresh method.
func (d *Downstream[T]) RefreshMethod() RefreshMethod { return d.refreshMethod }

// Upstream resolves the declared upstream ids into live assets, in declaration order.
func (d *Downstream[T]) Upstream() ([]Asset, error) {
	if d.registry == nil {
		return nil, apperrors.Configuration("asset.upstream", "asset "+string(d.id)+" has no registry")
	}
	return d.registry.Resolve(d.upstream)
}

// SetDefaultMeta builds the INITIALIZED metadata for this asset, capturing the upstream
// ids and refresh method so they are persisted alongside the lifecycle state.
func (d *Downstream[T]) SetDefaultMeta() *DownstreamMeta {
	return &DownstreamMeta{
		Meta:          *NewMeta(),
		Upstream:      d.UpstreamIDs(),
		RefreshMethod: d.refreshMethod,
	}
}

// Validate checks the base asset, the transform arity against the upstream list, and
// every upstream asset.
func (d *Downstream[T]) Validate(ctx context.Context) error {
	if err := d.Base.Validate(ctx); err != nil {
		return err
	}
	if d.transform == nil {
		return apperrors.Configuration("asset.validate", "asset "+string(d.id)+" has no transform")
	}
	if arity := d.transform.Arity(); arity != Variadic && arity != len(d.upstream) {
		return apperrors.Configuration("asset.validate",
			fmt.Sprintf("asset %s declares %d upstream assets but its transform takes %d", d.id, len(d.upstream), arity))
	}
	upstream, err := d.Upstream()
	if err != nil {
		return err
	}
	for _, u := range upstream {
		if err := u.Validate(ctx); err != nil {
			return err
		}
	}
	return nil
}

// ExecuteTransformation loads every upstream payload and applies the transform to the
// upstream assets in declaration order. Lifecycle metadata is left to the caller.
func (d *Downstream[T]) ExecuteTransformation(ctx context.Context) (T, error) {
	var zero T
	if d.transform == nil {
		return zero, apperrors.Configuration("asset.transform", "asset "+string(d.id)+" has no transform")
	}
	upstream, err := d.Upstream()
	if err != nil {
		return zero, err
	}
	for _, u := range upstream {
		if err := u.LoadData(ctx); err != nil {
			return zero, fmt.Errorf("load upstream %s: %w", u.ID(), err)
		}
	}
	return d.transform.Apply(ctx, upstream)
}

// CanMaterialize reloads this asset's and its upstream assets' metadata and reports
// whether the asset may materialize now. Repeated calls against unchanged storage
// return the same answer.
func (d *Downstream[T]) CanMaterialize(ctx context.Context) (bool, error) {
	decision, err := d.Eligibility(ctx)
	if err != nil {
		return false, err
	}
	return decision.Eligible, nil
}

// Eligibility is CanMaterialize with the deciding rule attached.
func (d *Downstream[T]) Eligibility(ctx context.Context) (Decision, error) {
	if err := d.LoadMeta(ctx); err != nil {
		return Decision{}, err
	}
	upstream, err := d.Upstream()
	if err != nil {
		return Decision{}, err
	}
	metas := make([]*Meta, 0, len(upstream))
	for _, u := range upstream {
		if err := u.LoadMeta(ctx); err != nil {
			return Decision{}, err
		}
		metas = append(metas, u.Lifecycle())
	}

	decision := Evaluate(d.Lifecycle(), metas, d.refreshMethod)
	logger := d.logger().With("refreshMethod", d.refreshMethod)
	switch {
	case decision.Reason == ReasonUnknownMethod:
		logger.Warn("Can materialize: " + decision.Reason)
	case decision.Eligible:
		logger.Info("Can materialize: " + decision.Reason)
	default:
		logger.Info("Can't materialize: " + decision.Reason)
	}
	return decision, nil
}

// Materialize runs the transform and drives the MATERIALIZING ->
// MATERIALIZED|MATERIALIZING_FAILED transitions. A failing transform is recorded in
// the metadata and not returned; only configuration and schema errors, or a failure
// to save the metadata itself, are. The caller checks eligibility first.
func (d *Downstream[T]) Materialize(ctx context.Context) error {
	meta := d.Lifecycle()
	meta.UpdateStatus(StatusMaterializing)
	if err := d.SaveMeta(ctx); err != nil {
		return err
	}

	start := time.Now()
	data, err := d.ExecuteTransformation(ctx)
	if err != nil {
		return d.recordFailure(ctx, StatusMaterializingFailed, "materializing", err)
	}

	d.SetData(data)
	meta.UpdateStatus(StatusMaterialized)
	meta.AppendLogf("materialized in %s", time.Since(start).Round(time.Millisecond))
	d.logger().Info("Asset materialized", slog.Duration("duration", time.Since(start)))
	return d.SaveMeta(ctx)
}
