package api

import (
	"context"
	"errors"

	"assetgraph/internal/apperrors"
	"assetgraph/internal/asset"
	"assetgraph/internal/pipeline"
)

// AssetView is the API representation of one registered asset.
type AssetView struct {
	ID            asset.ID            `json:"id"`
	Kind          string              `json:"kind"`
	Upstream      []asset.ID          `json:"upstream,omitempty"`
	RefreshMethod asset.RefreshMethod `json:"refresh_method,omitempty"`
	Stored        bool                `json:"stored"`
	Quarantined   bool                `json:"quarantined"`
	Meta          *asset.Meta         `json:"meta"`
}

// EligibilityView is the API representation of an eligibility decision.
type EligibilityView struct {
	ID       asset.ID `json:"id"`
	Eligible bool     `json:"eligible"`
	Reason   string   `json:"reason"`
}

// ListResponse is the response for GET /v1/assets.
type ListResponse struct {
	Assets []AssetView `json:"assets"`
	Count  int         `json:"count"`
}

const (
	kindSource     = "source"
	kindDownstream = "downstream"
)

// downstream is the read-only surface of a downstream asset.
type downstream interface {
	UpstreamIDs() []asset.ID
	RefreshMethod() asset.RefreshMethod
}

// snapshot receives a stored metadata document without touching the live
// asset, which the runner may be mutating concurrently.
type snapshot struct {
	id  asset.ID
	doc asset.DownstreamMeta
}

func (s *snapshot) ID() asset.ID                { return s.id }
func (s *snapshot) EncodeMeta() ([]byte, error) { return asset.EncodeMeta(&s.doc) }
func (s *snapshot) DecodeMeta(data []byte) error {
	return asset.DecodeMeta(data, &s.doc)
}

// catalog answers status queries from stored metadata.
type catalog struct {
	registry    *asset.Registry
	meta        asset.MetaPersister
	quarantined func(asset.ID) bool
}

// load reads the stored lifecycle of id. A never-stored asset reads as INITIALIZED.
func (c *catalog) load(ctx context.Context, id asset.ID) (*asset.Meta, bool, error) {
	s := &snapshot{id: id}
	err := c.meta.Load(ctx, s)
	if errors.Is(err, apperrors.ErrNotStored) {
		return asset.NewMeta(), false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &s.doc.Meta, true, nil
}

func (c *catalog) lookup(id asset.ID) (asset.Asset, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	a, ok := c.registry.Get(id)
	if !ok {
		return nil, apperrors.NotFound("asset", string(id))
	}
	return a, nil
}

func (c *catalog) view(ctx context.Context, a asset.Asset) (AssetView, error) {
	meta, stored, err := c.load(ctx, a.ID())
	if err != nil {
		return AssetView{}, err
	}
	v := AssetView{ID: a.ID(), Kind: kindSource, Stored: stored, Meta: meta}
	if c.quarantined != nil {
		v.Quarantined = c.quarantined(a.ID())
	}
	if d, ok := a.(downstream); ok {
		v.Kind = kindDownstream
		v.Upstream = d.UpstreamIDs()
		v.RefreshMethod = d.RefreshMethod()
	}
	return v, nil
}

func (c *catalog) List(ctx context.Context) (*ListResponse, error) {
	assets := c.registry.Assets()
	resp := &ListResponse{Assets: make([]AssetView, 0, len(assets))}
	for _, a := range assets {
		v, err := c.view(ctx, a)
		if err != nil {
			return nil, err
		}
		resp.Assets = append(resp.Assets, v)
	}
	resp.Count = len(resp.Assets)
	return resp, nil
}

func (c *catalog) Get(ctx context.Context, id asset.ID) (*AssetView, error) {
	a, err := c.lookup(id)
	if err != nil {
		return nil, err
	}
	v, err := c.view(ctx, a)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Eligibility evaluates id against stored metadata using the same rules as a run.
func (c *catalog) Eligibility(ctx context.Context, id asset.ID) (*EligibilityView, error) {
	a, err := c.lookup(id)
	if err != nil {
		return nil, err
	}
	d, ok := a.(downstream)
	if !ok {
		return &EligibilityView{ID: id, Reason: pipeline.ReasonSourceAsset}, nil
	}
	if c.quarantined != nil && c.quarantined(id) {
		return &EligibilityView{ID: id, Reason: pipeline.ReasonQuarantined}, nil
	}

	self, _, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	var upstream []*asset.Meta
	for _, up := range d.UpstreamIDs() {
		if _, ok := c.registry.Get(up); !ok {
			return nil, apperrors.Configuration("api.eligibility", "asset "+string(up)+" is not registered")
		}
		m, _, err := c.load(ctx, up)
		if err != nil {
			return nil, err
		}
		upstream = append(upstream, m)
	}

	decision := asset.Evaluate(self, upstream, d.RefreshMethod())
	return &EligibilityView{ID: id, Eligible: decision.Eligible, Reason: decision.Reason}, nil
}
