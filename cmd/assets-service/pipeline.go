package main

import (
	"context"
	"fmt"
	"sort"

	"assetgraph/internal/apperrors"
	"assetgraph/internal/asset"
	"assetgraph/internal/dataset"
	"assetgraph/internal/persist"
)

const (
	ordersID  asset.ID = "raw.orders"
	totalsID  asset.ID = "reports.order_totals"
	summaryID asset.ID = "reports.order_summary"
)

// OrderSummary is the document produced by reports.order_summary.
type OrderSummary struct {
	Orders      int     `json:"orders" yaml:"orders"`
	Customers   int     `json:"customers" yaml:"customers"`
	Revenue     float64 `json:"revenue" yaml:"revenue"`
	TopCustomer string  `json:"top_customer" yaml:"top_customer"`
}

// example holds the assets of the example pipeline:
//
//	raw.orders -> reports.order_totals -> reports.order_summary
//	raw.orders ------------------------------^
type example struct {
	registry *asset.Registry
	orders   *asset.Base[*asset.Meta, *dataset.Table]
	totals   *asset.Downstream[*dataset.Table]
	summary  *asset.Downstream[OrderSummary]
}

type pipelineConfig struct {
	Meta     asset.MetaPersister
	Orders   persist.Resource[*dataset.Table]
	Totals   persist.Resource[*dataset.Table]
	Summary  persist.Resource[OrderSummary]
	Registry *asset.Registry
}

func buildPipeline(cfg pipelineConfig) (*example, error) {
	reg := cfg.Registry
	if reg == nil {
		reg = asset.NewRegistry()
	}
	e := &example{registry: reg, orders: asset.NewBase[*dataset.Table](ordersID)}

	e.totals = asset.NewDownstream(asset.DownstreamConfig[*dataset.Table]{
		ID:        totalsID,
		Registry:  reg,
		Upstream:  []asset.ID{ordersID},
		Transform: asset.Transform1(orderTotals),
	})
	e.summary = asset.NewDownstream(asset.DownstreamConfig[OrderSummary]{
		ID:            summaryID,
		Registry:      reg,
		Upstream:      []asset.ID{ordersID, totalsID},
		Transform:     asset.Transform2(orderSummary),
		RefreshMethod: asset.AnyUpstreamRefreshed,
	})

	if err := reg.Add(e.orders, e.totals, e.summary); err != nil {
		return nil, err
	}
	cfg.Meta.Register(e.orders, e.totals, e.summary)
	persist.NewData(cfg.Orders).Register(e.orders)
	persist.NewData(cfg.Totals).Register(e.totals)
	persist.NewData(cfg.Summary).Register(e.summary)
	return e, nil
}

// seed persists sampleOrders when raw.orders has never been persisted.
func (e *example) seed(ctx context.Context) error {
	if err := e.orders.LoadMeta(ctx); err != nil {
		return err
	}
	if e.orders.Lifecycle().HasPersisted() {
		return nil
	}
	e.orders.SetData(sampleOrders())
	if err := e.orders.Persist(ctx); err != nil {
		return err
	}
	if e.orders.Lifecycle().HasError() {
		return apperrors.Internal("seed", fmt.Errorf("%s", e.orders.Lifecycle().LastLog()))
	}
	return nil
}

func sampleOrders() *dataset.Table {
	t := dataset.NewTable("order_id", "customer", "amount")
	rows := [][]any{
		{int64(1), "acme", 120.5},
		{int64(2), "globex", 80.0},
		{int64(3), "acme", 42.25},
		{int64(4), "initech", 310.0},
		{int64(5), "globex", 19.75},
	}
	for _, r := range rows {
		_ = t.Append(r...)
	}
	return t
}

// orderTotals sums amount per customer, ordered by customer.
func orderTotals(ctx context.Context, orders *dataset.Table) (*dataset.Table, error) {
	if orders == nil {
		return nil, apperrors.Validation("raw.orders", "payload is empty")
	}
	sums := make(map[string]float64)
	counts := make(map[string]int64)
	for i := range orders.Len() {
		c, _ := orders.Value(i, "customer")
		customer, ok := c.(string)
		if !ok || customer == "" {
			return nil, apperrors.Validation("customer", fmt.Sprintf("row %d has no customer", i))
		}
		v, _ := orders.Value(i, "amount")
		amount, ok := dataset.Float(v)
		if !ok {
			return nil, apperrors.Validation("amount", fmt.Sprintf("row %d has non-numeric amount %v", i, v))
		}
		sums[customer] += amount
		counts[customer]++
	}

	customers := make([]string, 0, len(sums))
	for c := range sums {
		customers = append(customers, c)
	}
	sort.Strings(customers)

	totals := dataset.NewTable("customer", "orders", "total")
	for _, c := range customers {
		if err := totals.Append(c, counts[c], sums[c]); err != nil {
			return nil, err
		}
	}
	return totals, nil
}

func orderSummary(ctx context.Context, orders, totals *dataset.Table) (OrderSummary, error) {
	if orders == nil || totals == nil {
		return OrderSummary{}, apperrors.Validation("reports.order_summary", "upstream payload is empty")
	}
	s := OrderSummary{Orders: orders.Len(), Customers: totals.Len()}
	best := -1.0
	for i := range totals.Len() {
		v, _ := totals.Value(i, "total")
		total, _ := dataset.Float(v)
		s.Revenue += total
		if total > best {
			best = total
			c, _ := totals.Value(i, "customer")
			s.TopCustomer, _ = c.(string)
		}
	}
	return s, nil
}
