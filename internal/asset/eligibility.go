package asset

// RefreshMethod decides how upstream freshness makes a downstream asset eligible.
type RefreshMethod string

const (
	// AllUpstreamRefreshed requires every upstream to have persisted since the
	// downstream asset last materialized.
	AllUpstreamRefreshed RefreshMethod = "ALL_UPSTREAM_REFRESHED"
	// AnyUpstreamRefreshed requires at least one upstream to have done so.
	AnyUpstreamRefreshed RefreshMethod = "ANY_UPSTREAM_REFRESHED"
)

// Valid reports whether m is a known refresh method.
func (m RefreshMethod) Valid() bool {
	return m == AllUpstreamRefreshed || m == AnyUpstreamRefreshed
}

func (m RefreshMethod) String() string { return string(m) }

// Decision is the outcome of an eligibility check together with the rule that decided it.
type Decision struct {
	Eligible bool
	Reason   string
}

// Decision reasons.
const (
	ReasonInProgress         = "materialization in progress"
	ReasonUpstreamIncomplete = "some upstream assets are not persisted"
	ReasonFirstRun           = "asset not materialized yet"
	ReasonAllRefreshed       = "all upstream assets refreshed"
	ReasonNotAllRefreshed    = "at least one upstream asset has not refreshed"
	ReasonAnyRefreshed       = "an upstream asset refreshed"
	ReasonNoneRefreshed      = "no upstream assets refreshed"
	ReasonUnknownMethod      = "unknown refresh method, allowing materialization"
)

// Evaluate decides whether an asset with metadata self may materialize now, given the
// metadata of its upstream assets. It is pure; callers load the metadata beforehand.
//
// The rules apply in order:
//  1. an attempt already in progress blocks;
//  2. any upstream not PERSISTED blocks;
//  3. an asset that never reached PERSISTED may run;
//  4. otherwise upstream persist times are compared against the asset's last
//     materialization under the refresh method;
//  5. an unknown refresh method allows the run.
func Evaluate(self *Meta, upstream []*Meta, method RefreshMethod) Decision {
	if self.InProgress() {
		return Decision{Eligible: false, Reason: ReasonInProgress}
	}

	for _, u := range upstream {
		if !u.HasPersisted() {
			return Decision{Eligible: false, Reason: ReasonUpstreamIncomplete}
		}
	}

	if self.Status != StatusPersisted {
		return Decision{Eligible: true, Reason: ReasonFirstRun}
	}

	// A PERSISTED asset went through MATERIALIZED on the way, so the stop time is set.
	// A hand-edited document without it counts every upstream as newer.
	newer := make([]bool, 0, len(upstream))
	for _, u := range upstream {
		if u.PersistingStoppedAt == nil {
			continue
		}
		newer = append(newer, self.MaterializingStoppedAt == nil || self.MaterializingStoppedAt.Before(*u.PersistingStoppedAt))
	}

	switch method {
	case AllUpstreamRefreshed:
		for _, n := range newer {
			if !n {
				return Decision{Eligible: false, Reason: ReasonNotAllRefreshed}
			}
		}
		return Decision{Eligible: true, Reason: ReasonAllRefreshed}
	case AnyUpstreamRefreshed:
		for _, n := range newer {
			if n {
				return Decision{Eligible: true, Reason: ReasonAnyRefreshed}
			}
		}
		return Decision{Eligible: false, Reason: ReasonNoneRefreshed}
	default:
		return Decision{Eligible: true, Reason: ReasonUnknownMethod}
	}
}
