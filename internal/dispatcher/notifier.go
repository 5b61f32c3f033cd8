package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"assetgraph/internal/asset"
	"assetgraph/internal/pipeline"
	"assetgraph/pkg/cloudevent"
)

// Event types emitted for pipeline runs.
const (
	TypeRunFinished    = "dev.assetgraph.run.finished"
	TypeAssetPersisted = "dev.assetgraph.asset.persisted"
	TypeAssetFailed    = "dev.assetgraph.asset.failed"
)

// RunData is the payload of TypeRunFinished.
type RunData struct {
	RunID        string     `json:"run_id"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   time.Time  `json:"finished_at"`
	Materialized []asset.ID `json:"materialized"`
	Failed       int        `json:"failed"`
	Error        string     `json:"error,omitempty"`
}

// AssetData is the payload of the per-asset event types.
type AssetData struct {
	RunID  string       `json:"run_id"`
	ID     asset.ID     `json:"id"`
	Status asset.Status `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// Notifier turns run reports into CloudEvents and queues them for every
// destination.
type Notifier struct {
	dispatcher   Dispatcher
	destinations []string
	source       string
}

// NewNotifier creates a notifier delivering through d.
func NewNotifier(d Dispatcher, destinations []string, source string) *Notifier {
	return &Notifier{dispatcher: d, destinations: append([]string(nil), destinations...), source: source}
}

// Events builds the events for one finished run: one per refreshed or failed
// asset, then the run summary.
func (n *Notifier) Events(report *pipeline.Report, runErr error) []*cloudevent.Event {
	var events []*cloudevent.Event
	for _, a := range report.Assets {
		data := AssetData{RunID: report.RunID, ID: a.ID, Status: a.Status, Error: a.Error}
		switch {
		case a.Error != "" || a.Status.Failed():
			events = append(events, cloudevent.New(TypeAssetFailed, n.source, string(a.ID), data))
		case a.Eligible && a.Status == asset.StatusPersisted:
			events = append(events, cloudevent.New(TypeAssetPersisted, n.source, string(a.ID), data))
		}
	}

	run := RunData{
		RunID:        report.RunID,
		StartedAt:    report.StartedAt,
		FinishedAt:   report.FinishedAt,
		Materialized: report.Materialized(),
		Failed:       report.Failed(),
	}
	if run.Materialized == nil {
		run.Materialized = []asset.ID{}
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	return append(events, cloudevent.New(TypeRunFinished, n.source, report.RunID, run))
}

// RunFinished implements pipeline.Notifier. It never blocks on delivery.
func (n *Notifier) RunFinished(ctx context.Context, report *pipeline.Report, err error) {
	if report == nil {
		return
	}
	for _, event := range n.Events(report, err) {
		for _, dest := range n.destinations {
			dispatchErr := n.dispatcher.Dispatch(&Event{Payload: event, Destination: dest})
			if errors.Is(dispatchErr, ErrClosed) {
				slog.DebugContext(ctx, "Notification skipped, dispatcher closed", "type", event.Type)
				return
			}
		}
	}
}

var _ pipeline.Notifier = (*Notifier)(nil)
