package asset

import (
	"encoding/json"
	"fmt"
	"time"

	"assetgraph/internal/apperrors"
)

// Meta is the lifecycle record of one asset.
//
// Phase timestamps hold the most recent attempt only. UpdatedAt always equals the
// timestamp of the latest status transition.
type Meta struct {
	Status                 Status     `json:"status"`
	InitializedAt          time.Time  `json:"initialized_at"`
	MaterializingStartedAt *time.Time `json:"materializing_started_at"`
	MaterializingStoppedAt *time.Time `json:"materializing_stopped_at"`
	PersistingStartedAt    *time.Time `json:"persisting_started_at"`
	PersistingStoppedAt    *time.Time `json:"persisting_stopped_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
	Log                    []string   `json:"log"`
}

// MetaDocument is a metadata record that embeds the lifecycle fields.
// *Meta and *DownstreamMeta both satisfy it.
type MetaDocument interface {
	Lifecycle() *Meta
}

// NewMeta returns an INITIALIZED record stamped with the current time.
func NewMeta() *Meta {
	now := time.Now().UTC()
	return &Meta{
		Status:        StatusInitialized,
		InitializedAt: now,
		UpdatedAt:     now,
		Log:           []string{},
	}
}

// Lifecycle returns the record itself.
func (m *Meta) Lifecycle() *Meta { return m }

// UpdateStatus moves the record to status, stamping the current time.
func (m *Meta) UpdateStatus(status Status) *Meta {
	return m.UpdateStatusAt(status, time.Now())
}

// UpdateStatusAt moves the record to status, stamping at. Any status may follow any
// other; the materialize/persist protocol decides when each is set.
func (m *Meta) UpdateStatusAt(status Status, at time.Time) *Meta {
	ts := at.UTC()
	m.Status = status

	switch status {
	case StatusInitialized:
		m.InitializedAt = ts
	case StatusMaterializing:
		m.MaterializingStartedAt = &ts
	case StatusMaterializingFailed, StatusMaterialized:
		m.MaterializingStoppedAt = &ts
	case StatusPersisting:
		m.PersistingStartedAt = &ts
	case StatusPersistingFailed, StatusPersisted:
		m.PersistingStoppedAt = &ts
	}

	m.UpdatedAt = ts
	return m
}

// AppendLog records a message in the event log.
func (m *Meta) AppendLog(message string) *Meta {
	m.Log = append(m.Log, message)
	return m
}

// AppendLogf is AppendLog with formatting.
func (m *Meta) AppendLogf(format string, args ...any) *Meta {
	return m.AppendLog(fmt.Sprintf(format, args...))
}

// InProgress reports whether the asset is materializing or persisting.
func (m *Meta) InProgress() bool { return m.Status.InProgress() }

// HasError reports whether the last materialize or persist attempt failed.
func (m *Meta) HasError() bool { return m.Status.Failed() }

// HasPersisted reports whether the asset completed a full materialize/persist cycle
// and has not started another one since.
func (m *Meta) HasPersisted() bool { return m.Status == StatusPersisted }

// LastLog returns the most recent log entry, or "" for an empty log.
func (m *Meta) LastLog() string {
	if len(m.Log) == 0 {
		return ""
	}
	return m.Log[len(m.Log)-1]
}

// normalize restores invariants a decoded document may lack.
func (m *Meta) normalize() error {
	if !m.Status.Valid() {
		return fmt.Errorf("unknown status %q", m.Status)
	}
	if m.Log == nil {
		m.Log = []string{}
	}
	return nil
}

// EncodeMeta serializes a metadata document to JSON.
func EncodeMeta(doc MetaDocument) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, apperrors.Schema("meta.encode", err)
	}
	return data, nil
}

// DecodeMeta parses data into doc. Malformed JSON or an unknown status is a schema error.
func DecodeMeta(data []byte, doc MetaDocument) error {
	if err := json.Unmarshal(data, doc); err != nil {
		return apperrors.Schema("meta.decode", err)
	}
	if err := doc.Lifecycle().normalize(); err != nil {
		return apperrors.Schema("meta.decode", err)
	}
	return nil
}
