package asset

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"assetgraph/internal/apperrors"
)

func ts(sec int) time.Time {
	return time.Date(2026, 10, 19, 12, 0, sec, 0, time.UTC)
}

// stamps returns the phase timestamps in a fixed order for comparison.
func stamps(m *Meta) []*time.Time {
	return []*time.Time{m.MaterializingStartedAt, m.MaterializingStoppedAt, m.PersistingStartedAt, m.PersistingStoppedAt}
}

func TestMeta_UpdateStatusAt_SetsMappedTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status Status
		field  int // index into stamps(), -1 for InitializedAt
	}{
		{StatusInitialized, -1},
		{StatusMaterializing, 0},
		{StatusMaterializingFailed, 1},
		{StatusMaterialized, 1},
		{StatusPersisting, 2},
		{StatusPersistingFailed, 3},
		{StatusPersisted, 3},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			t.Parallel()
			m := NewMeta()
			before := m.InitializedAt
			at := ts(30)

			got := m.UpdateStatusAt(tt.status, at)

			if got != m {
				t.Fatal("expected UpdateStatusAt to return the receiver")
			}
			if m.Status != tt.status {
				t.Errorf("expected status %s, got %s", tt.status, m.Status)
			}
			if !m.UpdatedAt.Equal(at) {
				t.Errorf("expected UpdatedAt %v, got %v", at, m.UpdatedAt)
			}

			if tt.field == -1 {
				if !m.InitializedAt.Equal(at) {
					t.Errorf("expected InitializedAt %v, got %v", at, m.InitializedAt)
				}
			} else if !m.InitializedAt.Equal(before) {
				t.Errorf("InitializedAt changed for %s", tt.status)
			}

			for i, p := range stamps(m) {
				if i == tt.field {
					if p == nil || !p.Equal(at) {
						t.Errorf("expected stamp %d set to %v, got %v", i, at, p)
					}
					continue
				}
				if p != nil {
					t.Errorf("stamp %d unexpectedly set for %s", i, tt.status)
				}
			}
		})
	}
}

func TestMeta_UpdateStatusAt_KeepsMostRecentAttempt(t *testing.T) {
	t.Parallel()
	m := NewMeta()
	m.UpdateStatusAt(StatusMaterializing, ts(1)).
		UpdateStatusAt(StatusMaterializingFailed, ts(2)).
		UpdateStatusAt(StatusMaterializing, ts(3)).
		UpdateStatusAt(StatusMaterialized, ts(4))

	if !m.MaterializingStartedAt.Equal(ts(3)) {
		t.Errorf("expected start of the retry, got %v", m.MaterializingStartedAt)
	}
	if !m.MaterializingStoppedAt.Equal(ts(4)) {
		t.Errorf("expected stop of the retry, got %v", m.MaterializingStoppedAt)
	}
	if m.PersistingStartedAt != nil || m.PersistingStoppedAt != nil {
		t.Error("persisting stamps must stay unset")
	}
}

func TestMeta_UpdateStatus_StampsNow(t *testing.T) {
	t.Parallel()
	m := NewMeta()
	before := time.Now()
	m.UpdateStatus(StatusMaterializing)
	after := time.Now()

	if m.UpdatedAt.Before(before.UTC()) || m.UpdatedAt.After(after.UTC()) {
		t.Errorf("UpdatedAt %v outside [%v, %v]", m.UpdatedAt, before, after)
	}
	if m.UpdatedAt.Location() != time.UTC {
		t.Errorf("expected UTC timestamp, got %v", m.UpdatedAt.Location())
	}
}

func TestMeta_Predicates(t *testing.T) {
	t.Parallel()

	for _, s := range Statuses {
		m := NewMeta().UpdateStatusAt(s, ts(0))

		wantProgress := s == StatusMaterializing || s == StatusPersisting
		wantError := s == StatusMaterializingFailed || s == StatusPersistingFailed

		if m.InProgress() != wantProgress {
			t.Errorf("%s: InProgress() = %v, want %v", s, m.InProgress(), wantProgress)
		}
		if m.HasError() != wantError {
			t.Errorf("%s: HasError() = %v, want %v", s, m.HasError(), wantError)
		}
		if m.InProgress() && m.HasError() {
			t.Errorf("%s: InProgress and HasError both true", s)
		}
		if m.HasPersisted() != (s == StatusPersisted) {
			t.Errorf("%s: HasPersisted() = %v", s, m.HasPersisted())
		}
		if !s.Valid() {
			t.Errorf("%s: expected valid", s)
		}
	}

	if Status("DONE").Valid() {
		t.Error("expected unknown status to be invalid")
	}
}

func TestMeta_AppendLog(t *testing.T) {
	t.Parallel()
	m := NewMeta()
	status, updated := m.Status, m.UpdatedAt

	m.AppendLog("first").AppendLogf("second %d", 2)

	if !reflect.DeepEqual(m.Log, []string{"first", "second 2"}) {
		t.Errorf("unexpected log: %v", m.Log)
	}
	if m.LastLog() != "second 2" {
		t.Errorf("unexpected last log: %q", m.LastLog())
	}
	if m.Status != status || !m.UpdatedAt.Equal(updated) {
		t.Error("AppendLog must not touch status or UpdatedAt")
	}
	if NewMeta().LastLog() != "" {
		t.Error("expected empty last log for a new record")
	}
}

func TestMeta_RoundTrip(t *testing.T) {
	t.Parallel()

	full := NewMeta().
		UpdateStatusAt(StatusInitialized, ts(0)).
		UpdateStatusAt(StatusMaterializing, ts(1)).
		UpdateStatusAt(StatusMaterialized, ts(2)).
		UpdateStatusAt(StatusPersisting, ts(3)).
		UpdateStatusAt(StatusPersisted, ts(4)).
		AppendLog("materialized").
		AppendLog("persisted")

	tests := []struct {
		name string
		meta *Meta
	}{
		{"fresh with empty log", NewMeta()},
		{"single log entry", NewMeta().AppendLog("only")},
		{"failed materialization", NewMeta().UpdateStatusAt(StatusMaterializing, ts(1)).UpdateStatusAt(StatusMaterializingFailed, ts(2)).AppendLog("boom")},
		{"all fields", full},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			data, err := EncodeMeta(tt.meta)
			if err != nil {
				t.Fatalf("EncodeMeta: %v", err)
			}
			got := &Meta{}
			if err := DecodeMeta(data, got); err != nil {
				t.Fatalf("DecodeMeta: %v", err)
			}
			assertMetaEqual(t, tt.meta, got)
		})
	}
}

func TestDownstreamMeta_RoundTrip(t *testing.T) {
	t.Parallel()
	want := &DownstreamMeta{
		Meta:          *NewMeta().UpdateStatusAt(StatusPersisted, ts(9)).AppendLog("a").AppendLog("b"),
		Upstream:      IDs("raw.orders", "raw.customers"),
		RefreshMethod: AnyUpstreamRefreshed,
	}

	data, err := EncodeMeta(want)
	if err != nil {
		t.Fatalf("EncodeMeta: %v", err)
	}
	got := &DownstreamMeta{}
	if err := DecodeMeta(data, got); err != nil {
		t.Fatalf("DecodeMeta: %v", err)
	}

	assertMetaEqual(t, &want.Meta, &got.Meta)
	if !reflect.DeepEqual(got.Upstream, want.Upstream) {
		t.Errorf("upstream: got %v, want %v", got.Upstream, want.Upstream)
	}
	if got.RefreshMethod != want.RefreshMethod {
		t.Errorf("refresh method: got %s, want %s", got.RefreshMethod, want.RefreshMethod)
	}
}

func TestDecodeMeta_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data string
	}{
		{"malformed", `{"status":`},
		{"unknown status", `{"status":"DONE","log":[]}`},
		{"wrong type", `{"status":"INITIALIZED","log":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := DecodeMeta([]byte(tt.data), &Meta{})
			if !errors.Is(err, apperrors.ErrSchema) {
				t.Errorf("expected schema error, got %v", err)
			}
		})
	}
}

func TestDecodeMeta_NullLogBecomesEmpty(t *testing.T) {
	t.Parallel()
	m := &Meta{}
	if err := DecodeMeta([]byte(`{"status":"INITIALIZED","log":null}`), m); err != nil {
		t.Fatalf("DecodeMeta: %v", err)
	}
	if m.Log == nil || len(m.Log) != 0 {
		t.Errorf("expected empty non-nil log, got %#v", m.Log)
	}
}

func assertMetaEqual(t *testing.T, want, got *Meta) {
	t.Helper()
	if got.Status != want.Status {
		t.Errorf("status: got %s, want %s", got.Status, want.Status)
	}
	if !got.InitializedAt.Equal(want.InitializedAt) {
		t.Errorf("initialized_at: got %v, want %v", got.InitializedAt, want.InitializedAt)
	}
	if !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Errorf("updated_at: got %v, want %v", got.UpdatedAt, want.UpdatedAt)
	}
	ws, gs := stamps(want), stamps(got)
	for i := range ws {
		switch {
		case ws[i] == nil && gs[i] == nil:
		case ws[i] == nil || gs[i] == nil:
			t.Errorf("stamp %d: got %v, want %v", i, gs[i], ws[i])
		case !ws[i].Equal(*gs[i]):
			t.Errorf("stamp %d: got %v, want %v", i, *gs[i], *ws[i])
		}
	}
	if len(want.Log) != len(got.Log) || got.Log == nil {
		t.Fatalf("log: got %#v, want %#v", got.Log, want.Log)
	}
	for i := range want.Log {
		if got.Log[i] != want.Log[i] {
			t.Errorf("log[%d]: got %q, want %q", i, got.Log[i], want.Log[i])
		}
	}
}
