package match

import (
	"testing"
	"time"
)

func ptrTime(t time.Time) *time.Time { return &t }

func TestTemporalAnchor_PrefersEndAt(t *testing.T) {
	begin := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	end := begin.Add(2 * time.Hour)
	m := Match{
		BeginAt:   ptrTime(begin),
		EndAt:     ptrTime(end),
		UpdatedAt: begin.Add(3 * time.Hour),
	}

	anchor, ok := m.TemporalAnchor()
	if !ok {
		t.Fatal("expected anchor")
	}
	if !anchor.Equal(end) {
		t.Fatalf("expected end_at anchor, got %s", anchor)
	}
}

func TestTemporalAnchor_FallsBackToBeginThenUpdated(t *testing.T) {
	begin := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	updated := begin.Add(time.Hour)

	m := Match{BeginAt: ptrTime(begin), UpdatedAt: updated}
	anchor, ok := m.TemporalAnchor()
	if !ok || !anchor.Equal(begin) {
		t.Fatalf("expected begin_at anchor, got %s ok=%t", anchor, ok)
	}

	m = Match{UpdatedAt: updated}
	anchor, ok = m.TemporalAnchor()
	if !ok || !anchor.Equal(updated) {
		t.Fatalf("expected updated_at anchor, got %s ok=%t", anchor, ok)
	}

	m = Match{}
	if _, ok := m.TemporalAnchor(); ok {
		t.Fatal("expected no anchor for empty record")
	}
}

func TestTemporalAnchor_NormalizesZone(t *testing.T) {
	zone := time.FixedZone("UTC+7", 7*3600)
	local := time.Date(2025, 3, 1, 19, 0, 0, 0, zone)
	m := Match{EndAt: ptrTime(local), UpdatedAt: time.Now()}

	anchor, ok := m.TemporalAnchor()
	if !ok {
		t.Fatal("expected anchor")
	}
	if anchor.Location() != time.UTC {
		t.Fatalf("anchor not UTC: %s", anchor.Location())
	}
	if anchor.Hour() != 12 {
		t.Fatalf("unexpected normalized hour: %d", anchor.Hour())
	}
}

func TestWithinWindow(t *testing.T) {
	now := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	window := 42 * time.Hour

	inside := Match{EndAt: ptrTime(now.Add(-time.Hour)), UpdatedAt: now}
	if !inside.WithinWindow(now, window) {
		t.Fatal("expected anchor 1h ago to be inside a 42h window")
	}

	outside := Match{EndAt: ptrTime(now.Add(-50 * time.Hour)), UpdatedAt: now}
	if outside.WithinWindow(now, window) {
		t.Fatal("expected anchor 50h ago to be outside a 42h window")
	}

	// No derivable anchor: retention fails open.
	unknown := Match{}
	if !unknown.WithinWindow(now, window) {
		t.Fatal("expected anchorless record to be kept")
	}
}

func TestWithinWindow_MixedZonesDoNotSkewDuration(t *testing.T) {
	zone := time.FixedZone("UTC-5", -5*3600)
	now := time.Date(2025, 3, 2, 0, 0, 0, 0, zone)

	m := Match{EndAt: ptrTime(time.Date(2025, 3, 1, 23, 0, 0, 0, time.UTC)), UpdatedAt: time.Now()}
	if !m.WithinWindow(now, 42*time.Hour) {
		t.Fatal("expected anchor 6h before now to be inside the window")
	}
}

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]string{
		"":          StatusNotStarted,
		"Running":   StatusRunning,
		" finished": StatusFinished,
		"cancelled": StatusCanceled,
		"canceled":  StatusCanceled,
		"postponed": StatusPostponed,
	}
	for input, want := range cases {
		if got := NormalizeStatus(input); got != want {
			t.Fatalf("NormalizeStatus(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestCanTransition_Monotonic(t *testing.T) {
	allowed := [][2]string{
		{StatusNotStarted, StatusRunning},
		{StatusRunning, StatusFinished},
		{StatusRunning, StatusCanceled},
		{StatusNotStarted, StatusPostponed},
		{StatusRunning, StatusRunning},
		{StatusCanceled, StatusPostponed},
	}
	for _, pair := range allowed {
		if !CanTransition(pair[0], pair[1]) {
			t.Fatalf("expected %s -> %s to be allowed", pair[0], pair[1])
		}
	}

	rejected := [][2]string{
		{StatusFinished, StatusRunning},
		{StatusRunning, StatusNotStarted},
		{StatusCanceled, StatusRunning},
		{StatusPostponed, StatusNotStarted},
	}
	for _, pair := range rejected {
		if CanTransition(pair[0], pair[1]) {
			t.Fatalf("expected %s -> %s to be rejected", pair[0], pair[1])
		}
	}
}

func TestIsReminderEligible(t *testing.T) {
	if !IsReminderEligible(StatusNotStarted) || !IsReminderEligible(StatusRunning) {
		t.Fatal("expected not_started and running to be eligible")
	}
	for _, status := range ResultStatuses() {
		if IsReminderEligible(status) {
			t.Fatalf("expected %s to be ineligible", status)
		}
	}
}
