package calc

import (
	"testing"
	"time"
)

func TestDatetimeOffsetTransform(t *testing.T) {
	def := Definition{
		ID:       "dt1",
		Type:     TypeDatetimeOffset,
		EntityID: "input_datetime.departure",
		Offset:   -30 * time.Minute,
	}
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	st, out := Recompute(def, State{}, change(def.EntityID, "", "2026-03-02T08:00:00Z", now))
	want := time.Date(2026, 3, 2, 7, 30, 0, 0, time.UTC)
	if !out.Available {
		t.Fatal("expected available output")
	}
	if !out.Time.Equal(want) {
		t.Errorf("expected %v, got %v", want, out.Time)
	}

	// Unparsable input yields unavailable, not a stale value.
	_, out = Recompute(def, st, change(def.EntityID, "2026-03-02T08:00:00Z", "garbage", now))
	if out.Available {
		t.Error("expected unavailable for unparsable input")
	}
}

func TestDatetimeOffsetNaiveInput(t *testing.T) {
	def := Definition{ID: "dt2", Type: TypeDatetimeOffset, EntityID: "input_datetime.x", Offset: time.Hour}
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, loc)

	_, out := Recompute(def, State{}, change(def.EntityID, "", "2026-03-02 08:00:00", now))
	want := time.Date(2026, 3, 2, 9, 0, 0, 0, loc)
	if !out.Time.Equal(want) {
		t.Errorf("expected %v, got %v", want, out.Time)
	}
}

func TestDateRangeDuration(t *testing.T) {
	def := Definition{
		ID:            "dr1",
		Type:          TypeDateRange,
		StartEntityID: "input_datetime.checkin",
		EndEntityID:   "input_datetime.checkout",
	}
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	// One side only: unavailable.
	st, out := Recompute(def, State{}, change(def.StartEntityID, "", "2026-03-10T12:00:00Z", now))
	if out.Available {
		t.Error("expected unavailable with end entity unset")
	}

	st, out = Recompute(def, st, change(def.EndEntityID, "", "2026-03-12T18:00:00Z", now))
	if !out.Available {
		t.Fatal("expected available with both entities set")
	}
	if out.Duration != 54*time.Hour {
		t.Errorf("expected 54h, got %v", out.Duration)
	}

	// Start going unparsable flips back to unavailable.
	_, out = Recompute(def, st, change(def.StartEntityID, "2026-03-10T12:00:00Z", "unknown", now))
	if out.Available {
		t.Error("expected unavailable after start became unparsable")
	}
}

func TestOutputValueRendering(t *testing.T) {
	cases := []struct {
		out  Output
		want string
	}{
		{Output{Kind: OutDuration, Available: true, Duration: 90 * time.Second}, "90"},
		{Output{Kind: OutBool, Available: true, Bool: true}, "on"},
		{Output{Kind: OutBool, Available: true}, "off"},
		{Output{Kind: OutDays, Available: true, Days: 12}, "12"},
		{Output{Kind: OutDays}, "unavailable"},
	}
	for _, tc := range cases {
		if got := tc.out.Value(); got != tc.want {
			t.Errorf("%+v: expected %q, got %q", tc.out, tc.want, got)
		}
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name string
		def  Definition
	}{
		{"missing id", Definition{Type: TypeTimespan, EntityID: "e", TrackedState: "on"}},
		{"unknown type", Definition{ID: "x", Type: "bogus"}},
		{"timespan without entity", Definition{ID: "x", Type: TypeTimespan, TrackedState: "on"}},
		{"negative offset", Definition{ID: "x", Type: TypeOffset, EntityID: "e", TrackedState: "on", Offset: -time.Minute, Mode: ModePulse}},
		{"bad mode", Definition{ID: "x", Type: TypeOffset, EntityID: "e", TrackedState: "on", Mode: "sometimes"}},
		{"empty month set", Definition{ID: "x", Type: TypeMonth}},
		{"month out of range", Definition{ID: "x", Type: TypeMonth, Months: []time.Month{13}}},
		{"unknown holiday", Definition{ID: "x", Type: TypeHoliday, HolidayKey: "festivus"}},
		{"unknown hemisphere", Definition{ID: "x", Type: TypeSeason, Hemisphere: "equatorial"}},
		{"unknown target season", Definition{ID: "x", Type: TypeSeason, TargetSeason: "fall"}},
		{"bad annual range", Definition{ID: "x", Type: TypeBetweenDates, Range: DateRange{Kind: RangeAnnual, Start: "13-40", End: "02-01"}}},
		{"bad range kind", Definition{ID: "x", Type: TypeOutsideDates, Range: DateRange{Kind: "weekly", Start: "a", End: "b"}}},
		{"date range missing end", Definition{ID: "x", Type: TypeDateRange, StartEntityID: "e"}},
	}
	for _, tc := range cases {
		if err := tc.def.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestValidateAccepts(t *testing.T) {
	defs := []Definition{
		{ID: "a", Type: TypeTimespan, EntityID: "e", TrackedState: "on"},
		{ID: "b", Type: TypeOffset, EntityID: "e", TrackedState: "on", Offset: time.Minute, Mode: ModeLatch},
		{ID: "c", Type: TypeDatetimeOffset, EntityID: "e", Offset: -time.Hour},
		{ID: "d", Type: TypeDateRange, StartEntityID: "s", EndEntityID: "e"},
		{ID: "e", Type: TypeSeason, Hemisphere: "southern", TargetSeason: "autumn"},
		{ID: "f", Type: TypeMonth, Months: []time.Month{time.July}},
		{ID: "g", Type: TypeHoliday, HolidayKey: "thanksgiving"},
		{ID: "h", Type: TypeBetweenDates, Range: DateRange{Kind: RangeDaily, Start: "22:00", End: "06:00"}},
	}
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			t.Errorf("%s: unexpected error: %v", def.ID, err)
		}
	}
}
