package slots

import "testing"

func TestGenerate_EvenDivision(t *testing.T) {
	// 09:00-12:00, 60 minute slots -> 09:00, 10:00, 11:00.
	got := Generate(540, 720, 60)
	want := []int{540, 600, 660}
	if len(got) != len(want) {
		t.Fatalf("expected %d slots, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("slot %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestGenerate_DropsPartialTrailingSlot(t *testing.T) {
	// 09:00-10:45, 30 minute slots: 10:30-11:00 does not fit.
	got := Generate(540, 645, 30)
	if len(got) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(got))
	}
	if got[len(got)-1] != 600 {
		t.Fatalf("last slot must be 10:00 (600), got %d", got[len(got)-1])
	}
}

func TestGenerate_CountLaw(t *testing.T) {
	cases := []struct {
		start, end, dur int
	}{
		{540, 720, 60},
		{540, 720, 45},
		{540, 720, 90},
		{0, 1440, 30},
		{600, 630, 30},
		{600, 629, 30},
	}
	for _, tc := range cases {
		got := Generate(tc.start, tc.end, tc.dur)
		want := (tc.end - tc.start) / tc.dur
		if len(got) != want {
			t.Fatalf("Generate(%d,%d,%d): expected %d slots, got %d", tc.start, tc.end, tc.dur, want, len(got))
		}
		for _, s := range got {
			if s < tc.start || s+tc.dur > tc.end {
				t.Fatalf("Generate(%d,%d,%d): slot %d escapes the window", tc.start, tc.end, tc.dur, s)
			}
		}
	}
}

func TestGenerate_DegenerateInputs(t *testing.T) {
	if got := Generate(720, 540, 60); got != nil {
		t.Fatalf("inverted range must yield nothing, got %v", got)
	}
	if got := Generate(540, 540, 60); got != nil {
		t.Fatalf("empty range must yield nothing, got %v", got)
	}
	if got := Generate(540, 720, 0); got != nil {
		t.Fatalf("zero duration must yield nothing, got %v", got)
	}
}

func TestExpand_MergesSortsAndDeduplicates(t *testing.T) {
	windows := []Window{
		{StartMinute: 780, EndMinute: 900, SlotMinutes: 60},  // 13:00, 14:00
		{StartMinute: 540, EndMinute: 660, SlotMinutes: 60},  // 09:00, 10:00
		{StartMinute: 600, EndMinute: 720, SlotMinutes: 60},  // 10:00 (dup), 11:00
	}

	got := Expand(windows)
	want := []int{540, 600, 660, 780, 840}
	if len(got) != len(want) {
		t.Fatalf("expected %d candidates, got %d (%v)", len(want), len(got), got)
	}
	prev := -1
	for i, c := range got {
		if c.StartMinute != want[i] {
			t.Fatalf("candidate %d: expected %d, got %d", i, want[i], c.StartMinute)
		}
		if c.StartMinute <= prev {
			t.Fatalf("candidates must be strictly increasing, got %v", got)
		}
		prev = c.StartMinute
	}
}

func TestExpand_KeepsDurationPerWindow(t *testing.T) {
	windows := []Window{
		{StartMinute: 540, EndMinute: 600, SlotMinutes: 30},
		{StartMinute: 600, EndMinute: 690, SlotMinutes: 45},
	}
	got := Expand(windows)
	if len(got) != 4 {
		t.Fatalf("expected 4 candidates, got %d", len(got))
	}
	if got[0].DurationMinutes != 30 || got[2].DurationMinutes != 45 {
		t.Fatalf("durations must follow the producing window: %+v", got)
	}
}
