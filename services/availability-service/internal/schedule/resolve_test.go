package schedule

import (
	"testing"
	"time"

	"github.com/purelife/meetings/services/availability-service/internal/model"
)

// 2026-02-04 is a Wednesday.
var wednesday = time.Date(2026, 2, 4, 0, 0, 0, 0, time.UTC)

func recurringRule(weekday, startMin, endMin, slotMin int, meetingType string) model.AvailabilityRule {
	return model.AvailabilityRule{
		ID:          "r1",
		HostID:      "host-1",
		Kind:        model.RuleKindRecurring,
		Weekday:     weekday,
		StartMinute: startMin,
		EndMinute:   endMin,
		SlotMinutes: slotMin,
		MeetingType: meetingType,
		Active:      true,
	}
}

func TestResolveDay_RecurringMatchesWeekday(t *testing.T) {
	rules := []model.AvailabilityRule{recurringRule(3, 540, 720, 60, "")}

	day := ResolveDay(rules, nil, wednesday, "")
	if day.Blackout {
		t.Fatal("unexpected blackout")
	}
	if len(day.Windows) != 1 {
		t.Fatalf("expected 1 window, got %d", len(day.Windows))
	}
	if day.Windows[0].StartMinute != 540 || day.Windows[0].EndMinute != 720 {
		t.Fatalf("unexpected window: %+v", day.Windows[0])
	}

	// Thursday has no matching rule.
	day = ResolveDay(rules, nil, wednesday.AddDate(0, 0, 1), "")
	if len(day.Windows) != 0 {
		t.Fatalf("expected no windows on Thursday, got %d", len(day.Windows))
	}
}

func TestResolveDay_ExceptionSuppressesEverything(t *testing.T) {
	rules := []model.AvailabilityRule{recurringRule(3, 540, 720, 60, "coaching")}
	exceptions := []model.DateException{{
		HostID:      "host-1",
		Date:        wednesday,
		Reason:      "Urlop",
		MeetingType: "consultation", // different tag, must still suppress
	}}

	day := ResolveDay(rules, exceptions, wednesday, "coaching")
	if !day.Blackout {
		t.Fatal("expected blackout")
	}
	if len(day.Windows) != 0 {
		t.Fatalf("blackout day must yield no windows, got %d", len(day.Windows))
	}
}

func TestResolveDay_InactiveRulesIgnored(t *testing.T) {
	r := recurringRule(3, 540, 720, 60, "")
	r.Active = false

	day := ResolveDay([]model.AvailabilityRule{r}, nil, wednesday, "")
	if len(day.Windows) != 0 {
		t.Fatalf("inactive rule must not contribute, got %d windows", len(day.Windows))
	}
}

func TestResolveDay_MeetingTypeFilter(t *testing.T) {
	rules := []model.AvailabilityRule{
		recurringRule(3, 540, 660, 60, "coaching"),
		recurringRule(3, 780, 900, 30, "consultation"),
		recurringRule(3, 960, 1020, 30, ""), // untagged, applies to all
	}

	day := ResolveDay(rules, nil, wednesday, "coaching")
	if len(day.Windows) != 2 {
		t.Fatalf("expected coaching + untagged windows, got %d", len(day.Windows))
	}
	if day.Windows[0].StartMinute != 540 || day.Windows[1].StartMinute != 960 {
		t.Fatalf("unexpected windows: %+v", day.Windows)
	}
}

func TestResolveDay_DateRuleAndRecurringUnion(t *testing.T) {
	dateRule := model.AvailabilityRule{
		ID:          "r2",
		HostID:      "host-1",
		Kind:        model.RuleKindDate,
		Date:        wednesday,
		StartMinute: 1020,
		EndMinute:   1140,
		SlotMinutes: 60,
		Active:      true,
	}
	rules := []model.AvailabilityRule{recurringRule(3, 540, 720, 60, ""), dateRule}

	day := ResolveDay(rules, nil, wednesday, "")
	if len(day.Windows) != 2 {
		t.Fatalf("expected both rule families to contribute, got %d", len(day.Windows))
	}
	if day.Windows[0].StartMinute != 540 || day.Windows[1].StartMinute != 1020 {
		t.Fatalf("windows must be sorted by start: %+v", day.Windows)
	}
}

func TestValidateRule(t *testing.T) {
	base := recurringRule(3, 540, 720, 60, "")

	cases := []struct {
		name   string
		mutate func(*model.AvailabilityRule)
		ok     bool
	}{
		{"valid", func(*model.AvailabilityRule) {}, true},
		{"end before start", func(r *model.AvailabilityRule) { r.StartMinute = 720; r.EndMinute = 540 }, false},
		{"equal start end", func(r *model.AvailabilityRule) { r.EndMinute = r.StartMinute }, false},
		{"weekday out of range", func(r *model.AvailabilityRule) { r.Weekday = 7 }, false},
		{"zero duration", func(r *model.AvailabilityRule) { r.SlotMinutes = 0 }, false},
		{"duration exceeds window", func(r *model.AvailabilityRule) { r.SlotMinutes = 240 }, false},
		{"end past midnight", func(r *model.AvailabilityRule) { r.EndMinute = 1441 }, false},
		{"unknown kind", func(r *model.AvailabilityRule) { r.Kind = "monthly" }, false},
		{"date rule without date", func(r *model.AvailabilityRule) { r.Kind = model.RuleKindDate }, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := base
			tc.mutate(&r)
			err := ValidateRule(r)
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
