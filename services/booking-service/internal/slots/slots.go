package slots

import "sort"

// Window is one bookable range on a day, in host-local minutes from midnight.
type Window struct {
	StartMinute int
	EndMinute   int
	SlotMinutes int
}

// Candidate is a slot start produced from a window, before any conflict
// filtering. Candidates are ephemeral and never persisted.
type Candidate struct {
	StartMinute     int
	DurationMinutes int
}

// Generate expands one window into the slot grid t = start + k*duration with
// t + duration <= end. A trailing partial interval is dropped, so the result
// always has exactly (end-start)/duration entries (integer division).
func Generate(startMinute, endMinute, durationMinutes int) []int {
	if durationMinutes <= 0 || endMinute <= startMinute {
		return nil
	}
	n := (endMinute - startMinute) / durationMinutes
	if n == 0 {
		return nil
	}
	out := make([]int, 0, n)
	for t := startMinute; t+durationMinutes <= endMinute; t += durationMinutes {
		out = append(out, t)
	}
	return out
}

// Expand generates candidates for every window and merges them: the union is
// de-duplicated by start minute and ordered numerically by minute-of-day.
// When two windows yield the same start, the earlier window in sorted order
// wins, so overlapping rules with different durations stay deterministic.
func Expand(windows []Window) []Candidate {
	var all []Candidate
	for _, w := range windows {
		for _, start := range Generate(w.StartMinute, w.EndMinute, w.SlotMinutes) {
			all = append(all, Candidate{StartMinute: start, DurationMinutes: w.SlotMinutes})
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].StartMinute < all[j].StartMinute
	})

	out := all[:0]
	lastStart := -1
	for _, c := range all {
		if c.StartMinute == lastStart {
			continue
		}
		out = append(out, c)
		lastStart = c.StartMinute
	}
	return out
}
