package capsule

import (
	"fmt"
	"strings"
	"time"
)

// Filter is a single-select gallery category.
type Filter string

const (
	FilterAll      Filter = "all"
	FilterLocked   Filter = "locked"
	FilterUnlocked Filter = "unlocked"
	FilterMine     Filter = "mine"
)

// Filters lists the categories in button order.
var Filters = []Filter{FilterAll, FilterLocked, FilterUnlocked, FilterMine}

// ParseFilter validates a filter name. An empty string means all.
func ParseFilter(s string) (Filter, error) {
	if s == "" {
		return FilterAll, nil
	}
	f := Filter(strings.ToLower(s))
	for _, known := range Filters {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown filter: %q", s)
}

// Label returns the button text for the filter.
func (f Filter) Label() string {
	switch f {
	case FilterAll:
		return "All Capsules"
	case FilterLocked:
		return "Locked"
	case FilterUnlocked:
		return "Unlocked"
	case FilterMine:
		return "My Capsules"
	}
	return string(f)
}

// Query is a gallery view request. Viewer is the connected account, if any.
type Query struct {
	Filter Filter
	Search string
	Viewer string
}

// Matches applies the filter and search predicate to one capsule.
// Lock status is derived from the unlock date at now.
func Matches(c *Capsule, q Query, now time.Time) bool {
	return matchesFilter(c, q.Filter, q.Viewer, now) && matchesSearch(c, q.Search)
}

func matchesFilter(c *Capsule, f Filter, viewer string, now time.Time) bool {
	switch f {
	case FilterAll, "":
		return true
	case FilterLocked:
		return !c.IsUnlocked(now)
	case FilterUnlocked:
		return c.IsUnlocked(now)
	case FilterMine:
		return c.IsOwner(viewer)
	}
	return false
}

func matchesSearch(c *Capsule, search string) bool {
	term := strings.ToLower(search)
	return strings.Contains(strings.ToLower(c.Title), term) ||
		strings.Contains(strings.ToLower(c.Creator), term)
}

// FilterCapsules returns the capsules matching q, preserving order.
func FilterCapsules(capsules []*Capsule, q Query, now time.Time) []*Capsule {
	out := make([]*Capsule, 0, len(capsules))
	for _, c := range capsules {
		if Matches(c, q, now) {
			out = append(out, c)
		}
	}
	return out
}

// Counts returns how many capsules fall in each filter, ignoring search.
func Counts(capsules []*Capsule, viewer string, now time.Time) map[Filter]int {
	counts := make(map[Filter]int, len(Filters))
	for _, f := range Filters {
		counts[f] = 0
	}
	for _, c := range capsules {
		for _, f := range Filters {
			if matchesFilter(c, f, viewer, now) {
				counts[f]++
			}
		}
	}
	return counts
}

// Unlocked is the badge text once the unlock time has passed.
const Unlocked = "Unlocked"

// TimeRemaining renders unlockAt - now as whole days, or whole hours when
// less than a day is left. Zero or negative durations render as Unlocked.
func TimeRemaining(unlockAt, now time.Time) string {
	diff := unlockAt.Sub(now)
	if diff <= 0 {
		return Unlocked
	}

	days := int(diff / (24 * time.Hour))
	if days > 0 {
		return plural(days, "day")
	}
	hours := int((diff % (24 * time.Hour)) / time.Hour)
	return plural(hours, "hour")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
