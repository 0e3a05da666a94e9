package capsule_test

import (
	"testing"
	"time"

	"capsule-go/internal/capsule"
)

func TestTimeRemaining(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		unlockAt time.Time
		want     string
	}{
		{"one week ahead", now.AddDate(0, 0, 7), "7 days"},
		{"exactly one day", now.Add(24 * time.Hour), "1 day"},
		{"partial days round down", now.Add(50 * time.Hour), "2 days"},
		{"under a day shows hours", now.Add(5*time.Hour + 59*time.Minute), "5 hours"},
		{"one hour", now.Add(time.Hour), "1 hour"},
		{"under an hour", now.Add(30 * time.Minute), "0 hours"},
		{"exactly now", now, "Unlocked"},
		{"in the past", now.AddDate(-1, 0, 0), "Unlocked"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := capsule.TimeRemaining(tt.unlockAt, now); got != tt.want {
				t.Errorf("TimeRemaining() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		in      string
		want    capsule.Filter
		wantErr bool
	}{
		{"", capsule.FilterAll, false},
		{"all", capsule.FilterAll, false},
		{"Locked", capsule.FilterLocked, false},
		{"unlocked", capsule.FilterUnlocked, false},
		{"mine", capsule.FilterMine, false},
		{"expired", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := capsule.ParseFilter(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFilter(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFilter(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func galleryFixture() []*capsule.Capsule {
	return []*capsule.Capsule{
		{ID: "a", Title: "Letter to my future self", Creator: "0xAAAA", UnlockAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "b", Title: "Wedding memories", Creator: "0xBBBB", UnlockAt: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "c", Title: "Birthday wishes", Creator: "0xaaaa", UnlockAt: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), ReportedLocked: true},
	}
}

func ids(caps []*capsule.Capsule) []string {
	out := make([]string, len(caps))
	for i, c := range caps {
		out[i] = c.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFilterCapsules(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		q    capsule.Query
		want []string
	}{
		{"all", capsule.Query{Filter: capsule.FilterAll}, []string{"a", "b", "c"}},
		{"empty filter means all", capsule.Query{}, []string{"a", "b", "c"}},
		{"locked is derived from unlock date", capsule.Query{Filter: capsule.FilterLocked}, []string{"a"}},
		{"unlocked ignores reported flag", capsule.Query{Filter: capsule.FilterUnlocked}, []string{"b", "c"}},
		{"mine matches case-insensitively", capsule.Query{Filter: capsule.FilterMine, Viewer: "0xaAaA"}, []string{"a", "c"}},
		{"mine without viewer is empty", capsule.Query{Filter: capsule.FilterMine}, []string{}},
		{"search title", capsule.Query{Search: "WEDDING"}, []string{"b"}},
		{"search creator", capsule.Query{Search: "0xbb"}, []string{"b"}},
		{"search and filter combine", capsule.Query{Filter: capsule.FilterUnlocked, Search: "birthday"}, []string{"c"}},
		{"no matches", capsule.Query{Search: "nothing here"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(capsule.FilterCapsules(galleryFixture(), tt.q, now))
			if !equalIDs(got, tt.want) {
				t.Errorf("FilterCapsules() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterCapsules_LockFlipsWithTime(t *testing.T) {
	c := &capsule.Capsule{ID: "x", UnlockAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	q := capsule.Query{Filter: capsule.FilterLocked}

	before := time.Date(2024, 5, 31, 23, 59, 0, 0, time.UTC)
	if got := capsule.FilterCapsules([]*capsule.Capsule{c}, q, before); len(got) != 1 {
		t.Error("capsule should be locked one minute before unlock")
	}
	if got := capsule.FilterCapsules([]*capsule.Capsule{c}, q, c.UnlockAt); len(got) != 0 {
		t.Error("capsule should be unlocked at its unlock time")
	}
}

func TestCounts(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	counts := capsule.Counts(galleryFixture(), "0xAAAA", now)

	want := map[capsule.Filter]int{
		capsule.FilterAll:      3,
		capsule.FilterLocked:   1,
		capsule.FilterUnlocked: 2,
		capsule.FilterMine:     2,
	}
	for f, n := range want {
		if counts[f] != n {
			t.Errorf("Counts()[%s] = %d, want %d", f, counts[f], n)
		}
	}
}

func TestSampleSource(t *testing.T) {
	src := capsule.NewSampleSource()
	caps, err := src.ListCapsules()
	if err != nil {
		t.Fatalf("ListCapsules() error = %v", err)
	}
	if got := ids(caps); !equalIDs(got, []string{"1", "2", "3", "4"}) {
		t.Fatalf("ids = %v, want [1 2 3 4]", got)
	}

	// Every sample date is still ahead on 2024-06-01.
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	locked := ids(capsule.FilterCapsules(caps, capsule.Query{Filter: capsule.FilterLocked}, now))
	if !equalIDs(locked, []string{"1", "2", "3", "4"}) {
		t.Errorf("locked on 2024-06-01 = %v", locked)
	}

	later := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	unlocked := ids(capsule.FilterCapsules(caps, capsule.Query{Filter: capsule.FilterUnlocked}, later))
	if !equalIDs(unlocked, []string{"1", "2", "3"}) {
		t.Errorf("unlocked on 2025-06-01 = %v, want [1 2 3]", unlocked)
	}

	// The first sample is reported as owned by any connected account.
	viewer := "0x52908400098527886E0F7030069857D2E4169EE7"
	mine := capsule.FilterCapsules(caps, capsule.Query{Filter: capsule.FilterMine, Viewer: viewer}, now)
	if len(mine) != 1 || mine[0].Title != "Letter to my future self" {
		t.Errorf("mine = %v, want [1]", ids(mine))
	}
	if n := capsule.Counts(caps, viewer, now)[capsule.FilterMine]; n != 1 {
		t.Errorf("Counts()[mine] = %d, want 1", n)
	}

	// Returned capsules are copies.
	caps[0].Title = "changed"
	again, _ := src.ListCapsules()
	if again[0].Title == "changed" {
		t.Error("ListCapsules() exposed internal state")
	}
}

func TestCapsule_IsOwner(t *testing.T) {
	const (
		creator = "0x52908400098527886E0F7030069857D2E4169EE7"
		other   = "0xde709f2102306220921060314715629080e2fb77"
	)

	tests := []struct {
		name   string
		c      capsule.Capsule
		viewer string
		want   bool
	}{
		{"creator", capsule.Capsule{Creator: creator}, creator, true},
		{"creator in lower case", capsule.Capsule{Creator: creator}, "0x52908400098527886e0f7030069857d2e4169ee7", true},
		{"someone else", capsule.Capsule{Creator: creator}, other, false},
		{"no viewer", capsule.Capsule{Creator: creator}, "", false},
		{"reported owner with display creator", capsule.Capsule{Creator: "0x1234...5678", ReportedOwner: true}, other, true},
		{"reported owner needs a viewer", capsule.Capsule{Creator: "0x1234...5678", ReportedOwner: true}, "", false},
		{"full address beats reported owner", capsule.Capsule{Creator: creator, ReportedOwner: true}, other, false},
		{"display creator without report", capsule.Capsule{Creator: "0x1234...5678"}, other, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.IsOwner(tt.viewer); got != tt.want {
				t.Errorf("IsOwner(%q) = %v, want %v", tt.viewer, got, tt.want)
			}
		})
	}
}
