package capsule

import "time"

// SampleSource is a fixed, read-only capsule set used for demos and when
// no database-backed gallery is configured.
type SampleSource struct {
	capsules []*Capsule
}

var _ Source = (*SampleSource)(nil)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewSampleSource returns the four sample capsules. Creators are display
// forms; the first capsule is reported as owned by whoever is connected.
func NewSampleSource() *SampleSource {
	return &SampleSource{capsules: []*Capsule{
		{
			ID:             "1",
			Title:          "Letter to my future self",
			Creator:        "0x1234...5678",
			CreatedAt:      day(2024, time.January, 15),
			UnlockAt:       day(2025, time.January, 15),
			ContentType:    ContentMessage,
			ReportedLocked: true,
			ReportedOwner:  true,
		},
		{
			ID:             "2",
			Title:          "Wedding memories",
			Creator:        "0xabcd...efgh",
			CreatedAt:      day(2024, time.February, 14),
			UnlockAt:       day(2025, time.February, 14),
			ContentType:    ContentPhoto,
			PreviewImage:   "/api/placeholder/300/200",
			ReportedLocked: true,
		},
		{
			ID:          "3",
			Title:       "Birthday wishes for mom",
			Creator:     "0x9876...1234",
			CreatedAt:   day(2024, time.March, 10),
			UnlockAt:    day(2024, time.December, 25),
			ContentType: ContentVideo,
		},
		{
			ID:             "4",
			Title:          "Time capsule for 2030",
			Creator:        "0x5678...9012",
			CreatedAt:      day(2024, time.January, 1),
			UnlockAt:       day(2030, time.January, 1),
			ContentType:    ContentMessage,
			ReportedLocked: true,
		},
	}}
}

// ListCapsules returns copies of the sample capsules in their fixed order.
func (s *SampleSource) ListCapsules() ([]*Capsule, error) {
	out := make([]*Capsule, len(s.capsules))
	for i, c := range s.capsules {
		cp := *c
		out[i] = &cp
	}
	return out, nil
}
