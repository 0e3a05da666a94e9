package capsule

import (
	"fmt"
	"strings"
	"time"
)

// ContentType is the kind of payload a capsule holds.
type ContentType string

const (
	ContentMessage ContentType = "message"
	ContentPhoto   ContentType = "photo"
	ContentVideo   ContentType = "video"
)

// ContentTypes lists the selectable content types in display order.
var ContentTypes = []ContentType{ContentMessage, ContentPhoto, ContentVideo}

// ParseContentType validates a raw content type string.
func ParseContentType(s string) (ContentType, error) {
	ct := ContentType(strings.ToLower(strings.TrimSpace(s)))
	if !ct.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidContentType, s)
	}
	return ct, nil
}

// Valid reports whether ct is one of the known content types.
func (ct ContentType) Valid() bool {
	switch ct {
	case ContentMessage, ContentPhoto, ContentVideo:
		return true
	}
	return false
}

// Label returns the human-readable name shown in the wizard and preview.
func (ct ContentType) Label() string {
	switch ct {
	case ContentMessage:
		return "Personal Message"
	case ContentPhoto:
		return "Photo Memory"
	case ContentVideo:
		return "Video Message"
	}
	return ""
}

// Description returns the one-line blurb shown on the type selection card.
func (ct ContentType) Description() string {
	switch ct {
	case ContentMessage:
		return "Write a heartfelt message for the future"
	case ContentPhoto:
		return "Upload precious photos to preserve"
	case ContentVideo:
		return "Record a video for your future self"
	}
	return ""
}

// AcceptsFiles reports whether the type takes uploaded files.
func (ct ContentType) AcceptsFiles() bool {
	return ct == ContentPhoto || ct == ContentVideo
}

// AcceptsMultipleFiles reports whether more than one file may be selected.
func (ct ContentType) AcceptsMultipleFiles() bool {
	return ct == ContentPhoto
}

// MediaPrefix is the MIME family the file picker filters on ("image/" or "video/").
func (ct ContentType) MediaPrefix() string {
	switch ct {
	case ContentPhoto:
		return "image/"
	case ContentVideo:
		return "video/"
	}
	return ""
}

// Capsule is a piece of content plus a future reveal date and ownership metadata.
//
// Lock status is never stored: it is derived from UnlockAt and the current time.
// ReportedLocked holds whatever flag an external data source supplied and is
// not consulted by filtering or rendering. ReportedOwner is a source's claim
// that the connected viewer owns the capsule; it only counts when Creator is
// not a full address that can be compared directly.
type Capsule struct {
	ID             string
	Title          string
	Creator        string // wallet address of the creator
	CreatedAt      time.Time
	UnlockAt       time.Time
	ContentType    ContentType
	Message        string
	PreviewImage   string // optional; only shown once unlocked
	Files          []StoredFile
	ReportedLocked bool
	ReportedOwner  bool
}

// StoredFile is a capsule attachment held in the vault, addressed by checksum.
type StoredFile struct {
	Checksum  string // SHA-256 of the plaintext; also the vault key
	Name      string
	MediaType string
	Size      int64 // plaintext size
	Encrypted bool
}

// IsUnlocked reports whether the unlock time has passed at now.
func (c *Capsule) IsUnlocked(now time.Time) bool {
	return !c.UnlockAt.After(now)
}

// IsOwner reports whether viewer created the capsule. An empty viewer owns nothing.
func (c *Capsule) IsOwner(viewer string) bool {
	if viewer == "" {
		return false
	}
	if c.ReportedOwner && !isFullAddress(c.Creator) {
		return true
	}
	return strings.EqualFold(c.Creator, viewer)
}

// isFullAddress reports whether s is 0x followed by 40 hex digits, as
// opposed to a shortened display form like "0x1234...5678".
func isFullAddress(s string) bool {
	if len(s) != 42 || (s[:2] != "0x" && s[:2] != "0X") {
		return false
	}
	for _, r := range s[2:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// TimeRemaining renders the badge text for the capsule at now.
func (c *Capsule) TimeRemaining(now time.Time) string {
	return TimeRemaining(c.UnlockAt, now)
}

// FindFile returns the attachment with the given checksum, or nil.
func (c *Capsule) FindFile(checksum string) *StoredFile {
	for i := range c.Files {
		if c.Files[i].Checksum == checksum {
			return &c.Files[i]
		}
	}
	return nil
}
