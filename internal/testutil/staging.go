package testutil

import (
	"capsule-go/internal/capsule"
	"capsule-go/internal/staging"
)

const (
	// DefaultStagingMaxSize is the default max size for test staging areas (10MB).
	DefaultStagingMaxSize = 10 * 1024 * 1024
)

// NewTestStagingArea creates a new in-memory staging area for testing.
func NewTestStagingArea() capsule.StagingArea {
	return staging.NewMemoryStagingArea(DefaultStagingMaxSize)
}

// NewTestStagingAreaWithSize creates a new in-memory staging area with a custom max size.
func NewTestStagingAreaWithSize(maxSize int64) capsule.StagingArea {
	return staging.NewMemoryStagingArea(maxSize)
}
