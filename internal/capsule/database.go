package capsule

// Source supplies the capsule records the gallery renders.
// Implementations may be the capsule database or a fixed sample set.
type Source interface {
	// ListCapsules returns every capsule, newest first.
	ListCapsules() ([]*Capsule, error)
}

// Database provides an interface for capsule metadata storage.
// All methods should be implemented with appropriate transaction handling.
type Database interface {
	Source

	// CreateCapsule records a capsule and its stored files atomically.
	CreateCapsule(c *Capsule) error

	// FindCapsuleByID returns the capsule with its files, or nil if not found.
	FindCapsuleByID(id string) (*Capsule, error)

	// FindCapsulesByCreator returns all capsules created by an address, newest first.
	FindCapsulesByCreator(creator string) ([]*Capsule, error)

	// Close closes the database connection.
	Close() error
}
