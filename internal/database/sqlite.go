package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"capsule-go/internal/capsule"
	"capsule-go/internal/database/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// timeLayout is how timestamps are stored. Fixed-width UTC so text order is time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteDatabase implements the capsule.Database interface using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteDatabase{db: db, path: path}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: every new in-memory connection is a fresh empty
	// database, and the foreign_keys PRAGMA is per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored time %q: %w", s, err)
	}
	return t.UTC(), nil
}

// Capsule operations

// CreateCapsule inserts the capsule row and its files in one transaction.
func (s *SQLiteDatabase) CreateCapsule(c *capsule.Capsule) error {
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO capsules (id, title, creator, created_at, unlock_at, content_type, message, preview_image)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Title, c.Creator, formatTime(c.CreatedAt), formatTime(c.UnlockAt),
		string(c.ContentType), c.Message, c.PreviewImage)
	if err != nil {
		return fmt.Errorf("inserting capsule: %w", err)
	}

	for i, f := range c.Files {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO capsule_files (capsule_id, position, checksum, name, media_type, size, encrypted)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.ID, i, f.Checksum, f.Name, f.MediaType, f.Size, f.Encrypted)
		if err != nil {
			return fmt.Errorf("inserting capsule file %s: %w", f.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

const capsuleColumns = `id, title, creator, created_at, unlock_at, content_type, message, preview_image`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCapsule(row rowScanner) (*capsule.Capsule, error) {
	var (
		c                   capsule.Capsule
		ct                  string
		createdAt, unlockAt string
	)
	if err := row.Scan(&c.ID, &c.Title, &c.Creator, &createdAt, &unlockAt, &ct, &c.Message, &c.PreviewImage); err != nil {
		return nil, err
	}
	c.ContentType = capsule.ContentType(ct)

	var err error
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UnlockAt, err = parseTime(unlockAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// FindCapsuleByID returns the capsule with its files, or nil if not found.
func (s *SQLiteDatabase) FindCapsuleByID(id string) (*capsule.Capsule, error) {
	row := s.db.QueryRow(`SELECT `+capsuleColumns+` FROM capsules WHERE id = ?`, id)
	c, err := scanCapsule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding capsule by id: %w", err)
	}

	if err := s.attachFiles([]*capsule.Capsule{c}, `WHERE capsule_id = ?`, id); err != nil {
		return nil, err
	}
	return c, nil
}

// ListCapsules returns every capsule, newest first.
func (s *SQLiteDatabase) ListCapsules() ([]*capsule.Capsule, error) {
	caps, err := s.queryCapsules(`ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing capsules: %w", err)
	}
	if err := s.attachFiles(caps, ``); err != nil {
		return nil, err
	}
	return caps, nil
}

// FindCapsulesByCreator returns a creator's capsules, newest first.
// Addresses compare case-insensitively.
func (s *SQLiteDatabase) FindCapsulesByCreator(creator string) ([]*capsule.Capsule, error) {
	caps, err := s.queryCapsules(`WHERE lower(creator) = lower(?) ORDER BY created_at DESC, id`, creator)
	if err != nil {
		return nil, fmt.Errorf("finding capsules by creator: %w", err)
	}
	if err := s.attachFiles(caps, `WHERE capsule_id IN (SELECT id FROM capsules WHERE lower(creator) = lower(?))`, creator); err != nil {
		return nil, err
	}
	return caps, nil
}

func (s *SQLiteDatabase) queryCapsules(clause string, args ...any) ([]*capsule.Capsule, error) {
	rows, err := s.db.Query(`SELECT `+capsuleColumns+` FROM capsules `+clause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var caps []*capsule.Capsule
	for rows.Next() {
		c, err := scanCapsule(rows)
		if err != nil {
			return nil, err
		}
		caps = append(caps, c)
	}
	return caps, rows.Err()
}

// attachFiles loads capsule_files rows matching where and appends them, in
// position order, to the capsules they belong to.
func (s *SQLiteDatabase) attachFiles(caps []*capsule.Capsule, where string, args ...any) error {
	if len(caps) == 0 {
		return nil
	}
	byID := make(map[string]*capsule.Capsule, len(caps))
	for _, c := range caps {
		byID[c.ID] = c
	}

	rows, err := s.db.Query(`
		SELECT capsule_id, checksum, name, media_type, size, encrypted
		FROM capsule_files `+where+`
		ORDER BY capsule_id, position`, args...)
	if err != nil {
		return fmt.Errorf("loading capsule files: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			capsuleID string
			f         capsule.StoredFile
		)
		if err := rows.Scan(&capsuleID, &f.Checksum, &f.Name, &f.MediaType, &f.Size, &f.Encrypted); err != nil {
			return fmt.Errorf("scanning capsule file: %w", err)
		}
		if c, ok := byID[capsuleID]; ok {
			c.Files = append(c.Files, f)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("loading capsule files: %w", err)
	}
	return nil
}

// Maintenance

func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// MigrateUp applies pending schema migrations.
func (s *SQLiteDatabase) MigrateUp() error {
	return migrations.MigrateUp(s.db)
}

// Schema returns the current CREATE statements.
func (s *SQLiteDatabase) Schema() (string, error) {
	return migrations.Schema(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	_, err := s.db.Exec("VACUUM INTO ?", destPath)
	if err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteDatabase implements capsule.Database interface
var _ capsule.Database = (*SQLiteDatabase)(nil)
