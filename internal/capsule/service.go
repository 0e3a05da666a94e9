package capsule

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

var (
	// ErrLocked is returned when capsule content is requested before its unlock time.
	ErrLocked = errors.New("capsule is still locked")
	// ErrNotFound is returned for unknown capsules and files.
	ErrNotFound = errors.New("not found")
	// ErrNoDecryptionKey is returned when an encrypted file is read before Unlock.
	ErrNoDecryptionKey = errors.New("encryption key is locked")
	// ErrNoAccount is returned when a draft operation has no connected account.
	ErrNoAccount = errors.New("no account connected")
)

// Upload is a file selected in the wizard, before staging.
type Upload struct {
	Name      string
	MediaType string
	Content   io.Reader
}

// GalleryView is the result of a gallery query.
type GalleryView struct {
	Capsules []*Capsule
	Counts   map[Filter]int
	Now      time.Time
}

type draftSession struct {
	mu     sync.Mutex
	wizard *Wizard
}

// CapsuleService is the orchestration layer that coordinates drafts, the
// staging area, the vault and the database for the web and CLI front ends.
type CapsuleService struct {
	database  Database
	source    Source
	staging   StagingArea
	vault     Vault
	encryptor Encryptor
	logger    Logger
	clock     Clock
	idgen     IDGenerator

	mu       sync.Mutex
	drafts   map[string]*draftSession
	decrypt  DecryptionContext
	submitMu sync.Mutex
}

// NewCapsuleService creates a new CapsuleService with the provided dependencies.
// source feeds the gallery; it is usually the database itself.
func NewCapsuleService(database Database, source Source, staging StagingArea, vault Vault, encryptor Encryptor, logger Logger, clock Clock, idgen IDGenerator) *CapsuleService {
	return &CapsuleService{
		database:  database,
		source:    source,
		staging:   staging,
		vault:     vault,
		encryptor: encryptor,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
		drafts:    make(map[string]*draftSession),
	}
}

// Now returns the service clock's current time.
func (s *CapsuleService) Now() time.Time {
	return s.clock.Now()
}

// Unlock decrypts the private key so encrypted files can be served.
// It is a no-op when encryption is disabled.
func (s *CapsuleService) Unlock(passphrase string) error {
	if !s.encryptor.Enabled() {
		return nil
	}
	dc, err := s.encryptor.Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking encryption key: %w", err)
	}
	s.mu.Lock()
	s.decrypt = dc
	s.mu.Unlock()
	return nil
}

func sessionKey(account string) string {
	return strings.ToLower(account)
}

func (s *CapsuleService) session(account string) (*draftSession, error) {
	if account == "" {
		return nil, ErrNoAccount
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionKey(account)
	ds, ok := s.drafts[key]
	if !ok {
		ds = &draftSession{wizard: NewWizard(s.clock)}
		s.drafts[key] = ds
	}
	return ds, nil
}

// Wizard runs fn against the account's draft wizard, creating one on first use.
// Calls for the same account are serialised.
func (s *CapsuleService) Wizard(account string, fn func(w *Wizard) error) error {
	ds, err := s.session(account)
	if err != nil {
		return err
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return fn(ds.wizard)
}

// DiscardDraft drops the account's draft and releases its staged uploads.
func (s *CapsuleService) DiscardDraft(account string) error {
	s.mu.Lock()
	key := sessionKey(account)
	ds, ok := s.drafts[key]
	delete(s.drafts, key)
	s.mu.Unlock()
	if !ok {
		return nil
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()
	s.releaseFiles(ds.wizard.Draft().Files)
	s.logger.Debug("draft discarded", "account", account)
	return nil
}

// StageUploads stages the uploads and makes them the draft's file selection,
// replacing (and releasing) whatever was selected before. On any error the
// draft is left unchanged.
func (s *CapsuleService) StageUploads(account string, uploads []Upload) error {
	ds, err := s.session(account)
	if err != nil {
		return err
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()

	w := ds.wizard
	if w.Step() != StepEnterContent {
		return ErrWrongStep
	}

	files := make([]DraftFile, 0, len(uploads))
	for _, u := range uploads {
		checksum, size, err := s.staging.Stage(u.Content)
		if err != nil {
			s.releaseFiles(files)
			return fmt.Errorf("staging %s: %w", u.Name, err)
		}
		files = append(files, DraftFile{
			Name:      u.Name,
			MediaType: u.MediaType,
			Checksum:  checksum,
			Size:      size,
		})
	}

	replaced, err := w.SetFiles(files)
	if err != nil {
		s.releaseFiles(files)
		return err
	}
	s.releaseFiles(replaced)

	s.logger.Debug("uploads staged", "account", account, "count", len(files))
	return nil
}

func (s *CapsuleService) releaseFiles(files []DraftFile) {
	for _, f := range files {
		if err := s.staging.Release(f.Checksum); err != nil {
			s.logger.Warn("releasing staged upload", "checksum", f.Checksum, "error", err)
		}
	}
}

// CreateCapsule submits the account's draft. Staged files are moved into the
// vault (encrypted when configured), then the capsule and its files are
// recorded in one database transaction. On success the draft is reset.
//
// If any step fails, blobs this call added to the vault are removed again and
// the draft is left intact for retry. Blobs already present are shared with
// earlier capsules and never removed.
func (s *CapsuleService) CreateCapsule(account string) (*Capsule, error) {
	ds, err := s.session(account)
	if err != nil {
		return nil, err
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()

	w := ds.wizard
	if w.Step() != StepSetUnlock {
		return nil, ErrWrongStep
	}
	if !w.CanCreate() {
		return nil, ErrIncomplete
	}
	draft := w.Draft()

	// Submissions are serialised so one capsule's cleanup cannot remove a
	// blob another capsule just started sharing.
	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	var added []string
	stored := make([]StoredFile, 0, len(draft.Files))
	for _, f := range draft.Files {
		sf, key, uploaded, err := s.storeFile(f)
		if err != nil {
			s.removeBlobs(added)
			return nil, err
		}
		if uploaded {
			added = append(added, key)
		}
		stored = append(stored, sf)
	}

	c := &Capsule{
		ID:          s.idgen.New(),
		Title:       draft.Title,
		Creator:     account,
		CreatedAt:   s.clock.Now(),
		UnlockAt:    draft.UnlockDate,
		ContentType: draft.ContentType,
		Message:     draft.Message,
		Files:       stored,
	}
	if err := s.database.CreateCapsule(c); err != nil {
		s.removeBlobs(added)
		return nil, fmt.Errorf("recording capsule: %w", err)
	}

	s.releaseFiles(draft.Files)
	ds.wizard = NewWizard(s.clock)

	s.logger.Info("capsule created", "id", c.ID, "type", string(c.ContentType), "unlock_at", c.UnlockAt.Format(DateLayout), "files", len(stored), "new_blobs", len(added))
	return c, nil
}

func (s *CapsuleService) removeBlobs(keys []string) {
	for _, key := range keys {
		if err := s.vault.DeleteContent(key); err != nil {
			s.logger.Warn("removing vault blob", "key", key, "error", err)
		}
	}
}

// storeFile copies one staged upload into the vault under its blob key and
// reports whether it had to upload. Identical uploads share a blob.
func (s *CapsuleService) storeFile(f DraftFile) (StoredFile, string, bool, error) {
	enc := s.encryptor.Enabled()
	key := BlobKey(f.Checksum, enc)
	sf := StoredFile{
		Checksum:  f.Checksum,
		Name:      f.Name,
		MediaType: f.MediaType,
		Size:      f.Size,
		Encrypted: enc,
	}

	exists, err := s.vault.HasContent(key)
	if err != nil {
		return StoredFile{}, "", false, fmt.Errorf("checking vault for %s: %w", f.Name, err)
	}
	if exists {
		s.logger.Debug("vault blob reused", "key", key)
		return sf, key, false, nil
	}

	rc, err := s.staging.Open(f.Checksum)
	if err != nil {
		return StoredFile{}, "", false, fmt.Errorf("opening staged %s: %w", f.Name, err)
	}
	defer rc.Close()

	if !enc {
		if err := s.vault.PutContent(key, rc, f.Size); err != nil {
			return StoredFile{}, "", false, fmt.Errorf("uploading %s to vault: %w", f.Name, err)
		}
		return sf, key, true, nil
	}

	// staged content is size-capped, so buffering the ciphertext is bounded
	var buf bytes.Buffer
	if err := s.encryptor.Encrypt(rc, &buf); err != nil {
		return StoredFile{}, "", false, fmt.Errorf("encrypting %s: %w", f.Name, err)
	}
	if err := s.vault.PutContent(key, &buf, int64(buf.Len())); err != nil {
		return StoredFile{}, "", false, fmt.Errorf("uploading %s to vault: %w", f.Name, err)
	}
	return sf, key, true, nil
}

// Gallery lists capsules from the source and applies q at the current time.
func (s *CapsuleService) Gallery(q Query) (*GalleryView, error) {
	all, err := s.source.ListCapsules()
	if err != nil {
		return nil, fmt.Errorf("listing capsules: %w", err)
	}
	now := s.clock.Now()
	return &GalleryView{
		Capsules: FilterCapsules(all, q, now),
		Counts:   Counts(all, q.Viewer, now),
		Now:      now,
	}, nil
}

// GetCapsule returns a capsule by id. Capsules only known to a non-database
// source are found by scanning it.
func (s *CapsuleService) GetCapsule(id string) (*Capsule, error) {
	c, err := s.database.FindCapsuleByID(id)
	if err != nil {
		return nil, fmt.Errorf("finding capsule: %w", err)
	}
	if c != nil {
		return c, nil
	}
	if s.source == Source(s.database) {
		return nil, ErrNotFound
	}

	all, err := s.source.ListCapsules()
	if err != nil {
		return nil, fmt.Errorf("listing capsules: %w", err)
	}
	for _, c := range all {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, ErrNotFound
}

// CapsulesByCreator returns every capsule created by an address.
func (s *CapsuleService) CapsulesByCreator(creator string) ([]*Capsule, error) {
	caps, err := s.database.FindCapsulesByCreator(creator)
	if err != nil {
		return nil, fmt.Errorf("finding capsules by creator: %w", err)
	}
	return caps, nil
}

// OpenFile returns a capsule attachment's plaintext. It fails with ErrLocked
// until the capsule's unlock time has passed.
func (s *CapsuleService) OpenFile(id, checksum string) (*StoredFile, io.ReadCloser, error) {
	c, err := s.GetCapsule(id)
	if err != nil {
		return nil, nil, err
	}
	if !c.IsUnlocked(s.clock.Now()) {
		return nil, nil, ErrLocked
	}
	f := c.FindFile(checksum)
	if f == nil {
		return nil, nil, ErrNotFound
	}

	var stored bytes.Buffer
	if err := s.vault.GetContent(BlobKey(f.Checksum, f.Encrypted), &stored); err != nil {
		return nil, nil, fmt.Errorf("reading %s from vault: %w", f.Name, err)
	}
	if !f.Encrypted {
		return f, io.NopCloser(&stored), nil
	}

	s.mu.Lock()
	dc := s.decrypt
	s.mu.Unlock()
	if dc == nil {
		return nil, nil, ErrNoDecryptionKey
	}
	var plain bytes.Buffer
	if err := dc.Decrypt(&stored, &plain); err != nil {
		return nil, nil, fmt.Errorf("decrypting %s: %w", f.Name, err)
	}
	return f, io.NopCloser(&plain), nil
}
