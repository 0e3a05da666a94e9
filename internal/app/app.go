package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"capsule-go/internal/capsule"
	"capsule-go/internal/config"
	"capsule-go/internal/database"
	"capsule-go/internal/encryption"
	"capsule-go/internal/fs"
	"capsule-go/internal/staging"
	"capsule-go/internal/vault"
	"capsule-go/internal/wallet"
	"capsule-go/internal/web"
)

// CapsuleApp is the application layer between the CLI and CapsuleService.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw CLI input, and manages the DB lifecycle on Close.
type CapsuleApp struct {
	cfg       *config.Config
	db        *database.SQLiteDatabase
	vault     capsule.Vault
	staging   capsule.StagingArea
	fsmgr     *fs.OSFilesystemManager
	encryptor capsule.Encryptor
	service   *capsule.CapsuleService
	logger    capsule.Logger
	op        *Operation
	logFile   *os.File
}

// NewCapsuleApp creates a fully wired CapsuleApp from the given config.
// operation identifies the CLI command being run (e.g. "Serve", "CreateCapsule").
// The caller must call Close when done.
func NewCapsuleApp(cfg *config.Config, operation string) (*CapsuleApp, error) {
	if len(cfg.Vaults) == 0 {
		return nil, fmt.Errorf("no vaults configured")
	}
	v, err := vault.NewVaultFromConfig(cfg.Vaults[0])
	if err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}
	if err := v.ValidateSetup(); err != nil {
		return nil, fmt.Errorf("validating vault: %w", err)
	}

	sa, err := staging.NewStagingAreaFromConfig(cfg.Staging)
	if err != nil {
		return nil, fmt.Errorf("creating staging area: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	if enc.Enabled() && !enc.IsConfigured() {
		return nil, fmt.Errorf("encryption keys missing: run `capsule keys init`")
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.InstanceID)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	var source capsule.Source = db
	switch cfg.Gallery.Source {
	case "database", "":
	case "sample":
		source = capsule.NewSampleSource()
	default:
		db.Close()
		return nil, fmt.Errorf("unknown gallery source: %s", cfg.Gallery.Source)
	}

	op := NewOperation(operation, "", time.Now())
	logger, logFile, err := newLogger(cfg.LogDir, op.ID, cfg.LogLevel)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	adapter := &slogAdapter{l: logger}

	svc := capsule.NewCapsuleService(db, source, sa, v, enc, adapter, capsule.RealClock{}, capsule.UUIDGenerator{})

	return &CapsuleApp{
		cfg:       cfg,
		db:        db,
		vault:     v,
		staging:   sa,
		fsmgr:     fs.NewOSFilesystemManager(),
		encryptor: enc,
		service:   svc,
		logger:    adapter,
		op:        op,
		logFile:   logFile,
	}, nil
}

// Service exposes the wired service.
func (a *CapsuleApp) Service() *capsule.CapsuleService {
	return a.service
}

// EncryptionEnabled reports whether stored files are encrypted.
func (a *CapsuleApp) EncryptionEnabled() bool {
	return a.encryptor.Enabled()
}

// Unlock unlocks the private key so encrypted files can be served.
func (a *CapsuleApp) Unlock(passphrase string) error {
	return a.op.Fail(a.service.Unlock(passphrase))
}

// sessionSecret decodes the configured cookie secret. Without one a random
// secret is used and wallet sessions do not survive a restart.
func (a *CapsuleApp) sessionSecret() ([]byte, error) {
	if a.cfg.Server.SessionSecret == "" {
		a.logger.Warn("no session_secret configured; sessions reset on restart")
		return NewSessionSecret()
	}
	secret, err := hex.DecodeString(a.cfg.Server.SessionSecret)
	if err != nil {
		return nil, fmt.Errorf("decoding session_secret: %w", err)
	}
	if len(secret) < 32 {
		return nil, fmt.Errorf("session_secret must be at least 32 bytes")
	}
	return secret, nil
}

// NewSessionSecret returns 32 random bytes for signing session cookies.
func NewSessionSecret() ([]byte, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generating session secret: %w", err)
	}
	return secret, nil
}

// Handler builds the web front end.
func (a *CapsuleApp) Handler() (http.Handler, error) {
	secret, err := a.sessionSecret()
	if err != nil {
		return nil, err
	}
	sessions := wallet.NewCookieSessions(secret, a.cfg.Server.SecureCookies)

	srv, err := web.NewServer(a.service, sessions, a.logger, a.cfg.Server.UploadMaxSize)
	if err != nil {
		return nil, fmt.Errorf("creating web server: %w", err)
	}
	return srv.Handler(), nil
}

// Serve runs the web front end on addr until ctx is cancelled.
// An empty addr uses the configured one.
func (a *CapsuleApp) Serve(ctx context.Context, addr string) error {
	if addr == "" {
		addr = a.cfg.Server.Addr
	}
	handler, err := a.Handler()
	if err != nil {
		return a.op.Fail(err)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return a.op.Fail(fmt.Errorf("serving: %w", err))
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.logger.Info("shutting down")
		return a.op.Fail(srv.Shutdown(shutdownCtx))
	}
}

// ListCapsules runs a gallery query from CLI flags.
// as is the viewing account for the "mine" filter; it may be empty.
func (a *CapsuleApp) ListCapsules(filter, search, as string) (*capsule.GalleryView, error) {
	f, err := capsule.ParseFilter(filter)
	if err != nil {
		return nil, err
	}
	var viewer string
	if as != "" {
		addr, err := wallet.ParseAddress(as)
		if err != nil {
			return nil, err
		}
		viewer = addr.String()
	}
	return a.service.Gallery(capsule.Query{Filter: f, Search: search, Viewer: viewer})
}

// Close logs the operation outcome and closes all resources.
func (a *CapsuleApp) Close() error {
	var firstErr error

	a.logger.Info("operation finished",
		"operation", a.op.Name,
		"status", a.op.Status,
		"duration", time.Since(a.op.StartedAt).Truncate(time.Millisecond))

	if err := a.db.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

// OpenDatabase opens the configured database without checking its schema,
// for the maintenance commands that migrate or inspect it.
func OpenDatabase(cfg *config.Config) (*database.SQLiteDatabase, error) {
	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.InstanceID)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// SetupKeys generates the encryption key pair protected by passphrase.
func SetupKeys(cfg *config.Config, passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if !enc.Enabled() {
		return fmt.Errorf("encryption type %q does not use keys", cfg.Encryption.Type)
	}
	return enc.Setup(passphrase)
}
