package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"capsule-go/internal/capsule"
	"capsule-go/internal/fs"
	"capsule-go/internal/wallet"
)

// CreateRequest is a capsule described by CLI flags. Exactly one of
// UnlockIn and UnlockDate must be set.
type CreateRequest struct {
	Creator     string
	ContentType string
	Title       string
	Message     string
	Paths       []string // files, or directories whose files are all attached
	Recursive   bool
	UnlockIn    string // quick option label ("1 Month") or a number of days
	UnlockDate  string // YYYY-MM-DD
}

// CreateCapsule walks the creator's wizard through every step and submits
// it. Any leftover draft for the creator is discarded first, and the draft
// is discarded again if a step fails.
func (a *CapsuleApp) CreateCapsule(req CreateRequest) (*capsule.Capsule, error) {
	c, err := a.createCapsule(req)
	return c, a.op.Fail(err)
}

func (a *CapsuleApp) createCapsule(req CreateRequest) (*capsule.Capsule, error) {
	addr, err := wallet.ParseAddress(req.Creator)
	if err != nil {
		return nil, fmt.Errorf("creator: %w", err)
	}
	account := addr.String()

	ct, err := capsule.ParseContentType(req.ContentType)
	if err != nil {
		return nil, err
	}

	files, err := a.resolveFiles(req.Paths, req.Recursive)
	if err != nil {
		return nil, err
	}

	if err := a.service.DiscardDraft(account); err != nil {
		return nil, err
	}
	c, err := a.runWizard(account, ct, req, files)
	if err != nil {
		if derr := a.service.DiscardDraft(account); derr != nil {
			a.logger.Warn("discarding failed draft", "account", account, "error", derr)
		}
		return nil, err
	}
	return c, nil
}

func (a *CapsuleApp) runWizard(account string, ct capsule.ContentType, req CreateRequest, files []*fs.File) (*capsule.Capsule, error) {
	err := a.service.Wizard(account, func(w *capsule.Wizard) error {
		if err := w.SelectType(ct); err != nil {
			return err
		}
		if err := w.Continue(); err != nil {
			return err
		}
		if err := w.SetTitle(req.Title); err != nil {
			return err
		}
		return w.SetMessage(req.Message)
	})
	if err != nil {
		return nil, err
	}

	if len(files) > 0 {
		if err := a.stageFiles(account, files); err != nil {
			return nil, err
		}
	}

	err = a.service.Wizard(account, func(w *capsule.Wizard) error {
		if err := w.Continue(); err != nil {
			return err
		}
		return applyUnlock(w, req.UnlockIn, req.UnlockDate)
	})
	if err != nil {
		return nil, err
	}

	return a.service.CreateCapsule(account)
}

// stageFiles opens every file and stages them as one selection.
func (a *CapsuleApp) stageFiles(account string, files []*fs.File) error {
	uploads := make([]capsule.Upload, 0, len(files))
	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	for _, f := range files {
		rc, err := a.fsmgr.Open(f)
		if err != nil {
			return fmt.Errorf("opening %s: %w", f.Path, err)
		}
		closers = append(closers, rc)
		uploads = append(uploads, capsule.Upload{Name: f.Name, MediaType: f.MediaType, Content: rc})
	}
	return a.service.StageUploads(account, uploads)
}

// resolveFiles expands the given paths into files. Directories contribute
// every file that is not ignored.
func (a *CapsuleApp) resolveFiles(paths []string, recursive bool) ([]*fs.File, error) {
	var files []*fs.File
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("resolving path: %w", err)
		}
		if info.IsDir() {
			found, err := a.fsmgr.FindFiles(p, recursive)
			if err != nil {
				return nil, err
			}
			files = append(files, found...)
			continue
		}
		f, err := a.fsmgr.Resolve(p)
		if err != nil {
			return nil, fmt.Errorf("resolving path: %w", err)
		}
		files = append(files, f)
	}
	return files, nil
}

var errUnlockChoice = errors.New("exactly one of an unlock offset or an unlock date is required")

// applyUnlock sets the wizard's unlock date from either a quick option
// label, a day count, or an explicit date.
func applyUnlock(w *capsule.Wizard, in, date string) error {
	in, date = strings.TrimSpace(in), strings.TrimSpace(date)
	if (in == "") == (date == "") {
		return errUnlockChoice
	}

	if date != "" {
		d, err := capsule.ParseDate(date)
		if err != nil {
			return fmt.Errorf("invalid unlock date %q: expected YYYY-MM-DD", date)
		}
		return w.SetUnlockDate(d)
	}

	days, err := unlockDays(in)
	if err != nil {
		return err
	}
	_, err = w.ApplyQuickOption(days)
	return err
}

func unlockDays(in string) (int, error) {
	if o, ok := capsule.FindQuickOption(in); ok {
		return o.Days, nil
	}
	days, err := strconv.Atoi(in)
	if err != nil || days < 1 {
		return 0, fmt.Errorf("invalid unlock offset %q: use a day count or one of 1 Week, 1 Month, 6 Months, 1 Year", in)
	}
	return days, nil
}
