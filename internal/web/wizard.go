package web

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"capsule-go/internal/capsule"
	"capsule-go/internal/wallet"
)

var errInvalidInput = errors.New("invalid input")

// userErrors are shown to the user as is; anything else is logged and replaced.
var userErrors = []error{
	errInvalidInput,
	capsule.ErrWrongStep,
	capsule.ErrInvalidContentType,
	capsule.ErrTooManyFiles,
	capsule.ErrFilesNotAccepted,
	capsule.ErrUnsupportedMedia,
	capsule.ErrStagingFull,
	wallet.ErrInvalidAddress,
	wallet.ErrBadChecksum,
}

func (s *Server) flashError(w http.ResponseWriter, r *http.Request, err error) {
	// An unmet guard just leaves the wizard where it is.
	if errors.Is(err, capsule.ErrIncomplete) {
		return
	}
	for _, ue := range userErrors {
		if errors.Is(err, ue) {
			s.flash(w, r, capitalize(err.Error()))
			return
		}
	}
	s.logger.Error("form action failed", "path", r.URL.Path, "error", err)
	s.flash(w, r, "Something went wrong, please try again")
}

func (s *Server) flash(w http.ResponseWriter, r *http.Request, msg string) {
	if err := s.sessions.AddFlash(w, r, msg); err != nil {
		s.logger.Warn("saving flash", "error", err)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func redirect(w http.ResponseWriter, r *http.Request, to string) {
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// safeNext keeps post-action redirects on this site.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "/"
	}
	return next
}

// wizardAction runs fn against the connected account's draft and sends the
// browser back to the wizard. Guard failures leave the step unchanged.
func (s *Server) wizardAction(w http.ResponseWriter, r *http.Request, fn func(wz *capsule.Wizard) error) {
	account := s.viewer(r)
	if account == "" {
		redirect(w, r, "/create")
		return
	}
	if err := s.svc.Wizard(account, fn); err != nil {
		s.flashError(w, r, err)
	}
	redirect(w, r, "/create")
}

func (s *Server) handleSelectType(w http.ResponseWriter, r *http.Request) {
	s.wizardAction(w, r, func(wz *capsule.Wizard) error {
		ct, err := capsule.ParseContentType(r.FormValue("content_type"))
		if err != nil {
			return err
		}
		if err := wz.SelectType(ct); err != nil {
			return err
		}
		if r.FormValue("action") == "continue" {
			return wz.Continue()
		}
		return nil
	})
}

func (s *Server) handleContinue(w http.ResponseWriter, r *http.Request) {
	s.wizardAction(w, r, (*capsule.Wizard).Continue)
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	s.wizardAction(w, r, (*capsule.Wizard).Back)
}

func (s *Server) handleQuickOption(w http.ResponseWriter, r *http.Request) {
	s.wizardAction(w, r, func(wz *capsule.Wizard) error {
		opt, ok := capsule.FindQuickOption(r.FormValue("option"))
		if !ok {
			return fmt.Errorf("%w: unknown quick option %q", errInvalidInput, r.FormValue("option"))
		}
		_, err := wz.ApplyQuickOption(opt.Days)
		return err
	})
}

func (s *Server) handleUnlockDate(w http.ResponseWriter, r *http.Request) {
	s.wizardAction(w, r, func(wz *capsule.Wizard) error {
		raw := strings.TrimSpace(r.FormValue("unlock_date"))
		if raw == "" {
			return wz.SetUnlockDate(time.Time{})
		}
		date, err := capsule.ParseDate(raw)
		if err != nil {
			return fmt.Errorf("%w: unlock date must be YYYY-MM-DD", errInvalidInput)
		}
		return wz.SetUnlockDate(date)
	})
}

// handleContent saves step 2: title, message and (optionally) a new file
// selection. action=continue then advances to step 3 and action=back
// returns to step 1.
func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	account := s.viewer(r)
	if account == "" {
		redirect(w, r, "/create")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.uploadMaxSize)
	if err := r.ParseMultipartForm(s.uploadMaxSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		s.flash(w, r, "Upload is too large or malformed")
		redirect(w, r, "/create")
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	err := s.svc.Wizard(account, func(wz *capsule.Wizard) error {
		if err := wz.SetTitle(r.FormValue("title")); err != nil {
			return err
		}
		return wz.SetMessage(r.FormValue("message"))
	})
	if err == nil && r.MultipartForm != nil && len(r.MultipartForm.File["files"]) > 0 {
		err = s.stageFiles(account, r.MultipartForm.File["files"])
	}
	if err == nil {
		switch r.FormValue("action") {
		case "continue":
			err = s.svc.Wizard(account, (*capsule.Wizard).Continue)
		case "back":
			err = s.svc.Wizard(account, (*capsule.Wizard).Back)
		}
	}
	if err != nil {
		s.flashError(w, r, err)
	}
	redirect(w, r, "/create")
}

func (s *Server) stageFiles(account string, headers []*multipart.FileHeader) error {
	uploads := make([]capsule.Upload, 0, len(headers))
	closers := make([]io.Closer, 0, len(headers))
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return fmt.Errorf("opening upload %s: %w", fh.Filename, err)
		}
		closers = append(closers, f)
		uploads = append(uploads, capsule.Upload{
			Name:      filepath.Base(fh.Filename),
			MediaType: uploadMediaType(fh),
			Content:   f,
		})
	}
	return s.svc.StageUploads(account, uploads)
}

// uploadMediaType prefers the part's declared type and falls back to the
// file extension.
func uploadMediaType(fh *multipart.FileHeader) string {
	declared := fh.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
		return mt
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(fh.Filename))); byExt != "" {
		if mt, _, err := mime.ParseMediaType(byExt); err == nil {
			return mt
		}
	}
	return "application/octet-stream"
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	account := s.viewer(r)
	if account == "" {
		redirect(w, r, "/create")
		return
	}
	c, err := s.svc.CreateCapsule(account)
	if err != nil {
		s.flashError(w, r, err)
		redirect(w, r, "/create")
		return
	}
	s.flash(w, r, fmt.Sprintf("%q is sealed until %s", c.Title, c.UnlockAt.Format(capsule.DateLayout)))
	redirect(w, r, "/gallery?filter=mine")
}

func (s *Server) handleDiscard(w http.ResponseWriter, r *http.Request) {
	if account := s.viewer(r); account != "" {
		if err := s.svc.DiscardDraft(account); err != nil {
			s.flashError(w, r, err)
		}
	}
	redirect(w, r, "/create")
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	next := safeNext(r.FormValue("next"))
	addr, err := wallet.ParseAddress(r.FormValue("address"))
	if err != nil {
		s.flashError(w, r, err)
		redirect(w, r, next)
		return
	}
	if err := s.sessions.Connect(w, r, addr); err != nil {
		s.flashError(w, r, err)
	}
	redirect(w, r, next)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Disconnect(w, r); err != nil {
		s.flashError(w, r, err)
	}
	redirect(w, r, safeNext(r.FormValue("next")))
}
