package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"capsule-go/internal/capsule"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type fileJSON struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Size      int64  `json:"size"`
	URL       string `json:"url"`
}

// capsuleJSON is the API view of a capsule. Lock and ownership are derived
// for the requesting viewer at the time of the request.
type capsuleJSON struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Creator       string     `json:"creator"`
	CreatedAt     time.Time  `json:"created_at"`
	UnlockDate    time.Time  `json:"unlock_date"`
	ContentType   string     `json:"content_type"`
	IsLocked      bool       `json:"is_locked"`
	IsOwner       bool       `json:"is_owner"`
	TimeRemaining string     `json:"time_remaining"`
	Message       string     `json:"message,omitempty"`
	PreviewImage  string     `json:"preview_image,omitempty"`
	Files         []fileJSON `json:"files,omitempty"`
}

func newCapsuleJSON(c *capsule.Capsule, viewer string, now time.Time) capsuleJSON {
	out := capsuleJSON{
		ID:            c.ID,
		Title:         c.Title,
		Creator:       c.Creator,
		CreatedAt:     c.CreatedAt,
		UnlockDate:    c.UnlockAt,
		ContentType:   string(c.ContentType),
		IsLocked:      !c.IsUnlocked(now),
		IsOwner:       c.IsOwner(viewer),
		TimeRemaining: c.TimeRemaining(now),
	}
	if out.IsLocked {
		return out
	}
	out.Message = c.Message
	out.PreviewImage = c.PreviewImage
	for _, f := range c.Files {
		out.Files = append(out.Files, fileJSON{
			Name:      f.Name,
			MediaType: f.MediaType,
			Size:      f.Size,
			URL:       fileURL(c.ID, f.Checksum),
		})
	}
	return out
}

type galleryJSON struct {
	Filter   string         `json:"filter"`
	Search   string         `json:"search"`
	Counts   map[string]int `json:"counts"`
	Capsules []capsuleJSON  `json:"capsules"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAPICapsules(w http.ResponseWriter, r *http.Request) {
	viewer := s.viewer(r)
	q, err := parseQuery(r, viewer)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := s.svc.Gallery(q)
	if err != nil {
		s.logger.Error("loading gallery", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := galleryJSON{
		Filter:   string(q.Filter),
		Search:   q.Search,
		Counts:   make(map[string]int, len(view.Counts)),
		Capsules: make([]capsuleJSON, 0, len(view.Capsules)),
	}
	for f, n := range view.Counts {
		out.Counts[string(f)] = n
	}
	for _, c := range view.Capsules {
		out.Capsules = append(out.Capsules, newCapsuleJSON(c, viewer, view.Now))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAPICapsule(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.GetCapsule(chi.URLParam(r, "id"))
	if errors.Is(err, capsule.ErrNotFound) {
		writeError(w, http.StatusNotFound, "capsule not found")
		return
	}
	if err != nil {
		s.logger.Error("loading capsule", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, newCapsuleJSON(c, s.viewer(r), s.svc.Now()))
}

// handleFile serves an attachment of an unlocked capsule.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	f, rc, err := s.svc.OpenFile(chi.URLParam(r, "id"), chi.URLParam(r, "checksum"))
	switch {
	case errors.Is(err, capsule.ErrLocked):
		http.Error(w, "capsule is still locked", http.StatusForbidden)
		return
	case errors.Is(err, capsule.ErrNotFound):
		http.NotFound(w, r)
		return
	case errors.Is(err, capsule.ErrNoDecryptionKey):
		http.Error(w, "content is not available yet", http.StatusServiceUnavailable)
		return
	case err != nil:
		s.logger.Error("opening capsule file", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", f.MediaType)
	w.Header().Set("Content-Length", strconv.FormatInt(f.Size, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": f.Name}))
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("sending capsule file", "error", err)
	}
}

const maxPlaceholderSide = 2000

// handlePlaceholder draws a neutral SVG box used as a stand-in preview image.
func (s *Server) handlePlaceholder(w http.ResponseWriter, r *http.Request) {
	width, err1 := strconv.Atoi(chi.URLParam(r, "width"))
	height, err2 := strconv.Atoi(chi.URLParam(r, "height"))
	if err1 != nil || err2 != nil || width <= 0 || height <= 0 || width > maxPlaceholderSide || height > maxPlaceholderSide {
		http.Error(w, "invalid size", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	fmt.Fprintf(w, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+
		`<rect width="100%%" height="100%%" fill="#e9d5ff"/>`+
		`<text x="50%%" y="50%%" dominant-baseline="middle" text-anchor="middle" font-family="sans-serif" font-size="16" fill="#6b21a8">%d×%d</text>`+
		`</svg>`, width, height, width, height, width, height)
}
