package web

import (
	"net/http"
	"strings"
	"time"

	"capsule-go/internal/capsule"
)

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "home.gohtml", "Time Capsule", nil)
}

type typeOption struct {
	Value       capsule.ContentType
	Label       string
	Description string
	Selected    bool
}

type createPage struct {
	Step          capsule.Step
	TotalSteps    int
	Draft         capsule.Draft
	Types         []typeOption
	QuickOptions  []capsule.QuickOption
	MinUnlockDate string
	UnlockDate    string
	Preview       capsule.Preview
	HasPreview    bool
	CanCreate     bool
	AcceptsFiles  bool
	Accept        string
	Multiple      bool

	// Step 2 fields the browser must see filled before Continue submits.
	MessageRequired bool
	FilesRequired   bool
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	account := s.viewer(r)
	if account == "" {
		s.render(w, r, "create.gohtml", "Create Capsule", nil)
		return
	}

	var page createPage
	err := s.svc.Wizard(account, func(wz *capsule.Wizard) error {
		d := wz.Draft()
		page = createPage{
			Step:          wz.Step(),
			TotalSteps:    capsule.TotalSteps,
			Draft:         d,
			QuickOptions:  capsule.QuickOptions,
			MinUnlockDate: wz.MinUnlockDate().Format(capsule.DateLayout),
			CanCreate:     wz.CanCreate(),
			AcceptsFiles:  d.ContentType.AcceptsFiles(),
			Multiple:      d.ContentType.AcceptsMultipleFiles(),

			MessageRequired: d.ContentType == capsule.ContentMessage,
			FilesRequired:   d.ContentType.AcceptsFiles() && len(d.Files) == 0,
		}
		if prefix := d.ContentType.MediaPrefix(); prefix != "" {
			page.Accept = prefix + "*"
		}
		if d.HasUnlockDate() {
			page.UnlockDate = d.UnlockDate.Format(capsule.DateLayout)
		}
		page.Preview, page.HasPreview = wz.Preview()
		for _, ct := range capsule.ContentTypes {
			page.Types = append(page.Types, typeOption{
				Value:       ct,
				Label:       ct.Label(),
				Description: ct.Description(),
				Selected:    ct == d.ContentType,
			})
		}
		return nil
	})
	if err != nil {
		s.logger.Error("loading draft", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.render(w, r, "create.gohtml", "Create Capsule", page)
}

type filterButton struct {
	Filter capsule.Filter
	Label  string
	Count  int
	Active bool
}

type fileLink struct {
	Name string
	URL  string
}

type capsuleCard struct {
	ID           string
	Title        string
	Creator      string
	TypeLabel    string
	CreatedAt    string
	UnlockDate   string
	Locked       bool
	Owner        bool
	Remaining    string
	Message      string
	PreviewImage string
	Files        []fileLink
}

type galleryPage struct {
	Filter  capsule.Filter
	Search  string
	Filters []filterButton
	Cards   []capsuleCard
	Empty   string
}

func newCapsuleCard(c *capsule.Capsule, viewer string, now time.Time) capsuleCard {
	card := capsuleCard{
		ID:         c.ID,
		Title:      c.Title,
		Creator:    c.Creator,
		TypeLabel:  c.ContentType.Label(),
		CreatedAt:  c.CreatedAt.Format(capsule.DateLayout),
		UnlockDate: c.UnlockAt.Format(capsule.DateLayout),
		Locked:     !c.IsUnlocked(now),
		Owner:      c.IsOwner(viewer),
		Remaining:  c.TimeRemaining(now),
	}
	if card.Locked {
		return card
	}
	card.Message = c.Message
	card.PreviewImage = c.PreviewImage
	for _, f := range c.Files {
		card.Files = append(card.Files, fileLink{Name: f.Name, URL: fileURL(c.ID, f.Checksum)})
	}
	return card
}

func fileURL(id, checksum string) string {
	return "/capsules/" + id + "/files/" + checksum
}

// parseQuery reads the gallery filter and search term from the URL.
func parseQuery(r *http.Request, viewer string) (capsule.Query, error) {
	f, err := capsule.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		return capsule.Query{}, err
	}
	return capsule.Query{
		Filter: f,
		Search: strings.TrimSpace(r.URL.Query().Get("q")),
		Viewer: viewer,
	}, nil
}

func (s *Server) handleGallery(w http.ResponseWriter, r *http.Request) {
	viewer := s.viewer(r)
	q, err := parseQuery(r, viewer)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	view, err := s.svc.Gallery(q)
	if err != nil {
		s.logger.Error("loading gallery", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	page := galleryPage{Filter: q.Filter, Search: q.Search}
	for _, f := range capsule.Filters {
		page.Filters = append(page.Filters, filterButton{
			Filter: f,
			Label:  f.Label(),
			Count:  view.Counts[f],
			Active: f == q.Filter,
		})
	}
	for _, c := range view.Capsules {
		page.Cards = append(page.Cards, newCapsuleCard(c, viewer, view.Now))
	}
	if len(page.Cards) == 0 {
		if q.Search != "" {
			page.Empty = "Try adjusting your search terms"
		} else {
			page.Empty = "Be the first to create a time capsule!"
		}
	}

	s.render(w, r, "gallery.gohtml", "Gallery", page)
}
