package capsule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Step is a position in the capsule creation wizard.
type Step int

const (
	StepSelectType Step = iota + 1
	StepEnterContent
	StepSetUnlock
)

// TotalSteps is the number of wizard steps.
const TotalSteps = 3

var (
	// ErrIncomplete means a transition guard is unmet; the wizard stays on its step.
	ErrIncomplete = errors.New("required fields are missing")
	// ErrWrongStep means the operation is not offered on the current step.
	ErrWrongStep          = errors.New("not available on this step")
	ErrInvalidContentType = errors.New("invalid content type")
	ErrTooManyFiles       = errors.New("only one file may be selected")
	ErrFilesNotAccepted   = errors.New("content type does not take files")
	ErrUnsupportedMedia   = errors.New("file type not accepted")
)

// QuickOption is a preset unlock offset in days from today.
type QuickOption struct {
	Label string
	Days  int
}

// QuickOptions are the preset unlock offsets offered on the last step.
var QuickOptions = []QuickOption{
	{Label: "1 Week", Days: 7},
	{Label: "1 Month", Days: 30},
	{Label: "6 Months", Days: 180},
	{Label: "1 Year", Days: 365},
}

// FindQuickOption looks up a preset by label, case-insensitively.
func FindQuickOption(label string) (QuickOption, bool) {
	for _, o := range QuickOptions {
		if strings.EqualFold(o.Label, strings.TrimSpace(label)) {
			return o, true
		}
	}
	return QuickOption{}, false
}

// DraftFile is an upload selected on step 2, held in the staging area.
type DraftFile struct {
	Name      string
	MediaType string
	Checksum  string
	Size      int64
}

// Draft is the capsule being assembled. It lives only as long as its wizard.
type Draft struct {
	Title       string
	Message     string
	UnlockDate  time.Time // zero until chosen
	ContentType ContentType
	Files       []DraftFile
}

// HasUnlockDate reports whether an unlock date has been chosen.
func (d *Draft) HasUnlockDate() bool {
	return !d.UnlockDate.IsZero()
}

// Preview summarises the draft on the last step.
type Preview struct {
	Title      string
	TypeLabel  string
	UnlockDate time.Time
	HasMessage bool
	FileCount  int
}

// Wizard is the linear three-step capsule creation flow.
// It is not safe for concurrent use; callers serialise access per session.
type Wizard struct {
	step  Step
	draft Draft
	clock Clock
}

// NewWizard starts a wizard on step 1 with the message type preselected.
func NewWizard(clock Clock) *Wizard {
	return &Wizard{
		step:  StepSelectType,
		draft: Draft{ContentType: ContentMessage},
		clock: clock,
	}
}

// Step returns the current step.
func (w *Wizard) Step() Step {
	return w.step
}

// Draft returns a copy of the draft.
func (w *Wizard) Draft() Draft {
	d := w.draft
	d.Files = append([]DraftFile(nil), w.draft.Files...)
	return d
}

// SelectType sets the content type. Previously selected files are kept.
func (w *Wizard) SelectType(ct ContentType) error {
	if w.step != StepSelectType {
		return ErrWrongStep
	}
	if !ct.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidContentType, ct)
	}
	w.draft.ContentType = ct
	return nil
}

// SetTitle sets the capsule title.
func (w *Wizard) SetTitle(title string) error {
	if w.step != StepEnterContent {
		return ErrWrongStep
	}
	w.draft.Title = title
	return nil
}

// SetMessage sets the message body (required for messages, optional otherwise).
func (w *Wizard) SetMessage(message string) error {
	if w.step != StepEnterContent {
		return ErrWrongStep
	}
	w.draft.Message = message
	return nil
}

// SetFiles replaces the selected files and returns the ones it replaced.
// Photo capsules take any number of images, video capsules exactly one video,
// and message capsules none.
func (w *Wizard) SetFiles(files []DraftFile) ([]DraftFile, error) {
	if w.step != StepEnterContent {
		return nil, ErrWrongStep
	}
	ct := w.draft.ContentType
	if !ct.AcceptsFiles() {
		return nil, fmt.Errorf("%w: %s", ErrFilesNotAccepted, ct)
	}
	if len(files) > 1 && !ct.AcceptsMultipleFiles() {
		return nil, ErrTooManyFiles
	}
	for _, f := range files {
		if !strings.HasPrefix(f.MediaType, ct.MediaPrefix()) {
			return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedMedia, f.Name, f.MediaType)
		}
	}

	replaced := w.draft.Files
	w.draft.Files = append([]DraftFile(nil), files...)
	return replaced, nil
}

// CanContinue reports whether Continue would advance from the current step.
func (w *Wizard) CanContinue() bool {
	switch w.step {
	case StepSelectType:
		return w.draft.ContentType.Valid()
	case StepEnterContent:
		return w.contentReady()
	}
	return false
}

func (w *Wizard) contentReady() bool {
	d := &w.draft
	if d.Title == "" {
		return false
	}
	if d.ContentType == ContentMessage && d.Message == "" {
		return false
	}
	if d.ContentType.AcceptsFiles() && len(d.Files) == 0 {
		return false
	}
	return true
}

// Continue advances one step if the current step's guard holds.
func (w *Wizard) Continue() error {
	if w.step == StepSetUnlock {
		return ErrWrongStep
	}
	if !w.CanContinue() {
		return ErrIncomplete
	}
	w.step++
	return nil
}

// Back returns to the previous step. Nothing is cleared.
func (w *Wizard) Back() error {
	if w.step == StepSelectType {
		return ErrWrongStep
	}
	w.step--
	return nil
}

// ApplyQuickOption sets the unlock date to today plus days and returns it.
func (w *Wizard) ApplyQuickOption(days int) (time.Time, error) {
	if w.step != StepSetUnlock {
		return time.Time{}, ErrWrongStep
	}
	if days <= 0 {
		return time.Time{}, fmt.Errorf("quick option must be a positive number of days, got %d", days)
	}
	w.draft.UnlockDate = Today(w.clock.Now()).AddDate(0, 0, days)
	return w.draft.UnlockDate, nil
}

// SetUnlockDate sets a custom unlock date, truncated to its calendar day.
// No bound is enforced: MinUnlockDate is only a hint for the date picker.
// A zero time clears the date.
func (w *Wizard) SetUnlockDate(date time.Time) error {
	if w.step != StepSetUnlock {
		return ErrWrongStep
	}
	if date.IsZero() {
		w.draft.UnlockDate = time.Time{}
		return nil
	}
	w.draft.UnlockDate = Today(date)
	return nil
}

// MinUnlockDate is the earliest date the date picker offers (tomorrow).
func (w *Wizard) MinUnlockDate() time.Time {
	return Today(w.clock.Now()).AddDate(0, 0, 1)
}

// CanCreate reports whether the final create action is enabled.
func (w *Wizard) CanCreate() bool {
	return w.step == StepSetUnlock && w.draft.HasUnlockDate()
}

// Preview returns the draft summary; ok is false until an unlock date is set.
func (w *Wizard) Preview() (p Preview, ok bool) {
	if !w.draft.HasUnlockDate() {
		return Preview{}, false
	}
	return Preview{
		Title:      w.draft.Title,
		TypeLabel:  w.draft.ContentType.Label(),
		UnlockDate: w.draft.UnlockDate,
		HasMessage: w.draft.Message != "",
		FileCount:  len(w.draft.Files),
	}, true
}
