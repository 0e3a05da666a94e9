package web

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"capsule-go/internal/capsule"
	"capsule-go/internal/testutil"
	"capsule-go/internal/wallet"
)

const (
	testAccount      = "0x52908400098527886E0F7030069857D2E4169EE7"
	testAccountShort = "0x5290...9EE7"
)

type fixture struct {
	ts     *httptest.Server
	client *http.Client
	clock  *testutil.StubClock
}

func newFixture(t *testing.T, sample bool) *fixture {
	t.Helper()
	db := testutil.NewTestDatabase(t)
	clock := testutil.FixedClock()

	var source capsule.Source = db
	if sample {
		source = capsule.NewSampleSource()
	}
	svc := capsule.NewCapsuleService(db, source, testutil.NewTestStagingArea(), testutil.NewTestVault(), testutil.NewPlainEncryptor(), capsule.NewNopLogger(), clock, testutil.NewStubIDGenerator())
	sessions := wallet.NewCookieSessions([]byte("0123456789abcdef0123456789abcdef"), false)

	srv, err := NewServer(svc, sessions, capsule.NewNopLogger(), 1<<20)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{ts: ts, client: &http.Client{Jar: jar}, clock: clock}
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := f.client.Get(f.ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp, readBody(t, resp)
}

func (f *fixture) post(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := f.client.PostForm(f.ts.URL+path, form)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp, readBody(t, resp)
}

type testUpload struct {
	name, mediaType, content string
}

func (f *fixture) postMultipart(t *testing.T, path string, fields map[string]string, files []testUpload) (*http.Response, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	for _, u := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="files"; filename="`+u.name+`"`)
		h.Set("Content-Type", u.mediaType)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		part.Write([]byte(u.content))
	}
	mw.Close()

	resp, err := f.client.Post(f.ts.URL+path, mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp, readBody(t, resp)
}

func (f *fixture) connect(t *testing.T) {
	t.Helper()
	resp, _ := f.post(t, "/wallet/connect", url.Values{"address": {strings.ToLower(testAccount)}, "next": {"/"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("connect status = %d", resp.StatusCode)
	}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return string(data)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false)
	resp, body := f.get(t, "/api/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(body, `"status":"ok"`) {
		t.Errorf("body = %s", body)
	}
}

func TestHomePage(t *testing.T) {
	f := newFixture(t, false)

	resp, body := f.get(t, "/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(body, "Lock Your Memories in Time") {
		t.Error("landing copy missing")
	}
	if strings.Contains(body, "Connected as:") {
		t.Error("address widget shown without a connected account")
	}

	f.connect(t)
	_, body = f.get(t, "/")
	if !strings.Contains(body, "Connected as:") || !strings.Contains(body, testAccountShort) {
		t.Error("address widget missing after connect")
	}
}

func TestWalletConnect_InvalidAddress(t *testing.T) {
	f := newFixture(t, false)
	_, body := f.post(t, "/wallet/connect", url.Values{"address": {"0x1234"}, "next": {"/"}})
	if !strings.Contains(body, "Invalid address") {
		t.Error("invalid address flash missing")
	}
	if strings.Contains(body, "Connected as:") {
		t.Error("invalid address was connected")
	}
}

func TestWalletDisconnect(t *testing.T) {
	f := newFixture(t, false)
	f.connect(t)
	_, body := f.post(t, "/wallet/disconnect", url.Values{"next": {"/"}})
	if strings.Contains(body, "Connected as:") {
		t.Error("still connected after disconnect")
	}
}

func TestCreatePage_RequiresAccount(t *testing.T) {
	f := newFixture(t, false)
	_, body := f.get(t, "/create")
	if !strings.Contains(body, "Connect Your Wallet") {
		t.Error("connect prompt missing")
	}

	// Form posts without an account leave nothing behind.
	_, body = f.post(t, "/create/type", url.Values{"content_type": {"photo"}, "action": {"continue"}})
	if !strings.Contains(body, "Connect Your Wallet") {
		t.Error("connect prompt missing after anonymous post")
	}
}

func TestCreateWizard_GuardKeepsStep(t *testing.T) {
	f := newFixture(t, false)
	f.connect(t)

	_, body := f.get(t, "/create")
	if !strings.Contains(body, "Choose Content Type") {
		t.Fatal("wizard does not start on step 1")
	}

	_, body = f.post(t, "/create/type", url.Values{"content_type": {"message"}, "action": {"continue"}})
	if !strings.Contains(body, "Add Your Content") {
		t.Fatal("did not advance to step 2")
	}

	_, body = f.postMultipart(t, "/create/content", map[string]string{"title": "Only a title", "action": "continue"}, nil)
	if strings.Contains(body, `class="flash"`) {
		t.Error("unmet guard reported an error")
	}
	if !strings.Contains(body, "Add Your Content") {
		t.Error("wizard left step 2 without a message")
	}
	if !strings.Contains(body, `value="Only a title"`) {
		t.Error("title was not kept")
	}
}

// tag returns the first start tag in body that begins with prefix.
func tag(t *testing.T, body, prefix string) string {
	t.Helper()
	i := strings.Index(body, prefix)
	if i < 0 {
		t.Fatalf("no %s in page", prefix)
	}
	end := strings.Index(body[i:], ">")
	return body[i : i+end+1]
}

func hasAttr(tag, attr string) bool {
	return strings.Contains(tag, " "+attr+" ") || strings.Contains(tag, " "+attr+">")
}

func TestCreateWizard_ContentStepRequiresFields(t *testing.T) {
	tests := []struct {
		contentType  string
		stage        []testUpload
		wantMessage  bool
		wantFileTag  bool
		wantFileReqd bool
	}{
		{contentType: "message", wantMessage: true},
		{contentType: "photo", wantFileTag: true, wantFileReqd: true},
		{contentType: "video", wantFileTag: true, wantFileReqd: true},
		{
			contentType: "photo",
			stage:       []testUpload{{name: "a.png", mediaType: "image/png", content: "png"}},
			wantFileTag: true,
		},
	}

	for _, tt := range tests {
		name := tt.contentType
		if len(tt.stage) > 0 {
			name += " with staged files"
		}
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, false)
			f.connect(t)
			f.post(t, "/create/type", url.Values{"content_type": {tt.contentType}, "action": {"continue"}})
			if len(tt.stage) > 0 {
				f.postMultipart(t, "/create/content", map[string]string{"action": "save"}, tt.stage)
			}

			_, body := f.get(t, "/create")
			if !hasAttr(tag(t, body, `<input type="text" id="title"`), "required") {
				t.Error("title is not required")
			}
			if got := hasAttr(tag(t, body, `<textarea id="message"`), "required"); got != tt.wantMessage {
				t.Errorf("message required = %v, want %v", got, tt.wantMessage)
			}
			if tt.wantFileTag {
				if got := hasAttr(tag(t, body, `<input type="file"`), "required"); got != tt.wantFileReqd {
					t.Errorf("files required = %v, want %v", got, tt.wantFileReqd)
				}
			} else if strings.Contains(body, `<input type="file"`) {
				t.Error("file input shown for a message capsule")
			}

			if hasAttr(tag(t, body, `<button type="submit" name="action" value="continue"`), "formnovalidate") {
				t.Error("continue skips validation")
			}
			for _, action := range []string{"back", "save"} {
				if !hasAttr(tag(t, body, `<button type="submit" name="action" value="`+action+`"`), "formnovalidate") {
					t.Errorf("%s validates the form", action)
				}
			}
		})
	}
}

func TestCreateWizard_PhotoCapsule(t *testing.T) {
	f := newFixture(t, false)
	f.connect(t)

	f.post(t, "/create/type", url.Values{"content_type": {"photo"}, "action": {"continue"}})

	_, body := f.postMultipart(t, "/create/content",
		map[string]string{"title": "Summer trip", "action": "continue"},
		[]testUpload{{name: "beach.png", mediaType: "image/png", content: "png bytes"}})
	if !strings.Contains(body, "Set Unlock Date") {
		t.Fatalf("did not advance to step 3:\n%s", body)
	}

	_, body = f.post(t, "/create/quick", url.Values{"option": {"1 Week"}})
	if !strings.Contains(body, `value="2024-01-22"`) {
		t.Error("quick option did not set the date")
	}
	if !strings.Contains(body, "1 file(s) attached") {
		t.Error("preview missing file count")
	}

	resp, body := f.post(t, "/create/submit", nil)
	if resp.Request.URL.Path != "/gallery" {
		t.Fatalf("submit redirected to %s, want /gallery", resp.Request.URL.Path)
	}
	if !strings.Contains(body, "Summer trip") || !strings.Contains(body, "6 days") {
		t.Errorf("gallery missing new capsule:\n%s", body)
	}

	// JSON view: locked, owned, files withheld.
	resp, body = f.get(t, "/api/capsules?filter=mine")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var gallery galleryJSON
	if err := json.Unmarshal([]byte(body), &gallery); err != nil {
		t.Fatalf("decoding gallery: %v", err)
	}
	if len(gallery.Capsules) != 1 {
		t.Fatalf("len(capsules) = %d, want 1", len(gallery.Capsules))
	}
	c := gallery.Capsules[0]
	if !c.IsLocked || !c.IsOwner || len(c.Files) != 0 {
		t.Errorf("capsule = %+v", c)
	}
	if gallery.Counts["mine"] != 1 || gallery.Counts["all"] != 1 {
		t.Errorf("counts = %v", gallery.Counts)
	}

	checksum := testutil.Checksum("png bytes")
	resp, _ = f.get(t, "/capsules/"+c.ID+"/files/"+checksum)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("locked file status = %d, want 403", resp.StatusCode)
	}

	f.clock.Advance(8 * 24 * time.Hour)
	resp, body = f.get(t, "/capsules/"+c.ID+"/files/"+checksum)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unlocked file status = %d, want 200", resp.StatusCode)
	}
	if body != "png bytes" {
		t.Errorf("file body = %q", body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}

	resp, body = f.get(t, "/api/capsules/"+c.ID)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var one capsuleJSON
	if err := json.Unmarshal([]byte(body), &one); err != nil {
		t.Fatalf("decoding capsule: %v", err)
	}
	if one.IsLocked || one.TimeRemaining != capsule.Unlocked || len(one.Files) != 1 {
		t.Errorf("unlocked capsule = %+v", one)
	}
}

func TestCreateWizard_RejectsWrongMedia(t *testing.T) {
	f := newFixture(t, false)
	f.connect(t)

	f.post(t, "/create/type", url.Values{"content_type": {"video"}, "action": {"continue"}})
	_, body := f.postMultipart(t, "/create/content",
		map[string]string{"title": "Clip", "action": "continue"},
		[]testUpload{{name: "photo.jpg", mediaType: "image/jpeg", content: "jpeg"}})

	if !strings.Contains(body, "File type not accepted") {
		t.Error("media type flash missing")
	}
	if !strings.Contains(body, "Add Your Content") {
		t.Error("wizard advanced with a rejected file")
	}
}

func TestCreateWizard_BackAndDiscard(t *testing.T) {
	f := newFixture(t, false)
	f.connect(t)

	f.post(t, "/create/type", url.Values{"content_type": {"message"}, "action": {"continue"}})

	// Back from step 2 keeps what was typed without a separate save.
	_, body := f.postMultipart(t, "/create/content", map[string]string{"title": "Kept", "message": "hi", "action": "back"}, nil)
	if !strings.Contains(body, "Choose Content Type") {
		t.Fatal("back did not return to step 1")
	}
	_, body = f.post(t, "/create/continue", nil)
	if !strings.Contains(body, `value="Kept"`) {
		t.Error("draft title lost after back and continue")
	}
	if !strings.Contains(body, ">hi</textarea>") {
		t.Error("draft message lost after back and continue")
	}

	_, body = f.post(t, "/create/discard", nil)
	if !strings.Contains(body, "Choose Content Type") {
		t.Error("discard did not restart the wizard")
	}
}

func TestGalleryPage_SampleSource(t *testing.T) {
	f := newFixture(t, true)

	tests := []struct {
		name     string
		query    string
		contains []string
		excludes []string
	}{
		{
			name:     "all",
			query:    "",
			contains: []string{"Letter to my future self", "Wedding memories", "All Capsules (4)", "Locked (4)", "Unlocked (0)", "My Capsules (0)"},
		},
		{
			name:     "search",
			query:    "?q=WEDDING",
			contains: []string{"Wedding memories"},
			excludes: []string{"Birthday wishes for mom"},
		},
		{
			name:     "empty search result",
			query:    "?q=nothing-matches",
			contains: []string{"No capsules found", "Try adjusting your search terms"},
		},
		{
			name:     "empty filter result",
			query:    "?filter=unlocked",
			contains: []string{"Be the first to create a time capsule!"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.get(t, "/gallery"+tt.query)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d", resp.StatusCode)
			}
			for _, s := range tt.contains {
				if !strings.Contains(body, s) {
					t.Errorf("body missing %q", s)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(body, s) {
					t.Errorf("body unexpectedly contains %q", s)
				}
			}
		})
	}
}

func TestGallery_SampleSourceMine(t *testing.T) {
	f := newFixture(t, true)
	f.connect(t)

	resp, body := f.get(t, "/api/capsules?filter=mine")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var gallery galleryJSON
	if err := json.Unmarshal([]byte(body), &gallery); err != nil {
		t.Fatalf("decoding gallery: %v", err)
	}
	if len(gallery.Capsules) != 1 || gallery.Capsules[0].Title != "Letter to my future self" {
		t.Fatalf("capsules = %+v, want only the letter", gallery.Capsules)
	}
	if !gallery.Capsules[0].IsOwner {
		t.Error("IsOwner = false for the reported capsule")
	}
	if gallery.Counts["mine"] != 1 || gallery.Counts["all"] != 4 {
		t.Errorf("counts = %v", gallery.Counts)
	}

	_, body = f.get(t, "/gallery")
	if !strings.Contains(body, "My Capsules (1)") {
		t.Error("gallery page does not count the reported capsule as mine")
	}
}

func TestGallery_InvalidFilter(t *testing.T) {
	f := newFixture(t, true)

	resp, _ := f.get(t, "/gallery?filter=expired")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("page status = %d, want 400", resp.StatusCode)
	}

	resp, body := f.get(t, "/api/capsules?filter=expired")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("api status = %d, want 400", resp.StatusCode)
	}
	if !strings.Contains(body, `"error"`) {
		t.Errorf("api body = %s", body)
	}
}

func TestAPICapsule_NotFound(t *testing.T) {
	f := newFixture(t, true)

	resp, body := f.get(t, "/api/capsules/missing")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if !strings.Contains(body, "capsule not found") {
		t.Errorf("body = %s", body)
	}

	resp, body = f.get(t, "/api/capsules/2")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var c capsuleJSON
	if err := json.Unmarshal([]byte(body), &c); err != nil {
		t.Fatal(err)
	}
	// Preview images stay hidden while locked.
	if !c.IsLocked || c.PreviewImage != "" {
		t.Errorf("capsule = %+v", c)
	}
}

func TestPlaceholder(t *testing.T) {
	f := newFixture(t, true)

	tests := []struct {
		path   string
		status int
	}{
		{"/api/placeholder/300/200", http.StatusOK},
		{"/api/placeholder/0/200", http.StatusBadRequest},
		{"/api/placeholder/abc/200", http.StatusBadRequest},
		{"/api/placeholder/5000/200", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := f.get(t, tt.path)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if tt.status == http.StatusOK && !strings.Contains(body, `width="300"`) {
				t.Errorf("body = %s", body)
			}
		})
	}
}

func TestSafeNext(t *testing.T) {
	tests := map[string]string{
		"/gallery":             "/gallery",
		"":                     "/",
		"//evil.example":       "/",
		"https://evil.example": "/",
	}
	for in, want := range tests {
		if got := safeNext(in); got != want {
			t.Errorf("safeNext(%q) = %q, want %q", in, got, want)
		}
	}
}
