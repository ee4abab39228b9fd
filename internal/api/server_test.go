package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/ultrasop/ultrasop/internal/generate"
	"github.com/ultrasop/ultrasop/internal/log"
	"github.com/ultrasop/ultrasop/internal/sop"
	"github.com/ultrasop/ultrasop/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testSecret = "test-secret"

// nullBackend persists nothing.
type nullBackend struct{}

func (nullBackend) Load(ctx context.Context) ([]*sop.Document, error) {
	return sop.SeedDocuments(), nil
}
func (nullBackend) SaveDocument(ctx context.Context, d *sop.Document) error { return nil }
func (nullBackend) SaveVersion(ctx context.Context, d *sop.Document, v sop.Version) error {
	return nil
}
func (nullBackend) DeleteDocument(ctx context.Context, d *sop.Document) error { return nil }

type testServer struct {
	handler http.Handler
	token   string
	store   *store.Store
}

func newTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()
	st, err := store.New(context.Background(), nullBackend{}, log.NewNop(), store.WithQuietPeriod(time.Hour))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close(context.Background()) })

	if cfg.AuthSecret == "" {
		cfg.AuthSecret = testSecret
	}
	gen := generate.New(nil, "", log.NewNop())
	srv := NewServer(cfg, st, gen, log.NewNop())
	return &testServer{
		handler: srv.Handler(),
		token:   SignUserID("user-1", cfg.AuthSecret),
		store:   st,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+ts.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestTokens(t *testing.T) {
	token := SignUserID("alice", testSecret)

	uid, ok := verifyToken(token, testSecret)
	if !ok || uid != "alice" {
		t.Errorf("verify = %q, %v", uid, ok)
	}
	if _, ok := verifyToken(token, "other-secret"); ok {
		t.Error("token should not verify under a different secret")
	}
	if _, ok := verifyToken("alice.bogus", testSecret); ok {
		t.Error("tampered signature should not verify")
	}
	if _, ok := verifyToken("no-separator", testSecret); ok {
		t.Error("malformed token should not verify")
	}
}

func TestAuth_Required(t *testing.T) {
	ts := newTestServer(t, Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	req.Header.Set("Authorization", "Bearer forged.token")
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", rec.Code)
	}
}

func TestHealthEndpointsUnauthenticated(t *testing.T) {
	ts := newTestServer(t, Config{})
	for _, path := range []string{"/health", "/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, rec.Code)
		}
	}
}

func TestListDocuments(t *testing.T) {
	ts := newTestServer(t, Config{})

	rec := ts.do(t, http.MethodGet, "/api/v1/documents", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[struct {
		ActiveID  string          `json:"activeId"`
		Documents []*sop.Document `json:"documents"`
	}](t, rec)
	if len(resp.Documents) != 3 {
		t.Errorf("documents = %d, want seeds", len(resp.Documents))
	}
	if resp.ActiveID == "" {
		t.Error("activeId missing")
	}
}

func TestCreateSelectUpdateFlow(t *testing.T) {
	ts := newTestServer(t, Config{})

	rec := ts.do(t, http.MethodPost, "/api/v1/documents", map[string]string{"title": "Fresh"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	created := decode[sop.Document](t, rec)
	if created.Title != "Fresh" {
		t.Errorf("Title = %q", created.Title)
	}

	// The new document is active; patch it.
	rec = ts.do(t, http.MethodPatch, "/api/v1/documents/active", map[string]any{
		"summary": "about things",
		"steps":   []string{"First", "  ", "Second"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d: %s", rec.Code, rec.Body.String())
	}
	updated := decode[sop.Document](t, rec)
	if updated.Summary != "about things" {
		t.Errorf("Summary = %q", updated.Summary)
	}
	if len(updated.Steps) != 2 {
		t.Errorf("steps = %v, blank titles should be dropped", sop.StepTitles(updated.Steps))
	}
	if updated.Title != "Fresh" {
		t.Error("absent fields must not be touched")
	}

	// Select a seed document back.
	rec = ts.do(t, http.MethodGet, "/api/v1/documents", nil)
	resp := decode[struct {
		Documents []*sop.Document `json:"documents"`
	}](t, rec)
	seed := resp.Documents[len(resp.Documents)-1]

	rec = ts.do(t, http.MethodPut, "/api/v1/documents/active", map[string]string{"id": seed.ID.String()})
	if rec.Code != http.StatusOK {
		t.Fatalf("select status = %d", rec.Code)
	}
	if got := decode[sop.Document](t, rec); got.ID != seed.ID {
		t.Error("selection did not switch")
	}
}

func TestCreateFromUnknownTemplate(t *testing.T) {
	ts := newTestServer(t, Config{})
	rec := ts.do(t, http.MethodPost, "/api/v1/documents", map[string]string{"template": "nope"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDeleteDocument_ReturnsWorkspace(t *testing.T) {
	ts := newTestServer(t, Config{})
	active := ts.store.Active()

	rec := ts.do(t, http.MethodDelete, "/api/v1/documents/"+active.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[struct {
		ActiveID  string          `json:"activeId"`
		Documents []*sop.Document `json:"documents"`
	}](t, rec)
	if len(resp.Documents) != 2 {
		t.Errorf("documents = %d", len(resp.Documents))
	}
	if resp.ActiveID == active.ID.String() {
		t.Error("deleted document cannot stay active")
	}
}

func TestDuplicateDocument(t *testing.T) {
	ts := newTestServer(t, Config{})
	active := ts.store.Active()

	rec := ts.do(t, http.MethodPost, "/api/v1/documents/"+active.ID.String()+"/duplicate", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	dup := decode[sop.Document](t, rec)
	if !strings.HasPrefix(dup.Title, "Copy of ") {
		t.Errorf("Title = %q", dup.Title)
	}
	if len(dup.Versions) != 0 {
		t.Error("duplicate should not inherit versions")
	}
}

func TestVersionLifecycle(t *testing.T) {
	ts := newTestServer(t, Config{})

	// Shape the active document, snapshot twice, then diff.
	ts.store.UpdateActive(func(d *sop.Document) {
		d.Steps = []sop.Step{sop.PlainStep("A"), sop.PlainStep("B"), sop.PlainStep("C")}
	})
	rec := ts.do(t, http.MethodPost, "/api/v1/documents/active/versions", map[string]string{"notes": "baseline"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("save version status = %d: %s", rec.Code, rec.Body.String())
	}

	ts.store.UpdateActive(func(d *sop.Document) {
		d.Steps = []sop.Step{sop.PlainStep("A"), sop.PlainStep("C"), sop.PlainStep("D")}
	})
	rec = ts.do(t, http.MethodPost, "/api/v1/documents/active/versions", nil)
	v2 := decode[sop.Version](t, rec)
	if v2.N != 2 {
		t.Fatalf("N = %d", v2.N)
	}

	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/documents/active/versions/%d/diff", v2.N), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("diff status = %d", rec.Code)
	}
	diff := decode[struct {
		Changes []sop.Change `json:"changes"`
	}](t, rec)
	if len(diff.Changes) != 2 || diff.Changes[0].Kind != sop.Added || diff.Changes[0].Title != "D" {
		t.Errorf("changes = %v", diff.Changes)
	}

	// Oldest version has nothing to compare against.
	rec = ts.do(t, http.MethodGet, "/api/v1/documents/active/versions/1/diff", nil)
	noPrev := decode[struct {
		Message string `json:"message"`
	}](t, rec)
	if noPrev.Message != "No previous version to compare" {
		t.Errorf("message = %q", noPrev.Message)
	}

	// Restore v1, then delete v2.
	rec = ts.do(t, http.MethodPost, "/api/v1/documents/active/versions/1/restore", nil)
	restored := decode[sop.Document](t, rec)
	if got := sop.StepTitles(restored.Steps); len(got) != 3 || got[1] != "B" {
		t.Errorf("restored steps = %v", got)
	}

	rec = ts.do(t, http.MethodDelete, "/api/v1/documents/active/versions/2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete version status = %d", rec.Code)
	}
	rec = ts.do(t, http.MethodDelete, "/api/v1/documents/active/versions/2", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("double delete status = %d, want 404", rec.Code)
	}
}

func TestExportPDF(t *testing.T) {
	ts := newTestServer(t, Config{ProductName: "UltraSOP"})

	rec := ts.do(t, http.MethodGet, "/api/v1/documents/active/export/pdf", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), ".pdf") {
		t.Errorf("Content-Disposition = %q", rec.Header().Get("Content-Disposition"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Error("body is not a PDF")
	}
}

func TestGenerate_Validation(t *testing.T) {
	ts := newTestServer(t, Config{})

	rec := ts.do(t, http.MethodPost, "/api/v1/generate", map[string]string{"inputText": "   "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank input: status = %d, want 400", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/api/v1/generate", map[string]string{"inputText": "x", "detail": "verbose"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad detail: status = %d, want 400", rec.Code)
	}
}

func TestGenerate_NotConfigured(t *testing.T) {
	ts := newTestServer(t, Config{})

	rec := ts.do(t, http.MethodPost, "/api/v1/generate", map[string]string{"inputText": "Title: T\n- a"})
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 without an API key", rec.Code)
	}
	resp := decode[ErrorResponse](t, rec)
	if !strings.Contains(resp.Message, "API key") {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestEnhance_RequiresSteps(t *testing.T) {
	ts := newTestServer(t, Config{})
	rec := ts.do(t, http.MethodPost, "/api/v1/enhance", map[string]any{"steps": []string{}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, Config{RatePerMinute: 5, RateBurst: 2})

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := ts.do(t, http.MethodPost, "/api/v1/generate", map[string]string{"inputText": "x"})
		statuses = append(statuses, rec.Code)
	}
	if statuses[2] != http.StatusTooManyRequests {
		t.Errorf("statuses = %v, third call should be limited", statuses)
	}

	rec := ts.do(t, http.MethodPost, "/api/v1/generate", map[string]string{"inputText": "x"})
	if rec.Header().Get("Retry-After") == "" && rec.Code == http.StatusTooManyRequests {
		t.Error("limited response should carry Retry-After")
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, Config{CORSOrigins: []string{"https://app.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/documents", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Errorf("allow-origin = %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestPDFFilename(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Weekly Blog Publishing", "weekly-blog-publishing.pdf"},
		{"Déjà vu!!", "dj-vu.pdf"},
		{"???", "sop.pdf"},
	}
	for _, tt := range tests {
		if got := pdfFilename(tt.in); got != tt.want {
			t.Errorf("pdfFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	if got := clientIP(req, false); got != "10.0.0.1" {
		t.Errorf("untrusted proxy: ip = %q", got)
	}
	if got := clientIP(req, true); got != "203.0.113.9" {
		t.Errorf("trusted proxy: ip = %q", got)
	}
}
